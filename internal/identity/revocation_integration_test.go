//go:build integration

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"propreg/pkg/testutil/containers"
)

type RedisRevocationsSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	list  *RedisRevocations
}

func TestRedisRevocationsSuite(t *testing.T) {
	suite.Run(t, new(RedisRevocationsSuite))
}

func (s *RedisRevocationsSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.list = NewRedisRevocations(s.redis.Client)
}

func (s *RedisRevocationsSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisRevocationsSuite) TestRevokeAndCheck() {
	ctx := context.Background()

	revoked, err := s.list.IsTokenRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.list.Revoke(ctx, "jti-1", time.Minute))

	revoked, err = s.list.IsTokenRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)

	ttl, err := s.redis.Client.TTL(ctx, revokedTokenKeyPrefix+"jti-1").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisRevocationsSuite) TestEmptyJTIIsIgnored() {
	ctx := context.Background()
	s.Require().NoError(s.list.Revoke(ctx, "", time.Minute))
	revoked, err := s.list.IsTokenRevoked(ctx, "")
	s.Require().NoError(err)
	s.False(revoked)
}
