//go:build integration

package store_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"propreg/internal/property/models"
	"propreg/internal/property/store"
	"propreg/pkg/domain"
	"propreg/pkg/platform/sentinel"
	"propreg/pkg/testutil/containers"
)

type countingObserver struct {
	hits, misses atomic.Int32
}

func (o *countingObserver) ObserveCacheHit()  { o.hits.Add(1) }
func (o *countingObserver) ObserveCacheMiss() { o.misses.Add(1) }

// interleavingBackend runs afterFind once, between the backend read and the
// cache fill, so a write can land while a read is in flight.
type interleavingBackend struct {
	*store.InMemory
	afterFind func()
}

func (b *interleavingBackend) FindByID(ctx context.Context, id domain.PropertyID) (*models.Property, error) {
	p, err := b.InMemory.FindByID(ctx, id)
	if hook := b.afterFind; hook != nil {
		b.afterFind = nil
		hook()
	}
	return p, err
}

type RedisCacheSuite struct {
	suite.Suite
	redis    *containers.RedisContainer
	backend  *interleavingBackend
	observer *countingObserver
	cache    *store.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.backend = &interleavingBackend{InMemory: store.NewInMemory()}
	s.observer = &countingObserver{}
	s.cache = store.NewRedisCache(s.backend, s.redis.Client, 5*time.Minute, nil, s.observer)
}

func (s *RedisCacheSuite) TestAppendDoesNotFillCache() {
	ctx := context.Background()
	id, err := s.cache.Append(ctx, newProperty("123 Forest Lane", 2500))
	s.Require().NoError(err)

	found, err := s.cache.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal("123 Forest Lane", found.Location)
	s.Equal(int32(0), s.observer.hits.Load())
	s.Equal(int32(1), s.observer.misses.Load())

	_, err = s.cache.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal(int32(1), s.observer.hits.Load())
}

func (s *RedisCacheSuite) TestReadThroughFillsCache() {
	ctx := context.Background()
	id, err := s.backend.Append(ctx, newProperty("456 Mountain Road", 3200))
	s.Require().NoError(err)

	_, err = s.cache.FindByID(ctx, id)
	s.Require().NoError(err)
	_, err = s.cache.FindByID(ctx, id)
	s.Require().NoError(err)

	s.Equal(int32(1), s.observer.misses.Load())
	s.Equal(int32(1), s.observer.hits.Load())
}

func (s *RedisCacheSuite) TestExecuteInvalidatesCachedCopy() {
	ctx := context.Background()
	id, err := s.cache.Append(ctx, newProperty("123 Forest Lane", 2500))
	s.Require().NoError(err)
	_, err = s.cache.FindByID(ctx, id)
	s.Require().NoError(err)

	s.updateRiskZone(id, "Medium Risk")

	n, err := s.redis.Client.Exists(ctx, "propreg:property:{1}").Result()
	s.Require().NoError(err)
	s.Zero(n, "the update drops the cached record")

	found, err := s.cache.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal("Medium Risk", found.RiskZone)
}

func (s *RedisCacheSuite) TestUpdateDuringReadIsNotOverwrittenByStaleFill() {
	ctx := context.Background()
	id, err := s.cache.Append(ctx, newProperty("123 Forest Lane", 2500))
	s.Require().NoError(err)

	s.backend.afterFind = func() { s.updateRiskZone(id, "Medium Risk") }

	stale, err := s.cache.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal("High Risk", stale.RiskZone, "the in-flight read saw the old record")

	n, err := s.redis.Client.Exists(ctx, "propreg:property:{1}").Result()
	s.Require().NoError(err)
	s.Zero(n, "the stale fill is dropped")

	found, err := s.cache.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal("Medium Risk", found.RiskZone)

	cached, err := s.cache.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal("Medium Risk", cached.RiskZone)
	s.Equal(int32(1), s.observer.hits.Load())
}

func (s *RedisCacheSuite) TestSuccessiveUpdatesServeLatest() {
	ctx := context.Background()
	id, err := s.cache.Append(ctx, newProperty("123 Forest Lane", 2500))
	s.Require().NoError(err)

	for _, zone := range []string{"Medium Risk", "Low Risk", "Flood Plain"} {
		s.updateRiskZone(id, zone)
		found, err := s.cache.FindByID(ctx, id)
		s.Require().NoError(err)
		s.Equal(zone, found.RiskZone)
	}

	gen, err := s.redis.Client.Get(ctx, "propreg:property:{1}:gen").Result()
	s.Require().NoError(err)
	s.Equal("3", gen)
}

func (s *RedisCacheSuite) updateRiskZone(id domain.PropertyID, zone string) {
	_, err := s.cache.Execute(context.Background(), id,
		func(p *models.Property) error { return p.CanUpdateRiskZone(ownerA) },
		func(p *models.Property) { p.ApplyRiskZone(zone) },
	)
	s.Require().NoError(err)
}

func (s *RedisCacheSuite) TestNotFoundIsNotCached() {
	ctx := context.Background()
	_, err := s.cache.FindByID(ctx, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)

	n, err := s.redis.Client.Exists(ctx, "propreg:property:{7}").Result()
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RedisCacheSuite) TestCountBypassesCache() {
	ctx := context.Background()
	_, err := s.cache.Append(ctx, newProperty("a", 1))
	s.Require().NoError(err)
	_, err = s.backend.Append(ctx, newProperty("b", 2))
	s.Require().NoError(err)

	count, err := s.cache.Count(ctx)
	s.Require().NoError(err)
	s.Equal(domain.PropertyID(2), count)
}
