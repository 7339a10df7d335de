package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"propreg/internal/property/models"
	"propreg/pkg/domain"
)

// racingBackend runs beforeReturn once, after the backend read and before
// the cache sees the result.
type racingBackend struct {
	*InMemory
	mu           sync.Mutex
	beforeReturn func()
}

func (b *racingBackend) FindByID(ctx context.Context, id domain.PropertyID) (*models.Property, error) {
	p, err := b.InMemory.FindByID(ctx, id)
	b.mu.Lock()
	hook := b.beforeReturn
	b.beforeReturn = nil
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	return p, err
}

type RedisCacheUnitSuite struct {
	suite.Suite
	server  *miniredis.Miniredis
	client  *redis.Client
	backend *racingBackend
	cache   *RedisCache
	ctx     context.Context
}

func TestRedisCacheUnitSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheUnitSuite))
}

func (s *RedisCacheUnitSuite) SetupTest() {
	s.server = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.server.Addr()})
	s.T().Cleanup(func() { _ = s.client.Close() })
	s.backend = &racingBackend{InMemory: NewInMemory()}
	s.cache = NewRedisCache(s.backend, s.client, time.Minute, nil, nil)
	s.ctx = context.Background()
}

func (s *RedisCacheUnitSuite) register() domain.PropertyID {
	id, err := s.cache.Append(s.ctx, models.NewProperty(ownerA, models.RegisterCommand{
		Location:         "123 Forest Lane",
		Size:             2500,
		ConstructionType: "Wood Frame",
		RiskZone:         "High Risk",
	}, 123))
	s.Require().NoError(err)
	return id
}

func (s *RedisCacheUnitSuite) updateRiskZone(id domain.PropertyID, zone string) {
	_, err := s.cache.Execute(s.ctx, id,
		func(p *models.Property) error { return p.CanUpdateRiskZone(ownerA) },
		func(p *models.Property) { p.ApplyRiskZone(zone) },
	)
	s.Require().NoError(err)
}

func (s *RedisCacheUnitSuite) riskZone(id domain.PropertyID) string {
	p, err := s.cache.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return p.RiskZone
}

func (s *RedisCacheUnitSuite) TestReadRacingUpdateDoesNotCacheOldRecord() {
	id := s.register()
	s.backend.beforeReturn = func() { s.updateRiskZone(id, "Medium Risk") }

	s.Equal("High Risk", s.riskZone(id), "the racing read returns what it saw")
	s.False(s.server.Exists(cacheKey(id)), "the stale fill is dropped")

	s.Equal("Medium Risk", s.riskZone(id))
	s.Equal("Medium Risk", s.riskZone(id), "served from the cache once filled")
	s.True(s.server.Exists(cacheKey(id)))
}

func (s *RedisCacheUnitSuite) TestUpdateAfterFillIsVisible() {
	id := s.register()
	s.Equal("High Risk", s.riskZone(id))
	s.True(s.server.Exists(cacheKey(id)))

	s.updateRiskZone(id, "Low Risk")
	s.False(s.server.Exists(cacheKey(id)))
	s.Equal("Low Risk", s.riskZone(id))
}

func (s *RedisCacheUnitSuite) TestUpdatesInSequenceServeLatest() {
	id := s.register()
	for _, zone := range []string{"Medium Risk", "Low Risk", "Flood Plain"} {
		s.updateRiskZone(id, zone)
		s.Equal(zone, s.riskZone(id))
	}
	gen, err := s.server.Get(generationKey(id))
	s.Require().NoError(err)
	s.Equal("3", gen)
}

func (s *RedisCacheUnitSuite) TestRejectedUpdateKeepsCachedCopy() {
	id := s.register()
	s.Equal("High Risk", s.riskZone(id))

	_, err := s.cache.Execute(s.ctx, id,
		func(p *models.Property) error { return p.CanUpdateRiskZone(ownerB) },
		func(p *models.Property) { p.ApplyRiskZone("Stolen") },
	)
	s.Require().Error(err)
	s.True(s.server.Exists(cacheKey(id)))
	s.Equal("High Risk", s.riskZone(id))
}

func (s *RedisCacheUnitSuite) TestFallsThroughWhenRedisIsDown() {
	id := s.register()
	s.server.Close()

	s.Equal("High Risk", s.riskZone(id))
	s.updateRiskZone(id, "Medium Risk")
	s.Equal("Medium Risk", s.riskZone(id))
}

func (s *RedisCacheUnitSuite) TestFillExpiresWithTTL() {
	id := s.register()
	s.riskZone(id)
	s.True(s.server.Exists(cacheKey(id)))

	s.server.FastForward(time.Minute + time.Second)
	s.False(s.server.Exists(cacheKey(id)))
}
