package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"propreg/internal/property/models"
	"propreg/pkg/domain"
)

// Backend is the store contract the cache decorates.
type Backend interface {
	Append(ctx context.Context, p *models.Property) (domain.PropertyID, error)
	FindByID(ctx context.Context, id domain.PropertyID) (*models.Property, error)
	Count(ctx context.Context) (domain.PropertyID, error)
	Execute(ctx context.Context, id domain.PropertyID, validate func(*models.Property) error, mutate func(*models.Property)) (*models.Property, error)
}

const (
	cacheKeyPrefix  = "propreg:property:"
	defaultCacheTTL = 5 * time.Minute
)

// fillScript stores a record read from the backend only if no write has
// bumped the property's generation since the read began. Both keys share a
// hash slot.
//
// KEYS[1] record key, KEYS[2] generation key
// ARGV[1] generation seen before the read, ARGV[2] record, ARGV[3] ttl (ms)
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// CacheObserver receives hit/miss signals; nil disables them.
type CacheObserver interface {
	ObserveCacheHit()
	ObserveCacheMiss()
}

// RedisCache is a read-through cache of property records in front of a
// durable Backend whose ids are never reused. Updates go to the backend and
// then invalidate the cached copy; only reads fill the cache, and a fill is dropped when a write landed
// while it was in flight. Redis failures are logged and the call falls
// through. Counts and not-found results are never cached.
//
// Each updated property leaves a small generation key without expiry.
type RedisCache struct {
	backend  Backend
	client   *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	observer CacheObserver
}

// NewRedisCache wraps backend. A nil logger discards cache warnings.
func NewRedisCache(backend Backend, client *redis.Client, ttl time.Duration, logger *slog.Logger, observer CacheObserver) *RedisCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{
		backend:  backend,
		client:   client,
		ttl:      ttl,
		logger:   logger,
		observer: observer,
	}
}

func (c *RedisCache) Append(ctx context.Context, p *models.Property) (domain.PropertyID, error) {
	return c.backend.Append(ctx, p)
}

func (c *RedisCache) FindByID(ctx context.Context, id domain.PropertyID) (*models.Property, error) {
	raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var p models.Property
		jsonErr := json.Unmarshal(raw, &p)
		if jsonErr == nil {
			c.hit()
			return &p, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cached property",
			"property_id", id,
			"error", jsonErr,
		)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "property cache read failed",
			"property_id", id,
			"error", err,
		)
	}

	c.miss()
	gen, genErr := c.generation(ctx, id)
	p, err := c.backend.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		c.fill(ctx, p, gen)
	}
	return p, nil
}

func (c *RedisCache) Count(ctx context.Context) (domain.PropertyID, error) {
	return c.backend.Count(ctx)
}

// Execute invalidates the cached copy after a successful mutation. If the
// backend rejects the mutation the cached copy is still valid and is left
// alone.
func (c *RedisCache) Execute(ctx context.Context, id domain.PropertyID, validate func(*models.Property) error, mutate func(*models.Property)) (*models.Property, error) {
	p, err := c.backend.Execute(ctx, id, validate, mutate)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return p, nil
}

// generation reads the write counter for id. A missing counter is "0".
func (c *RedisCache) generation(ctx context.Context, id domain.PropertyID) (string, error) {
	gen, err := c.client.Get(ctx, generationKey(id)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", nil
	case err != nil:
		c.logger.WarnContext(ctx, "property cache generation read failed",
			"property_id", id,
			"error", err,
		)
		return "", err
	}
	return gen, nil
}

func (c *RedisCache) fill(ctx context.Context, p *models.Property, gen string) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode property for cache", "property_id", p.ID, "error", err)
		return
	}
	stored, err := fillScript.Run(ctx, c.client,
		[]string{cacheKey(p.ID), generationKey(p.ID)},
		gen, raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		c.logger.WarnContext(ctx, "property cache write failed",
			"property_id", p.ID,
			"error", err,
		)
		return
	}
	if stored == 0 {
		c.logger.DebugContext(ctx, "skipped cache fill after concurrent write", "property_id", p.ID)
	}
}

// invalidate bumps the generation so in-flight fills are rejected, then drops
// the cached record. Both happen in one transaction.
func (c *RedisCache) invalidate(ctx context.Context, id domain.PropertyID) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "property cache invalidation failed",
			"property_id", id,
			"error", err,
		)
	}
}

func (c *RedisCache) hit() {
	if c.observer != nil {
		c.observer.ObserveCacheHit()
	}
}

func (c *RedisCache) miss() {
	if c.observer != nil {
		c.observer.ObserveCacheMiss()
	}
}

// Keys carry a hash tag so a record and its generation share a slot.
func cacheKey(id domain.PropertyID) string {
	return cacheKeyPrefix + "{" + id.String() + "}"
}

func generationKey(id domain.PropertyID) string {
	return cacheKey(id) + ":gen"
}
