package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Cache wraps a KeyValue backend with a Redis read-through cache. Writes go
// to the backend first and then evict the cached copy. A key whose eviction
// failed is read from the backend until a later eviction succeeds.
type Cache struct {
	base   KeyValue
	redis  *redis.Client
	ttl    time.Duration
	prefix string

	mu    sync.Mutex
	stale map[string]struct{}
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base KeyValue, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, prefix: "cache:", stale: map[string]struct{}{}}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.isStale(key) {
		if err := c.evict(ctx, key); err != nil {
			return c.base.Get(ctx, key)
		}
	}
	if data, ok := c.load(ctx, key); ok {
		return data, true, nil
	}

	data, ok, err := c.base.Get(ctx, key)
	if err != nil || !ok {
		return data, ok, err
	}

	c.store(ctx, key, data)
	return data, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.base.Set(ctx, key, value); err != nil {
		return err
	}
	if err := c.evict(ctx, key); err != nil {
		return fmt.Errorf("evict cached %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Remove(ctx context.Context, key string) error {
	if err := c.base.Remove(ctx, key); err != nil {
		return err
	}
	if err := c.evict(ctx, key); err != nil {
		return fmt.Errorf("evict cached %s: %w", key, err)
	}
	return nil
}

func (c *Cache) cacheKey(key string) string {
	return c.prefix + key
}

func (c *Cache) load(ctx context.Context, key string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.cacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing storage without failing.
			log.WithError(err).WithField("key", key).Warn("cache read failed")
			_ = c.redis.Del(ctx, c.cacheKey(key)).Err()
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) store(ctx context.Context, key string, data []byte) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	if err := c.redis.Set(ctx, c.cacheKey(key), data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// evict drops the cached copy of key. On failure the key is marked stale so
// reads bypass Redis until a retry succeeds.
func (c *Cache) evict(ctx context.Context, key string) error {
	if c.redis == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.redis.Del(ctx, c.cacheKey(key)).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache evict failed")
		c.stale[key] = struct{}{}
		return err
	}
	delete(c.stale, key)
	return nil
}

func (c *Cache) isStale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.stale[key]
	return ok
}
