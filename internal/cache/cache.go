package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache is a string key/value cache with atomic increments and per-key expiry.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	// SetMany stores all values at once; GetMany never observes part of them.
	SetMany(ctx context.Context, values map[string]string) error
	// GetMany returns the values of the keys that are present.
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	// Increment adds delta to the integer stored at key, treating a missing key as zero.
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

const pingKey = "health_check"

// MemoryCache is a process-local Cache on top of ttlcache.
type MemoryCache struct {
	mu    sync.Mutex
	items *ttlcache.Cache[string, string]
}

func NewMemoryCache() *MemoryCache {
	items := ttlcache.New[string, string](
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go items.Start()

	return &MemoryCache{items: items}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	item := c.items.Get(key)
	if item == nil {
		return "", false, nil
	}
	return item.Value(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Set(key, value, ttlcache.NoTTL)
	return nil
}

func (c *MemoryCache) SetMany(_ context.Context, values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range values {
		c.items.Set(key, value, ttlcache.NoTTL)
	}
	return nil
}

func (c *MemoryCache) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make(map[string]string, len(keys))
	for _, key := range keys {
		if item := c.items.Get(key); item != nil {
			values[key] = item.Value()
		}
	}
	return values, nil
}

func (c *MemoryCache) Increment(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		current int64
		ttl     = ttlcache.NoTTL
	)
	if item := c.items.Get(key); item != nil {
		parsed, err := strconv.ParseInt(item.Value(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse value of %s as integer: %w", key, err)
		}
		current = parsed
		ttl = remainingTTL(item)
	}

	current += delta
	c.items.Set(key, strconv.FormatInt(current, 10), ttl)
	return current, nil
}

func (c *MemoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.items.Get(key)
	if item == nil {
		return nil
	}
	c.items.Set(key, item.Value(), ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Ping(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := c.Set(ctx, pingKey, now); err != nil {
		return err
	}
	value, found, err := c.Get(ctx, pingKey)
	if err != nil {
		return err
	}
	if !found || value != now {
		return fmt.Errorf("cache returned stale value for %s", pingKey)
	}
	return nil
}

func (c *MemoryCache) Close() {
	c.items.Stop()
}

func remainingTTL(item *ttlcache.Item[string, string]) time.Duration {
	if item.ExpiresAt().IsZero() {
		return ttlcache.NoTTL
	}
	left := time.Until(item.ExpiresAt())
	if left <= 0 {
		// ttlcache treats a zero ttl as "use the default", which is no expiry here
		return time.Nanosecond
	}
	return left
}
