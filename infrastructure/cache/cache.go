// Package cache provides the read-through response cache fronting the HTTP
// API. It is adapted from the teacher's infrastructure/cache token cache:
// the same TTL/version invalidation core, generalized from caching auth
// tokens to caching analytics query results, with a singleflight.Group
// added so concurrent misses for the same key collapse into one computation.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value      interface{}
	expiration time.Time
	version    int64
}

// Config controls TTLCache behavior.
type Config struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// TTLCache is an in-memory, TTL-expiring, version-invalidated cache keyed by
// route pattern + canonical query string. A singleflight.Group coalesces
// concurrent misses for the same key into a single loader call.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	config  Config
	version int64
	group   singleflight.Group
}

func NewTTLCache(cfg Config) *TTLCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}

	c := &TTLCache{
		entries: make(map[string]*entry),
		config:  cfg,
	}
	go c.startCleanup()
	return c
}

func (c *TTLCache) startCleanup() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.cleanup()
	}
}

func (c *TTLCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiration) {
			delete(c.entries, key)
		}
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *TTLCache) Get(_ context.Context, key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiration) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *TTLCache) Set(_ context.Context, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:      value,
		expiration: time.Now().Add(c.config.DefaultTTL),
		version:    c.version,
	}
}

// SetTTL stores value under key with an explicit TTL, falling back to the
// cache default when ttl <= 0.
func (c *TTLCache) SetTTL(_ context.Context, key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:      value,
		expiration: time.Now().Add(ttl),
		version:    c.version,
	}
}

// GetOrLoad returns the cached value for key, or calls load to compute it,
// caches the result, and returns it. Concurrent callers for the same key
// share a single in-flight call to load via singleflight.
func (c *TTLCache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (interface{}, error)) (interface{}, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(ctx, key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.SetTTL(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

// Delete removes a single key.
func (c *TTLCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePattern removes every entry whose key has the given prefix, used
// when a sync job finishes upserting an entity type so stale query results
// for that entity don't outlive the data they summarize.
func (c *TTLCache) InvalidatePattern(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidateAll clears every entry and bumps the version, for schema changes
// or manual cache busting.
func (c *TTLCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.entries = make(map[string]*entry)
}

func (c *TTLCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
