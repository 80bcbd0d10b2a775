package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// DefaultCacheTTL is how long a looked up preference stays in Redis.
	DefaultCacheTTL = 10 * time.Minute

	// tombstone marks a preference known to be absent.
	tombstone = "\x00"
)

// Cached is a Store that reads through Redis and writes through to the backend.
// Writes delete the cached key after the backend accepted them.
type Cached struct {
	backend Backend
	cache   rueidis.Client
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCached fronts a backend with a Redis cache.
func NewCached(backend Backend, cache rueidis.Client, ttl time.Duration, logger *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Cached{
		backend: backend,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.Named("preferences"),
	}
}

// Get decodes the value into out and reports whether the preference exists.
// Cache failures fall back to the backend.
func (c *Cached) Get(ctx context.Context, scope, key string, out any) (bool, error) {
	cacheKey := cacheKey(scope, key)

	cached, err := c.cache.Do(ctx, c.cache.B().Get().Key(cacheKey).Build()).ToString()
	switch {
	case err == nil && cached == tombstone:
		return false, nil
	case err == nil:
		return true, decode([]byte(cached), out)
	case !rueidis.IsRedisNil(err):
		c.logger.Warn("Failed to read preference cache",
			zap.String("key", cacheKey),
			zap.Error(err))
	}

	raw, found, err := c.backend.GetRaw(ctx, scope, key)
	if err != nil {
		return false, err
	}

	value := tombstone
	if found {
		value = string(raw)
	}

	err = c.cache.Do(ctx, c.cache.B().Set().Key(cacheKey).Value(value).Ex(c.ttl).Build()).Error()
	if err != nil {
		c.logger.Warn("Failed to populate preference cache",
			zap.String("key", cacheKey),
			zap.Error(err))
	}

	if !found {
		return false, nil
	}

	return true, decode(raw, out)
}

// Set creates or replaces a preference and invalidates its cache entry.
func (c *Cached) Set(ctx context.Context, scope, key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}

	if err := c.backend.SetRaw(ctx, scope, key, json.RawMessage(raw)); err != nil {
		return err
	}

	return c.invalidate(ctx, scope, key)
}

// Remove deletes a preference and invalidates its cache entry.
func (c *Cached) Remove(ctx context.Context, scope, key string) error {
	if err := c.backend.Remove(ctx, scope, key); err != nil {
		return err
	}

	return c.invalidate(ctx, scope, key)
}

func (c *Cached) invalidate(ctx context.Context, scope, key string) error {
	cacheKey := cacheKey(scope, key)

	if err := c.cache.Do(ctx, c.cache.B().Del().Key(cacheKey).Build()).Error(); err != nil {
		return fmt.Errorf("failed to invalidate preference cache: %w (key=%s)", err, cacheKey)
	}

	return nil
}

func cacheKey(scope, key string) string {
	return "pref:" + scope + ":" + key
}
