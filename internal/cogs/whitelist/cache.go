package whitelist

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
)

// DefaultCacheTTL bounds how long a cached record survives without invalidation.
const DefaultCacheTTL = 10 * time.Minute

// Cache holds whitelist records and the current mode between lookups.
// A miss is reported with found=false and no error.
type Cache interface {
	GetRecord(ctx context.Context, guildID snowflake.ID) (Record, bool, error)
	SetRecord(ctx context.Context, guildID snowflake.ID, record Record) error
	InvalidateRecord(ctx context.Context, guildID snowflake.ID) error
	GetMode(ctx context.Context) (Mode, bool, error)
	SetMode(ctx context.Context, mode Mode) error
	InvalidateMode(ctx context.Context) error
}

// RedisCache stores records as JSON and the mode in its serialized form.
type RedisCache struct {
	client rueidis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache on a rueidis client.
func NewRedisCache(client rueidis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &RedisCache{client: client, ttl: ttl}
}

// GetRecord implements Cache.
func (c *RedisCache) GetRecord(ctx context.Context, guildID snowflake.ID) (Record, bool, error) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(recordKey(guildID)).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return Record{}, false, nil
	}

	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get cached record: %w", err)
	}

	var record Record
	if err := sonic.Unmarshal(data, &record); err != nil {
		return Record{}, false, fmt.Errorf("failed to decode cached record: %w", err)
	}

	return record, true, nil
}

// SetRecord implements Cache.
func (c *RedisCache) SetRecord(ctx context.Context, guildID snowflake.ID, record Record) error {
	data, err := sonic.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	cmd := c.client.B().Set().Key(recordKey(guildID)).Value(rueidis.BinaryString(data)).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}

	return nil
}

// InvalidateRecord implements Cache.
func (c *RedisCache) InvalidateRecord(ctx context.Context, guildID snowflake.ID) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(recordKey(guildID)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to invalidate cached record: %w", err)
	}

	return nil
}

// GetMode implements Cache.
func (c *RedisCache) GetMode(ctx context.Context) (Mode, bool, error) {
	serialized, err := c.client.Do(ctx, c.client.B().Get().Key(modeKey).Build()).ToString()
	if rueidis.IsRedisNil(err) {
		return Mode{}, false, nil
	}

	if err != nil {
		return Mode{}, false, fmt.Errorf("failed to get cached mode: %w", err)
	}

	mode, err := ParseMode(serialized)
	if err != nil {
		return Mode{}, false, err
	}

	return mode, true, nil
}

// SetMode implements Cache.
func (c *RedisCache) SetMode(ctx context.Context, mode Mode) error {
	cmd := c.client.B().Set().Key(modeKey).Value(mode.Serialize()).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to cache mode: %w", err)
	}

	return nil
}

// InvalidateMode implements Cache.
func (c *RedisCache) InvalidateMode(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(modeKey).Build()).Error(); err != nil {
		return fmt.Errorf("failed to invalidate cached mode: %w", err)
	}

	return nil
}

func recordKey(guildID snowflake.ID) string {
	return "whitelist:status:" + strconv.FormatUint(uint64(guildID), 10)
}

var _ Cache = (*RedisCache)(nil)
