// Package preferences stores small JSON values per guild or globally.
package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/database/types"
)

// Store persists preferences. Values are JSON encoded.
type Store interface {
	// Get decodes the value into out and reports whether the preference exists.
	Get(ctx context.Context, scope, key string, out any) (bool, error)
	// Set creates or replaces a preference.
	Set(ctx context.Context, scope, key string, value any) error
	// Remove deletes a preference. Removing a missing preference is not an error.
	Remove(ctx context.Context, scope, key string) error
}

// Backend is the raw persistence layer behind a Store.
type Backend interface {
	GetRaw(ctx context.Context, scope, key string) (json.RawMessage, bool, error)
	SetRaw(ctx context.Context, scope, key string, value json.RawMessage) error
	Remove(ctx context.Context, scope, key string) error
}

// GuildScope returns the scope of a guild's preferences.
func GuildScope(guildID snowflake.ID) string {
	return strconv.FormatUint(uint64(guildID), 10)
}

// GlobalScope is the scope of bot-wide preferences.
const GlobalScope = types.GlobalScope

func encode(value any) (json.RawMessage, error) {
	data, err := sonic.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preference: %w", err)
	}

	return data, nil
}

func decode(data []byte, out any) error {
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode preference: %w", err)
	}

	return nil
}
