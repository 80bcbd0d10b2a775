package whitelist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/snowball/internal/preferences"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return NewRedisCache(client, time.Minute), mr
}

func TestRedisCacheRecord(t *testing.T) {
	t.Parallel()

	cache, mr := setupRedisCache(t)
	ctx := t.Context()

	_, found, err := cache.GetRecord(ctx, testGuildID)
	require.NoError(t, err)
	assert.False(t, found)

	record := Record{Status: ptr(StateLimited), Until: ptr(fixedNow.UnixMilli())}
	require.NoError(t, cache.SetRecord(ctx, testGuildID, record))
	assert.Equal(t, time.Minute, mr.TTL("whitelist:status:"+testGuildID.String()))

	cached, found, err := cache.GetRecord(ctx, testGuildID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, record, cached)

	require.NoError(t, cache.InvalidateRecord(ctx, testGuildID))
	assert.False(t, mr.Exists("whitelist:status:"+testGuildID.String()))
}

func TestRedisCacheMode(t *testing.T) {
	t.Parallel()

	cache, mr := setupRedisCache(t)
	ctx := t.Context()

	mode := Mode{Whitelist: true, NoBotFarms: true}
	require.NoError(t, cache.SetMode(ctx, mode))

	stored, err := mr.Get("whitelist:mode")
	require.NoError(t, err)
	assert.Equal(t, "nobotfarms,whitelist", stored)

	cached, found, err := cache.GetMode(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, mode, cached)

	require.NoError(t, cache.InvalidateMode(ctx))

	_, found, err = cache.GetMode(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreInvalidatesCacheOnWrite(t *testing.T) {
	t.Parallel()

	cache, mr := setupRedisCache(t)
	prefs := preferences.NewMemory()
	store := NewStore(prefs, cache, Mode{Whitelist: true}, zap.NewNop())
	ctx := t.Context()

	record, err := store.Record(ctx, testGuildID)
	require.NoError(t, err)
	assert.Nil(t, record.Status)
	assert.True(t, mr.Exists("whitelist:status:"+testGuildID.String()))

	require.NoError(t, store.SetTimed(ctx, testGuildID, StateTrial, fixedNow))
	assert.False(t, mr.Exists("whitelist:status:"+testGuildID.String()))

	record, err = store.Record(ctx, testGuildID)
	require.NoError(t, err)
	require.NotNil(t, record.Status)
	assert.Equal(t, StateTrial, *record.Status)
	assert.Equal(t, fixedNow.UnixMilli(), *record.Until)

	// A write that bypasses the store is not visible until the cache is invalidated
	require.NoError(t, prefs.Set(ctx, preferences.GuildScope(testGuildID), statusKey, int(StateBanned)))

	record, err = store.Record(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, StateTrial, *record.Status)
}

func TestStoreMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stored any
		want   Mode
	}{
		{name: "missing uses default", want: Mode{Whitelist: true, TrialAllowed: true}},
		{name: "flag list", stored: "nobotfarms,whitelist", want: Mode{Whitelist: true, NoBotFarms: true}},
		{name: "legacy bitmask", stored: 2 | 8, want: Mode{Whitelist: true, NoBotFarms: true}},
		{name: "empty list disables everything", stored: "", want: Mode{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cache, _ := setupRedisCache(t)
			prefs := preferences.NewMemory()
			store := NewStore(prefs, cache, Mode{Whitelist: true, TrialAllowed: true}, zap.NewNop())

			if tt.stored != nil {
				require.NoError(t, prefs.Set(t.Context(), preferences.GlobalScope, modeKey, tt.stored))
			}

			mode, err := store.Mode(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)

			// Second read is served from the cache
			mode, err = store.Mode(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestStoreSetModeInvalidates(t *testing.T) {
	t.Parallel()

	cache, _ := setupRedisCache(t)
	store := NewStore(preferences.NewMemory(), cache, Mode{Whitelist: true}, zap.NewNop())
	ctx := t.Context()

	_, err := store.Mode(ctx)
	require.NoError(t, err)

	require.NoError(t, store.SetMode(ctx, Mode{TrialAllowed: true}))

	mode, err := store.Mode(ctx)
	require.NoError(t, err)
	assert.Equal(t, Mode{TrialAllowed: true}, mode)
}

// failingStatusPrefs rejects every write of the status key.
type failingStatusPrefs struct {
	*preferences.Memory
}

func (p failingStatusPrefs) Set(ctx context.Context, scope, key string, value any) error {
	if key == statusKey {
		return errors.New("connection reset by peer")
	}

	return p.Memory.Set(ctx, scope, key, value)
}

func TestStoreSetTimedRollsBackOnStatusFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous *int64
	}{
		{name: "no previous end date"},
		{name: "previous end date", previous: ptr(fixedNow.Add(-time.Hour).UnixMilli())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cache, mr := setupRedisCache(t)
			memory := preferences.NewMemory()
			store := NewStore(failingStatusPrefs{Memory: memory}, cache, Mode{Whitelist: true}, zap.NewNop())
			ctx := t.Context()
			scope := preferences.GuildScope(testGuildID)

			if tt.previous != nil {
				require.NoError(t, memory.Set(ctx, scope, untilKey, *tt.previous))
			}

			_, err := store.Record(ctx, testGuildID)
			require.NoError(t, err)
			require.True(t, mr.Exists("whitelist:status:"+testGuildID.String()))

			err = store.SetTimed(ctx, testGuildID, StateLimited, fixedNow.Add(time.Hour))
			require.Error(t, err)

			// The cached record is dropped even though the write failed
			assert.False(t, mr.Exists("whitelist:status:"+testGuildID.String()))

			var until int64

			found, err := memory.Get(ctx, scope, untilKey, &until)
			require.NoError(t, err)

			if tt.previous == nil {
				assert.False(t, found)
				return
			}

			require.True(t, found)
			assert.Equal(t, *tt.previous, until)
		})
	}
}
