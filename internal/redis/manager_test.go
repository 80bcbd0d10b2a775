package redis

import (
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	manager := NewManager(&config.Redis{Host: host, Port: portNum}, zap.NewNop())
	t.Cleanup(manager.Close)

	return manager, mr
}

func TestManagerSeparatesCaches(t *testing.T) {
	t.Parallel()

	manager, mr := setupManager(t)
	ctx := t.Context()

	prefs, err := manager.GetClient(PreferenceCache)
	require.NoError(t, err)

	again, err := manager.GetClient(PreferenceCache)
	require.NoError(t, err)
	assert.Same(t, prefs, again)

	profiles, err := manager.GetClient(ProfileCache)
	require.NoError(t, err)

	require.NoError(t, prefs.Do(ctx, prefs.B().Set().Key("k").Value("prefs").Build()).Error())
	require.NoError(t, profiles.Do(ctx, profiles.B().Set().Key("k").Value("profiles").Build()).Error())

	mr.Select(int(PreferenceCache))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "prefs", got)

	mr.Select(int(ProfileCache))
	got, err = mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "profiles", got)

	require.NoError(t, manager.Ping(ctx))
}

func TestManagerPingUnreachable(t *testing.T) {
	t.Parallel()

	manager, mr := setupManager(t)
	mr.Close()

	require.Error(t, manager.Ping(t.Context()))
}

func TestCacheString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "preferences", PreferenceCache.String())
	assert.Equal(t, "whitelist", WhitelistCache.String())
	assert.Equal(t, "profiles", ProfileCache.String())
	assert.Equal(t, "cache_7", Cache(7).String())
}
