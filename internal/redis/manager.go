// Package redis hands out the Redis clients backing the bot's caches.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/rueidis"
	"github.com/robalyx/snowball/internal/setup/config"
	"go.uber.org/zap"
)

// Cache selects one of the bot's caches. Each cache lives in its own
// logical Redis database so it can be flushed on its own.
type Cache int

const (
	// PreferenceCache holds cached guild and global preferences.
	PreferenceCache Cache = iota
	// WhitelistCache holds cached whitelist records and the whitelist mode.
	WhitelistCache
	// ProfileCache holds third-party profile API responses.
	ProfileCache
)

// String returns the name used in logs and client names.
func (c Cache) String() string {
	switch c {
	case PreferenceCache:
		return "preferences"
	case WhitelistCache:
		return "whitelist"
	case ProfileCache:
		return "profiles"
	default:
		return fmt.Sprintf("cache_%d", int(c))
	}
}

// Manager lazily opens one client per cache and shares it between callers.
type Manager struct {
	clients map[Cache]rueidis.Client
	config  *config.Redis
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewManager creates a Manager without opening any connection.
func NewManager(config *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[Cache]rueidis.Client),
		config:  config,
		logger:  logger.Named("redis"),
	}
}

// GetClient returns the client of a cache, connecting on first use.
func (m *Manager) GetClient(cache Cache) (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[cache]; exists {
		return client, nil
	}

	// The caches only use plain commands, so server-assisted client caching stays off
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)},
		Username:     m.config.Username,
		Password:     m.config.Password,
		SelectDB:     int(cache),
		ClientName:   "snowball:" + cache.String(),
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the %s cache: %w", cache, err)
	}

	m.clients[cache] = client
	m.logger.Info("Connected to cache", zap.String("cache", cache.String()))

	return client, nil
}

// Ping checks every cache that has been opened, connecting the preference
// cache first so a fresh process still reports whether Redis is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if _, err := m.GetClient(PreferenceCache); err != nil {
		return err
	}

	m.mu.Lock()
	clients := make(map[Cache]rueidis.Client, len(m.clients))
	for cache, client := range m.clients {
		clients[cache] = client
	}
	m.mu.Unlock()

	for cache, client := range clients {
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			return fmt.Errorf("%s cache: %w", cache, err)
		}
	}

	return nil
}

// Close shuts down every client. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for cache, client := range m.clients {
		client.Close()
		delete(m.clients, cache)
		m.logger.Info("Closed cache connection", zap.String("cache", cache.String()))
	}
}
