package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrConfigInvalid         = errors.New("config file is invalid")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.4.0"

// Current version of the config files.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Bot    BotConfig    `koanf:"bot"`
}

// CommonConfig contains configuration shared between the bot and the db tool.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Sentry     Sentry     `koanf:"sentry"`
	Monitoring Monitoring `koanf:"monitoring"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level" default:"info"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep" default:"10"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines" default:"10000"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host" validate:"required"`
	// Database port.
	Port int `koanf:"port" default:"5432"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name" validate:"required"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns" default:"10"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns" default:"5"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime" default:"30"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time" default:"10"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host" validate:"required"`
	// Redis port.
	Port int `koanf:"port" default:"6379"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Sentry contains error tracking configuration.
type Sentry struct {
	// DSN of the Sentry project. Empty disables reporting.
	DSN string `koanf:"dsn"`
	// Environment name attached to events.
	Environment string `koanf:"environment" default:"production"`
}

// Monitoring contains the health and metrics endpoint configuration.
type Monitoring struct {
	// Enable the monitoring server.
	Enabled bool `koanf:"enabled"`
	// Address the monitoring server listens on.
	Host string `koanf:"host" default:"localhost"`
	// Port the monitoring server listens on.
	Port int `koanf:"port" default:"9102"`
	// Mount pprof handlers under /debug. Never expose this publicly.
	EnablePprof bool `koanf:"enable_pprof"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Handler timeout for a single event.
	HandlerTimeout time.Duration `koanf:"handler_timeout" default:"30s"`
	// Discord configuration.
	Discord   Discord   `koanf:"discord"`
	Whitelist Whitelist `koanf:"whitelist"`
	Archive   Archive   `koanf:"archive"`
	Count     Count     `koanf:"count"`
	Profiles  Profiles  `koanf:"profiles"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token" validate:"required"`
	// User ID of the bot owner.
	OwnerID uint64 `koanf:"owner_id" validate:"required"`
}

// Whitelist configures the guild gatekeeper.
type Whitelist struct {
	// Guilds that can never be left by the bot.
	AlwaysWhitelisted []uint64 `koanf:"always_whitelisted"`
	// Minimum members required to receive a trial.
	MinMembers int `koanf:"min_members" default:"50"`
	// Maximum members allowed to receive a trial.
	MaxMembers int `koanf:"max_members" default:"25000"`
	// Maximum bot percentage before a guild is treated as a bot farm.
	BotsThreshold int `koanf:"bots_threshold" default:"70"`
	// Modes enabled when none is stored.
	DefaultMode []string `koanf:"default_mode" default:"[\"whitelist\",\"trial\",\"nobotfarms\",\"nolowmembers\",\"nomaxmembers\"]"`
	// Link shown to guilds when the bot leaves.
	SignupURL string `koanf:"signup_url" validate:"required,url"`
	// Length of a trial.
	TrialTime time.Duration `koanf:"trial_time" default:"24h"`
	// Interval between sweeps of joined guilds.
	SweepInterval time.Duration `koanf:"sweep_interval" default:"30m"`
	// Number of guilds evaluated concurrently during a sweep.
	SweepConcurrency int `koanf:"sweep_concurrency" default:"4"`
	// Minimum delay between guild departures.
	LeaveInterval time.Duration `koanf:"leave_interval" default:"1s"`
}

// Archive configures the message archive.
type Archive struct {
	// Record messages sent by bots.
	Bots bool `koanf:"bots"`
	// Authors never recorded.
	BannedAuthors []uint64 `koanf:"banned_authors"`
	// Channels never recorded.
	BannedChannels []uint64 `koanf:"banned_channels"`
	// Guilds never recorded.
	BannedGuilds []uint64 `koanf:"banned_guilds"`
}

// Count configures the counting game.
type Count struct {
	// Channel the game runs in. Zero disables the game.
	ChannelID uint64 `koanf:"channel_id"`
	// Time before the same author may count again.
	Cooldown time.Duration `koanf:"cooldown" default:"180s"`
	// The bot answers once every N accepted numbers on average.
	BotReplyChance int `koanf:"bot_reply_chance" default:"6"`
}

// Profiles configures the profile plugins.
type Profiles struct {
	// Timeout for third-party API requests.
	RequestTimeout time.Duration  `koanf:"request_timeout" default:"10s"`
	Retry          Retry          `koanf:"retry"`
	CircuitBreaker CircuitBreaker `koanf:"circuit_breaker"`
	LastFM         LastFM         `koanf:"lastfm"`
	Overwatch      Overwatch      `koanf:"overwatch"`
}

// Retry configures retries of failed third-party requests.
type Retry struct {
	MaxRetries uint64        `koanf:"max_retries" default:"2"`
	Delay      time.Duration `koanf:"delay"       default:"500ms"`
	MaxDelay   time.Duration `koanf:"max_delay"   default:"5s"`
}

// CircuitBreaker stops calling an API that keeps failing.
type CircuitBreaker struct {
	// Requests allowed through while the circuit is half-open.
	MaxRequests uint32 `koanf:"max_requests" default:"3"`
	// Period after which failure counts are cleared while closed.
	Interval time.Duration `koanf:"interval" default:"1m"`
	// How long the circuit stays open before trying again.
	Timeout time.Duration `koanf:"timeout" default:"30s"`
}

// LastFM configures the Last.fm plugin.
type LastFM struct {
	// Base URL of the Last.fm API.
	BaseURL string `koanf:"base_url" default:"https://ws.audioscrobbler.com/2.0/"`
	// API key for ws.audioscrobbler.com.
	APIKey string `koanf:"api_key"`
	// Emoji shown next to the plugin name.
	LogoEmoji string `koanf:"logo_emoji" default:"🎧"`
	// Emoji shown when nothing was scrobbled.
	GhostEmoji string `koanf:"ghost_emoji" default:"👻"`
	// Response cache lifetime.
	CacheTTL time.Duration `koanf:"cache_ttl" default:"2m"`
}

// Overwatch configures the Overwatch plugin.
type Overwatch struct {
	// Base URL of the stats API.
	BaseURL string `koanf:"base_url" default:"https://owapi.net/api/v3"`
	// Emojis used by the embed field, keyed by name.
	Emojis map[string]string `koanf:"emojis"`
	// Response cache lifetime.
	CacheTTL time.Duration `koanf:"cache_ttl" default:"5m"`
}

// LoadConfig loads the configuration from the default search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadFrom([]string{
		".snowball",
		filepath.Join(homeDir, ".snowball", "config"),
		"/etc/snowball/config",
		"/app/config",
		"config",
		".",
	})
}

// LoadFrom loads common.toml and bot.toml from the first matching search path.
func LoadFrom(configPaths []string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string

	for _, configName := range []string{"common", "bot"} {
		configLoaded := false

		for _, path := range configPaths {
			configPath := filepath.Join(path, configName+".toml")
			if _, err := os.Stat(configPath); err != nil {
				continue
			}

			// Each file is nested under its own name, so bot.toml keys land under "bot"
			sub := koanf.New(".")
			if err := sub.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, "", fmt.Errorf("failed to parse %s: %w", configPath, err)
			}

			if err := k.MergeAt(sub, configName); err != nil {
				return nil, "", fmt.Errorf("failed to merge %s: %w", configPath, err)
			}

			configLoaded = true

			if usedConfigPath == "" {
				usedConfigPath = path
			}

			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Defaults only fill fields the files left at their zero value
	if err := defaults.Set(&config); err != nil {
		return nil, "", fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	config.Bot.Whitelist.normalize()

	if err := validator.New().Struct(&config); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return &config, usedConfigPath, nil
}

// normalize clamps the whitelist thresholds into their valid ranges.
func (w *Whitelist) normalize() {
	w.MinMembers = max(0, w.MinMembers)
	w.MaxMembers = max(0, w.MaxMembers)
	w.BotsThreshold = max(0, min(100, w.BotsThreshold))
	w.SweepConcurrency = max(1, w.SweepConcurrency)
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/snowball/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
