package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/robalyx/snowball/internal/database"
	"github.com/robalyx/snowball/internal/redis"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/robalyx/snowball/internal/setup/telemetry"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	ConfigDir    string             // Directory the configuration was loaded from
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database connection pool
	RedisManager *redis.Manager     // Redis connection manager
	LogManager   *telemetry.Manager // Log management system
	monitoring   *monitoringServer  // Health and metrics endpoints
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager, err := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, &cfg.Common.Sentry)
	if err != nil {
		return nil, err
	}

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		logManager.Stop()
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	db, err := checkAndRunMigrations(ctx, &cfg.Common.PostgreSQL, dbLogger)
	if err != nil {
		redisManager.Close()
		logManager.Stop()

		return nil, err
	}

	app := &App{
		Config:       cfg,
		ConfigDir:    configDir,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		LogManager:   logManager,
	}

	if cfg.Common.Monitoring.Enabled {
		srv, err := startMonitoringServer(&cfg.Common.Monitoring, app.healthChecks(), logger)
		if err != nil {
			logger.Error("Failed to start monitoring server", zap.Error(err))
		} else {
			app.monitoring = srv
		}

		if cfg.Common.Monitoring.EnablePprof {
			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	return app, nil
}

// healthChecks pings the database and the opened caches.
func (s *App) healthChecks() map[string]HealthCheck {
	return map[string]HealthCheck{
		"database": s.DB.Ping,
		"redis":    s.RedisManager.Ping,
	}
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	if s.monitoring != nil {
		if err := s.monitoring.shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown monitoring server", zap.Error(err))
		}
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Flush pending Sentry events
	s.LogManager.Stop()

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}

// checkAndRunMigrations connects to the database and asks before applying
// pending migrations.
func checkAndRunMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	db, err := database.NewConnection(ctx, cfg, dbLogger)
	if err != nil {
		return nil, err
	}

	pending, err := db.PendingMigrations(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	if len(pending) == 0 {
		return db, nil
	}

	log.Printf("%d database migrations are pending (%s). Would you like to run them now? (y/N)",
		len(pending), pending.String())

	var response string

	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		db.Close()
		log.Fatalf("Closing program due to incomplete migrations")
	}

	if _, err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
