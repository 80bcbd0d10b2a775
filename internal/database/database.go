package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/snowball/internal/database/migrations"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunjson"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// sonicProvider is a JSON provider that uses Sonic for encoding and decoding.
type sonicProvider struct{}

func (sonicProvider) Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func (sonicProvider) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

func (sonicProvider) NewEncoder(w io.Writer) bunjson.Encoder {
	return sonic.ConfigDefault.NewEncoder(w)
}

func (sonicProvider) NewDecoder(r io.Reader) bunjson.Decoder {
	return sonic.ConfigDefault.NewDecoder(r)
}

// Client is the bot's PostgreSQL store: the model repository plus the
// schema migrations it depends on.
type Client interface {
	// Model returns the repository containing all model operations.
	Model() *Repository
	// Migrator returns the migrator over the snowball migrations.
	Migrator() *migrate.Migrator
	// PendingMigrations lists migrations not yet applied, creating the
	// migration tables on a fresh database.
	PendingMigrations(ctx context.Context) (migrate.MigrationSlice, error)
	// Migrate applies all pending migrations under the migration lock.
	Migrate(ctx context.Context) (*migrate.MigrationGroup, error)
	// Ping checks that PostgreSQL answers.
	Ping(ctx context.Context) error
	// Close gracefully shuts down the database connection.
	Close() error
}

type clientImpl struct {
	db       *bun.DB
	migrator *migrate.Migrator
	logger   *zap.Logger
	repo     *Repository
}

// NewConnection opens the connection pool and verifies it with a ping.
func NewConnection(ctx context.Context, config *config.PostgreSQL, logger *zap.Logger) (Client, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", config.Host, config.Port)),
		pgdriver.WithUser(config.User),
		pgdriver.WithPassword(config.Password),
		pgdriver.WithDatabase(config.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName("snowball"),
	))

	sqldb.SetMaxOpenConns(config.MaxOpenConns)
	sqldb.SetMaxIdleConns(config.MaxIdleConns)
	sqldb.SetConnMaxLifetime(time.Duration(config.MaxLifetime) * time.Minute)
	sqldb.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Minute)

	// Archive extras and preference values are JSON columns
	bunjson.SetProvider(sonicProvider{})

	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(NewHook(logger))

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", config.Host),
		zap.String("database", config.DBName))

	return &clientImpl{
		db:       db,
		migrator: migrate.NewMigrator(db, migrations.Migrations),
		logger:   logger,
		repo:     NewRepository(db, logger),
	}, nil
}

// Model returns the repository containing all model operations.
func (c *clientImpl) Model() *Repository {
	return c.repo
}

// Migrator returns the migrator over the snowball migrations.
func (c *clientImpl) Migrator() *migrate.Migrator {
	return c.migrator
}

// PendingMigrations lists migrations not yet applied.
func (c *clientImpl) PendingMigrations(ctx context.Context) (migrate.MigrationSlice, error) {
	if err := c.migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migration tables: %w", err)
	}

	ms, err := c.migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	return ms.Unapplied(), nil
}

// Migrate applies all pending migrations under the migration lock.
func (c *clientImpl) Migrate(ctx context.Context) (*migrate.MigrationGroup, error) {
	if err := c.migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migration tables: %w", err)
	}

	if err := c.migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock migrations: %w", err)
	}
	defer c.migrator.Unlock(ctx) //nolint:errcheck

	group, err := c.migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if !group.IsZero() {
		c.logger.Info("Ran migrations", zap.String("group", group.String()))
	}

	return group, nil
}

// Ping checks that PostgreSQL answers.
func (c *clientImpl) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close gracefully shuts down the database connection.
func (c *clientImpl) Close() error {
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}

	c.logger.Info("Database connection closed")

	return nil
}
