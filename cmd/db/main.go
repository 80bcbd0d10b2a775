package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/bytedance/sonic"
	"github.com/robalyx/snowball/internal/database"
	"github.com/robalyx/snowball/internal/preferences"
	"github.com/robalyx/snowball/internal/redis"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var (
	ErrNameRequired  = errors.New("NAME argument required")
	ErrPrefArgs      = errors.New("SCOPE and KEY arguments required")
	ErrInvalidJSON   = errors.New("VALUE must be valid JSON")
	ErrPrefNotExists = errors.New("preference does not exist")
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	deps, err := setupDeps()
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer deps.close()

	app := &cli.Command{
		Name:  "db",
		Usage: "Database management tool",
		Commands: []*cli.Command{
			migrationCommand("init", "Initialize migration tables", func(ctx context.Context, _ *cli.Command) error {
				return deps.migrator.Init(ctx)
			}),
			migrationCommand("migrate", "Run pending migrations", deps.migrate),
			migrationCommand("rollback", "Rollback the last migration group", deps.rollback),
			migrationCommand("status", "Show migration status", deps.status),
			{
				Name:      "create",
				Usage:     "Create a new Go migration file",
				ArgsUsage: "NAME",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 1 {
						return ErrNameRequired
					}

					mf, err := deps.migrator.CreateGoMigration(ctx, c.Args().First())
					if err != nil {
						return err
					}

					deps.logger.Info("Created Go migration",
						zap.String("name", mf.Name),
						zap.String("path", mf.Path),
					)

					return nil
				},
			},
			{
				Name:  "prefs",
				Usage: "Inspect or change stored preferences",
				Commands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Print a preference",
						ArgsUsage: "SCOPE KEY",
						Action:    deps.getPref,
					},
					{
						Name:      "set",
						Usage:     "Store a JSON value",
						ArgsUsage: "SCOPE KEY VALUE",
						Action:    deps.setPref,
					},
					{
						Name:      "remove",
						Usage:     "Delete a preference",
						ArgsUsage: "SCOPE KEY",
						Action:    deps.removePref,
					},
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func migrationCommand(name, usage string, action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:   name,
		Usage:  usage,
		Action: action,
	}
}

// dependencies holds the connections used by the commands.
type dependencies struct {
	db       database.Client
	migrator *migrate.Migrator
	redis    *redis.Manager
	prefs    *preferences.Cached
	logger   *zap.Logger
}

// setupDeps initializes the database connection, the migrator and the preference store.
func setupDeps() (*dependencies, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewConnection(context.Background(), &cfg.Common.PostgreSQL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	cache, err := redisManager.GetClient(redis.PreferenceCache)
	if err != nil {
		redisManager.Close()
		db.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &dependencies{
		db:       db,
		migrator: db.Migrator(),
		redis:    redisManager,
		prefs:    preferences.NewCached(db.Model().Preference(), cache, 0, logger),
		logger:   logger,
	}, nil
}

func (d *dependencies) close() {
	d.redis.Close()

	if err := d.db.Close(); err != nil {
		d.logger.Error("Failed to close database", zap.Error(err))
	}
}

func (d *dependencies) migrate(ctx context.Context, _ *cli.Command) error {
	group, err := d.db.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		d.logger.Info("No new migrations to run (database is up to date)")
		return nil
	}

	d.logger.Info("Successfully migrated", zap.String("group", group.String()))

	return nil
}

func (d *dependencies) rollback(ctx context.Context, _ *cli.Command) error {
	if err := d.migrator.Lock(ctx); err != nil {
		return err
	}
	defer d.migrator.Unlock(ctx) //nolint:errcheck

	group, err := d.migrator.Rollback(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		d.logger.Info("No groups to roll back")
		return nil
	}

	d.logger.Info("Successfully rolled back", zap.String("group", group.String()))

	return nil
}

func (d *dependencies) status(ctx context.Context, _ *cli.Command) error {
	ms, err := d.migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return err
	}

	d.logger.Info("Migration status",
		zap.String("migrations", ms.String()),
		zap.String("unapplied", ms.Unapplied().String()),
		zap.String("last_group", ms.LastGroup().String()),
	)

	return nil
}

func (d *dependencies) getPref(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return ErrPrefArgs
	}

	var value json.RawMessage

	found, err := d.prefs.Get(ctx, c.Args().Get(0), c.Args().Get(1), &value)
	if err != nil {
		return err
	}

	if !found {
		return ErrPrefNotExists
	}

	fmt.Println(string(value))

	return nil
}

func (d *dependencies) setPref(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 3 {
		return ErrPrefArgs
	}

	raw := c.Args().Get(2)
	if !sonic.Valid([]byte(raw)) {
		return ErrInvalidJSON
	}

	if err := d.prefs.Set(ctx, c.Args().Get(0), c.Args().Get(1), json.RawMessage(raw)); err != nil {
		return err
	}

	d.logger.Info("Preference stored",
		zap.String("scope", c.Args().Get(0)),
		zap.String("key", c.Args().Get(1)))

	return nil
}

func (d *dependencies) removePref(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return ErrPrefArgs
	}

	if err := d.prefs.Remove(ctx, c.Args().Get(0), c.Args().Get(1)); err != nil {
		return err
	}

	d.logger.Info("Preference removed",
		zap.String("scope", c.Args().Get(0)),
		zap.String("key", c.Args().Get(1)))

	return nil
}
