package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every registered schema migration in version order.
var Migrations = migrate.NewMigrations() //nolint:gochecknoglobals // -
