package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/robalyx/snowball/internal/database/dbretry"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// CountModel handles database operations for the counting game.
type CountModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewCount creates a CountModel with database access.
func NewCount(db *bun.DB, logger *zap.Logger) *CountModel {
	return &CountModel{
		db:     db,
		logger: logger.Named("db_count"),
	}
}

// Latest returns the entry with the highest count, or nil when the game has not started.
func (r *CountModel) Latest(ctx context.Context) (*types.CountEntry, error) {
	entry, err := dbretry.Operation(ctx, func(ctx context.Context) (*types.CountEntry, error) {
		entry := new(types.CountEntry)

		err := r.db.NewSelect().Model(entry).
			Order("count DESC", "id DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest count: %w", err)
		}

		return entry, nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no entry yet
	}

	return entry, err
}

// Insert stores an accepted number.
func (r *CountModel) Insert(ctx context.Context, entry *types.CountEntry) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(entry).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert count: %w (count=%d)", err, entry.Count)
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Inserted count",
		zap.Int64("count", entry.Count),
		zap.Uint64("author", uint64(entry.Author)))

	return nil
}
