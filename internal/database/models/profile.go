package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/database/dbretry"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ProfileModel handles database operations for profile plugin configurations.
type ProfileModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewProfile creates a ProfileModel with database access.
func NewProfile(db *bun.DB, logger *zap.Logger) *ProfileModel {
	return &ProfileModel{
		db:     db,
		logger: logger.Named("db_profile"),
	}
}

// SetPlugin creates or replaces a user's plugin configuration.
func (r *ProfileModel) SetPlugin(ctx context.Context, userID snowflake.ID, plugin string, config json.RawMessage) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(&types.ProfilePlugin{
			UserID: userID,
			Plugin: plugin,
			Config: config,
		}).
			On("CONFLICT (user_id, plugin) DO UPDATE").
			Set("config = EXCLUDED.config").
			Set("updated_at = current_timestamp").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set profile plugin: %w (userID=%d, plugin=%s)", err, userID, plugin)
		}

		return nil
	})
}

// RemovePlugin deletes a user's plugin configuration and reports whether one existed.
func (r *ProfileModel) RemovePlugin(ctx context.Context, userID snowflake.ID, plugin string) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := r.db.NewDelete().
			Model((*types.ProfilePlugin)(nil)).
			Where("user_id = ?", userID).
			Where("plugin = ?", plugin).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to remove profile plugin: %w (userID=%d, plugin=%s)", err, userID, plugin)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to get affected rows: %w", err)
		}

		return affected > 0, nil
	})
}

// GetPlugins returns every plugin configuration of a user ordered by plugin name.
func (r *ProfileModel) GetPlugins(ctx context.Context, userID snowflake.ID) ([]*types.ProfilePlugin, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ProfilePlugin, error) {
		var plugins []*types.ProfilePlugin

		err := r.db.NewSelect().
			Model(&plugins).
			Where("user_id = ?", userID).
			Order("plugin ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile plugins: %w (userID=%d)", err, userID)
		}

		return plugins, nil
	})
}
