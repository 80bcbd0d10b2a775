package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/robalyx/snowball/internal/database/dbretry"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PreferenceModel handles database operations for guild and global preferences.
type PreferenceModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPreference creates a PreferenceModel with database access.
func NewPreference(db *bun.DB, logger *zap.Logger) *PreferenceModel {
	return &PreferenceModel{
		db:     db,
		logger: logger.Named("db_preference"),
	}
}

// GetRaw retrieves the stored JSON value of a preference.
// The boolean result is false when the preference does not exist.
func (r *PreferenceModel) GetRaw(ctx context.Context, scope, key string) (json.RawMessage, bool, error) {
	pref, err := dbretry.Operation(ctx, func(ctx context.Context) (*types.Preference, error) {
		pref := &types.Preference{Scope: scope, Key: key}

		err := r.db.NewSelect().Model(pref).
			WherePK().
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get preference: %w (scope=%s, key=%s)", err, scope, key)
		}

		return pref, nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return pref.Value, true, nil
}

// SetRaw creates or replaces a preference value.
func (r *PreferenceModel) SetRaw(ctx context.Context, scope, key string, value json.RawMessage) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(&types.Preference{
			Scope: scope,
			Key:   key,
			Value: value,
		}).
			On("CONFLICT (scope, key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = current_timestamp").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set preference: %w (scope=%s, key=%s)", err, scope, key)
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Set preference", zap.String("scope", scope), zap.String("key", key))

	return nil
}

// Remove deletes a preference. Removing a missing preference is not an error.
func (r *PreferenceModel) Remove(ctx context.Context, scope, key string) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewDelete().
			Model((*types.Preference)(nil)).
			Where("scope = ?", scope).
			Where("key = ?", key).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove preference: %w (scope=%s, key=%s)", err, scope, key)
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Removed preference", zap.String("scope", scope), zap.String("key", key))

	return nil
}
