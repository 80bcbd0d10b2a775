package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/database/dbretry"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ArchiveModel handles database operations for archived messages.
type ArchiveModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewArchive creates an ArchiveModel with database access.
func NewArchive(db *bun.DB, logger *zap.Logger) *ArchiveModel {
	return &ArchiveModel{
		db:     db,
		logger: logger.Named("db_archive"),
	}
}

// InsertMessage stores a message. Messages that were already recorded are ignored.
func (r *ArchiveModel) InsertMessage(ctx context.Context, msg *types.ArchivedMessage) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(msg).
			On("CONFLICT (message_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to archive message: %w (messageID=%d)", err, msg.MessageID)
		}

		return nil
	})
}

// GetMessage retrieves an archived message by its ID.
// Returns types.ErrRecordNotFound when the message was never recorded.
func (r *ArchiveModel) GetMessage(ctx context.Context, messageID snowflake.ID) (*types.ArchivedMessage, error) {
	msg, err := dbretry.Operation(ctx, func(ctx context.Context) (*types.ArchivedMessage, error) {
		msg := &types.ArchivedMessage{MessageID: messageID}

		err := r.db.NewSelect().Model(msg).
			WherePK().
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get archived message: %w (messageID=%d)", err, messageID)
		}

		return msg, nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrRecordNotFound
	}

	return msg, err
}

// Search returns at most limit messages matching the filter, newest first, skipping offset rows.
func (r *ArchiveModel) Search(
	ctx context.Context, filter types.ArchiveFilter, limit, offset int,
) ([]*types.ArchivedMessage, error) {
	messages, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ArchivedMessage, error) {
		var messages []*types.ArchivedMessage

		query := r.db.NewSelect().
			Model(&messages).
			Where("guild_id = ?", filter.GuildID)

		if len(filter.ChannelIDs) > 0 {
			query = query.Where("channel_id IN (?)", bun.In(filter.ChannelIDs))
		}

		if len(filter.AuthorIDs) > 0 {
			query = query.Where("author_id IN (?)", bun.In(filter.AuthorIDs))
		}

		err := query.
			Order("message_id DESC").
			Limit(limit).
			Offset(offset).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to search archive: %w (guildID=%d)", err, filter.GuildID)
		}

		return messages, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Searched archive",
		zap.Uint64("guildID", uint64(filter.GuildID)),
		zap.Int("channels", len(filter.ChannelIDs)),
		zap.Int("authors", len(filter.AuthorIDs)),
		zap.Int("found", len(messages)))

	return messages, nil
}
