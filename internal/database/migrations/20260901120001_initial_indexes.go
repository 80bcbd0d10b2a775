package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_archive_messages_guild ON archive_messages (guild_id, message_id DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_archive_messages_channel ON archive_messages (channel_id)`,
			`CREATE INDEX IF NOT EXISTS idx_archive_messages_author ON archive_messages (author_id)`,
			`CREATE INDEX IF NOT EXISTS idx_count_count ON count (count DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_guild_preferences_key ON guild_preferences (key)`,
		}

		for _, index := range indexes {
			if _, err := db.ExecContext(ctx, index); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `
			DROP INDEX IF EXISTS idx_archive_messages_guild;
			DROP INDEX IF EXISTS idx_archive_messages_channel;
			DROP INDEX IF EXISTS idx_archive_messages_author;
			DROP INDEX IF EXISTS idx_count_count;
			DROP INDEX IF EXISTS idx_guild_preferences_key;
		`)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
