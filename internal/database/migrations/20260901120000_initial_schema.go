package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/snowball/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.Preference)(nil),
			(*types.ArchivedMessage)(nil),
			(*types.CountEntry)(nil),
			(*types.ProfilePlugin)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.ProfilePlugin)(nil),
			(*types.CountEntry)(nil),
			(*types.ArchivedMessage)(nil),
			(*types.Preference)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Cascade().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}
