package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// CountEntry is an accepted number of the counting game.
type CountEntry struct {
	bun.BaseModel `bun:"table:count"`

	ID     int64        `bun:",pk,autoincrement"`
	Count  int64        `bun:",notnull"`
	Author snowflake.ID `bun:",notnull"`
	Date   time.Time    `bun:",notnull"`
}
