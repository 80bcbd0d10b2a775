package types

import (
	"encoding/json"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// ProfilePlugin is the stored configuration of one profile plugin for a user.
type ProfilePlugin struct {
	bun.BaseModel `bun:"table:profile_plugins"`

	UserID    snowflake.ID    `bun:",pk"`
	Plugin    string          `bun:",pk"`
	Config    json.RawMessage `bun:"type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:",nullzero,notnull,default:current_timestamp"`
}
