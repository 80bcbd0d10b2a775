package types

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// GlobalScope is the preference scope shared by every guild.
const GlobalScope = "global"

// Preference is a single key/value entry scoped to a guild or to GlobalScope.
type Preference struct {
	bun.BaseModel `bun:"table:guild_preferences"`

	Scope     string          `bun:",pk"`
	Key       string          `bun:",pk"`
	Value     json.RawMessage `bun:"type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:",nullzero,notnull,default:current_timestamp"`
}
