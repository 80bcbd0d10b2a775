package count

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/database/types"
)

// Verdict is the outcome of validating a typed number.
type Verdict int

const (
	// VerdictAccept means the number continues the count.
	VerdictAccept Verdict = iota
	// VerdictNoPrevious means the game has no entry to continue from.
	VerdictNoPrevious
	// VerdictCooldown means the author typed the previous number too recently.
	VerdictCooldown
	// VerdictWrongNumber means the number is not the previous one plus one.
	VerdictWrongNumber
)

// String returns the verdict name used in metrics.
func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictNoPrevious:
		return "no_previous"
	case VerdictCooldown:
		return "cooldown"
	case VerdictWrongNumber:
		return "wrong_number"
	default:
		return "unknown"
	}
}

// Validate decides whether value typed by author at now continues prev.
func Validate(prev *types.CountEntry, author snowflake.ID, value int64, now time.Time, cooldown time.Duration) Verdict {
	if prev == nil {
		return VerdictNoPrevious
	}

	if prev.Author == author && now.Sub(prev.Date) < cooldown {
		return VerdictCooldown
	}

	if value != prev.Count+1 {
		return VerdictWrongNumber
	}

	return VerdictAccept
}
