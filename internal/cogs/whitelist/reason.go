package whitelist

import (
	"fmt"

	"github.com/robalyx/snowball/internal/bot/utils"
)

// Reason explains a guild departure to the guild's staff.
type Reason int

const (
	// ReasonNone leaves without notifying anyone.
	ReasonNone Reason = iota
	ReasonTrialExpired
	ReasonExpired
	ReasonBotFarm
	ReasonNoMembers
	ReasonManyMembers
	ReasonNoTrial
)

// String returns the reason code used in logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonTrialExpired:
		return "TRIALEXPIRED"
	case ReasonExpired:
		return "EXPIRED"
	case ReasonBotFarm:
		return "BOTFARM"
	case ReasonNoMembers:
		return "NOMEMBERS"
	case ReasonManyMembers:
		return "MANYMEMBERS"
	case ReasonNoTrial:
		return "NOTRIAL"
	default:
		return "UNKNOWN"
	}
}

// Message renders the notice posted before leaving.
func (r Reason) Message(guildName, signupURL string) string {
	name := utils.EscapeMarkdown(guildName)

	var body string

	switch r {
	case ReasonTrialExpired:
		body = fmt.Sprintf("The trial period of **%s** has ended.", name)
	case ReasonExpired:
		body = fmt.Sprintf("The whitelist of **%s** has expired.", name)
	case ReasonBotFarm:
		body = fmt.Sprintf("**%s** has too many bots compared to its members.", name)
	case ReasonNoMembers:
		body = fmt.Sprintf("**%s** does not have enough members to receive a trial.", name)
	case ReasonManyMembers:
		body = fmt.Sprintf("**%s** has too many members to receive a trial.", name)
	case ReasonNoTrial:
		body = fmt.Sprintf("Trials are currently not available, so I cannot stay in **%s**.", name)
	case ReasonNone:
		return ""
	default:
		body = fmt.Sprintf("I have to leave **%s**.", name)
	}

	return body + "\nIf you want to keep the bot, you can request access here: " + signupURL
}
