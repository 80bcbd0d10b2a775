package whitelist

import "time"

// State is the whitelist state of a guild. The numeric values are persisted.
type State int

const (
	// StateImmortal guilds are listed in the configuration and are never left.
	StateImmortal State = iota
	// StateUnlimited guilds were activated without an end date.
	StateUnlimited
	// StateLimited guilds were activated until a date.
	StateLimited
	// StateTrial guilds received a trial on join.
	StateTrial
	// StateTrialExpired guilds had a trial that ended.
	StateTrialExpired
	// StateExpired guilds had an activation that ended.
	StateExpired
	// StateBanned guilds are left immediately and silently.
	StateBanned
	// StateUnknown guilds have no stored status.
	StateUnknown
	// StateBypass is reported for every non-banned guild while whitelisting is off.
	StateBypass
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateImmortal:
		return "immortal"
	case StateUnlimited:
		return "unlimited"
	case StateLimited:
		return "limited"
	case StateTrial:
		return "trial"
	case StateTrialExpired:
		return "trial_expired"
	case StateExpired:
		return "expired"
	case StateBanned:
		return "banned"
	case StateUnknown:
		return "unknown"
	case StateBypass:
		return "bypass"
	default:
		return "invalid"
	}
}

// Label describes the state to guild administrators.
func (s State) Label() string {
	switch s {
	case StateImmortal:
		return "Whitelisted permanently by the bot owner"
	case StateUnlimited:
		return "Whitelisted without an end date"
	case StateLimited:
		return "Whitelisted for a limited time"
	case StateTrial:
		return "Trial"
	case StateTrialExpired:
		return "Trial expired"
	case StateExpired:
		return "Whitelist expired"
	case StateBanned:
		return "Banned"
	case StateUnknown:
		return "Not whitelisted"
	case StateBypass:
		return "Whitelist is disabled, everyone may use the bot"
	default:
		return "Invalid"
	}
}

// HasDeadline reports whether the state carries an end date.
func (s State) HasDeadline() bool {
	return s == StateLimited || s == StateTrial
}

// Status is the computed whitelist status of a guild.
type Status struct {
	State State
	// Until is set when the stored record has an end date.
	Until *time.Time
}

// OK reports whether the bot may stay in the guild.
func (s Status) OK() bool {
	switch s.State {
	case StateImmortal, StateUnlimited, StateLimited, StateTrial, StateBypass:
		return true
	case StateTrialExpired, StateExpired, StateBanned, StateUnknown:
		return false
	default:
		return false
	}
}
