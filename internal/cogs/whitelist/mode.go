package whitelist

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownModeFlag is returned when a mode flag name is not recognised.
var ErrUnknownModeFlag = errors.New("unknown mode flag")

// Mode flag names as typed in commands and stored in preferences.
const (
	FlagWhitelist    = "whitelist"
	FlagTrial        = "trial"
	FlagNoBotFarms   = "nobotfarms"
	FlagNoLowMembers = "nolowmembers"
	FlagNoMaxMembers = "nomaxmembers"
)

// Flags lists every mode flag in command order.
var Flags = []string{FlagWhitelist, FlagNoBotFarms, FlagTrial, FlagNoLowMembers, FlagNoMaxMembers} //nolint:gochecknoglobals // -

// legacyBits are the bit values of modes stored as integers by older versions.
var legacyBits = map[string]int{ //nolint:gochecknoglobals // -
	FlagWhitelist:    2,
	FlagTrial:        4,
	FlagNoBotFarms:   8,
	FlagNoLowMembers: 16,
	FlagNoMaxMembers: 32,
}

// Mode is the global gatekeeper configuration.
type Mode struct {
	// Whitelist enables the gatekeeper. When off every non-banned guild is on bypass.
	Whitelist bool
	// TrialAllowed lets unknown guilds receive a trial.
	TrialAllowed bool
	// NoBotFarms rejects guilds whose bot ratio is above the threshold.
	NoBotFarms bool
	// NoLowMembers rejects guilds below the member minimum.
	NoLowMembers bool
	// NoMaxMembers rejects guilds above the member maximum.
	NoMaxMembers bool
}

// flag returns a pointer to the named flag.
func (m *Mode) flag(name string) (*bool, error) {
	switch name {
	case FlagWhitelist:
		return &m.Whitelist, nil
	case FlagTrial:
		return &m.TrialAllowed, nil
	case FlagNoBotFarms:
		return &m.NoBotFarms, nil
	case FlagNoLowMembers:
		return &m.NoLowMembers, nil
	case FlagNoMaxMembers:
		return &m.NoMaxMembers, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModeFlag, name)
	}
}

// Has reports whether the named flag is enabled.
func (m Mode) Has(name string) (bool, error) {
	ptr, err := m.flag(name)
	if err != nil {
		return false, err
	}

	return *ptr, nil
}

// With returns a copy of the mode with the named flag set.
func (m Mode) With(name string, enabled bool) (Mode, error) {
	ptr, err := m.flag(name)
	if err != nil {
		return m, err
	}

	*ptr = enabled

	return m, nil
}

// Serialize renders the enabled flags as a sorted comma separated list.
func (m Mode) Serialize() string {
	enabled := make([]string, 0, len(Flags))

	for _, name := range Flags {
		if on, _ := m.Has(name); on {
			enabled = append(enabled, name)
		}
	}

	slices.Sort(enabled)

	return strings.Join(enabled, ",")
}

// ParseMode reads a serialized mode. Integer bitmasks written by older
// versions are accepted as well.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)

	if bits, err := strconv.Atoi(s); err == nil {
		return parseLegacyMode(bits), nil
	}

	var mode Mode

	if s == "" {
		return mode, nil
	}

	for name := range strings.SplitSeq(s, ",") {
		var err error

		mode, err = mode.With(strings.ToLower(strings.TrimSpace(name)), true)
		if err != nil {
			return Mode{}, err
		}
	}

	return mode, nil
}

func parseLegacyMode(bits int) Mode {
	var mode Mode

	for name, bit := range legacyBits {
		if bits&bit == bit {
			mode, _ = mode.With(name, true)
		}
	}

	return mode
}
