package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidDurationFormat indicates that the duration string is not in the correct format.
	ErrInvalidDurationFormat = errors.New("invalid duration format")
	// ErrNonPositiveDuration indicates a duration that does not move forward in time.
	ErrNonPositiveDuration = errors.New("duration must be positive")
)

// durationUnits maps unit suffixes to their length. Longer suffixes must be checked first.
var durationUnits = []struct { //nolint:gochecknoglobals // -
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"w", 7 * 24 * time.Hour},
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// ParseCombinedDuration parses durations that may contain days and weeks along with
// the usual units, such as "1d", "24h", "1d12h" or "1d12h30m".
func ParseCombinedDuration(s string) (time.Duration, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
	if s == "" {
		return 0, ErrInvalidDurationFormat
	}

	var total time.Duration

	for s != "" {
		end := 0
		for end < len(s) && (isDigit(s[end]) || s[end] == '.') {
			end++
		}

		if end == 0 {
			return 0, fmt.Errorf("%w: unexpected character %q", ErrInvalidDurationFormat, s[0])
		}

		value, err := strconv.ParseFloat(s[:end], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidDurationFormat, err)
		}

		s = s[end:]

		matched := false
		for _, u := range durationUnits {
			if strings.HasPrefix(s, u.suffix) {
				total += time.Duration(value * float64(u.unit))
				s = s[len(u.suffix):]
				matched = true

				break
			}
		}

		if !matched {
			return 0, fmt.Errorf("%w: missing or unknown unit", ErrInvalidDurationFormat)
		}
	}

	if total <= 0 {
		return 0, ErrNonPositiveDuration
	}

	return total, nil
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// FormatTimeAgo returns a human-readable string representing how long ago a time was.
func FormatTimeAgo(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return FormatDuration(now.Sub(t)) + " ago"
}

// FormatDuration converts a duration to a coarse human-readable string.
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return "moments"
	}

	minutes := seconds / 60
	if minutes < 60 {
		return plural(minutes, "minute")
	}

	hours := minutes / 60
	if hours < 24 {
		return plural(hours, "hour")
	}

	return plural(hours/24, "day")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}

	return fmt.Sprintf("%d %ss", n, unit)
}
