package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// ErrInvalidSnowflake indicates a string that is not a valid Discord id.
var ErrInvalidSnowflake = errors.New("invalid snowflake")

var snowflakePattern = regexp.MustCompile(`^\d{16,20}$`)

// IsSnowflake reports whether s looks like a Discord id.
func IsSnowflake(s string) bool {
	return snowflakePattern.MatchString(s)
}

// ParseSnowflake validates and parses a Discord id.
func ParseSnowflake(s string) (snowflake.ID, error) {
	if !IsSnowflake(s) {
		return 0, ErrInvalidSnowflake
	}

	id, err := snowflake.Parse(s)
	if err != nil {
		return 0, ErrInvalidSnowflake
	}

	return id, nil
}

// ParseUserMention accepts "<@id>", "<@!id>" or a bare id.
func ParseUserMention(s string) (snowflake.ID, error) {
	if inner, ok := strings.CutPrefix(s, "<@"); ok {
		s = strings.TrimPrefix(strings.TrimSuffix(inner, ">"), "!")
	}

	return ParseSnowflake(s)
}

// ParseChannelMention accepts "<#id>" or a bare id.
func ParseChannelMention(s string) (snowflake.ID, error) {
	if inner, ok := strings.CutPrefix(s, "<#"); ok {
		s = strings.TrimSuffix(inner, ">")
	}

	return ParseSnowflake(s)
}
