// Package command parses prefixed chat commands into a closed set of kinds.
package command

import (
	"strings"
)

// Prefix starts every command.
const Prefix = "!"

// Kind identifies a command.
type Kind int

const (
	KindNone Kind = iota
	KindWhitelist
	KindPStatus
	KindArchive
	KindMessage
	KindEnableArchive
	KindChangeName
	KindChangeAvatar
	KindEmbed
	KindProfile
)

// names maps command words to kinds.
var names = map[string]Kind{ //nolint:gochecknoglobals // -
	"whitelist":      KindWhitelist,
	"sb_pstatus":     KindPStatus,
	"archive":        KindArchive,
	"message":        KindMessage,
	"enable_archive": KindEnableArchive,
	"change_name":    KindChangeName,
	"change_avy":     KindChangeAvatar,
	"embed":          KindEmbed,
	"profile":        KindProfile,
}

// String returns the command word of the kind.
func (k Kind) String() string {
	switch k {
	case KindWhitelist:
		return "whitelist"
	case KindPStatus:
		return "sb_pstatus"
	case KindArchive:
		return "archive"
	case KindMessage:
		return "message"
	case KindEnableArchive:
		return "enable_archive"
	case KindChangeName:
		return "change_name"
	case KindChangeAvatar:
		return "change_avy"
	case KindEmbed:
		return "embed"
	case KindProfile:
		return "profile"
	case KindNone:
		return "none"
	default:
		return "unknown"
	}
}

// AwaitsConfirmation reports whether handling the command may block on a
// reaction confirmation from the caller.
func (k Kind) AwaitsConfirmation() bool {
	return k == KindWhitelist || k == KindEnableArchive
}

// Command is a parsed chat message.
type Command struct {
	Kind Kind
	// Sub is the lowercased first argument, empty when there are none.
	Sub string
	// Args are the whitespace separated arguments after the command word.
	Args []string
	// Text is everything after the command word with surrounding space trimmed.
	Text string
	// Raw is the unmodified message content.
	Raw string
}

// Parse turns message content into a command.
// Content that is not a known command yields KindNone.
func Parse(content string) Command {
	cmd := Command{Kind: KindNone, Raw: content}

	body, ok := strings.CutPrefix(content, Prefix)
	if !ok {
		return cmd
	}

	word, rest, _ := strings.Cut(body, " ")
	if i := strings.IndexAny(word, "\n\t"); i >= 0 {
		rest = word[i:] + " " + rest
		word = word[:i]
	}

	kind, ok := names[word]
	if !ok {
		return cmd
	}

	cmd.Kind = kind
	cmd.Text = strings.TrimSpace(rest)

	if cmd.Text != "" {
		cmd.Args = strings.Fields(cmd.Text)
		cmd.Sub = strings.ToLower(cmd.Args[0])
	}

	return cmd
}

// Usage formats a usage line for a command.
func Usage(kind Kind, args string) string {
	if args == "" {
		return "Usage: `" + Prefix + kind.String() + "`"
	}

	return "Usage: `" + Prefix + kind.String() + " " + args + "`"
}
