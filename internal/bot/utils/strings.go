package utils

import (
	"strings"
)

// markdownEscaper escapes characters that Discord renders as markdown.
var markdownEscaper = strings.NewReplacer( //nolint:gochecknoglobals // -
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
)

// EscapeMarkdown makes user supplied text render literally in Discord.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// EscapeURLParens escapes parentheses so a URL survives inside a markdown link.
func EscapeURLParens(url string) string {
	return strings.NewReplacer("(", "%28", ")", "%29").Replace(url)
}

// TruncateString shortens s to at most maxLength runes, marking the cut with an ellipsis.
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	return string(runes[:maxLength-3]) + "..."
}
