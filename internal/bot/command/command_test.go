package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		kind    Kind
		sub     string
		args    []string
		text    string
	}{
		{
			name:    "plain text",
			content: "hello there",
			kind:    KindNone,
		},
		{
			name:    "unknown command",
			content: "!help",
			kind:    KindNone,
		},
		{
			name:    "no arguments",
			content: "!sb_pstatus",
			kind:    KindPStatus,
		},
		{
			name:    "sub command",
			content: "!whitelist Activate 123456789012345678 1d12h",
			kind:    KindWhitelist,
			sub:     "activate",
			args:    []string{"Activate", "123456789012345678", "1d12h"},
			text:    "Activate 123456789012345678 1d12h",
		},
		{
			name:    "text keeps inner spacing",
			content: "!change_name  Snow   Ball ",
			kind:    KindChangeName,
			sub:     "snow",
			args:    []string{"Snow", "Ball"},
			text:    "Snow   Ball",
		},
		{
			name:    "newline after command word",
			content: "!embed\nhello world",
			kind:    KindEmbed,
			sub:     "hello",
			args:    []string{"hello", "world"},
			text:    "hello world",
		},
		{
			name:    "case sensitive",
			content: "!ARCHIVE guild",
			kind:    KindNone,
		},
		{
			name:    "count override is not a command",
			content: "!42",
			kind:    KindNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := Parse(tt.content)
			assert.Equal(t, tt.kind, cmd.Kind)
			assert.Equal(t, tt.sub, cmd.Sub)
			assert.Equal(t, tt.args, cmd.Args)
			assert.Equal(t, tt.text, cmd.Text)
			assert.Equal(t, tt.content, cmd.Raw)
		})
	}
}

func TestKindStringRoundTrip(t *testing.T) {
	t.Parallel()

	for word, kind := range names {
		assert.Equal(t, word, kind.String())
	}

	assert.Equal(t, "none", KindNone.String())
}

func TestUsage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Usage: `!message <id>`", Usage(KindMessage, "<id>"))
	assert.Equal(t, "Usage: `!change_avy`", Usage(KindChangeAvatar, ""))
}

func TestAwaitsConfirmation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want bool
	}{
		{kind: KindWhitelist, want: true},
		{kind: KindEnableArchive, want: true},
		{kind: KindArchive, want: false},
		{kind: KindProfile, want: false},
		{kind: KindNone, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.kind.AwaitsConfirmation())
		})
	}
}
