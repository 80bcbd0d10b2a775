package whitelist

import (
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/robalyx/snowball/internal/preferences"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	commandChannel snowflake.ID = 600000000000000001
	strangerID     snowflake.ID = 700000000000000001
)

func (f *fixture) run(t *testing.T, author snowflake.ID, content string) {
	t.Helper()

	msg := chat.Message{
		ID:        800000000000000001,
		ChannelID: commandChannel,
		GuildID:   testGuildID,
		Author:    chat.User{ID: author},
		Content:   content,
	}

	require.NoError(t, f.wl.HandleMessage(t.Context(), msg, command.Parse(content)))
}

func (f *fixture) lastEmbed(t *testing.T) discord.Embed {
	t.Helper()

	sent := f.platform.SentMessages()
	require.NotEmpty(t, sent)
	require.Len(t, sent[len(sent)-1].Embeds, 1)

	return sent[len(sent)-1].Embeds[0]
}

func (f *fixture) status(t *testing.T, guildID snowflake.ID) Status {
	t.Helper()

	status, err := f.wl.GetStatus(t.Context(), guildID)
	require.NoError(t, err)

	return status
}

func TestWhitelistCommandsRequireOwner(t *testing.T) {
	t.Parallel()

	f := setup(t, testConfig())
	f.run(t, strangerID, "!whitelist activate 200000000000000001 forever")

	assert.Empty(t, f.platform.SentMessages())
	assert.Zero(t, f.confirmer.asked)
	assert.Equal(t, StateUnknown, f.status(t, testGuildID).State)
}

func TestActivate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      string
		wantState State
		wantUntil *time.Time
	}{
		{name: "forever", args: "forever", wantState: StateUnlimited},
		{name: "days", args: "30d", wantState: StateLimited, wantUntil: ptr(fixedNow.Add(30 * 24 * time.Hour))},
		{name: "combined", args: "1d12h30m", wantState: StateLimited, wantUntil: ptr(fixedNow.Add(36*time.Hour + 30*time.Minute))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setup(t, testConfig())
			f.run(t, ownerID, "!whitelist activate 200000000000000001 "+tt.args)

			assert.Equal(t, 1, f.confirmer.asked)
			assert.Equal(t, "Activated", f.lastEmbed(t).Title)

			status := f.status(t, testGuildID)
			assert.Equal(t, tt.wantState, status.State)

			if tt.wantUntil == nil {
				assert.Nil(t, status.Until)
			} else {
				require.NotNil(t, status.Until)
				assert.True(t, tt.wantUntil.Equal(*status.Until))
			}
		})
	}
}

func TestActivateForeverClearsDeadline(t *testing.T) {
	t.Parallel()

	f := setup(t, testConfig())
	f.setRecord(t, StateTrial, ptr(fixedNow.Add(time.Hour)))

	f.run(t, ownerID, "!whitelist activate 200000000000000001 forever")

	var until int64
	found, err := f.prefs.Get(t.Context(), preferences.GuildScope(testGuildID), untilKey, &until)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestActivateInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		wantTitle string
	}{
		{name: "missing duration", content: "!whitelist activate 200000000000000001", wantTitle: "Wrong usage"},
		{name: "short id", content: "!whitelist activate 1234 forever", wantTitle: "Invalid server ID"},
		{name: "bad duration", content: "!whitelist activate 200000000000000001 soon", wantTitle: "Invalid duration"},
		{name: "deactivate without id", content: "!whitelist deactivate", wantTitle: "Wrong usage"},
		{name: "ban with text id", content: "!whitelist ban abc", wantTitle: "Invalid server ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setup(t, testConfig())
			f.run(t, ownerID, tt.content)

			assert.Equal(t, tt.wantTitle, f.lastEmbed(t).Title)
			assert.Zero(t, f.confirmer.asked)
		})
	}
}

func TestCanceledConfirmation(t *testing.T) {
	t.Parallel()

	f := setup(t, testConfig())
	f.confirmer.answer = false

	f.run(t, ownerID, "!whitelist ban 200000000000000001")

	assert.Equal(t, "Canceled", f.lastEmbed(t).Title)
	assert.Equal(t, StateUnknown, f.status(t, testGuildID).State)
}

func TestConfirmationError(t *testing.T) {
	t.Parallel()

	f := setup(t, testConfig())
	f.confirmer.err = errors.New("missing permissions")

	msg := chat.Message{ChannelID: commandChannel, GuildID: testGuildID, Author: chat.User{ID: ownerID}}
	err := f.wl.HandleMessage(t.Context(), msg, command.Parse("!whitelist deactivate 200000000000000001"))
	require.Error(t, err)
}

func TestDeactivate(t *testing.T) {
	t.Parallel()

	f := setup(t, testConfig())
	f.setRecord(t, StateLimited, ptr(fixedNow.Add(time.Hour)))

	f.run(t, ownerID, "!whitelist deactivate 200000000000000001")

	assert.Equal(t, StateUnknown, f.status(t, testGuildID).State)
	assert.Equal(t, "Deactivated", f.lastEmbed(t).Title)
}

func TestBanJoinedGuild(t *testing.T) {
	t.Parallel()

	f := setup(t, testConfig())
	f.addGuild(100, 0)
	f.setRecord(t, StateLimited, ptr(fixedNow.Add(time.Hour)))

	f.run(t, ownerID, "!whitelist ban 200000000000000001")

	status := f.status(t, testGuildID)
	assert.Equal(t, StateBanned, status.State)
	assert.Nil(t, status.Until)
	assert.Equal(t, []snowflake.ID{testGuildID}, f.platform.Left())

	// Banned guilds are left silently, so the only message is the reply
	sent := f.platform.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, commandChannel, sent[0].ChannelID)
}

func TestBanGuildNotJoined(t *testing.T) {
	t.Parallel()

	f := setup(t, testConfig())
	f.run(t, ownerID, "!whitelist ban 200000000000000001")

	assert.Equal(t, StateBanned, f.status(t, testGuildID).State)
	assert.Empty(t, f.platform.Left())
}

func TestModeCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stored    string
		content   string
		wantTitle string
		wantMode  Mode
	}{
		{
			name:      "disable trial",
			stored:    "trial,whitelist",
			content:   "!whitelist mode off trial",
			wantTitle: "Mode changed",
			wantMode:  Mode{Whitelist: true},
		},
		{
			name:      "enable bot farm check",
			stored:    "whitelist",
			content:   "!whitelist mode on nobotfarms",
			wantTitle: "Mode changed",
			wantMode:  Mode{Whitelist: true, NoBotFarms: true},
		},
		{
			name:      "already enabled",
			stored:    "whitelist",
			content:   "!whitelist mode on whitelist",
			wantTitle: "Nothing changed",
			wantMode:  Mode{Whitelist: true},
		},
		{
			name:      "already disabled",
			stored:    "whitelist",
			content:   "!whitelist mode off nomaxmembers",
			wantTitle: "Nothing changed",
			wantMode:  Mode{Whitelist: true},
		},
		{
			name:      "unknown flag shows usage",
			stored:    "whitelist",
			content:   "!whitelist mode on everything",
			wantTitle: "Whitelist mode",
			wantMode:  Mode{Whitelist: true},
		},
		{
			name:      "missing argument shows usage",
			stored:    "whitelist",
			content:   "!whitelist mode on",
			wantTitle: "Whitelist mode",
			wantMode:  Mode{Whitelist: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setup(t, testConfig())
			f.setMode(t, tt.stored)

			f.run(t, ownerID, tt.content)

			assert.Equal(t, tt.wantTitle, f.lastEmbed(t).Title)

			mode, err := f.wl.store.Mode(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, mode)
		})
	}
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		author   snowflake.ID
		perms    discord.Permissions
		state    *State
		until    *time.Time
		wantSent bool
		want     string
	}{
		{
			name:   "member without permissions",
			author: strangerID,
		},
		{
			name:     "manage channels is enough",
			author:   strangerID,
			perms:    discord.PermissionManageChannels,
			state:    ptr(StateUnlimited),
			wantSent: true,
			want:     "```md\n# Whitelist status of Test \\*Guild\\*\nStatus: Whitelisted without an end date\n```",
		},
		{
			name:     "owner sees trial end date",
			author:   ownerID,
			state:    ptr(StateTrial),
			until:    ptr(fixedNow.Add(2 * time.Hour)),
			wantSent: true,
			want: "```md\n# Whitelist status of Test \\*Guild\\*\nStatus: Trial\n" +
				"Whitelisted until Sunday, March 1, 2026 14:00 UTC\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setup(t, testConfig())
			f.addGuild(100, 0)
			f.platform.Perms[tt.author] = tt.perms

			if tt.state != nil {
				f.setRecord(t, *tt.state, tt.until)
			}

			f.run(t, tt.author, "!sb_pstatus")

			sent := f.platform.SentMessages()
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}

			require.Len(t, sent, 1)
			assert.Equal(t, tt.want, sent[0].Content)
		})
	}
}
