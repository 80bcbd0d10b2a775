package owner

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/robalyx/snowball/internal/discord/chat/chattest"
	httpclient "github.com/robalyx/snowball/internal/setup/client"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	ownerID   snowflake.ID = 100000000000000001
	otherID   snowflake.ID = 100000000000000002
	channelID snowflake.ID = 300000000000000001
)

func setup(t *testing.T) (*Owner, *chattest.Platform) {
	t.Helper()

	platform := chattest.New(chat.User{ID: 1, Username: "snow_ball", Bot: true}, ownerID)

	client := httpclient.New(httpclient.Options{
		RequestTimeout: 5 * time.Second,
		Retry:          config.Retry{MaxRetries: 1, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, zap.NewNop())

	return New(platform, client, zap.NewNop()), platform
}

func run(t *testing.T, o *Owner, msg chat.Message) {
	t.Helper()

	msg.ChannelID = channelID
	if msg.ID == 0 {
		msg.ID = 500000000000000001
	}

	require.NoError(t, o.HandleMessage(t.Context(), msg, command.Parse(msg.Content)))
}

func TestIgnoresNonOwner(t *testing.T) {
	t.Parallel()

	o, platform := setup(t)
	run(t, o, chat.Message{Author: chat.User{ID: otherID}, Content: "!change_name evil"})

	assert.Empty(t, platform.SentMessages())
	assert.Empty(t, platform.SelfUpdates())
}

func TestChangeName(t *testing.T) {
	t.Parallel()

	o, platform := setup(t)
	run(t, o, chat.Message{Author: chat.User{ID: ownerID}, Content: "!change_name Snow Ball"})

	updates := platform.SelfUpdates()
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Username)
	assert.Equal(t, "Snow Ball", *updates[0].Username)

	require.Len(t, platform.Reactions(), 1)
	assert.Equal(t, constants.ConfirmEmoji, platform.Reactions()[0].Emoji)

	sent := platform.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Name changed", sent[0].Embeds[0].Title)
	assert.Equal(t, `**snow\_ball** is now known as **Snow Ball**.`, sent[0].Embeds[0].Description)
}

func TestChangeNameFailure(t *testing.T) {
	t.Parallel()

	o, platform := setup(t)
	platform.UpdateErr = errors.New("You are changing your username too fast")

	run(t, o, chat.Message{Author: chat.User{ID: ownerID}, Content: "!change_name other"})

	require.Len(t, platform.Reactions(), 1)
	assert.Equal(t, constants.DeniedEmoji, platform.Reactions()[0].Emoji)

	sent := platform.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Could not change name", sent[0].Embeds[0].Title)
	assert.Equal(t, "You are changing your username too fast", sent[0].Embeds[0].Description)
}

func TestChangeAvatar(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\nfake")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/avatar.png":
			_, _ = w.Write(png)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		name        string
		attachments []chat.Attachment
		updateErr   error
		wantTitle   string
		wantUpdate  bool
	}{
		{
			name:        "success",
			attachments: []chat.Attachment{{URL: server.URL + "/avatar.png"}},
			wantTitle:   "Avatar changed",
			wantUpdate:  true,
		},
		{
			name:      "no attachment",
			wantTitle: "Change avatar",
		},
		{
			name:        "bad status",
			attachments: []chat.Attachment{{URL: server.URL + "/missing.png"}},
			wantTitle:   "Response error",
		},
		{
			name:        "unreachable",
			attachments: []chat.Attachment{{URL: "http://127.0.0.1:0/avatar.png"}},
			wantTitle:   "Request error",
		},
		{
			name:        "rejected by discord",
			attachments: []chat.Attachment{{URL: server.URL + "/avatar.png"}},
			updateErr:   errors.New("invalid image"),
			wantTitle:   "Could not change avatar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o, platform := setup(t)
			platform.UpdateErr = tt.updateErr

			run(t, o, chat.Message{Author: chat.User{ID: ownerID}, Content: "!change_avy", Attachments: tt.attachments})

			sent := platform.SentMessages()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.wantTitle, sent[0].Embeds[0].Title)

			updates := platform.SelfUpdates()
			if tt.wantUpdate {
				require.Len(t, updates, 1)
				assert.Equal(t, png, updates[0].Avatar)
				require.NotNil(t, sent[0].Embeds[0].Image)
			} else {
				assert.Empty(t, updates)
			}
		})
	}
}
