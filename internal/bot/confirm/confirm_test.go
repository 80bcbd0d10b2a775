package confirm_test

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/confirm"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/robalyx/snowball/internal/discord/chat/chattest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	channelID = snowflake.ID(300000000000000001)
	userID    = snowflake.ID(400000000000000001)
	otherID   = snowflake.ID(400000000000000002)
)

type result struct {
	confirmed bool
	err       error
}

func ask(ctx context.Context, c *confirm.Confirmer) <-chan result {
	done := make(chan result, 1)

	go func() {
		confirmed, err := c.Ask(ctx, channelID, userID, utils.WarningEmbed("Are you sure?", "ban a guild"))
		done <- result{confirmed: confirmed, err: err}
	}()

	return done
}

// answer keeps reacting until the confirmer has registered the prompt.
func answer(t *testing.T, c *confirm.Confirmer, platform *chattest.Platform, user snowflake.ID, emoji string) {
	t.Helper()

	require.Eventually(t, func() bool {
		sent := platform.SentMessages()
		if len(sent) == 0 {
			return false
		}

		return c.HandleReaction(sent[0].MessageID, user, emoji)
	}, time.Second, 5*time.Millisecond)
}

func TestAsk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		emoji string
		want  bool
	}{
		{name: "confirmed", emoji: constants.ConfirmEmoji, want: true},
		{name: "cancelled", emoji: constants.CancelEmoji, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			platform := chattest.New(chat.User{ID: 1}, userID)
			c := confirm.New(platform, time.Minute, zap.NewNop())

			done := ask(t.Context(), c)
			answer(t, c, platform, userID, tt.emoji)

			res := <-done
			require.NoError(t, res.err)
			assert.Equal(t, tt.want, res.confirmed)

			reactions := platform.Reactions()
			require.Len(t, reactions, 2)
			assert.Equal(t, constants.ConfirmEmoji, reactions[0].Emoji)
			assert.Equal(t, constants.CancelEmoji, reactions[1].Emoji)
		})
	}
}

func TestAskIgnoresOtherUsersAndEmojis(t *testing.T) {
	t.Parallel()

	platform := chattest.New(chat.User{ID: 1}, userID)
	c := confirm.New(platform, time.Minute, zap.NewNop())

	done := ask(t.Context(), c)

	answer(t, c, platform, userID, constants.ConfirmEmoji)
	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.confirmed)

	// A resolved prompt cannot be answered twice
	messageID := platform.SentMessages()[0].MessageID
	assert.False(t, c.HandleReaction(messageID, userID, constants.ConfirmEmoji))

	done = ask(t.Context(), c)

	require.Eventually(t, func() bool { return len(platform.SentMessages()) == 2 }, time.Second, 5*time.Millisecond)
	messageID = platform.SentMessages()[1].MessageID

	assert.False(t, c.HandleReaction(messageID, otherID, constants.ConfirmEmoji))
	assert.False(t, c.HandleReaction(messageID, userID, "👍"))
	assert.False(t, c.HandleReaction(messageID+1, userID, constants.ConfirmEmoji))

	answer(t, c, platform, userID, constants.CancelEmoji)
	res = <-done
	require.NoError(t, res.err)
	assert.False(t, res.confirmed)
}

func TestAskTimesOut(t *testing.T) {
	t.Parallel()

	platform := chattest.New(chat.User{ID: 1}, userID)
	c := confirm.New(platform, 20*time.Millisecond, zap.NewNop())

	confirmed, err := c.Ask(t.Context(), channelID, userID, utils.WarningEmbed("Are you sure?", ""))
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestAskContextCancelled(t *testing.T) {
	t.Parallel()

	platform := chattest.New(chat.User{ID: 1}, userID)
	c := confirm.New(platform, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(t.Context())
	done := ask(ctx, c)

	require.Eventually(t, func() bool { return len(platform.SentMessages()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	res := <-done
	require.NoError(t, res.err)
	assert.False(t, res.confirmed)
}

func TestAskSendFailure(t *testing.T) {
	t.Parallel()

	platform := chattest.New(chat.User{ID: 1}, userID)
	platform.SendErr = assert.AnError
	c := confirm.New(platform, time.Minute, zap.NewNop())

	confirmed, err := c.Ask(t.Context(), channelID, userID, utils.WarningEmbed("Are you sure?", ""))
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, confirmed)
}
