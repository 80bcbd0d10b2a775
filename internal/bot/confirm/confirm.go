// Package confirm asks a user to approve an action by reacting to a message.
package confirm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/discord/chat"
	"go.uber.org/zap"
)

// DefaultTimeout is how long a confirmation waits for an answer.
const DefaultTimeout = 60 * time.Second

// waiter is a pending confirmation.
type waiter struct {
	userID snowflake.ID
	answer chan bool
}

// Confirmer posts confirmation prompts and resolves them from reaction events.
type Confirmer struct {
	platform chat.Platform
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[snowflake.ID]*waiter
}

// New creates a Confirmer.
func New(platform chat.Platform, timeout time.Duration, logger *zap.Logger) *Confirmer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Confirmer{
		platform: platform,
		timeout:  timeout,
		logger:   logger.Named("confirm"),
		pending:  make(map[snowflake.ID]*waiter),
	}
}

// Ask posts the embed, adds the confirm and cancel reactions and waits for the
// user's answer. Only a confirm reaction from userID returns true. A cancel
// reaction, the timeout and context cancellation all return false.
func (c *Confirmer) Ask(ctx context.Context, channelID, userID snowflake.ID, embed discord.Embed) (bool, error) {
	messageID, err := c.platform.Send(ctx, channelID, chat.Outgoing{Embeds: []discord.Embed{embed}})
	if err != nil {
		return false, fmt.Errorf("failed to send confirmation: %w", err)
	}

	w := &waiter{userID: userID, answer: make(chan bool, 1)}

	c.mu.Lock()
	c.pending[messageID] = w
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, messageID)
		c.mu.Unlock()
	}()

	for _, emoji := range []string{constants.ConfirmEmoji, constants.CancelEmoji} {
		if err := c.platform.AddReaction(ctx, channelID, messageID, emoji); err != nil {
			c.logger.Warn("Failed to add confirmation reaction",
				zap.Uint64("messageID", uint64(messageID)),
				zap.String("emoji", emoji),
				zap.Error(err))
		}
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case confirmed := <-w.answer:
		return confirmed, nil
	case <-timer.C:
		c.logger.Debug("Confirmation timed out", zap.Uint64("messageID", uint64(messageID)))
		return false, nil
	case <-ctx.Done():
		return false, nil
	}
}

// HandleReaction resolves a pending confirmation. It reports whether the
// reaction answered one; reactions from other users or with other emojis are ignored.
func (c *Confirmer) HandleReaction(messageID, userID snowflake.ID, emoji string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.pending[messageID]
	if !ok || w.userID != userID {
		return false
	}

	var confirmed bool

	switch emoji {
	case constants.ConfirmEmoji:
		confirmed = true
	case constants.CancelEmoji:
		confirmed = false
	default:
		return false
	}

	delete(c.pending, messageID)
	w.answer <- confirmed

	return true
}
