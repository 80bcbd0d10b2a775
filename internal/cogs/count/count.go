// Package count runs the counting game: members take turns typing the next
// number in a dedicated channel and anything else is deleted.
package count

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/robalyx/snowball/internal/metrics"
	"github.com/robalyx/snowball/internal/setup/config"
	"go.uber.org/zap"
)

const (
	topicLastNumber = ":v: Last number: %d"
	topicDatabase   = ":warning: Database is not responding..."
)

var digitsPattern = regexp.MustCompile(`^\d*$`)

// Store persists accepted numbers.
type Store interface {
	Latest(ctx context.Context) (*types.CountEntry, error)
	Insert(ctx context.Context, entry *types.CountEntry) error
}

// Count is the counting game cog.
type Count struct {
	platform  chat.Platform
	store     Store
	channelID snowflake.ID
	cooldown  time.Duration
	// replyChance is N in a 1 in N chance that the bot types the next number.
	replyChance int
	now         func() time.Time
	roll        func(n int) int
	logger      *zap.Logger
	// mu serializes validation so two numbers never pass against the same previous entry.
	mu sync.Mutex
}

// New creates the counting game cog.
func New(platform chat.Platform, store Store, cfg *config.Count, logger *zap.Logger) *Count {
	return &Count{
		platform:    platform,
		store:       store,
		channelID:   snowflake.ID(cfg.ChannelID),
		cooldown:    cfg.Cooldown,
		replyChance: cfg.BotReplyChance,
		now:         time.Now,
		roll:        rand.IntN, //nolint:gosec // game chance only
		logger:      logger.Named("count"),
	}
}

// Name returns the cog name.
func (c *Count) Name() string {
	return "count"
}

// HandleMessage validates messages posted in the count channel.
func (c *Count) HandleMessage(ctx context.Context, msg chat.Message, _ command.Command) error {
	if c.channelID == 0 || msg.ChannelID != c.channelID {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Content == "" {
		return c.reject(ctx, msg, "empty")
	}

	body, override := strings.CutPrefix(msg.Content, command.Prefix)
	if !digitsPattern.MatchString(body) {
		return c.reject(ctx, msg, "not_a_number")
	}

	value, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return c.reject(ctx, msg, "not_a_number")
	}

	if override {
		if msg.Author.ID != c.platform.OwnerID() {
			return c.reject(ctx, msg, "override_denied")
		}

		c.logger.Info("Count overridden by owner", zap.Int64("count", value))

		return c.store.Insert(ctx, &types.CountEntry{Count: value, Author: msg.Author.ID, Date: c.now()})
	}

	prev, err := c.store.Latest(ctx)
	if err != nil {
		return err
	}

	now := c.now()

	verdict := Validate(prev, msg.Author.ID, value, now, c.cooldown)
	switch verdict {
	case VerdictAccept:
	case VerdictNoPrevious:
		c.logger.Error("No previous count found, the game needs an owner override to start")
		return nil
	case VerdictCooldown, VerdictWrongNumber:
		return c.reject(ctx, msg, verdict.String())
	}

	err = c.store.Insert(ctx, &types.CountEntry{Count: value, Author: msg.Author.ID, Date: now})
	if err != nil {
		c.logger.Error("Failed to save count",
			zap.Int64("count", value),
			zap.Uint64("author", uint64(msg.Author.ID)),
			zap.Error(err))
		metrics.CountVerdicts.WithLabelValues("store_error").Inc()

		if err := c.platform.AddReaction(ctx, msg.ChannelID, msg.ID, constants.CancelEmoji); err != nil {
			c.logger.Warn("Failed to react to message", zap.Error(err))
		}

		if err := c.platform.SetChannelTopic(ctx, msg.ChannelID, topicDatabase); err != nil {
			c.logger.Warn("Failed to set channel topic", zap.Error(err))
		}

		return nil
	}

	metrics.CountVerdicts.WithLabelValues(VerdictAccept.String()).Inc()

	if err := c.platform.SetChannelTopic(ctx, msg.ChannelID, formatTopic(value)); err != nil {
		c.logger.Warn("Failed to set channel topic", zap.Error(err))
	}

	if c.replyChance > 0 && prev.Author != c.platform.Self().ID && c.roll(c.replyChance) == 0 {
		_, err := c.platform.Send(ctx, msg.ChannelID, chat.Outgoing{Content: strconv.FormatInt(value+1, 10)})
		return err
	}

	return nil
}

func (c *Count) reject(ctx context.Context, msg chat.Message, reason string) error {
	metrics.CountVerdicts.WithLabelValues(reason).Inc()
	return c.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID)
}

func formatTopic(value int64) string {
	return fmt.Sprintf(topicLastNumber, value)
}
