package bot

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/robalyx/snowball/internal/metrics"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Cog receives every guild message.
type Cog interface {
	Name() string
	HandleMessage(ctx context.Context, msg chat.Message, cmd command.Command) error
}

// GuildJoinHandler is implemented by cogs that react to the bot joining a guild.
type GuildJoinHandler interface {
	OnGuildJoin(ctx context.Context, guildID snowflake.ID) error
}

// Sweeper is implemented by cogs with periodic maintenance.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// ReactionHandler receives reactions added to messages.
type ReactionHandler interface {
	HandleReaction(messageID, userID snowflake.ID, emoji string) bool
}

// Dispatcher fans chat events out to the cogs. Every cog handles an event in
// its own goroutine, bounded by the handler timeout and shielded from panics.
// Commands that wait on a confirmation get the confirmation window on top of
// the handler timeout.
type Dispatcher struct {
	cogs           []Cog
	reactions      ReactionHandler
	timeout        time.Duration
	confirmTimeout time.Duration
	logger         *zap.Logger
	wg             conc.WaitGroup
}

// NewDispatcher creates a dispatcher for the given cogs.
func NewDispatcher(
	timeout, confirmTimeout time.Duration, reactions ReactionHandler, logger *zap.Logger, cogs ...Cog,
) *Dispatcher {
	return &Dispatcher{
		cogs:           cogs,
		reactions:      reactions,
		timeout:        timeout,
		confirmTimeout: confirmTimeout,
		logger:         logger.Named("dispatcher"),
	}
}

// DispatchMessage delivers a guild message to every cog.
// Messages from bots are delivered without a parsed command.
func (d *Dispatcher) DispatchMessage(ctx context.Context, msg chat.Message) {
	cmd := command.Command{Kind: command.KindNone, Raw: msg.Content}
	if !msg.Author.Bot {
		cmd = command.Parse(msg.Content)
	}

	timeout := d.timeout
	if timeout > 0 && cmd.Kind.AwaitsConfirmation() {
		timeout += d.confirmTimeout
	}

	for _, cog := range d.cogs {
		d.wg.Go(func() {
			d.run(ctx, timeout, cog.Name(), "message", func(ctx context.Context) error {
				return cog.HandleMessage(ctx, msg, cmd)
			})
		})
	}
}

// DispatchGuildJoin notifies the cogs that handle guild joins.
func (d *Dispatcher) DispatchGuildJoin(ctx context.Context, guildID snowflake.ID) {
	for _, cog := range d.cogs {
		handler, ok := cog.(GuildJoinHandler)
		if !ok {
			continue
		}

		d.wg.Go(func() {
			d.run(ctx, d.timeout, cog.Name(), "guild_join", func(ctx context.Context) error {
				return handler.OnGuildJoin(ctx, guildID)
			})
		})
	}
}

// DispatchReaction hands a reaction to the reaction handler.
func (d *Dispatcher) DispatchReaction(messageID, userID snowflake.ID, emoji string) {
	if d.reactions == nil {
		return
	}

	d.reactions.HandleReaction(messageID, userID, emoji)
}

// Sweep runs every sweeper and waits for them to finish.
// Sweeps are not bound by the handler timeout.
func (d *Dispatcher) Sweep(ctx context.Context) {
	var wg conc.WaitGroup

	for _, cog := range d.cogs {
		sweeper, ok := cog.(Sweeper)
		if !ok {
			continue
		}

		wg.Go(func() {
			d.guard(cog.Name(), "sweep", func() error {
				return sweeper.Sweep(ctx)
			})
		})
	}

	wg.Wait()
}

// Wait blocks until every in-flight handler returned.
// No event may be dispatched while Wait runs.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Drain waits for in-flight handlers until ctx is done. It reports whether
// every handler returned in time.
func (d *Dispatcher) Drain(ctx context.Context) bool {
	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// run executes one handler bounded by timeout. Zero disables the bound.
func (d *Dispatcher) run(ctx context.Context, timeout time.Duration, cog, event string, fn func(ctx context.Context) error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	d.guard(cog, event, func() error {
		return fn(ctx)
	})
}

// guard recovers panics and records the outcome of a handler.
func (d *Dispatcher) guard(cog, event string, fn func() error) {
	start := time.Now()

	var (
		catcher panics.Catcher
		err     error
	)

	catcher.Try(func() {
		err = fn()
	})

	if recovered := catcher.Recovered(); recovered != nil {
		metrics.EventsHandled.WithLabelValues(cog, "panic").Inc()
		d.logger.Error("Panic in cog handler",
			zap.String("cog", cog),
			zap.String("event", event),
			zap.Any("panic", recovered.Value),
			zap.ByteString("stack", recovered.Stack))

		return
	}

	switch {
	case err == nil:
		metrics.EventsHandled.WithLabelValues(cog, "ok").Inc()
	case errors.Is(err, context.DeadlineExceeded):
		metrics.EventsHandled.WithLabelValues(cog, "timeout").Inc()
		d.logger.Warn("Cog handler timed out",
			zap.String("cog", cog),
			zap.String("event", event),
			zap.Error(err))
	default:
		metrics.EventsHandled.WithLabelValues(cog, "error").Inc()
		d.logger.Error("Cog handler failed",
			zap.String("cog", cog),
			zap.String("event", event),
			zap.Error(err))
	}

	d.logger.Debug("Cog handler finished",
		zap.String("cog", cog),
		zap.String("event", event),
		zap.Duration("duration", time.Since(start)))
}
