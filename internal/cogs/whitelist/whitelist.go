// Package whitelist decides whether the bot may stay in a guild. Guilds are
// checked when the bot joins them and on a periodic sweep of every joined guild.
package whitelist

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/robalyx/snowball/internal/discord/rate"
	"github.com/robalyx/snowball/internal/metrics"
	"github.com/robalyx/snowball/internal/preferences"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/robalyx/snowball/internal/setup/telemetry"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// notificationRooms are matched against channel names in priority order.
var notificationRooms = []string{ //nolint:gochecknoglobals // -
	"admins", "admin-channel", "admin_channel", "admins-chat", "admins_chat", "admin",
	"mod-channel", "mods-channel", "mods", "mods-chat", "mod_chat", "chat", "general",
}

// Confirmer asks a user to approve an action.
type Confirmer interface {
	Ask(ctx context.Context, channelID, userID snowflake.ID, embed discord.Embed) (bool, error)
}

// Whitelist is the guild gatekeeper cog.
type Whitelist struct {
	platform  chat.Platform
	store     *Store
	confirmer Confirmer
	cfg       *config.Whitelist
	immortal  map[snowflake.ID]struct{}
	limiter   *rate.Limiter
	logger    *zap.Logger
	now       func() time.Time
	sweepMu   sync.Mutex
}

// New creates the gatekeeper. A nil cache disables caching.
func New(
	platform chat.Platform, prefs preferences.Store, cache Cache, confirmer Confirmer,
	cfg *config.Whitelist, logger *zap.Logger,
) (*Whitelist, error) {
	defaultMode, err := ParseMode(strings.Join(cfg.DefaultMode, ","))
	if err != nil {
		return nil, fmt.Errorf("invalid default whitelist mode: %w", err)
	}

	immortal := make(map[snowflake.ID]struct{}, len(cfg.AlwaysWhitelisted))
	for _, id := range cfg.AlwaysWhitelisted {
		immortal[snowflake.ID(id)] = struct{}{}
	}

	logger = logger.Named("whitelist")

	return &Whitelist{
		platform:  platform,
		store:     NewStore(prefs, cache, defaultMode, logger),
		confirmer: confirmer,
		cfg:       cfg,
		immortal:  immortal,
		limiter:   rate.New(cfg.LeaveInterval, cfg.LeaveInterval/5),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Name returns the cog name.
func (w *Whitelist) Name() string {
	return "whitelist"
}

// GetStatus computes the current status of a guild.
func (w *Whitelist) GetStatus(ctx context.Context, guildID snowflake.ID) (Status, error) {
	if _, ok := w.immortal[guildID]; ok {
		return Status{State: StateImmortal}, nil
	}

	mode, err := w.store.Mode(ctx)
	if err != nil {
		return Status{}, err
	}

	record, err := w.store.Record(ctx, guildID)
	if err != nil {
		return Status{}, err
	}

	if record.Status == nil {
		return Status{State: StateUnknown}, nil
	}

	stored := *record.Status

	switch {
	case stored == StateBanned:
		return Status{State: StateBanned}, nil
	case !mode.Whitelist:
		return Status{State: StateBypass}, nil
	case stored == StateUnlimited:
		return Status{State: StateUnlimited}, nil
	}

	until := record.UntilTime()
	if until != nil && until.Before(w.now()) {
		if stored == StateTrial {
			return Status{State: StateTrialExpired, Until: until}, nil
		}

		return Status{State: StateExpired, Until: until}, nil
	}

	return Status{State: stored, Until: until}, nil
}

// OnGuildJoin decides what to do with a guild the bot just joined.
func (w *Whitelist) OnGuildJoin(ctx context.Context, guildID snowflake.ID) error {
	status, err := w.GetStatus(ctx, guildID)
	if err != nil {
		return err
	}

	w.logger.Info("Joined guild",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Stringer("state", status.State))

	switch status.State {
	case StateUnknown, StateBypass:
		return w.TryToGiveTrial(ctx, guildID)
	case StateTrialExpired:
		return w.Leave(ctx, guildID, ReasonTrialExpired)
	case StateExpired:
		return w.Leave(ctx, guildID, ReasonExpired)
	case StateBanned:
		return w.Leave(ctx, guildID, ReasonNone)
	case StateImmortal, StateUnlimited, StateLimited, StateTrial:
		return nil
	}

	return nil
}

// Sweep evaluates every joined guild. A sweep requested while another one is
// running is skipped.
func (w *Whitelist) Sweep(ctx context.Context) error {
	if !w.sweepMu.TryLock() {
		w.logger.Debug("Sweep already running, skipping")
		return nil
	}
	defer w.sweepMu.Unlock()

	start := time.Now()
	guilds := w.platform.JoinedGuilds()

	p := pool.New().
		WithMaxGoroutines(max(1, w.cfg.SweepConcurrency)).
		WithContext(ctx)

	for _, guildID := range guilds {
		p.Go(func(ctx context.Context) error {
			if err := w.sweepGuild(ctx, guildID); err != nil {
				return fmt.Errorf("guild %d: %w", guildID, err)
			}

			return nil
		})
	}

	err := p.Wait()

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	w.logger.Info("Sweep finished",
		zap.Int("guilds", len(guilds)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))

	return err
}

func (w *Whitelist) sweepGuild(ctx context.Context, guildID snowflake.ID) error {
	// The guild may have been left since the sweep started
	if _, ok := w.platform.Guild(guildID); !ok {
		return nil
	}

	status, err := w.GetStatus(ctx, guildID)
	if err != nil {
		return err
	}

	switch status.State {
	case StateExpired:
		return w.Leave(ctx, guildID, ReasonExpired)
	case StateTrialExpired:
		return w.Leave(ctx, guildID, ReasonTrialExpired)
	case StateBanned:
		return w.Leave(ctx, guildID, ReasonNone)
	case StateUnknown:
		return w.TryToGiveTrial(ctx, guildID)
	case StateImmortal, StateUnlimited, StateLimited, StateTrial, StateBypass:
		return nil
	}

	return nil
}

// TryToGiveTrial checks a guild against the mode's requirements and either
// starts a trial or leaves. Rejected guilds get no record.
func (w *Whitelist) TryToGiveTrial(ctx context.Context, guildID snowflake.ID) error {
	mode, err := w.store.Mode(ctx)
	if err != nil {
		return err
	}

	members, err := w.platform.GuildMembers(ctx, guildID)
	if err != nil {
		return err
	}

	total := len(members)

	switch {
	case mode.NoBotFarms && botPercentage(members) > w.cfg.BotsThreshold:
		return w.Leave(ctx, guildID, ReasonBotFarm)
	case mode.NoLowMembers && total < w.cfg.MinMembers:
		return w.Leave(ctx, guildID, ReasonNoMembers)
	case mode.NoMaxMembers && total > w.cfg.MaxMembers:
		return w.Leave(ctx, guildID, ReasonManyMembers)
	case !mode.Whitelist:
		return nil
	case !mode.TrialAllowed:
		return w.Leave(ctx, guildID, ReasonNoTrial)
	}

	until := w.now().Add(w.cfg.TrialTime)
	if err := w.store.SetTimed(ctx, guildID, StateTrial, until); err != nil {
		return err
	}

	metrics.TrialsGranted.Inc()
	w.logger.Info("Activated trial",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Time("until", until))

	return nil
}

// botPercentage returns the rounded share of bots among members.
func botPercentage(members []chat.Member) int {
	if len(members) == 0 {
		return 0
	}

	bots := 0

	for _, member := range members {
		if member.Bot {
			bots++
		}
	}

	return int(math.Round(float64(bots) / float64(len(members)) * 100))
}

// Leave notifies the guild when a reason is given, then leaves it.
func (w *Whitelist) Leave(ctx context.Context, guildID snowflake.ID, reason Reason) error {
	if reason != ReasonNone {
		w.notify(ctx, guildID, reason)
	}

	if err := w.limiter.WaitForNextSlot(ctx); err != nil {
		return err
	}

	if err := w.platform.LeaveGuild(ctx, guildID); err != nil {
		return err
	}

	metrics.GuildsLeft.WithLabelValues(reason.String()).Inc()
	w.logger.Info("Left guild",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Stringer("reason", reason))

	return nil
}

// notify posts the departure notice in the best matching staff channel.
// Failures are reported and swallowed so the departure can proceed.
func (w *Whitelist) notify(ctx context.Context, guildID snowflake.ID, reason Reason) {
	channels, err := w.platform.GuildChannels(ctx, guildID)
	if err != nil {
		w.logger.Warn("Failed to list channels for notification",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))

		return
	}

	channel, ok := findNotificationChannel(channels)
	if !ok {
		return
	}

	guildName := guildID.String()
	if guild, ok := w.platform.Guild(guildID); ok {
		guildName = guild.Name
	}

	embed := utils.WarningEmbed("Leaving this server", reason.Message(guildName, w.cfg.SignupURL))

	if err := utils.SendEmbed(ctx, w.platform, channel.ID, embed); err != nil {
		telemetry.ReportWarning(err, map[string]any{
			"guildID": guildID.String(),
			"reason":  reason.String(),
		})
		w.logger.Warn("Failed to send departure notice",
			zap.Uint64("guildID", uint64(guildID)),
			zap.String("channel", channel.Name),
			zap.Uint64("channelID", uint64(channel.ID)),
			zap.Error(err))
	}
}

func findNotificationChannel(channels []chat.Channel) (chat.Channel, bool) {
	for _, room := range notificationRooms {
		for _, channel := range channels {
			if channel.IsText() && strings.Contains(channel.Name, room) {
				return channel, true
			}
		}
	}

	return chat.Channel{}, false
}
