// Package bot connects the cogs to the Discord gateway.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/confirm"
	"github.com/robalyx/snowball/internal/cogs/archive"
	"github.com/robalyx/snowball/internal/cogs/count"
	"github.com/robalyx/snowball/internal/cogs/embedme"
	"github.com/robalyx/snowball/internal/cogs/owner"
	"github.com/robalyx/snowball/internal/cogs/profiles"
	"github.com/robalyx/snowball/internal/cogs/profiles/lastfm"
	"github.com/robalyx/snowball/internal/cogs/profiles/overwatch"
	"github.com/robalyx/snowball/internal/cogs/whitelist"
	"github.com/robalyx/snowball/internal/database"
	"github.com/robalyx/snowball/internal/discord/client"
	"github.com/robalyx/snowball/internal/preferences"
	"github.com/robalyx/snowball/internal/redis"
	httpclient "github.com/robalyx/snowball/internal/setup/client"
	"github.com/robalyx/snowball/internal/setup/config"
	"go.uber.org/zap"
)

// Bot owns the Discord client and routes gateway events to the cogs.
type Bot struct {
	client     bot.Client
	dispatcher *Dispatcher
	cfg        *config.Config
	logger     *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	readyOnce sync.Once
	sweepWG   sync.WaitGroup
}

// New creates the Discord client and all cogs with their dependencies.
func New(cfg *config.Config, db database.Client, redisManager *redis.Manager, logger *zap.Logger) (*Bot, error) {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bot{
		cfg:    cfg,
		logger: logger.Named("bot"),
		ctx:    ctx,
		cancel: cancel,
	}

	discordClient, err := disgo.New(cfg.Bot.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
				gateway.IntentMessageContent,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagChannels, cache.FlagMembers, cache.FlagRoles),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate:      b.handleMessage,
			OnGuildJoin:               b.handleGuildJoin,
			OnGuildsReady:             b.handleGuildsReady,
			OnGuildMessageReactionAdd: b.handleReactionAdd,
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = discordClient

	cogs, confirmer, err := buildCogs(cfg, db, redisManager, client.New(discordClient, snowflake.ID(cfg.Bot.Discord.OwnerID), logger), logger)
	if err != nil {
		cancel()
		return nil, err
	}

	b.dispatcher = NewDispatcher(cfg.Bot.HandlerTimeout, confirm.DefaultTimeout, confirmer, logger, cogs...)

	return b, nil
}

// buildCogs wires every cog to the platform, the stores and the caches.
func buildCogs(
	cfg *config.Config, db database.Client, redisManager *redis.Manager, platform *client.Client, logger *zap.Logger,
) ([]Cog, *confirm.Confirmer, error) {
	prefsCache, err := redisManager.GetClient(redis.PreferenceCache)
	if err != nil {
		return nil, nil, err
	}

	whitelistCache, err := redisManager.GetClient(redis.WhitelistCache)
	if err != nil {
		return nil, nil, err
	}

	profileCache, err := redisManager.GetClient(redis.ProfileCache)
	if err != nil {
		return nil, nil, err
	}

	prefs := preferences.NewCached(db.Model().Preference(), prefsCache, 0, logger)
	confirmer := confirm.New(platform, confirm.DefaultTimeout, logger)

	gatekeeper, err := whitelist.New(
		platform, prefs, whitelist.NewRedisCache(whitelistCache, 0), confirmer, &cfg.Bot.Whitelist, logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create whitelist: %w", err)
	}

	// Each plugin gets its own client so responses are cached for the plugin's TTL
	httpOptions := func(cacheTTL time.Duration) httpclient.Options {
		return httpclient.Options{
			Cache:          profileCache,
			CacheTTL:       cacheTTL,
			RequestTimeout: cfg.Bot.Profiles.RequestTimeout,
			Retry:          cfg.Bot.Profiles.Retry,
			CircuitBreaker: cfg.Bot.Profiles.CircuitBreaker,
		}
	}

	overwatchClient := httpclient.New(httpOptions(cfg.Bot.Profiles.Overwatch.CacheTTL), logger)
	plugins := []profiles.Plugin{overwatch.New(
		&cfg.Bot.Profiles.Overwatch, profiles.NewFetcher(overwatch.PluginName, overwatchClient, logger), logger,
	)}

	if cfg.Bot.Profiles.LastFM.APIKey != "" {
		lastfmClient := httpclient.New(httpOptions(cfg.Bot.Profiles.LastFM.CacheTTL), logger)
		plugins = append(plugins, lastfm.New(
			&cfg.Bot.Profiles.LastFM, profiles.NewFetcher(lastfm.PluginName, lastfmClient, logger), logger,
		))
	} else {
		logger.Warn("Last.fm API key is not configured, the lastfm profile plugin is disabled")
	}

	cogs := []Cog{
		gatekeeper,
		archive.New(platform, db.Model().Archive(), prefs, confirmer, &cfg.Bot.Archive, logger),
		count.New(platform, db.Model().Count(), &cfg.Bot.Count, logger),
		owner.New(platform, httpclient.New(httpOptions(0), logger), logger),
		embedme.New(platform, logger),
		profiles.New(platform, db.Model().Profile(), logger, plugins...),
	}

	return cogs, confirmer, nil
}

// Start opens the gateway connection and starts the periodic sweep.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	b.sweepWG.Add(1)

	go b.sweepLoop()

	return nil
}

// Close closes the gateway so no new events arrive, drains running handlers
// until ctx is done and then cancels whatever is left along with the sweep.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")

	b.client.Close(ctx)

	if !b.dispatcher.Drain(ctx) {
		b.logger.Warn("Handlers still running at shutdown, cancelling them")
	}

	b.cancel()
	b.dispatcher.Wait()
	b.sweepWG.Wait()
}

func (b *Bot) sweepLoop() {
	defer b.sweepWG.Done()

	interval := b.cfg.Bot.Whitelist.SweepInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.dispatcher.Sweep(b.ctx)
		}
	}
}

func (b *Bot) handleMessage(event *events.GuildMessageCreate) {
	b.dispatcher.DispatchMessage(b.ctx, client.ConvertMessage(event.Message))
}

func (b *Bot) handleGuildJoin(event *events.GuildJoin) {
	b.logger.Info("Joined guild",
		zap.String("guildID", event.Guild.ID.String()),
		zap.String("guild_name", event.Guild.Name))

	b.dispatcher.DispatchGuildJoin(b.ctx, event.Guild.ID)
}

// handleGuildsReady runs the first sweep once the guild cache is filled.
func (b *Bot) handleGuildsReady(_ *events.GuildsReady) {
	b.readyOnce.Do(func() {
		b.logger.Info("Guilds ready, running initial sweep")

		b.sweepWG.Add(1)

		go func() {
			defer b.sweepWG.Done()
			b.dispatcher.Sweep(b.ctx)
		}()
	})
}

func (b *Bot) handleReactionAdd(event *events.GuildMessageReactionAdd) {
	if event.Emoji.Name == nil {
		return
	}

	b.dispatcher.DispatchReaction(event.MessageID, event.UserID, *event.Emoji.Name)
}
