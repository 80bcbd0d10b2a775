// Package profiles shows user profiles assembled from third-party statistics plugins.
package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	profileUsage = "[@user] | set <plugin> <args> | remove <plugin>"

	// fieldConcurrency bounds the plugins rendered at once for one profile.
	fieldConcurrency = 4
)

// Store persists plugin configurations per user.
type Store interface {
	SetPlugin(ctx context.Context, userID snowflake.ID, plugin string, config json.RawMessage) error
	RemovePlugin(ctx context.Context, userID snowflake.ID, plugin string) (bool, error)
	GetPlugins(ctx context.Context, userID snowflake.ID) ([]*types.ProfilePlugin, error)
}

// Profiles is the profiles cog.
type Profiles struct {
	platform chat.Platform
	store    Store
	plugins  map[string]Plugin
	logger   *zap.Logger
}

// New creates the profiles cog with the given plugins.
func New(platform chat.Platform, store Store, logger *zap.Logger, plugins ...Plugin) *Profiles {
	registry := make(map[string]Plugin, len(plugins))
	for _, plugin := range plugins {
		registry[plugin.Name()] = plugin
	}

	return &Profiles{
		platform: platform,
		store:    store,
		plugins:  registry,
		logger:   logger.Named("profiles"),
	}
}

// Name returns the cog name.
func (p *Profiles) Name() string {
	return "profiles"
}

// HandleMessage serves !profile.
func (p *Profiles) HandleMessage(ctx context.Context, msg chat.Message, cmd command.Command) error {
	if cmd.Kind != command.KindProfile || msg.Author.Bot {
		return nil
	}

	switch cmd.Sub {
	case "set":
		return p.handleSet(ctx, msg, cmd)
	case "remove":
		return p.handleRemove(ctx, msg, cmd)
	case "":
		return p.showProfile(ctx, msg, msg.Author.ID)
	default:
		userID, err := utils.ParseUserMention(cmd.Args[0])
		if err != nil {
			return p.reply(ctx, msg, utils.InfoEmbed("Profile", command.Usage(command.KindProfile, profileUsage)))
		}

		return p.showProfile(ctx, msg, userID)
	}
}

func (p *Profiles) handleSet(ctx context.Context, msg chat.Message, cmd command.Command) error {
	if len(cmd.Args) < 2 {
		return p.reply(ctx, msg, utils.InfoEmbed("Profile", command.Usage(command.KindProfile, profileUsage)))
	}

	plugin, ok := p.plugins[strings.ToLower(cmd.Args[1])]
	if !ok {
		return p.reply(ctx, msg, p.unknownPlugin(cmd.Args[1]))
	}

	args := setupArgs(cmd.Text)
	if args == "" {
		return p.reply(ctx, msg, utils.InfoEmbed("Profile",
			command.Usage(command.KindProfile, "set "+plugin.Name()+" "+plugin.SetupArgs())))
	}

	config, err := plugin.Setup(ctx, args)
	if err != nil {
		p.logger.Debug("Plugin setup failed",
			zap.String("plugin", plugin.Name()),
			zap.Uint64("userID", uint64(msg.Author.ID)),
			zap.Error(err))

		return p.reply(ctx, msg, utils.ErrorEmbed("Setup failed", setupFailure(err)))
	}

	if err := p.store.SetPlugin(ctx, msg.Author.ID, plugin.Name(), json.RawMessage(config)); err != nil {
		return err
	}

	return p.reply(ctx, msg, utils.SuccessEmbed("Plugin added",
		"`"+plugin.Name()+"` is now shown on your profile."))
}

func (p *Profiles) handleRemove(ctx context.Context, msg chat.Message, cmd command.Command) error {
	if len(cmd.Args) < 2 {
		return p.reply(ctx, msg, utils.InfoEmbed("Profile", command.Usage(command.KindProfile, profileUsage)))
	}

	name := strings.ToLower(cmd.Args[1])
	if _, ok := p.plugins[name]; !ok {
		return p.reply(ctx, msg, p.unknownPlugin(cmd.Args[1]))
	}

	removed, err := p.store.RemovePlugin(ctx, msg.Author.ID, name)
	if err != nil {
		return err
	}

	if !removed {
		return p.reply(ctx, msg, utils.InfoEmbed("Nothing removed", "`"+name+"` is not on your profile."))
	}

	return p.reply(ctx, msg, utils.SuccessEmbed("Plugin removed", "`"+name+"` was removed from your profile."))
}

func (p *Profiles) showProfile(ctx context.Context, msg chat.Message, userID snowflake.ID) error {
	user, err := p.platform.User(ctx, userID)
	if errors.Is(err, chat.ErrNotFound) {
		return p.reply(ctx, msg, utils.ErrorEmbed("User not found", "No user with ID `"+userID.String()+"` exists."))
	}

	if err != nil {
		return err
	}

	configs, err := p.store.GetPlugins(ctx, userID)
	if err != nil {
		return err
	}

	configs = slices.DeleteFunc(configs, func(config *types.ProfilePlugin) bool {
		_, ok := p.plugins[config.Plugin]
		return !ok
	})

	if len(configs) == 0 {
		return p.reply(ctx, msg, utils.InfoEmbed("Profile",
			utils.EscapeMarkdown(user.Username)+" has not set up any profile plugins."))
	}

	fields := p.renderFields(ctx, configs)

	embed := discord.NewEmbedBuilder().
		SetAuthor(user.Username, "", user.AvatarURL).
		SetColor(constants.DefaultEmbedColor).
		SetFields(fields...).
		Build()

	return p.reply(ctx, msg, embed)
}

// renderFields renders every plugin concurrently, keeping the stored order.
// A failing plugin renders an error field instead of failing the profile.
func (p *Profiles) renderFields(ctx context.Context, configs []*types.ProfilePlugin) []discord.EmbedField {
	fields := make([]discord.EmbedField, len(configs))
	workers := pool.New().WithMaxGoroutines(fieldConcurrency)

	for i, config := range configs {
		workers.Go(func() {
			plugin := p.plugins[config.Plugin]

			field, err := plugin.Field(ctx, string(config.Config))
			if err != nil {
				p.logger.Warn("Failed to render profile plugin",
					zap.String("plugin", config.Plugin),
					zap.Uint64("userID", uint64(config.UserID)),
					zap.Error(err))

				field = InlineField(plugin.Name(), constants.CancelEmoji+" Could not load this plugin.")
			}

			fields[i] = field
		})
	}

	workers.Wait()

	return fields
}

func (p *Profiles) unknownPlugin(name string) discord.Embed {
	names := make([]string, 0, len(p.plugins))
	for known := range p.plugins {
		names = append(names, "`"+known+"`")
	}

	slices.Sort(names)

	return utils.ErrorEmbed("Unknown plugin",
		"There is no plugin named `"+utils.EscapeMarkdown(name)+"`.\nAvailable plugins: "+strings.Join(names, ", "))
}

func (p *Profiles) reply(ctx context.Context, msg chat.Message, embed discord.Embed) error {
	return utils.SendEmbed(ctx, p.platform, msg.ChannelID, embed)
}

// setupArgs returns the text following "set <plugin>".
func setupArgs(text string) string {
	_, rest, _ := strings.Cut(text, " ")
	_, rest, _ = strings.Cut(strings.TrimSpace(rest), " ")

	return strings.TrimSpace(rest)
}

func setupFailure(err error) string {
	if code := ErrorCode(err); code != "" {
		return "The service reported `" + code + "`."
	}

	return err.Error()
}
