// Package archive records guild messages and lets moderators search them.
package archive

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/robalyx/snowball/internal/metrics"
	"github.com/robalyx/snowball/internal/preferences"
	"github.com/robalyx/snowball/internal/setup/config"
	"go.uber.org/zap"
)

// enabledKey is the guild preference that turns recording on or off.
const enabledKey = "features:archive:enabled"

// Store persists archived messages.
type Store interface {
	InsertMessage(ctx context.Context, msg *types.ArchivedMessage) error
	GetMessage(ctx context.Context, messageID snowflake.ID) (*types.ArchivedMessage, error)
	Search(ctx context.Context, filter types.ArchiveFilter, limit, offset int) ([]*types.ArchivedMessage, error)
}

// Confirmer asks a user to approve an action.
type Confirmer interface {
	Ask(ctx context.Context, channelID, userID snowflake.ID, embed discord.Embed) (bool, error)
}

// Archive is the recorder and search cog.
type Archive struct {
	platform       chat.Platform
	store          Store
	prefs          preferences.Store
	confirmer      Confirmer
	recordBots     bool
	bannedAuthors  map[snowflake.ID]struct{}
	bannedChannels map[snowflake.ID]struct{}
	bannedGuilds   map[snowflake.ID]struct{}
	logger         *zap.Logger
}

// New creates the archive cog.
func New(
	platform chat.Platform, store Store, prefs preferences.Store, confirmer Confirmer,
	cfg *config.Archive, logger *zap.Logger,
) *Archive {
	return &Archive{
		platform:       platform,
		store:          store,
		prefs:          prefs,
		confirmer:      confirmer,
		recordBots:     cfg.Bots,
		bannedAuthors:  idSet(cfg.BannedAuthors),
		bannedChannels: idSet(cfg.BannedChannels),
		bannedGuilds:   idSet(cfg.BannedGuilds),
		logger:         logger.Named("archive"),
	}
}

func idSet(ids []uint64) map[snowflake.ID]struct{} {
	set := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		set[snowflake.ID(id)] = struct{}{}
	}

	return set
}

// Name returns the cog name.
func (a *Archive) Name() string {
	return "archive"
}

// HandleMessage records the message, then serves the archive commands.
func (a *Archive) HandleMessage(ctx context.Context, msg chat.Message, cmd command.Command) error {
	a.record(ctx, msg)

	switch cmd.Kind { //nolint:exhaustive // other kinds belong to other cogs
	case command.KindArchive:
		if !a.platform.GuildPermissions(msg.GuildID, msg.Author.ID).Has(discord.PermissionManageMessages) {
			return nil
		}

		return a.handleArchive(ctx, msg, cmd)
	case command.KindMessage:
		return a.handleMessage(ctx, msg, cmd)
	case command.KindEnableArchive:
		perms := a.platform.GuildPermissions(msg.GuildID, msg.Author.ID)
		if !perms.Has(discord.PermissionManageGuild | discord.PermissionManageMessages) {
			return nil
		}

		return a.handleEnable(ctx, msg, cmd)
	default:
		return nil
	}
}

// record stores the message unless it is filtered out. Failures are logged only.
func (a *Archive) record(ctx context.Context, msg chat.Message) {
	if !a.shouldRecord(msg) {
		metrics.MessagesArchived.WithLabelValues("skipped").Inc()
		return
	}

	enabled, err := a.enabled(ctx, msg.GuildID)
	if err != nil {
		a.logger.Error("Failed to check archive status",
			zap.Uint64("guildID", uint64(msg.GuildID)),
			zap.Error(err))
		metrics.MessagesArchived.WithLabelValues("error").Inc()

		return
	}

	if !enabled {
		metrics.MessagesArchived.WithLabelValues("skipped").Inc()
		return
	}

	archived, err := toArchived(msg)
	if err == nil {
		err = a.store.InsertMessage(ctx, archived)
	}

	if err != nil {
		a.logger.Error("Failed to archive message",
			zap.Uint64("guildID", uint64(msg.GuildID)),
			zap.Uint64("channelID", uint64(msg.ChannelID)),
			zap.Uint64("messageID", uint64(msg.ID)),
			zap.Error(err))
		metrics.MessagesArchived.WithLabelValues("error").Inc()

		return
	}

	metrics.MessagesArchived.WithLabelValues("stored").Inc()
}

func (a *Archive) shouldRecord(msg chat.Message) bool {
	if msg.Author.Bot && !a.recordBots {
		return false
	}

	if _, ok := a.bannedAuthors[msg.Author.ID]; ok {
		return false
	}

	if _, ok := a.bannedChannels[msg.ChannelID]; ok {
		return false
	}

	_, banned := a.bannedGuilds[msg.GuildID]

	return !banned
}

// enabled reports whether recording is on for a guild. Guilds that never
// changed the setting are recorded.
func (a *Archive) enabled(ctx context.Context, guildID snowflake.ID) (bool, error) {
	var enabled bool

	found, err := a.prefs.Get(ctx, preferences.GuildScope(guildID), enabledKey, &enabled)
	if err != nil {
		return false, err
	}

	return !found || enabled, nil
}

// toArchived converts a chat message into its stored form.
func toArchived(msg chat.Message) (*types.ArchivedMessage, error) {
	archived := &types.ArchivedMessage{
		MessageID: msg.ID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.Author.ID,
		Content:   msg.Content,
	}

	if len(msg.Attachments) == 0 && len(msg.Embeds) == 0 {
		return archived, nil
	}

	other := &types.EmulatedContents{}

	for _, attachment := range msg.Attachments {
		other.Attachments = append(other.Attachments, types.ArchivedAttachment{
			ID:   attachment.ID,
			File: types.ArchivedFile{Name: attachment.Filename, URL: attachment.URL},
		})
	}

	if len(msg.Embeds) > 0 {
		data, err := sonic.Marshal(msg.Embeds)
		if err != nil {
			return nil, fmt.Errorf("failed to encode embeds: %w", err)
		}

		if err := sonic.Unmarshal(data, &other.Embeds); err != nil {
			return nil, fmt.Errorf("failed to decode embeds: %w", err)
		}
	}

	archived.Other = other

	return archived, nil
}
