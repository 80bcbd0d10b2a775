package archive

import (
	"context"
	"fmt"

	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/discord/chat"
	"github.com/robalyx/snowball/internal/preferences"
	"go.uber.org/zap"
)

// handleEnable turns recording on or off for the guild.
func (a *Archive) handleEnable(ctx context.Context, msg chat.Message, cmd command.Command) error {
	current, err := a.enabled(ctx, msg.GuildID)
	if err != nil {
		return fmt.Errorf("failed to get archive status: %w", err)
	}

	var wanted bool

	switch cmd.Sub {
	case "true":
		wanted = true
	case "false":
		wanted = false
	default:
		return a.reply(ctx, msg, utils.InfoEmbed("Archive status",
			fmt.Sprintf("Archiving is currently **%s**.\n%s", statusWord(current),
				command.Usage(command.KindEnableArchive, "true|false"))))
	}

	if wanted == current {
		return a.reply(ctx, msg, utils.InfoEmbed("Archive status",
			fmt.Sprintf("Archiving is already **%s**.", statusWord(current))))
	}

	question := "Stop recording messages of this server? Already archived messages stay searchable."
	if wanted {
		question = "Start recording messages of this server?"
	}

	ok, err := a.confirmer.Ask(ctx, msg.ChannelID, msg.Author.ID, utils.WarningEmbed("Are you sure?", question))
	if err != nil {
		return fmt.Errorf("failed to ask for confirmation: %w", err)
	}

	if !ok {
		return a.reply(ctx, msg, utils.InfoEmbed("Canceled", "The archive status was not changed."))
	}

	if err := a.prefs.Set(ctx, preferences.GuildScope(msg.GuildID), enabledKey, wanted); err != nil {
		return fmt.Errorf("failed to save archive status: %w", err)
	}

	a.logger.Info("Changed archive status",
		zap.Uint64("guildID", uint64(msg.GuildID)),
		zap.Uint64("changedBy", uint64(msg.Author.ID)),
		zap.Bool("enabled", wanted))

	return a.reply(ctx, msg, utils.WarningEmbed("Archive status changed",
		fmt.Sprintf("Archiving is now **%s**.", statusWord(wanted))))
}

func statusWord(enabled bool) string {
	if enabled {
		return "enabled"
	}

	return "disabled"
}
