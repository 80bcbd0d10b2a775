package whitelist

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/discord/chat"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	activateUsage   = "activate <server id> forever|<duration>"
	deactivateUsage = "deactivate <server id>"
	banUsage        = "ban <server id>"
	untilLayout     = "Monday, January 2, 2006 15:04 MST"
)

// adminPermissions grant access to the status command. Any one is enough.
const adminPermissions = discord.PermissionAdministrator |
	discord.PermissionManageGuild |
	discord.PermissionManageRoles |
	discord.PermissionManageChannels

// subCommand is a !whitelist sub-command.
type subCommand int

const (
	subUnknown subCommand = iota
	subActivate
	subDeactivate
	subBan
	subMode
)

func parseSubCommand(s string) subCommand {
	switch s {
	case "activate":
		return subActivate
	case "deactivate":
		return subDeactivate
	case "ban":
		return subBan
	case "mode":
		return subMode
	default:
		return subUnknown
	}
}

// HandleMessage serves the status and administration commands.
func (w *Whitelist) HandleMessage(ctx context.Context, msg chat.Message, cmd command.Command) error {
	switch cmd.Kind { //nolint:exhaustive // other kinds belong to other cogs
	case command.KindPStatus:
		return w.handleStatus(ctx, msg)
	case command.KindWhitelist:
		if msg.Author.ID != w.platform.OwnerID() {
			return nil
		}

		return w.handleWhitelist(ctx, msg, cmd)
	default:
		return nil
	}
}

func (w *Whitelist) handleStatus(ctx context.Context, msg chat.Message) error {
	if !w.isServerAdmin(msg.GuildID, msg.Author.ID) {
		return nil
	}

	status, err := w.GetStatus(ctx, msg.GuildID)
	if err != nil {
		return fmt.Errorf("failed to get whitelist status: %w", err)
	}

	guildName := msg.GuildID.String()
	if guild, ok := w.platform.Guild(msg.GuildID); ok {
		guildName = guild.Name
	}

	var b strings.Builder

	b.WriteString("```md\n")
	fmt.Fprintf(&b, "# Whitelist status of %s\n", utils.EscapeMarkdown(guildName))
	fmt.Fprintf(&b, "Status: %s", status.State.Label())

	if status.State.HasDeadline() && status.Until != nil {
		fmt.Fprintf(&b, "\nWhitelisted until %s", status.Until.UTC().Format(untilLayout))
	}

	b.WriteString("\n```")

	return utils.SendText(ctx, w.platform, msg.ChannelID, b.String())
}

func (w *Whitelist) isServerAdmin(guildID, userID snowflake.ID) bool {
	if userID == w.platform.OwnerID() {
		return true
	}

	return w.platform.GuildPermissions(guildID, userID)&adminPermissions != 0
}

func (w *Whitelist) handleWhitelist(ctx context.Context, msg chat.Message, cmd command.Command) error {
	var args []string
	if len(cmd.Args) > 1 {
		args = cmd.Args[1:]
	}

	switch parseSubCommand(cmd.Sub) {
	case subActivate:
		return w.activate(ctx, msg, args)
	case subDeactivate:
		return w.deactivate(ctx, msg, args)
	case subBan:
		return w.ban(ctx, msg, args)
	case subMode:
		return w.changeMode(ctx, msg, args)
	case subUnknown:
		return w.reply(ctx, msg, utils.InfoEmbed("Whitelist",
			command.Usage(command.KindWhitelist, "activate|deactivate|ban|mode")))
	}

	return nil
}

func (w *Whitelist) activate(ctx context.Context, msg chat.Message, args []string) error {
	if len(args) != 2 {
		return w.reply(ctx, msg, utils.ErrorEmbed("Wrong usage", command.Usage(command.KindWhitelist, activateUsage)))
	}

	guildID, err := utils.ParseSnowflake(args[0])
	if err != nil {
		return w.reply(ctx, msg, utils.ErrorEmbed("Invalid server ID", "The server ID you entered is not valid."))
	}

	if strings.EqualFold(args[1], "forever") {
		ok, err := w.confirm(ctx, msg, fmt.Sprintf("Activate server `%s` without an end date?", guildID))
		if err != nil || !ok {
			return err
		}

		if err := w.store.SetUntimed(ctx, guildID, StateUnlimited); err != nil {
			return fmt.Errorf("failed to activate guild: %w (guildID=%d)", err, guildID)
		}
	} else {
		duration, err := utils.ParseCombinedDuration(args[1])
		if err != nil {
			return w.reply(ctx, msg, utils.ErrorEmbed("Invalid duration",
				fmt.Sprintf("Could not parse `%s`. Use a duration like `30d` or `1d12h30m`.", args[1])))
		}

		until := w.now().Add(duration)

		ok, err := w.confirm(ctx, msg, fmt.Sprintf("Activate server `%s` until %s?",
			guildID, until.UTC().Format(untilLayout)))
		if err != nil || !ok {
			return err
		}

		if err := w.store.SetTimed(ctx, guildID, StateLimited, until); err != nil {
			return fmt.Errorf("failed to activate guild: %w (guildID=%d)", err, guildID)
		}
	}

	w.logger.Info("Activated guild", zap.Uint64("guildID", uint64(guildID)), zap.String("duration", args[1]))

	return w.reply(ctx, msg, utils.SuccessEmbed("Activated", fmt.Sprintf("Server `%s` is now whitelisted.", guildID)))
}

func (w *Whitelist) deactivate(ctx context.Context, msg chat.Message, args []string) error {
	if len(args) != 1 {
		return w.reply(ctx, msg, utils.ErrorEmbed("Wrong usage", command.Usage(command.KindWhitelist, deactivateUsage)))
	}

	guildID, err := utils.ParseSnowflake(args[0])
	if err != nil {
		return w.reply(ctx, msg, utils.ErrorEmbed("Invalid server ID", "The server ID you entered is not valid."))
	}

	ok, err := w.confirm(ctx, msg, fmt.Sprintf("Deactivate server `%s`?", guildID))
	if err != nil || !ok {
		return err
	}

	if err := w.store.Clear(ctx, guildID); err != nil {
		return fmt.Errorf("failed to deactivate guild: %w (guildID=%d)", err, guildID)
	}

	w.logger.Info("Deactivated guild", zap.Uint64("guildID", uint64(guildID)))

	return w.reply(ctx, msg, utils.SuccessEmbed("Deactivated", fmt.Sprintf("Server `%s` is no longer whitelisted.", guildID)))
}

func (w *Whitelist) ban(ctx context.Context, msg chat.Message, args []string) error {
	if len(args) != 1 {
		return w.reply(ctx, msg, utils.ErrorEmbed("Wrong usage", command.Usage(command.KindWhitelist, banUsage)))
	}

	guildID, err := utils.ParseSnowflake(args[0])
	if err != nil {
		return w.reply(ctx, msg, utils.ErrorEmbed("Invalid server ID", "The server ID you entered is not valid."))
	}

	ok, err := w.confirm(ctx, msg, fmt.Sprintf("Ban server `%s`? The bot will leave it and refuse to join again.", guildID))
	if err != nil || !ok {
		return err
	}

	if err := w.store.SetUntimed(ctx, guildID, StateBanned); err != nil {
		return fmt.Errorf("failed to ban guild: %w (guildID=%d)", err, guildID)
	}

	w.logger.Info("Banned guild", zap.Uint64("guildID", uint64(guildID)))

	if _, joined := w.platform.Guild(guildID); joined {
		if err := w.Leave(ctx, guildID, ReasonNone); err != nil {
			return fmt.Errorf("failed to leave banned guild: %w (guildID=%d)", err, guildID)
		}
	}

	return w.reply(ctx, msg, utils.SuccessEmbed("Banned", fmt.Sprintf("Server `%s` has been banned.", guildID)))
}

func (w *Whitelist) changeMode(ctx context.Context, msg chat.Message, args []string) error {
	usage := utils.InfoEmbed("Whitelist mode", command.Usage(command.KindWhitelist, "mode on|off <mode>")+
		"\nAvailable modes: "+strings.Join(Flags, ", "))

	if len(args) != 2 {
		return w.reply(ctx, msg, usage)
	}

	action, flag := strings.ToLower(args[0]), strings.ToLower(args[1])
	if action != "on" && action != "off" {
		return w.reply(ctx, msg, usage)
	}

	mode, err := w.store.Mode(ctx)
	if err != nil {
		return err
	}

	enabled := action == "on"

	current, err := mode.Has(flag)
	if err != nil {
		return w.reply(ctx, msg, usage)
	}

	title := cases.Title(language.English).String(flag)

	if current == enabled {
		return w.reply(ctx, msg, utils.WarningEmbed("Nothing changed",
			fmt.Sprintf("Mode **%s** is already %s.", title, enabledWord(enabled))))
	}

	updated, err := mode.With(flag, enabled)
	if err != nil {
		return err
	}

	if err := w.store.SetMode(ctx, updated); err != nil {
		return fmt.Errorf("failed to save whitelist mode: %w", err)
	}

	w.logger.Info("Changed whitelist mode",
		zap.String("flag", flag),
		zap.Bool("enabled", enabled),
		zap.String("mode", updated.Serialize()))

	return w.reply(ctx, msg, utils.SuccessEmbed("Mode changed",
		fmt.Sprintf("Mode **%s** is now %s.", title, enabledWord(enabled))))
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}

	return "disabled"
}

// confirm asks the command author to approve a change and reports a cancellation.
func (w *Whitelist) confirm(ctx context.Context, msg chat.Message, question string) (bool, error) {
	ok, err := w.confirmer.Ask(ctx, msg.ChannelID, msg.Author.ID, utils.WarningEmbed("Are you sure?", question))
	if err != nil {
		return false, fmt.Errorf("failed to ask for confirmation: %w", err)
	}

	if !ok {
		return false, w.reply(ctx, msg, utils.InfoEmbed("Canceled", "The action was canceled."))
	}

	return true, nil
}

func (w *Whitelist) reply(ctx context.Context, msg chat.Message, embed discord.Embed) error {
	return utils.SendEmbed(ctx, w.platform, msg.ChannelID, embed)
}
