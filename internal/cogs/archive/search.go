package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/robalyx/snowball/internal/discord/chat"
	"go.uber.org/zap"
)

const (
	// DefaultLines is the number of messages returned when no count is given.
	DefaultLines = 50
	// MaxLines caps the number of messages in one archive file.
	MaxLines = 5000

	archiveUsage = "user|channel|guild [targets…] [offset] [lines]"
)

// historyPermissions are needed to see archived messages of a channel.
const historyPermissions = discord.PermissionViewChannel | discord.PermissionReadMessageHistory

var numberPattern = regexp.MustCompile(`^[0-9]{1,5}$`)

var (
	errUnresolvedUser    = errors.New("user could not be found")
	errUnresolvedChannel = errors.New("channel could not be found")
	errNotTextChannel    = errors.New("channel is not a text channel")
)

// target is what an archive search covers.
type target int

const (
	targetUnknown target = iota
	targetUser
	targetChannel
	targetGuild
)

func parseTarget(s string) target {
	switch s {
	case "user":
		return targetUser
	case "channel":
		return targetChannel
	case "guild":
		return targetGuild
	default:
		return targetUnknown
	}
}

// popPaging removes the trailing line count and offset from args.
// The last numeric argument is the line count, the one before it the offset.
func popPaging(args []string) (rest []string, lines, offset int) {
	lines = DefaultLines

	if n := len(args); n > 0 && numberPattern.MatchString(args[n-1]) {
		lines, _ = strconv.Atoi(args[n-1])
		args = args[:n-1]
	}

	if n := len(args); n > 0 && numberPattern.MatchString(args[n-1]) {
		offset, _ = strconv.Atoi(args[n-1])
		args = args[:n-1]
	}

	return args, lines, offset
}

func (a *Archive) handleArchive(ctx context.Context, msg chat.Message, cmd command.Command) error {
	if len(cmd.Args) == 0 {
		return a.reply(ctx, msg, utils.InfoEmbed("Archive",
			command.Usage(command.KindArchive, archiveUsage)+
				fmt.Sprintf("\nUp to %d lines can be requested at once.", MaxLines)))
	}

	what := parseTarget(cmd.Sub)
	if what == targetUnknown {
		return a.reply(ctx, msg, utils.ErrorEmbed("Unknown target",
			"Choose one of `user`, `channel` or `guild`.\n"+command.Usage(command.KindArchive, archiveUsage)))
	}

	args, lines, offset := popPaging(cmd.Args[1:])
	if lines < 1 || lines > MaxLines {
		return a.reply(ctx, msg, utils.ErrorEmbed("Invalid length",
			fmt.Sprintf("The number of lines must be between 1 and %d.", MaxLines)))
	}

	authors := newAuthorResolver(a.platform)
	filter := types.ArchiveFilter{GuildID: msg.GuildID}

	switch what {
	case targetUser:
		if len(args) == 0 {
			return a.reply(ctx, msg, utils.ErrorEmbed("Missing users",
				"Mention at least one user or give their ID.\n"+command.Usage(command.KindArchive, "user <users…>")))
		}

		for _, arg := range args {
			user, err := a.resolveUser(ctx, msg.GuildID, arg)
			if err != nil {
				return a.replyResolveError(ctx, msg, arg, err)
			}

			authors.remember(user)
			filter.AuthorIDs = append(filter.AuthorIDs, user.ID)
		}
	case targetChannel:
		for _, arg := range args {
			if userArg, ok := strings.CutPrefix(arg, "u:"); ok {
				user, err := a.resolveUser(ctx, msg.GuildID, strings.TrimSpace(userArg))
				if err != nil {
					return a.replyResolveError(ctx, msg, arg, err)
				}

				authors.remember(user)
				filter.AuthorIDs = append(filter.AuthorIDs, user.ID)

				continue
			}

			channel, err := a.resolveChannel(ctx, msg.GuildID, arg)
			if err != nil {
				return a.replyResolveError(ctx, msg, arg, err)
			}

			filter.ChannelIDs = append(filter.ChannelIDs, channel.ID)
		}

		if len(filter.ChannelIDs) == 0 {
			filter.ChannelIDs = []snowflake.ID{msg.ChannelID}
		}
	case targetGuild, targetUnknown:
	}

	messages, err := a.store.Search(ctx, filter, lines, offset)
	if err != nil {
		return fmt.Errorf("failed to search archive: %w", err)
	}

	messages = a.visibleTo(ctx, messages, msg.Author.ID)
	if len(messages) == 0 {
		return a.reply(ctx, msg, utils.InfoEmbed("Nothing found", "No archived messages match your search."))
	}

	// Stored newest first, written oldest first
	slices.Reverse(messages)

	content := formatMessages(ctx, messages, authors)

	a.logger.Debug("Sending archive",
		zap.Uint64("guildID", uint64(msg.GuildID)),
		zap.Uint64("requestedBy", uint64(msg.Author.ID)),
		zap.Int("lines", len(messages)))

	_, err = a.platform.Send(ctx, msg.ChannelID, chat.Outgoing{
		Content: fmt.Sprintf("Done, %d lines", len(messages)),
		Files: []chat.File{{
			Name:   fileName(time.Now()),
			Reader: bytes.NewReader([]byte(content)),
		}},
	})

	return err
}

// visibleTo drops messages from channels the user cannot read. Messages of
// channels that no longer exist are kept. A channel that cannot be looked up
// for any other reason is treated as unreadable.
func (a *Archive) visibleTo(
	ctx context.Context, messages []*types.ArchivedMessage, userID snowflake.ID,
) []*types.ArchivedMessage {
	visible := make(map[snowflake.ID]bool)

	return slices.DeleteFunc(messages, func(m *types.ArchivedMessage) bool {
		allowed, ok := visible[m.ChannelID]
		if !ok {
			_, err := a.platform.Channel(ctx, m.ChannelID)

			switch {
			case err == nil:
				allowed = a.platform.ChannelPermissions(m.ChannelID, userID).Has(historyPermissions)
			case errors.Is(err, chat.ErrNotFound):
				allowed = true
			default:
				a.logger.Warn("Failed to look up archived channel, hiding its messages",
					zap.Uint64("channelID", uint64(m.ChannelID)),
					zap.Error(err))

				allowed = false
			}

			visible[m.ChannelID] = allowed
		}

		return !allowed
	})
}

// resolveUser accepts a mention or an id of a guild member or any user.
func (a *Archive) resolveUser(ctx context.Context, guildID snowflake.ID, arg string) (*chat.User, error) {
	userID, err := utils.ParseUserMention(arg)
	if err != nil {
		return nil, errUnresolvedUser
	}

	if member, err := a.platform.Member(ctx, guildID, userID); err == nil {
		return &member.User, nil
	}

	user, err := a.platform.User(ctx, userID)
	if err != nil {
		return nil, errUnresolvedUser
	}

	return user, nil
}

// resolveChannel accepts a mention or an id of a text channel of the guild.
func (a *Archive) resolveChannel(ctx context.Context, guildID snowflake.ID, arg string) (*chat.Channel, error) {
	channelID, err := utils.ParseChannelMention(arg)
	if err != nil {
		return nil, errUnresolvedChannel
	}

	channel, err := a.platform.Channel(ctx, channelID)
	if err != nil || channel.GuildID != guildID {
		return nil, errUnresolvedChannel
	}

	if !channel.IsText() {
		return nil, errNotTextChannel
	}

	return channel, nil
}

func (a *Archive) replyResolveError(ctx context.Context, msg chat.Message, arg string, err error) error {
	arg = strings.ReplaceAll(arg, "``", "''")

	var embed discord.Embed

	switch {
	case errors.Is(err, errNotTextChannel):
		embed = utils.ErrorEmbed("Invalid channel", fmt.Sprintf("`%s` is not a text channel.", arg))
	case errors.Is(err, errUnresolvedChannel):
		embed = utils.ErrorEmbed("Channel not found", fmt.Sprintf("Could not find a channel for `%s`.", arg))
	default:
		embed = utils.ErrorEmbed("User not found", fmt.Sprintf("Could not find a user for `%s`.", arg))
	}

	return a.reply(ctx, msg, embed)
}

func (a *Archive) reply(ctx context.Context, msg chat.Message, embed discord.Embed) error {
	return utils.SendEmbed(ctx, a.platform, msg.ChannelID, embed)
}
