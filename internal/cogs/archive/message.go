package archive

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/robalyx/snowball/internal/discord/chat"
	"go.uber.org/zap"
)

var messageIDPattern = regexp.MustCompile(`^[0-9]{17,20}$`)

// handleMessage shows a single archived message with its embeds.
func (a *Archive) handleMessage(ctx context.Context, msg chat.Message, cmd command.Command) error {
	if len(cmd.Args) == 0 {
		return a.reply(ctx, msg, utils.InfoEmbed("Archived message", command.Usage(command.KindMessage, "<message id>")))
	}

	if !messageIDPattern.MatchString(cmd.Args[0]) {
		return a.reply(ctx, msg, utils.ErrorEmbed("Invalid ID", "The message ID you entered is not valid."))
	}

	messageID, err := snowflake.Parse(cmd.Args[0])
	if err != nil {
		return a.reply(ctx, msg, utils.ErrorEmbed("Invalid ID", "The message ID you entered is not valid."))
	}

	archived, err := a.store.GetMessage(ctx, messageID)
	if errors.Is(err, types.ErrRecordNotFound) {
		return a.reply(ctx, msg, utils.ErrorEmbed("Not found", "This message is not in the archive."))
	}

	if err != nil {
		return fmt.Errorf("failed to get archived message: %w", err)
	}

	// Messages of other guilds are not acknowledged at all
	if archived.GuildID != msg.GuildID {
		return nil
	}

	channel, err := a.platform.Channel(ctx, archived.ChannelID)
	if err != nil {
		return a.reply(ctx, msg, utils.ErrorEmbed("Channel not found",
			"The channel of this message no longer exists."))
	}

	if !a.platform.ChannelPermissions(channel.ID, msg.Author.ID).Has(historyPermissions) {
		return a.reply(ctx, msg, utils.ErrorEmbed("Missing permissions",
			"You cannot read the message history of the channel this message was sent in."))
	}

	embed := a.messageEmbed(ctx, archived, channel)
	if _, err := a.platform.Send(ctx, msg.ChannelID, chat.Outgoing{Embeds: []discord.Embed{embed}}); err != nil {
		return err
	}

	if archived.Other == nil {
		return nil
	}

	for _, raw := range archived.Other.Embeds {
		stored, err := decodeEmbed(raw)
		if err != nil {
			a.logger.Warn("Skipping undecodable archived embed",
				zap.Uint64("messageID", uint64(archived.MessageID)),
				zap.Error(err))

			continue
		}

		_, err = a.platform.Send(ctx, msg.ChannelID, chat.Outgoing{
			Content: fmt.Sprintf("Embed of message `%s`:", archived.MessageID),
			Embeds:  []discord.Embed{stored},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *Archive) messageEmbed(ctx context.Context, archived *types.ArchivedMessage, channel *chat.Channel) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("Message "+archived.MessageID.String()).
		SetDescription(archived.Content).
		SetFooter("#"+channel.Name, "").
		SetTimestamp(archived.MessageID.Time())

	authorName := archived.AuthorID.String()
	authorIcon := ""

	if member, err := a.platform.Member(ctx, archived.GuildID, archived.AuthorID); err == nil {
		authorName, authorIcon = member.Tag, member.AvatarURL

		if member.Color != 0 {
			builder.SetColor(member.Color)
		}
	} else if user, err := a.platform.User(ctx, archived.AuthorID); err == nil {
		authorName, authorIcon = user.Tag, user.AvatarURL
	}

	builder.SetAuthor(authorName, "", authorIcon)

	other := archived.Other
	if other == nil {
		return builder.Build()
	}

	if len(other.Attachments) == 1 {
		builder.SetImage(other.Attachments[0].File.URL)
	}

	if len(other.Embeds) > 0 {
		builder.AddField("Embeds", fmt.Sprintf("%d embeds, sent below", len(other.Embeds)), true)
	}

	if len(other.Attachments) > 1 {
		var list strings.Builder
		for _, attachment := range other.Attachments {
			fmt.Fprintf(&list, "[%s](%s)\n", utils.EscapeMarkdown(attachment.File.Name), attachment.File.URL)
		}

		builder.AddField("Attachments", utils.TruncateString(list.String(), 1024), true)
	}

	return builder.Build()
}

func decodeEmbed(raw map[string]any) (discord.Embed, error) {
	var embed discord.Embed

	data, err := sonic.Marshal(raw)
	if err != nil {
		return embed, err
	}

	err = sonic.Unmarshal(data, &embed)

	return embed, err
}
