// Package embedme reposts a member's text as an embed signed with their name.
package embedme

import (
	"context"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/discord/chat"
	"go.uber.org/zap"
)

// EmbedMe is the embed-me cog.
type EmbedMe struct {
	platform chat.Platform
	logger   *zap.Logger
}

// New creates the embed-me cog.
func New(platform chat.Platform, logger *zap.Logger) *EmbedMe {
	return &EmbedMe{platform: platform, logger: logger.Named("embedme")}
}

// Name returns the cog name.
func (e *EmbedMe) Name() string {
	return "embedme"
}

// HandleMessage serves !embed.
func (e *EmbedMe) HandleMessage(ctx context.Context, msg chat.Message, cmd command.Command) error {
	if cmd.Kind != command.KindEmbed || msg.Author.Bot {
		return nil
	}

	text := unquote(cmd.Text)
	if text == "" {
		_, err := e.platform.Send(ctx, msg.ChannelID, chat.Outgoing{
			Content: ":information_source: " + command.Usage(command.KindEmbed, "<text>"),
		})

		return err
	}

	self := e.platform.Self()

	builder := discord.NewEmbedBuilder().
		SetAuthor(msg.Author.Username, "", msg.Author.AvatarURL).
		SetDescription(text).
		SetTimestamp(msg.ID.Time()).
		SetFooter("Sent with "+self.Username, self.AvatarURL)

	if member, err := e.platform.Member(ctx, msg.GuildID, msg.Author.ID); err == nil && member.Color != 0 {
		builder.SetColor(member.Color)
	}

	if _, err := e.platform.Send(ctx, msg.ChannelID, chat.Outgoing{Embeds: []discord.Embed{builder.Build()}}); err != nil {
		return err
	}

	if err := e.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		e.logger.Debug("Failed to delete embedded message", zap.Error(err))
	}

	return nil
}

// unquote strips one pair of surrounding backticks.
func unquote(text string) string {
	if len(text) >= 2 && strings.HasPrefix(text, "`") && strings.HasSuffix(text, "`") {
		return text[1 : len(text)-1]
	}

	return text
}
