package utils

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/discord/chat"
)

// ErrorEmbed builds an embed reporting a failure.
func ErrorEmbed(title, description string) discord.Embed {
	return statusEmbed(constants.ErrorEmbedColor, title, description)
}

// SuccessEmbed builds an embed reporting a completed action.
func SuccessEmbed(title, description string) discord.Embed {
	return statusEmbed(constants.SuccessEmbedColor, title, description)
}

// InfoEmbed builds a neutral informational embed.
func InfoEmbed(title, description string) discord.Embed {
	return statusEmbed(constants.InfoEmbedColor, title, description)
}

// WarningEmbed builds an embed asking for caution, used by confirmations.
func WarningEmbed(title, description string) discord.Embed {
	return statusEmbed(constants.WarningEmbedColor, title, description)
}

func statusEmbed(color int, title, description string) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle(title).
		SetDescription(description).
		SetColor(color).
		Build()
}

// SendEmbed posts a single embed.
func SendEmbed(ctx context.Context, platform chat.Platform, channelID snowflake.ID, embed discord.Embed) error {
	_, err := platform.Send(ctx, channelID, chat.Outgoing{Embeds: []discord.Embed{embed}})
	return err
}

// SendText posts a plain message.
func SendText(ctx context.Context, platform chat.Platform, channelID snowflake.ID, content string) error {
	_, err := platform.Send(ctx, channelID, chat.Outgoing{Content: content})
	return err
}
