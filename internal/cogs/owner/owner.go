// Package owner implements commands reserved to the bot owner.
package owner

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/disgoorg/disgo/discord"
	"github.com/jaxron/axonet/pkg/client"
	"github.com/robalyx/snowball/internal/bot/command"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/discord/chat"
	httpclient "github.com/robalyx/snowball/internal/setup/client"
	"go.uber.org/zap"
)

// maxAvatarSize bounds avatar downloads. Discord rejects larger images anyway.
const maxAvatarSize = 10 << 20

var errUnexpectedStatus = errors.New("unexpected response status")

// Owner is the owner console cog.
type Owner struct {
	platform chat.Platform
	client   *client.Client
	logger   *zap.Logger
}

// New creates the owner console. Avatar images are downloaded with client.
func New(platform chat.Platform, client *client.Client, logger *zap.Logger) *Owner {
	return &Owner{
		platform: platform,
		client:   client,
		logger:   logger.Named("owner"),
	}
}

// Name returns the cog name.
func (o *Owner) Name() string {
	return "owner"
}

// HandleMessage runs owner commands. Messages of anyone else are ignored.
func (o *Owner) HandleMessage(ctx context.Context, msg chat.Message, cmd command.Command) error {
	if msg.Author.ID != o.platform.OwnerID() {
		return nil
	}

	switch cmd.Kind { //nolint:exhaustive // other kinds belong to other cogs
	case command.KindChangeName:
		return o.changeName(ctx, msg, cmd.Text)
	case command.KindChangeAvatar:
		return o.changeAvatar(ctx, msg)
	default:
		return nil
	}
}

func (o *Owner) changeName(ctx context.Context, msg chat.Message, name string) error {
	if name == "" {
		return utils.SendEmbed(ctx, o.platform, msg.ChannelID,
			utils.InfoEmbed("Change name", command.Usage(command.KindChangeName, "<name>")))
	}

	oldName := o.platform.Self().Username

	user, err := o.platform.UpdateSelf(ctx, chat.SelfUpdate{Username: &name})
	if err != nil {
		o.logger.Warn("Failed to change username", zap.String("name", name), zap.Error(err))
		o.react(ctx, msg, constants.DeniedEmoji)

		return utils.SendEmbed(ctx, o.platform, msg.ChannelID,
			utils.ErrorEmbed("Could not change name", err.Error()))
	}

	o.logger.Info("Changed username", zap.String("old", oldName), zap.String("new", user.Username))
	o.react(ctx, msg, constants.ConfirmEmoji)

	return utils.SendEmbed(ctx, o.platform, msg.ChannelID, utils.SuccessEmbed("Name changed",
		fmt.Sprintf("**%s** is now known as **%s**.",
			utils.EscapeMarkdown(oldName), utils.EscapeMarkdown(user.Username))))
}

func (o *Owner) changeAvatar(ctx context.Context, msg chat.Message) error {
	if len(msg.Attachments) != 1 {
		return utils.SendEmbed(ctx, o.platform, msg.ChannelID,
			utils.InfoEmbed("Change avatar", "Attach exactly one image to "+command.Prefix+command.KindChangeAvatar.String()+"."))
	}

	image, err := o.download(ctx, msg.Attachments[0].URL)
	if errors.Is(err, errUnexpectedStatus) {
		return utils.SendEmbed(ctx, o.platform, msg.ChannelID,
			utils.ErrorEmbed("Response error", "The image could not be downloaded: "+err.Error()))
	}

	if err != nil {
		o.logger.Warn("Failed to download avatar", zap.Error(err))

		return utils.SendEmbed(ctx, o.platform, msg.ChannelID,
			utils.ErrorEmbed("Request error", "The image could not be downloaded: "+err.Error()))
	}

	user, err := o.platform.UpdateSelf(ctx, chat.SelfUpdate{Avatar: image})
	if err != nil {
		o.logger.Warn("Failed to change avatar", zap.Error(err))

		return utils.SendEmbed(ctx, o.platform, msg.ChannelID,
			utils.ErrorEmbed("Could not change avatar", err.Error()))
	}

	o.logger.Info("Changed avatar", zap.String("url", user.AvatarURL))

	embed := utils.SuccessEmbed("Avatar changed", user.AvatarURL)
	if user.AvatarURL != "" {
		embed.Image = &discord.EmbedResource{URL: user.AvatarURL}
	}

	return utils.SendEmbed(ctx, o.platform, msg.ChannelID, embed)
}

func (o *Owner) download(ctx context.Context, url string) ([]byte, error) {
	status, body, err := httpclient.Get(ctx, o.client, url, maxAvatarSize)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", errUnexpectedStatus, status, http.StatusText(status))
	}

	return body, nil
}

func (o *Owner) react(ctx context.Context, msg chat.Message, emoji string) {
	if err := o.platform.AddReaction(ctx, msg.ChannelID, msg.ID, emoji); err != nil {
		o.logger.Warn("Failed to react", zap.String("emoji", emoji), zap.Error(err))
	}
}
