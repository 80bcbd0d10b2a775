// Package client adapts a disgo bot client to the chat.Platform interface.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/discord/chat"
	"go.uber.org/zap"
)

// membersPageSize is the largest page the member list endpoint accepts.
const membersPageSize = 1000

// Client implements chat.Platform on top of disgo.
type Client struct {
	client  bot.Client
	ownerID snowflake.ID
	logger  *zap.Logger
}

// New wraps a disgo client.
func New(client bot.Client, ownerID snowflake.ID, logger *zap.Logger) *Client {
	return &Client{
		client:  client,
		ownerID: ownerID,
		logger:  logger.Named("discord_client"),
	}
}

// Self returns the bot account, or a zero user before the gateway is ready.
func (c *Client) Self() chat.User {
	self, ok := c.client.Caches().SelfUser()
	if !ok {
		return chat.User{ID: c.client.ID()}
	}

	return ConvertUser(self.User)
}

// OwnerID returns the configured owner of the bot.
func (c *Client) OwnerID() snowflake.ID {
	return c.ownerID
}

// Send posts a message and returns its id.
func (c *Client) Send(ctx context.Context, channelID snowflake.ID, msg chat.Outgoing) (snowflake.ID, error) {
	builder := discord.NewMessageCreateBuilder().
		SetContent(msg.Content).
		SetEmbeds(msg.Embeds...).
		SetAllowedMentions(&discord.AllowedMentions{})

	for _, file := range msg.Files {
		builder.AddFile(file.Name, "", file.Reader)
	}

	message, err := c.client.Rest().CreateMessage(channelID, builder.Build(), rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	return message.ID, nil
}

// AddReaction reacts to a message with a unicode emoji.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error {
	if err := c.client.Rest().AddReaction(channelID, messageID, emoji, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}

	return nil
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	if err := c.client.Rest().DeleteMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

// SetChannelTopic replaces the topic of a text channel.
func (c *Client) SetChannelTopic(ctx context.Context, channelID snowflake.ID, topic string) error {
	_, err := c.client.Rest().UpdateChannel(channelID, discord.GuildTextChannelUpdate{Topic: &topic}, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to set channel topic: %w", err)
	}

	return nil
}

// User fetches an account by id.
func (c *Client) User(ctx context.Context, userID snowflake.ID) (*chat.User, error) {
	user, err := c.client.Rest().GetUser(userID, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapNotFound("user", err)
	}

	converted := ConvertUser(*user)

	return &converted, nil
}

// Member looks up a guild member, preferring the cache.
func (c *Client) Member(ctx context.Context, guildID, userID snowflake.ID) (*chat.Member, error) {
	member, ok := c.client.Caches().Member(guildID, userID)
	if !ok {
		fetched, err := c.client.Rest().GetMember(guildID, userID, rest.WithCtx(ctx))
		if err != nil {
			return nil, wrapNotFound("member", err)
		}

		member = *fetched
	}

	converted := c.convertMember(guildID, member)

	return &converted, nil
}

// Channel fetches a guild channel by id, preferring the cache.
func (c *Client) Channel(ctx context.Context, channelID snowflake.ID) (*chat.Channel, error) {
	if channel, ok := c.client.Caches().Channel(channelID); ok {
		converted := convertChannel(channel)
		return &converted, nil
	}

	channel, err := c.client.Rest().GetChannel(channelID, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapNotFound("channel", err)
	}

	guildChannel, ok := channel.(discord.GuildChannel)
	if !ok {
		return nil, chat.ErrNotGuildChannel
	}

	converted := convertChannel(guildChannel)

	return &converted, nil
}

// GuildChannels lists the channels of a guild in display order.
func (c *Client) GuildChannels(ctx context.Context, guildID snowflake.ID) ([]chat.Channel, error) {
	channels, err := c.client.Rest().GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapNotFound("guild channels", err)
	}

	slices.SortStableFunc(channels, func(a, b discord.GuildChannel) int {
		return a.Position() - b.Position()
	})

	result := make([]chat.Channel, 0, len(channels))
	for _, channel := range channels {
		result = append(result, convertChannel(channel))
	}

	return result, nil
}

// GuildMembers pages through every member of a guild.
func (c *Client) GuildMembers(ctx context.Context, guildID snowflake.ID) ([]chat.Member, error) {
	var (
		result []chat.Member
		after  snowflake.ID
	)

	for {
		chunk, err := c.client.Rest().GetMembers(guildID, membersPageSize, after, rest.WithCtx(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list guild members: %w", err)
		}

		for _, member := range chunk {
			result = append(result, chat.Member{User: ConvertUser(member.User), GuildID: guildID})
		}

		if len(chunk) < membersPageSize {
			break
		}

		after = chunk[len(chunk)-1].User.ID
	}

	c.logger.Debug("Fetched guild members",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int("count", len(result)))

	return result, nil
}

// Guild returns a joined guild from the cache.
func (c *Client) Guild(guildID snowflake.ID) (*chat.Guild, bool) {
	guild, ok := c.client.Caches().Guild(guildID)
	if !ok {
		return nil, false
	}

	return &chat.Guild{ID: guild.ID, Name: guild.Name, MemberCount: guild.MemberCount}, true
}

// JoinedGuilds lists the guilds in the cache.
func (c *Client) JoinedGuilds() []snowflake.ID {
	var ids []snowflake.ID

	c.client.Caches().GuildsForEach(func(guild discord.Guild) {
		ids = append(ids, guild.ID)
	})

	slices.Sort(ids)

	return ids
}

// LeaveGuild makes the bot leave a guild.
func (c *Client) LeaveGuild(ctx context.Context, guildID snowflake.ID) error {
	if err := c.client.Rest().LeaveGuild(guildID, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to leave guild: %w", err)
	}

	return nil
}

// GuildPermissions returns the guild-wide permissions of a cached member.
func (c *Client) GuildPermissions(guildID, userID snowflake.ID) discord.Permissions {
	member, ok := c.client.Caches().Member(guildID, userID)
	if !ok {
		return discord.PermissionsNone
	}

	return c.client.Caches().MemberPermissions(member)
}

// ChannelPermissions returns the permissions of a cached member in a cached channel.
func (c *Client) ChannelPermissions(channelID, userID snowflake.ID) discord.Permissions {
	channel, ok := c.client.Caches().Channel(channelID)
	if !ok {
		return discord.PermissionsNone
	}

	member, ok := c.client.Caches().Member(channel.GuildID(), userID)
	if !ok {
		return discord.PermissionsNone
	}

	return c.client.Caches().MemberPermissionsInChannel(channel, member)
}

// UpdateSelf changes the bot's username or avatar.
func (c *Client) UpdateSelf(ctx context.Context, update chat.SelfUpdate) (*chat.User, error) {
	var userUpdate discord.UserUpdate

	if update.Username != nil {
		userUpdate.Username = *update.Username
	}

	if update.Avatar != nil {
		icon := discord.NewIconRaw(iconType(update.Avatar), update.Avatar)
		userUpdate.Avatar = json.NewNullablePtr(*icon)
	}

	self, err := c.client.Rest().UpdateCurrentUser(userUpdate, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to update bot account: %w", err)
	}

	converted := ConvertUser(self.User)

	return &converted, nil
}

func (c *Client) convertMember(guildID snowflake.ID, member discord.Member) chat.Member {
	converted := chat.Member{User: ConvertUser(member.User), GuildID: guildID}

	var top *discord.Role

	for _, role := range c.client.Caches().MemberRoles(member) {
		if role.Color == 0 {
			continue
		}

		if top == nil || role.Position > top.Position {
			top = &role
		}
	}

	if top != nil {
		converted.Color = top.Color
	}

	return converted
}

// ConvertUser maps a disgo user to a chat user.
func ConvertUser(user discord.User) chat.User {
	return chat.User{
		ID:        user.ID,
		Username:  user.Username,
		Tag:       user.Tag(),
		AvatarURL: user.EffectiveAvatarURL(),
		Bot:       user.Bot,
	}
}

// ConvertMessage maps a disgo guild message to a chat message.
func ConvertMessage(message discord.Message) chat.Message {
	converted := chat.Message{
		ID:        message.ID,
		ChannelID: message.ChannelID,
		Author:    ConvertUser(message.Author),
		Content:   message.Content,
		Embeds:    message.Embeds,
	}

	if message.GuildID != nil {
		converted.GuildID = *message.GuildID
	}

	for _, attachment := range message.Attachments {
		converted.Attachments = append(converted.Attachments, chat.Attachment{
			ID:       attachment.ID,
			Filename: attachment.Filename,
			URL:      attachment.URL,
		})
	}

	return converted
}

func convertChannel(channel discord.GuildChannel) chat.Channel {
	converted := chat.Channel{
		ID:      channel.ID(),
		GuildID: channel.GuildID(),
		Name:    channel.Name(),
		Type:    channel.Type(),
	}

	// Text and news channels carry a topic
	if ch, ok := channel.(interface{ Topic() *string }); ok {
		if topic := ch.Topic(); topic != nil {
			converted.Topic = *topic
		}
	}

	return converted
}

func iconType(data []byte) discord.IconType {
	switch http.DetectContentType(data) {
	case "image/png":
		return discord.IconTypePNG
	case "image/gif":
		return discord.IconTypeGIF
	case "image/webp":
		return discord.IconTypeWEBP
	default:
		return discord.IconTypeJPEG
	}
}

// wrapNotFound maps 404 responses to chat.ErrNotFound.
func wrapNotFound(what string, err error) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", what, chat.ErrNotFound)
	}

	return fmt.Errorf("failed to fetch %s: %w", what, err)
}

var _ chat.Platform = (*Client)(nil)
