// Package chat describes the chat platform as the cogs see it.
// Types carry only the fields the cogs read, so tests can build them by hand.
package chat

import (
	"context"
	"errors"
	"io"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrNotFound is returned when a user, channel or guild does not exist or is not visible.
	ErrNotFound = errors.New("not found")
	// ErrNotGuildChannel is returned when a channel exists but does not belong to a guild.
	ErrNotGuildChannel = errors.New("not a guild channel")
)

// User is a chat account.
type User struct {
	ID        snowflake.ID
	Username  string
	Tag       string
	AvatarURL string
	Bot       bool
}

// Member is a user inside a guild.
type Member struct {
	User
	GuildID snowflake.ID
	// Color of the member's highest coloured role, zero when none.
	Color int
}

// Guild is a community the bot has joined.
type Guild struct {
	ID          snowflake.ID
	Name        string
	MemberCount int
}

// Channel is a guild channel.
type Channel struct {
	ID      snowflake.ID
	GuildID snowflake.ID
	Name    string
	Type    discord.ChannelType
	Topic   string
}

// IsText reports whether messages can be posted and read in the channel.
func (c Channel) IsText() bool {
	return c.Type == discord.ChannelTypeGuildText || c.Type == discord.ChannelTypeGuildNews
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       snowflake.ID
	Filename string
	URL      string
}

// Message is an inbound guild message.
type Message struct {
	ID          snowflake.ID
	ChannelID   snowflake.ID
	GuildID     snowflake.ID
	Author      User
	Content     string
	Attachments []Attachment
	Embeds      []discord.Embed
}

// File is an upload attached to an outgoing message.
type File struct {
	Name   string
	Reader io.Reader
}

// Outgoing is a message the bot posts.
type Outgoing struct {
	Content string
	Embeds  []discord.Embed
	Files   []File
}

// SelfUpdate changes the bot account. Nil fields are left untouched.
type SelfUpdate struct {
	Username *string
	Avatar   []byte
}

// Platform is the subset of the chat platform used by the cogs.
type Platform interface {
	// Self returns the bot account.
	Self() User
	// OwnerID returns the configured owner of the bot.
	OwnerID() snowflake.ID

	// Send posts a message and returns its id.
	Send(ctx context.Context, channelID snowflake.ID, msg Outgoing) (snowflake.ID, error)
	// AddReaction reacts to a message with a unicode emoji.
	AddReaction(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error
	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
	// SetChannelTopic replaces the topic of a text channel.
	SetChannelTopic(ctx context.Context, channelID snowflake.ID, topic string) error

	// User fetches an account by id.
	User(ctx context.Context, userID snowflake.ID) (*User, error)
	// Member looks up a guild member.
	Member(ctx context.Context, guildID, userID snowflake.ID) (*Member, error)
	// Channel fetches a guild channel by id.
	Channel(ctx context.Context, channelID snowflake.ID) (*Channel, error)
	// GuildChannels lists the channels of a guild in display order.
	GuildChannels(ctx context.Context, guildID snowflake.ID) ([]Channel, error)
	// GuildMembers lists every member of a guild.
	GuildMembers(ctx context.Context, guildID snowflake.ID) ([]Member, error)

	// Guild returns a joined guild.
	Guild(guildID snowflake.ID) (*Guild, bool)
	// JoinedGuilds lists the guilds the bot is currently in.
	JoinedGuilds() []snowflake.ID
	// LeaveGuild makes the bot leave a guild.
	LeaveGuild(ctx context.Context, guildID snowflake.ID) error

	// GuildPermissions returns the guild-wide permissions of a member.
	GuildPermissions(guildID, userID snowflake.ID) discord.Permissions
	// ChannelPermissions returns the permissions of a member in a channel.
	ChannelPermissions(channelID, userID snowflake.ID) discord.Permissions

	// UpdateSelf changes the bot's username or avatar.
	UpdateSelf(ctx context.Context, update SelfUpdate) (*User, error)
}
