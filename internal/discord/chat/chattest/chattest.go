// Package chattest provides an in-memory chat.Platform for tests.
package chattest

import (
	"context"
	"io"
	"slices"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/discord/chat"
)

// Sent is a message posted through the fake.
type Sent struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	Content   string
	Embeds    []discord.Embed
	Files     map[string][]byte
}

// Reaction is a reaction added through the fake.
type Reaction struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	Emoji     string
}

// Platform records every call and serves lookups from its exported maps.
// Populate the maps before handing the fake to the code under test.
type Platform struct {
	mu sync.Mutex

	SelfUser chat.User
	Owner    snowflake.ID

	Users    map[snowflake.ID]chat.User
	Guilds   map[snowflake.ID]chat.Guild
	Channels map[snowflake.ID]chat.Channel
	Members  map[snowflake.ID][]chat.Member
	// Perms is keyed by user; ChannelPerms by channel then user.
	Perms        map[snowflake.ID]discord.Permissions
	ChannelPerms map[snowflake.ID]map[snowflake.ID]discord.Permissions

	SendErr   error
	LeaveErr  error
	UpdateErr error
	OnSend    func(Sent)

	sent      []Sent
	reactions []Reaction
	deleted   []snowflake.ID
	topics    map[snowflake.ID]string
	left      []snowflake.ID
	updates   []chat.SelfUpdate
	nextID    snowflake.ID
}

// New creates an empty fake for the given bot account.
func New(self chat.User, owner snowflake.ID) *Platform {
	return &Platform{
		SelfUser:     self,
		Owner:        owner,
		Users:        make(map[snowflake.ID]chat.User),
		Guilds:       make(map[snowflake.ID]chat.Guild),
		Channels:     make(map[snowflake.ID]chat.Channel),
		Members:      make(map[snowflake.ID][]chat.Member),
		Perms:        make(map[snowflake.ID]discord.Permissions),
		ChannelPerms: make(map[snowflake.ID]map[snowflake.ID]discord.Permissions),
		topics:       make(map[snowflake.ID]string),
		nextID:       1 << 40,
	}
}

// AddGuild registers a joined guild with its members and channels.
func (p *Platform) AddGuild(guild chat.Guild, members []chat.Member, channels ...chat.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if guild.MemberCount == 0 {
		guild.MemberCount = len(members)
	}

	p.Guilds[guild.ID] = guild
	p.Members[guild.ID] = members

	for _, channel := range channels {
		channel.GuildID = guild.ID
		p.Channels[channel.ID] = channel
	}
}

func (p *Platform) Self() chat.User       { return p.SelfUser }
func (p *Platform) OwnerID() snowflake.ID { return p.Owner }

func (p *Platform) Send(_ context.Context, channelID snowflake.ID, msg chat.Outgoing) (snowflake.ID, error) {
	p.mu.Lock()

	if p.SendErr != nil {
		p.mu.Unlock()
		return 0, p.SendErr
	}

	p.nextID++

	sent := Sent{
		ChannelID: channelID,
		MessageID: p.nextID,
		Content:   msg.Content,
		Embeds:    msg.Embeds,
	}

	if len(msg.Files) > 0 {
		sent.Files = make(map[string][]byte, len(msg.Files))
		for _, file := range msg.Files {
			data, _ := io.ReadAll(file.Reader)
			sent.Files[file.Name] = data
		}
	}

	p.sent = append(p.sent, sent)
	hook := p.OnSend
	p.mu.Unlock()

	// Called without the lock so hooks may use the fake
	if hook != nil {
		hook(sent)
	}

	return sent.MessageID, nil
}

func (p *Platform) AddReaction(_ context.Context, channelID, messageID snowflake.ID, emoji string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reactions = append(p.reactions, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})

	return nil
}

func (p *Platform) DeleteMessage(_ context.Context, _, messageID snowflake.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deleted = append(p.deleted, messageID)

	return nil
}

func (p *Platform) SetChannelTopic(_ context.Context, channelID snowflake.ID, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.topics[channelID] = topic

	return nil
}

func (p *Platform) User(_ context.Context, userID snowflake.ID) (*chat.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.Users[userID]
	if !ok {
		return nil, chat.ErrNotFound
	}

	return &user, nil
}

func (p *Platform) Member(_ context.Context, guildID, userID snowflake.ID) (*chat.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, member := range p.Members[guildID] {
		if member.ID == userID {
			return &member, nil
		}
	}

	return nil, chat.ErrNotFound
}

func (p *Platform) Channel(_ context.Context, channelID snowflake.ID) (*chat.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	channel, ok := p.Channels[channelID]
	if !ok {
		return nil, chat.ErrNotFound
	}

	return &channel, nil
}

func (p *Platform) GuildChannels(_ context.Context, guildID snowflake.ID) ([]chat.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var channels []chat.Channel

	for _, channel := range p.Channels {
		if channel.GuildID == guildID {
			channels = append(channels, channel)
		}
	}

	slices.SortFunc(channels, func(a, b chat.Channel) int {
		return a.ID.Time().Compare(b.ID.Time())
	})

	return channels, nil
}

func (p *Platform) GuildMembers(_ context.Context, guildID snowflake.ID) ([]chat.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.Members[guildID]), nil
}

func (p *Platform) Guild(guildID snowflake.ID) (*chat.Guild, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	guild, ok := p.Guilds[guildID]
	if !ok {
		return nil, false
	}

	return &guild, true
}

func (p *Platform) JoinedGuilds() []snowflake.ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]snowflake.ID, 0, len(p.Guilds))
	for id := range p.Guilds {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

func (p *Platform) LeaveGuild(_ context.Context, guildID snowflake.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.LeaveErr != nil {
		return p.LeaveErr
	}

	delete(p.Guilds, guildID)
	p.left = append(p.left, guildID)

	return nil
}

func (p *Platform) GuildPermissions(_, userID snowflake.ID) discord.Permissions {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Perms[userID]
}

func (p *Platform) ChannelPermissions(channelID, userID snowflake.ID) discord.Permissions {
	p.mu.Lock()
	defer p.mu.Unlock()

	if perms, ok := p.ChannelPerms[channelID][userID]; ok {
		return perms
	}

	return p.Perms[userID]
}

func (p *Platform) UpdateSelf(_ context.Context, update chat.SelfUpdate) (*chat.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.UpdateErr != nil {
		return nil, p.UpdateErr
	}

	p.updates = append(p.updates, update)

	if update.Username != nil {
		p.SelfUser.Username = *update.Username
		p.SelfUser.Tag = *update.Username
	}

	if update.Avatar != nil {
		p.SelfUser.AvatarURL = "https://cdn.example/avatar.png"
	}

	self := p.SelfUser

	return &self, nil
}

// SentMessages returns a copy of every posted message.
func (p *Platform) SentMessages() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.sent)
}

// Reactions returns a copy of every added reaction.
func (p *Platform) Reactions() []Reaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.reactions)
}

// Deleted returns the ids of deleted messages.
func (p *Platform) Deleted() []snowflake.ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.deleted)
}

// Topic returns the last topic set on a channel.
func (p *Platform) Topic(channelID snowflake.ID) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.topics[channelID]
}

// Left returns the guilds the bot left, in order.
func (p *Platform) Left() []snowflake.ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.left)
}

// SelfUpdates returns every account update applied.
func (p *Platform) SelfUpdates() []chat.SelfUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.updates)
}

var _ chat.Platform = (*Platform)(nil)
