package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/database/types"
	"github.com/robalyx/snowball/internal/discord/chat"
)

// timestampLayout matches ISO 8601 with milliseconds in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// authorResolver looks up author tags, remembering failures.
type authorResolver struct {
	platform chat.Platform
	tags     map[snowflake.ID]string
}

func newAuthorResolver(platform chat.Platform) *authorResolver {
	return &authorResolver{platform: platform, tags: make(map[snowflake.ID]string)}
}

// remember stores the tag of a user resolved elsewhere.
func (r *authorResolver) remember(user *chat.User) {
	r.tags[user.ID] = user.Tag
}

// tag returns the user's tag, or the id when the user cannot be fetched.
func (r *authorResolver) tag(ctx context.Context, userID snowflake.ID) string {
	if tag, ok := r.tags[userID]; ok {
		if tag == "" {
			return userID.String()
		}

		return tag
	}

	user, err := r.platform.User(ctx, userID)
	if err != nil {
		r.tags[userID] = ""
		return userID.String()
	}

	r.tags[userID] = user.Tag

	return user.Tag
}

// formatMessages renders archived messages as a plain text log, one block per message.
func formatMessages(ctx context.Context, messages []*types.ArchivedMessage, authors *authorResolver) string {
	var b strings.Builder

	for _, msg := range messages {
		fmt.Fprintf(&b, "%s (%d / %d / %d / %d) %s: %s",
			msg.MessageID.Time().UTC().Format(timestampLayout),
			msg.GuildID, msg.ChannelID, msg.AuthorID, msg.MessageID,
			authors.tag(ctx, msg.AuthorID), msg.Content)

		if msg.Other != nil {
			if len(msg.Other.Attachments) > 0 {
				b.WriteString("\n")

				for _, attachment := range msg.Other.Attachments {
					fmt.Fprintf(&b, "  - [A][%s][%d]: %s\n", attachment.File.Name, attachment.ID, attachment.File.URL)
				}

				b.WriteString("\n")
			}

			if len(msg.Other.Embeds) > 0 {
				b.WriteString("\n")

				for _, embed := range msg.Other.Embeds {
					fmt.Fprintf(&b, "  - [E]: %s\n", encodeEmbed(embed))
				}

				b.WriteString("\n")
			}
		}

		b.WriteString("\n")
	}

	return b.String()
}

func encodeEmbed(embed map[string]any) string {
	encoded, err := sonic.ConfigStd.MarshalToString(embed)
	if err != nil {
		return "{}"
	}

	return encoded
}

// fileName names the uploaded archive after the current time.
func fileName(now time.Time) string {
	return fmt.Sprintf("archive_%d.txt", now.UnixMilli())
}
