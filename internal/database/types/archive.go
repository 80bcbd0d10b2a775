package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// ArchivedMessage is a recorded guild message.
type ArchivedMessage struct {
	bun.BaseModel `bun:"table:archive_messages"`

	MessageID snowflake.ID      `bun:",pk"`
	GuildID   snowflake.ID      `bun:",notnull"`
	ChannelID snowflake.ID      `bun:",notnull"`
	AuthorID  snowflake.ID      `bun:",notnull"`
	Content   string            `bun:",notnull,default:''"`
	Other     *EmulatedContents `bun:"type:jsonb"`
	CreatedAt time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
}

// EmulatedContents holds the secondary content of an archived message.
type EmulatedContents struct {
	Attachments []ArchivedAttachment `json:"attachments,omitempty"`
	Embeds      []map[string]any     `json:"embeds,omitempty"`
}

// ArchivedAttachment describes an uploaded file of an archived message.
type ArchivedAttachment struct {
	ID   snowflake.ID `json:"id"`
	File ArchivedFile `json:"file"`
}

// ArchivedFile is the name and CDN location of an attachment.
type ArchivedFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ArchiveFilter narrows an archive search. Empty slices do not filter.
type ArchiveFilter struct {
	GuildID    snowflake.ID
	ChannelIDs []snowflake.ID
	AuthorIDs  []snowflake.ID
}
