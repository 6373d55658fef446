package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindGif    MessageKind = "gif"
	KindSystem MessageKind = "system"
)

// Metadata keys the client understands. Anything else in the metadata object
// is carried opaquely and ignored.
const (
	MetaGifURL    = "gif_url"
	MetaSourceURL = "source_url"
)

type Message struct {
	ID        uuid.UUID      `json:"id"`
	ChannelID uuid.UUID      `json:"channel_id"`
	SenderID  uuid.UUID      `json:"sender_id"`
	ThreadID  uuid.NullUUID  `json:"thread_id"`
	ReplyToID uuid.NullUUID  `json:"reply_to_id"`
	Kind      MessageKind    `json:"kind"`
	Body      string         `json:"body"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// Tombstoned reports whether the message has been soft-deleted. Tombstoned
// messages are treated identically to hard-deleted ones everywhere in the
// client.
func (m Message) Tombstoned() bool {
	return m.DeletedAt != nil
}

// HasMedia reports whether the message should eventually carry attachments.
func (m Message) HasMedia() bool {
	return m.Kind == KindImage || m.Kind == KindGif
}

// GifURL returns the well-known gif_url metadata entry, if present.
func (m Message) GifURL() (string, bool) {
	return m.metaString(MetaGifURL)
}

// SourceURL returns the well-known source_url metadata entry, if present.
func (m Message) SourceURL() (string, bool) {
	return m.metaString(MetaSourceURL)
}

func (m Message) metaString(key string) (string, bool) {
	if m.Metadata == nil {
		return "", false
	}
	v, ok := m.Metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
