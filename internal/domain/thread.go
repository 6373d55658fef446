package domain

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a sub-conversation inside a channel. Threads are created
// atomically with their root message by the create-thread RPC; the client
// never creates thread rows directly.
type Thread struct {
	ID         uuid.UUID  `json:"id"`
	ChannelID  uuid.UUID  `json:"channel_id"`
	CreatorID  uuid.UUID  `json:"creator_id"`
	Title      *string    `json:"title,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// Archived reports whether the thread has been soft-deleted.
func (t Thread) Archived() bool {
	return t.ArchivedAt != nil
}
