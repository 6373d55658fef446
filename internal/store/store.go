package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
)

// RemoteStore is the filter/sort/limit view of the remote relational store.
// Row-level authorization happens server-side; queries only ever return rows
// the bearer token may see.
type RemoteStore interface {
	// ListMessages returns non-tombstoned messages for a channel ordered by
	// creation time ascending, capped at limit.
	ListMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.Message, error)
	// ListThreads returns non-archived threads ordered by creation time
	// descending, capped at limit.
	ListThreads(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.Thread, error)
	ListAttachments(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Attachment, error)
	ListReactions(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Reaction, error)
	ListProfiles(ctx context.Context, userIDs []uuid.UUID) ([]domain.ProfileSummary, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (domain.ProfileSummary, error)

	// MessageChildren fetches attachments and reactions for one message.
	// Used by hydration when an attachment event was missed.
	MessageChildren(ctx context.Context, messageID uuid.UUID) ([]domain.Attachment, []domain.Reaction, error)

	// InsertReaction is idempotent: inserting a (message, user, emoji) row
	// that already exists is not an error.
	InsertReaction(ctx context.Context, r domain.Reaction) error
	DeleteReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
	InsertAttachment(ctx context.Context, a domain.Attachment) error
	// DeleteMessage tombstones a message row.
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
}

// SendMessageInput feeds the send-message compound write.
type SendMessageInput struct {
	ChannelID uuid.UUID          `json:"channel_id"`
	Body      string             `json:"body,omitempty"`
	Kind      domain.MessageKind `json:"kind,omitempty"`
	ThreadID  *uuid.UUID         `json:"thread_id,omitempty"`
	ReplyToID *uuid.UUID         `json:"reply_to_id,omitempty"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// CreateThreadInput feeds the create-thread compound write, which creates the
// thread and its root message atomically.
type CreateThreadInput struct {
	ChannelID uuid.UUID          `json:"channel_id"`
	Body      string             `json:"body"`
	Title     string             `json:"title,omitempty"`
	Kind      domain.MessageKind `json:"kind,omitempty"`
}

type CreateThreadResult struct {
	ThreadID      uuid.UUID `json:"thread_id"`
	RootMessageID uuid.UUID `json:"message_id"`
}

// RPC is the remote procedure endpoint for the two compound writes whose ids
// are server-generated.
type RPC interface {
	SendMessage(ctx context.Context, in SendMessageInput) (uuid.UUID, error)
	CreateThread(ctx context.Context, in CreateThreadInput) (CreateThreadResult, error)
}
