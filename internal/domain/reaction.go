package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	shrubbi_errors "github.com/PouplarWesel/Shrubbi-sub000/pkg/errors"
)

// Reaction identity is the (message, user, emoji) triple. A user holds at
// most one reaction row per (message, emoji) pair.
type Reaction struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Key identifies a reaction within its message.
func (r Reaction) Key() string {
	return r.UserID.String() + "\x00" + r.Emoji
}

// NormalizeEmoji trims and validates an emoji string (1-32 chars after trim).
func NormalizeEmoji(emoji string) (string, error) {
	trimmed := strings.TrimSpace(emoji)
	if trimmed == "" || len([]rune(trimmed)) > 32 {
		return "", shrubbi_errors.ErrEmojiLength
	}
	return trimmed, nil
}
