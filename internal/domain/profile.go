package domain

import "github.com/google/uuid"

// ProfileSummary is the read-only projection used to label senders, reactors
// and thread creators without re-fetching full profiles.
type ProfileSummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}
