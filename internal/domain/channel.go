package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChannelScope is the audience a channel is bound to. Exactly one city-scope
// channel exists per city and one team-scope channel per team; uniqueness is
// enforced server-side.
type ChannelScope string

const (
	ScopeCity ChannelScope = "city"
	ScopeTeam ChannelScope = "team"
)

type Channel struct {
	ID        uuid.UUID     `json:"id"`
	Scope     ChannelScope  `json:"scope"`
	CityID    uuid.UUID     `json:"city_id"`
	TeamID    uuid.NullUUID `json:"team_id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
}
