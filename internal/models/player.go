package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Player is one roster entry of a game session.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Team     Team      `json:"team"`

	// Location is nil until the player's first update.
	Location           *orb.Point `json:"-"`
	LastLocationUpdate *time.Time `json:"-"`

	CreatedAt time.Time `json:"-"`
}

// Clone returns a copy that shares no pointers with p.
func (p *Player) Clone() *Player {
	cp := *p
	if p.Location != nil {
		loc := *p.Location
		cp.Location = &loc
	}
	if p.LastLocationUpdate != nil {
		ts := *p.LastLocationUpdate
		cp.LastLocationUpdate = &ts
	}
	return &cp
}

// HasLocation reports whether the player has sent at least one location.
func (p *Player) HasLocation() bool {
	return p.Location != nil
}
