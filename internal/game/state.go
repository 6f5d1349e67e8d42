// internal/game/state.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/geo"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a session. Transitions only go forward:
// WAITING -> ACTIVE -> FINISHED.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// State is the persisted part of a game session.
type State struct {
	ID     uuid.UUID
	Status Status
	Host   models.User

	// Players is the roster in join order. Evaluation order follows it.
	Players []*models.Player

	// HuntedID is uuid.Nil until the session becomes ACTIVE.
	HuntedID uuid.UUID

	Area      *geo.Area
	StartArea *geo.Area
	AreaSet   bool

	KittyPerPlayer decimal.Decimal
	TotalKitty     decimal.Decimal

	FinishReason FinishReason
	Winner       Winner

	CreatedAt         time.Time
	StartedAt         time.Time
	FinishedAt        time.Time
	NextAreaReduction time.Time

	// ActionIndex is the index of the last action handed to the action log.
	ActionIndex int
}

// Clone returns a deep copy of the state.
func (st *State) Clone() State {
	cp := *st
	cp.Players = make([]*models.Player, len(st.Players))
	for i, p := range st.Players {
		cp.Players[i] = p.Clone()
	}
	cp.Area = st.Area.Clone()
	cp.StartArea = st.StartArea.Clone()
	return cp
}

// Player returns the roster entry for id, or nil.
func (st *State) Player(id uuid.UUID) *models.Player {
	for _, p := range st.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Hunted returns the hunted player's roster entry, or nil before the game starts.
func (st *State) Hunted() *models.Player {
	if st.HuntedID == uuid.Nil {
		return nil
	}
	return st.Player(st.HuntedID)
}

// TeamMembers lists the ids of players currently on team.
func (st *State) TeamMembers(team models.Team) []uuid.UUID {
	var ids []uuid.UUID
	for _, p := range st.Players {
		if p.Team == team {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (st *State) canStart(minPlayers int) bool {
	return st.Status == StatusWaiting && len(st.Players) >= minPlayers && st.AreaSet
}

func (st *State) recalcKitty() {
	st.TotalKitty = st.KittyPerPlayer.Mul(decimal.NewFromInt(int64(len(st.Players))))
}
