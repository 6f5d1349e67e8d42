// internal/game/events.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/paulmach/orb/geojson"
)

// GameEventType names an outbound event.
type GameEventType string

const (
	EventGameUpdate   GameEventType = "game_update"   // full session snapshot
	EventAreaUpdate   GameEventType = "area_update"   // current play area polygon
	EventGameFinished GameEventType = "game_finished" // terminal event
	EventHintAdded    GameEventType = "hint_added"
	EventChatMessage  GameEventType = "chat_message"
	EventError        GameEventType = "error" // sent to a single connection
	EventPong         GameEventType = "pong"
)

// FinishReason says why a session ended.
type FinishReason string

const (
	ReasonProximityCaught FinishReason = "PROXIMITY_CAUGHT"
	ReasonKittyDepleted   FinishReason = "KITTY_DEPLETED"
	ReasonHostEnded       FinishReason = "HOST_ENDED"
)

// Winner identifies the winning side of a finished session. Empty when nobody won.
type Winner string

// WinnerHuntedOpponents is declared when the hunted player spends the whole kitty.
const WinnerHuntedOpponents Winner = "HUNTED_OPPONENTS"

// TeamWinner is the Winner value for a hunter team.
func TeamWinner(t models.Team) Winner {
	return Winner(t.String())
}

// Verdict is the outcome handed to finish.
type Verdict struct {
	Reason     FinishReason
	Winner     Winner
	WinnerTeam models.Team
	CaughtBy   uuid.UUID
}

// Hint is a clue published by the hunted player. Hints are never modified.
type Hint struct {
	ID        uuid.UUID `json:"id"`
	GameID    uuid.UUID `json:"gameId"`
	AuthorID  uuid.UUID `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is a chat line. Team-only messages carry the team they were sent to.
type ChatMessage struct {
	ID        uuid.UUID   `json:"id"`
	GameID    uuid.UUID   `json:"gameId"`
	AuthorID  uuid.UUID   `json:"authorId"`
	Username  string      `json:"username"`
	Content   string      `json:"content"`
	TeamOnly  bool        `json:"teamOnly"`
	Team      models.Team `json:"team"`
	CreatedAt time.Time   `json:"created_at"`
}

// GameEvent is the envelope for everything pushed to connections.
type GameEvent struct {
	Type GameEventType `json:"type"`

	Data *Snapshot        `json:"data,omitempty"` // game_update
	Area *geojson.Geometry `json:"area,omitempty"` // area_update

	// game_finished
	Reason     FinishReason `json:"reason,omitempty"`
	Winner     Winner       `json:"winner,omitempty"`
	WinnerTeam *models.Team `json:"winnerTeam,omitempty"`

	Hint    *Hint        `json:"hint,omitempty"`
	Message *ChatMessage `json:"message,omitempty"`

	// error
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ErrorEvent builds the event sent back to a connection whose command failed.
func ErrorEvent(err error) GameEvent {
	return GameEvent{Type: EventError, Code: ErrorCode(err), Error: err.Error()}
}

func updateEvent(st *State) GameEvent {
	snap := snapshotOf(st)
	return GameEvent{Type: EventGameUpdate, Data: &snap}
}

func areaEvent(st *State) GameEvent {
	return GameEvent{Type: EventAreaUpdate, Area: areaGeometry(st.Area)}
}

func finishedEvent(v Verdict) GameEvent {
	ev := GameEvent{Type: EventGameFinished, Reason: v.Reason, Winner: v.Winner}
	if v.WinnerTeam != models.TeamNone {
		team := v.WinnerTeam
		ev.WinnerTeam = &team
	}
	return ev
}
