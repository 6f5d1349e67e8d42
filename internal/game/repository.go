// internal/game/repository.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/models"
)

// Repository persists sessions. SaveSession must store the session row and its roster
// atomically; a failed save leaves the previous version intact.
type Repository interface {
	// LoadSession returns the session with its roster, or ErrNotFound.
	LoadSession(ctx context.Context, id uuid.UUID) (*State, error)
	LoadRoster(ctx context.Context, id uuid.UUID) ([]*models.Player, error)
	SaveSession(ctx context.Context, st *State) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	// ActiveSessionIDs lists sessions that are not FINISHED.
	ActiveSessionIDs(ctx context.Context) ([]uuid.UUID, error)

	AppendHint(ctx context.Context, h Hint) error
	ListHints(ctx context.Context, gameID uuid.UUID) ([]Hint, error)
	AppendChat(ctx context.Context, m ChatMessage) error
	ListChat(ctx context.Context, gameID uuid.UUID) ([]ChatMessage, error)
}

// Broadcaster delivers events to the connections of a session's group.
// Implementations must not block.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, event any)
	SendTo(sessionID uuid.UUID, playerIDs []uuid.UUID, event any)
}

// ActionLog receives an ordered record of every accepted action.
type ActionLog interface {
	Publish(ctx context.Context, rec models.ActionRecord) error
}
