// internal/game/errors.go
package game

import "errors"

// Errors returned by session operations. Callers match them with errors.Is; the
// returned errors wrap these with operation-specific detail.
var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrPrecondition  = errors.New("precondition failed")
	ErrInvalidState  = errors.New("invalid state")
	ErrAlreadyJoined = errors.New("already joined")
	ErrNotInGame     = errors.New("not in game")
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
)

// ErrorCode maps an error to the code sent to clients in error events.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrPrecondition):
		return "precondition_failed"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, ErrNotInGame):
		return "not_in_game"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}
