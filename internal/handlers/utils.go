// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/game"
	"github.com/jason-s-yu/manhunt/internal/models"
)

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotAuthorized), errors.Is(err, game.ErrNotInGame):
		return http.StatusForbidden
	case errors.Is(err, game.ErrPrecondition), errors.Is(err, game.ErrInvalidState), errors.Is(err, game.ErrAlreadyJoined):
		return http.StatusConflict
	case errors.Is(err, game.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends err to the client. Internal errors are logged and replaced with a
// generic message.
func (gs *GameServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		gs.Logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: game.ErrorCode(err)})
}

// authenticate resolves the caller or writes a 401.
func (gs *GameServer) authenticate(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := gs.Auth.AuthenticateRequest(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unauthenticated"})
		return models.User{}, false
	}
	return user, true
}

// loadGame resolves the {id} path value to a live session or writes the error.
func (gs *GameServer) loadGame(w http.ResponseWriter, r *http.Request) (*game.GameSession, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid game id", Code: game.ErrorCode(game.ErrValidation)})
		return nil, false
	}
	g, err := gs.GameStore.Get(r.Context(), id)
	if err != nil {
		gs.writeError(w, r, err)
		return nil, false
	}
	return g, true
}

// decodeBody decodes the JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: bad request payload: %v", game.ErrValidation, err)
	}
	return nil
}
