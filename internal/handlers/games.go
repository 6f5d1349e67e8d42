// internal/handlers/games.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/jason-s-yu/manhunt/internal/game"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
)

type kittyRequest struct {
	KittyPerPlayer decimal.Decimal `json:"kittyPerPlayer"`
}

// areaRequest carries either a circle or a GeoJSON polygon in Area.
type areaRequest struct {
	Latitude  *float64          `json:"latitude"`
	Longitude *float64          `json:"longitude"`
	Radius    float64           `json:"radius"`
	Area      *geojson.Geometry `json:"area"`
}

type subtractRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CreateGameHandler creates a session hosted by the caller. The host joins it immediately.
func CreateGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := gs.authenticate(w, r)
		if !ok {
			return
		}
		var req kittyRequest
		if err := decodeBody(r, &req); err != nil {
			gs.writeError(w, r, err)
			return
		}
		g, err := gs.GameStore.Create(r.Context(), user, req.KittyPerPlayer)
		if err != nil {
			gs.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, g.Snapshot())
	}
}

// GetGameHandler returns the public snapshot of a session.
func GetGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := gs.authenticate(w, r); !ok {
			return
		}
		g, ok := gs.loadGame(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, g.Snapshot())
	}
}

// DeleteGameHandler lets the host discard a session that is not ACTIVE. Connected
// clients are disconnected.
func DeleteGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := gs.authenticate(w, r)
		if !ok {
			return
		}
		g, ok := gs.loadGame(w, r)
		if !ok {
			return
		}
		if err := gs.GameStore.DeleteAsHost(r.Context(), g.ID, user.ID); err != nil {
			gs.writeError(w, r, err)
			return
		}
		gs.Layer.CloseGroup(g.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// sessionAction wraps the boilerplate shared by every mutating endpoint: authenticate,
// resolve the session, run fn and reply with the resulting snapshot.
func sessionAction(gs *GameServer, fn func(r *http.Request, g *game.GameSession, user models.User) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := gs.authenticate(w, r)
		if !ok {
			return
		}
		g, ok := gs.loadGame(w, r)
		if !ok {
			return
		}
		if err := fn(r, g, user); err != nil {
			gs.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, g.Snapshot())
	}
}

// JoinGameHandler adds the caller to a WAITING session.
func JoinGameHandler(gs *GameServer) http.HandlerFunc {
	return sessionAction(gs, func(r *http.Request, g *game.GameSession, user models.User) error {
		return g.Join(r.Context(), user)
	})
}

// SetAreaHandler sets the play area, either a circle or a drawn polygon.
func SetAreaHandler(gs *GameServer) http.HandlerFunc {
	return sessionAction(gs, func(r *http.Request, g *game.GameSession, user models.User) error {
		var req areaRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		if req.Area != nil {
			poly, ok := req.Area.Geometry().(orb.Polygon)
			if !ok {
				return fmt.Errorf("%w: area must be a Polygon", game.ErrValidation)
			}
			return g.SetPolygonArea(r.Context(), user.ID, poly)
		}
		if req.Latitude == nil || req.Longitude == nil {
			return fmt.Errorf("%w: latitude and longitude are required", game.ErrValidation)
		}
		return g.SetArea(r.Context(), user.ID, orb.Point{*req.Longitude, *req.Latitude}, req.Radius)
	})
}

// SetKittyHandler changes the per-player stake before the game starts.
func SetKittyHandler(gs *GameServer) http.HandlerFunc {
	return sessionAction(gs, func(r *http.Request, g *game.GameSession, user models.User) error {
		var req kittyRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return g.SetKittyPerPlayer(r.Context(), user.ID, req.KittyPerPlayer)
	})
}

// SubtractKittyHandler spends from the kitty on behalf of the hunted player.
func SubtractKittyHandler(gs *GameServer) http.HandlerFunc {
	return sessionAction(gs, func(r *http.Request, g *game.GameSession, user models.User) error {
		var req subtractRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return g.SubtractKitty(r.Context(), user.ID, req.Amount)
	})
}

// StartGameHandler assigns teams and starts the session.
func StartGameHandler(gs *GameServer) http.HandlerFunc {
	return sessionAction(gs, func(r *http.Request, g *game.GameSession, user models.User) error {
		return g.Start(r.Context(), user.ID)
	})
}

// EndGameHandler lets the host finish an ACTIVE session.
func EndGameHandler(gs *GameServer) http.HandlerFunc {
	return sessionAction(gs, func(r *http.Request, g *game.GameSession, user models.User) error {
		return g.End(r.Context(), user.ID)
	})
}

// ListHintsHandler returns the hint history to players of the session.
func ListHintsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := gs.authenticate(w, r)
		if !ok {
			return
		}
		g, ok := gs.loadGame(w, r)
		if !ok {
			return
		}
		if !g.IsMember(user.ID) {
			gs.writeError(w, r, fmt.Errorf("%w: player %s", game.ErrNotInGame, user.ID))
			return
		}
		hints, err := gs.Repo.ListHints(r.Context(), g.ID)
		if err != nil {
			gs.writeError(w, r, err)
			return
		}
		if hints == nil {
			hints = []game.Hint{}
		}
		writeJSON(w, http.StatusOK, hints)
	}
}

// ListChatHandler returns the chat history visible to the caller. Team-only messages are
// included only for the caller's own team.
func ListChatHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := gs.authenticate(w, r)
		if !ok {
			return
		}
		g, ok := gs.loadGame(w, r)
		if !ok {
			return
		}
		team, member := teamOf(g.Snapshot(), user)
		if !member {
			gs.writeError(w, r, fmt.Errorf("%w: player %s", game.ErrNotInGame, user.ID))
			return
		}
		all, err := gs.Repo.ListChat(r.Context(), g.ID)
		if err != nil {
			gs.writeError(w, r, err)
			return
		}

		visible := make([]game.ChatMessage, 0, len(all))
		for _, msg := range all {
			if msg.TeamOnly && (team == models.TeamNone || msg.Team != team) {
				continue
			}
			visible = append(visible, msg)
		}
		writeJSON(w, http.StatusOK, visible)
	}
}

func teamOf(snap game.Snapshot, user models.User) (models.Team, bool) {
	for _, p := range snap.Players {
		if p.ID == user.ID {
			return p.Team, true
		}
	}
	return models.TeamNone, false
}
