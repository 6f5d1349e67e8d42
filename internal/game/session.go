// internal/game/session.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/geo"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MaxTextLength bounds hints and chat messages, in runes.
const MaxTextLength = 500

// GameSession is a live session. All operations serialize on Mu; a mutation is applied
// to a copy of the state, persisted, and only then made visible and broadcast.
type GameSession struct {
	State
	Mu sync.Mutex

	repo     Repository
	group    Broadcaster
	actions  ActionLog
	settings Settings
	rng      *rand.Rand
	now      func() time.Time
	log      *logrus.Entry

	// deleted is set under Mu once the session is removed from the repository.
	// Handles still held elsewhere then reject every operation with ErrNotFound.
	deleted bool
}

// mutation edits st in place and returns the events to broadcast. Returning no events
// means nothing changed and nothing is saved.
type mutation func(st *State) ([]GameEvent, error)

func (g *GameSession) apply(ctx context.Context, actor uuid.UUID, action string, payload map[string]interface{}, fn mutation) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.checkLive(); err != nil {
		return err
	}
	next := g.State.Clone()
	events, err := fn(&next)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	next.ActionIndex++
	if err := g.repo.SaveSession(ctx, &next); err != nil {
		g.log.WithError(err).WithField("action", action).Error("failed to persist game session")
		return fmt.Errorf("save game %s: %w", g.ID, err)
	}
	g.State = next

	g.logAction(next.ActionIndex, actor, action, payload)
	for _, ev := range events {
		g.group.Broadcast(g.ID, ev)
	}
	return nil
}

// CanStart reports whether the session may move to ACTIVE.
func (g *GameSession) CanStart() bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.State.canStart(g.settings.MinPlayers)
}

// Snapshot returns the public view of the session.
func (g *GameSession) Snapshot() Snapshot {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return snapshotOf(&g.State)
}

// CurrentStatus returns the lifecycle status.
func (g *GameSession) CurrentStatus() Status {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.Status
}

// IsMember reports whether playerID is on the roster.
func (g *GameSession) IsMember(playerID uuid.UUID) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.State.Player(playerID) != nil
}

// Join adds user to the roster while the session is WAITING.
func (g *GameSession) Join(ctx context.Context, user models.User) error {
	return g.apply(ctx, user.ID, "player_join", map[string]interface{}{"username": user.Username}, func(st *State) ([]GameEvent, error) {
		if st.Player(user.ID) != nil {
			return nil, fmt.Errorf("%w: player %s is already in game %s", ErrAlreadyJoined, user.ID, st.ID)
		}
		if st.Status != StatusWaiting {
			return nil, fmt.Errorf("%w: cannot join a game that is %s", ErrInvalidState, st.Status)
		}
		st.Players = append(st.Players, &models.Player{
			ID:        user.ID,
			Username:  user.Username,
			CreatedAt: g.now(),
		})
		st.recalcKitty()
		return []GameEvent{updateEvent(st)}, nil
	})
}

// SetArea configures the play area as a circle around center. Only the host may set it,
// and not after the session has finished. The first area set is kept as the start area.
func (g *GameSession) SetArea(ctx context.Context, caller uuid.UUID, center orb.Point, radiusMeters float64) error {
	payload := map[string]interface{}{"lng": center.X(), "lat": center.Y(), "radius": radiusMeters}
	return g.setArea(ctx, caller, payload, func() (*geo.Area, error) {
		if err := geo.ValidatePoint(center); err != nil {
			return nil, err
		}
		if !(radiusMeters > 0) {
			return nil, errors.New("radius must be positive")
		}
		return geo.NewCircleArea(center, radiusMeters), nil
	})
}

// SetPolygonArea configures the play area from a drawn outline, with the same rules as
// SetArea.
func (g *GameSession) SetPolygonArea(ctx context.Context, caller uuid.UUID, poly orb.Polygon) error {
	vertices := 0
	if len(poly) > 0 {
		vertices = len(poly[0])
	}
	payload := map[string]interface{}{"shape": "polygon", "vertices": vertices}
	return g.setArea(ctx, caller, payload, func() (*geo.Area, error) {
		return geo.NewPolygonArea(poly)
	})
}

func (g *GameSession) setArea(ctx context.Context, caller uuid.UUID, payload map[string]interface{}, build func() (*geo.Area, error)) error {
	return g.apply(ctx, caller, "set_area", payload, func(st *State) ([]GameEvent, error) {
		if caller != st.Host.ID {
			return nil, fmt.Errorf("%w: only the host can set the play area", ErrNotAuthorized)
		}
		if st.Status == StatusFinished {
			return nil, fmt.Errorf("%w: game has finished", ErrInvalidState)
		}
		area, err := build()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}

		if !st.AreaSet {
			st.StartArea = area.Clone()
		}
		st.Area = area
		st.AreaSet = true
		return []GameEvent{updateEvent(st), areaEvent(st)}, nil
	})
}

// SetKittyPerPlayer changes each player's stake. Host only, WAITING only.
func (g *GameSession) SetKittyPerPlayer(ctx context.Context, caller uuid.UUID, amount decimal.Decimal) error {
	return g.apply(ctx, caller, "set_kitty", map[string]interface{}{"kittyPerPlayer": amount.String()}, func(st *State) ([]GameEvent, error) {
		if caller != st.Host.ID {
			return nil, fmt.Errorf("%w: only the host can set the kitty", ErrNotAuthorized)
		}
		if st.Status != StatusWaiting {
			return nil, fmt.Errorf("%w: kitty can only change before the game starts", ErrInvalidState)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("%w: kitty per player cannot be negative", ErrValidation)
		}
		st.KittyPerPlayer = amount
		st.recalcKitty()
		return []GameEvent{updateEvent(st)}, nil
	})
}

// Start assigns teams and moves the session to ACTIVE. Only the host can start.
func (g *GameSession) Start(ctx context.Context, caller uuid.UUID) error {
	return g.apply(ctx, caller, "game_start", nil, func(st *State) ([]GameEvent, error) {
		if caller != st.Host.ID {
			return nil, fmt.Errorf("%w: only the host can start the game", ErrNotAuthorized)
		}
		if !st.canStart(g.settings.MinPlayers) {
			return nil, fmt.Errorf("%w: game needs status WAITING, at least %d players and a play area (status %s, %d players, area set %t)",
				ErrPrecondition, g.settings.MinPlayers, st.Status, len(st.Players), st.AreaSet)
		}
		huntedID, err := AssignTeams(st.Players, g.rng)
		if err != nil {
			return nil, err
		}
		now := g.now()
		st.HuntedID = huntedID
		st.Status = StatusActive
		st.StartedAt = now
		st.NextAreaReduction = now.Add(g.settings.ShrinkInterval)
		return []GameEvent{updateEvent(st)}, nil
	})
}

// Finish ends an ACTIVE session with the given verdict. Finishing a FINISHED session is
// a no-op; a WAITING session cannot be finished.
func (g *GameSession) Finish(ctx context.Context, v Verdict) error {
	return g.apply(ctx, uuid.Nil, "game_finish", verdictPayload(v), func(st *State) ([]GameEvent, error) {
		return g.finish(st, v)
	})
}

// End lets the host stop the game.
func (g *GameSession) End(ctx context.Context, caller uuid.UUID) error {
	v := Verdict{Reason: ReasonHostEnded}
	return g.apply(ctx, caller, "game_end", verdictPayload(v), func(st *State) ([]GameEvent, error) {
		if caller != st.Host.ID {
			return nil, fmt.Errorf("%w: only the host can end the game", ErrNotAuthorized)
		}
		return g.finish(st, v)
	})
}

// finish transitions st to FINISHED and returns the terminal events.
func (g *GameSession) finish(st *State, v Verdict) ([]GameEvent, error) {
	switch st.Status {
	case StatusFinished:
		return nil, nil
	case StatusWaiting:
		return nil, fmt.Errorf("%w: game has not started", ErrInvalidState)
	}
	st.Status = StatusFinished
	st.FinishReason = v.Reason
	st.Winner = v.Winner
	st.FinishedAt = g.now()
	return []GameEvent{finishedEvent(v), updateEvent(st)}, nil
}

// UpdateLocation records a player's position. While ACTIVE the proximity rule is
// evaluated afterwards and may finish the session.
func (g *GameSession) UpdateLocation(ctx context.Context, playerID uuid.UUID, p orb.Point) error {
	return g.apply(ctx, playerID, "update_location", map[string]interface{}{"lng": p.X(), "lat": p.Y()}, func(st *State) ([]GameEvent, error) {
		pl := st.Player(playerID)
		if pl == nil {
			return nil, fmt.Errorf("%w: player %s", ErrNotInGame, playerID)
		}
		if err := geo.ValidatePoint(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if st.Status == StatusFinished {
			return nil, fmt.Errorf("%w: game has finished", ErrInvalidState)
		}

		now := g.now()
		loc := p
		pl.Location = &loc
		pl.LastLocationUpdate = &now

		if v, ok := EvaluateProximity(st, g.settings.CatchRadiusMeters); ok {
			g.log.WithFields(logrus.Fields{"hunted": st.HuntedID, "caughtBy": v.CaughtBy, "team": v.WinnerTeam}).Info("hunted player caught")
			return g.finish(st, v)
		}
		return []GameEvent{updateEvent(st)}, nil
	})
}

// SubtractKitty lets the hunted player spend from the kitty. Spending the last of it
// finishes the session.
func (g *GameSession) SubtractKitty(ctx context.Context, playerID uuid.UUID, amount decimal.Decimal) error {
	return g.apply(ctx, playerID, "subtract_kitty", map[string]interface{}{"amount": amount.String()}, func(st *State) ([]GameEvent, error) {
		pl := st.Player(playerID)
		if pl == nil {
			return nil, fmt.Errorf("%w: player %s", ErrNotInGame, playerID)
		}
		if st.Status == StatusFinished {
			return nil, fmt.Errorf("%w: game has finished", ErrInvalidState)
		}
		if pl.Team != models.TeamHunted {
			return nil, fmt.Errorf("%w: only the hunted player can spend the kitty", ErrNotAuthorized)
		}
		if !amount.IsPositive() || amount.GreaterThan(st.TotalKitty) {
			return nil, fmt.Errorf("%w: amount must be positive and at most %s", ErrValidation, st.TotalKitty.StringFixed(2))
		}

		st.TotalKitty = st.TotalKitty.Sub(amount)
		if v, ok := EvaluateKitty(st); ok {
			return g.finish(st, v)
		}
		return []GameEvent{updateEvent(st)}, nil
	})
}

// AddHint publishes a hint from the hunted player.
func (g *GameSession) AddHint(ctx context.Context, playerID uuid.UUID, text string) (Hint, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.checkLive(); err != nil {
		return Hint{}, err
	}
	if g.State.Player(playerID) == nil {
		return Hint{}, fmt.Errorf("%w: player %s", ErrNotInGame, playerID)
	}
	if g.Status == StatusFinished {
		return Hint{}, fmt.Errorf("%w: game has finished", ErrInvalidState)
	}
	if g.HuntedID == uuid.Nil || playerID != g.HuntedID {
		return Hint{}, fmt.Errorf("%w: only the hunted player can add hints", ErrNotAuthorized)
	}
	text, err := cleanText(text)
	if err != nil {
		return Hint{}, err
	}

	index, err := g.reserveActionIndex(ctx)
	if err != nil {
		return Hint{}, err
	}
	hint := Hint{ID: uuid.New(), GameID: g.ID, AuthorID: playerID, Content: text, CreatedAt: g.now()}
	if err := g.repo.AppendHint(ctx, hint); err != nil {
		return Hint{}, fmt.Errorf("save hint for game %s: %w", g.ID, err)
	}
	g.logAction(index, playerID, "add_hint", map[string]interface{}{"hintId": hint.ID.String()})
	g.group.Broadcast(g.ID, GameEvent{Type: EventHintAdded, Hint: &hint})
	return hint, nil
}

// PostChat sends a chat message to the whole session, or only to the author's team.
func (g *GameSession) PostChat(ctx context.Context, playerID uuid.UUID, text string, teamOnly bool) (ChatMessage, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.checkLive(); err != nil {
		return ChatMessage{}, err
	}
	pl := g.State.Player(playerID)
	if pl == nil {
		return ChatMessage{}, fmt.Errorf("%w: player %s", ErrNotInGame, playerID)
	}
	text, err := cleanText(text)
	if err != nil {
		return ChatMessage{}, err
	}

	msg := ChatMessage{
		ID:        uuid.New(),
		GameID:    g.ID,
		AuthorID:  playerID,
		Username:  pl.Username,
		Content:   text,
		CreatedAt: g.now(),
	}
	if teamOnly {
		if pl.Team == models.TeamNone {
			return ChatMessage{}, fmt.Errorf("%w: teams are assigned when the game starts", ErrPrecondition)
		}
		msg.TeamOnly = true
		msg.Team = pl.Team
	}
	if err := g.repo.AppendChat(ctx, msg); err != nil {
		return ChatMessage{}, fmt.Errorf("save chat message for game %s: %w", g.ID, err)
	}

	ev := GameEvent{Type: EventChatMessage, Message: &msg}
	if teamOnly {
		g.group.SendTo(g.ID, g.State.TeamMembers(pl.Team), ev)
	} else {
		g.group.Broadcast(g.ID, ev)
	}
	return msg, nil
}

// ShrinkArea applies one area reduction if the session is ACTIVE and the reduction is
// due at now. It reports whether the area changed.
func (g *GameSession) ShrinkArea(ctx context.Context, now time.Time) (bool, error) {
	shrunk := false
	err := g.apply(ctx, uuid.Nil, "area_reduction", nil, func(st *State) ([]GameEvent, error) {
		if st.Status != StatusActive || st.Area == nil || now.Before(st.NextAreaReduction) {
			return nil, nil
		}
		st.Area = st.Area.Shrunk(g.settings.ShrinkFactor)
		st.NextAreaReduction = now.Add(g.settings.ShrinkInterval)
		shrunk = true
		return []GameEvent{areaEvent(st)}, nil
	})
	if err != nil {
		return false, err
	}
	return shrunk, nil
}

// Delete removes the session on behalf of caller. Only the host may delete, and never
// while the session is ACTIVE.
func (g *GameSession) Delete(ctx context.Context, caller uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.checkLive(); err != nil {
		return err
	}
	if caller != g.Host.ID {
		return fmt.Errorf("%w: only the host can delete the game", ErrNotAuthorized)
	}
	if g.Status == StatusActive {
		return fmt.Errorf("%w: end the game before deleting it", ErrInvalidState)
	}
	return g.remove(ctx)
}

// remove deletes the session from the repository and marks the handle dead.
// Assumes lock is held.
func (g *GameSession) remove(ctx context.Context) error {
	if g.deleted {
		return nil
	}
	if err := g.repo.DeleteSession(ctx, g.ID); err != nil {
		return fmt.Errorf("delete game %s: %w", g.ID, err)
	}
	g.deleted = true
	g.log.Info("game deleted")
	return nil
}

// checkLive fails once the session has been deleted. Assumes lock is held.
func (g *GameSession) checkLive() error {
	if g.deleted {
		return fmt.Errorf("%w: game %s was deleted", ErrNotFound, g.ID)
	}
	return nil
}

// reserveActionIndex persists the next action index so no index is handed out twice,
// across restarts included. Assumes lock is held.
func (g *GameSession) reserveActionIndex(ctx context.Context) (int, error) {
	next := g.State.Clone()
	next.ActionIndex++
	if err := g.repo.SaveSession(ctx, &next); err != nil {
		return 0, fmt.Errorf("save game %s: %w", g.ID, err)
	}
	g.State = next
	return next.ActionIndex, nil
}

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: text is empty", ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", fmt.Errorf("%w: text is longer than %d characters", ErrValidation, MaxTextLength)
	}
	return text, nil
}

func verdictPayload(v Verdict) map[string]interface{} {
	payload := map[string]interface{}{"reason": string(v.Reason)}
	if v.Winner != "" {
		payload["winner"] = string(v.Winner)
	}
	return payload
}

// logAction publishes an action record for the historian. Assumes lock is held.
func (g *GameSession) logAction(index int, actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	if g.actions == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := models.ActionRecord{
		GameID:        g.ID,
		ActionIndex:   index,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     g.now().UnixMilli(),
	}
	go func(rec models.ActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.actions.Publish(ctx, rec); err != nil {
			g.log.WithError(err).WithField("actionIndex", rec.ActionIndex).Warn("failed to publish game action")
		}
	}(record)
}
