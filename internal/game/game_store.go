// internal/game/game_store.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// GameStore keeps live sessions in memory on top of a Repository.
type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*GameSession

	repo     Repository
	group    Broadcaster
	settings Settings
	logger   *logrus.Logger

	// Actions, when set, receives every accepted action.
	Actions ActionLog
	// NewRand seeds the team assignment of each session.
	NewRand func() *rand.Rand
	// Now is the clock used by sessions.
	Now func() time.Time
}

func NewGameStore(repo Repository, group Broadcaster, settings Settings, logger *logrus.Logger) *GameStore {
	return &GameStore{
		games:    make(map[uuid.UUID]*GameSession),
		repo:     repo,
		group:    group,
		settings: settings.normalized(),
		logger:   logger,
		NewRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		Now: time.Now,
	}
}

// Settings returns the rules applied to sessions of this store.
func (s *GameStore) Settings() Settings {
	return s.settings
}

func (s *GameStore) newSession(st State) *GameSession {
	return &GameSession{
		State:    st,
		repo:     s.repo,
		group:    s.group,
		actions:  s.Actions,
		settings: s.settings,
		rng:      s.NewRand(),
		now:      s.Now,
		log:      s.logger.WithField("gameId", st.ID),
	}
}

// Create opens a WAITING session hosted by host. The host is the first roster entry.
func (s *GameStore) Create(ctx context.Context, host models.User, kittyPerPlayer decimal.Decimal) (*GameSession, error) {
	if kittyPerPlayer.IsNegative() {
		return nil, fmt.Errorf("%w: kitty per player cannot be negative", ErrValidation)
	}
	now := s.Now()
	st := State{
		ID:             uuid.New(),
		Status:         StatusWaiting,
		Host:           host,
		Players:        []*models.Player{{ID: host.ID, Username: host.Username, CreatedAt: now}},
		KittyPerPlayer: kittyPerPlayer,
		CreatedAt:      now,
		ActionIndex:    1,
	}
	st.recalcKitty()

	if err := s.repo.SaveSession(ctx, &st); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	g := s.newSession(st)
	g.logAction(st.ActionIndex, host.ID, "game_create", map[string]interface{}{"kittyPerPlayer": kittyPerPlayer.String()})

	s.mu.Lock()
	s.games[st.ID] = g
	s.mu.Unlock()

	g.log.WithField("host", host.ID).Info("game created")
	return g, nil
}

// Get returns the live session for id, loading it from the repository when it is not
// cached. It returns ErrNotFound for unknown ids.
func (s *GameStore) Get(ctx context.Context, id uuid.UUID) (*GameSession, error) {
	if g, ok := s.Lookup(id); ok {
		return g, nil
	}
	st, err := s.repo.LoadSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// another caller may have loaded it meanwhile
	if g, ok := s.games[id]; ok {
		return g, nil
	}
	g := s.newSession(*st)
	s.games[id] = g
	return g, nil
}

// Lookup returns a cached session without touching the repository.
func (s *GameStore) Lookup(id uuid.UUID) (*GameSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	return g, ok
}

// Delete removes a session from the cache and the repository. A cached session is
// marked deleted under its lock first, so handles held elsewhere stop accepting
// operations and cannot save it back.
func (s *GameStore) Delete(ctx context.Context, id uuid.UUID) error {
	g, ok := s.Lookup(id)
	if !ok {
		return s.repo.DeleteSession(ctx, id)
	}
	g.Mu.Lock()
	err := g.remove(ctx)
	g.Mu.Unlock()
	if err != nil {
		return err
	}
	s.forget(g)
	return nil
}

// DeleteAsHost removes a session on behalf of caller; see GameSession.Delete.
func (s *GameStore) DeleteAsHost(ctx context.Context, id, caller uuid.UUID) error {
	g, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := g.Delete(ctx, caller); err != nil {
		return err
	}
	s.forget(g)
	return nil
}

// forget drops g from the cache unless it was already replaced.
func (s *GameStore) forget(g *GameSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.games[g.ID] == g {
		delete(s.games, g.ID)
	}
}

// ActiveIDs lists cached sessions whose status is ACTIVE.
func (s *GameStore) ActiveIDs() []uuid.UUID {
	s.mu.Lock()
	games := make([]*GameSession, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	s.mu.Unlock()

	var ids []uuid.UUID
	for _, g := range games {
		if g.CurrentStatus() == StatusActive {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// Restore loads every unfinished session from the repository into the cache.
// Used on startup so the scheduler keeps shrinking areas across restarts.
func (s *GameStore) Restore(ctx context.Context) (int, error) {
	ids, err := s.repo.ActiveSessionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active games: %w", err)
	}
	n := 0
	for _, id := range ids {
		if _, err := s.Get(ctx, id); err != nil {
			s.logger.WithError(err).WithField("gameId", id).Warn("skipping game on restore")
			continue
		}
		n++
	}
	return n, nil
}
