// internal/game/helpers_test.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent
	playerEvents map[uuid.UUID][]GameEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{playerEvents: make(map[uuid.UUID][]GameEvent)}
}

func (mb *mockBroadcaster) Broadcast(_ uuid.UUID, event any) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, event.(GameEvent))
}

func (mb *mockBroadcaster) SendTo(_ uuid.UUID, playerIDs []uuid.UUID, event any) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for _, id := range playerIDs {
		mb.playerEvents[id] = append(mb.playerEvents[id], event.(GameEvent))
	}
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) events() []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]GameEvent(nil), mb.allEvents...)
}

func (mb *mockBroadcaster) types() []GameEventType {
	var out []GameEventType
	for _, ev := range mb.events() {
		out = append(out, ev.Type)
	}
	return out
}

func (mb *mockBroadcaster) playerEventsFor(id uuid.UUID) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]GameEvent(nil), mb.playerEvents[id]...)
}

// fakeRepo is an in-memory Repository that can be told to fail.
type fakeRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]State
	hints    []Hint
	chat     []ChatMessage
	saves    int
	failWith error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[uuid.UUID]State)}
}

func (r *fakeRepo) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

func (r *fakeRepo) LoadSession(_ context.Context, id uuid.UUID) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := st.Clone()
	return &cp, nil
}

func (r *fakeRepo) LoadRoster(ctx context.Context, id uuid.UUID) ([]*models.Player, error) {
	st, err := r.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return st.Players, nil
}

func (r *fakeRepo) SaveSession(_ context.Context, st *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.saves++
	r.sessions[st.ID] = st.Clone()
	return nil
}

func (r *fakeRepo) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeRepo) ActiveSessionIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, st := range r.sessions {
		if st.Status != StatusFinished {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeRepo) AppendHint(_ context.Context, h Hint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.hints = append(r.hints, h)
	return nil
}

func (r *fakeRepo) ListHints(_ context.Context, gameID uuid.UUID) ([]Hint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Hint
	for _, h := range r.hints {
		if h.GameID == gameID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeRepo) AppendChat(_ context.Context, m ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.chat = append(r.chat, m)
	return nil
}

func (r *fakeRepo) ListChat(_ context.Context, gameID uuid.UUID) ([]ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ChatMessage
	for _, m := range r.chat {
		if m.GameID == gameID {
			out = append(out, m)
		}
	}
	return out, nil
}

// mockActionLog is a testify mock of ActionLog.
type mockActionLog struct {
	mock.Mock
}

func (m *mockActionLog) Publish(ctx context.Context, rec models.ActionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStorage = errors.New("storage offline")

type fixture struct {
	store *GameStore
	repo  *fakeRepo
	mb    *mockBroadcaster
	clock *fakeClock
	host  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		repo:  newFakeRepo(),
		mb:    newMockBroadcaster(),
		clock: &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		host:  models.User{ID: uuid.New(), Username: "host"},
	}
	f.store = NewGameStore(f.repo, f.mb, DefaultSettings(), logger)
	f.store.Now = f.clock.Now
	f.store.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(7)) }
	return f
}

// newGame creates a WAITING game hosted by f.host with extra joined players.
func (f *fixture) newGame(t *testing.T, extra int) (*GameSession, []models.User) {
	t.Helper()
	g, err := f.store.Create(context.Background(), f.host, decimal.NewFromInt(10))
	require.NoError(t, err)
	users := []models.User{f.host}
	for i := 0; i < extra; i++ {
		u := models.User{ID: uuid.New(), Username: "player"}
		require.NoError(t, g.Join(context.Background(), u))
		users = append(users, u)
	}
	return g, users
}

// activeGame returns a started game with the given total roster size and an area set.
func (f *fixture) activeGame(t *testing.T, roster int) (*GameSession, []models.User) {
	t.Helper()
	g, users := f.newGame(t, roster-1)
	require.NoError(t, g.SetArea(context.Background(), f.host.ID, orb.Point{13.4, 52.5}, 500))
	require.NoError(t, g.Start(context.Background(), f.host.ID))
	f.mb.clear()
	return g, users
}

func huntedAndHunters(g *GameSession) (uuid.UUID, []uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	var hunters []uuid.UUID
	for _, p := range g.Players {
		if p.ID != g.HuntedID {
			hunters = append(hunters, p.ID)
		}
	}
	return g.HuntedID, hunters
}
