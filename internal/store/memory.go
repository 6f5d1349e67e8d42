// internal/store/memory.go

// Package store holds the in-process game.Repository used when no database is
// configured and in tests.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/game"
	"github.com/jason-s-yu/manhunt/internal/models"
)

// Memory is a game.Repository backed by maps. Every read and write copies the state,
// so callers never share memory with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]game.State
	hints    map[uuid.UUID][]game.Hint
	chat     map[uuid.UUID][]game.ChatMessage
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]game.State),
		hints:    make(map[uuid.UUID][]game.Hint),
		chat:     make(map[uuid.UUID][]game.ChatMessage),
	}
}

var _ game.Repository = (*Memory)(nil)

func (m *Memory) LoadSession(_ context.Context, id uuid.UUID) (*game.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	cp := st.Clone()
	return &cp, nil
}

func (m *Memory) LoadRoster(_ context.Context, id uuid.UUID) ([]*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	return st.Clone().Players, nil
}

func (m *Memory) SaveSession(_ context.Context, st *game.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[st.ID] = st.Clone()
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.hints, id)
	delete(m.chat, id)
	return nil
}

// ActiveSessionIDs returns unfinished sessions, oldest first.
func (m *Memory) ActiveSessionIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var states []game.State
	for _, st := range m.sessions {
		if st.Status != game.StatusFinished {
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].CreatedAt.Before(states[j].CreatedAt) })
	ids := make([]uuid.UUID, len(states))
	for i, st := range states {
		ids[i] = st.ID
	}
	return ids, nil
}

func (m *Memory) AppendHint(_ context.Context, h game.Hint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[h.GameID]; !ok {
		return game.ErrNotFound
	}
	m.hints[h.GameID] = append(m.hints[h.GameID], h)
	return nil
}

func (m *Memory) ListHints(_ context.Context, gameID uuid.UUID) ([]game.Hint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]game.Hint(nil), m.hints[gameID]...), nil
}

func (m *Memory) AppendChat(_ context.Context, msg game.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[msg.GameID]; !ok {
		return game.ErrNotFound
	}
	m.chat[msg.GameID] = append(m.chat[msg.GameID], msg)
	return nil
}

func (m *Memory) ListChat(_ context.Context, gameID uuid.UUID) ([]game.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]game.ChatMessage(nil), m.chat[gameID]...), nil
}
