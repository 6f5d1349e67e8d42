// internal/channel/layer.go

// Package channel fans session events out to websocket connections grouped by session.
package channel

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Layer tracks the connections of every session group. A player has at most one
// connection per session.
type Layer struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]map[*Conn]struct{}
	log    *logrus.Entry
}

func NewLayer(logger *logrus.Logger) *Layer {
	return &Layer{
		groups: make(map[uuid.UUID]map[*Conn]struct{}),
		log:    logger.WithField("component", "channel"),
	}
}

// Join registers c in the group of sessionID. If the same player already had a
// connection there it is removed from the group and returned; the caller closes it.
// Joining twice with the same connection is a no-op.
func (l *Layer) Join(sessionID uuid.UUID, c *Conn) (evicted *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	group, ok := l.groups[sessionID]
	if !ok {
		group = make(map[*Conn]struct{})
		l.groups[sessionID] = group
	}
	for other := range group {
		if other != c && other.PlayerID == c.PlayerID {
			delete(group, other)
			evicted = other
		}
	}
	group[c] = struct{}{}
	return evicted
}

// Leave removes c from the group. Safe when c is not registered.
func (l *Layer) Leave(sessionID uuid.UUID, c *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	group, ok := l.groups[sessionID]
	if !ok {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(l.groups, sessionID)
	}
}

// Members lists the players connected to sessionID.
func (l *Layer) Members(sessionID uuid.UUID) []uuid.UUID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(l.groups[sessionID]))
	for c := range l.groups[sessionID] {
		ids = append(ids, c.PlayerID)
	}
	return ids
}

// CloseGroup closes and removes every connection of sessionID.
func (l *Layer) CloseGroup(sessionID uuid.UUID) {
	l.mu.Lock()
	group := l.groups[sessionID]
	delete(l.groups, sessionID)
	l.mu.Unlock()

	for c := range group {
		c.Close()
	}
}

// Broadcast queues event on every connection of sessionID.
func (l *Layer) Broadcast(sessionID uuid.UUID, event any) {
	l.deliver(l.conns(sessionID, nil), event)
}

// SendTo queues event on the connections of the given players only.
func (l *Layer) SendTo(sessionID uuid.UUID, playerIDs []uuid.UUID, event any) {
	wanted := make(map[uuid.UUID]struct{}, len(playerIDs))
	for _, id := range playerIDs {
		wanted[id] = struct{}{}
	}
	l.deliver(l.conns(sessionID, wanted), event)
}

func (l *Layer) conns(sessionID uuid.UUID, wanted map[uuid.UUID]struct{}) []*Conn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Conn, 0, len(l.groups[sessionID]))
	for c := range l.groups[sessionID] {
		if wanted != nil {
			if _, ok := wanted[c.PlayerID]; !ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// deliver encodes event once per codec in use and queues the frames. A codec that fails
// to encode only costs its own connections the event.
func (l *Layer) deliver(conns []*Conn, event any) {
	frames := make(map[string]Frame, 2)
	failed := make(map[string]bool)
	for _, c := range conns {
		name := c.Codec.Name()
		if failed[name] {
			continue
		}
		f, ok := frames[name]
		if !ok {
			var err error
			f, err = c.Codec.Encode(event)
			if err != nil {
				l.log.WithError(err).WithField("codec", name).Error("failed to encode event")
				failed[name] = true
				continue
			}
			frames[name] = f
		}
		c.Enqueue(f)
	}
}
