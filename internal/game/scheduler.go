// internal/game/scheduler.go
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Scheduler periodically shrinks the play area of every ACTIVE session whose reduction
// is due. A failure in one session never stops the others.
type Scheduler struct {
	store      *GameStore
	resolution time.Duration
	log        *logrus.Entry
}

func NewScheduler(store *GameStore, resolution time.Duration, logger *logrus.Logger) *Scheduler {
	if resolution <= 0 {
		resolution = 30 * time.Second
	}
	return &Scheduler{store: store, resolution: resolution, log: logger.WithField("component", "scheduler")}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()
	s.log.WithField("resolution", s.resolution).Info("area scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("area scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one pass over the active sessions and returns how many areas shrank.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.store.Now()
	shrunk := 0
	for _, id := range s.store.ActiveIDs() {
		ok, err := s.tickGame(ctx, id, now)
		if err != nil {
			s.log.WithError(err).WithField("gameId", id).Error("area reduction failed")
			continue
		}
		if ok {
			shrunk++
		}
	}
	return shrunk
}

func (s *Scheduler) tickGame(ctx context.Context, id uuid.UUID, now time.Time) (shrunk bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during area reduction: %v", r)
		}
	}()

	g, err := s.store.Get(ctx, id)
	if err == nil {
		shrunk, err = g.ShrinkArea(ctx, now)
	}
	if errors.Is(err, ErrNotFound) {
		s.log.WithField("gameId", id).Debug("game vanished before area reduction")
		return false, nil
	}
	if shrunk {
		s.log.WithField("gameId", id).Info("play area reduced")
	}
	return shrunk, err
}
