// internal/historian/historian.go

// Package historian drains the action queue into Postgres in batches.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/sirupsen/logrus"
)

// popTimeout bounds each blocking pop so cancellation is noticed.
const popTimeout = 3 * time.Second

// Source yields queued action records. cache.ActionQueue implements it.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (models.ActionRecord, bool, error)
}

// Sink persists a batch of records atomically.
type Sink func(ctx context.Context, records []models.ActionRecord) error

// Service captures game actions from a Source and writes them to a Sink, flushing when
// the batch is full or flushDelay has passed.
type Service struct {
	source     Source
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	log        *logrus.Entry

	batchMu sync.Mutex
	batch   []models.ActionRecord
}

func New(source Source, sink Sink, batchSize int, flushDelay time.Duration, logger *logrus.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	return &Service{
		source:     source,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		log:        logger.WithField("component", "historian"),
		batch:      make([]models.ActionRecord, 0, batchSize),
	}
}

// Run reads until ctx is cancelled, then flushes whatever is still buffered.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("historian started")
	defer s.log.Info("historian stopped")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()

	s.readLoop(ctx)
	wg.Wait()

	// ctx is done; the final flush gets its own deadline.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Flush(flushCtx)
}

func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		rec, ok, err := s.source.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.log.WithError(err).Error("pop failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}
		if s.add(rec) {
			s.Flush(ctx)
		}
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// add buffers rec and reports whether the batch is full.
func (s *Service) add(rec models.ActionRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.batchSize
}

// Flush writes the buffered records. After a failed write they stay buffered and are
// retried on the next flush.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.ActionRecord, len(s.batch))
	copy(pending, s.batch)

	if err := s.sink(ctx, pending); err != nil {
		s.log.WithError(err).WithField("records", len(pending)).Error("failed to flush actions")
		return
	}
	s.batch = s.batch[:0]
	s.log.WithField("records", len(pending)).Debug("flushed actions")
}

// Pending returns the number of buffered records.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
