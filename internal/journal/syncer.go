package journal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tahfidz/internal/gateway"
	"tahfidz/internal/logging"
	"tahfidz/internal/metrics"
	"tahfidz/internal/model"
	"tahfidz/internal/queue"
)

// Pusher is the retrying write primitive of the gateway.
type Pusher interface {
	Push(ctx context.Context, action model.Action, data any) error
}

// DefaultRequeueEvery is how often Run republishes entries a full queue
// turned away.
const DefaultRequeueEvery = 30 * time.Second

// Syncer journals mutations, hands them to the queue and, on the worker
// side, pushes them and records the outcome.
type Syncer struct {
	store  Store
	queue  queue.Queue
	pusher Pusher
	log    *zap.Logger

	RequeueEvery time.Duration
	// set when a publish was refused, cleared by a successful Requeue
	backlog atomic.Bool
}

func NewSyncer(store Store, q queue.Queue, pusher Pusher, logger *zap.Logger) *Syncer {
	return &Syncer{
		store:        store,
		queue:        q,
		pusher:       pusher,
		log:          logging.OrNop(logger),
		RequeueEvery: DefaultRequeueEvery,
	}
}

// Backlogged reports whether pending entries are waiting outside the queue.
func (s *Syncer) Backlogged() bool { return s.backlog.Load() }

// Enqueue appends a pending entry and publishes it. A publish failure is
// logged only: the entry stays pending and the next Requeue picks it up.
func (s *Syncer) Enqueue(ctx context.Context, action model.Action, payload any) (Entry, error) {
	e, err := NewEntry(action, payload)
	if err != nil {
		return Entry{}, err
	}
	e, err = s.store.Append(ctx, e)
	if err != nil {
		return Entry{}, fmt.Errorf("journal append: %w", err)
	}
	if err := s.queue.Publish(ctx, queue.SyncMessage(e.ID)); err != nil {
		s.backlog.Store(true)
		s.log.Warn("queue publish failed, entry left pending", zap.String("entry", e.ID), zap.Error(err))
	}
	return e, nil
}

// Process pushes one entry and records sent, offline or failed. Entries
// already sent are skipped so duplicate deliveries are harmless.
func (s *Syncer) Process(ctx context.Context, id string) error {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch entry %s: %w", id, err)
	}
	if e.Status == StatusSent {
		return nil
	}

	status, lastError := StatusSent, ""
	if err := s.pusher.Push(ctx, e.Action, e.Payload); err != nil {
		if errors.Is(err, gateway.ErrOffline) {
			status = StatusOffline
		} else {
			status = StatusFailed
		}
		lastError = err.Error()
	}
	metrics.SyncOutcomes.WithLabelValues(string(e.Action), string(status)).Inc()
	if err := s.store.Mark(ctx, e.ID, status, lastError); err != nil {
		return fmt.Errorf("mark entry %s: %w", id, err)
	}
	if status == StatusSent {
		s.log.Debug("entry synced", zap.String("entry", e.ID), zap.String("action", string(e.Action)))
	} else {
		s.log.Warn("entry not synced",
			zap.String("entry", e.ID),
			zap.String("action", string(e.Action)),
			zap.String("status", string(status)),
			zap.String("error", lastError))
	}
	return nil
}

// Requeue publishes every unsent entry again. The spreadsheet upserts by
// id, so replaying an entry that did land is a no-op.
func (s *Syncer) Requeue(ctx context.Context) (int, error) {
	s.backlog.Store(false)
	entries, err := s.store.Unsent(ctx, 0)
	if err != nil {
		s.backlog.Store(true)
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if err := s.queue.Publish(ctx, queue.SyncMessage(e.ID)); err != nil {
			s.backlog.Store(true)
			return n, err
		}
		n++
	}
	if n > 0 {
		s.log.Info("requeued unsent journal entries", zap.Int("count", n))
	}
	return n, nil
}

// Run consumes the queue until ctx ends. Entries a full queue refused are
// republished every RequeueEvery.
func (s *Syncer) Run(ctx context.Context) error {
	messages, err := s.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	every := s.RequeueEvery
	if every <= 0 {
		every = DefaultRequeueEvery
	}
	tick := time.NewTicker(every)
	defer tick.Stop()

	s.log.Info("sync worker started")
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				s.log.Info("sync worker stopped")
				return nil
			}
			if msg.Type != queue.TypeSync {
				continue
			}
			if err := s.Process(ctx, string(msg.Body)); err != nil {
				s.log.Error("sync entry failed", zap.String("entry", string(msg.Body)), zap.Error(err))
			}
		case <-tick.C:
			if !s.backlog.Load() {
				continue
			}
			if _, err := s.Requeue(ctx); err != nil {
				s.log.Warn("backlog requeue incomplete", zap.Error(err))
			}
		}
	}
}

// Recent lists entries for the admin sync view.
func (s *Syncer) Recent(ctx context.Context, status Status, limit, offset int) ([]Entry, error) {
	return s.store.List(ctx, status, limit, offset)
}
