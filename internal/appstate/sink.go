package appstate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tahfidz/internal/gateway"
	"tahfidz/internal/journal"
	"tahfidz/internal/logging"
)

// SubmitTimeout bounds the journal write made on the request path.
const SubmitTimeout = 5 * time.Second

// JournalSink writes each change ahead to the sync journal; the worker
// pushes it later. It returns once the entry is journaled, whether or not
// the queue had room for it.
type JournalSink struct {
	syncer *journal.Syncer
	log    *zap.Logger
}

func NewJournalSink(s *journal.Syncer, logger *zap.Logger) *JournalSink {
	return &JournalSink{syncer: s, log: logging.OrNop(logger)}
}

func (s *JournalSink) Submit(ctx context.Context, ch Change) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SubmitTimeout)
	defer cancel()
	if _, err := s.syncer.Enqueue(ctx, ch.Action, ch.Payload); err != nil {
		s.log.Error("journal enqueue failed", zap.String("action", string(ch.Action)), zap.Error(err))
	}
}

// DirectSink sends each change straight through the gateway in the
// background, with no journal. Changes still sync in submission order.
type DirectSink struct {
	client *gateway.Client
	work   chan Change
	log    *zap.Logger
}

// NewDirectSink starts the sender goroutine; it stops when ctx ends.
// Changes submitted while backlog changes are already waiting are dropped
// with a log line, local state keeps them.
func NewDirectSink(ctx context.Context, c *gateway.Client, backlog int, logger *zap.Logger) *DirectSink {
	if backlog <= 0 {
		backlog = 256
	}
	log := logging.OrNop(logger)
	s := &DirectSink{client: c, work: make(chan Change, backlog), log: log}
	go func() {
		for {
			select {
			case ch := <-s.work:
				s.client.Send(ctx, ch.Action, ch.Payload)
			case <-ctx.Done():
				if n := len(s.work); n > 0 {
					log.Warn("direct sync stopped with changes unsent", zap.Int("count", n))
				}
				return
			}
		}
	}()
	return s
}

func (s *DirectSink) Submit(_ context.Context, ch Change) {
	select {
	case s.work <- ch:
	default:
		s.log.Warn("direct sync backlog full, change kept locally", zap.String("action", string(ch.Action)))
	}
}

// Discard drops every change. Used by tests and the seed-only mode.
type Discard struct{}

func (Discard) Submit(context.Context, Change) {}
