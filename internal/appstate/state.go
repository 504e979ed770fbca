// Package appstate owns the in-process copy of every collection. All
// mutations go through one controller that serializes them, persists a
// snapshot to the local store and hands the matching spreadsheet action to
// the sync sink.
package appstate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tahfidz/internal/localstore"
	"tahfidz/internal/logging"
	"tahfidz/internal/model"
)

// Connection describes how the last refresh went.
type Connection string

const (
	ConnOnline      Connection = "online"
	ConnNoURL       Connection = "no_url"
	ConnFetchFailed Connection = "fetch_failed"
)

// Loader fetches every collection from the spreadsheet.
type Loader interface {
	Configured() bool
	Load(ctx context.Context) (*model.Collections, bool)
}

// Change is one spreadsheet action produced by a mutation.
type Change struct {
	Action  model.Action
	Payload any
}

// Sink forwards changes to the spreadsheet. Implementations must not block
// on the network.
type Sink interface {
	Submit(ctx context.Context, ch Change)
}

// Controller is the single owner of application state.
type Controller struct {
	mu   sync.RWMutex
	data model.Collections
	conn Connection
	// persist is taken before mu is released so snapshots reach the
	// store, and changes reach the sink, in mutation order.
	persist sync.Mutex

	kv     localstore.KV
	loader Loader
	sink   Sink
	log    *zap.Logger
	now    func() time.Time
}

// New builds a controller seeded with starter data. Call Restore and then
// Refresh before serving.
func New(kv localstore.KV, loader Loader, sink Sink, logger *zap.Logger) *Controller {
	c := &Controller{
		kv:     kv,
		loader: loader,
		sink:   sink,
		log:    logging.OrNop(logger),
		now:    time.Now,
		conn:   ConnNoURL,
	}
	c.data = model.Seed(c.now())
	return c
}

// Now is the controller clock.
func (c *Controller) Now() time.Time { return c.now() }

// SetClock replaces the clock, for tests.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

// Connection reports the outcome of the last refresh.
func (c *Controller) Connection() Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Snapshot returns a deep copy of every collection.
func (c *Controller) Snapshot() model.Collections {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.data)
}

// Mutate runs fn against the live collections under the write lock. When
// fn succeeds the snapshot is saved and its changes are submitted in order.
// fn must leave data untouched when it returns an error.
func (c *Controller) Mutate(ctx context.Context, fn func(data *model.Collections) ([]Change, error)) error {
	c.mu.Lock()
	changes, err := fn(&c.data)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	snap := clone(c.data)
	c.persist.Lock()
	c.mu.Unlock()
	defer c.persist.Unlock()

	if err := c.save(ctx, snap); err != nil {
		c.log.Warn("snapshot save failed", zap.Error(err))
	}
	for _, ch := range changes {
		c.sink.Submit(ctx, ch)
	}
	return nil
}

func clone(d model.Collections) model.Collections {
	out := model.Collections{
		Users:      append([]model.User{}, d.Users...),
		Students:   append([]model.Student{}, d.Students...),
		Records:    append([]model.TahfidzRecord{}, d.Records...),
		Attendance: append([]model.Attendance{}, d.Attendance...),
		Exams:      make([]model.Exam, len(d.Exams)),
	}
	for i, e := range d.Exams {
		if e.Details != nil {
			det := *e.Details
			e.Details = &det
		}
		out.Exams[i] = e
	}
	return out
}
