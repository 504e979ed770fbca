package appstate

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tahfidz/internal/localstore"
	"tahfidz/internal/model"
)

const (
	keyUsers      = "users"
	keyStudents   = "students"
	keyRecords    = "records"
	keyAttendance = "attendance"
	keyExams      = "exams"
)

// Save writes every collection to the local store.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.RLock()
	snap := clone(c.data)
	c.persist.Lock()
	c.mu.RUnlock()
	defer c.persist.Unlock()
	return c.save(ctx, snap)
}

func (c *Controller) save(ctx context.Context, d model.Collections) error {
	return errors.Join(
		localstore.SaveJSON(ctx, c.kv, localstore.CollectionKey(keyUsers), d.Users),
		localstore.SaveJSON(ctx, c.kv, localstore.CollectionKey(keyStudents), d.Students),
		localstore.SaveJSON(ctx, c.kv, localstore.CollectionKey(keyRecords), d.Records),
		localstore.SaveJSON(ctx, c.kv, localstore.CollectionKey(keyAttendance), d.Attendance),
		localstore.SaveJSON(ctx, c.kv, localstore.CollectionKey(keyExams), d.Exams),
	)
}

// Restore loads the last snapshot. Collections missing from the store keep
// their seed value. It reports whether anything was restored.
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	var d model.Collections
	found := false
	load := func(name string, v any) error {
		ok, err := localstore.LoadJSON(ctx, c.kv, localstore.CollectionKey(name), v)
		found = found || ok
		return err
	}
	if err := errors.Join(
		load(keyUsers, &d.Users),
		load(keyStudents, &d.Students),
		load(keyRecords, &d.Records),
		load(keyAttendance, &d.Attendance),
		load(keyExams, &d.Exams),
	); err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if d.Users != nil {
		c.data.Users = d.Users
	}
	if d.Students != nil {
		c.data.Students = d.Students
	}
	if d.Records != nil {
		c.data.Records = d.Records
	}
	if d.Attendance != nil {
		c.data.Attendance = d.Attendance
	}
	if d.Exams != nil {
		c.data.Exams = migrateExams(d.Exams)
	}
	return true, nil
}

// Refresh reloads every collection from the spreadsheet. On failure the
// current (restored or seeded) data stays in place. An empty user sheet
// never replaces the local users so the admin can still log in.
func (c *Controller) Refresh(ctx context.Context) Connection {
	if c.loader == nil || !c.loader.Configured() {
		c.setConn(ConnNoURL)
		return ConnNoURL
	}
	remote, ok := c.loader.Load(ctx)
	if !ok || remote == nil {
		c.setConn(ConnFetchFailed)
		c.log.Warn("using local snapshot, spreadsheet unreachable")
		return ConnFetchFailed
	}

	c.mu.Lock()
	if len(remote.Users) > 0 {
		c.data.Users = remote.Users
	}
	if remote.Students != nil {
		c.data.Students = remote.Students
	}
	if remote.Records != nil {
		c.data.Records = remote.Records
	}
	if remote.Attendance != nil {
		c.data.Attendance = remote.Attendance
	}
	if remote.Exams != nil {
		c.data.Exams = migrateExams(remote.Exams)
	}
	c.conn = ConnOnline
	snap := clone(c.data)
	c.persist.Lock()
	c.mu.Unlock()

	err := c.save(ctx, snap)
	c.persist.Unlock()
	if err != nil {
		c.log.Warn("snapshot save failed", zap.Error(err))
	}
	c.log.Info("state refreshed from spreadsheet",
		zap.Int("students", len(snap.Students)),
		zap.Int("records", len(snap.Records)),
		zap.Int("exams", len(snap.Exams)))
	return ConnOnline
}

func (c *Controller) setConn(conn Connection) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func migrateExams(in []model.Exam) []model.Exam {
	out := make([]model.Exam, len(in))
	for i, e := range in {
		out[i] = model.MigrateExam(e)
	}
	return out
}
