package appstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahfidz/internal/localstore"
	"tahfidz/internal/model"
)

type recordingSink struct {
	mu      sync.Mutex
	changes []Change
}

func (s *recordingSink) Submit(_ context.Context, ch Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, ch)
}

func (s *recordingSink) actions() []model.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Action, len(s.changes))
	for i, ch := range s.changes {
		out[i] = ch.Action
	}
	return out
}

type stubLoader struct {
	configured bool
	data       *model.Collections
	calls      int
}

func (l *stubLoader) Configured() bool { return l.configured }

func (l *stubLoader) Load(context.Context) (*model.Collections, bool) {
	l.calls++
	return l.data, l.data != nil
}

var (
	admin   = model.User{ID: "u1", Name: "Super Admin", Role: model.RoleAdmin}
	teacher = model.User{ID: "u2", Name: "Ust. Abdullah", Role: model.RoleTeacher}
	parent  = model.User{ID: "u3", Name: "Pak Ahmad (Wali)", Role: model.RoleParent, ChildID: "s1"}
)

func newTestController(t *testing.T, loader Loader) (*Controller, *recordingSink, localstore.KV) {
	t.Helper()
	kv := localstore.NewMemory()
	sink := &recordingSink{}
	c := New(kv, loader, sink, nil)
	c.SetClock(func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) })
	return c, sink, kv
}

func TestRefreshWithoutEndpoint(t *testing.T) {
	loader := &stubLoader{}
	c, _, _ := newTestController(t, loader)
	assert.Equal(t, ConnNoURL, c.Refresh(context.Background()))
	assert.Equal(t, 0, loader.calls)
	assert.Len(t, c.Snapshot().Users, 3)
}

func TestRefreshFailureKeepsLocalData(t *testing.T) {
	loader := &stubLoader{configured: true}
	c, _, _ := newTestController(t, loader)
	assert.Equal(t, ConnFetchFailed, c.Refresh(context.Background()))
	assert.Equal(t, ConnFetchFailed, c.Connection())
	assert.Len(t, c.Snapshot().Students, 2)
}

func TestRefreshReplacesCollections(t *testing.T) {
	loader := &stubLoader{configured: true, data: &model.Collections{
		Users:    nil,
		Students: []model.Student{{ID: "s9", Name: "Umar", TeacherID: "u2"}},
		Records:  []model.TahfidzRecord{},
		Exams:    []model.Exam{{ID: "e1", StudentID: "s9", Category: "Hal 1 - 10", Juz: "Juz 1"}},
	}}
	c, _, kv := newTestController(t, loader)
	assert.Equal(t, ConnOnline, c.Refresh(context.Background()))

	snap := c.Snapshot()
	assert.Len(t, snap.Users, 3, "empty remote users keep local accounts")
	require.Len(t, snap.Students, 1)
	assert.Empty(t, snap.Records)
	require.NotNil(t, snap.Exams[0].Details)
	assert.Equal(t, "1-10", snap.Exams[0].Details.Halaman)

	var saved []model.Student
	ok, err := localstore.LoadJSON(context.Background(), kv, localstore.CollectionKey("students"), &saved)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s9", saved[0].ID)
}

func TestSaveAndRestore(t *testing.T) {
	ctx := context.Background()
	c, _, kv := newTestController(t, nil)
	_, err := c.AddRecord(ctx, teacher, model.TahfidzRecord{
		StudentID: "s2", Type: model.RecordMurojaah, Surah: "An-Naba'", AyahStart: 1, AyahEnd: 40, Grade: model.GradeLancarBersyarat,
	})
	require.NoError(t, err)

	restored := New(kv, nil, Discard{}, nil)
	ok, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, restored.Snapshot().Records, 2)

	empty := New(localstore.NewMemory(), nil, Discard{}, nil)
	ok, err = empty.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, empty.Snapshot().Records, 1)
}

func TestAddRecordRules(t *testing.T) {
	ctx := context.Background()
	valid := model.TahfidzRecord{StudentID: "s1", Type: model.RecordZiyadah, Surah: "al-mulk", AyahStart: 1, AyahEnd: 10, Grade: model.GradeLancar}

	tests := []struct {
		name    string
		actor   model.User
		mutate  func(r *model.TahfidzRecord)
		wantErr error
	}{
		{name: "teacher ok", actor: teacher},
		{name: "admin forbidden", actor: admin, wantErr: model.ErrForbidden},
		{name: "parent forbidden", actor: parent, wantErr: model.ErrForbidden},
		{name: "other teacher", actor: model.User{ID: "u9", Role: model.RoleTeacher}, wantErr: model.ErrForbidden},
		{name: "unknown student", actor: teacher, mutate: func(r *model.TahfidzRecord) { r.StudentID = "nope" }, wantErr: model.ErrNotFound},
		{name: "bad grade", actor: teacher, mutate: func(r *model.TahfidzRecord) { r.Grade = "Mantap" }, wantErr: model.ErrInvalid},
		{name: "bad range", actor: teacher, mutate: func(r *model.TahfidzRecord) { r.AyahEnd = 0 }, wantErr: model.ErrInvalid},
		{name: "bad surah", actor: teacher, mutate: func(r *model.TahfidzRecord) { r.Surah = "Unknown" }, wantErr: model.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, sink, _ := newTestController(t, nil)
			r := valid
			if tt.mutate != nil {
				tt.mutate(&r)
			}
			got, err := c.AddRecord(ctx, tt.actor, r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, sink.actions())
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, "2025-03-01", got.Date)
			assert.Equal(t, "Al-Mulk", got.Surah)
			assert.Equal(t, got.ID, c.Snapshot().Records[0].ID)
			assert.Equal(t, []model.Action{model.ActionCreateRecord}, sink.actions())
		})
	}
}

func TestDeletesNeedConfirmation(t *testing.T) {
	ctx := context.Background()
	c, sink, _ := newTestController(t, nil)

	assert.ErrorIs(t, c.DeleteRecord(ctx, teacher, "r1", false), model.ErrConfirmationRequired)
	assert.ErrorIs(t, c.DeleteRecord(ctx, parent, "r1", true), model.ErrForbidden)
	require.NoError(t, c.DeleteRecord(ctx, teacher, "r1", true))
	assert.ErrorIs(t, c.DeleteRecord(ctx, teacher, "r1", true), model.ErrNotFound)

	assert.ErrorIs(t, c.DeleteStudent(ctx, teacher, "s2", true), model.ErrForbidden)
	require.NoError(t, c.DeleteStudent(ctx, admin, "s2", true))
	assert.ErrorIs(t, c.DeleteUser(ctx, admin, "u1", true), model.ErrInvalid)
	require.NoError(t, c.DeleteUser(ctx, admin, "u3", true))

	require.Len(t, sink.changes, 3)
	assert.Equal(t, model.DeleteRequest{ID: "r1", SheetName: model.SheetRecords}, sink.changes[0].Payload)
	assert.Equal(t, model.DeleteRequest{ID: "s2", SheetName: model.SheetStudents}, sink.changes[1].Payload)
	assert.Equal(t, model.DeleteRequest{ID: "u3", SheetName: model.SheetUsers}, sink.changes[2].Payload)
}

func TestAddStudentsAndUsers(t *testing.T) {
	ctx := context.Background()
	c, sink, _ := newTestController(t, nil)

	students, err := c.AddStudents(ctx, admin, model.Student{Name: " Umar ", NIS: "2024010", TeacherID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "Umar", students[0].Name)
	assert.Equal(t, "2024010", students[0].Username)
	assert.Equal(t, DefaultPassword, students[0].Password)

	_, err = c.AddStudents(ctx, admin, model.Student{Name: "No Teacher"})
	assert.ErrorIs(t, err, model.ErrInvalid)
	_, err = c.AddStudents(ctx, teacher, model.Student{Name: "X", TeacherID: "u2"})
	assert.ErrorIs(t, err, model.ErrForbidden)

	users, err := c.AddUsers(ctx, admin, model.User{Name: "Ust. Budi", Username: "budi", Password: "456"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleTeacher, users[0].Role)
	_, err = c.AddUsers(ctx, admin, model.User{Name: "Dup", Username: "guru", Password: "1"})
	assert.ErrorIs(t, err, model.ErrInvalid)

	assert.Equal(t, []model.Action{model.ActionCreateStudent, model.ActionCreateUser}, sink.actions())
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	c, sink, _ := newTestController(t, nil)

	name, phone := "Ust. Abdullah, Lc.", "6289999"
	u, err := c.UpdateProfile(ctx, teacher, ProfilePatch{Name: &name, PhoneNumber: &phone})
	require.NoError(t, err)
	assert.Equal(t, name, u.Name)
	assert.Empty(t, u.Password)
	require.Len(t, sink.changes, 1)
	assert.Equal(t, model.ActionUpdateUser, sink.changes[0].Action)
	assert.Equal(t, "6289999", sink.changes[0].Payload.(model.User).PhoneNumber)

	studentLogin := model.User{ID: "s1", Role: model.RoleParent, ChildID: "s1"}
	pw := "rahasia"
	u, err = c.UpdateProfile(ctx, studentLogin, ProfilePatch{Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "s1", u.ChildID)
	payload := sink.changes[1].Payload.(studentUpdate)
	assert.Equal(t, "student", payload.Role)
	assert.Equal(t, "rahasia", payload.Password)
	assert.Equal(t, "rahasia", c.Snapshot().Students[0].Password)

	empty := ""
	_, err = c.UpdateProfile(ctx, teacher, ProfilePatch{Name: &empty})
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestFilterRecords(t *testing.T) {
	students := []model.Student{
		{ID: "s1", Name: "Fulan bin Ahmad", Class: "7A"},
		{ID: "s2", Name: "Zaid bin Khalid", Class: "8B"},
	}
	records := []model.TahfidzRecord{
		{ID: "r1", StudentID: "s1", Date: "2025-01-01", Type: model.RecordZiyadah, Surah: "Al-Baqarah"},
		{ID: "r2", StudentID: "s2", Date: "2025-01-05", Type: model.RecordZiyadah, Surah: "Al-Mulk"},
		{ID: "r3", StudentID: "s1", Date: "2025-01-03", Type: model.RecordMurojaah, Surah: "Al-Mulk"},
	}
	ids := func(rs []model.TahfidzRecord) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []string{"r2", "r3", "r1"}, ids(FilterRecords(students, records, RecordFilter{})))
	assert.Equal(t, []string{"r2", "r1"}, ids(FilterRecords(students, records, RecordFilter{Type: model.RecordZiyadah})))
	assert.Equal(t, []string{"r3", "r1"}, ids(FilterRecords(students, records, RecordFilter{Search: "fulan"})))
	assert.Equal(t, []string{"r2"}, ids(FilterRecords(students, records, RecordFilter{Class: "8B"})))
	assert.Equal(t, []string{"r2", "r3"}, ids(FilterRecords(students, records, RecordFilter{Juz: 29})))
	assert.Equal(t, []string{"r3"}, ids(FilterRecords(students, records, RecordFilter{From: "2025-01-02", To: "2025-01-04"})))
}

func TestViewForParent(t *testing.T) {
	c, _, _ := newTestController(t, nil)
	v := c.ViewFor(parent)
	require.Len(t, v.Students, 1)
	assert.Equal(t, "s1", v.Students[0].ID)
	assert.Len(t, v.Records, 1)
}
