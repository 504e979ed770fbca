package sheetdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahfidz/internal/model"
)

func openBook(t *testing.T) (*Book, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "tahfidz.xlsx")
	b, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, path
}

func apply(t *testing.T, b *Book, action model.Action, data any) Reply {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	reply, err := b.Apply(context.Background(), action, raw)
	require.NoError(t, err)
	return reply
}

func readCollections(t *testing.T, b *Book) model.Collections {
	t.Helper()
	data, err := b.Read(context.Background())
	require.NoError(t, err)
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var out model.Collections
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestOpenCreatesSheetsAndSeedsAdmin(t *testing.T) {
	b, _ := openBook(t)

	for _, s := range Schema {
		header, err := b.header(s.Name)
		require.NoError(t, err)
		assert.Equal(t, s.Headers, header, s.Name)
	}
	assert.NotContains(t, b.file.GetSheetList(), "Sheet1")

	data, err := b.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, data["users"], 1)
	assert.Equal(t, "admin", data["users"][0]["username"])
	for _, name := range []string{"students", "records", "attendance", "exams"} {
		assert.NotNil(t, data[name], name)
		assert.Empty(t, data[name], name)
	}
}

func TestReopenKeepsRowsAndDoesNotReseed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tahfidz.xlsx")
	b, err := Open(path, nil)
	require.NoError(t, err)
	apply(t, b, model.ActionCreateUser, map[string]any{"id": "u9", "name": "Guru", "role": "teacher", "username": "g", "password": "x"})
	require.NoError(t, b.Close())

	again, err := Open(path, nil)
	require.NoError(t, err)
	defer again.Close()
	got := readCollections(t, again)
	assert.Len(t, got.Users, 2)
}

func TestAddStudentDefaults(t *testing.T) {
	b, _ := openBook(t)
	apply(t, b, model.ActionCreateStudent, map[string]any{"id": "s1", "name": "Fulan", "nis": "2024001", "teacherId": "u2"})

	got := readCollections(t, b)
	require.Len(t, got.Students, 1)
	assert.Equal(t, "2024001", got.Students[0].Username)
	assert.Equal(t, 0.0, got.Students[0].TotalJuz)
}

func TestMarkAttendanceMergesPartialUpdate(t *testing.T) {
	b, _ := openBook(t)
	apply(t, b, model.ActionMarkAttendance, model.Attendance{
		ID: "a1", UserID: "u2", Date: "2025-03-01", Session: model.SessionPagi,
		Status: model.StatusSick, ApprovalStatus: model.ApprovalPending, Type: model.SubjectTeacher,
	})
	apply(t, b, model.ActionMarkAttendance, map[string]any{"id": "a1", "approvalStatus": "approved"})

	got := readCollections(t, b)
	require.Len(t, got.Attendance, 1)
	a := got.Attendance[0]
	assert.Equal(t, model.ApprovalApproved, a.ApprovalStatus)
	assert.Equal(t, model.StatusSick, a.Status)
	assert.Equal(t, "2025-03-01", a.Date)
}

func TestAddExamStoresDetails(t *testing.T) {
	b, _ := openBook(t)
	apply(t, b, model.ActionCreateExam, map[string]any{
		"id": "e1", "studentId": "s1", "date": "2025-03-01", "category": "Hal 1 - 10",
		"score": 88.5, "examiner": "Ust", "status": "pass",
		"details": map[string]any{"juz": "Juz 1", "halaman": "1-10"},
	})
	apply(t, b, model.ActionCreateExam, map[string]any{"id": "e2", "studentId": "s1", "score": 50})

	data, err := b.Read(context.Background())
	require.NoError(t, err)
	exams := data["exams"]
	require.Len(t, exams, 2)
	assert.Equal(t, "Juz 1", exams[0]["juz"])
	assert.Equal(t, 88.5, exams[0]["score"])
	assert.Equal(t, "1-10", exams[0]["details"].(map[string]any)["halaman"])
	assert.Equal(t, "-", exams[1]["juz"])
	assert.NotContains(t, exams[1], "details")
}

func TestUpdateUserRouting(t *testing.T) {
	b, _ := openBook(t)
	apply(t, b, model.ActionCreateStudent, map[string]any{"id": "s1", "name": "Fulan", "nis": "1", "password": "a"})

	apply(t, b, model.ActionUpdateUser, map[string]any{"id": "s1", "role": "student", "password": "b", "teacherId": "ignored"})
	apply(t, b, model.ActionUpdateUser, map[string]any{"id": "u1", "role": "admin", "phoneNumber": "62899", "avatar": "https://img/a.png"})
	reply := apply(t, b, model.ActionUpdateUser, map[string]any{"id": "missing", "role": "admin", "name": "x"})
	assert.Equal(t, "success", reply.Result)

	got := readCollections(t, b)
	require.Len(t, got.Students, 1)
	assert.Equal(t, "b", got.Students[0].Password)
	assert.Empty(t, got.Students[0].TeacherID)
	require.Len(t, got.Users, 1)
	assert.Equal(t, "62899", got.Users[0].PhoneNumber)
	assert.Equal(t, "https://img/a.png", got.Users[0].Avatar)
	assert.Equal(t, "admin", got.Users[0].Username)
}

func TestDeleteData(t *testing.T) {
	b, _ := openBook(t)
	apply(t, b, model.ActionCreateRecord, map[string]any{"id": "r1", "studentId": "s1", "surah": "Al-Fatihah", "ayahStart": 1, "ayahEnd": 7})
	apply(t, b, model.ActionCreateRecord, map[string]any{"id": "r2", "studentId": "s1", "surah": "An-Nas", "ayahStart": 1, "ayahEnd": 6})

	apply(t, b, model.ActionDeleteByID, model.DeleteRequest{ID: "r1", SheetName: model.SheetRecords})
	got := readCollections(t, b)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "r2", got.Records[0].ID)
	assert.Equal(t, 6, got.Records[0].AyahEnd)

	_, err := b.Apply(context.Background(), model.ActionDeleteByID, json.RawMessage(`{"id":"r2","sheetName":"Nope"}`))
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestApplyRejectsBadInput(t *testing.T) {
	b, _ := openBook(t)
	_, err := b.Apply(context.Background(), "dropTables", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = b.Apply(context.Background(), model.ActionCreateRecord, json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = b.Apply(context.Background(), model.ActionCreateRecord, json.RawMessage(`{"surah":"x"}`))
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestLockTimeout(t *testing.T) {
	b, _ := openBook(t)
	b.ReadWait = 20 * time.Millisecond
	b.WriteWait = 20 * time.Millisecond
	require.NoError(t, b.lock.Acquire(context.Background(), 1))
	defer b.lock.Release(1)

	_, err := b.Read(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = b.Apply(context.Background(), model.ActionCreateUser, json.RawMessage(`{"id":"u2"}`))
	assert.ErrorIs(t, err, ErrBusy)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		key, raw string
		want     any
		ok       bool
	}{
		{"date", "45717", "2025-03-01", true},
		{"date", "2025-03-01T07:00:00.000Z", "2025-03-01", true},
		{"ayahEnd", "", 0.0, true},
		{"score", "87.5", 87.5, true},
		{"nis", "'007", "007", true},
		{"details", "", nil, false},
		{"details", "not json", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.key+"/"+tt.raw, func(t *testing.T) {
			got, ok := normalize(tt.key, tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	b, _ := openBook(t)
	r := gin.New()
	NewHandler(b, "s3cret", nil).Register(r)

	do := func(method, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set(TokenHeader, token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "", "wrong").Code)

	w := do(http.MethodPost, `{"action":"addRecord","data":{"id":"r1","studentId":"s1"}}`, "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"success"}`, w.Body.String())

	w = do(http.MethodGet, "", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	var got model.Collections
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Records, 1)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, `{"action":"nope","data":{}}`, "s3cret").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, `{"data":{}}`, "s3cret").Code)

	b.ReadWait = 10 * time.Millisecond
	require.NoError(t, b.lock.Acquire(context.Background(), 1))
	w = do(http.MethodGet, "", "s3cret")
	b.lock.Release(1)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Server Busy (Lock Timeout)")

	health := httptest.NewRecorder()
	r.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}
