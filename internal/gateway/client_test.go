package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahfidz/internal/model"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func testClient(url string, rec *sleepRecorder) *Client {
	c := New(url, 5*time.Second, nil)
	c.Backoff.Sleep = rec.sleep
	c.Backoff.Rand = func() float64 { return 0 }
	return c
}

func TestBackoffDelaySequence(t *testing.T) {
	b := DefaultBackoff()
	b.Rand = func() float64 { return 0.5 }
	want := []time.Duration{
		1250 * time.Millisecond,
		2250 * time.Millisecond,
		4250 * time.Millisecond,
		8250 * time.Millisecond,
		16250 * time.Millisecond,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Delay(i+1), "retry %d", i+1)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := DefaultBackoff()
	for i := 0; i < 200; i++ {
		d := b.Delay(1)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}
}

func TestBackoffStopsOnPermanentError(t *testing.T) {
	rec := &sleepRecorder{}
	b := DefaultBackoff()
	b.Sleep = rec.sleep
	calls := 0
	perm := errors.New("bad request")
	err := b.Do(context.Background(), func(context.Context) error {
		calls++
		return perm
	}, nil)
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestLoadUnconfiguredMakesNoRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := testClient("", &sleepRecorder{})
	data, ok := c.Load(context.Background())
	assert.Nil(t, data)
	assert.False(t, ok)
	assert.ErrorIs(t, c.Push(context.Background(), model.ActionCreateRecord, nil), ErrOffline)
	c.Send(context.Background(), model.ActionCreateRecord, nil)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestLoadRetriesThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"users":    []map[string]any{{"id": "u1", "name": "Admin", "role": "admin", "username": "admin", "password": 123}},
			"students": []any{}, "records": []any{}, "attendance": []any{}, "exams": []any{},
		})
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := testClient(srv.URL, rec)
	data, ok := c.Load(context.Background())
	require.True(t, ok)
	require.Len(t, data.Users, 1)
	assert.Equal(t, "123", data.Users[0].Password)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestLoadExhaustsRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := testClient(srv.URL, rec)
	data, ok := c.Load(context.Background())
	assert.Nil(t, data)
	assert.False(t, ok)
	assert.Equal(t, int32(6), atomic.LoadInt32(&hits))
	assert.Len(t, rec.delays, 5)
	assert.Equal(t, 16*time.Second, rec.delays[4])
}

func TestLoadDoesNotRetryClientError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL, &sleepRecorder{})
	_, ok := c.Load(context.Background())
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPushSendsActionEnvelope(t *testing.T) {
	var got struct {
		Action string          `json:"action"`
		Data   json.RawMessage `json:"data"`
	}
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		token = r.Header.Get(TokenHeader)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, &sleepRecorder{})
	c.Token = "s3cret"
	err := c.Push(context.Background(), model.ActionDeleteByID, model.DeleteRequest{ID: "r1", SheetName: model.SheetRecords})
	require.NoError(t, err)
	assert.Equal(t, "deleteData", got.Action)
	assert.JSONEq(t, `{"id":"r1","sheetName":"Records"}`, string(got.Data))
	assert.Equal(t, "s3cret", token)
}

func TestPushRetriesServerBusy(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			http.Error(w, "Server Busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := testClient(srv.URL, rec)
	require.NoError(t, c.Push(context.Background(), model.ActionCreateRecord, model.TahfidzRecord{ID: "r2"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	// pre-send pause, then one backoff wait
	assert.Equal(t, []time.Duration{0, time.Second}, rec.delays)
}
