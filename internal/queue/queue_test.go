package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, SyncMessage("j1")))
	require.NoError(t, q.Publish(ctx, SyncMessage("j2")))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	for _, want := range []string{"j1", "j2"} {
		select {
		case m := <-msgs:
			assert.Equal(t, TypeSync, m.Type)
			assert.Equal(t, want, string(m.Body))
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestInMemoryPublishNeverWaits(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), SyncMessage("j1")))

	start := time.Now()
	assert.ErrorIs(t, q.Publish(context.Background(), SyncMessage("j2")), ErrFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, SyncMessage("j3")), context.Canceled)
}

func TestConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer not closed")
	}
}

func TestEncodingKeepsPipesInBody(t *testing.T) {
	s, err := encode(Message{Type: TypeSync, Body: []byte("a|b")})
	require.NoError(t, err)
	m, err := decode(s)
	require.NoError(t, err)
	assert.Equal(t, "a|b", string(m.Body))
}

func TestOpenByName(t *testing.T) {
	q, err := Open("memory", nil)
	require.NoError(t, err)
	assert.IsType(t, &InMemory{}, q)

	_, err = Open("redis", nil)
	assert.Error(t, err)
	_, err = Open("kafka", nil)
	assert.Error(t, err)
}
