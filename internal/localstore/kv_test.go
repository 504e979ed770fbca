package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type view struct {
	Tab string `json:"tab"`
}

func backends(t *testing.T) map[string]KV {
	t.Helper()
	lite, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]KV{
		"memory": NewMemory(),
		"sqlite": lite,
	}
}

func TestKeysAreVersioned(t *testing.T) {
	assert.Equal(t, "tahfidz:v1:session:abc", SessionKey("abc"))
	assert.Equal(t, "tahfidz:v1:view:u1", ViewKey("u1"))
	assert.Equal(t, "tahfidz:v1:live_exam:u2", LiveExamKey("u2"))
	assert.Equal(t, "tahfidz:v1:records", CollectionKey("records"))
}

func TestRoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := ViewKey("u1")
			ok, err := LoadJSON(ctx, kv, key, &view{})
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, SaveJSON(ctx, kv, key, view{Tab: "exams"}))
			require.NoError(t, SaveJSON(ctx, kv, key, view{Tab: "reports"}))

			var got view
			ok, err = LoadJSON(ctx, kv, key, &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "reports", got.Tab)

			require.NoError(t, kv.Delete(ctx, key))
			_, err = kv.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCorruptValueIsDiscarded(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Put(ctx, LiveExamKey("u2"), []byte("{not json")))

	var v view
	ok, err := LoadJSON(ctx, kv, LiveExamKey("u2"), &v)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = kv.Get(ctx, LiveExamKey("u2"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("etcd", "", nil)
	assert.Error(t, err)
	_, err = Open("redis", "", nil)
	assert.Error(t, err)
	kv, err := Open("memory", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)
}
