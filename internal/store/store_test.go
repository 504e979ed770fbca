package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	db, err := NewSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite3", db.Driver)
	_, err = db.Client.Exec(`CREATE TABLE t (k TEXT)`)
	assert.NoError(t, err)
}

func TestNilHandlesAreSafe(t *testing.T) {
	var d *DB
	assert.NoError(t, d.Close())
	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}
