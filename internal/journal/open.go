package journal

import (
	"context"
	"fmt"

	"tahfidz/internal/store"
)

// Open picks a backend by name: "memory" or "postgres". The returned close
// function is never nil.
func Open(ctx context.Context, backend, databaseURL string) (Store, func() error, error) {
	switch backend {
	case "", "memory":
		return NewMemory(), func() error { return nil }, nil
	case "postgres":
		db, err := store.NewPostgres(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := NewPostgres(db.Client)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate journal: %w", err)
		}
		return pg, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown journal backend %q", backend)
	}
}
