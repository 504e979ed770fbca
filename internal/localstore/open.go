package localstore

import (
	"fmt"

	"tahfidz/internal/store"
)

// Open picks a backend by name: "memory", "sqlite" (path) or "redis".
func Open(backend, path string, rdb *store.Redis) (KV, error) {
	switch backend {
	case "", "sqlite":
		return NewSQLite(path)
	case "memory":
		return NewMemory(), nil
	case "redis":
		if rdb == nil || rdb.Client == nil {
			return nil, fmt.Errorf("redis store backend needs a redis client")
		}
		return NewRedis(rdb.Client), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
