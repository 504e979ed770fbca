package queue

import (
	"fmt"

	"tahfidz/internal/store"
)

// Open picks a backend by name: "memory" or "redis".
func Open(backend string, rdb *store.Redis) (Queue, error) {
	switch backend {
	case "", "memory":
		return NewInMemory(256), nil
	case "redis":
		if rdb == nil || rdb.Client == nil {
			return nil, fmt.Errorf("redis queue backend needs a redis client")
		}
		return NewRedisQueue(rdb.Client, DefaultKey), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", backend)
	}
}
