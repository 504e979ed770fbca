// Package localstore mirrors application state into durable key-value
// storage so a restart keeps sessions, the active view and live exams.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Version is bumped whenever a stored shape changes incompatibly; old keys
// are then simply never read again.
const Version = "v1"

const prefix = "tahfidz:" + Version + ":"

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KV is the storage contract shared by the memory, sqlite and redis
// backends.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key joins parts under the versioned namespace.
func Key(parts ...string) string {
	return prefix + strings.Join(parts, ":")
}

// Well-known keys.
func SessionKey(tokenID string) string     { return Key("session", tokenID) }
func ViewKey(userID string) string         { return Key("view", userID) }
func LiveExamKey(examinerID string) string { return Key("live_exam", examinerID) }
func CollectionKey(name string) string     { return Key(name) }

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, kv KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Put(ctx, key, b)
}

// LoadJSON decodes the value under key into v. It reports false when the
// key is absent. A value that no longer decodes is removed and treated as
// absent.
func LoadJSON(ctx context.Context, kv KV, key string, v any) (bool, error) {
	b, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		_ = kv.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}
