// Package journal is the write-ahead log of spreadsheet mutations. Every
// optimistic change is appended as pending before it is pushed, so a crash
// or an outage never silently drops a write.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tahfidz/internal/model"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	// StatusOffline means no endpoint was configured when the push ran.
	StatusOffline Status = "offline"
)

// ErrNotFound is returned for an unknown entry id.
var ErrNotFound = errors.New("journal entry not found")

// Entry is one mutation waiting for, or done with, its push.
type Entry struct {
	ID        string          `json:"id"`
	Action    model.Action    `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Status    Status          `json:"status"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store persists journal entries.
type Store interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	Mark(ctx context.Context, id string, status Status, lastError string) error
	// Unsent returns entries not yet sent, oldest first.
	Unsent(ctx context.Context, limit int) ([]Entry, error)
	// List returns entries newest first, optionally filtered by status.
	List(ctx context.Context, status Status, limit, offset int) ([]Entry, error)
}

// NewEntry builds a pending entry for action with payload encoded as JSON.
func NewEntry(action model.Action, payload any) (Entry, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s payload: %w", action, err)
	}
	now := time.Now().UTC()
	return Entry{
		ID:        uuid.NewString(),
		Action:    action,
		Payload:   b,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
