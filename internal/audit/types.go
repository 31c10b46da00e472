// Package audit is the optional, best-effort session/packet event ledger:
// in-memory if DATABASE_URL is unset, Postgres otherwise. It is never
// authoritative — the dispatcher's in-memory state is the source of
// truth, and a failure to record an event here is counted in the
// persistence-error metric and otherwise ignored.
package audit

import (
	"context"
	"time"
)

// Event is a single dispatcher notice: a session created or ended, or a
// best-effort persistence write that failed.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves dispatcher events.
type Store interface {
	RecordEvent(ctx context.Context, evt Event) error
	RecentEvents(ctx context.Context, sessionID string, limit int) ([]Event, error)
	Close() error
}
