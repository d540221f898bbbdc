// Package eventlog records browser sessions and the client events they post
// to /log/batch. Two stores back it: a single-file sqlite database (the
// default, downloadable from the dev endpoint) and postgres.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrMissingSession = errors.New("eventlog: missing session id")
	ErrInvalidSession = errors.New("eventlog: invalid session id")
	ErrBatchTooLarge  = errors.New("eventlog: batch too large")
	ErrEmptyBatch     = errors.New("eventlog: empty batch")
)

// SessionEndType closes the session when it appears in a batch.
const SessionEndType = "session_end"

// Session is one browser session, keyed by the id the client keeps in local
// storage.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	UserAgent string
	Locale    string
	Country   string
}

// Event is a stored client event.
type Event struct {
	ID        int64
	SessionID string
	TS        time.Time
	Type      string
	Payload   json.RawMessage
}

// Entry is one element of a posted batch.
type Entry struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Store persists sessions and events.
type Store interface {
	// EnsureSession inserts the session unless a row with its id exists.
	EnsureSession(ctx context.Context, s Session) error
	EndSession(ctx context.Context, id string, at time.Time) error
	AppendEvents(ctx context.Context, events []Event) error
	// Events lists a session's events oldest first; limit <= 0 means all.
	Events(ctx context.Context, sessionID string, limit int) ([]Event, error)
	Close() error
}

func payloadOrEmpty(p json.RawMessage) json.RawMessage {
	if len(p) == 0 || string(p) == "null" {
		return json.RawMessage("{}")
	}
	return p
}
