package eventlog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"omniwizz/internal/infra"
)

const defaultMaxBatch = 200

// Meta describes the client that posted a batch.
type Meta struct {
	SessionID string
	UserAgent string
	Locale    string
	Country   string
}

type RecorderOptions struct {
	Store    Store
	MaxBatch int
	Now      func() time.Time
	Logger   *infra.Logger
}

// Recorder validates posted batches and writes them to a Store.
type Recorder struct {
	store    Store
	maxBatch int
	now      func() time.Time
	logger   *infra.Logger
}

func NewRecorder(opts RecorderOptions) (*Recorder, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("eventlog: store is required")
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = defaultMaxBatch
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		opts.Logger = &l
	}
	return &Recorder{
		store:    opts.Store,
		maxBatch: opts.MaxBatch,
		now:      opts.Now,
		logger:   opts.Logger,
	}, nil
}

// NormalizeSessionID accepts hyphenated or bare-hex UUIDs and returns the
// canonical hyphenated form.
func NormalizeSessionID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingSession
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSession, raw)
	}
	return id.String(), nil
}

// Record stores every entry of body under the session named in meta and
// returns how many were written. A session_end entry also closes the
// session.
func (r *Recorder) Record(ctx context.Context, meta Meta, body []byte) (int, error) {
	sessionID, err := NormalizeSessionID(meta.SessionID)
	if err != nil {
		return 0, err
	}
	entries, err := DecodeBatch(body, r.maxBatch)
	if err != nil {
		return 0, err
	}

	now := r.now()
	if err := r.store.EnsureSession(ctx, Session{
		ID:        sessionID,
		StartedAt: now,
		UserAgent: meta.UserAgent,
		Locale:    meta.Locale,
		Country:   meta.Country,
	}); err != nil {
		return 0, err
	}

	events := make([]Event, 0, len(entries))
	ended := false
	for _, e := range entries {
		events = append(events, Event{
			SessionID: sessionID,
			TS:        now,
			Type:      e.Type,
			Payload:   payloadOrEmpty(e.Payload),
		})
		if e.Type == SessionEndType {
			ended = true
		}
	}
	if err := r.store.AppendEvents(ctx, events); err != nil {
		return 0, err
	}
	if ended {
		if err := r.store.EndSession(ctx, sessionID, now); err != nil {
			return len(events), err
		}
	}

	r.logger.Debug().
		Str("session", sessionID).
		Int("events", len(events)).
		Bool("ended", ended).
		Msg("client events recorded")
	return len(events), nil
}
