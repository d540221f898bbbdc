package eventlog

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"omniwizz/internal/infra"
	"omniwizz/internal/sqlinline"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// Postgres stores sessions and events through a marker-checked SQL runner.
type Postgres struct {
	db     infra.SQLExecutor
	closer func()
	logger *infra.Logger
}

type PostgresOptions struct {
	// DB is usually an *infra.SQLRunner wrapping a pgx pool.
	DB infra.SQLExecutor
	// Close releases the pool when the store is closed.
	Close  func()
	Logger *infra.Logger
}

// NewPostgres applies pending migrations and returns the store.
func NewPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("eventlog: postgres executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	p := &Postgres{db: opts.DB, closer: opts.Close, logger: logger}
	if err := p.migrate(ctx); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, sqlinline.QCreateMigrations); err != nil {
		return err
	}
	entries, err := postgresMigrations.ReadDir("migrations/postgres")
	if err != nil {
		return err
	}
	for _, m := range entries {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		var applied bool
		if err := p.db.QueryRow(ctx, sqlinline.QMigrationApplied, name).Scan(&applied); err != nil {
			return fmt.Errorf("check %s: %w", name, err)
		}
		if applied {
			continue
		}
		content, err := postgresMigrations.ReadFile("migrations/postgres/" + name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := p.db.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := p.db.Exec(ctx, sqlinline.QRecordMigration, name); err != nil {
			return fmt.Errorf("record %s: %w", name, err)
		}
		p.logger.Info().Str("migration", name).Msg("eventlog migration applied")
	}
	return nil
}

func (p *Postgres) EnsureSession(ctx context.Context, s Session) error {
	started := s.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	if _, err := p.db.Exec(ctx, sqlinline.QEnsureSession, s.ID, started.UTC(), s.UserAgent, s.Locale, s.Country); err != nil {
		return fmt.Errorf("eventlog: ensure session: %w", err)
	}
	return nil
}

func (p *Postgres) EndSession(ctx context.Context, id string, at time.Time) error {
	if _, err := p.db.Exec(ctx, sqlinline.QEndSession, id, at.UTC()); err != nil {
		return fmt.Errorf("eventlog: end session: %w", err)
	}
	return nil
}

// AppendEvents inserts the batch in one statement. All events must share a
// session id.
func (p *Postgres) AppendEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	sessionID := events[0].SessionID
	ts := make([]time.Time, len(events))
	types := make([]string, len(events))
	payloads := make([]string, len(events))
	for i, ev := range events {
		if ev.SessionID != sessionID {
			return fmt.Errorf("eventlog: batch mixes sessions %s and %s", sessionID, ev.SessionID)
		}
		ts[i] = ev.TS.UTC()
		types[i] = ev.Type
		payloads[i] = string(payloadOrEmpty(ev.Payload))
	}
	if _, err := p.db.Exec(ctx, sqlinline.QInsertEvents, sessionID, ts, types, payloads); err != nil {
		return fmt.Errorf("eventlog: insert events: %w", err)
	}
	return nil
}

func (p *Postgres) Events(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := p.db.Query(ctx, sqlinline.QListEvents, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev      Event
			payload string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.TS, &ev.Type, &payload); err != nil {
			return nil, fmt.Errorf("eventlog: scan event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	if p.closer != nil {
		p.closer()
	}
	return nil
}

var _ Store = (*Postgres)(nil)
