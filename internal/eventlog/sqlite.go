package eventlog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"omniwizz/internal/infra"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

const (
	qsMigrationApplied = `--sql 0e6f2a4b-93c1-4d7e-8a52-6b1f0c9d3e47
SELECT 1 FROM _migrations WHERE name = ?`
	qsRecordMigration = `--sql 7d2b9c14-5e8a-4f03-b6c1-2a9e4d7f0b58
INSERT INTO _migrations (name) VALUES (?)`
	qsEnsureSession = `--sql 3a8e1f6c-27d4-4b95-9c03-e5f2a1b7d864
INSERT INTO sessions (id, started_at, user_agent, locale, country)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`
	qsEndSession = `--sql 9f4c2d71-b8e3-4a16-8d5f-1c7a0e3b6f29
UPDATE sessions SET ended_at = ? WHERE id = ?`
	qsInsertEvent = `--sql 61b7e3a9-0c5d-4f28-a4e1-8d3f9b2c7a05
INSERT INTO events (session_id, ts, type, payload) VALUES (?, ?, ?, ?)`
	qsListEvents = `--sql c2d59f8e-6a14-4b3c-9e70-f1a8b5d2c346
SELECT id, session_id, ts, type, payload FROM events
WHERE session_id = ?
ORDER BY id
LIMIT ?`
)

// SQLite is the file-backed store. Statements carry the same --sql markers
// as the postgres queries; the marker line is stripped before execution.
type SQLite struct {
	conn   *sql.DB
	path   string
	logger *infra.Logger
}

// NewSQLite opens (creating when needed) the database at path and applies
// pending migrations.
func NewSQLite(path string, logger *infra.Logger) (*SQLite, error) {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("eventlog: create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("eventlog: ping database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("eventlog: %s: %w", pragma, err)
		}
	}

	s := &SQLite{conn: conn, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return s, nil
}

// Path is the database file, served by the log download endpoint.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error { return s.conn.Close() }

func (s *SQLite) migrate() error {
	entries, err := sqliteMigrations.ReadDir("migrations/sqlite")
	if err != nil {
		return err
	}
	for _, m := range entries {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.migrationApplied(name) {
			continue
		}
		content, err := sqliteMigrations.ReadFile("migrations/sqlite/" + name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := s.conn.Exec(stripMarker(qsRecordMigration), name); err != nil {
			return fmt.Errorf("record %s: %w", name, err)
		}
		s.logger.Info().Str("migration", name).Msg("eventlog migration applied")
	}
	return nil
}

func (s *SQLite) migrationApplied(name string) bool {
	var applied int
	err := s.conn.QueryRow(stripMarker(qsMigrationApplied), name).Scan(&applied)
	return err == nil && applied == 1
}

func (s *SQLite) EnsureSession(ctx context.Context, sess Session) error {
	started := sess.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.conn.ExecContext(ctx, stripMarker(qsEnsureSession),
		sess.ID, formatTime(started), sess.UserAgent, sess.Locale, sess.Country)
	if err != nil {
		return fmt.Errorf("eventlog: ensure session: %w", err)
	}
	return nil
}

func (s *SQLite) EndSession(ctx context.Context, id string, at time.Time) error {
	if _, err := s.conn.ExecContext(ctx, stripMarker(qsEndSession), formatTime(at), id); err != nil {
		return fmt.Errorf("eventlog: end session: %w", err)
	}
	return nil
}

func (s *SQLite) AppendEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventlog: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, stripMarker(qsInsertEvent))
	if err != nil {
		return fmt.Errorf("eventlog: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, ev.SessionID, formatTime(ev.TS), ev.Type, string(payloadOrEmpty(ev.Payload))); err != nil {
			return fmt.Errorf("eventlog: insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("eventlog: commit: %w", err)
	}
	return nil
}

func (s *SQLite) Events(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.conn.QueryContext(ctx, stripMarker(qsListEvents), sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev      Event
			ts      string
			payload string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ts, &ev.Type, &payload); err != nil {
			return nil, fmt.Errorf("eventlog: scan event: %w", err)
		}
		ev.TS, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("eventlog: parse ts %q: %w", ts, err)
		}
		ev.Payload = json.RawMessage(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Session reads one session row.
func (s *SQLite) Session(ctx context.Context, id string) (*Session, error) {
	const q = `--sql 4b0e8d3f-71a2-4c6e-b9d5-3f8c2a6e1d70
SELECT id, started_at, ended_at, user_agent, locale, country FROM sessions WHERE id = ?`
	var (
		sess    Session
		started string
		ended   sql.NullString
	)
	err := s.conn.QueryRowContext(ctx, stripMarker(q), id).
		Scan(&sess.ID, &started, &ended, &sess.UserAgent, &sess.Locale, &sess.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("eventlog: session %s: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: read session: %w", err)
	}
	if sess.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("eventlog: parse started_at: %w", err)
	}
	if ended.Valid {
		t, err := time.Parse(time.RFC3339Nano, ended.String)
		if err != nil {
			return nil, fmt.Errorf("eventlog: parse ended_at: %w", err)
		}
		sess.EndedAt = &t
	}
	return &sess, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func stripMarker(q string) string {
	_, body, err := infra.ExtractMarker(q)
	if err != nil {
		panic(fmt.Sprintf("eventlog: bad statement: %v", err))
	}
	return body
}

var _ Store = (*SQLite)(nil)
