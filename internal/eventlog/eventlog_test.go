package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniwizz/internal/sqlinline"
)

const testSession = "0b6c1a3e-5f2d-4d8a-9c7e-1f2a3b4c5d6e"

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "data", "omni_logs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDecodeBatch(t *testing.T) {
	entries, err := DecodeBatch([]byte(`[{"type":"upload","payload":{"size":12}},{"type":"activity_ping"}]`), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "upload", entries[0].Type)
	assert.JSONEq(t, `{"size":12}`, string(entries[0].Payload))
	assert.Empty(t, entries[1].Payload)
}

func TestDecodeBatchRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		max  int
		want error
	}{
		{name: "not an array", body: `{"type":"x"}`},
		{name: "missing type", body: `[{"payload":{}}]`},
		{name: "empty type", body: `[{"type":""}]`},
		{name: "bad type chars", body: `[{"type":"drop table"}]`},
		{name: "payload not object", body: `[{"type":"x","payload":[1]}]`},
		{name: "unknown field", body: `[{"type":"x","extra":1}]`},
		{name: "malformed json", body: `[{`},
		{name: "empty batch", body: `[]`, want: ErrEmptyBatch},
		{name: "too large", body: `[{"type":"a"},{"type":"b"},{"type":"c"}]`, max: 2, want: ErrBatchTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeBatch([]byte(tc.body), tc.max)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				return
			}
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
		})
	}
}

func TestNormalizeSessionID(t *testing.T) {
	id, err := NormalizeSessionID("0B6C1A3E5F2D4D8A9C7E1F2A3B4C5D6E")
	require.NoError(t, err)
	assert.Equal(t, testSession, id)

	_, err = NormalizeSessionID("  ")
	assert.ErrorIs(t, err, ErrMissingSession)
	_, err = NormalizeSessionID("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSQLiteMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")
	first, err := NewSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLite(path, nil)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.conn.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count))
	assert.Equal(t, 1, count)

	var mode string
	require.NoError(t, second.conn.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	assert.Equal(t, path, second.Path())
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.EnsureSession(ctx, Session{ID: testSession, StartedAt: at, UserAgent: "ua", Locale: "zh", Country: "TW"}))
	require.NoError(t, store.EnsureSession(ctx, Session{ID: testSession, StartedAt: at.Add(time.Hour), UserAgent: "other"}))

	require.NoError(t, store.AppendEvents(ctx, []Event{
		{SessionID: testSession, TS: at, Type: "upload", Payload: json.RawMessage(`{"name":"a.png"}`)},
		{SessionID: testSession, TS: at.Add(time.Second), Type: "activity_ping"},
	}))

	events, err := store.Events(ctx, testSession, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "upload", events[0].Type)
	assert.JSONEq(t, `{"name":"a.png"}`, string(events[0].Payload))
	assert.Equal(t, "{}", string(events[1].Payload))
	assert.True(t, events[1].TS.Equal(at.Add(time.Second)))

	limited, err := store.Events(ctx, testSession, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	sess, err := store.Session(ctx, testSession)
	require.NoError(t, err)
	assert.Equal(t, "ua", sess.UserAgent)
	assert.Equal(t, "TW", sess.Country)
	assert.True(t, sess.StartedAt.Equal(at))
	assert.Nil(t, sess.EndedAt)

	require.NoError(t, store.EndSession(ctx, testSession, at.Add(time.Minute)))
	sess, err = store.Session(ctx, testSession)
	require.NoError(t, err)
	require.NotNil(t, sess.EndedAt)
	assert.True(t, sess.EndedAt.Equal(at.Add(time.Minute)))
}

func TestSQLiteRejectsUnknownSession(t *testing.T) {
	store := openSQLite(t)
	err := store.AppendEvents(context.Background(), []Event{{SessionID: testSession, TS: time.Now(), Type: "x"}})
	assert.Error(t, err)
}

func TestRecorderRecordsBatch(t *testing.T) {
	store := openSQLite(t)
	at := time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)
	rec, err := NewRecorder(RecorderOptions{Store: store, Now: func() time.Time { return at }})
	require.NoError(t, err)

	n, err := rec.Record(context.Background(), Meta{
		SessionID: strings.ReplaceAll(testSession, "-", ""),
		UserAgent: "Mozilla/5.0",
		Locale:    "en",
		Country:   "US",
	}, []byte(`[{"type":"generate_click","payload":{"modes":"music"}},{"type":"session_end"}]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := store.Events(context.Background(), testSession, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "generate_click", events[0].Type)

	sess, err := store.Session(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, "US", sess.Country)
	require.NotNil(t, sess.EndedAt)
	assert.True(t, sess.EndedAt.Equal(at))
}

func TestRecorderValidationStopsWrites(t *testing.T) {
	store := openSQLite(t)
	rec, err := NewRecorder(RecorderOptions{Store: store, MaxBatch: 1})
	require.NoError(t, err)

	_, err = rec.Record(context.Background(), Meta{SessionID: testSession}, []byte(`[{"type":"a"},{"type":"b"}]`))
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	_, err = rec.Record(context.Background(), Meta{}, []byte(`[{"type":"a"}]`))
	assert.ErrorIs(t, err, ErrMissingSession)

	_, err = store.Session(context.Background(), testSession)
	assert.Error(t, err)
}

type pgCall struct {
	query string
	args  []any
}

type fakeExecutor struct {
	calls   []pgCall
	applied bool
}

func (f *fakeExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, pgCall{query: query, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	f.calls = append(f.calls, pgCall{query: query, args: args})
	return boolRow(f.applied)
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type boolRow bool

func (b boolRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = bool(b)
	return nil
}

func TestPostgresMigrateAppliesOnce(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := NewPostgres(context.Background(), PostgresOptions{DB: exec})
	require.NoError(t, err)

	require.Len(t, exec.calls, 4)
	assert.Equal(t, sqlinline.QCreateMigrations, exec.calls[0].query)
	assert.Equal(t, sqlinline.QMigrationApplied, exec.calls[1].query)
	assert.Contains(t, exec.calls[2].query, "create table if not exists events")
	assert.Equal(t, sqlinline.QRecordMigration, exec.calls[3].query)
	assert.Equal(t, []any{"001_init.sql"}, exec.calls[3].args)

	applied := &fakeExecutor{applied: true}
	_, err = NewPostgres(context.Background(), PostgresOptions{DB: applied})
	require.NoError(t, err)
	assert.Len(t, applied.calls, 2)
}

func TestPostgresAppendEventsSingleStatement(t *testing.T) {
	exec := &fakeExecutor{applied: true}
	closed := false
	store, err := NewPostgres(context.Background(), PostgresOptions{DB: exec, Close: func() { closed = true }})
	require.NoError(t, err)
	exec.calls = nil

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	require.NoError(t, store.AppendEvents(context.Background(), []Event{
		{SessionID: testSession, TS: at, Type: "a", Payload: json.RawMessage(`{"k":1}`)},
		{SessionID: testSession, TS: at, Type: "b"},
	}))
	require.Len(t, exec.calls, 1)
	call := exec.calls[0]
	assert.Equal(t, sqlinline.QInsertEvents, call.query)
	assert.Equal(t, testSession, call.args[0])
	assert.Equal(t, []string{"a", "b"}, call.args[2])
	assert.Equal(t, []string{`{"k":1}`, "{}"}, call.args[3])
	assert.Equal(t, time.UTC, call.args[1].([]time.Time)[0].Location())

	err = store.AppendEvents(context.Background(), []Event{
		{SessionID: testSession, Type: "a"},
		{SessionID: "other", Type: "b"},
	})
	assert.Error(t, err)

	require.NoError(t, store.Close())
	assert.True(t, closed)
}
