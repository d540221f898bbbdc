package infra

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	queries []string
	args    [][]any
	err     error
}

func (r *recordingExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func (r *recordingExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	r.queries = append(r.queries, query)
	return errorRow{err: pgx.ErrNoRows}
}

func (r *recordingExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	r.queries = append(r.queries, query)
	return nil, r.err
}

func discardLogger() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestExtractMarker(t *testing.T) {
	marker, body, err := ExtractMarker(`
--sql 3f0c2b8e-1d4a-4c59-9a7e-2b6d8f0e1a23
INSERT INTO t (a)
VALUES ($1)`)
	require.NoError(t, err)
	assert.Equal(t, "3f0c2b8e-1d4a-4c59-9a7e-2b6d8f0e1a23", marker)
	assert.Equal(t, "INSERT INTO t (a)\nVALUES ($1)", body)

	_, _, err = ExtractMarker("SELECT 1")
	assert.ErrorIs(t, err, ErrSQLMarker)

	_, _, err = ExtractMarker("--sql 3f0c2b8e-1d4a-4c59-9a7e-2b6d8f0e1a23\n   ")
	assert.Error(t, err)
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, discardLogger())

	tag, err := runner.Exec(context.Background(), "--sql 3f0c2b8e-1d4a-4c59-9a7e-2b6d8f0e1a23\nDELETE FROM t", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tag.RowsAffected())
	assert.Equal(t, []string{"DELETE FROM t"}, exec.queries)
	assert.Equal(t, []any{1}, exec.args[0])
}

func TestSQLRunnerRejectsUnmarkedStatements(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, discardLogger())

	_, err := runner.Exec(context.Background(), "DELETE FROM t")
	assert.ErrorIs(t, err, ErrSQLMarker)
	_, err = runner.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrSQLMarker)
	var n int
	assert.ErrorIs(t, runner.QueryRow(context.Background(), "SELECT 1").Scan(&n), ErrSQLMarker)
	assert.Empty(t, exec.queries)
}

func TestSQLRunnerPropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	runner := NewSQLRunner(&recordingExecutor{err: boom}, discardLogger())

	_, err := runner.Query(context.Background(), "--sql 3f0c2b8e-1d4a-4c59-9a7e-2b6d8f0e1a23\nSELECT 1")
	assert.ErrorIs(t, err, boom)

	var n int
	err = runner.QueryRow(context.Background(), "--sql 3f0c2b8e-1d4a-4c59-9a7e-2b6d8f0e1a23\nSELECT 1").Scan(&n)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
