package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"omniwizz/internal/domain"
	"omniwizz/internal/eventlog"
	"omniwizz/internal/infra"
	"omniwizz/internal/pipeline"
	"omniwizz/internal/providers/music"
	"omniwizz/internal/storage"
)

const defaultMaxUploadBytes = 20 << 20

// Runner is the part of the pipeline the HTTP layer drives.
type Runner interface {
	Generate(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.GenerateResult, error)
	Regenerate(ctx context.Context, req pipeline.RegenerateRequest) (*pipeline.MusicResult, error)
	MusicStatus(run string) (*pipeline.MusicTaskStatus, error)
}

type Options struct {
	Pipeline Runner
	Runs     *storage.RunStore
	// Events is nil when the event log is disabled.
	Events *eventlog.Recorder
	// LogDBPath is the sqlite file served by DownloadLogs; empty for other drivers.
	LogDBPath      string
	LogDownloadKey string
	DeferMusic     bool
	MaxUploadBytes int64
	Logger         *infra.Logger
}

type App struct {
	pipeline       Runner
	runs           *storage.RunStore
	events         *eventlog.Recorder
	logDBPath      string
	logDownloadKey string
	deferMusic     bool
	maxUpload      int64
	validate       *validator.Validate
	logger         *infra.Logger
}

func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &App{
		pipeline:       opts.Pipeline,
		runs:           opts.Runs,
		events:         opts.Events,
		logDBPath:      opts.LogDBPath,
		logDownloadKey: opts.LogDownloadKey,
		deferMusic:     opts.DeferMusic,
		maxUpload:      maxUpload,
		validate:       validator.New(),
		logger:         logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": message, "code": errCode})
}

// fail maps err onto a status code and writes the error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, errCode := statusFor(err)
	if code >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	a.error(w, code, errCode, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrRunBusy):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidRun),
		errors.Is(err, music.ErrEmptyPrompt),
		errors.Is(err, eventlog.ErrMissingSession),
		errors.Is(err, eventlog.ErrInvalidSession),
		errors.Is(err, eventlog.ErrEmptyBatch),
		errors.Is(err, eventlog.ErrBatchTooLarge):
		return http.StatusBadRequest, "bad_request"
	}
	var ve *eventlog.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal"
}
