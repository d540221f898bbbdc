package handlers

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"os"

	"omniwizz/internal/eventlog"
	"omniwizz/internal/middleware"
)

const maxLogBatchBytes = 1 << 20

// LogBatch stores client events posted as [{type, payload}] under the
// session named by the X-Omni-Session header.
func (a *App) LogBatch(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLogBatchBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "batch too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	n, err := a.events.Record(r.Context(), eventlog.Meta{
		SessionID: r.Header.Get(middleware.SessionHeader),
		UserAgent: r.UserAgent(),
		Locale:    string(middleware.LocaleFromContext(r.Context())),
		Country:   middleware.CountryFromContext(r.Context()),
	}, body)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]int{"accepted": n})
}

// DownloadLogs serves the sqlite event log to holders of the download key.
func (a *App) DownloadLogs(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if a.logDownloadKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(a.logDownloadKey)) != 1 {
		a.error(w, http.StatusForbidden, "forbidden", "Forbidden")
		return
	}
	if a.logDBPath == "" {
		a.error(w, http.StatusNotFound, "not_found", "DB not found")
		return
	}
	info, err := os.Stat(a.logDBPath)
	if err != nil || !info.Mode().IsRegular() {
		a.error(w, http.StatusNotFound, "not_found", "DB not found")
		return
	}
	w.Header().Set("Content-Type", "application/x-sqlite3")
	w.Header().Set("Content-Disposition", "attachment; filename=omni_logs.db")
	http.ServeFile(w, r, a.logDBPath)
}
