package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

var artifactTypes = map[string]string{
	".wav":  "audio/wav",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".txt":  "text/plain; charset=utf-8",
	".lrc":  "text/plain; charset=utf-8",
	".json": "application/json",
}

func artifactType(key string) string {
	if ct, ok := artifactTypes[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Artifact serves one file of a run: GET /output/{folder}/*.
func (a *App) Artifact(w http.ResponseWriter, r *http.Request) {
	run, err := a.runs.Open(chi.URLParam(r, "folder"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	key := chi.URLParam(r, "*")
	full, err := run.Path(key)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid path")
		return
	}
	if !run.Exists(key) {
		a.error(w, http.StatusNotFound, "not_found", "Not found")
		return
	}
	w.Header().Set("Content-Type", artifactType(key))
	http.ServeFile(w, r, full)
}

// Archive streams a whole run as a zip: GET /output/{folder}.zip.
func (a *App) Archive(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "folder")
	name, ok := strings.CutSuffix(param, ".zip")
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "Not found")
		return
	}
	run, err := a.runs.Open(name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.zip", run.Name))
	w.WriteHeader(http.StatusOK)
	if err := run.Archive(w); err != nil {
		a.logger.Error().Err(err).Str("run", run.Name).Msg("archive failed")
	}
}

// RunStatus reports the deferred music state of a run.
func (a *App) RunStatus(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")
	status, err := a.pipeline.MusicStatus(folder)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"folder":           folder,
		"status":           status.Status,
		"error":            status.Error,
		"provider":         status.Provider,
		"updated_at":       status.UpdatedAt,
		"degraded":         status.Degraded,
		"fallback_reasons": status.FallbackReasons,
	})
}
