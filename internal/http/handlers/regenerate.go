package handlers

import (
	"encoding/json"
	"net/http"

	"omniwizz/internal/domain"
	"omniwizz/internal/middleware"
	"omniwizz/internal/pipeline"
	"omniwizz/internal/storage"
)

type regenerateRequest struct {
	Folder   string `json:"folder" validate:"required"`
	Prompt   string `json:"prompt" validate:"required,max=2000"`
	Lyrics   string `json:"lyrics" validate:"max=20000"`
	Language string `json:"language" validate:"omitempty,oneof=en zh"`
}

// Regenerate re-invokes the music provider for an existing run with edited
// prompt and lyrics.
func (a *App) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	lang := middleware.LocaleFromContext(r.Context())
	if req.Language != "" {
		lang = domain.ParseLanguage(req.Language)
	}

	res, err := a.pipeline.Regenerate(r.Context(), pipeline.RegenerateRequest{
		Run:      req.Folder,
		Prompt:   req.Prompt,
		Lyrics:   req.Lyrics,
		Language: lang,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, musicPayload{
		Folder:          res.Run,
		Status:          domain.TaskStatusDone,
		AudioURL:        outputURL(res.Run, storage.AudioFile),
		LyricsURL:       outputURL(res.Run, storage.LyricsFile),
		PromptURL:       outputURL(res.Run, storage.PromptFile),
		Prompt:          res.Prompt,
		Lyrics:          res.Lyrics,
		Provider:        res.Provider,
		Degraded:        res.Degraded,
		FallbackReasons: res.FallbackReasons,
	})
}
