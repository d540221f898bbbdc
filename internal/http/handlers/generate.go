package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"omniwizz/internal/domain"
	"omniwizz/internal/middleware"
	"omniwizz/internal/pipeline"
	"omniwizz/internal/providers/vision"
	"omniwizz/internal/storage"
)

type musicPayload struct {
	Folder          string            `json:"folder"`
	Status          domain.TaskStatus `json:"status,omitempty"`
	AudioURL        string            `json:"audio_url"`
	LyricsURL       string            `json:"lyrics_url"`
	PromptURL       string            `json:"prompt_url"`
	StatusURL       string            `json:"status_url,omitempty"`
	Prompt          string            `json:"prompt,omitempty"`
	Lyrics          string            `json:"lyrics,omitempty"`
	Provider        string            `json:"provider,omitempty"`
	Degraded        bool              `json:"degraded,omitempty"`
	FallbackReasons []string          `json:"fallback_reasons,omitempty"`
}

type tagsPayload struct {
	Folder          string   `json:"folder"`
	Tags            []string `json:"tags"`
	TagsURL         string   `json:"tags_url"`
	Degraded        bool     `json:"degraded,omitempty"`
	FallbackReasons []string `json:"fallback_reasons,omitempty"`
}

type imagesPayload struct {
	Folder          string   `json:"folder"`
	Entities        []string `json:"entities"`
	Images          []string `json:"images"`
	Degraded        bool     `json:"degraded,omitempty"`
	FallbackReasons []string `json:"fallback_reasons,omitempty"`
}

type generateResponse struct {
	Music  *musicPayload  `json:"music,omitempty"`
	Tags   *tagsPayload   `json:"tags,omitempty"`
	Images *imagesPayload `json:"images,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Generate accepts a multipart upload (field "file") and runs the selected
// modes against one run folder. Any failing mode turns the response into a
// 500 that still carries the results of the others.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(a.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("upload exceeds %d bytes", a.maxUpload))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart form required")
		return
	}
	defer r.MultipartForm.RemoveAll()

	data, header, err := readFormFile(r, "file")
	if err != nil || len(data) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "file required")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		a.error(w, http.StatusBadRequest, "bad_request", "file must be an image")
		return
	}

	lang := middleware.LocaleFromContext(r.Context())
	if v := strings.TrimSpace(r.FormValue("language")); v != "" {
		lang = domain.ParseLanguage(v)
	}
	modes := r.FormValue("modes")
	flavors := domain.ParseFlavors(modes)
	if len(flavors) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("no known mode in %q", modes))
		return
	}

	req := pipeline.GenerateRequest{
		Input: pipeline.Input{
			Image:     vision.Image{Data: data, MIMEType: mimeType},
			ImageName: header.Filename,
			Language:  lang,
		},
		Flavors:    flavors,
		DeferMusic: a.deferMusic,
	}
	if ref, refHeader, err := readFormFile(r, "reference_audio"); err == nil && len(ref) > 0 {
		req.ReferenceAudio = ref
		req.ReferenceType = refHeader.Header.Get("Content-Type")
	}

	res, err := a.pipeline.Generate(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	body := buildGenerateResponse(res)
	if ferr := res.Err(); ferr != nil {
		a.logger.Error().Err(ferr).Str("run", res.Run).Msg("generate finished with errors")
		body.Error = ferr.Error()
		a.json(w, http.StatusInternalServerError, body)
		return
	}
	a.json(w, http.StatusOK, body)
}

func readFormFile(r *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, header, nil
}

func outputURL(folder, key string) string {
	return "/output/" + folder + "/" + key
}

func buildGenerateResponse(res *pipeline.GenerateResult) generateResponse {
	var body generateResponse
	if m := res.Music; m != nil {
		body.Music = &musicPayload{
			Folder:          m.Run,
			Status:          m.Status,
			AudioURL:        outputURL(m.Run, storage.AudioFile),
			LyricsURL:       outputURL(m.Run, storage.LyricsFile),
			PromptURL:       outputURL(m.Run, storage.PromptFile),
			Prompt:          m.Prompt,
			Lyrics:          m.Lyrics,
			Provider:        m.Provider,
			Degraded:        m.Degraded,
			FallbackReasons: m.FallbackReasons,
		}
		if m.Status == domain.TaskStatusPending {
			body.Music.StatusURL = "/runs/" + m.Run + "/status"
		}
	}
	if t := res.Tags; t != nil {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		body.Tags = &tagsPayload{
			Folder:          t.Run,
			Tags:            tags,
			TagsURL:         outputURL(t.Run, storage.TagsFile),
			Degraded:        t.Degraded,
			FallbackReasons: t.FallbackReasons,
		}
	}
	if im := res.Images; im != nil {
		urls := make([]string, 0, len(im.Images))
		for _, key := range im.Images {
			urls = append(urls, outputURL(im.Run, key))
		}
		entities := im.Entities
		if entities == nil {
			entities = []string{}
		}
		body.Images = &imagesPayload{
			Folder:          im.Run,
			Entities:        entities,
			Images:          urls,
			Degraded:        im.Degraded,
			FallbackReasons: im.FallbackReasons,
		}
	}
	return body
}
