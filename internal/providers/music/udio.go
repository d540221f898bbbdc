package music

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"omniwizz/internal/infra"
	"omniwizz/internal/jobpoll"
)

const (
	udioProviderName = "udio"
	udioModel        = "music-u"
)

type UdioOptions struct {
	APIKey         string
	BaseURL        string
	MaxAttempts    int
	Interval       time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Udio generates music through the PiAPI task API and polls for the result.
type Udio struct {
	poller *jobpoll.Poller
}

type udioPayload struct {
	Model    string         `json:"model"`
	TaskType string         `json:"task_type"`
	Input    udioInput      `json:"input"`
	Config   map[string]any `json:"config"`
}

type udioInput struct {
	Prompt     string `json:"prompt"`
	LyricsType string `json:"lyrics_type"`
	Lyrics     string `json:"lyrics"`
}

func NewUdio(opts UdioOptions) (*Udio, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("music: udio api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.piapi.ai"
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 120 * time.Second
	}
	poller := jobpoll.New(jobpoll.Options{
		Name:           udioProviderName,
		SubmitURL:      baseURL + "/api/v1/task",
		AuthHeader:     "X-API-Key",
		AuthValue:      apiKey,
		MaxAttempts:    opts.MaxAttempts,
		Interval:       opts.Interval,
		RequestTimeout: requestTimeout,
		HTTPClient:     opts.HTTPClient,
		Logger:         opts.Logger,
	})
	return &Udio{poller: poller}, nil
}

func (u *Udio) Name() string { return udioProviderName }

func (u *Udio) Generate(ctx context.Context, req Request) (*Track, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	payload := udioPayload{
		Model:    udioModel,
		TaskType: "generate_music",
		Input: udioInput{
			Prompt:     prompt,
			LyricsType: "user",
			Lyrics:     req.Lyrics,
		},
		Config: map[string]any{},
	}
	job, dl, err := u.poller.Generate(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &Track{
		Data:        dl.Data,
		ContentType: dl.ContentType,
		SourceURL:   dl.URL,
		TaskID:      job.TaskID,
		Provider:    udioProviderName,
	}, nil
}

var _ Generator = (*Udio)(nil)
