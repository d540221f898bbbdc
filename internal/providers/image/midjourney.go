package image

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"omniwizz/internal/infra"
	"omniwizz/internal/jobpoll"
)

type MidjourneyOptions struct {
	APIKey      string
	BaseURL     string
	AspectRatio string
	ProcessMode string
	MaxAttempts int
	Interval    time.Duration
	HTTPClient  *http.Client
	Logger      *infra.Logger
}

// Midjourney generates an image grid per entity through the PiAPI imagine task.
type Midjourney struct {
	poller      *jobpoll.Poller
	aspectRatio string
	processMode string
}

type midjourneyPayload struct {
	Model    string          `json:"model"`
	TaskType string          `json:"task_type"`
	Input    midjourneyInput `json:"input"`
}

type midjourneyInput struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	ProcessMode     string `json:"process_mode"`
	SkipPromptCheck bool   `json:"skip_prompt_check"`
}

func NewMidjourney(opts MidjourneyOptions) (*Midjourney, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("image: midjourney api key is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.piapi.ai"
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 60
	}
	aspect := strings.TrimSpace(opts.AspectRatio)
	if aspect == "" {
		aspect = "1:1"
	}
	mode := strings.TrimSpace(opts.ProcessMode)
	if mode == "" {
		mode = "turbo"
	}
	poller := jobpoll.New(jobpoll.Options{
		Name:       "midjourney",
		SubmitURL:  base + "/api/v1/task",
		AuthHeader: "X-API-Key",
		AuthValue:  apiKey,
		Result: []jobpoll.Extractor{
			jobpoll.Field("data", "output", "image_urls"),
			jobpoll.Field("data", "output", "image_url"),
			jobpoll.Field("data", "works", 0, "resource", "resource"),
			jobpoll.Field("output", "image_urls"),
			jobpoll.Field("output", "image_url"),
			jobpoll.Field("works", 0, "resource", "resource"),
		},
		MaxAttempts: attempts,
		Interval:    opts.Interval,
		HTTPClient:  opts.HTTPClient,
		Logger:      opts.Logger,
	})
	return &Midjourney{poller: poller, aspectRatio: aspect, processMode: mode}, nil
}

func (m *Midjourney) Name() string { return "midjourney" }

func (m *Midjourney) Fetch(ctx context.Context, q Query) ([]Asset, error) {
	entity := q.entity()
	if entity == "" {
		return nil, nil
	}
	job, err := m.poller.Run(ctx, midjourneyPayload{
		Model:    "midjourney",
		TaskType: "imagine",
		Input: midjourneyInput{
			Prompt:      BuildEntityPrompt(entity),
			AspectRatio: m.aspectRatio,
			ProcessMode: m.processMode,
		},
	})
	if err != nil {
		return nil, err
	}
	var assets []Asset
	for _, u := range job.ResultURLs {
		if len(assets) >= q.limit() {
			break
		}
		dl, err := m.poller.Fetch(ctx, u)
		if err != nil {
			return assets, err
		}
		asset, err := Verify(dl.Data)
		if err != nil {
			continue
		}
		asset.SourceURL = dl.URL
		assets = append(assets, asset)
	}
	return assets, nil
}

var _ Source = (*Midjourney)(nil)
