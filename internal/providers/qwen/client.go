package qwen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	"omniwizz/internal/infra"
	"omniwizz/internal/jobpoll"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

// Options configures the DashScope Qwen client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	DefaultSize    string
	PromptExtend   bool
	Watermark      bool
	MaxAttempts    int
	Interval       time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client submits DashScope asynchronous text-to-image tasks and polls them.
type Client struct {
	apiKey       string
	model        string
	defaultSize  string
	promptExtend bool
	watermark    bool
	poller       *jobpoll.Poller
	logger       *infra.Logger
}

// ImageRequest captures the required inputs for image generation.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Size           string
	Seed           int
	Count          int
}

// ImageAsset is the normalized result from the Qwen API.
type ImageAsset struct {
	URL    string
	Data   []byte
	Format string
	Width  int
	Height int
}

type synthesisRequest struct {
	Model      string          `json:"model"`
	Input      synthesisInput  `json:"input"`
	Parameters synthesisParams `json:"parameters"`
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type synthesisParams struct {
	Size         string `json:"size,omitempty"`
	N            int    `json:"n,omitempty"`
	PromptExtend *bool  `json:"prompt_extend,omitempty"`
	Watermark    *bool  `json:"watermark,omitempty"`
	Seed         *int   `json:"seed,omitempty"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "qwen-image"
	}
	defaultSize := strings.TrimSpace(opts.DefaultSize)
	if defaultSize == "" {
		defaultSize = "1328*1328"
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	poller := jobpoll.New(jobpoll.Options{
		Name:       "qwen",
		SubmitURL:  baseURL + "/services/aigc/text2image/image-synthesis",
		StatusURL:  func(taskID string) string { return baseURL + "/tasks/" + taskID },
		AuthHeader: "Authorization",
		AuthValue:  "Bearer " + apiKey,
		ExtraHeaders: map[string]string{
			"X-DashScope-Async": "enable",
		},
		TaskID:         []jobpoll.Extractor{jobpoll.Field("output", "task_id")},
		Status:         []jobpoll.Extractor{jobpoll.Field("output", "task_status")},
		Result:         []jobpoll.Extractor{jobpoll.Each([]any{"output", "results"}, "url")},
		Message:        []jobpoll.Extractor{jobpoll.Field("output", "message"), jobpoll.Field("message")},
		MapStatus:      mapTaskStatus,
		MaxAttempts:    opts.MaxAttempts,
		Interval:       opts.Interval,
		RequestTimeout: timeout,
		HTTPClient:     opts.HTTPClient,
		Logger:         opts.Logger,
	})
	return &Client{
		apiKey:       apiKey,
		model:        model,
		defaultSize:  defaultSize,
		promptExtend: opts.PromptExtend,
		watermark:    opts.Watermark,
		poller:       poller,
		logger:       opts.Logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImages runs one synthesis task and downloads every image it yields.
func (c *Client) GenerateImages(ctx context.Context, req ImageRequest) ([]ImageAsset, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("qwen: prompt is required")
	}
	payload := synthesisRequest{
		Model: c.model,
		Input: synthesisInput{
			Prompt:         prompt,
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		},
	}
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = c.defaultSize
	}
	payload.Parameters.Size = size
	payload.Parameters.N = req.Count
	if payload.Parameters.N <= 0 {
		payload.Parameters.N = 1
	}
	if extend := c.promptExtend; extend {
		payload.Parameters.PromptExtend = &extend
	}
	if req.Seed > 0 {
		payload.Parameters.Seed = &req.Seed
	}
	watermark := c.watermark
	payload.Parameters.Watermark = &watermark

	job, err := c.poller.Run(ctx, payload)
	if err != nil {
		return nil, err
	}
	assets := make([]ImageAsset, 0, len(job.ResultURLs))
	for _, u := range job.ResultURLs {
		dl, err := c.poller.Fetch(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("qwen: download image: %w", err)
		}
		asset := ImageAsset{URL: dl.URL, Data: dl.Data, Format: dl.ContentType}
		if cfg, format, err := image.DecodeConfig(bytes.NewReader(dl.Data)); err == nil {
			asset.Width, asset.Height = cfg.Width, cfg.Height
			asset.Format = "image/" + format
		}
		if asset.Format == "" {
			asset.Format = "image/png"
		}
		assets = append(assets, asset)
	}
	if c.logger != nil {
		c.logger.Debug().
			Str("model", c.model).
			Str("task_id", job.TaskID).
			Int("images", len(assets)).
			Msg("qwen: generated image assets")
	}
	return assets, nil
}

func mapTaskStatus(raw string) jobpoll.Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCEEDED":
		return jobpoll.StatusCompleted
	case "FAILED":
		return jobpoll.StatusFailed
	case "CANCELED", "UNKNOWN":
		return jobpoll.StatusError
	default:
		return jobpoll.StatusPending
	}
}
