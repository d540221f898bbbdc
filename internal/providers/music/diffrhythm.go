package music

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"omniwizz/internal/infra"
)

const (
	diffRhythmProviderName   = "diffrhythm"
	diffRhythmDefaultTimeout = 120 * time.Second
)

type DiffRhythmOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// DiffRhythm is a synchronous generator: one POST returns the audio body.
// It requires timed lyrics.
type DiffRhythm struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *infra.Logger
}

type diffRhythmRequest struct {
	Prompt string `json:"prompt"`
	Lyrics string `json:"lyrics"`
}

func NewDiffRhythm(opts DiffRhythmOptions) (*DiffRhythm, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("music: diffrhythm api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.diffrhythm.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: diffRhythmDefaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &DiffRhythm{apiKey: apiKey, baseURL: baseURL, client: client, logger: logger}, nil
}

func (d *DiffRhythm) Name() string { return diffRhythmProviderName }

func (d *DiffRhythm) Generate(ctx context.Context, req Request) (*Track, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	body, err := json.Marshal(diffRhythmRequest{Prompt: prompt, Lyrics: req.LRC})
	if err != nil {
		return nil, fmt.Errorf("music: diffrhythm: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("music: diffrhythm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("music: diffrhythm: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("music: diffrhythm: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("music: diffrhythm: status %d: %s", resp.StatusCode, snippet)
	}
	if len(data) == 0 {
		return nil, errors.New("music: diffrhythm: empty audio body")
	}
	d.logger.Debug().
		Str("provider", diffRhythmProviderName).
		Int("bytes", len(data)).
		Msg("music: track generated")
	return &Track{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Provider:    diffRhythmProviderName,
	}, nil
}

var _ Generator = (*DiffRhythm)(nil)
