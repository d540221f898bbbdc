package chords

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
	"omniwizz/internal/jobpoll"
)

const musicAIProviderName = "musicai"

type MusicAIOptions struct {
	APIKey      string
	BaseURL     string
	Workflow    string
	MaxAttempts int
	Interval    time.Duration
	HTTPClient  *http.Client
	Logger      *infra.Logger
}

// MusicAI uploads audio to signed storage, starts a chord transcription
// workflow and polls the job until it succeeds or fails.
type MusicAI struct {
	apiKey   string
	baseURL  string
	workflow string
	client   *http.Client
	poller   *jobpoll.Poller
	logger   *infra.Logger
}

type signedURLs struct {
	UploadURL   string `json:"uploadUrl"`
	DownloadURL string `json:"downloadUrl"`
}

type musicAIJob struct {
	Workflow string            `json:"workflow"`
	Params   map[string]string `json:"params"`
	Name     string            `json:"name"`
}

func NewMusicAI(opts MusicAIOptions) (*MusicAI, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("chords: music.ai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.music.ai/v1"
	}
	workflow := strings.TrimSpace(opts.Workflow)
	if workflow == "" {
		workflow = "chord-transcriber"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	poller := jobpoll.New(jobpoll.Options{
		Name:        musicAIProviderName,
		SubmitURL:   baseURL + "/job",
		AuthHeader:  "Authorization",
		AuthValue:   apiKey,
		TaskID:      []jobpoll.Extractor{jobpoll.Field("id")},
		Status:      []jobpoll.Extractor{jobpoll.Field("status")},
		Result:      []jobpoll.Extractor{jobpoll.Field("result", "chords")},
		Message:     []jobpoll.Extractor{jobpoll.Field("error", "message"), jobpoll.Field("error")},
		MapStatus:   mapMusicAIStatus,
		MaxAttempts: opts.MaxAttempts,
		Interval:    opts.Interval,
		HTTPClient:  client,
		Logger:      logger,
	})
	return &MusicAI{
		apiKey:   apiKey,
		baseURL:  baseURL,
		workflow: workflow,
		client:   client,
		poller:   poller,
		logger:   logger,
	}, nil
}

func (m *MusicAI) Name() string { return musicAIProviderName }

// Transcribe returns an empty progression when the job succeeds without a
// chords document.
func (m *MusicAI) Transcribe(ctx context.Context, audio []byte, contentType string) (*Result, error) {
	if len(audio) == 0 {
		return nil, errors.New("chords: audio is empty")
	}
	urls, err := m.signedURLs(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.upload(ctx, urls.UploadURL, audio, contentType); err != nil {
		return nil, err
	}
	job, err := m.poller.Run(ctx, musicAIJob{
		Workflow: m.workflow,
		Params:   map[string]string{"inputUrl": urls.DownloadURL},
		Name:     "omniwizz-chords",
	})
	if errors.Is(err, jobpoll.ErrResultMissing) {
		return &Result{Chords: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	dl, err := m.poller.Fetch(ctx, job.ResultURLs[0])
	if err != nil {
		return nil, err
	}
	segments, err := ParseSegments(dl.Data)
	if err != nil {
		return nil, fmt.Errorf("chords: decode chord document: %w", err)
	}
	progression := Progressions(segments)
	m.logger.Debug().
		Str("provider", musicAIProviderName).
		Str("task_id", job.TaskID).
		Int("bars", len(progression)).
		Msg("chords: transcribed")
	return &Result{Key: EstimateKey(progression), Chords: progression}, nil
}

func (m *MusicAI) signedURLs(ctx context.Context) (*signedURLs, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/upload", nil)
	if err != nil {
		return nil, fmt.Errorf("chords: build upload url request: %w", err)
	}
	req.Header.Set("Authorization", m.apiKey)
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chords: request upload url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chords: upload url status %d", resp.StatusCode)
	}
	var out signedURLs
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("chords: decode upload urls: %w", err)
	}
	if out.UploadURL == "" || out.DownloadURL == "" {
		return nil, errors.New("chords: upload urls missing")
	}
	return &out, nil
}

func (m *MusicAI) upload(ctx context.Context, uploadURL string, audio []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(audio))
	if err != nil {
		return fmt.Errorf("chords: build upload request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("chords: upload audio: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chords: upload status %d", resp.StatusCode)
	}
	return nil
}

func mapMusicAIStatus(raw string) jobpoll.Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCEEDED":
		return jobpoll.StatusCompleted
	case "FAILED":
		return jobpoll.StatusFailed
	default:
		return jobpoll.StatusPending
	}
}

var _ Transcriber = (*MusicAI)(nil)
