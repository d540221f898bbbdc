// Package jobpoll drives remote long-running generation jobs: submit a task,
// poll its status at a fixed interval until a terminal state, then download
// the produced asset. Response shapes differ per provider, so every field the
// poller reads is located through an ordered list of extractors.
package jobpoll

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"omniwizz/internal/infra"
)

const (
	defaultMaxAttempts    = 75
	defaultInterval       = 5 * time.Second
	defaultRequestTimeout = 60 * time.Second
	defaultFetchTimeout   = 120 * time.Second
	maxDocumentBytes      = 8 << 20
	maxAssetBytes         = 256 << 20
)

// Status is the normalized state of a remote job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
	StatusUnknown   Status = "unknown"
)

// IsTerminal reports whether polling should stop at s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	default:
		return false
	}
}

// Job is the client-side view of one remote task.
type Job struct {
	TaskID     string   `json:"task_id"`
	Status     Status   `json:"status"`
	RawStatus  string   `json:"raw_status,omitempty"`
	ResultURLs []string `json:"result_urls,omitempty"`
	Message    string   `json:"message,omitempty"`
	Attempts   int      `json:"attempts"`
}

// Download is a fetched result asset.
type Download struct {
	URL         string
	Data        []byte
	ContentType string
}

// Options configures a Poller. Zero values fall back to the PiAPI task API
// conventions.
type Options struct {
	Name           string
	SubmitURL      string
	StatusURL      func(taskID string) string
	AuthHeader     string
	AuthValue      string
	ExtraHeaders   map[string]string
	TaskID         []Extractor
	Status         []Extractor
	Result         []Extractor
	Message        []Extractor
	MapStatus      func(raw string) Status
	MaxAttempts    int
	Interval       time.Duration
	RequestTimeout time.Duration
	FetchTimeout   time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Poller submits and tracks remote jobs for one provider.
type Poller struct {
	name           string
	submitURL      string
	statusURL      func(string) string
	headers        http.Header
	taskID         []Extractor
	status         []Extractor
	result         []Extractor
	message        []Extractor
	mapStatus      func(string) Status
	maxAttempts    int
	interval       time.Duration
	requestTimeout time.Duration
	fetchTimeout   time.Duration
	httpClient     *http.Client
	logger         *infra.Logger
}

// DefaultTaskID reads data.task_id, then task_id.
func DefaultTaskID() []Extractor {
	return []Extractor{Field("data", "task_id"), Field("task_id")}
}

// DefaultStatus reads data.status, then status.
func DefaultStatus() []Extractor {
	return []Extractor{Field("data", "status"), Field("status")}
}

// DefaultMessage reads the error message fields PiAPI uses.
func DefaultMessage() []Extractor {
	return []Extractor{
		Field("data", "error", "message"),
		Field("error", "message"),
		Field("message"),
	}
}

// DefaultResult covers the audio result shapes of the PiAPI task API, nested
// under data first and at the top level second.
func DefaultResult() []Extractor {
	return []Extractor{
		Each([]any{"data", "output", "songs"}, "song_path"),
		Field("data", "output", "audio_url"),
		Field("data", "outputs", 0, "url"),
		Field("data", "works", 0, "resource", "resource"),
		Each([]any{"output", "songs"}, "song_path"),
		Field("output", "audio_url"),
		Field("outputs", 0, "url"),
		Field("works", 0, "resource", "resource"),
	}
}

// MapStatus is the default status mapping. Unrecognized values are treated
// as non-terminal.
func MapStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "succeeded", "success":
		return StatusCompleted
	case "failed", "failure":
		return StatusFailed
	case "error":
		return StatusError
	case "", "pending", "queued", "staged", "processing", "running", "starting", "submitted":
		return StatusPending
	default:
		return StatusUnknown
	}
}

// New constructs a Poller with defaults applied.
func New(opts Options) *Poller {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "jobpoll"
	}
	submitURL := strings.TrimRight(strings.TrimSpace(opts.SubmitURL), "/")
	statusURL := opts.StatusURL
	if statusURL == nil {
		statusURL = func(taskID string) string {
			return submitURL + "/" + url.PathEscape(taskID)
		}
	}
	headers := http.Header{}
	if opts.AuthHeader != "" && opts.AuthValue != "" {
		headers.Set(opts.AuthHeader, opts.AuthValue)
	}
	for k, v := range opts.ExtraHeaders {
		headers.Set(k, v)
	}
	p := &Poller{
		name:           name,
		submitURL:      submitURL,
		statusURL:      statusURL,
		headers:        headers,
		taskID:         opts.TaskID,
		status:         opts.Status,
		result:         opts.Result,
		message:        opts.Message,
		mapStatus:      opts.MapStatus,
		maxAttempts:    opts.MaxAttempts,
		interval:       opts.Interval,
		requestTimeout: opts.RequestTimeout,
		fetchTimeout:   opts.FetchTimeout,
		httpClient:     opts.HTTPClient,
		logger:         opts.Logger,
	}
	if len(p.taskID) == 0 {
		p.taskID = DefaultTaskID()
	}
	if len(p.status) == 0 {
		p.status = DefaultStatus()
	}
	if len(p.result) == 0 {
		p.result = DefaultResult()
	}
	if len(p.message) == 0 {
		p.message = DefaultMessage()
	}
	if p.mapStatus == nil {
		p.mapStatus = MapStatus
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if p.interval <= 0 {
		p.interval = defaultInterval
	}
	if p.requestTimeout <= 0 {
		p.requestTimeout = defaultRequestTimeout
	}
	if p.fetchTimeout <= 0 {
		p.fetchTimeout = defaultFetchTimeout
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{}
	}
	if p.logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		p.logger = &l
	}
	return p
}

// Name returns the provider label used in errors and logs.
func (p *Poller) Name() string {
	return p.name
}

// Submit posts payload as JSON and returns the pending job. A response without
// a task id yields ErrMissingTaskID and no job is tracked.
func (p *Poller) Submit(ctx context.Context, payload any) (Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("%s: encode submit payload: %w", p.name, err)
	}
	doc, err := p.doJSON(ctx, http.MethodPost, p.submitURL, body, "submit")
	if err != nil {
		return Job{}, err
	}
	taskID := first(p.taskID, doc)
	if taskID == "" {
		return Job{}, fmt.Errorf("%s: %w", p.name, ErrMissingTaskID)
	}
	p.logger.Debug().
		Str("provider", p.name).
		Str("task_id", taskID).
		Msg("jobpoll: task submitted")
	return Job{TaskID: taskID, Status: StatusPending}, nil
}

// Await polls the status endpoint up to the configured number of attempts,
// sleeping the fixed interval between attempts but not after the last one.
// Transport errors end polling immediately.
func (p *Poller) Await(ctx context.Context, taskID string) (Job, error) {
	job := Job{TaskID: taskID, Status: StatusPending}
	started := time.Now()
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		doc, err := p.doJSON(ctx, http.MethodGet, p.statusURL(taskID), nil, "poll")
		if err != nil {
			return job, err
		}
		job.Attempts = attempt
		job.RawStatus = first(p.status, doc)
		job.Status = p.mapStatus(job.RawStatus)
		job.Message = first(p.message, doc)

		p.logger.Debug().
			Str("provider", p.name).
			Str("task_id", taskID).
			Int("attempt", attempt).
			Str("status", job.RawStatus).
			Msg("jobpoll: status polled")

		switch job.Status {
		case StatusCompleted:
			urls := collect(p.result, doc)
			if len(urls) == 0 {
				return job, fmt.Errorf("%s: task %s: %w", p.name, taskID, ErrResultMissing)
			}
			job.ResultURLs = urls
			return job, nil
		case StatusFailed, StatusError:
			return job, &JobFailedError{Provider: p.name, TaskID: taskID, Status: job.RawStatus, Message: job.Message}
		}

		if attempt < p.maxAttempts {
			if err := sleep(ctx, p.interval); err != nil {
				return job, fmt.Errorf("%s: task %s: %w", p.name, taskID, err)
			}
		}
	}
	return job, &TimeoutError{
		Provider:   p.name,
		TaskID:     taskID,
		Attempts:   p.maxAttempts,
		Waited:     time.Since(started),
		LastStatus: job.RawStatus,
	}
}

// Run submits payload and waits for the job to finish.
func (p *Poller) Run(ctx context.Context, payload any) (Job, error) {
	job, err := p.Submit(ctx, payload)
	if err != nil {
		return job, err
	}
	return p.Await(ctx, job.TaskID)
}

// Generate runs a job to completion and downloads its first result.
func (p *Poller) Generate(ctx context.Context, payload any) (Job, *Download, error) {
	job, err := p.Run(ctx, payload)
	if err != nil {
		return job, nil, err
	}
	dl, err := p.Fetch(ctx, job.ResultURLs[0])
	if err != nil {
		return job, nil, err
	}
	return job, dl, nil
}

// Fetch downloads a result URL with its own timeout. Result URLs are usually
// pre-signed, so no credentials are attached.
func (p *Poller) Fetch(ctx context.Context, resultURL string) (*Download, error) {
	parsed, err := url.Parse(strings.TrimSpace(resultURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%s: invalid result url: %q", p.name, resultURL)
	}
	ctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build fetch request: %w", p.name, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: p.name, Op: "fetch", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{Provider: p.name, Op: "fetch", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, &TransportError{Provider: p.name, Op: "fetch", Err: err}
	}
	return &Download{URL: parsed.String(), Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (p *Poller) doJSON(ctx context.Context, method, endpoint string, body []byte, op string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build %s request: %w", p.name, op, err)
	}
	for k, vals := range p.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: p.name, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, &TransportError{Provider: p.name, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Provider: p.name, Op: op, StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(raw)), 512)}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode %s response: %w", p.name, op, err)
	}
	return doc, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
