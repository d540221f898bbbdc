package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SerpAPIOptions struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	FetchTimeout time.Duration
}

// SerpAPI searches Google Images through serpapi.com.
type SerpAPI struct {
	apiKey   string
	endpoint string
	client   *http.Client
	dl       downloader
}

type serpAPIResponse struct {
	ImagesResults []struct {
		Original  string `json:"original"`
		Thumbnail string `json:"thumbnail"`
	} `json:"images_results"`
	Error string `json:"error"`
}

func NewSerpAPI(opts SerpAPIOptions) (*SerpAPI, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("image: serpapi api key is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://serpapi.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SerpAPI{
		apiKey:   apiKey,
		endpoint: base + "/search.json",
		client:   client,
		dl:       newDownloader(client, opts.FetchTimeout),
	}, nil
}

func (s *SerpAPI) Name() string { return "serpapi" }

func (s *SerpAPI) Fetch(ctx context.Context, q Query) ([]Asset, error) {
	entity := q.entity()
	if entity == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("engine", "google_images")
	params.Set("q", entity)
	params.Set("api_key", s.apiKey)
	params.Set("tbm", "isch")
	params.Set("ijn", "0")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("image: serpapi: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image: serpapi: http request: %w", err)
	}
	defer resp.Body.Close()
	var out serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("image: serpapi: decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image: serpapi: status %d: %s", resp.StatusCode, out.Error)
	}
	results := out.ImagesResults
	if len(results) > q.limit() {
		results = results[:q.limit()]
	}
	candidates := make([]string, 0, len(results))
	for _, r := range results {
		if r.Original != "" {
			candidates = append(candidates, r.Original)
		} else {
			candidates = append(candidates, r.Thumbnail)
		}
	}
	return s.dl.collect(ctx, candidates, q.limit(), true), nil
}

var _ Source = (*SerpAPI)(nil)
