package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

type GoogleOptions struct {
	APIKey       string
	CX           string
	Endpoint     string
	HTTPClient   *http.Client
	FetchTimeout time.Duration
}

// Google queries the Custom Search JSON API in image mode.
type Google struct {
	svc *customsearch.Service
	cx  string
	dl  downloader
}

func NewGoogle(ctx context.Context, opts GoogleOptions) (*Google, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	cx := strings.TrimSpace(opts.CX)
	if apiKey == "" || cx == "" {
		return nil, errors.New("image: google custom search requires api key and cx")
	}
	// WithHTTPClient bypasses option.WithAPIKey, so the key travels as a
	// query parameter on injected clients instead.
	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if opts.HTTPClient != nil {
		clientOpts = []option.ClientOption{option.WithHTTPClient(withAPIKey(opts.HTTPClient, apiKey))}
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("image: create customsearch service: %w", err)
	}
	return &Google{svc: svc, cx: cx, dl: newDownloader(opts.HTTPClient, opts.FetchTimeout)}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) Fetch(ctx context.Context, q Query) ([]Asset, error) {
	entity := q.entity()
	if entity == "" {
		return nil, nil
	}
	num := int64(q.limit() * 3)
	if num > 10 {
		num = 10
	}
	call := g.svc.Cse.List().Cx(g.cx).Q(entity).SearchType("image").Num(num).Context(ctx)
	if q.Language != "" {
		call = call.Hl(string(q.Language))
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("image: google search failed: %w", err)
	}
	candidates := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		candidates = append(candidates, item.Link)
	}
	return g.dl.collect(ctx, candidates, q.limit(), false), nil
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	clone := r.Clone(r.Context())
	q := clone.URL.Query()
	q.Set("key", t.key)
	clone.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(clone)
}

func withAPIKey(client *http.Client, key string) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = apiKeyTransport{key: key, base: base}
	return &wrapped
}

var _ Source = (*Google)(nil)
