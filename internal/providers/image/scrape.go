package image

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type ScrapeOptions struct {
	SearchURL    string
	HTTPClient   *http.Client
	FetchTimeout time.Duration
}

// Scrape reads img tags from an image search results page. It needs no
// credentials and is the last live source to try.
type Scrape struct {
	searchURL string
	client    *http.Client
	dl        downloader
}

func NewScrape(opts ScrapeOptions) *Scrape {
	searchURL := strings.TrimSpace(opts.SearchURL)
	if searchURL == "" {
		searchURL = "https://www.google.com/search?tbm=isch&q="
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	dl := newDownloader(client, opts.FetchTimeout)
	dl.userAgent = browserUserAgent
	return &Scrape{searchURL: searchURL, client: client, dl: dl}
}

func (s *Scrape) Name() string { return "scrape" }

func (s *Scrape) Fetch(ctx context.Context, q Query) ([]Asset, error) {
	entity := q.entity()
	if entity == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL+url.QueryEscape(entity), nil)
	if err != nil {
		return nil, fmt.Errorf("image: scrape: build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image: scrape: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image: scrape: status %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image: scrape: parse html: %w", err)
	}
	var candidates []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("data-iurl")
		if !ok || src == "" {
			src, _ = sel.Attr("src")
		}
		if src = strings.TrimSpace(src); src != "" {
			candidates = append(candidates, resolveRef(resp.Request.URL, src))
		}
	})
	return s.dl.collect(ctx, candidates, q.limit(), true), nil
}

func resolveRef(base *url.URL, ref string) string {
	if strings.HasPrefix(ref, "data:") || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

var _ Source = (*Scrape)(nil)
