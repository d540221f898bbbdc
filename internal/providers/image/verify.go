package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	maxImageBytes       = 20 << 20
	defaultFetchTimeout = 10 * time.Second
	browserUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0 Safari/537.36"
)

var allowedFormats = map[string]bool{"jpeg": true, "png": true, "gif": true}

var allowedExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true}

// ErrUnsupportedImage is returned for bytes that do not decode as an allowed
// image format.
var ErrUnsupportedImage = errors.New("image: unsupported or corrupt image")

// Verify decodes the image header and reports its format and size. Only
// jpeg, png and gif are accepted.
func Verify(data []byte) (Asset, error) {
	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if !allowedFormats[format] {
		return Asset{}, fmt.Errorf("%w: format %s", ErrUnsupportedImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Asset{}, fmt.Errorf("%w: empty dimensions", ErrUnsupportedImage)
	}
	return Asset{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// urlExt returns the lower-cased extension of the URL path, ignoring the query.
func urlExt(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
}

// hasAllowedExt filters candidate URLs before downloading them.
func hasAllowedExt(raw string) bool {
	return allowedExts[urlExt(raw)]
}

// downloader fetches candidate URLs and keeps the ones that verify.
type downloader struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

func newDownloader(client *http.Client, timeout time.Duration) downloader {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return downloader{client: client, timeout: timeout}
}

func (d downloader) download(ctx context.Context, rawURL string) (Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Asset{}, err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Asset{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Asset{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Asset{}, err
	}
	asset, err := Verify(data)
	if err != nil {
		return Asset{}, err
	}
	asset.SourceURL = rawURL
	return asset, nil
}

// collect downloads candidates in order until limit assets verify. Candidates
// with a disallowed extension or that fail to download are skipped.
func (d downloader) collect(ctx context.Context, candidates []string, limit int, checkExt bool) []Asset {
	var out []Asset
	for _, c := range candidates {
		if len(out) >= limit || ctx.Err() != nil {
			break
		}
		if c == "" || strings.HasPrefix(c, "data:") {
			continue
		}
		if checkExt && !hasAllowedExt(c) {
			continue
		}
		asset, err := d.download(ctx, c)
		if err != nil {
			continue
		}
		out = append(out, asset)
	}
	return out
}
