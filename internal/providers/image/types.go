package image

import (
	"context"
	"strings"

	"omniwizz/internal/domain"
)

// Query asks a source for images illustrating one entity phrase.
type Query struct {
	Entity   string
	Limit    int
	Language domain.Language
}

// Asset is a downloaded and verified image.
type Asset struct {
	Data      []byte
	Format    string
	Width     int
	Height    int
	SourceURL string
}

// Ext returns the file extension matching the decoded format.
func (a Asset) Ext() string {
	if a.Format == "jpeg" {
		return "jpg"
	}
	return a.Format
}

// Source is the contract implemented by every image search or generation
// backend. An empty result with a nil error means nothing usable was found.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]Asset, error)
	Name() string
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return 1
	}
	return q.Limit
}

func (q Query) entity() string {
	return strings.TrimSpace(q.Entity)
}
