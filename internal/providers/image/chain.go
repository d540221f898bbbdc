package image

import (
	"context"
	"errors"
	"strings"
)

// Chain asks each source in turn and returns the first non-empty result.
// Errors are collected and only reported when no source produced images.
type Chain struct {
	sources []Source
}

func NewChain(sources ...Source) *Chain {
	var kept []Source
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Chain{sources: kept}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Fetch(ctx context.Context, q Query) ([]Asset, error) {
	var errs []error
	for _, s := range c.sources {
		assets, err := s.Fetch(ctx, q)
		if len(assets) > 0 {
			return assets, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

var _ Source = (*Chain)(nil)
