package image

import (
	"context"

	"omniwizz/internal/fixtures"
)

// Static serves the embedded placeholder images, rotating through them by
// entity so a run gets varied results.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Fetch(ctx context.Context, q Query) ([]Asset, error) {
	placeholders := fixtures.Images()
	if len(placeholders) == 0 {
		return nil, nil
	}
	offset := 0
	for _, r := range q.Entity {
		offset += int(r)
	}
	var out []Asset
	for i := 0; i < q.limit(); i++ {
		p := placeholders[(offset+i)%len(placeholders)]
		asset, err := Verify(p.Data)
		if err != nil {
			return nil, err
		}
		asset.SourceURL = "fixture://" + p.Name
		out = append(out, asset)
	}
	return out, nil
}

var _ Source = (*Static)(nil)
