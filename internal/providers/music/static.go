package music

import (
	"context"

	"omniwizz/internal/fixtures"
)

// Static returns the embedded stand-in clip for every request.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Generate(ctx context.Context, req Request) (*Track, error) {
	return &Track{Data: fixtures.Audio(), ContentType: "audio/wav", Provider: "static"}, nil
}

var _ Generator = (*Static)(nil)
