// Package music turns a style prompt and lyrics into an audio track using a
// hosted text-to-music service.
package music

import (
	"context"
	"errors"

	"omniwizz/internal/domain"
)

// ErrEmptyPrompt is returned when a request has no style prompt.
var ErrEmptyPrompt = errors.New("music: prompt is required")

// Request carries the generation inputs. Lyrics is the plain text as written
// by the model; LRC is the normalized timed form of the same lyrics.
type Request struct {
	Prompt   string
	Lyrics   string
	LRC      string
	Language domain.Language
}

// Track is generated audio plus where it came from.
type Track struct {
	Data        []byte
	ContentType string
	SourceURL   string
	TaskID      string
	Provider    string
}

// Generator produces a track for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Track, error)
	Name() string
}
