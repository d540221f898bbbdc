// Package chords transcribes a reference audio clip into a per-bar chord
// progression used as harmonic context for lyric writing.
package chords

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
)

// Result is a transcribed progression.
type Result struct {
	Key    string   `json:"key"`
	Chords []string `json:"chords"`
}

// Transcriber extracts chords from raw audio.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (*Result, error)
	Name() string
}

// Segment is one chord span reported by the transcription service.
type Segment struct {
	StartBar       *float64 `json:"start_bar"`
	StartBeat      *float64 `json:"start_beat"`
	ChordSimplePop string   `json:"chord_simple_pop"`
}

// Progressions keeps the earliest chord of every bar, ordered by bar.
// Segments without a bar, beat or chord label are skipped.
func Progressions(segments []Segment) []string {
	type pick struct {
		beat  float64
		chord string
	}
	bars := map[float64]pick{}
	for _, seg := range segments {
		if seg.StartBar == nil || seg.StartBeat == nil || seg.ChordSimplePop == "" {
			continue
		}
		cur, ok := bars[*seg.StartBar]
		if !ok || *seg.StartBeat < cur.beat {
			bars[*seg.StartBar] = pick{beat: *seg.StartBeat, chord: seg.ChordSimplePop}
		}
	}
	keys := make([]float64, 0, len(bars))
	for bar := range bars {
		keys = append(keys, bar)
	}
	sort.Float64s(keys)
	out := make([]string, 0, len(keys))
	for _, bar := range keys {
		out = append(out, CleanLabel(bars[bar].chord))
	}
	return out
}

// CleanLabel renders the service's "N" marker as "No chord".
func CleanLabel(chord string) string {
	if chord == "N" {
		return "No chord"
	}
	return chord
}

// ParseSegments decodes the chord document the service links to.
func ParseSegments(raw []byte) ([]Segment, error) {
	var segments []Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// EstimateKey names a key after the root and quality of the first real chord
// of the progression.
func EstimateKey(progression []string) string {
	for _, chord := range progression {
		if chord == "" || chord[0] < 'A' || chord[0] > 'G' {
			continue
		}
		root, rest := chord[:1], chord[1:]
		if strings.HasPrefix(rest, "#") || strings.HasPrefix(rest, "b") {
			root, rest = chord[:2], chord[2:]
		}
		if strings.HasPrefix(rest, "m") && !strings.HasPrefix(rest, "maj") {
			return root + " minor"
		}
		return root + " major"
	}
	return ""
}

// Static returns a fixed progression.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Transcribe(ctx context.Context, audio []byte, contentType string) (*Result, error) {
	progression := []string{"C", "G", "Am", "F"}
	return &Result{Key: EstimateKey(progression), Chords: progression}, nil
}

var _ Transcriber = (*Static)(nil)
