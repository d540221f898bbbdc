package textparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	timestampToken = regexp.MustCompile(`\[\d{2}:\d{2}\.\d{2}\]`)
	bracketRun     = regexp.MustCompile(`[\[\]]+`)
)

// LyricLine is one timed line of an LRC document.
type LyricLine struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

func (l LyricLine) String() string {
	return l.Timestamp + l.Text
}

// ParseLRC pairs every [MM:SS.xx] token with the text that follows it up to
// the next token. Text before the first token is ignored and segments that are
// empty once brackets and whitespace are removed are dropped. Timestamp values
// are not range checked.
func ParseLRC(raw string) []LyricLine {
	locs := timestampToken.FindAllStringIndex(raw, -1)
	lines := make([]LyricLine, 0, len(locs))
	for i, loc := range locs {
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		text := cleanLyricText(raw[loc[1]:end])
		if text == "" {
			continue
		}
		lines = append(lines, LyricLine{Timestamp: raw[loc[0]:loc[1]], Text: text})
	}
	return lines
}

// NormalizeLRC renders ParseLRC output as newline separated "[MM:SS.xx]text"
// lines. Applying it to its own output returns the same string.
func NormalizeLRC(raw string) string {
	lines := ParseLRC(raw)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return strings.Join(out, "\n")
}

func cleanLyricText(segment string) string {
	segment = bracketRun.ReplaceAllString(segment, "")
	var parts []string
	for _, line := range strings.Split(segment, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// HasTimestamps reports whether raw carries at least one LRC timestamp token.
func HasTimestamps(raw string) bool {
	return timestampToken.MatchString(raw)
}

// Pacing used for plain lyrics when the caller has no better estimate.
const (
	DefaultLyricStart = 10 * time.Second
	DefaultLyricStep  = 5 * time.Second
)

// AlignLyrics stamps plain lyric lines at a fixed pace starting at start.
// Lyrics that already contain timestamps are returned unchanged.
func AlignLyrics(raw string, start, step time.Duration) string {
	if HasTimestamps(raw) {
		return raw
	}
	var b strings.Builder
	at := start
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FormatTimestamp(at))
		b.WriteString(line)
		at += step
	}
	return b.String()
}

// FormatTimestamp renders d as an LRC token. Minutes wrap at 100.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	centis := int64(d / (10 * time.Millisecond))
	minutes := (centis / 6000) % 100
	seconds := (centis / 100) % 60
	return fmt.Sprintf("[%02d:%02d.%02d]", minutes, seconds, centis%100)
}
