package textparse

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLRCCanonicalInput(t *testing.T) {
	in := "[00:10.00]Hello\n[00:15.00]World"
	assert.Equal(t, in, NormalizeLRC(in))
}

func TestNormalizeLRCDropsEmptySegments(t *testing.T) {
	in := "[00:01.00]  [ ] \n[00:02.50]first\n[00:03.00]\n[00:04.00]second"
	assert.Equal(t, "[00:02.50]first\n[00:04.00]second", NormalizeLRC(in))
}

func TestNormalizeLRCInlineTokensAndBrackets(t *testing.T) {
	in := "intro ignored [00:05.00][Verse] rain falls [00:07.20]street lights]]"
	assert.Equal(t, "[00:05.00]Verse rain falls\n[00:07.20]street lights", NormalizeLRC(in))
}

func TestNormalizeLRCKeepsOutOfRangeTimestamps(t *testing.T) {
	assert.Equal(t, "[99:99.99]still here", NormalizeLRC("[99:99.99] still here"))
}

func TestNormalizeLRCFoldsWrappedText(t *testing.T) {
	assert.Equal(t, "[00:01.00]one two", NormalizeLRC("[00:01.00]one\n\n  two\n"))
}

func TestNormalizeLRCWithoutTimestamps(t *testing.T) {
	assert.Equal(t, "", NormalizeLRC("plain lyrics\nwithout timing"))
}

func TestNormalizeLRCIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"[00:10.00]Hello\n[00:15.00]World",
		"junk [00:01.00] a [b] c [00:02.00][00:03.00]d\n\ne",
		"[00:01.00][[00:02.00]]x",
		"[12:34.56]tail   ",
	}
	for _, in := range inputs {
		once := NormalizeLRC(in)
		assert.Equal(t, once, NormalizeLRC(once), "input %q", in)
	}
}

func TestParseLRCLineShape(t *testing.T) {
	shape := regexp.MustCompile(`^\[\d{2}:\d{2}\.\d{2}\]\S`)
	lines := ParseLRC("[00:01.00]a\n[00:02.00] b [00:03.00]   \n[00:04.00]c")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Regexp(t, shape, l.String())
	}
	assert.Equal(t, LyricLine{Timestamp: "[00:02.00]", Text: "b"}, lines[1])
}

func TestAlignLyrics(t *testing.T) {
	got := AlignLyrics("Waves gently\n\n  Sunrise colors \nMountains", 10*time.Second, 5*time.Second)
	assert.Equal(t, "[00:10.00]Waves gently\n[00:15.00]Sunrise colors\n[00:20.00]Mountains", got)

	timed := "[00:01.00]kept"
	assert.Equal(t, timed, AlignLyrics(timed, 0, time.Second))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "[00:00.00]", FormatTimestamp(-time.Second))
	assert.Equal(t, "[01:05.25]", FormatTimestamp(65*time.Second+250*time.Millisecond))
}
