package textparse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"omniwizz/internal/domain"
)

func TestExtractCreativeWellFormedBlock(t *testing.T) {
	output := "**Music Prompt:** Calm piano, soft ambient pads  \n\n**Lyrics:**\nWaves gently touch the shore\nSunrise colors fill the air\n"

	got := ExtractCreative(output, domain.LanguageEnglish)

	assert.Equal(t, "Calm piano, soft ambient pads", got.Prompt)
	assert.Equal(t, "Waves gently touch the shore\nSunrise colors fill the air", got.Lyrics)
}

func TestExtractCreativeHeaderVariants(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		lang       domain.Language
		wantPrompt string
		wantLyrics string
	}{
		{
			name:       "bold header colon outside",
			output:     "**Musical Prompt**: dark synthwave, 90 bpm\n\n**Lyrics**:\nneon rain",
			lang:       domain.LanguageEnglish,
			wantPrompt: "dark synthwave, 90 bpm",
			wantLyrics: "neon rain",
		},
		{
			name:       "plain headers",
			output:     "Music Prompt: lo-fi beats, vinyl crackle\nLyrics: coffee on the sill",
			lang:       domain.LanguageEnglish,
			wantPrompt: "lo-fi beats, vinyl crackle",
			wantLyrics: "coffee on the sill",
		},
		{
			name:       "case insensitive",
			output:     "**MUSIC PROMPT:** ambient drone\n\n**LYRICS:**\nhum",
			lang:       domain.LanguageEnglish,
			wantPrompt: "ambient drone",
			wantLyrics: "hum",
		},
		{
			name:       "chinese headers",
			output:     "**音乐风格：**\n伤感氛围电子，慢节奏\n\n**歌词：**\n雨滴敲打窗前的寂静\n街灯映出你的背影",
			lang:       domain.LanguageChinese,
			wantPrompt: "伤感氛围电子，慢节奏",
			wantLyrics: "雨滴敲打窗前的寂静\n街灯映出你的背影",
		},
		{
			name:       "alternate language headers still found",
			output:     "**音乐风格**：钢琴伴奏\n\n**歌词**：街灯",
			lang:       domain.LanguageEnglish,
			wantPrompt: "钢琴伴奏",
			wantLyrics: "街灯",
		},
		{
			name:       "emphasis inside prompt removed",
			output:     "**Music Prompt:** ***Epic*** orchestra\n\n**Lyrics:**\nthunder",
			lang:       domain.LanguageEnglish,
			wantPrompt: "Epic orchestra",
			wantLyrics: "thunder",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCreative(tt.output, tt.lang)
			assert.Equal(t, tt.wantPrompt, got.Prompt)
			assert.Equal(t, tt.wantLyrics, got.Lyrics)
		})
	}
}

func TestExtractCreativeFallbackPrompt(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{name: "label stripped", output: "\n\n  Style: warm jazz trio\nsecond line", want: "warm jazz trio"},
		{name: "bullet stripped", output: "- **bright ukulele pop**\nmore", want: "bright ukulele pop"},
		{name: "full width colon", output: "风格：古筝与雨声", want: "古筝与雨声"},
		{name: "plain line", output: "just a sentence", want: "just a sentence"},
		{name: "empty", output: "   \n  ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCreative(tt.output, domain.LanguageEnglish)
			assert.Equal(t, tt.want, got.Prompt)
			assert.Empty(t, got.Lyrics)
		})
	}
}

func TestExtractCreativeLyricsIndependentOfPrompt(t *testing.T) {
	got := ExtractCreative("intro text\n**Lyrics:**\nonly lyrics here", domain.LanguageEnglish)

	assert.Equal(t, "intro text", got.Prompt)
	assert.Equal(t, "only lyrics here", got.Lyrics)
}

func TestExtractCreativeUnknownLanguageDefaultsToEnglish(t *testing.T) {
	got := ExtractCreative("**Music Prompt:** harp\n\n**Lyrics:**\nla", domain.Language("fr"))

	assert.Equal(t, "harp", got.Prompt)
	assert.Equal(t, "la", got.Lyrics)
}
