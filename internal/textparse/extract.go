// Package textparse turns loosely formatted model output into structured
// creative data: a music prompt and lyrics, timed LRC lines, and short phrase
// lists used as tags or image search entities. Every function here is lenient
// and never returns an error; callers decide what an empty result means.
package textparse

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"omniwizz/internal/domain"
)

// Creative is the prompt/lyrics pair pulled from a lyrics-style model reply.
type Creative struct {
	Prompt string `json:"prompt"`
	Lyrics string `json:"lyrics"`
}

// strategy returns the captured group of the first match, if any.
type strategy func(output string) (string, bool)

func pattern(expr string) strategy {
	re := regexp.MustCompile(`(?is)` + expr)
	return func(output string) (string, bool) {
		m := re.FindStringSubmatch(output)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

type headerSet struct {
	prompt []strategy
	lyrics []strategy
}

var headerSets = map[domain.Language]headerSet{
	domain.LanguageEnglish: {
		prompt: []strategy{
			pattern(`\*\*Music(?:al)? Prompt:\*\*\s*(.*?)(?:\n{2,}|\*\*Lyrics)`),
			pattern(`\*\*Music(?:al)? Prompt\*\*[:：]?\s*(.*?)(?:\n{2,}|\*\*Lyrics)`),
			pattern(`Music(?:al)? Prompt[:：]?\s*(.*?)(?:\n{2,}|Lyrics)`),
		},
		lyrics: []strategy{
			pattern(`\*\*Lyrics[:：]\*\*\s*(.+)`),
			pattern(`\*\*Lyrics\*\*[:：]?\s*(.+)`),
			pattern(`Lyrics[:：]?\s*(.+)`),
		},
	},
	domain.LanguageChinese: {
		prompt: []strategy{
			pattern(`\*\*音乐风格[:：]\*\*\s*(.*?)(?:\n{2,}|\*\*歌词)`),
			pattern(`\*\*音乐风格\*\*[:：]?\s*(.*?)(?:\n{2,}|\*\*歌词)`),
			pattern(`音乐风格[:：]?\s*(.*?)(?:\n{2,}|歌词)`),
		},
		lyrics: []strategy{
			pattern(`\*\*歌词[:：]\*\*\s*(.+)`),
			pattern(`\*\*歌词\*\*[:：]?\s*(.+)`),
			pattern(`歌词[:：]?\s*(.+)`),
		},
	},
}

var emphasisRun = regexp.MustCompile(`\*{1,3}`)

// ExtractCreative splits a lyrics-style reply into its prompt and lyrics.
// Header patterns for lang are tried first, then those of the other language.
// Prompt and lyrics are located independently. When no prompt header matches,
// the first non-empty line stands in for the prompt.
func ExtractCreative(output string, lang domain.Language) Creative {
	if _, ok := headerSets[lang]; !ok {
		lang = domain.LanguageEnglish
	}
	primary, secondary := headerSets[lang], headerSets[lang.Alternate()]
	promptStrategies := append(append([]strategy{}, primary.prompt...), secondary.prompt...)
	lyricsStrategies := append(append([]strategy{}, primary.lyrics...), secondary.lyrics...)

	var out Creative
	if raw, ok := firstMatch(promptStrategies, output); ok {
		out.Prompt = stripEmphasis(raw)
	}
	if raw, ok := firstMatch(lyricsStrategies, output); ok {
		out.Lyrics = strings.TrimSpace(raw)
	}
	if out.Prompt == "" {
		out.Prompt = fallbackPrompt(output)
	}
	return out
}

func firstMatch(strategies []strategy, output string) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(output); ok {
			return v, true
		}
	}
	return "", false
}

func stripEmphasis(s string) string {
	return strings.TrimSpace(emphasisRun.ReplaceAllString(s, ""))
}

// fallbackPrompt uses the first non-empty line with any "label:" prefix and
// leading bullet or emphasis characters removed.
func fallbackPrompt(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.IndexAny(line, ":："); idx >= 0 {
			_, size := utf8.DecodeRuneInString(line[idx:])
			line = line[idx+size:]
		}
		line = strings.TrimLeft(strings.TrimSpace(line), "*- ")
		return stripEmphasis(line)
	}
	return ""
}
