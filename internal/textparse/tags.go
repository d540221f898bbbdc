package textparse

import (
	"regexp"
	"strings"
)

var quoteReplacer = strings.NewReplacer(
	"\ufeff", "",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2018", "'",
	"\u2019", "'",
)

// labeledLists are tried in order; bracketed captures come before the
// unbracketed "rest of text" forms so a clean list always wins.
var labeledLists = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\*\*inspirational tags\*\*[:：]\s*\[(.*?)\]`),
	regexp.MustCompile(`(?is)\*\*灵感标签\*\*[:：]\s*\[(.*?)\]`),
	regexp.MustCompile(`(?is)"inspirational tags"\s*:\s*\[(.*?)\]`),
	regexp.MustCompile(`(?is)"灵感标签"\s*:\s*\[(.*?)\]`),
	regexp.MustCompile(`(?is)\*\*inspirational tags\*\*[:：]\s*(.*)`),
	regexp.MustCompile(`(?is)\*\*灵感标签\*\*[:：]\s*(.*)`),
}

var (
	flatBracketSpan = regexp.MustCompile(`\[([^\[\]]+)\]`)
	quotedPhrase    = regexp.MustCompile(`"([^"]+)"`)
)

// ParseTags recovers a phrase list from a tag-style reply. It tries, in order:
// the whole reply as a list literal, a labeled list ("**inspirational tags**:"
// and its localized or JSON forms), then the first flat [...] span anywhere in
// the text. The result may be empty but is never nil.
func ParseTags(output string) []string {
	text := normalizeListText(output)
	if items, ok := parseListLiteral(text); ok {
		if tags := cleanPhrases(items); len(tags) > 0 {
			return tags
		}
	}
	if raw, ok := labeledSpan(text); ok {
		return parseLabeledSpan(raw)
	}
	if m := flatBracketSpan.FindStringSubmatch(text); m != nil {
		return cleanPhrases(strings.Split(m[1], ","))
	}
	return []string{}
}

// ParseEntities parses a visual-entity reply. It shares the ParseTags cascade
// and additionally accepts any double quoted phrases when no list is found.
func ParseEntities(output string) []string {
	if entities := ParseTags(output); len(entities) > 0 {
		return entities
	}
	var found []string
	for _, m := range quotedPhrase.FindAllStringSubmatch(normalizeListText(output), -1) {
		found = append(found, m[1])
	}
	return cleanPhrases(found)
}

func normalizeListText(output string) string {
	return trimCodeFence(quoteReplacer.Replace(strings.TrimSpace(output)))
}

func labeledSpan(text string) (string, bool) {
	for _, re := range labeledLists {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

func parseLabeledSpan(raw string) []string {
	inner := strings.TrimSpace(strings.Trim(raw, "[]"))
	candidate := raw
	if !strings.HasPrefix(raw, "[") {
		candidate = "[" + inner + "]"
	}
	if items, ok := parseListLiteral(candidate); ok {
		if tags := cleanPhrases(items); len(tags) > 0 {
			return tags
		}
	}
	return cleanPhrases(splitTopLevel(inner))
}

// splitTopLevel splits on commas that are not nested inside brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func cleanPhrases(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if clean := cleanPhrase(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func cleanPhrase(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `*"' `))
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
