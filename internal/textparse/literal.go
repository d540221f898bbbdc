package textparse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parseListLiteral decodes s as a list of scalars, accepting either a JSON
// array or a bracketed list literal with single or double quoted strings. Numbers
// are kept in their textual form. Anything else (bare words, nested objects,
// trailing text) rejects the whole input.
func parseListLiteral(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	var decoded []any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		out := make([]string, 0, len(decoded))
		for _, item := range decoded {
			switch v := item.(type) {
			case string:
				out = append(out, v)
			case float64:
				out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			case bool:
				out = append(out, strconv.FormatBool(v))
			default:
				return nil, false
			}
		}
		return out, true
	}
	sc := &literalScanner{src: []rune(s)}
	items, err := sc.list()
	if err != nil {
		return nil, false
	}
	return items, true
}

type literalScanner struct {
	src []rune
	pos int
}

func (s *literalScanner) list() ([]string, error) {
	if !s.consume('[') {
		return nil, fmt.Errorf("expected '['")
	}
	var items []string
	for {
		s.skipSpace()
		if s.consume(']') {
			break
		}
		item, err := s.item()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		s.skipSpace()
		if s.consume(',') {
			continue
		}
		if s.consume(']') {
			break
		}
		return nil, fmt.Errorf("expected ',' or ']' at %d", s.pos)
	}
	s.skipSpace()
	if s.pos != len(s.src) {
		return nil, fmt.Errorf("trailing input at %d", s.pos)
	}
	return items, nil
}

func (s *literalScanner) item() (string, error) {
	if s.pos >= len(s.src) {
		return "", fmt.Errorf("unexpected end of input")
	}
	switch quote := s.src[s.pos]; quote {
	case '"', '\'':
		return s.quoted(quote)
	default:
		return s.number()
	}
}

func (s *literalScanner) quoted(quote rune) (string, error) {
	s.pos++
	var b strings.Builder
	for s.pos < len(s.src) {
		r := s.src[s.pos]
		s.pos++
		switch {
		case r == quote:
			return b.String(), nil
		case r == '\\' && s.pos < len(s.src):
			esc := s.src[s.pos]
			s.pos++
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(esc)
			}
		case r == '\n':
			return "", fmt.Errorf("unterminated string")
		default:
			b.WriteRune(r)
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (s *literalScanner) number() (string, error) {
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != ',' && s.src[s.pos] != ']' {
		s.pos++
	}
	token := strings.TrimSpace(string(s.src[start:s.pos]))
	if _, err := strconv.ParseFloat(token, 64); err != nil {
		return "", fmt.Errorf("unsupported literal %q", token)
	}
	return token, nil
}

func (s *literalScanner) consume(r rune) bool {
	if s.pos < len(s.src) && s.src[s.pos] == r {
		s.pos++
		return true
	}
	return false
}

func (s *literalScanner) skipSpace() {
	for s.pos < len(s.src) && unicode.IsSpace(s.src[s.pos]) {
		s.pos++
	}
}
