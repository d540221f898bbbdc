package jobpoll

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Extractor pulls zero or more string values out of a decoded JSON document.
type Extractor func(doc any) []string

// Field resolves a single path of object keys (string) and array indexes
// (int). Scalars at the end of the path are returned as one value; arrays of
// scalars are flattened.
func Field(path ...any) Extractor {
	return func(doc any) []string {
		v, ok := lookup(doc, path)
		if !ok {
			return nil
		}
		return scalars(v)
	}
}

// Each walks listPath to an array and resolves itemPath on every element,
// keeping element order and skipping elements where the path is absent.
func Each(listPath []any, itemPath ...any) Extractor {
	return func(doc any) []string {
		v, ok := lookup(doc, listPath)
		if !ok {
			return nil
		}
		items, ok := v.([]any)
		if !ok {
			return nil
		}
		var out []string
		for _, item := range items {
			if leaf, ok := lookup(item, itemPath); ok {
				out = append(out, scalars(leaf)...)
			}
		}
		return out
	}
}

// first returns the first non-empty value produced by extractors, in order.
func first(extractors []Extractor, doc any) string {
	for _, ex := range extractors {
		for _, v := range ex(doc) {
			if v != "" {
				return v
			}
		}
	}
	return ""
}

// collect returns the values of the first extractor that yields anything.
func collect(extractors []Extractor, doc any) []string {
	for _, ex := range extractors {
		var out []string
		for _, v := range ex(doc) {
			if v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func lookup(doc any, path []any) (any, bool) {
	cur := doc
	for _, step := range path {
		switch key := step.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			next, ok := obj[key]
			if !ok || next == nil {
				return nil, false
			}
			cur = next
		case int:
			arr, ok := cur.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return nil, false
			}
			cur = arr[key]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

func scalars(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case json.Number:
		return []string{t.String()}
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(t)}
	case []any:
		var out []string
		for _, item := range t {
			switch item.(type) {
			case []any, map[string]any:
				continue
			}
			out = append(out, scalars(item)...)
		}
		return out
	}
	return nil
}
