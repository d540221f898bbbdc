package eventlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const batchSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type"],
    "additionalProperties": false,
    "properties": {
      "type": {
        "type": "string",
        "minLength": 1,
        "maxLength": 64,
        "pattern": "^[A-Za-z0-9_.:-]+$"
      },
      "payload": {
        "type": ["object", "null"]
      }
    }
  }
}`

var compiledBatchSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(batchSchema))
})

// ValidationError lists every schema violation found in a batch.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violation at a JSON field path.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("eventlog: invalid batch:")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf(" %d. %s: %s;", i+1, err.Field, err.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// DecodeBatch validates body against the batch schema and decodes it.
// maxEntries <= 0 disables the size check.
func DecodeBatch(body []byte, maxEntries int) ([]Entry, error) {
	schema, err := compiledBatchSchema()
	if err != nil {
		return nil, fmt.Errorf("eventlog: load schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	if !result.Valid() {
		ve := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
		}
		return nil, ve
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("eventlog: decode batch: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}
	if maxEntries > 0 && len(entries) > maxEntries {
		return nil, fmt.Errorf("%w: %d entries, max %d", ErrBatchTooLarge, len(entries), maxEntries)
	}
	return entries, nil
}
