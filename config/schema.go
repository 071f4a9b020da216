package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// configSchema is the JSON Schema every configuration document must
// satisfy before decoding.
var configSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"fail_on_error": map[string]any{
			"oneOf": []any{
				map[string]any{"type": "boolean"},
				map[string]any{
					"type":             "number",
					"exclusiveMinimum": 0,
					"exclusiveMaximum": 1,
				},
				map[string]any{"type": "integer", "minimum": 1},
			},
		},
		"retry_on_error":  map[string]any{"type": "integer", "minimum": 0},
		"max_concurrency": map[string]any{"type": "integer", "minimum": 1},
		"limits": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"time_limit":    map[string]any{"type": "number", "exclusiveMinimum": 0},
				"working_limit": map[string]any{"type": "number", "exclusiveMinimum": 0},
				"message_limit": map[string]any{"type": "integer", "minimum": 1},
				"token_limit":   map[string]any{"type": "integer", "minimum": 1},
			},
		},
	},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// compiled compiles the embedded schema once.
func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := json.Marshal(configSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal config schema: %w", err)
			return
		}
		schemaData, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
		if err != nil {
			compileErr = fmt.Errorf("parse config schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("config.json", schemaData); err != nil {
			compileErr = fmt.Errorf("add config schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("config.json")
	})
	return compiledSchema, compileErr
}

// ValidationError wraps a schema validation failure with a cleaner
// message. Configuration errors are never retried; fix the document.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// validate checks a decoded YAML document against the schema.
func validate(doc any) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	if err := s.Validate(normalize(doc)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// normalize converts YAML-decoded values into the shapes the JSON Schema
// validator expects (string-keyed maps, json-compatible scalars).
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
