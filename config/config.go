// Package config loads batch and limit configuration from YAML,
// validating the document against a JSON Schema before decoding so that
// invalid configuration fails fast with a precise error instead of
// surfacing mid-run.
//
// Example document:
//
//	fail_on_error: 0.1      # true | false | proportion in (0,1) | count >= 1
//	retry_on_error: 2
//	max_concurrency: 8
//	limits:
//	  time_limit: 600       # seconds
//	  working_limit: 300    # seconds
//	  message_limit: 30
//	  token_limit: 100000
package config

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/evalkit/warden"
	"github.com/evalkit/warden/batch"
)

// Config is the decoded configuration surface exposed to orchestration
// and CLI collaborators.
type Config struct {
	// FailOnError is the batch failure tolerance. Defaults to aborting on
	// the first unit hard failure when absent.
	FailOnError FailOnError `yaml:"fail_on_error"`

	// RetryOnError is the per-unit retry budget. Default 0.
	RetryOnError int `yaml:"retry_on_error"`

	// MaxConcurrency bounds parallel units. Default 1.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Limits are the sample-scoped bounds applied to every unit.
	Limits LimitsConfig `yaml:"limits"`
}

// LimitsConfig holds the optional per-unit bounds. Time values are in
// seconds.
type LimitsConfig struct {
	TimeLimit    *float64 `yaml:"time_limit"`
	WorkingLimit *float64 `yaml:"working_limit"`
	MessageLimit *int64   `yaml:"message_limit"`
	TokenLimit   *int64   `yaml:"token_limit"`
}

// FailOnError decodes the polymorphic fail_on_error field: a boolean
// (true = abort on first failure, false = never abort), a proportion in
// (0,1), or a count >= 1. Whole-valued floats like 1.0 are counts, the
// same way the schema reads them.
type FailOnError struct {
	value batch.FailOnError
	set   bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FailOnError) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		if x {
			f.value = batch.Always()
		} else {
			f.value = batch.Disabled()
		}
	case int:
		if x < 1 {
			return fmt.Errorf("fail_on_error count must be >= 1, got %d", x)
		}
		f.value = batch.Count(x)
	case float64:
		// Whole-valued floats are counts: YAML "1.0" and "1" both mean
		// Count(1), matching the schema's integer branch.
		if x == math.Trunc(x) && x >= 1 {
			f.value = batch.Count(int(x))
			break
		}
		if x <= 0 || x >= 1 {
			return fmt.Errorf("fail_on_error proportion must be in (0,1), got %v", x)
		}
		f.value = batch.Proportion(x)
	default:
		return fmt.Errorf("fail_on_error must be a boolean, proportion, or count, got %T", v)
	}
	f.set = true
	return nil
}

// Value returns the decoded tolerance, or the default (abort on first
// failure) when the field was absent.
func (f FailOnError) Value() batch.FailOnError {
	if !f.set {
		return batch.Always()
	}
	return f.value
}

// Load parses and validates a YAML configuration document.
func Load(data []byte) (*Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Limits converts the configured bounds into guard thresholds.
func (l LimitsConfig) Limits() warden.Limits {
	lim := warden.Limits{
		Time:    l.TimeLimit,
		Working: l.WorkingLimit,
	}
	if l.MessageLimit != nil {
		lim.Message = warden.Threshold(float64(*l.MessageLimit))
	}
	if l.TokenLimit != nil {
		lim.Token = warden.Threshold(float64(*l.TokenLimit))
	}
	return lim
}

// Policy converts the configuration into a batch policy.
func (c *Config) Policy() batch.Policy {
	return batch.Policy{
		FailOnError:    c.FailOnError.Value(),
		RetryOnError:   c.RetryOnError,
		MaxConcurrency: c.MaxConcurrency,
		Limits:         c.Limits.Limits(),
	}
}
