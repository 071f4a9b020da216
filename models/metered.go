// Package models integrates langchaingo model calls with warden's usage
// metering: token accounting from responses, and the working-time versus
// waiting-time classification of each call.
package models

import (
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/evalkit/warden"
)

// RateLimited is a best-effort classifier that recognizes rate-limit
// errors by their status text. Providers that surface structured errors
// should use a classifier built on those instead.
func RateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit")
}

// Metered wraps an llms.Model and reports each call's usage to an
// execution's meter.
//
// Per call it records:
//   - elapsed time, always;
//   - working time, only when the call succeeded, or failed with an error
//     the classifier does not mark as rate-limited;
//   - one message and the response's token counts, on success.
//
// Token usage keys are normalized across providers (OpenAI, Anthropic,
// Google, Bedrock and compatibles report under different GenerationInfo
// keys).
//
// Example:
//
//	llm, _ := openai.New(openai.WithToken(apiKey))
//	model := models.NewMetered(llm).WithClassifier(models.RateLimited)
//
//	resp, err := model.GenerateContent(exec, messages)
type Metered struct {
	model llms.Model

	// classify reports whether an error came from a rate-limited request.
	// Nil means degraded-accuracy mode: failed calls still count as
	// working time because the provider gives no way to tell.
	classify func(error) bool
}

// NewMetered creates a Metered wrapper around model.
func NewMetered(model llms.Model) *Metered {
	return &Metered{model: model}
}

// WithClassifier sets the rate-limit classifier. The HTTP instrumentation
// that produces the classification lives with the model transport; only
// its verdict is consumed here. Returns the model for chaining.
func (m *Metered) WithClassifier(classify func(error) bool) *Metered {
	m.classify = classify
	return m
}

// Unwrap returns the underlying llms.Model.
func (m *Metered) Unwrap() llms.Model {
	return m.model
}

// GenerateContent calls the underlying model using the execution's
// context and records the call's usage on the execution's meter. A guard
// tripped by the recorded usage cancels the execution; callers observe it
// through exec.Check or the context.
func (m *Metered) GenerateContent(
	exec *warden.Execution,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	meter := exec.Meter()
	start := exec.Clock().Now()
	response, err := m.model.GenerateContent(exec.Context(), messages, options...)
	elapsed := exec.Clock().Since(start)

	meter.RecordElapsed(elapsed)
	if m.productive(err) {
		meter.RecordWorking(elapsed)
	}
	if err != nil {
		return response, err
	}

	meter.RecordMessage()
	if tokens := totalTokens(response); tokens > 0 {
		meter.RecordTokens(tokens)
	}
	return response, nil
}

// productive reports whether the interval counts as working time.
func (m *Metered) productive(err error) bool {
	if err == nil {
		return true
	}
	if m.classify == nil {
		// No classification available for this provider: degrade to
		// counting everything rather than silently undercounting.
		return true
	}
	return !m.classify(err)
}

// totalTokens extracts the total token count from the first choice's
// GenerationInfo, handling the key names used by different providers.
func totalTokens(response *llms.ContentResponse) int64 {
	if response == nil || len(response.Choices) == 0 {
		return 0
	}
	info := response.Choices[0].GenerationInfo
	if info == nil {
		return 0
	}
	// OpenAI / Ollama / Maritaca / Google (compat)
	if v := intFromMap(info, "TotalTokens"); v > 0 {
		return v
	}
	// Google / Bedrock
	if v := intFromMap(info, "total_tokens"); v > 0 {
		return v
	}
	input := intFromMap(info, "PromptTokens") + intFromMap(info, "InputTokens") +
		intFromMap(info, "input_tokens")
	output := intFromMap(info, "CompletionTokens") + intFromMap(info, "OutputTokens") +
		intFromMap(info, "output_tokens")
	return input + output
}

// intFromMap extracts an integer value from a map, handling the numeric
// types providers actually send.
func intFromMap(m map[string]any, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	default:
		return 0
	}
}
