package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/evalkit/warden"
)

// fakeModel returns a canned response after advancing the clock, standing
// in for a provider round trip.
type fakeModel struct {
	clock    *warden.MockClock
	latency  time.Duration
	response *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if f.clock != nil {
		f.clock.Advance(f.latency)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func responseWithInfo(info map[string]any) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "ok", GenerationInfo: info}},
	}
}

func newMeteredExecution(t *testing.T) (*warden.Execution, *warden.MockClock) {
	t.Helper()
	clock := warden.NewMockClock(time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	exec := warden.NewExecution(context.Background(), "sample", warden.WithClock(clock))
	return exec, clock
}

func TestMetered_SuccessRecordsUsage(t *testing.T) {
	exec, clock := newMeteredExecution(t)
	fake := &fakeModel{
		clock:    clock,
		latency:  3 * time.Second,
		response: responseWithInfo(map[string]any{"TotalTokens": 1200}),
	}
	model := NewMetered(fake)

	resp, err := model.GenerateContent(exec, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Content)

	u := exec.Meter().Snapshot()
	assert.Equal(t, 3*time.Second, u.Elapsed)
	assert.Equal(t, 3*time.Second, u.Working)
	assert.Equal(t, int64(1), u.Messages)
	assert.Equal(t, int64(1200), u.Tokens)
}

func TestMetered_RateLimitedCallIsNotWorkingTime(t *testing.T) {
	exec, clock := newMeteredExecution(t)
	fake := &fakeModel{
		clock:   clock,
		latency: 30 * time.Second,
		err:     errors.New("API returned unexpected status code: 429"),
	}
	model := NewMetered(fake).WithClassifier(RateLimited)

	_, err := model.GenerateContent(exec, nil)
	require.Error(t, err)

	u := exec.Meter().Snapshot()
	assert.Equal(t, 30*time.Second, u.Elapsed, "elapsed time always counts")
	assert.Zero(t, u.Working, "rate-limited waiting is excluded from working time")
	assert.Zero(t, u.Messages)
	assert.Zero(t, u.Tokens)
}

func TestMetered_OtherFailuresCountAsWorking(t *testing.T) {
	exec, clock := newMeteredExecution(t)
	fake := &fakeModel{
		clock:   clock,
		latency: 5 * time.Second,
		err:     errors.New("invalid request"),
	}
	model := NewMetered(fake).WithClassifier(RateLimited)

	_, err := model.GenerateContent(exec, nil)
	require.Error(t, err)

	u := exec.Meter().Snapshot()
	assert.Equal(t, 5*time.Second, u.Working)
	assert.Zero(t, u.Messages, "failed calls do not count as messages")
}

func TestMetered_NoClassifierCountsEverything(t *testing.T) {
	exec, clock := newMeteredExecution(t)
	fake := &fakeModel{
		clock:   clock,
		latency: 10 * time.Second,
		err:     errors.New("429 too many requests"),
	}
	model := NewMetered(fake)

	_, err := model.GenerateContent(exec, nil)
	require.Error(t, err)

	u := exec.Meter().Snapshot()
	assert.Equal(t, 10*time.Second, u.Working,
		"without a classifier every interval counts as working time")
}

func TestMetered_TokenKeyNormalization(t *testing.T) {
	tests := []struct {
		name     string
		info     map[string]any
		expected int64
	}{
		{"openai style", map[string]any{"TotalTokens": 500}, 500},
		{"google style", map[string]any{"total_tokens": 600}, 600},
		{
			"anthropic style",
			map[string]any{"InputTokens": 300, "OutputTokens": 100},
			400,
		},
		{
			"bedrock style",
			map[string]any{"input_tokens": 250, "output_tokens": 50},
			300,
		},
		{
			"prompt and completion",
			map[string]any{"PromptTokens": 120, "CompletionTokens": 80},
			200,
		},
		{"float values", map[string]any{"TotalTokens": float64(700)}, 700},
		{"no usage info", map[string]any{}, 0},
		{"non-numeric values", map[string]any{"TotalTokens": "lots"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, clock := newMeteredExecution(t)
			fake := &fakeModel{clock: clock, response: responseWithInfo(tt.info)}

			_, err := NewMetered(fake).GenerateContent(exec, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, exec.Meter().Snapshot().Tokens)
		})
	}
}

func TestMetered_TrippedGuardCancelsExecution(t *testing.T) {
	exec, clock := newMeteredExecution(t)
	h := exec.OpenGuard(warden.KindToken, warden.Threshold(1000))
	defer h.Close()

	fake := &fakeModel{
		clock:    clock,
		response: responseWithInfo(map[string]any{"TotalTokens": 2000}),
	}

	_, err := NewMetered(fake).GenerateContent(exec, nil)
	require.NoError(t, err, "the call itself succeeded")

	assert.True(t, h.Tripped())
	require.Error(t, exec.Check())
	select {
	case <-exec.Context().Done():
	default:
		t.Fatal("tripped token guard should cancel the execution")
	}
}

func TestRateLimited(t *testing.T) {
	assert.False(t, RateLimited(nil))
	assert.False(t, RateLimited(errors.New("connection refused")))
	assert.True(t, RateLimited(errors.New("status 429")))
	assert.True(t, RateLimited(errors.New("Rate limit exceeded")))
	assert.True(t, RateLimited(errors.New("error code rate_limit_error")))
}
