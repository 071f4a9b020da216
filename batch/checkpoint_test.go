package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_StepCachesResult(t *testing.T) {
	cp := NewCheckpoint()
	calls := 0

	run := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := Step(cp, "fetch", run)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	// A second invocation, as on a retried attempt, returns the stored
	// result without re-running the step.
	v, err = Step(cp, "fetch", run)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestCheckpoint_FailedStepStaysIncomplete(t *testing.T) {
	cp := NewCheckpoint()
	boom := errors.New("boom")
	calls := 0

	_, err := Step(cp, "flaky", func() (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, cp.Completed("flaky"))

	v, err := Step(cp, "flaky", func() (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.True(t, cp.Completed("flaky"))
}

func TestCheckpoint_LastTracksCompletionOrder(t *testing.T) {
	cp := NewCheckpoint()
	assert.Equal(t, "", cp.Last())

	cp.Complete("setup", nil)
	cp.Complete("fetch", "data")
	assert.Equal(t, "fetch", cp.Last())

	// Re-completing an earlier step does not reorder.
	cp.Complete("setup", nil)
	assert.Equal(t, "fetch", cp.Last())

	v, ok := cp.Result("fetch")
	require.True(t, ok)
	assert.Equal(t, "data", v)
}
