package batch

import (
	"fmt"

	"github.com/evalkit/warden"
)

type failMode int

const (
	failAlways failMode = iota
	failDisabled
	failProportion
	failCount
)

// FailOnError is the batch failure tolerance: when to abort the whole run
// because too many units failed hard. Limit exits never count; only units
// ending in [warden.StatusError].
//
// The zero value is [Always], the default: abort on the first failure.
type FailOnError struct {
	mode       failMode
	proportion float64
	count      int
}

// Always aborts the batch on the first unit hard failure. This is the
// default.
func Always() FailOnError {
	return FailOnError{mode: failAlways}
}

// Disabled never aborts the batch, however many units fail.
func Disabled() FailOnError {
	return FailOnError{mode: failDisabled}
}

// Proportion aborts once errorCount/plannedTotal exceeds p.
//
// Panics unless 0 < p < 1 (invalid configuration is a programming error).
func Proportion(p float64) FailOnError {
	if p <= 0 || p >= 1 {
		panic(fmt.Sprintf("warden/batch: Proportion requires 0 < p < 1, got %v", p))
	}
	return FailOnError{mode: failProportion, proportion: p}
}

// Count aborts once the error count exceeds c.
//
// Panics if c < 1 (invalid configuration is a programming error).
func Count(c int) FailOnError {
	if c < 1 {
		panic(fmt.Sprintf("warden/batch: Count requires c >= 1, got %d", c))
	}
	return FailOnError{mode: failCount, count: c}
}

// ShouldAbort reports whether the threshold is crossed with errorCount
// hard failures out of planned units. Evaluated by the runner after every
// unit completion; planned is the planned batch size, not the number
// completed so far.
func (f FailOnError) ShouldAbort(errorCount, planned int) bool {
	switch f.mode {
	case failDisabled:
		return false
	case failProportion:
		if planned == 0 {
			return false
		}
		return float64(errorCount)/float64(planned) > f.proportion
	case failCount:
		return errorCount > f.count
	default:
		return errorCount > 0
	}
}

// String describes the threshold for abort reports.
func (f FailOnError) String() string {
	switch f.mode {
	case failDisabled:
		return "disabled"
	case failProportion:
		return fmt.Sprintf("proportion %g", f.proportion)
	case failCount:
		return fmt.Sprintf("count %d", f.count)
	default:
		return "always"
	}
}

// Policy configures a batch run.
type Policy struct {
	// FailOnError is the batch failure tolerance. Zero value aborts on
	// the first unit hard failure.
	FailOnError FailOnError

	// RetryOnError is the per-unit retry budget for hard failures. A unit
	// with budget k executes at most k+1 times. Limit exits and
	// programming errors are never retried. Default 0.
	RetryOnError int

	// MaxConcurrency bounds how many units run in parallel. Values < 1
	// mean 1.
	MaxConcurrency int

	// Limits are opened as sample-scoped guards on each unit's root
	// execution.
	Limits warden.Limits

	// Clock overrides the clock for unit executions. Nil means the system
	// clock.
	Clock warden.Clock
}

func (p Policy) concurrency() int {
	if p.MaxConcurrency < 1 {
		return 1
	}
	return p.MaxConcurrency
}
