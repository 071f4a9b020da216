package batch

import (
	"fmt"

	"github.com/evalkit/warden"
)

// Record is the per-unit result of a batch run.
type Record struct {
	// UnitID identifies the unit.
	UnitID string

	// Attempts is how many times the unit executed (1 without retries).
	Attempts int

	// ErrorHistory holds the errors of failed prior attempts, oldest
	// first: always exactly Attempts-1 entries. The final attempt's
	// error, if any, is in Err, not here.
	ErrorHistory []string

	// Status is the final status of the last attempt.
	Status warden.FinalStatus

	// Err is the last attempt's error, nil on success.
	Err error

	// Violation is set when Status is StatusLimitExit.
	Violation *warden.LimitError

	// Usage is the last attempt's usage snapshot.
	Usage warden.Usage
}

// Scored reports whether the unit's result participates in scoring. Units
// ending in a hard error are excluded; limit exits are scored normally.
func (r Record) Scored() bool {
	return r.Status == warden.StatusSuccess || r.Status == warden.StatusLimitExit
}

// Outcome aggregates the records of one batch run.
type Outcome struct {
	// Planned is the planned batch size.
	Planned int

	// Records holds one entry per unit that started, in completion order.
	Records []Record

	// Aborted reports whether the failure threshold was crossed.
	Aborted bool

	// AbortReason describes the triggering threshold and the observed
	// count or proportion. Empty unless Aborted.
	AbortReason string
}

// ErrorCount returns the number of units that ended in a hard failure.
func (o *Outcome) ErrorCount() int {
	n := 0
	for _, r := range o.Records {
		if r.Status == warden.StatusError {
			n++
		}
	}
	return n
}

// Completed returns the number of units with a record.
func (o *Outcome) Completed() int {
	return len(o.Records)
}

func abortReason(f FailOnError, errorCount, planned int) string {
	return fmt.Sprintf("fail_on_error (%s): %d of %d units failed",
		f, errorCount, planned)
}
