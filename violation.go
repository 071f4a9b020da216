package warden

import (
	"errors"
	"fmt"
)

// LimitError is the signal raised when a guard trips. It is a control
// signal, not a fault: it is never retried, and it must always be routed
// through [Execution.Invoke] or inspected explicitly, never silently
// swallowed.
//
// One LimitError is constructed per tripped guard. When sibling
// sub-executions race past a threshold, only one of them observes the
// construction; the others observe the owning execution's cancellation.
type LimitError struct {
	// Kind is the usage kind of the guard that tripped.
	Kind Kind

	// Value is the guard's accumulated usage at trip time.
	Value float64

	// Limit is the guard's threshold.
	Limit float64

	// Scope is the name of the execution that opened the guard.
	Scope string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit exceeded in %q: %s > %s",
		e.Kind, e.Scope, formatValue(e.Kind, e.Value), formatValue(e.Kind, e.Limit))
}

// Message returns a human-readable description suitable for handing back
// to a controlling model in continuation mode.
func (e *LimitError) Message() string {
	return fmt.Sprintf("Stopped: the %s limit of %s was reached (used %s).",
		e.Kind, formatValue(e.Kind, e.Limit), formatValue(e.Kind, e.Value))
}

func formatValue(kind Kind, v float64) string {
	switch kind {
	case KindTime, KindWorkingTime:
		return fmt.Sprintf("%.1fs", v)
	default:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	}
}

// AsLimitError returns the LimitError in err's chain, or nil if there is
// none. Callers in direct mode use this to distinguish a tripped limit
// from a hard failure:
//
//	_, err := exec.Invoke(warden.ModeDirect, "subagent", run)
//	if lim := warden.AsLimitError(err); lim != nil {
//	    if lim.Kind == warden.KindMessage {
//	        // handle, or return err to propagate
//	    }
//	}
func AsLimitError(err error) *LimitError {
	var le *LimitError
	if errors.As(err, &le) {
		return le
	}
	return nil
}
