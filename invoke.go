package warden

// Mode describes how a sub-execution was invoked, which determines what a
// LimitError raised inside it does to the enclosing execution. The mode is
// a tag carried alongside the call frame, not long-lived state.
type Mode string

const (
	// ModeContinuation marks a sub-execution exposed to a controlling
	// model as a callable capability while the outer execution keeps
	// running. A LimitError is converted into a textual result handed back
	// to the controller; no error crosses the sub-execution boundary and
	// the outer execution continues.
	ModeContinuation Mode = "continuation"

	// ModeDelegation marks a sub-execution that fully stands in for the
	// outer execution's remaining work. A LimitError terminates the outer
	// execution immediately, skipping remaining logic but still running
	// scoring and finalization, exactly like a unit-level limit.
	ModeDelegation Mode = "delegation"

	// ModeDirect marks a sub-execution invoked and awaited directly by
	// orchestration code with no framework interception. A LimitError is
	// returned as an ordinary error; the immediate caller may inspect it
	// with [AsLimitError] and handle it, or let it propagate and terminate
	// the enclosing execution when it reaches [Execution.Finish].
	ModeDirect Mode = "direct"
)

// InvokeResult is the outcome of a sub-execution run through
// [Execution.Invoke].
type InvokeResult struct {
	// Output is fn's result when it completed without tripping a limit.
	Output string

	// LimitMessage is set in continuation mode when a limit tripped: the
	// violation rendered as text for the controlling model. Empty
	// otherwise.
	LimitMessage string

	// Violation is the LimitError that ended the sub-execution, if any.
	Violation *LimitError

	// Sub is the sub-execution's handle, for usage snapshots and status.
	Sub *Execution
}

// Invoke runs fn as a sub-execution with the given invocation mode and
// routes any LimitError per the mode. This is the single path by which
// limit violations cross sub-execution boundaries; they are never
// swallowed elsewhere.
//
// fn receives the sub-execution handle; guards it opens (directly or via
// sub.WithGuard) bound only its own work, while usage it records still
// charges the enclosing scopes' guards. If an enclosing guard trips during
// fn, the violation is routed here too; in continuation mode the converted
// message is returned but the enclosing execution is already canceled, so
// the outer loop terminates at its next [Execution.Check].
//
// Errors that are not LimitErrors propagate unchanged in every mode.
func (x *Execution) Invoke(mode Mode, name string, fn func(sub *Execution) (string, error)) (*InvokeResult, error) {
	switch mode {
	case ModeContinuation, ModeDelegation, ModeDirect:
	default:
		panic("warden: Invoke called with unknown mode " + string(mode))
	}

	sub := x.Subexecution(name)
	out, err := fn(sub)

	v := AsLimitError(err)
	if v == nil {
		// fn may have unwound with a bare context error after a trip.
		if err != nil {
			v = sub.Violation()
		}
		if v == nil {
			for e := x; e != nil && err != nil; e = e.parent {
				if v = e.Violation(); v != nil {
					break
				}
			}
		}
	}

	if v == nil {
		sub.Finish(err)
		if err != nil {
			return nil, err
		}
		return &InvokeResult{Output: out, Sub: sub}, nil
	}

	sub.Finish(v)
	res := &InvokeResult{Violation: v, Sub: sub}
	switch mode {
	case ModeContinuation:
		res.LimitMessage = v.Message()
		return res, nil
	case ModeDelegation:
		x.terminate(v)
		return res, v
	default: // ModeDirect
		return res, v
	}
}
