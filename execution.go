package warden

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Execution is the explicit handle for one node of an execution tree: a
// sample at the root, or a nested agent, tool, or code-block scope below
// it. It carries the usage meter, the guard stack, and the cancellation
// signal, and is threaded through every operation that needs usage or
// limit awareness. There is no ambient or process-global limit state.
//
// # Lifecycle
//
//	exec := warden.NewExecution(ctx, "sample-42")
//	defer exec.Finish(err)
//
//	release := exec.ApplyLimits(warden.Limits{Message: warden.Threshold(30)})
//	defer release()
//
//	// ... run the unit, recording usage via exec.Meter() ...
//
// # Guards and Cancellation
//
// When a guard opened on this execution trips, the execution's context is
// canceled. Cancellation is cooperative: in-flight operations observe it
// at their next suspension point and unwind, releasing open guards via the
// mandatory release discipline. [Execution.Check] converts a recorded
// violation into the LimitError the unwinding code should return.
//
// # Concurrency
//
// Sibling sub-executions may record usage and open guards concurrently.
// Each execution's own guard frames are LIFO; frames of concurrent
// siblings live on the siblings' own executions, so the LIFO invariant is
// per scope, exactly as guards are tagged.
type Execution struct {
	name   string
	depth  int
	parent *Execution
	clock  Clock

	ctx    context.Context
	cancel context.CancelFunc

	meter *UsageMeter

	mu        sync.Mutex
	children  []*Execution
	frames    []*guardFrame
	violation *LimitError
	status    FinalStatus
	err       error
	start     time.Time
	end       time.Time

	// Prior-attempt errors, set by the batch runner when re-executing a
	// unit. Persisted alongside the unit's final snapshot.
	errorHistory []string

	onViolation func(*Execution, *LimitError)
}

type guardFrame struct {
	guard  *Guard
	handle *GuardHandle
}

// Option configures a new root Execution.
type Option func(*Execution)

// WithClock sets the clock used for start/end timestamps and stopwatches.
// Defaults to the system clock.
func WithClock(c Clock) Option {
	return func(x *Execution) {
		if c != nil {
			x.clock = c
		}
	}
}

// WithViolationObserver registers a callback invoked once per tripped
// guard, on the goroutine that caused the trip. The batch runner uses this
// to fan violations out to hooks; violations are never silently swallowed.
func WithViolationObserver(fn func(*Execution, *LimitError)) Option {
	return func(x *Execution) {
		x.onViolation = fn
	}
}

// NewExecution creates a root Execution for one unit. The returned
// execution's context is derived from ctx and is canceled when a guard
// trips or when the execution finishes.
func NewExecution(ctx context.Context, name string, opts ...Option) *Execution {
	x := &Execution{
		name:   name,
		clock:  NewDefaultClock(),
		status: StatusRunning,
	}
	for _, opt := range opts {
		opt(x)
	}
	x.ctx, x.cancel = context.WithCancel(ctx)
	x.meter = newUsageMeter(x)
	x.start = x.clock.Now()
	return x
}

// Subexecution spawns a child scope. Usage recorded by the child
// propagates to this execution's meter and charges this execution's open
// guards; guards opened by the child bound only work inside it.
func (x *Execution) Subexecution(name string) *Execution {
	child := &Execution{
		name:        name,
		depth:       x.depth + 1,
		parent:      x,
		clock:       x.clock,
		status:      StatusRunning,
		onViolation: x.onViolation,
	}
	child.ctx, child.cancel = context.WithCancel(x.ctx)
	child.meter = newUsageMeter(child)
	child.start = child.clock.Now()

	x.mu.Lock()
	x.children = append(x.children, child)
	x.mu.Unlock()
	return child
}

// Name returns the execution's name.
func (x *Execution) Name() string {
	return x.name
}

// Depth returns the nesting depth (0 for the root).
func (x *Execution) Depth() int {
	return x.depth
}

// Parent returns the parent execution, or nil at the root.
func (x *Execution) Parent() *Execution {
	return x.parent
}

// Context returns the execution's context. Pass it to every blocking
// operation; it is canceled when a guard trips or the execution finishes.
func (x *Execution) Context() context.Context {
	return x.ctx
}

// Meter returns the execution's usage meter.
func (x *Execution) Meter() *UsageMeter {
	return x.meter
}

// Clock returns the execution's clock.
func (x *Execution) Clock() Clock {
	return x.clock
}

// -----------------------------------------------------------------------------
// Guard Stack
// -----------------------------------------------------------------------------

// OpenGuard pushes a guard of the given kind onto this execution's stack
// and returns its handle. threshold nil opens a disabled guard that
// suppresses outer guards of the same kind (see [Guard]).
//
// Every OpenGuard must be paired with exactly one GuardHandle.Close on
// every exit path, including error and panic exits. Use
// [Execution.WithGuard] unless you have a reason to manage the handle.
func (x *Execution) OpenGuard(kind Kind, threshold *float64) *GuardHandle {
	if threshold != nil && *threshold < 0 {
		panic("warden: OpenGuard called with negative threshold")
	}
	g := &Guard{kind: kind, threshold: threshold, scope: x.name}
	h := &GuardHandle{guard: g, owner: x}

	x.mu.Lock()
	x.frames = append(x.frames, &guardFrame{guard: g, handle: h})
	x.mu.Unlock()
	return h
}

// closeGuard pops h from the stack, verifying LIFO order.
func (x *Execution) closeGuard(h *GuardHandle) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if h.closed {
		panic("warden: guard closed twice")
	}
	if len(x.frames) == 0 || x.frames[len(x.frames)-1].handle != h {
		panic("warden: guard closed out of LIFO order")
	}
	h.closed = true
	x.frames = x.frames[:len(x.frames)-1]
}

// WithGuard runs fn with a guard of the given kind open, guaranteeing the
// guard is released on every exit path, including panics. This is the
// scoped entry point for bounding arbitrary code blocks:
//
//	err := exec.WithGuard(warden.KindToken, warden.Threshold(50000), func() error {
//	    return runSubtask(exec)
//	})
//
// A LimitError returned by fn (or recorded on exec by a trip inside fn)
// passes through unchanged; route it with [Execution.Invoke] or inspect it
// with [AsLimitError].
func (x *Execution) WithGuard(kind Kind, threshold *float64, fn func() error) error {
	h := x.OpenGuard(kind, threshold)
	defer h.Close()
	return fn()
}

// charge walks the guard stacks from this execution outward to the root,
// applying delta to every guard the stacking rules select.
func (x *Execution) charge(kind Kind, delta float64) {
	for e := x; e != nil; e = e.parent {
		if !e.chargeOwnFrames(kind, delta) {
			return
		}
	}
}

// chargeOwnFrames charges this execution's frames innermost-first and
// reports whether the walk should continue to the parent scope.
func (e *Execution) chargeOwnFrames(kind Kind, delta float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fired *LimitError
	cont := true
	for i := len(e.frames) - 1; i >= 0; i-- {
		g := e.frames[i].guard
		if g.kind != kind {
			continue
		}
		if g.threshold == nil {
			// Disabled guard: outer guards of this kind are suspended.
			cont = false
			break
		}
		g.used += delta
		// Message guards trip when the count reaches the limit; other
		// kinds trip only past it.
		over := g.used > *g.threshold
		if kind == KindMessage {
			over = g.used >= *g.threshold
		}
		if over && !g.tripped {
			g.tripped = true
			v := &LimitError{Kind: kind, Value: g.used, Limit: *g.threshold, Scope: g.scope}
			if e.violation == nil {
				e.violation = v
			}
			fired = v
		}
		if kind == KindMessage {
			// Only the innermost non-disabled message guard is evaluated.
			cont = false
			break
		}
	}

	if fired != nil {
		e.cancel()
		if e.onViolation != nil {
			// Release the lock for the observer; it may touch the execution.
			e.mu.Unlock()
			e.onViolation(e, fired)
			e.mu.Lock()
		}
	}
	return cont
}

// -----------------------------------------------------------------------------
// Violations and Termination
// -----------------------------------------------------------------------------

// Violation returns the first LimitError recorded on this execution, or
// nil if no guard owned by it has tripped.
func (x *Execution) Violation() *LimitError {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.violation
}

// Check returns nil while the execution may proceed. Once a guard owned by
// this execution or an ancestor trips, Check returns the LimitError; once
// the context is canceled for any other reason, it returns the context
// error. Call it at suspension points:
//
//	for {
//	    if err := exec.Check(); err != nil {
//	        return err
//	    }
//	    // ... next step ...
//	}
func (x *Execution) Check() error {
	for e := x; e != nil; e = e.parent {
		if v := e.Violation(); v != nil {
			return v
		}
	}
	if err := x.ctx.Err(); err != nil {
		return err
	}
	return nil
}

// terminate records a violation raised by a delegation-mode sub-execution
// and cancels this execution, mirroring a trip of its own guard.
func (x *Execution) terminate(v *LimitError) {
	x.mu.Lock()
	if x.violation == nil {
		x.violation = v
	}
	x.mu.Unlock()
	x.cancel()
}

// Finish classifies err, records the final status, and cancels any
// outstanding sub-executions. Call exactly once when the unit's work is
// done; scoring and finalization run after Finish regardless of status.
func (x *Execution) Finish(err error) {
	x.mu.Lock()
	if x.status != StatusRunning {
		x.mu.Unlock()
		panic("warden: Finish called twice")
	}
	v := x.violation
	status := StatusSuccess
	switch {
	case v != nil || AsLimitError(err) != nil:
		status = StatusLimitExit
		if v == nil {
			x.violation = AsLimitError(err)
		}
	case err != nil && errors.Is(err, context.Canceled):
		status = StatusCanceled
	case err != nil:
		status = StatusError
	}
	x.status = status
	x.err = err
	x.end = x.clock.Now()
	x.mu.Unlock()
	x.cancel()
}

// Status returns the execution's final status, or [StatusRunning] before
// Finish is called.
func (x *Execution) Status() FinalStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

// Err returns the error passed to Finish, if any.
func (x *Execution) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

// Duration returns the execution's wall-clock duration. Before Finish it
// returns the duration since start.
func (x *Execution) Duration() time.Duration {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.end.IsZero() {
		return x.clock.Since(x.start)
	}
	return x.end.Sub(x.start)
}

// SetErrorHistory records the errors of prior attempts, oldest first. Set
// by the batch runner before re-executing a unit.
func (x *Execution) SetErrorHistory(history []string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.errorHistory = append([]string(nil), history...)
}

// ErrorHistory returns the errors of prior attempts, oldest first. Empty
// on a first attempt.
func (x *Execution) ErrorHistory() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.errorHistory...)
}
