package warden

import "context"

// -----------------------------------------------------------------------------
// Batch Hook Interfaces
// -----------------------------------------------------------------------------
//
// Hooks allow observing unit execution at its lifecycle points. To use hooks:
//
//  1. Implement the desired hook interface(s)
//  2. Register with hooks.Registry
//  3. Pass the registry to the batch runner via WithHooks
//
// Example:
//
//	type LoggingHook struct {
//	    logger *log.Logger
//	}
//
//	func (h *LoggingHook) OnAfterUnit(ctx context.Context, e warden.AfterUnitEvent) {
//	    h.logger.Printf("unit %s finished: %s (attempt %d)", e.UnitID, e.Status, e.Attempt)
//	}
//
//	registry := hooks.NewRegistry()
//	registry.Register(&LoggingHook{logger: log.Default()})
//	runner := batch.New(policy).WithHooks(registry)
//
// Hooks are called in registration order and should not return errors; a
// panicking hook stops the run.

// BeforeUnitEvent is fired before each unit attempt starts.
type BeforeUnitEvent struct {
	// UnitID identifies the unit within the batch.
	UnitID string

	// Attempt is 1 for the first execution, incremented per retry.
	Attempt int
}

// AfterUnitEvent is fired after a unit attempt ends, whether it will be
// retried or not.
type AfterUnitEvent struct {
	UnitID  string
	Attempt int

	// Status classifies how the attempt ended.
	Status FinalStatus

	// Err is the attempt's error, nil on success.
	Err error

	// Violation is set when Status is StatusLimitExit.
	Violation *LimitError

	// Usage is the attempt's final usage snapshot.
	Usage Usage
}

// RetryEvent is fired when a failed unit is about to be re-executed.
type RetryEvent struct {
	UnitID string

	// Attempt is the number of the attempt that just failed.
	Attempt int

	// Err is the failure that triggered the retry.
	Err error

	// Remaining is the retry budget left after this retry.
	Remaining int
}

// ViolationEvent is fired once per tripped guard, anywhere in a unit's
// execution tree.
type ViolationEvent struct {
	// UnitID identifies the unit whose tree contains the tripped guard.
	UnitID string

	// Scope is the name of the execution that opened the guard.
	Scope string

	Violation *LimitError
}

// AbortEvent is fired when the batch failure threshold is crossed.
type AbortEvent struct {
	// Reason describes the triggering threshold and the observed
	// count or proportion.
	Reason string

	// ErrorCount is the number of unit hard failures recorded so far.
	ErrorCount int

	// Planned is the planned batch size.
	Planned int
}

// BeforeUnitHook is implemented by hooks that want to be notified before
// each unit attempt.
type BeforeUnitHook interface {
	OnBeforeUnit(ctx context.Context, event BeforeUnitEvent)
}

// AfterUnitHook is implemented by hooks that want to be notified after
// each unit attempt. Always called if OnBeforeUnit was called for the
// attempt, even when the attempt fails.
type AfterUnitHook interface {
	OnAfterUnit(ctx context.Context, event AfterUnitEvent)
}

// RetryHook is implemented by hooks that want to be notified of retries.
type RetryHook interface {
	OnRetry(ctx context.Context, event RetryEvent)
}

// ViolationHook is implemented by hooks that want to be notified of every
// tripped guard.
type ViolationHook interface {
	OnViolation(ctx context.Context, event ViolationEvent)
}

// AbortHook is implemented by hooks that want to be notified when the
// batch aborts on its failure threshold.
type AbortHook interface {
	OnAbort(ctx context.Context, event AbortEvent)
}
