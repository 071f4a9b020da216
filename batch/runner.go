package batch

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/evalkit/warden"
	"github.com/evalkit/warden/hooks"
)

// Unit is one top-level execution in a batch: a sample, subject to the
// policy's sample-scoped limits, retry budget, and failure tolerance.
type Unit struct {
	// ID identifies the unit in records and hook events. Assigned a
	// random UUID when empty.
	ID string

	// Run executes the unit. It receives the unit's root execution (pass
	// exec.Context() to every blocking operation) and the unit's
	// checkpoint for retry resumption.
	//
	// Return nil on success, a LimitError (or unwind after exec.Check
	// reports one) on limit exit, and any other error as a hard failure.
	Run func(exec *warden.Execution, cp *Checkpoint) error
}

// Runner executes a batch of units under a Policy.
//
// Units run concurrently up to Policy.MaxConcurrency, each with its own
// independent execution tree and meter; no limit state is shared between
// units. After every unit completion the failure threshold is evaluated;
// crossing it cancels units still running and skips units not yet
// started, keeping the records already produced.
type Runner struct {
	policy Policy
	hooks  *hooks.Registry
}

// New creates a Runner with the given policy.
//
// Panics if RetryOnError is negative (invalid configuration is a
// programming error).
func New(policy Policy) *Runner {
	if policy.RetryOnError < 0 {
		panic("warden/batch: RetryOnError must be non-negative")
	}
	return &Runner{policy: policy}
}

// WithHooks sets the hook registry fired at unit lifecycle points.
// Returns the runner for chaining.
func (r *Runner) WithHooks(h *hooks.Registry) *Runner {
	r.hooks = h
	return r
}

// Run executes all units and returns the aggregated outcome. It returns
// when every started unit has finished, even after an abort.
func (r *Runner) Run(ctx context.Context, units []Unit) *Outcome {
	batchCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	outcome := &Outcome{Planned: len(units)}
	var (
		mu         sync.Mutex
		errorCount int
	)

	recordDone := func(rec Record) {
		mu.Lock()
		defer mu.Unlock()
		outcome.Records = append(outcome.Records, rec)
		if rec.Status != warden.StatusError {
			return
		}
		errorCount++
		if !outcome.Aborted && r.policy.FailOnError.ShouldAbort(errorCount, outcome.Planned) {
			outcome.Aborted = true
			outcome.AbortReason = abortReason(r.policy.FailOnError, errorCount, outcome.Planned)
			if r.hooks != nil {
				r.hooks.FireAbort(ctx, warden.AbortEvent{
					Reason:     outcome.AbortReason,
					ErrorCount: errorCount,
					Planned:    outcome.Planned,
				})
			}
			cancel(ErrAborted)
		}
	}

	jobs := make(chan Unit)
	workers := r.policy.concurrency()
	if workers > len(units) {
		workers = len(units)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range jobs {
				// Units not yet started when the batch aborts are skipped,
				// not recorded.
				if batchCtx.Err() != nil {
					continue
				}
				recordDone(r.runUnit(batchCtx, unit))
			}
		}()
	}

	for _, unit := range units {
		jobs <- unit
	}
	close(jobs)
	wg.Wait()

	return outcome
}

// runUnit executes one unit, retrying hard failures up to the budget.
func (r *Runner) runUnit(ctx context.Context, unit Unit) Record {
	id := unit.ID
	if id == "" {
		id = uuid.NewString()
	}
	cp := NewCheckpoint()
	var history []string

	for attempt := 1; ; attempt++ {
		exec := r.newExecution(ctx, id)
		exec.SetErrorHistory(history)

		if r.hooks != nil {
			r.hooks.FireBeforeUnit(ctx, warden.BeforeUnitEvent{UnitID: id, Attempt: attempt})
		}

		err := r.runAttempt(unit, exec, cp)
		exec.Finish(err)

		rec := Record{
			UnitID:       id,
			Attempts:     attempt,
			ErrorHistory: history,
			Status:       exec.Status(),
			Err:          err,
			Violation:    exec.Violation(),
			Usage:        exec.Meter().Snapshot(),
		}

		if r.hooks != nil {
			r.hooks.FireAfterUnit(ctx, warden.AfterUnitEvent{
				UnitID:    id,
				Attempt:   attempt,
				Status:    rec.Status,
				Err:       err,
				Violation: rec.Violation,
				Usage:     rec.Usage,
			})
		}

		switch rec.Status {
		case warden.StatusSuccess, warden.StatusLimitExit, warden.StatusCanceled:
			// Limit exits are control flow, never retried. Cancellation
			// means the batch (or the caller) is shutting down.
			return rec
		}

		// Hard failure: retry while budget remains, unless terminal.
		if attempt > r.policy.RetryOnError || IsTerminal(err) || ctx.Err() != nil {
			return rec
		}
		history = append(history, err.Error())
		if r.hooks != nil {
			r.hooks.FireRetry(ctx, warden.RetryEvent{
				UnitID:    id,
				Attempt:   attempt,
				Err:       err,
				Remaining: r.policy.RetryOnError - attempt,
			})
		}
	}
}

func (r *Runner) newExecution(ctx context.Context, id string) *warden.Execution {
	opts := []warden.Option{}
	if r.policy.Clock != nil {
		opts = append(opts, warden.WithClock(r.policy.Clock))
	}
	if r.hooks != nil {
		opts = append(opts, warden.WithViolationObserver(func(e *warden.Execution, v *warden.LimitError) {
			r.hooks.FireViolation(ctx, warden.ViolationEvent{
				UnitID:    id,
				Scope:     e.Name(),
				Violation: v,
			})
		}))
	}
	return warden.NewExecution(ctx, id, opts...)
}

// runAttempt opens the sample-scoped guards, runs the unit, and releases
// the guards on every exit path, panics included.
func (r *Runner) runAttempt(unit Unit, exec *warden.Execution, cp *Checkpoint) error {
	release := exec.ApplyLimits(r.policy.Limits)
	defer release()
	return unit.Run(exec, cp)
}
