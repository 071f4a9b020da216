// Package warden bounds open-ended execution with scoped resource limits
// and decides what happens when work fails outright.
//
// An evaluation run executes units ("samples") that spawn nested
// sub-executions: agents, tool calls, model generations. Any of them can
// run away. Warden meters four kinds of usage per execution tree (wall
// time, working time, messages, tokens), lets limits of any kind stack
// across nested scopes, and routes the resulting limit signal differently
// depending on how the scope that hit it was invoked. A separate batch
// layer retries failed units and aborts the whole run when too many fail.
//
// # Quick Start
//
//	policy := batch.Policy{
//	    FailOnError:  batch.Count(5),
//	    RetryOnError: 1,
//	    Limits: warden.Limits{
//	        Time:    warden.Threshold(600),
//	        Message: warden.Threshold(30),
//	        Token:   warden.Threshold(100_000),
//	    },
//	}
//
//	units := []batch.Unit{...}
//	outcome := batch.New(policy).Run(ctx, units)
//	for _, rec := range outcome.Records {
//	    fmt.Println(rec.UnitID, rec.Status, rec.Attempts)
//	}
//
// # Executions and Guards
//
// [Execution] is the explicit handle threaded through every operation that
// needs usage or limit awareness; there is no ambient global state. Each
// unit gets a root Execution; nested work runs in [Execution.Subexecution]
// scopes. A [Guard] is one bound (kind + threshold) opened on a scope via
// [Execution.OpenGuard] or the scoped [Execution.WithGuard]. Guards close
// in strict LIFO order; violating that order is a programming error and
// panics.
//
// Charging walks from the innermost scope outward. Time, working-time,
// token, and custom guards stack: every open, non-disabled guard of the
// kind is charged the same delta and any one may trip. Message guards do
// not stack: only the innermost non-disabled one counts. Opening a guard
// with a nil threshold suspends outer guards of its kind until it closes.
//
// # Working Time
//
// Working time is wall time minus waiting: sandbox round trips,
// subprocess waits, and rate-limited or retried model requests do not
// count. [Stopwatch] records the classification at each transition, and
// the models package applies it to langchaingo calls automatically.
//
// # Invocation Modes
//
// What a tripped limit does depends on how the scope was invoked, via
// [Execution.Invoke]:
//
//   - [ModeContinuation]: the violation becomes a textual result for the
//     controlling model; the outer execution continues.
//   - [ModeDelegation]: the violation terminates the outer execution,
//     exactly like a unit-level limit.
//   - [ModeDirect]: the violation is returned as an error for the caller
//     to inspect ([AsLimitError]) or propagate.
//
// # Failure Policy
//
// Hard failures (anything that is not a [LimitError] and not a
// programming error) are eligible for per-unit retry with error-history
// preservation, then count toward the batch threshold: abort on the first
// failure, never, after a count, or past a proportion of the planned
// batch. Units that exit on a limit are scored normally and never count
// as failures. See the batch package.
//
// # Observability
//
// The engine core is silent. Lifecycle hooks ([BeforeUnitHook],
// [AfterUnitHook], [RetryHook], [ViolationHook], [AbortHook]) fire from
// the batch runner; the telemetry package ships an OpenTelemetry hook
// bundle, and the hooks package has the registry.
package warden
