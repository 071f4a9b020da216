// Package batch runs a set of units under a failure-recovery policy:
// per-unit retry with error-history preservation and checkpoint
// resumption, plus a batch-wide failure tolerance that aborts the run
// when too many units fail hard.
//
// The taxonomy the policy operates on:
//
//   - Limit exits ([warden.LimitError]) are control signals. Never
//     retried, never counted toward the failure threshold, scored
//     normally.
//   - Hard failures (any other error from a unit) consume retry budget,
//     then count toward the threshold and are excluded from scoring.
//   - Programming errors (stack desynchronization, negative deltas,
//     invalid configuration) panic and are never retried or counted.
//   - [NoRetry] marks a hard failure as terminal, skipping remaining
//     retry budget.
//
// See [Runner] for execution and [Policy] for configuration.
package batch
