package warden

// Guard is a single bound of one kind attached to a scope. Guards are
// created by [Execution.OpenGuard] and live on the owning execution's
// guard stack until closed.
//
// # Stacking Semantics
//
// Multiple guards of the same kind can be open at once across nested
// scopes. On a usage event the stack is walked from the innermost scope
// outward:
//
//   - message: only the innermost non-disabled message guard is charged.
//     Outer message guards see nothing until it closes.
//   - time, working_time, token, and custom kinds: every open,
//     non-disabled guard of the kind is charged the same delta
//     independently, and any one of them may trip.
//
// # Disabling Outer Guards
//
// A guard opened with a nil threshold is inert: it never trips, and it
// blocks the walk for its kind, so outer guards of the same kind are not
// charged for events originating within its scope. Closing it restores
// the prior charging behavior. This is the mechanism for temporarily
// suspending an enclosing limit around a nested scope.
//
// # Tripping
//
// A guard trips when its accumulated usage exceeds (strictly) its
// threshold; message guards trip as soon as the count reaches the
// threshold, since the message that hits the limit is already one too
// many to continue with. Tripped is set at most once; racing siblings that both push
// usage over the threshold produce a single [LimitError], and the
// execution that opened the guard is canceled.
type Guard struct {
	kind      Kind
	threshold *float64 // nil means disabled
	scope     string
	used      float64 // guarded by the owner execution's mutex
	tripped   bool
}

// Kind returns the usage kind this guard bounds.
func (g *Guard) Kind() Kind {
	return g.kind
}

// Disabled reports whether the guard was opened with a nil threshold.
func (g *Guard) Disabled() bool {
	return g.threshold == nil
}

// GuardHandle is the handle returned by [Execution.OpenGuard]. Every open
// must be matched by exactly one Close, on every exit path. Prefer
// [Execution.WithGuard], which guarantees the release discipline.
type GuardHandle struct {
	guard  *Guard
	owner  *Execution
	closed bool
}

// Close pops the guard from its execution's stack.
//
// Panics if the guard is not the top of the stack (LIFO violation) or was
// already closed. Both are programming errors that would desynchronize the
// stack, so they fail fast instead of returning an error.
func (h *GuardHandle) Close() {
	h.owner.closeGuard(h)
}

// Tripped reports whether this guard has tripped.
func (h *GuardHandle) Tripped() bool {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	return h.guard.tripped
}

// Used returns the guard's accumulated usage of its kind.
func (h *GuardHandle) Used() float64 {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	return h.guard.used
}

// Threshold returns a pointer to v, for use as a guard threshold:
//
//	exec.WithGuard(warden.KindMessage, warden.Threshold(30), fn)
//
// Pass nil instead of a Threshold to open a disabled guard.
func Threshold(v float64) *float64 {
	return &v
}
