package warden

import (
	"sync"
	"time"
)

// Kind identifies what a guard or usage event measures.
//
// The built-in kinds map to the four counters every execution tracks.
// User-defined kinds (declared as Kind("myapp:requests")) are charged with
// the same stacking semantics as token guards.
type Kind string

const (
	// KindTime measures wall-clock time in seconds.
	KindTime Kind = "time"

	// KindWorkingTime measures productive time in seconds: wall time minus
	// intervals spent waiting on contended resources or failed, retried
	// model requests. Collaborators decide what counts as productive; the
	// meter only records what it is told.
	KindWorkingTime Kind = "working_time"

	// KindMessage counts messages appended to the conversation.
	KindMessage Kind = "message"

	// KindToken counts tokens reported by model responses.
	KindToken Kind = "token"
)

// Usage is a point-in-time snapshot of an execution's accumulated usage.
// External collaborators may persist the final snapshot when the execution
// ends; the meter itself is discarded with the execution.
type Usage struct {
	// Elapsed is total wall-clock time.
	Elapsed time.Duration

	// Working is productive time only. Always <= Elapsed when collaborators
	// report correctly.
	Working time.Duration

	// Messages is the number of messages appended.
	Messages int64

	// Tokens is the number of tokens consumed.
	Tokens int64

	// Custom holds accumulated values for user-defined kinds.
	Custom map[Kind]float64
}

// UsageMeter accumulates usage for one execution and charges the guard
// stack on every update.
//
// # What Counts as Working Time
//
// RecordWorking is invoked only for intervals the caller classified as
// productive: a successful, non-rate-limited model call, or any non-waiting
// computation. Time spent waiting on sandboxes, subprocesses, or
// rate-limited and retried requests is excluded by construction; the caller
// simply never reports it as working time. Use [Stopwatch] to get this
// classification right around suspension points.
//
// # Propagation
//
// Updates propagate from child to parent executions in real time, so a
// parent's snapshot always covers its whole subtree. Guard charging is
// separate: each update charges the guard stack exactly once, walking from
// the recording execution outward (see [Execution.OpenGuard]).
//
// # Thread Safety
//
// All methods are safe for concurrent use. Sibling sub-executions may
// record concurrently; increments are atomic read-modify-write under the
// meter's mutex.
type UsageMeter struct {
	mu       sync.Mutex
	exec     *Execution
	elapsed  time.Duration
	working  time.Duration
	messages int64
	tokens   int64
	custom   map[Kind]float64
}

func newUsageMeter(exec *Execution) *UsageMeter {
	return &UsageMeter{exec: exec}
}

// RecordElapsed records wall-clock time. Called by collaborators at the
// end of any timed interval, productive or not.
//
// Panics if d is negative (programming error).
func (m *UsageMeter) RecordElapsed(d time.Duration) {
	if d < 0 {
		panic("warden: RecordElapsed called with negative duration")
	}
	m.add(func(um *UsageMeter) { um.elapsed += d })
	m.exec.charge(KindTime, d.Seconds())
}

// RecordWorking records productive time. Callers must have already
// classified the interval; see the type documentation.
//
// Panics if d is negative (programming error).
func (m *UsageMeter) RecordWorking(d time.Duration) {
	if d < 0 {
		panic("warden: RecordWorking called with negative duration")
	}
	m.add(func(um *UsageMeter) { um.working += d })
	m.exec.charge(KindWorkingTime, d.Seconds())
}

// RecordMessage records one message appended to the conversation.
func (m *UsageMeter) RecordMessage() {
	m.add(func(um *UsageMeter) { um.messages++ })
	m.exec.charge(KindMessage, 1)
}

// RecordTokens records n tokens from a model response.
//
// Panics if n is negative (programming error).
func (m *UsageMeter) RecordTokens(n int64) {
	if n < 0 {
		panic("warden: RecordTokens called with negative count")
	}
	m.add(func(um *UsageMeter) { um.tokens += n })
	m.exec.charge(KindToken, float64(n))
}

// RecordCustom records delta for a user-defined kind. Custom kinds are
// charged with stacking semantics (every open, non-disabled guard of the
// kind is charged).
//
// Panics if delta is negative, or if kind is one of the built-in kinds
// (use the dedicated Record methods for those).
func (m *UsageMeter) RecordCustom(kind Kind, delta float64) {
	if delta < 0 {
		panic("warden: RecordCustom called with negative delta")
	}
	switch kind {
	case KindTime, KindWorkingTime, KindMessage, KindToken:
		panic("warden: RecordCustom called with built-in kind " + string(kind))
	}
	m.add(func(um *UsageMeter) {
		if um.custom == nil {
			um.custom = make(map[Kind]float64)
		}
		um.custom[kind] += delta
	})
	m.exec.charge(kind, delta)
}

// add applies fn to this meter and every ancestor meter, child first.
func (m *UsageMeter) add(fn func(*UsageMeter)) {
	for um := m; um != nil; um = um.parent() {
		um.mu.Lock()
		fn(um)
		um.mu.Unlock()
	}
}

func (m *UsageMeter) parent() *UsageMeter {
	if m.exec == nil || m.exec.parent == nil {
		return nil
	}
	return m.exec.parent.meter
}

// Snapshot returns a copy of the current counters, including usage
// propagated from child executions.
func (m *UsageMeter) Snapshot() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := Usage{
		Elapsed:  m.elapsed,
		Working:  m.working,
		Messages: m.messages,
		Tokens:   m.tokens,
	}
	if len(m.custom) > 0 {
		u.Custom = make(map[Kind]float64, len(m.custom))
		for k, v := range m.custom {
			u.Custom[k] = v
		}
	}
	return u
}
