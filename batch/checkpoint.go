package batch

import "sync"

// Checkpoint records a unit's durably completed sub-units so a retried
// attempt can resume from the last completed step instead of from
// scratch. One Checkpoint is created per unit and shared across all of
// its attempts; it is never shared between units.
//
// Unit code wraps each durable step:
//
//	out, err := batch.Step(cp, "fetch-dataset", func() (Dataset, error) {
//	    return fetchDataset(exec.Context())
//	})
//
// On a retry the step's stored result is returned without re-running it.
// Units whose execution model cannot preserve partial progress simply
// ignore the checkpoint and restart from scratch.
type Checkpoint struct {
	mu      sync.Mutex
	results map[string]any
	order   []string
}

// NewCheckpoint creates an empty Checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{results: make(map[string]any)}
}

// Completed reports whether the named step has a stored result.
func (c *Checkpoint) Completed(step string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.results[step]
	return ok
}

// Complete stores the result of a durably completed step. Completing the
// same step twice overwrites the stored result.
func (c *Checkpoint) Complete(step string, result any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[step]; !ok {
		c.order = append(c.order, step)
	}
	c.results[step] = result
}

// Result returns the stored result for a step.
func (c *Checkpoint) Result(step string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.results[step]
	return v, ok
}

// Last returns the name of the most recently completed step, or "" when
// nothing has completed.
func (c *Checkpoint) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		return ""
	}
	return c.order[len(c.order)-1]
}

// Step runs fn unless the named step already completed, in which case the
// stored result is returned. A non-nil error from fn leaves the step
// incomplete.
func Step[T any](c *Checkpoint, name string, fn func() (T, error)) (T, error) {
	if v, ok := c.Result(name); ok {
		return v.(T), nil
	}
	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Complete(name, v)
	return v, nil
}
