package warden

import (
	"sync"
	"time"
)

// Stopwatch classifies an execution's intervals as working or waiting and
// records them on the meter at each transition. It exists so collaborators
// get the working-time exclusion right by construction: elapsed time is
// always recorded, working time only for intervals begun with BeginWork.
//
// Typical use around a suspension point:
//
//	sw := warden.NewStopwatch(exec)
//	sw.BeginWork()
//	out := compute(input)
//	sw.BeginWait() // sandbox round trip: waiting, not working
//	res, err := sandbox.Exec(exec.Context(), out)
//	sw.BeginWork()
//	// ...
//	sw.Stop()
//
// Stopwatch is safe for use by a single goroutine per instance; sibling
// sub-executions should each create their own.
type Stopwatch struct {
	mu      sync.Mutex
	exec    *Execution
	mark    time.Time
	working bool
	running bool
}

// NewStopwatch creates a stopped Stopwatch for exec.
func NewStopwatch(exec *Execution) *Stopwatch {
	return &Stopwatch{exec: exec}
}

// BeginWork closes the current interval, if any, and starts a productive
// one.
func (s *Stopwatch) BeginWork() {
	s.transition(true)
}

// BeginWait closes the current interval, if any, and starts a waiting one.
// Use it before blocking on sandboxes, subprocesses, contended shared
// resources, or model requests that may be rate limited.
func (s *Stopwatch) BeginWait() {
	s.transition(false)
}

// Stop closes the current interval. The stopwatch can be restarted with
// BeginWork or BeginWait.
func (s *Stopwatch) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	s.running = false
}

func (s *Stopwatch) transition(working bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	s.mark = s.exec.clock.Now()
	s.working = working
	s.running = true
}

// flushLocked records the interval since the last mark.
func (s *Stopwatch) flushLocked() {
	if !s.running {
		return
	}
	d := s.exec.clock.Since(s.mark)
	if d < 0 {
		d = 0
	}
	s.exec.meter.RecordElapsed(d)
	if s.working {
		s.exec.meter.RecordWorking(d)
	}
}
