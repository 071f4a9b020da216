package warden

import "time"

// Clock provides the time source for usage metering. It allows injecting
// custom time sources so time-kind guards can be tested deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// DefaultClock is the standard Clock using the system clock.
type DefaultClock struct{}

// NewDefaultClock creates a new DefaultClock.
func NewDefaultClock() *DefaultClock {
	return &DefaultClock{}
}

// Now returns the current system time.
func (c *DefaultClock) Now() time.Time {
	return time.Now()
}

// Since returns the duration elapsed since t.
func (c *DefaultClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a Clock that returns a controllable time.
// Useful for testing time-limit behavior without sleeping.
type MockClock struct {
	current time.Time
}

// NewMockClock creates a MockClock starting at the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time {
	return m.current
}

// Since returns the duration between t and the mock's current time.
func (m *MockClock) Since(t time.Time) time.Duration {
	return m.current.Sub(t)
}

// Advance moves the mock's current time forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.current = m.current.Add(d)
}

// SetTime sets the mock's current time.
func (m *MockClock) SetTime(t time.Time) {
	m.current = t
}

// Compile-time check that MockClock implements Clock.
var _ Clock = (*MockClock)(nil)

// Compile-time check that DefaultClock implements Clock.
var _ Clock = (*DefaultClock)(nil)
