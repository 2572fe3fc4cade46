// Package clock abstracts the wall clock so schedules, cache expiry and
// snapshot timestamps can be tested without waiting for real time to pass.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the system time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Mock implements Clock with a controllable time value.
type Mock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewMock creates a mock clock initialized to t. A zero t starts at the
// current time.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Now()
	}
	return &Mock{current: t}
}

// Now returns the current time according to this mock clock.
func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// Set sets the clock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// OrReal returns c, or the real clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}
