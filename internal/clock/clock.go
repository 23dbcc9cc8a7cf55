package clock

import (
	"sync"
	"time"
)

// Clock defines an interface for getting the current time.
// This allows us to inject a fake time during unit tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the actual server system time.
type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

// MockClock implements Clock for testing specific scenarios.
// e.g., "Pretend the admin pressed play exactly 4 seconds ago"
type MockClock struct {
	mu       sync.Mutex
	MockTime time.Time
}

func NewMock(t time.Time) *MockClock {
	return &MockClock{MockTime: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MockTime
}

// Advance moves the fake clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MockTime = m.MockTime.Add(d)
}

// Set pins the fake clock to an absolute instant.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MockTime = t
}
