package gpio

import "sync"

// FakeActuator is a test double that records actuation calls.
// Safe for concurrent use: worker goroutines actuate while tests assert.
type FakeActuator struct {
	mu sync.Mutex

	// IsOpen reflects the last actuation.
	IsOpen bool

	// OpenCount and CloseCount track total calls.
	OpenCount  int
	CloseCount int

	// Released tracks if Release was called.
	Released bool

	// OpenError and CloseError, if set, are returned by Open/Close.
	OpenError  error
	CloseError error
}

// NewFakeActuator creates a FakeActuator in the closed state.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// Open records the call and marks the valve open.
func (f *FakeActuator) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenError != nil {
		return f.OpenError
	}
	f.OpenCount++
	f.IsOpen = true
	return nil
}

// Close records the call and marks the valve closed.
func (f *FakeActuator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CloseError != nil {
		return f.CloseError
	}
	f.CloseCount++
	f.IsOpen = false
	return nil
}

// Release marks the actuator as released.
func (f *FakeActuator) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Released = true
	f.IsOpen = false
	return nil
}

// Counts returns the open/close call counts.
func (f *FakeActuator) Counts() (opens, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.OpenCount, f.CloseCount
}

// Opened reports whether the last actuation left the valve open.
func (f *FakeActuator) Opened() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.IsOpen
}
