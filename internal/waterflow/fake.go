package waterflow

import "time"

// FakeMeter is a test double with a directly settable reading.
type FakeMeter struct {
	base

	// StartError, if set, is returned by Start.
	StartError error
}

// NewFakeMeter creates an unstarted FakeMeter.
func NewFakeMeter(leakDetect bool) *FakeMeter {
	return &FakeMeter{base: newBase(leakDetect)}
}

// Start marks the meter started.
func (f *FakeMeter) Start() error {
	if f.StartError != nil {
		return f.StartError
	}
	f.setStarted()
	return nil
}

// SetLPM records a reading as if it arrived from hardware.
func (f *FakeMeter) SetLPM(v float64) {
	f.setLPM(v)
}

// SetClock overrides the meter's time source for staleness tests.
func (f *FakeMeter) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}
