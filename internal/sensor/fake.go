package sensor

import "sync"

// FakeSensor is a test double with scripted readings.
// Safe for concurrent use: cycle goroutines poll while tests mutate.
type FakeSensor struct {
	mu sync.Mutex

	// Disable is returned by ShouldDisable.
	Disable bool

	// UVIndex is returned by UV.
	UVIndex float64

	// DurationFactor is returned by Factor.
	DurationFactor float64

	// Readings is returned by Telemetry.
	Readings map[string]any

	// Err, if set, is returned by every reading method.
	Err error

	started bool
}

// NewFakeSensor creates a started FakeSensor with factor 1.
func NewFakeSensor() *FakeSensor {
	return &FakeSensor{DurationFactor: 1, started: true}
}

// Start marks the sensor started.
func (f *FakeSensor) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
}

// Started reports whether Start was called.
func (f *FakeSensor) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// ShouldDisable returns the scripted disable flag.
func (f *FakeSensor) ShouldDisable() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Disable, f.Err
}

// UV returns the scripted UV index.
func (f *FakeSensor) UV() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.UVIndex, f.Err
}

// Factor returns the scripted duration factor.
func (f *FakeSensor) Factor() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 1, f.Err
	}
	return f.DurationFactor, nil
}

// Telemetry returns the scripted readings.
func (f *FakeSensor) Telemetry() (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Readings, f.Err
}

// SetDisable sets the disable flag.
func (f *FakeSensor) SetDisable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Disable = v
}

// SetErr sets the scripted error.
func (f *FakeSensor) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}
