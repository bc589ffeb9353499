// Package waterflow provides water-flow meters feeding liter accounting and
// leak detection, with abstraction for testing.
package waterflow

import (
	"sync"
	"time"
)

// HistorySize is the number of one-minute samples kept in the rolling window.
const HistorySize = 120

// staleAfter is how long a reading stays valid. A meter that went quiet
// reports zero flow rather than its last value.
const staleAfter = 60 * time.Second

// Sample is one flow reading.
type Sample struct {
	Time time.Time
	LPM  float64
}

// Meter reports water flow through the supply line.
type Meter interface {
	// Start begins receiving flow data. Safe to call more than once.
	Start() error

	// Started reports whether the meter has been started.
	Started() bool

	// LastLPM returns the most recent liters-per-minute reading, or 0 if
	// the reading is older than 60 seconds.
	LastLPM() float64

	// LeakDetection reports whether this meter participates in leak checks.
	LeakDetection() bool

	// History returns the rolling window of one-minute samples, oldest first.
	History() []Sample
}

// base holds the reading state shared by meter implementations.
type base struct {
	mu         sync.Mutex
	lastLPM    float64
	lastUpdate time.Time
	history    []Sample
	leakDetect bool
	started    bool
	now        func() time.Time
}

func newBase(leakDetect bool) base {
	return base{leakDetect: leakDetect, now: time.Now}
}

// setLPM records a reading and appends it to the rolling window.
func (b *base) setLPM(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastLPM = v
	b.lastUpdate = b.now()
	b.history = append(b.history, Sample{Time: b.lastUpdate, LPM: v})
	if len(b.history) > HistorySize {
		b.history = b.history[len(b.history)-HistorySize:]
	}
}

// LastLPM returns the current reading, or 0 once it has gone stale.
func (b *base) LastLPM() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.now().After(b.lastUpdate.Add(staleAfter)) {
		return 0
	}
	return b.lastLPM
}

// LeakDetection reports whether leak checks use this meter.
func (b *base) LeakDetection() bool {
	return b.leakDetect
}

// History returns a copy of the rolling sample window, oldest first.
func (b *base) History() []Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sample, len(b.history))
	copy(out, b.history)
	return out
}

// Started reports whether the meter has been started.
func (b *base) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

func (b *base) setStarted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
}
