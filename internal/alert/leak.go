package alert

import (
	"fmt"
	"time"
)

// leakDebounce is how long every valve must stay closed before a nonzero
// flow reading is trusted as a leak. Flow sensors report residual flow for
// up to ~10s after a valve physically closes.
const leakDebounce = 60 * time.Second

// LeakMonitor tracks the "all valves closed" window and fires LEAK when
// debounced flow persists with everything shut.
type LeakMonitor struct {
	mgr      *Manager
	debounce time.Duration

	allClosedSince time.Time
	haveClosedAt   bool
}

// NewLeakMonitor creates a monitor with the standard 60s debounce.
func NewLeakMonitor(mgr *Manager) *LeakMonitor {
	return &LeakMonitor{mgr: mgr, debounce: leakDebounce}
}

// SetDebounce overrides the settle window for tests.
func (l *LeakMonitor) SetDebounce(d time.Duration) {
	l.debounce = d
}

// Check runs one leak evaluation. anyOpen is whether any valve is currently
// open; lpm is the meter's current reading. Called once per minute by the
// timer loop.
func (l *LeakMonitor) Check(now time.Time, anyOpen bool, lpm float64) {
	if anyOpen {
		l.haveClosedAt = false
		return
	}

	if !l.haveClosedAt {
		l.allClosedSince = now
		l.haveClosedAt = true
		return
	}

	if now.Sub(l.allClosedSince) < l.debounce {
		return
	}

	if lpm <= 0 {
		l.mgr.Clear(Leak, "")
		return
	}

	if l.mgr.InExclusionWindow(now) {
		return
	}

	l.mgr.Alert(Leak,
		fmt.Sprintf("water flowing at %.2f L/min with all valves closed", lpm),
		"",
		map[string]any{
			"lpm":              lpm,
			"all_closed_since": l.allClosedSince,
		})
}
