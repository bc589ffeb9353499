// Package valve holds per-valve runtime state and actuation.
//
// Cycle fields (open, counters) are written only by the single worker that
// owns the valve's handled window; the timer loop reads telemetry snapshots
// and command handlers flip the enabled flag, so all access goes through a
// per-valve mutex.
package valve

import (
	"sync"

	"github.com/adi-miller/irrigate/internal/gpio"
	"github.com/adi-miller/irrigate/internal/history"
	"github.com/adi-miller/irrigate/internal/schedule"
	"github.com/adi-miller/irrigate/internal/sensor"
	"github.com/adi-miller/irrigate/internal/waterflow"
)

// Status strings published on the valve's status topic.
const (
	StatusEnabled     = "enabled"
	StatusDisabled    = "disabled"
	StatusOpen        = "open"
	StatusMalfunction = "malfunction"
)

// Valve is one irrigation valve: actuator, schedules, optional sensor, and
// running telemetry counters. Constructed at startup, never destroyed.
type Valve struct {
	Name      string
	Schedules []*schedule.Schedule
	Sensor    sensor.Sensor // optional

	mu          sync.Mutex
	actuator    gpio.Actuator
	enabled     bool
	handled     bool
	open        bool
	malfunction bool

	secondsDaily  int
	litersDaily   float64
	secondsRemain int
	secondsLast   int
	litersLast    float64

	flow     waterflow.Meter // bound only while a cycle runs
	baseline *history.Baseline
}

// Snapshot is a point-in-time telemetry view of a valve.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Name          string
	Status        string
	Enabled       bool
	Handled       bool
	Open          bool
	SecondsDaily  int
	LitersDaily   float64
	SecondsRemain int
	SecondsLast   int
	LitersLast    float64
	Baseline      *history.Baseline
}

// New creates a valve in the closed, unhandled state.
func New(name string, actuator gpio.Actuator, enabled bool) *Valve {
	return &Valve{Name: name, actuator: actuator, enabled: enabled}
}

// Enabled reports whether the valve may be scheduled.
func (v *Valve) Enabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

// SetEnabled toggles the valve at runtime.
func (v *Valve) SetEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = enabled
}

// TryAcquire claims the valve for a cycle. It returns false if another
// worker already owns it; the caller requeues the job.
func (v *Valve) TryAcquire() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.handled {
		return false
	}
	v.handled = true
	return true
}

// Release clears the handled flag at cycle end.
func (v *Valve) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handled = false
}

// Handled reports whether a worker currently owns the valve's cycle.
func (v *Valve) Handled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.handled
}

// Open actuates the valve open.
func (v *Valve) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.actuator.Open(); err != nil {
		return err
	}
	v.open = true
	return nil
}

// Close actuates the valve closed.
func (v *Valve) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.actuator.Close(); err != nil {
		return err
	}
	v.open = false
	return nil
}

// IsOpen reports the actuator state.
func (v *Valve) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// AddOpenSeconds folds a closed stretch of open time into the daily counter.
func (v *Valve) AddOpenSeconds(n int) {
	if n <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secondsDaily += n
}

// AddLiters accumulates measured water use.
func (v *Valve) AddLiters(l float64) {
	if l <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.litersDaily += l
}

// SetCycleTelemetry updates the current-cycle counters published while a
// cycle runs and after it ends.
func (v *Valve) SetCycleTelemetry(secondsRemain, secondsLast int, litersLast float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secondsRemain = secondsRemain
	v.secondsLast = secondsLast
	v.litersLast = litersLast
}

// SetMalfunction flags or clears the no-flow malfunction state.
func (v *Valve) SetMalfunction(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.malfunction = on
}

// BindFlow attaches the water-flow meter for the duration of a cycle.
// Pass nil to unbind.
func (v *Valve) BindFlow(m waterflow.Meter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flow = m
}

// Flow returns the bound meter, or nil outside a cycle.
func (v *Valve) Flow() waterflow.Meter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flow
}

// SetBaseline installs the freshly computed baseline (nil when history is
// too shallow).
func (v *Valve) SetBaseline(b *history.Baseline) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.baseline = b
}

// Baseline returns the current baseline snapshot, or nil.
func (v *Valve) Baseline() *history.Baseline {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.baseline
}

// ResetDaily zeroes the daily counters at local midnight and returns the
// totals that were accumulated, for the history flush.
func (v *Valve) ResetDaily() (seconds int, liters float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	seconds, liters = v.secondsDaily, v.litersDaily
	v.secondsDaily = 0
	v.litersDaily = 0
	return seconds, liters
}

// Status derives the published status string.
func (v *Valve) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statusLocked()
}

func (v *Valve) statusLocked() string {
	switch {
	case !v.enabled:
		return StatusDisabled
	case v.malfunction:
		return StatusMalfunction
	case v.open:
		return StatusOpen
	default:
		return StatusEnabled
	}
}

// TelemetrySnapshot returns a consistent copy of the valve's counters.
func (v *Valve) TelemetrySnapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	return Snapshot{
		Name:          v.Name,
		Status:        v.statusLocked(),
		Enabled:       v.enabled,
		Handled:       v.handled,
		Open:          v.open,
		SecondsDaily:  v.secondsDaily,
		LitersDaily:   v.litersDaily,
		SecondsRemain: v.secondsRemain,
		SecondsLast:   v.secondsLast,
		LitersLast:    v.litersLast,
		Baseline:      v.baseline,
	}
}
