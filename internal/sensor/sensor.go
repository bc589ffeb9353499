// Package sensor provides environmental sensors that can suspend irrigation
// or scale run durations, with abstraction for testing.
package sensor

// Sensor is an environmental input consulted by the scheduler and by running
// valve cycles. Read errors are transient: callers log them, surface a
// sensor-error alert, and carry on unadjusted.
type Sensor interface {
	// Start begins background polling. Safe to call more than once.
	Start()

	// Started reports whether the sensor has been started.
	Started() bool

	// ShouldDisable reports whether irrigation should be suspended
	// (e.g. recent rainfall). Called every poll tick while a valve cycle
	// runs, so implementations must return quickly from cached state.
	ShouldDisable() (bool, error)

	// UV returns the current UV index.
	UV() (float64, error)

	// Factor returns the duration multiplier derived from current
	// conditions. 1 is a no-op.
	Factor() (float64, error)

	// Telemetry returns sensor-specific readings for publishing.
	// Keys may contain slashes and become topic suffixes.
	Telemetry() (map[string]any, error)
}
