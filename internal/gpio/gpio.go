// Package gpio drives irrigation valve hardware with abstraction for testing.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Actuator opens and closes one physical valve.
// Implementations are assumed idempotent-safe but not necessarily fast;
// errors are surfaced to the caller and must never panic.
type Actuator interface {
	// Open energizes the valve line.
	Open() error

	// Close de-energizes the valve line.
	Close() error

	// Release frees hardware resources, closing the valve first if needed.
	Release() error
}

// DefaultChip is the GPIO chip device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
