//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealActuator drives a single valve relay line on actual hardware using the
// Linux GPIO character device.
type RealActuator struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// NewRealActuator requests the given BCM pin as an output, initially low
// (valve closed).
func NewRealActuator(chipName string, pin int) (*RealActuator, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request valve pin %d: %w", pin, err)
	}

	return &RealActuator{chip: chip, line: line, pin: pin}, nil
}

// Open drives the valve line high.
func (a *RealActuator) Open() error {
	if err := a.line.SetValue(1); err != nil {
		return fmt.Errorf("open valve pin %d: %w", a.pin, err)
	}
	return nil
}

// Close drives the valve line low.
func (a *RealActuator) Close() error {
	if err := a.line.SetValue(0); err != nil {
		return fmt.Errorf("close valve pin %d: %w", a.pin, err)
	}
	return nil
}

// Release closes the valve and frees the line. The line is reconfigured to
// input with pull-down (matching Pi boot defaults) so external relay boards
// see a defined level across daemon restarts.
func (a *RealActuator) Release() error {
	var errs []error

	if a.line != nil {
		if err := a.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("close valve pin %d: %w", a.pin, err))
		}
		if err := a.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", a.pin, err))
		}
		if err := a.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", a.pin, err))
		}
	}
	if a.chip != nil {
		if err := a.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}
