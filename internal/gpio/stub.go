//go:build !linux

package gpio

import "errors"

// RealActuator is not available on non-Linux platforms.
type RealActuator struct{}

// NewRealActuator returns an error on non-Linux platforms.
func NewRealActuator(chipName string, pin int) (*RealActuator, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Open is not implemented on non-Linux platforms.
func (a *RealActuator) Open() error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (a *RealActuator) Close() error {
	return errors.New("gpio: not supported")
}

// Release is not implemented on non-Linux platforms.
func (a *RealActuator) Release() error {
	return nil
}
