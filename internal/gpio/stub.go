//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// CdevController is not available on non-Linux platforms.
type CdevController struct{}

// NewCdevController returns an error on non-Linux platforms.
func NewCdevController(chipName string) (*CdevController, error) {
	return nil, errUnsupported
}

// SetPinMode is not implemented on non-Linux platforms.
func (c *CdevController) SetPinMode(pin int, mode Mode) error {
	return errUnsupported
}

// DigitalWrite is not implemented on non-Linux platforms.
func (c *CdevController) DigitalWrite(pin int, level Level) error {
	return errUnsupported
}

// DigitalRead is not implemented on non-Linux platforms.
func (c *CdevController) DigitalRead(pin int) (Level, error) {
	return Low, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *CdevController) Close() error {
	return nil
}
