package gpio

import (
	"errors"
	"fmt"
)

// Button is one standalone switch input.
type Button struct {
	Name string
	Pin  int
	// Invert treats a High reading as pressed. By default buttons pull up and
	// a pressed switch shorts the pin to ground.
	Invert bool
}

// PinReader reads buttons through any PinController.
type PinReader struct {
	pins    PinController
	buttons []Button
}

// NewPinReader configures every button pin as an input with pull-up
// (pull-down when inverted).
func NewPinReader(pins PinController, buttons []Button) (*PinReader, error) {
	for _, b := range buttons {
		mode := InputPullUp
		if b.Invert {
			mode = InputPullDown
		}
		if err := pins.SetPinMode(b.Pin, mode); err != nil {
			return nil, fmt.Errorf("configure button %s (pin %d): %w", b.Name, b.Pin, err)
		}
	}
	return &PinReader{pins: pins, buttons: buttons}, nil
}

// Read returns the logical button states, true = pressed.
func (r *PinReader) Read() ([]bool, error) {
	out := make([]bool, len(r.buttons))
	for i, b := range r.buttons {
		level, err := r.pins.DigitalRead(b.Pin)
		if err != nil {
			return nil, fmt.Errorf("read button %s (pin %d): %w", b.Name, b.Pin, err)
		}
		out[i] = (level == High) == b.Invert
	}
	return out, nil
}

// Close returns the button pins to input with pull-down. The controller
// itself is owned by the caller.
func (r *PinReader) Close() error {
	var errs []error
	for _, b := range r.buttons {
		if err := r.pins.SetPinMode(b.Pin, InputPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reset button %s (pin %d): %w", b.Name, b.Pin, err))
		}
	}
	return errors.Join(errs...)
}
