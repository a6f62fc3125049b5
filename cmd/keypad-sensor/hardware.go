package main

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/keypad-sensor/internal/clock"
	"github.com/sweeney/keypad-sensor/internal/config"
	"github.com/sweeney/keypad-sensor/internal/debounce"
	"github.com/sweeney/keypad-sensor/internal/gpio"
	"github.com/sweeney/keypad-sensor/internal/matrix"
)

// hardware is the opened pin controller and the inputs wired to it.
type hardware struct {
	pins     gpio.PinController
	keypad   *matrix.Keypad
	buttons  *gpio.PinReader
	settings *debounce.Settings[bool]
}

func openPins(c config.Config) (gpio.PinController, error) {
	switch c.Backend {
	case config.BackendCdev:
		p, err := gpio.NewCdevController(c.Chip)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendPeriph:
		p, err := gpio.NewPeriphController()
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendFake:
		log.Warnln("using fake GPIO backend, no inputs will change")
		return gpio.NewFakeBoard(), nil
	}
	return nil, fmt.Errorf("backend %q: %w", c.Backend, config.ErrUnknownBackend)
}

// openHardware configures the keypad (if any) and the buttons on the
// configured backend. Keypad and button debouncers share one Settings.
func openHardware(c config.Config) (*hardware, error) {
	pins, err := openPins(c)
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	return wireHardware(c, pins, clock.NewSystem())
}

func wireHardware(c config.Config, pins gpio.PinController, clk clock.Clock) (*hardware, error) {
	hw := &hardware{pins: pins, settings: c.DebounceSettings()}

	if c.HasKeypad() {
		kp, err := matrix.New(pins, clk, c.MatrixConfig(hw.settings))
		if err != nil {
			pins.Close()
			return nil, fmt.Errorf("init keypad: %w", err)
		}
		hw.keypad = kp
	}

	br, err := gpio.NewPinReader(pins, c.Buttons())
	if err != nil {
		pins.Close()
		return nil, fmt.Errorf("init buttons: %w", err)
	}
	hw.buttons = br
	return hw, nil
}

// Close releases the buttons, then the controller.
func (h *hardware) Close() error {
	return errors.Join(h.buttons.Close(), h.pins.Close())
}
