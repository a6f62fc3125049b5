package gpio

import (
	"errors"
	"fmt"
	"sort"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphController drives pins through periph.io. Pin numbers are resolved
// by name as "GPIO<n>".
type PeriphController struct {
	lookup func(name string) pgpio.PinIO
	pins   map[int]pgpio.PinIO
	modes  map[int]Mode
	levels map[int]Level
}

// NewPeriphController initialises the periph.io host drivers.
func NewPeriphController() (*PeriphController, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	return newPeriphController(gpioreg.ByName), nil
}

func newPeriphController(lookup func(string) pgpio.PinIO) *PeriphController {
	return &PeriphController{
		lookup: lookup,
		pins:   make(map[int]pgpio.PinIO),
		modes:  make(map[int]Mode),
		levels: make(map[int]Level),
	}
}

func (c *PeriphController) pin(n int) (pgpio.PinIO, error) {
	if p, ok := c.pins[n]; ok {
		return p, nil
	}
	p := c.lookup(fmt.Sprintf("GPIO%d", n))
	if p == nil {
		return nil, fmt.Errorf("pin GPIO%d not found", n)
	}
	c.pins[n] = p
	return p, nil
}

// SetPinMode switches the pin direction and pull.
func (c *PeriphController) SetPinMode(n int, mode Mode) error {
	p, err := c.pin(n)
	if err != nil {
		return err
	}
	switch mode {
	case Input:
		err = p.In(pgpio.Float, pgpio.NoEdge)
	case InputPullUp:
		err = p.In(pgpio.PullUp, pgpio.NoEdge)
	case InputPullDown:
		err = p.In(pgpio.PullDown, pgpio.NoEdge)
	case Output:
		err = p.Out(pgpio.Level(c.levels[n]))
	default:
		return fmt.Errorf("pin %d: unsupported mode %v", n, mode)
	}
	if err != nil {
		return fmt.Errorf("set pin %d %v: %w", n, mode, err)
	}
	c.modes[n] = mode
	return nil
}

// DigitalWrite drives the pin. periph has no separate latch, so the level is
// only pushed to the pin once it is an output.
func (c *PeriphController) DigitalWrite(n int, level Level) error {
	c.levels[n] = level
	if c.modes[n] != Output {
		return nil
	}
	if err := c.pins[n].Out(pgpio.Level(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", n, err)
	}
	return nil
}

// DigitalRead samples the pin.
func (c *PeriphController) DigitalRead(n int) (Level, error) {
	p, err := c.pin(n)
	if err != nil {
		return Low, err
	}
	return Level(p.Read()), nil
}

// Close returns every touched pin to input with pull-down.
func (c *PeriphController) Close() error {
	nums := make([]int, 0, len(c.pins))
	for n := range c.pins {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var errs []error
	for _, n := range nums {
		if err := c.pins[n].In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("reset pin %d: %w", n, err))
		}
	}
	c.pins = make(map[int]pgpio.PinIO)
	c.modes = make(map[int]Mode)
	return errors.Join(errs...)
}
