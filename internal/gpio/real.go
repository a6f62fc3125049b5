//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/warthog618/go-gpiocdev"
)

// CdevController drives pins through the Linux GPIO character device.
// Lines are requested on first use and reconfigured in place afterwards.
type CdevController struct {
	chip   *gpiocdev.Chip
	lines  map[int]*gpiocdev.Line
	modes  map[int]Mode
	levels map[int]Level
}

// NewCdevController opens the named chip (e.g. "gpiochip0").
func NewCdevController(chipName string) (*CdevController, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &CdevController{
		chip:   chip,
		lines:  make(map[int]*gpiocdev.Line),
		modes:  make(map[int]Mode),
		levels: make(map[int]Level),
	}, nil
}

func (c *CdevController) line(pin int) (*gpiocdev.Line, error) {
	if l, ok := c.lines[pin]; ok {
		return l, nil
	}
	// Request as input with pull-down to match Pi boot defaults, then
	// reconfigure to whatever the caller asked for.
	l, err := c.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}
	c.lines[pin] = l
	return l, nil
}

// SetPinMode reconfigures the line direction and bias.
func (c *CdevController) SetPinMode(pin int, mode Mode) error {
	l, err := c.line(pin)
	if err != nil {
		return err
	}

	var opts []gpiocdev.LineConfigOption
	switch mode {
	case Input:
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsInput, gpiocdev.WithBiasDisabled}
	case InputPullUp:
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	case InputPullDown:
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	case Output:
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsOutput(levelValue(c.levels[pin]))}
	default:
		return fmt.Errorf("pin %d: unsupported mode %v", pin, mode)
	}

	if err := l.Reconfigure(opts...); err != nil {
		return fmt.Errorf("reconfigure pin %d as %v: %w", pin, mode, err)
	}
	c.modes[pin] = mode
	return nil
}

// DigitalWrite sets the output level. Writes to a line that is currently an
// input are remembered and applied when it becomes an output.
func (c *CdevController) DigitalWrite(pin int, level Level) error {
	c.levels[pin] = level
	if c.modes[pin] != Output {
		return nil
	}
	if err := c.lines[pin].SetValue(levelValue(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// DigitalRead returns the line level.
func (c *CdevController) DigitalRead(pin int) (Level, error) {
	l, err := c.line(pin)
	if err != nil {
		return Low, err
	}
	v, err := l.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v != 0, nil
}

// Close releases GPIO resources.
// Reconfigures every requested line to input with pull-down (matching
// Raspberry Pi boot defaults) before closing, so a keypad left half driven
// cannot upset the next boot.
func (c *CdevController) Close() error {
	var errs []error

	pins := make([]int, 0, len(c.lines))
	for pin := range c.lines {
		pins = append(pins, pin)
	}
	sort.Ints(pins)

	for _, pin := range pins {
		l := c.lines[pin]
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	c.lines = make(map[int]*gpiocdev.Line)
	c.modes = make(map[int]Mode)

	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

func levelValue(l Level) int {
	if l {
		return 1
	}
	return 0
}
