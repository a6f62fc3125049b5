// Package gpio provides pin control and button reading with hardware abstraction.
// The real implementations use the Linux GPIO character device (gpiocdev) or
// periph.io. The fakes allow testing keypads and buttons without hardware.
package gpio

import "fmt"

// Mode is a pin direction plus bias.
type Mode uint8

const (
	// Input is high impedance: the pin neither drives nor pulls.
	Input Mode = iota
	Output
	InputPullUp
	InputPullDown
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case InputPullUp:
		return "input-pullup"
	case InputPullDown:
		return "input-pulldown"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Level is a digital pin level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// PinController drives and samples individual pins by number (BCM numbering
// on a Raspberry Pi).
type PinController interface {
	SetPinMode(pin int, mode Mode) error
	DigitalWrite(pin int, level Level) error
	DigitalRead(pin int) (Level, error)

	// Close returns every touched pin to input with pull-down and releases it.
	Close() error
}

// Reader reads the logical state of the configured standalone buttons.
type Reader interface {
	// Read returns one value per button, true = pressed.
	Read() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default chip for the character device backend.
const DefaultChip = "gpiochip0"
