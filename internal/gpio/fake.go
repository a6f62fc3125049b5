package gpio

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// FakeReader is a test double that returns scripted button samples.
type FakeReader struct {
	// Samples contains scripted button values to return.
	// Each call to Read() consumes the next sample.
	Samples [][]bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples [][]bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() ([]bool, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	out := make([]bool, len(sample))
	copy(out, sample)
	return out, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeBoard is an in-memory PinController. Pins can be wired together through
// closed switches (Connect) or forced from outside (SetInput). A pin reading
// through a closed switch sees the level of a connected output; otherwise it
// sees an external level, then its pull, then Low.
type FakeBoard struct {
	mu       sync.Mutex
	modes    map[int]Mode
	out      map[int]Level
	ext      map[int]Level
	switches map[[2]int]bool

	// Writes counts DigitalWrite calls.
	Writes int
	// ModeChanges counts SetPinMode calls.
	ModeChanges int

	// ReadError / WriteError / ModeError, if set, are returned by the
	// matching call.
	ReadError  error
	WriteError error
	ModeError  error

	Closed bool
}

// NewFakeBoard creates an empty FakeBoard.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{
		modes:    make(map[int]Mode),
		out:      make(map[int]Level),
		ext:      make(map[int]Level),
		switches: make(map[[2]int]bool),
	}
}

func switchKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Connect closes a switch between pins a and b.
func (f *FakeBoard) Connect(a, b int) {
	f.mu.Lock()
	f.switches[switchKey(a, b)] = true
	f.mu.Unlock()
}

// Disconnect opens the switch between pins a and b.
func (f *FakeBoard) Disconnect(a, b int) {
	f.mu.Lock()
	delete(f.switches, switchKey(a, b))
	f.mu.Unlock()
}

// SetInput forces the level seen on an input pin.
func (f *FakeBoard) SetInput(pin int, level Level) {
	f.mu.Lock()
	f.ext[pin] = level
	f.mu.Unlock()
}

// SetPinMode records the pin mode.
func (f *FakeBoard) SetPinMode(pin int, mode Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ModeError != nil {
		return f.ModeError
	}
	f.ModeChanges++
	f.modes[pin] = mode
	return nil
}

// DigitalWrite records the driven level. It is remembered even while the pin
// is an input and takes effect once it becomes an output.
func (f *FakeBoard) DigitalWrite(pin int, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes++
	f.out[pin] = level
	return nil
}

// DigitalRead resolves the level seen on pin.
func (f *FakeBoard) DigitalRead(pin int) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return Low, f.ReadError
	}
	mode, ok := f.modes[pin]
	if !ok {
		return Low, fmt.Errorf("pin %d not configured", pin)
	}
	if mode == Output {
		return f.out[pin], nil
	}
	for sw := range f.switches {
		other := -1
		switch pin {
		case sw[0]:
			other = sw[1]
		case sw[1]:
			other = sw[0]
		}
		if other >= 0 && f.modes[other] == Output {
			return f.out[other], nil
		}
	}
	if level, ok := f.ext[pin]; ok {
		return level, nil
	}
	return mode == InputPullUp, nil
}

// Mode returns the current mode of pin and whether it was ever configured.
func (f *FakeBoard) Mode(pin int) (Mode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.modes[pin]
	return m, ok
}

// Driving returns the pins currently in Output mode, sorted.
func (f *FakeBoard) Driving() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pins []int
	for pin, m := range f.modes {
		if m == Output {
			pins = append(pins, pin)
		}
	}
	sort.Ints(pins)
	return pins
}

// Close returns every pin to input with pull-down.
func (f *FakeBoard) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pin := range f.modes {
		f.modes[pin] = InputPullDown
	}
	f.Closed = true
	return nil
}

// FakeMatrix is a FakeBoard wired as a row/column switch grid.
type FakeMatrix struct {
	*FakeBoard
	Rows []int
	Cols []int
}

// NewFakeMatrix creates a grid with the given row and column pins.
func NewFakeMatrix(rows, cols []int) *FakeMatrix {
	return &FakeMatrix{FakeBoard: NewFakeBoard(), Rows: rows, Cols: cols}
}

// Press closes the switch at (row, col).
func (m *FakeMatrix) Press(row, col int) {
	m.Connect(m.Rows[row], m.Cols[col])
}

// Release opens the switch at (row, col).
func (m *FakeMatrix) Release(row, col int) {
	m.Disconnect(m.Rows[row], m.Cols[col])
}

// Toggle flips the switch at (row, col) and reports whether it is now closed.
func (m *FakeMatrix) Toggle(row, col int) bool {
	key := switchKey(m.Rows[row], m.Cols[col])
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.switches[key] {
		delete(m.switches, key)
		return false
	}
	m.switches[key] = true
	return true
}

// Pressed reports whether the switch at (row, col) is closed.
func (m *FakeMatrix) Pressed(row, col int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switches[switchKey(m.Rows[row], m.Cols[col])]
}
