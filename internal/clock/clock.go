// Package clock provides the wrapping millisecond counter every input state
// machine reads at the top of each poll.
//
// Values behave like an embedded millis() counter: they wrap at 2^32, so all
// elapsed-time arithmetic must go through Since (unsigned subtraction).
package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic, wrapping, millisecond-resolution counter.
type Clock interface {
	Millis() uint32
}

// Since returns the milliseconds elapsed from start to now, tolerating one
// wrap of the counter.
func Since(now, start uint32) uint32 {
	return now - start
}

// System is a Clock backed by the process monotonic clock.
type System struct {
	start time.Time
}

// NewSystem returns a System clock that reads 0 at construction.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Millis returns milliseconds since construction, truncated to 32 bits.
func (s *System) Millis() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

// Func adapts a plain function to the Clock interface.
type Func func() uint32

// Millis calls f.
func (f Func) Millis() uint32 {
	return f()
}

// Fake is a manually driven Clock for tests and simulations.
type Fake struct {
	mu  sync.Mutex
	now uint32
}

// NewFake returns a Fake reading start.
func NewFake(start uint32) *Fake {
	return &Fake{now: start}
}

// Millis returns the current fake time.
func (f *Fake) Millis() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to ms.
func (f *Fake) Set(ms uint32) {
	f.mu.Lock()
	f.now = ms
	f.mu.Unlock()
}

// Advance moves the clock forward by ms, wrapping like the hardware counter.
func (f *Fake) Advance(ms uint32) {
	f.mu.Lock()
	f.now += ms
	f.mu.Unlock()
}
