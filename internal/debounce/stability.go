package debounce

import "github.com/sweeney/keypad-sensor/internal/clock"

// StabilityState is the phase of a StabilityDebouncer.
type StabilityState uint8

const (
	StateWaiting StabilityState = iota
	StateTimeDelay
	StateCheckStability
	StateSteady
)

func (s StabilityState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateTimeDelay:
		return "time-delay"
	case StateCheckStability:
		return "check-stability"
	case StateSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// StabilitySettings configures a StabilityDebouncer. Press timings apply when
// the candidate key is not Inactive, release timings when it is.
type StabilitySettings[T comparable] struct {
	PressDelayMs    uint32
	PressStableMs   uint32
	ReleaseDelayMs  uint32
	ReleaseStableMs uint32
	Inactive        T
}

func (s *StabilitySettings[T]) delay(k T) uint32 {
	if k == s.Inactive {
		return s.ReleaseDelayMs
	}
	return s.PressDelayMs
}

func (s *StabilitySettings[T]) stable(k T) uint32 {
	if k == s.Inactive {
		return s.ReleaseStableMs
	}
	return s.PressStableMs
}

// StabilityDebouncer is the two-phase filter: a candidate key is ignored for a
// delay window, then must read unchanged for a stability window before it
// becomes the steady key.
type StabilityDebouncer[T comparable] struct {
	settings *StabilitySettings[T]
	clock    clock.Clock

	state     StabilityState
	steady    T
	candidate T
	since     uint32

	// previous steady key, for the edge detectors
	last T
}

// NewStability creates a StabilityDebouncer whose steady key starts Inactive.
func NewStability[T comparable](c clock.Clock, s *StabilitySettings[T]) *StabilityDebouncer[T] {
	return &StabilityDebouncer[T]{
		settings: s,
		clock:    c,
		steady:   s.Inactive,
		last:     s.Inactive,
	}
}

// Update feeds one sample and returns the steady key.
func (d *StabilityDebouncer[T]) Update(key T) T {
	now := d.clock.Millis()
	d.last = d.steady

	switch d.state {
	case StateSteady:
		if key == d.steady {
			break
		}
		d.state = StateWaiting
		d.wait(key, now)

	case StateWaiting:
		d.wait(key, now)

	case StateTimeDelay:
		if clock.Since(now, d.since) >= d.settings.delay(d.candidate) {
			d.state = StateCheckStability
			d.since = now
		}

	case StateCheckStability:
		d.check(key, now)
	}
	return d.steady
}

func (d *StabilityDebouncer[T]) wait(key T, now uint32) {
	if key == d.steady {
		d.state = StateSteady
		return
	}
	d.candidate = key
	d.since = now
	if d.settings.delay(key) > 0 {
		d.state = StateTimeDelay
		return
	}
	d.state = StateCheckStability
	d.check(key, now)
}

func (d *StabilityDebouncer[T]) check(key T, now uint32) {
	if key != d.candidate {
		d.state = StateWaiting
		d.wait(key, now)
		return
	}
	if clock.Since(now, d.since) >= d.settings.stable(d.candidate) {
		d.steady = d.candidate
		d.state = StateSteady
	}
}

// SkipDelayWait ends a pending delay window now and starts the stability
// window.
func (d *StabilityDebouncer[T]) SkipDelayWait() {
	if d.state != StateTimeDelay {
		return
	}
	d.state = StateCheckStability
	d.since = d.clock.Millis()
}

// CancelDelayWait abandons a pending delay window.
func (d *StabilityDebouncer[T]) CancelDelayWait() {
	if d.state == StateTimeDelay {
		d.state = StateWaiting
	}
}

// KeyDown updates with key and returns the new steady key on the poll it
// became pressed, else Inactive.
func (d *StabilityDebouncer[T]) KeyDown(key T) T {
	cur := d.Update(key)
	if cur != d.last && cur != d.settings.Inactive {
		return cur
	}
	return d.settings.Inactive
}

// KeyUp updates with key and returns the previous steady key on the poll it
// was released or replaced, else Inactive.
func (d *StabilityDebouncer[T]) KeyUp(key T) T {
	cur := d.Update(key)
	if cur != d.last && d.last != d.settings.Inactive {
		return d.last
	}
	return d.settings.Inactive
}

// State returns the current phase.
func (d *StabilityDebouncer[T]) State() StabilityState { return d.state }

// Steady returns the steady key without polling.
func (d *StabilityDebouncer[T]) Steady() T { return d.steady }
