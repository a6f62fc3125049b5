package debounce

import "github.com/sweeney/keypad-sensor/internal/clock"

// Debouncer turns a raw, possibly chattering value into a stable effective
// value. The first accepted change is reported immediately and then held for
// ActiveMs or InactiveMs; with ConfirmMs set a change must also persist for the
// confirm window before it is accepted.
type Debouncer[T comparable] struct {
	settings *Settings[T]
	clock    clock.Clock

	effective T
	actual    T
	mode      Mode

	// candidate and confirmStart are only meaningful in ModeConfirming.
	candidate    T
	confirmStart uint32
	// holdStart and holdCut are only meaningful in ModeDebouncing. holdCut
	// caps the hold at MinimumMs after CancelDebouncing.
	holdStart uint32
	holdCut   bool

	waitForKeyup bool
}

// New creates a Debouncer reading c and using the shared settings s.
// Call SetInitialValue before the first Debounce.
func New[T comparable](c clock.Clock, s *Settings[T]) *Debouncer[T] {
	return &Debouncer[T]{settings: s, clock: c}
}

// SetInitialValue forces both the effective and raw value to v and returns to
// idle. The wait-for-keyup latch is left alone.
func (d *Debouncer[T]) SetInitialValue(v T) {
	d.effective = v
	d.actual = v
	d.mode = ModeIdle
}

// Debounce feeds one raw sample and returns the effective value.
func (d *Debouncer[T]) Debounce(raw T) T {
	now := d.clock.Millis()
	d.actual = raw
	d.step(raw, now)

	if d.waitForKeyup {
		if d.effective != d.settings.Inactive {
			return d.settings.Inactive
		}
		d.waitForKeyup = false
	}
	return d.effective
}

func (d *Debouncer[T]) step(raw T, now uint32) {
	switch d.mode {
	case ModeDebouncing:
		if clock.Since(now, d.holdStart) < d.holdTime() {
			return
		}
		d.mode = ModeIdle
		fallthrough

	case ModeIdle:
		if raw == d.effective {
			return
		}
		if d.settings.ConfirmMs == 0 {
			d.accept(raw, now)
			return
		}
		d.startConfirm(raw, now)

	case ModeConfirming:
		if clock.Since(now, d.confirmStart) < d.settings.ConfirmMs {
			return
		}
		if raw == d.candidate {
			d.accept(raw, now)
			return
		}
		// A flapping input restarts here forever and never gets accepted;
		// nothing held still for a whole window, so that is the right answer.
		d.startConfirm(raw, now)
	}
}

func (d *Debouncer[T]) startConfirm(v T, now uint32) {
	d.mode = ModeConfirming
	d.candidate = v
	d.confirmStart = now
}

func (d *Debouncer[T]) accept(v T, now uint32) {
	if v == d.effective {
		d.mode = ModeIdle
		return
	}
	d.effective = v
	d.holdStart = now
	d.holdCut = false
	d.mode = ModeDebouncing
}

func (d *Debouncer[T]) holdTime() uint32 {
	hold := d.settings.holdTime(d.effective)
	if d.holdCut && hold > d.settings.MinimumMs {
		return d.settings.MinimumMs
	}
	return hold
}

// FlagWaitForKeyup suppresses every active value until the effective value
// has settled back to inactive.
func (d *Debouncer[T]) FlagWaitForKeyup() {
	d.waitForKeyup = true
}

// CancelDebouncing shortens the current hold. If less than MinimumMs has
// elapsed the hold is rescheduled to end MinimumMs after it began; otherwise
// the hold ends now and the effective value snaps to the last raw sample.
func (d *Debouncer[T]) CancelDebouncing() {
	if d.mode != ModeDebouncing {
		return
	}
	if clock.Since(d.clock.Millis(), d.holdStart) < d.settings.MinimumMs {
		d.holdCut = true
		return
	}
	d.mode = ModeIdle
	d.effective = d.actual
}

// Effective returns the last accepted value without polling.
func (d *Debouncer[T]) Effective() T { return d.effective }

// Actual returns the last raw sample.
func (d *Debouncer[T]) Actual() T { return d.actual }

// Mode returns the current phase.
func (d *Debouncer[T]) Mode() Mode { return d.mode }

// WaitingForKeyup reports whether the keyup latch is armed.
func (d *Debouncer[T]) WaitingForKeyup() bool { return d.waitForKeyup }

// Settings returns the shared settings.
func (d *Debouncer[T]) Settings() *Settings[T] { return d.settings }

// SetSettings swaps the settings used from the next poll on.
func (d *Debouncer[T]) SetSettings(s *Settings[T]) { d.settings = s }
