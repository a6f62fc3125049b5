package debounce

import "github.com/sweeney/keypad-sensor/internal/clock"

// RepeatMode is the phase of a Repeater.
type RepeatMode uint8

const (
	RepeatIdle RepeatMode = iota
	RepeatFirstSent
	RepeatRepeating
)

// RepeatSettings configures keyboard-style auto-repeat.
type RepeatSettings[T comparable] struct {
	// DelayMs is the pause between the initial key and the first repeat.
	DelayMs uint32
	// RateMs is the interval between subsequent repeats.
	RateMs   uint32
	Inactive T
}

// Repeater emits a held key once, again after DelayMs, then every RateMs.
// Polls in between return Inactive.
type Repeater[T comparable] struct {
	settings *RepeatSettings[T]
	clock    clock.Clock

	mode       RepeatMode
	target     T
	lastAction uint32
}

// NewRepeater creates a Repeater.
func NewRepeater[T comparable](c clock.Clock, s *RepeatSettings[T]) *Repeater[T] {
	return &Repeater[T]{settings: s, clock: c}
}

// Repeat feeds the current (usually debounced) key.
func (r *Repeater[T]) Repeat(current T) T {
	inactive := r.settings.Inactive
	if current == inactive {
		r.mode = RepeatIdle
		return current
	}
	now := r.clock.Millis()

	switch r.mode {
	case RepeatIdle:
		r.target = current
		r.lastAction = now
		r.mode = RepeatFirstSent
		return current

	case RepeatFirstSent:
		if current != r.target {
			// different key: it is sent as a fresh press on the next poll
			r.mode = RepeatIdle
			break
		}
		if clock.Since(now, r.lastAction) >= r.settings.DelayMs {
			r.lastAction = now
			r.mode = RepeatRepeating
			return current
		}

	case RepeatRepeating:
		if current != r.target {
			r.mode = RepeatIdle
			break
		}
		if clock.Since(now, r.lastAction) >= r.settings.RateMs {
			r.lastAction = now
			return current
		}
	}
	return inactive
}

// Reset drops any held key.
func (r *Repeater[T]) Reset() { r.mode = RepeatIdle }

// Mode returns the current phase.
func (r *Repeater[T]) Mode() RepeatMode { return r.mode }
