// Package multiclick classifies a key stream into single/double/triple clicks,
// long presses and auto-repeated long presses.
//
// A click burst is only reported once it is over: either the next click did
// not arrive within MaxClickIntervalMs, or a different key interrupted it. A
// key held past MaxClickIntervalMs is reported as a long press carrying the
// clicks counted so far.
package multiclick

import (
	"math"

	"github.com/sweeney/keypad-sensor/internal/clock"
)

// Mode is the classifier phase.
type Mode uint8

const (
	ModeIdle Mode = iota
	// ModeCountingWaitRelease: key is down, counting.
	ModeCountingWaitRelease
	// ModeCountingWaitPress: key is up, waiting for another click.
	ModeCountingWaitPress
	// ModeWaitRelease: long press reported, waiting for release.
	ModeWaitRelease
	// ModeSendRepeated: long press reported, repeating while held.
	ModeSendRepeated
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeCountingWaitRelease:
		return "counting-wait-release"
	case ModeCountingWaitPress:
		return "counting-wait-press"
	case ModeWaitRelease:
		return "wait-release"
	case ModeSendRepeated:
		return "send-repeated"
	default:
		return "unknown"
	}
}

// Settings configures a Classifier.
type Settings[T comparable] struct {
	MaxClickIntervalMs uint32
	// SendRepeatedKeys repeats a long-pressed key every RepeatRateMs instead
	// of waiting for its release.
	SendRepeatedKeys bool
	RepeatRateMs     uint32
	Inactive         T
}

// Click is one classified key emission.
type Click[T comparable] struct {
	Key         T
	Count       uint8
	LongPressed bool
	Repeated    bool
}

// Classifier is the multi-click state machine.
type Classifier[T comparable] struct {
	settings *Settings[T]
	clock    clock.Clock

	mode   Mode
	target T
	count  uint8
	// lastDown is the last key-down time while counting and the last
	// emission time in ModeSendRepeated.
	lastDown uint32
}

// New creates a Classifier.
func New[T comparable](c clock.Clock, s *Settings[T]) *Classifier[T] {
	return &Classifier[T]{settings: s, clock: c}
}

// Classify feeds the current key. It returns the classified click and true
// when something is emitted on this poll.
func (m *Classifier[T]) Classify(current T) (Click[T], bool) {
	now := m.clock.Millis()
	s := m.settings
	released := current == s.Inactive

	switch m.mode {
	case ModeIdle:
		if !released {
			m.begin(current, now)
		}

	case ModeCountingWaitRelease:
		switch {
		case current == m.target:
			if clock.Since(now, m.lastDown) < s.MaxClickIntervalMs {
				break
			}
			out := Click[T]{Key: m.target, Count: m.count, LongPressed: true}
			m.lastDown = now
			if s.SendRepeatedKeys {
				m.mode = ModeSendRepeated
			} else {
				m.mode = ModeWaitRelease
			}
			return out, true
		case released:
			m.mode = ModeCountingWaitPress
		default:
			return m.flush(current, now), true
		}

	case ModeCountingWaitPress:
		switch {
		case released:
			if clock.Since(now, m.lastDown) >= s.MaxClickIntervalMs {
				m.mode = ModeIdle
				return Click[T]{Key: m.target, Count: m.count}, true
			}
		case current == m.target:
			if m.count < math.MaxUint8 {
				m.count++
			}
			m.lastDown = now
			m.mode = ModeCountingWaitRelease
		default:
			return m.flush(current, now), true
		}

	case ModeWaitRelease, ModeSendRepeated:
		switch {
		case released:
			m.mode = ModeIdle
		case current != m.target:
			m.begin(current, now)
		case m.mode == ModeSendRepeated && clock.Since(now, m.lastDown) >= s.RepeatRateMs:
			m.lastDown = now
			return Click[T]{Key: m.target, Count: m.count, LongPressed: true, Repeated: true}, true
		}
	}
	return Click[T]{Key: s.Inactive}, false
}

func (m *Classifier[T]) begin(key T, now uint32) {
	m.target = key
	m.count = 1
	m.lastDown = now
	m.mode = ModeCountingWaitRelease
}

// flush reports the pending burst and starts counting key.
func (m *Classifier[T]) flush(key T, now uint32) Click[T] {
	out := Click[T]{Key: m.target, Count: m.count}
	m.begin(key, now)
	return out
}

// Reset abandons any pending burst.
func (m *Classifier[T]) Reset() {
	m.mode = ModeIdle
	m.count = 0
}

// Mode returns the current phase.
func (m *Classifier[T]) Mode() Mode { return m.mode }

// Pending returns the key being counted and its click count so far.
func (m *Classifier[T]) Pending() (T, uint8) {
	if m.mode == ModeIdle {
		return m.settings.Inactive, 0
	}
	return m.target, m.count
}
