// Package debounce contains the poll-driven input filters: the debounce engine,
// the delay+stability debouncer and the key-repeat state machine.
//
// Nothing here blocks, sleeps or errors. Every filter is driven by one call per
// poll and reads its clock.Clock at the top of that call.
package debounce

// Mode is the phase of a Debouncer.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeConfirming
	ModeDebouncing
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeConfirming:
		return "confirming"
	case ModeDebouncing:
		return "debouncing"
	default:
		return "unknown"
	}
}

// Settings holds debounce timing. A single *Settings is meant to be shared by
// every Debouncer that uses the same timing; changes are seen by all of them on
// their next poll.
type Settings[T comparable] struct {
	// ActiveMs is how long a newly accepted active value is held.
	ActiveMs uint32
	// InactiveMs is how long a newly accepted inactive value is held.
	InactiveMs uint32
	// MinimumMs is the floor CancelDebouncing will not cut a hold below.
	MinimumMs uint32
	// ConfirmMs, when non-zero, is how long a new raw value must persist
	// before it is accepted.
	ConfirmMs uint32
	// Inactive is the released / idle value.
	Inactive T
}

// Default timings, in milliseconds.
const (
	DefaultActiveMs   = 50
	DefaultInactiveMs = 50
	DefaultMinimumMs  = 20
)

// DefaultSettings returns a fresh Settings with the default timings.
func DefaultSettings[T comparable](inactive T) *Settings[T] {
	return &Settings[T]{
		ActiveMs:   DefaultActiveMs,
		InactiveMs: DefaultInactiveMs,
		MinimumMs:  DefaultMinimumMs,
		Inactive:   inactive,
	}
}

func (s *Settings[T]) holdTime(v T) uint32 {
	if v == s.Inactive {
		return s.InactiveMs
	}
	return s.ActiveMs
}
