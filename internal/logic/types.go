// Package logic turns polled keypad and button samples into input events.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/keypad-sensor/internal/debounce"
	"github.com/sweeney/keypad-sensor/internal/multiclick"
)

// EventType identifies an input event.
type EventType string

const (
	EventKeyDown   EventType = "KEY_DOWN"
	EventKeyUp     EventType = "KEY_UP"
	EventKeyRepeat EventType = "KEY_REPEAT"
	EventClick     EventType = "CLICK"
	EventLongPress EventType = "LONG_PRESS"
	EventButtonOn  EventType = "BUTTON_ON"
	EventButtonOff EventType = "BUTTON_OFF"
)

// SourceKeypad is the Source of every keypad event. Button events carry the
// button name instead.
const SourceKeypad = "keypad"

// Event is a detected input event to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Source    string
	// Key is set for keypad events.
	Key rune
	// Count, LongPress and Repeated are set for CLICK and LONG_PRESS.
	Count     int
	LongPress bool
	Repeated  bool
}

// Input represents a single poll of the hardware.
type Input struct {
	// Keys are the debounced keypad keys, in scan order.
	Keys []rune
	// Buttons are raw button levels, true = pressed (already inverted from
	// raw GPIO), in configuration order.
	Buttons []bool
	Time    time.Time
}

// Config selects the filters a Detector runs. A nil filter is disabled.
type Config struct {
	// Buttons names the discrete buttons, matching Input.Buttons.
	Buttons        []string
	ButtonDebounce *debounce.Settings[bool]

	Stability  *debounce.StabilitySettings[rune]
	Repeat     *debounce.RepeatSettings[rune]
	MultiClick *multiclick.Settings[rune]

	// BaselineWindow is how long the buttons must read unchanged before
	// events are emitted.
	BaselineWindow time.Duration
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	KeyDown   int
	KeyUp     int
	KeyRepeat int
	Click     int
	LongPress int
	ButtonOn  int
	ButtonOff int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
