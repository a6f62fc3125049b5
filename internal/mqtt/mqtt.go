// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sweeney/keypad-sensor/internal/logic"
)

// Topic is the MQTT topic for input events.
const Topic = "keypad/sensor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "keypad/sensor/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an input event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Keypad KeypadPayload `json:"keypad"`
}

// KeypadPayload contains the input event details.
type KeypadPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Key       string `json:"key,omitempty"`
	Source    string `json:"source"`
	Count     int    `json:"count,omitempty"`
	LongPress bool   `json:"long_press,omitempty"`
	Repeated  bool   `json:"repeated,omitempty"`
}

// FormatPayload creates the JSON payload for an input event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := KeypadPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Event:     string(event.Type),
		Source:    event.Source,
		Count:     event.Count,
		LongPress: event.LongPress,
		Repeated:  event.Repeated,
	}
	if event.Key != 0 {
		p.Key = string(event.Key)
	}
	return json.Marshal(Payload{Keypad: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// ErrUnnamedEvent is returned for a system event without an Event name.
var ErrUnnamedEvent = errors.New("system event has no name")

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	if event.Event == "" {
		return nil, ErrUnnamedEvent
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
