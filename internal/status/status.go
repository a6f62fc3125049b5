// Package status provides a thread-safe status tracker for the keypad-sensor daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/keypad-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Backend     string
	Rows        int
	Cols        int
	Keymap      string
}

// Button is the debounced state of one named button.
type Button struct {
	Name string
	On   bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Keys          []rune
	Buttons       []Button
	Baselined     bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets pressed keys, button states, baseline status, and event counts.
// Called from the run loop on every tick. The slices are copied.
func (t *Tracker) Update(keys []rune, buttons []Button, baselined bool, counts logic.EventCounts) {
	keys = append([]rune(nil), keys...)
	buttons = append([]Button(nil), buttons...)

	t.mu.Lock()
	t.snap.Keys = keys
	t.snap.Buttons = buttons
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// UpdateFromDetector copies the detector state into the tracker.
func (t *Tracker) UpdateFromDetector(d *logic.Detector) {
	names := d.ButtonNames()
	states := d.ButtonStates()
	buttons := make([]Button, len(names))
	for i, name := range names {
		buttons[i] = Button{Name: name, On: states[i]}
	}
	t.Update(d.PressedKeys(), buttons, d.IsBaselined(), d.Counts())
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
