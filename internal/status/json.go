package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Keys          []string     `json:"keys"`
	Buttons       []ButtonJSON `json:"buttons"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ButtonJSON is the JSON representation of one button.
type ButtonJSON struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	KeyDown   int `json:"key_down"`
	KeyUp     int `json:"key_up"`
	KeyRepeat int `json:"key_repeat"`
	Click     int `json:"click"`
	LongPress int `json:"long_press"`
	ButtonOn  int `json:"button_on"`
	ButtonOff int `json:"button_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Backend     string `json:"backend"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	Keymap      string `json:"keymap"`
}

func buildInner(snap Snapshot) StatusInner {
	keys := make([]string, len(snap.Keys))
	for i, k := range snap.Keys {
		keys[i] = string(k)
	}
	buttons := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		buttons[i] = ButtonJSON{Name: b.Name, State: onOff(b.On)}
	}

	inner := StatusInner{
		Keys:          keys,
		Buttons:       buttons,
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			KeyDown:   snap.Counts.KeyDown,
			KeyUp:     snap.Counts.KeyUp,
			KeyRepeat: snap.Counts.KeyRepeat,
			Click:     snap.Counts.Click,
			LongPress: snap.Counts.LongPress,
			ButtonOn:  snap.Counts.ButtonOn,
			ButtonOff: snap.Counts.ButtonOff,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Backend:     snap.Config.Backend,
			Rows:        snap.Config.Rows,
			Cols:        snap.Config.Cols,
			Keymap:      snap.Config.Keymap,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
