package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/keypad-sensor/internal/clock"
	"github.com/sweeney/keypad-sensor/internal/config"
	"github.com/sweeney/keypad-sensor/internal/gpio"
	"github.com/sweeney/keypad-sensor/internal/logic"
	"github.com/sweeney/keypad-sensor/internal/matrix"
	"github.com/sweeney/keypad-sensor/internal/mqtt"
	"github.com/sweeney/keypad-sensor/internal/status"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// rig is the full input pipeline on simulated hardware: matrix switches and
// a button feed the scanner, the detector and a fake publisher.
type rig struct {
	t         *testing.T
	cfg       config.Config
	board     *gpio.FakeMatrix
	keypad    *matrix.Keypad
	buttons   *gpio.PinReader
	detector  *logic.Detector
	publisher *mqtt.FakePublisher
	ms        uint32
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{t: t, cfg: config.Default(), publisher: mqtt.NewFakePublisher()}
	r.board = gpio.NewFakeMatrix(r.cfg.Keypad.Rows, r.cfg.Keypad.Cols)
	settings := r.cfg.DebounceSettings()

	kp, err := matrix.New(r.board, clock.Func(func() uint32 { return r.ms }), r.cfg.MatrixConfig(settings))
	if err != nil {
		t.Fatalf("keypad: %v", err)
	}
	r.keypad = kp
	if r.buttons, err = gpio.NewPinReader(r.board, r.cfg.Buttons()); err != nil {
		t.Fatalf("buttons: %v", err)
	}
	r.detector = logic.NewDetector(r.cfg.DetectorConfig(settings), startTime)
	return r
}

// runTo polls every 10ms from the current time up to (not including) ms.
func (r *rig) runTo(ms uint32) {
	r.t.Helper()
	for ; r.ms < ms; r.ms += 10 {
		keys, err := r.keypad.Scan()
		if err != nil {
			r.t.Fatalf("%dms: scan: %v", r.ms, err)
		}
		buttons, err := r.buttons.Read()
		if err != nil {
			r.t.Fatalf("%dms: read buttons: %v", r.ms, err)
		}
		now := startTime.Add(time.Duration(r.ms) * time.Millisecond)
		for _, e := range r.detector.Process(logic.Input{Keys: keys, Buttons: buttons, Time: now}) {
			// publish failures must not stop the pipeline
			_ = r.publisher.Publish(e)
		}
	}
}

func equal(a, b []logic.EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestIntegrationFullFlow presses and releases one key and checks what
// reaches MQTT.
func TestIntegrationFullFlow(t *testing.T) {
	r := newRig(t)
	r.runTo(300)
	if !r.detector.IsBaselined() {
		t.Fatal("expected baseline by 300ms")
	}

	r.board.Press(2, 0) // '7'
	r.runTo(320)
	r.board.Release(2, 0)
	r.runTo(1000)

	want := []logic.EventType{logic.EventKeyDown, logic.EventKeyUp, logic.EventClick}
	if got := r.publisher.Types(); !equal(got, want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}

	// KEY_UP is held back until the press hold expires
	if got := r.publisher.Events[1].Timestamp.Sub(startTime); got != 350*time.Millisecond {
		t.Errorf("KEY_UP at %v, want 350ms", got)
	}
	// the click closes MaxClickIntervalMs after the press
	if got := r.publisher.Events[2].Timestamp.Sub(startTime); got != 700*time.Millisecond {
		t.Errorf("CLICK at %v, want 700ms", got)
	}

	for i, payload := range r.publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Fatalf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Keypad.Timestamp == "" || parsed.Keypad.Event == "" {
			t.Errorf("payload %d: missing timestamp or event: %s", i, payload)
		}
		if parsed.Keypad.Key != "7" || parsed.Keypad.Source != logic.SourceKeypad {
			t.Errorf("payload %d: got key %q source %q", i, parsed.Keypad.Key, parsed.Keypad.Source)
		}
	}
	var click mqtt.Payload
	json.Unmarshal(r.publisher.Payloads[2], &click)
	if click.Keypad.Count != 1 {
		t.Errorf("click count: got %d, want 1", click.Keypad.Count)
	}
}

// TestIntegrationNoEventsAtStartup verifies a key held at power-up produces
// nothing until it is released and pressed again.
func TestIntegrationNoEventsAtStartup(t *testing.T) {
	r := newRig(t)
	r.board.Press(0, 0)
	r.runTo(1000)
	if len(r.publisher.Events) != 0 {
		t.Fatalf("expected no events for a key held since startup, got %v", r.publisher.Types())
	}

	r.board.Release(0, 0)
	r.runTo(1200)
	r.board.Press(0, 0)
	r.runTo(1210)
	events := r.publisher.Events
	if len(events) == 0 || events[len(events)-1].Type != logic.EventKeyDown || events[len(events)-1].Key != '1' {
		t.Errorf("expected KEY_DOWN 1 after a fresh press, got %v", r.publisher.Types())
	}
}

// TestIntegrationBounceRejection chatters a contact inside the debounce hold.
func TestIntegrationBounceRejection(t *testing.T) {
	r := newRig(t)
	r.runTo(300)

	r.board.Press(1, 1) // '5'
	r.runTo(310)
	r.board.Release(1, 1)
	r.runTo(320)
	r.board.Press(1, 1)
	r.runTo(330)
	r.board.Release(1, 1)
	r.runTo(340)
	r.board.Press(1, 1)
	r.runTo(400)
	r.board.Release(1, 1)
	r.runTo(450)

	var downs, ups int
	for _, e := range r.publisher.Events {
		switch e.Type {
		case logic.EventKeyDown:
			downs++
		case logic.EventKeyUp:
			ups++
		}
	}
	if downs != 1 || ups != 1 {
		t.Errorf("expected one clean press, got %v", r.publisher.Types())
	}
}

// TestIntegrationDoubleClick checks two quick presses become one CLICK x2.
func TestIntegrationDoubleClick(t *testing.T) {
	r := newRig(t)
	r.runTo(300)

	r.board.Press(0, 0)
	r.runTo(320)
	r.board.Release(0, 0)
	r.runTo(450)
	r.board.Press(0, 0)
	r.runTo(470)
	r.board.Release(0, 0)
	r.runTo(1000)

	want := []logic.EventType{
		logic.EventKeyDown, logic.EventKeyUp,
		logic.EventKeyDown, logic.EventKeyUp,
		logic.EventClick,
	}
	if got := r.publisher.Types(); !equal(got, want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	if c := r.publisher.Events[4]; c.Count != 2 || c.Key != '1' {
		t.Errorf("click: got %+v", c)
	}
}

// TestIntegrationHoldRepeatsAndLongPress holds a key past the repeat delay.
func TestIntegrationHoldRepeatsAndLongPress(t *testing.T) {
	r := newRig(t)
	r.runTo(300)

	r.board.Press(3, 3) // 'D'
	r.runTo(1050)
	r.board.Release(3, 3)
	r.runTo(1200)

	counts := r.detector.Counts()
	if counts.KeyDown != 1 || counts.KeyUp != 1 {
		t.Errorf("down/up: got %+v", counts)
	}
	// repeats at 800, 900 and 1000
	if counts.KeyRepeat != 3 {
		t.Errorf("KeyRepeat: got %d, want 3", counts.KeyRepeat)
	}
	if counts.LongPress != 1 || counts.Click != 0 {
		t.Errorf("expected one LONG_PRESS and no CLICK, got %+v", counts)
	}
}

// TestIntegrationButtonAndKeyTogether shares one board between keypad and
// button.
func TestIntegrationButtonAndKeyTogether(t *testing.T) {
	r := newRig(t)
	r.runTo(300)

	pin := r.cfg.Button[0].Pin
	r.board.SetInput(pin, gpio.Low)
	r.board.Press(0, 1) // '2'
	r.runTo(310)

	want := []logic.EventType{logic.EventButtonOn, logic.EventKeyDown}
	if got := r.publisher.Types(); !equal(got, want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	if r.publisher.Events[0].Source != "enter" {
		t.Errorf("button source: got %q", r.publisher.Events[0].Source)
	}
}

// TestIntegrationPublishFailureDoesNotCrash keeps polling through a broker
// outage.
func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	r := newRig(t)
	r.publisher.PublishError = errors.New("connection refused")
	r.runTo(300)
	r.board.Press(0, 2)
	r.runTo(320)

	if len(r.publisher.Events) != 0 || r.publisher.Refused != 1 {
		t.Errorf("expected one refused publish, got %d recorded %d refused", len(r.publisher.Events), r.publisher.Refused)
	}
	if r.detector.Counts().KeyDown != 1 {
		t.Error("detector should still have seen the press")
	}

	r.publisher.PublishError = nil
	r.board.Release(0, 2)
	r.runTo(400)
	if got := r.publisher.Types(); len(got) == 0 || got[0] != logic.EventKeyUp {
		t.Errorf("expected KEY_UP after recovery, got %v", got)
	}
}

// TestIntegrationStartupThenShutdown publishes the lifecycle status events
// around some key activity.
func TestIntegrationStartupThenShutdown(t *testing.T) {
	r := newRig(t)
	tracker := status.NewTracker(startTime, r.cfg.StatusConfig())
	tracker.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tracker.Snapshot()
	if err := r.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}); err != nil {
		t.Fatalf("startup: %v", err)
	}

	r.runTo(300)
	r.board.Press(3, 1) // '0'
	r.runTo(320)
	tracker.UpdateFromDetector(r.detector)

	snap = tracker.Snapshot()
	if err := r.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventShutdown,
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventShutdown, "SIGTERM"),
	}); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if len(r.publisher.SystemEvents) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(r.publisher.SystemEvents))
	}

	var startup, shutdown status.StatusJSON
	if err := json.Unmarshal(r.publisher.SystemPayloads[0], &startup); err != nil {
		t.Fatalf("startup payload: %v", err)
	}
	if err := json.Unmarshal(r.publisher.SystemPayloads[1], &shutdown); err != nil {
		t.Fatalf("shutdown payload: %v", err)
	}

	if startup.Status.Event != mqtt.EventStartup || startup.Status.Ready {
		t.Errorf("startup: got event %q ready %v", startup.Status.Event, startup.Status.Ready)
	}
	if startup.Status.Config.Keymap != "123A456B789C*0#D" || startup.Status.Config.Rows != 4 {
		t.Errorf("startup config: got %+v", startup.Status.Config)
	}
	if startup.Status.Network == nil || startup.Status.Network.IP != "192.168.1.42" {
		t.Errorf("startup network: got %+v", startup.Status.Network)
	}

	s := shutdown.Status
	if s.Event != mqtt.EventShutdown || s.Reason != "SIGTERM" || !s.Ready {
		t.Errorf("shutdown: got %+v", s)
	}
	if len(s.Keys) != 1 || s.Keys[0] != "0" {
		t.Errorf("shutdown keys: got %v", s.Keys)
	}
	if s.Counts.KeyDown != 1 {
		t.Errorf("shutdown counts: got %+v", s.Counts)
	}
}
