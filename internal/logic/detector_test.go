package logic

import (
	"testing"
	"time"

	"github.com/sweeney/keypad-sensor/internal/debounce"
	"github.com/sweeney/keypad-sensor/internal/multiclick"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return startTime.Add(time.Duration(ms) * time.Millisecond)
}

func testConfig() Config {
	return Config{
		Buttons:        []string{"door", "mode"},
		ButtonDebounce: &debounce.Settings[bool]{ActiveMs: 50, InactiveMs: 50, MinimumMs: 20},
		BaselineWindow: 250 * time.Millisecond,
	}
}

// baselined returns a detector that has seen idle inputs for the baseline
// window ending at 250ms.
func baselined(t *testing.T, cfg Config) *Detector {
	t.Helper()
	d := NewDetector(cfg, startTime)
	d.Process(Input{Buttons: []bool{false, false}, Time: at(0)})
	d.Process(Input{Buttons: []bool{false, false}, Time: at(250)})
	if !d.IsBaselined() {
		t.Fatal("detector should be baselined")
	}
	return d
}

// drive polls every 10ms over [from, to] and collects the events.
func drive(d *Detector, from, to int, keys func(ms int) []rune) []Event {
	var events []Event
	for ms := from; ms <= to; ms += 10 {
		events = append(events, d.Process(Input{Keys: keys(ms), Buttons: []bool{false, false}, Time: at(ms)})...)
	}
	return events
}

func held(key rune, from, to int) func(int) []rune {
	return func(ms int) []rune {
		if ms >= from && ms < to {
			return []rune{key}
		}
		return nil
	}
}

func ofType(events []Event, typ EventType) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestNewDetector(t *testing.T) {
	d := NewDetector(testConfig(), startTime)
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if d.IsBaselined() {
		t.Error("new detector should not be baselined")
	}
	if len(d.buttons) != 2 {
		t.Errorf("expected 2 button debouncers, got %d", len(d.buttons))
	}
	if d.stability != nil || d.repeater != nil || d.classifier != nil {
		t.Error("unset filters should be disabled")
	}
	if !d.lastHeartbeat.Equal(startTime) {
		t.Errorf("expected lastHeartbeat %v, got %v", startTime, d.lastHeartbeat)
	}
}

func TestBaselineEstablishment(t *testing.T) {
	d := NewDetector(testConfig(), startTime)

	// First sample - starts observation
	events := d.Process(Input{Buttons: []bool{true, false}, Time: at(0)})
	if len(events) != 0 {
		t.Errorf("expected no events during baseline, got %d", len(events))
	}

	// Before baseline window
	d.Process(Input{Buttons: []bool{true, false}, Time: at(200)})
	if d.IsBaselined() {
		t.Error("should not be baselined before the window")
	}

	events = d.Process(Input{Buttons: []bool{true, false}, Time: at(250)})
	if len(events) != 0 {
		t.Errorf("expected no events at baseline establishment, got %d", len(events))
	}
	if !d.IsBaselined() {
		t.Fatal("should be baselined after the window")
	}

	states := d.ButtonStates()
	if !states[0] || states[1] {
		t.Errorf("expected [true false], got %v", states)
	}
}

func TestBaselineResetOnChange(t *testing.T) {
	d := NewDetector(testConfig(), startTime)

	d.Process(Input{Buttons: []bool{true, false}, Time: at(0)})
	// Change state before the window completes
	d.Process(Input{Buttons: []bool{false, false}, Time: at(100)})

	d.Process(Input{Buttons: []bool{false, false}, Time: at(250)})
	if d.IsBaselined() {
		t.Error("should not be baselined, state changed during the window")
	}

	d.Process(Input{Buttons: []bool{false, false}, Time: at(350)})
	if !d.IsBaselined() {
		t.Error("should be baselined a full window after the change")
	}
}

func TestBaselineImmediateWithoutWindow(t *testing.T) {
	d := NewDetector(Config{}, startTime)
	d.Process(Input{Time: at(0)})
	if !d.IsBaselined() {
		t.Error("zero window should baseline on the first sample")
	}
}

func TestKeyDownAndUp(t *testing.T) {
	d := baselined(t, testConfig())

	steps := []struct {
		keys []rune
		want []Event
	}{
		{[]rune{'1'}, []Event{{Type: EventKeyDown, Key: '1'}}},
		{[]rune{'1'}, nil},
		{[]rune{'1', '2'}, []Event{{Type: EventKeyDown, Key: '2'}}},
		{[]rune{'2'}, []Event{{Type: EventKeyUp, Key: '1'}}},
		{[]rune{'3'}, []Event{{Type: EventKeyUp, Key: '2'}, {Type: EventKeyDown, Key: '3'}}},
		{nil, []Event{{Type: EventKeyUp, Key: '3'}}},
	}
	for i, s := range steps {
		ms := 300 + 10*i
		events := d.Process(Input{Keys: s.keys, Buttons: []bool{false, false}, Time: at(ms)})
		if len(events) != len(s.want) {
			t.Fatalf("step %d: expected %d events, got %+v", i, len(s.want), events)
		}
		for j, e := range events {
			w := s.want[j]
			if e.Type != w.Type || e.Key != w.Key {
				t.Errorf("step %d event %d: expected %s %q, got %s %q", i, j, w.Type, w.Key, e.Type, e.Key)
			}
			if e.Source != SourceKeypad {
				t.Errorf("step %d: expected source %q, got %q", i, SourceKeypad, e.Source)
			}
			if !e.Timestamp.Equal(at(ms)) {
				t.Errorf("step %d: wrong timestamp %v", i, e.Timestamp)
			}
		}
	}

	counts := d.Counts()
	if counts.KeyDown != 3 || counts.KeyUp != 3 {
		t.Errorf("expected 3 downs and 3 ups, got %+v", counts)
	}
}

func TestButtonDebounce(t *testing.T) {
	d := baselined(t, testConfig())

	events := d.Process(Input{Buttons: []bool{true, false}, Time: at(300)})
	if len(events) != 1 || events[0].Type != EventButtonOn || events[0].Source != "door" {
		t.Fatalf("expected BUTTON_ON door, got %+v", events)
	}

	// chatter inside the hold is ignored
	if events := d.Process(Input{Buttons: []bool{false, false}, Time: at(310)}); len(events) != 0 {
		t.Errorf("expected no events during hold, got %+v", events)
	}
	if events := d.Process(Input{Buttons: []bool{true, false}, Time: at(320)}); len(events) != 0 {
		t.Errorf("expected no events during hold, got %+v", events)
	}

	events = d.Process(Input{Buttons: []bool{false, true}, Time: at(350)})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	if events[0].Type != EventButtonOff || events[0].Source != "door" {
		t.Errorf("expected BUTTON_OFF door first, got %+v", events[0])
	}
	if events[1].Type != EventButtonOn || events[1].Source != "mode" {
		t.Errorf("expected BUTTON_ON mode second, got %+v", events[1])
	}
}

func TestMissingButtonSamplesReadReleased(t *testing.T) {
	d := baselined(t, testConfig())
	if events := d.Process(Input{Time: at(300)}); len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

func TestKeyRepeat(t *testing.T) {
	cfg := testConfig()
	cfg.Repeat = &debounce.RepeatSettings[rune]{DelayMs: 500, RateMs: 100}
	d := baselined(t, cfg)

	events := drive(d, 300, 1050, held('5', 300, 1050))
	repeats := ofType(events, EventKeyRepeat)
	// first emission at 300 is the key down, repeats at 800, 900, 1000
	if len(repeats) != 3 {
		t.Fatalf("expected 3 repeats, got %d: %+v", len(repeats), repeats)
	}
	for i, want := range []int{800, 900, 1000} {
		if !repeats[i].Timestamp.Equal(at(want)) {
			t.Errorf("repeat %d: expected at %dms, got %v", i, want, repeats[i].Timestamp.Sub(startTime))
		}
		if repeats[i].Key != '5' {
			t.Errorf("repeat %d: expected key 5, got %q", i, repeats[i].Key)
		}
	}
	if d.Counts().KeyRepeat != 3 {
		t.Errorf("expected KeyRepeat=3, got %d", d.Counts().KeyRepeat)
	}
}

func TestClickCounting(t *testing.T) {
	cfg := testConfig()
	cfg.MultiClick = &multiclick.Settings[rune]{MaxClickIntervalMs: 400}

	t.Run("single", func(t *testing.T) {
		d := baselined(t, cfg)
		clicks := ofType(drive(d, 300, 1000, held('7', 300, 350)), EventClick)
		if len(clicks) != 1 {
			t.Fatalf("expected 1 click, got %+v", clicks)
		}
		if clicks[0].Count != 1 || clicks[0].Key != '7' || !clicks[0].Timestamp.Equal(at(700)) {
			t.Errorf("unexpected click %+v", clicks[0])
		}
	})

	t.Run("double", func(t *testing.T) {
		d := baselined(t, cfg)
		keys := func(ms int) []rune {
			if (ms >= 300 && ms < 350) || (ms >= 400 && ms < 450) {
				return []rune{'7'}
			}
			return nil
		}
		clicks := ofType(drive(d, 300, 1000, keys), EventClick)
		if len(clicks) != 1 {
			t.Fatalf("expected 1 click, got %+v", clicks)
		}
		if clicks[0].Count != 2 || !clicks[0].Timestamp.Equal(at(800)) {
			t.Errorf("unexpected click %+v", clicks[0])
		}
	})
}

func TestLongPress(t *testing.T) {
	cfg := testConfig()
	cfg.MultiClick = &multiclick.Settings[rune]{MaxClickIntervalMs: 400}
	d := baselined(t, cfg)

	events := drive(d, 300, 1500, held('7', 300, 1200))
	if clicks := ofType(events, EventClick); len(clicks) != 0 {
		t.Errorf("expected no clicks, got %+v", clicks)
	}
	long := ofType(events, EventLongPress)
	if len(long) != 1 {
		t.Fatalf("expected 1 long press, got %+v", long)
	}
	if !long[0].LongPress || long[0].Repeated || long[0].Count != 1 || !long[0].Timestamp.Equal(at(700)) {
		t.Errorf("unexpected long press %+v", long[0])
	}
}

func TestStabilityFiltersShortTaps(t *testing.T) {
	cfg := testConfig()
	cfg.MultiClick = &multiclick.Settings[rune]{MaxClickIntervalMs: 400}
	cfg.Stability = &debounce.StabilitySettings[rune]{PressStableMs: 100, ReleaseStableMs: 100}
	d := baselined(t, cfg)

	keys := func(ms int) []rune {
		if (ms >= 300 && ms < 350) || (ms >= 400 && ms < 610) {
			return []rune{'3'}
		}
		return nil
	}
	events := drive(d, 300, 1200, keys)

	// raw key events are not filtered
	if downs := ofType(events, EventKeyDown); len(downs) != 2 {
		t.Errorf("expected 2 key downs, got %d", len(downs))
	}
	// the 50ms tap never became steady; the held press did at 500 and was
	// released at 710
	clicks := ofType(events, EventClick)
	if len(clicks) != 1 {
		t.Fatalf("expected 1 click, got %+v", clicks)
	}
	if clicks[0].Count != 1 || !clicks[0].Timestamp.Equal(at(900)) {
		t.Errorf("unexpected click %+v", clicks[0])
	}
}

func TestKeyHeldAtBaselineIsQuiet(t *testing.T) {
	cfg := testConfig()
	cfg.Repeat = &debounce.RepeatSettings[rune]{DelayMs: 100, RateMs: 50}
	cfg.MultiClick = &multiclick.Settings[rune]{MaxClickIntervalMs: 400}

	d := NewDetector(cfg, startTime)
	d.Process(Input{Keys: []rune{'5'}, Buttons: []bool{false, false}, Time: at(0)})
	d.Process(Input{Keys: []rune{'5'}, Buttons: []bool{false, false}, Time: at(250)})

	events := drive(d, 260, 1500, held('5', 0, 1000))
	if len(events) != 1 || events[0].Type != EventKeyUp || events[0].Key != '5' {
		t.Errorf("expected only KEY_UP for the held key, got %+v", events)
	}

	// pressed again, it is a normal key
	events = drive(d, 1510, 2000, held('5', 1510, 1550))
	if clicks := ofType(events, EventClick); len(clicks) != 1 {
		t.Errorf("expected 1 click after re-press, got %+v", events)
	}
}

func TestEventCountsIncrementOnTransition(t *testing.T) {
	cfg := testConfig()
	cfg.MultiClick = &multiclick.Settings[rune]{MaxClickIntervalMs: 400}
	d := baselined(t, cfg)

	drive(d, 300, 1000, held('1', 300, 350))
	d.Process(Input{Buttons: []bool{true, false}, Time: at(1100)})
	d.Process(Input{Buttons: []bool{false, false}, Time: at(1200)})

	want := EventCounts{KeyDown: 1, KeyUp: 1, Click: 1, ButtonOn: 1, ButtonOff: 1}
	if got := d.Counts(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	d := baselined(t, testConfig())

	if hb := d.CheckHeartbeat(startTime.Add(time.Hour), 0); hb != nil {
		t.Error("should return nil when interval is 0")
	}
	if hb := d.CheckHeartbeat(startTime.Add(time.Hour), -time.Minute); hb != nil {
		t.Error("should return nil when interval is negative")
	}
}

func TestCheckHeartbeatBeforeBaseline(t *testing.T) {
	d := NewDetector(testConfig(), startTime)
	d.Process(Input{Buttons: []bool{false, false}, Time: startTime})

	if hb := d.CheckHeartbeat(startTime.Add(time.Hour), 15*time.Minute); hb != nil {
		t.Error("should return nil before baseline")
	}
}

func TestCheckHeartbeatBeforeInterval(t *testing.T) {
	d := baselined(t, testConfig())

	if hb := d.CheckHeartbeat(startTime.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("should return nil before interval elapsed")
	}
}

func TestCheckHeartbeatUpdatesLastTime(t *testing.T) {
	d := baselined(t, testConfig())

	// First heartbeat
	t1 := startTime.Add(15 * time.Minute)
	hb1 := d.CheckHeartbeat(t1, 15*time.Minute)
	if hb1 == nil {
		t.Fatal("should return first heartbeat")
	}
	if !hb1.Timestamp.Equal(t1) {
		t.Errorf("expected timestamp %v, got %v", t1, hb1.Timestamp)
	}
	if hb1.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb1.Uptime)
	}

	// Check immediately after - should return nil
	if hb2 := d.CheckHeartbeat(t1.Add(time.Second), 15*time.Minute); hb2 != nil {
		t.Error("should not return heartbeat immediately after previous")
	}

	// Second heartbeat after interval from first
	if hb3 := d.CheckHeartbeat(t1.Add(15*time.Minute), 15*time.Minute); hb3 == nil {
		t.Fatal("should return second heartbeat")
	}
}

func TestHeartbeatContainsEventCounts(t *testing.T) {
	d := baselined(t, testConfig())

	drive(d, 300, 400, held('9', 300, 350))

	hb := d.CheckHeartbeat(startTime.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("should return heartbeat")
	}
	if hb.Counts.KeyDown != 1 || hb.Counts.KeyUp != 1 {
		t.Errorf("expected one down and one up, got %+v", hb.Counts)
	}
}
