package logic

import (
	"time"

	"github.com/sweeney/keypad-sensor/internal/clock"
	"github.com/sweeney/keypad-sensor/internal/debounce"
	"github.com/sweeney/keypad-sensor/internal/multiclick"
)

// Detector tracks input state and detects events.
type Detector struct {
	names  []string
	window time.Duration

	buttons     []*debounce.Debouncer[bool]
	buttonState []bool
	keys        []rune

	stability  *debounce.StabilityDebouncer[rune]
	repeater   *debounce.Repeater[rune]
	classifier *multiclick.Classifier[rune]
	// suppressed is a key already held when the baseline was taken. It is
	// kept away from the primary-key filters until released.
	suppressed rune

	// now is Input.Time as milliseconds since startTime; every state
	// machine reads it through a clock.Func.
	now uint32

	baselined    bool
	pending      []bool
	pendingSet   bool
	pendingSince time.Time

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a new event detector.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(cfg Config, startTime time.Time) *Detector {
	d := &Detector{
		names:         cfg.Buttons,
		window:        cfg.BaselineWindow,
		buttonState:   make([]bool, len(cfg.Buttons)),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	c := clock.Func(func() uint32 { return d.now })

	settings := cfg.ButtonDebounce
	if settings == nil {
		settings = debounce.DefaultSettings(false)
	}
	for range cfg.Buttons {
		d.buttons = append(d.buttons, debounce.New(c, settings))
	}
	if cfg.Stability != nil {
		d.stability = debounce.NewStability(c, cfg.Stability)
	}
	if cfg.Repeat != nil {
		d.repeater = debounce.NewRepeater(c, cfg.Repeat)
	}
	if cfg.MultiClick != nil {
		d.classifier = multiclick.New(c, cfg.MultiClick)
	}
	return d
}

// Process takes a new input sample and returns any events that should be emitted.
// Events are only returned after baseline is established. Within one sample
// they are ordered: button events, KEY_UP, KEY_DOWN, KEY_REPEAT, then
// CLICK or LONG_PRESS.
func (d *Detector) Process(input Input) []Event {
	d.now = uint32(input.Time.Sub(d.startTime).Milliseconds())

	if !d.baselined {
		d.observeBaseline(input)
		return nil // No events until baseline established
	}

	var events []Event
	emit := func(e Event) {
		e.Timestamp = input.Time
		if e.Source == "" {
			e.Source = SourceKeypad
		}
		events = append(events, e)
	}

	for i, deb := range d.buttons {
		on := deb.Debounce(buttonAt(input.Buttons, i))
		if on == d.buttonState[i] {
			continue
		}
		d.buttonState[i] = on
		typ := EventButtonOff
		if on {
			typ = EventButtonOn
		}
		emit(Event{Type: typ, Source: d.names[i]})
	}

	for _, k := range d.keys {
		if !containsRune(input.Keys, k) {
			emit(Event{Type: EventKeyUp, Key: k})
		}
	}
	for _, k := range input.Keys {
		if !containsRune(d.keys, k) {
			emit(Event{Type: EventKeyDown, Key: k})
		}
	}
	d.keys = append(d.keys[:0], input.Keys...)

	key := d.primary(input.Keys)
	if d.stability != nil {
		key = d.stability.Update(key)
	}
	if d.repeater != nil {
		if r := d.repeater.Repeat(key); r != 0 && d.repeater.Mode() == debounce.RepeatRepeating {
			emit(Event{Type: EventKeyRepeat, Key: r})
		}
	}
	if d.classifier != nil {
		if c, ok := d.classifier.Classify(key); ok {
			typ := EventClick
			if c.LongPressed {
				typ = EventLongPress
			}
			emit(Event{
				Type:      typ,
				Key:       c.Key,
				Count:     int(c.Count),
				LongPress: c.LongPressed,
				Repeated:  c.Repeated,
			})
		}
	}

	d.count(events)
	return events
}

// observeBaseline waits for the buttons to read unchanged for the baseline
// window, then seeds every filter with what it saw.
func (d *Detector) observeBaseline(input Input) {
	sample := make([]bool, len(d.buttons))
	for i := range sample {
		sample[i] = buttonAt(input.Buttons, i)
	}

	if !d.pendingSet || !equalBools(d.pending, sample) {
		// Start observing, or restart because a button changed
		d.pending = sample
		d.pendingSet = true
		d.pendingSince = input.Time
	}
	if input.Time.Sub(d.pendingSince) < d.window {
		return
	}

	d.baselined = true
	for i, deb := range d.buttons {
		deb.SetInitialValue(sample[i])
		d.buttonState[i] = sample[i]
	}
	d.keys = append(d.keys[:0], input.Keys...)
	if len(input.Keys) > 0 {
		d.suppressed = input.Keys[0]
	}
}

// primary returns the key fed to the stability, repeat and multi-click
// filters: the first reported key, or 0 when none is.
func (d *Detector) primary(keys []rune) rune {
	if d.suppressed != 0 && !containsRune(keys, d.suppressed) {
		d.suppressed = 0
	}
	if len(keys) == 0 || keys[0] == d.suppressed {
		return 0
	}
	return keys[0]
}

func (d *Detector) count(events []Event) {
	for _, e := range events {
		switch e.Type {
		case EventKeyDown:
			d.eventCounts.KeyDown++
		case EventKeyUp:
			d.eventCounts.KeyUp++
		case EventKeyRepeat:
			d.eventCounts.KeyRepeat++
		case EventClick:
			d.eventCounts.Click++
		case EventLongPress:
			d.eventCounts.LongPress++
		case EventButtonOn:
			d.eventCounts.ButtonOn++
		case EventButtonOff:
			d.eventCounts.ButtonOff++
		}
	}
}

func buttonAt(buttons []bool, i int) bool {
	return i < len(buttons) && buttons[i]
}

func containsRune(keys []rune, k rune) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}

func equalBools(a, b []bool) bool {
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

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// PressedKeys returns the keys reported by the last sample.
func (d *Detector) PressedKeys() []rune {
	return append([]rune(nil), d.keys...)
}

// ButtonStates returns the debounced button states, in configuration order.
func (d *Detector) ButtonStates() []bool {
	return append([]bool(nil), d.buttonState...)
}

// ButtonNames returns the configured button names.
func (d *Detector) ButtonNames() []string {
	return d.names
}

// Counts returns the event counts since startup.
func (d *Detector) Counts() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
