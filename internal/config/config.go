// Package config loads the keypad-sensor TOML configuration and converts it
// into the settings each package consumes.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/keypad-sensor/internal/debounce"
	"github.com/sweeney/keypad-sensor/internal/gpio"
	"github.com/sweeney/keypad-sensor/internal/logic"
	"github.com/sweeney/keypad-sensor/internal/matrix"
	"github.com/sweeney/keypad-sensor/internal/multiclick"
	"github.com/sweeney/keypad-sensor/internal/status"
)

// Backends selectable with Backend.
const (
	BackendCdev   = "cdev"
	BackendPeriph = "periph"
	BackendFake   = "fake"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrDuplicatePin   = errors.New("pin used twice")
	ErrKeymapSize     = errors.New("keymap size does not match keypad")
	ErrDuplicateKey   = errors.New("key mapped twice")
)

type Config struct {
	PollIntervalMs int64
	HeartbeatMs    int64
	BaselineMs     int64
	Backend        string
	Chip           string

	Debounce   Debounce
	Repeat     Repeat
	MultiClick MultiClick
	Stability  Stability
	Keypad     Keypad
	Button     []Button
	MQTT       MQTT
	HTTP       HTTP
}

type Debounce struct {
	ActiveMs   uint32
	InactiveMs uint32
	MinimumMs  uint32
	ConfirmMs  uint32
}

type Repeat struct {
	Enabled bool
	DelayMs uint32
	RateMs  uint32
}

type MultiClick struct {
	Enabled            bool
	MaxClickIntervalMs uint32
	SendRepeatedKeys   bool
	RepeatRateMs       uint32
}

type Stability struct {
	Enabled         bool
	PressDelayMs    uint32
	PressStableMs   uint32
	ReleaseDelayMs  uint32
	ReleaseStableMs uint32
}

type Keypad struct {
	Rows       []int
	Cols       []int
	Keymap     string
	ActiveHigh bool
	MaxKeys    int
}

type Button struct {
	Name   string
	Pin    int
	Invert bool
}

type MQTT struct {
	Broker     string
	ClientID   string
	BufferSize int
}

type HTTP struct {
	Addr string
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	if _, err := toml.Decode(DefaultConfig, &c); err != nil {
		panic(fmt.Sprintf("built-in config: %v", err))
	}
	return c
}

// Load decodes the file at path over the built-in defaults. Keys missing from
// the file keep their default values, except buttons: only the buttons listed
// in the file are wired.
func Load(path string) (Config, error) {
	c := Default()
	c.Button = nil
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Backend {
	case BackendCdev, BackendPeriph, BackendFake:
	default:
		add("backend %q: %w", c.Backend, ErrUnknownBackend)
	}
	if c.PollIntervalMs <= 0 {
		add("PollIntervalMs must be positive, got %d", c.PollIntervalMs)
	}
	if c.HeartbeatMs < 0 {
		add("HeartbeatMs must not be negative, got %d", c.HeartbeatMs)
	}
	if c.BaselineMs < 0 {
		add("BaselineMs must not be negative, got %d", c.BaselineMs)
	}

	if len(c.Keypad.Rows) > 0 || len(c.Keypad.Cols) > 0 {
		if len(c.Keypad.Rows) == 0 || len(c.Keypad.Cols) == 0 {
			add("keypad needs both Rows and Cols")
		} else if n, want := len([]rune(c.Keypad.Keymap)), len(c.Keypad.Rows)*len(c.Keypad.Cols); n != want {
			add("keymap has %d keys, keypad has %d: %w", n, want, ErrKeymapSize)
		}
		seen := make(map[rune]bool)
		for _, k := range c.Keymap() {
			if k != 0 && seen[k] {
				add("keymap key %q: %w", k, ErrDuplicateKey)
			}
			seen[k] = true
		}
	}
	if c.Keypad.MaxKeys < 0 {
		add("keypad MaxKeys must not be negative, got %d", c.Keypad.MaxKeys)
	}

	pins := make(map[int]string)
	claim := func(pin int, owner string) {
		if prev, ok := pins[pin]; ok {
			add("pin %d (%s and %s): %w", pin, prev, owner, ErrDuplicatePin)
			return
		}
		pins[pin] = owner
	}
	for i, p := range c.Keypad.Rows {
		claim(p, fmt.Sprintf("keypad row %d", i))
	}
	for i, p := range c.Keypad.Cols {
		claim(p, fmt.Sprintf("keypad col %d", i))
	}

	names := make(map[string]bool)
	for i, b := range c.Button {
		if b.Name == "" {
			add("button #%d has no name", i)
		} else if names[b.Name] {
			add("button name %q used twice", b.Name)
		}
		names[b.Name] = true
		claim(b.Pin, "button "+b.Name)
	}

	if c.Repeat.Enabled && c.Repeat.RateMs == 0 {
		add("repeat RateMs must be positive when repeat is enabled")
	}
	if c.MultiClick.Enabled && c.MultiClick.MaxClickIntervalMs == 0 {
		add("multiclick MaxClickIntervalMs must be positive when multiclick is enabled")
	}
	if c.MultiClick.SendRepeatedKeys && c.MultiClick.RepeatRateMs == 0 {
		add("multiclick RepeatRateMs must be positive when SendRepeatedKeys is set")
	}
	if c.Debounce.MinimumMs > c.Debounce.ActiveMs || c.Debounce.MinimumMs > c.Debounce.InactiveMs {
		add("debounce MinimumMs (%d) exceeds ActiveMs/InactiveMs", c.Debounce.MinimumMs)
	}

	return errors.Join(errs...)
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// HasKeypad reports whether a keypad is wired.
func (c Config) HasKeypad() bool {
	return len(c.Keypad.Rows) > 0 && len(c.Keypad.Cols) > 0
}

// Keymap returns the keypad keymap with spaces unmapped.
func (c Config) Keymap() []rune {
	km := []rune(c.Keypad.Keymap)
	for i, k := range km {
		if k == ' ' {
			km[i] = 0
		}
	}
	return km
}

// DebounceSettings returns the shared switch debounce timing.
func (c Config) DebounceSettings() *debounce.Settings[bool] {
	return &debounce.Settings[bool]{
		ActiveMs:   c.Debounce.ActiveMs,
		InactiveMs: c.Debounce.InactiveMs,
		MinimumMs:  c.Debounce.MinimumMs,
		ConfirmMs:  c.Debounce.ConfirmMs,
		Inactive:   false,
	}
}

// MatrixConfig returns the scanner wiring. Every pool debouncer shares
// settings.
func (c Config) MatrixConfig(settings *debounce.Settings[bool]) matrix.Config {
	active := gpio.Low
	if c.Keypad.ActiveHigh {
		active = gpio.High
	}
	return matrix.Config{
		Rows:        c.Keypad.Rows,
		Cols:        c.Keypad.Cols,
		Keymap:      c.Keymap(),
		ActiveLevel: active,
		MaxKeys:     c.Keypad.MaxKeys,
		Settings:    settings,
	}
}

// Buttons returns the standalone button wiring.
func (c Config) Buttons() []gpio.Button {
	out := make([]gpio.Button, len(c.Button))
	for i, b := range c.Button {
		out[i] = gpio.Button{Name: b.Name, Pin: b.Pin, Invert: b.Invert}
	}
	return out
}

// ButtonNames returns the button names in configuration order.
func (c Config) ButtonNames() []string {
	var names []string
	for _, b := range c.Button {
		names = append(names, b.Name)
	}
	return names
}

// DetectorConfig returns the event detector setup. Disabled filters are nil.
func (c Config) DetectorConfig(settings *debounce.Settings[bool]) logic.Config {
	dc := logic.Config{
		ButtonDebounce: settings,
		BaselineWindow: time.Duration(c.BaselineMs) * time.Millisecond,
	}
	dc.Buttons = c.ButtonNames()
	if c.Stability.Enabled {
		dc.Stability = &debounce.StabilitySettings[rune]{
			PressDelayMs:    c.Stability.PressDelayMs,
			PressStableMs:   c.Stability.PressStableMs,
			ReleaseDelayMs:  c.Stability.ReleaseDelayMs,
			ReleaseStableMs: c.Stability.ReleaseStableMs,
		}
	}
	if c.Repeat.Enabled {
		dc.Repeat = &debounce.RepeatSettings[rune]{
			DelayMs: c.Repeat.DelayMs,
			RateMs:  c.Repeat.RateMs,
		}
	}
	if c.MultiClick.Enabled {
		dc.MultiClick = &multiclick.Settings[rune]{
			MaxClickIntervalMs: c.MultiClick.MaxClickIntervalMs,
			SendRepeatedKeys:   c.MultiClick.SendRepeatedKeys,
			RepeatRateMs:       c.MultiClick.RepeatRateMs,
		}
	}
	return dc
}

// StatusConfig returns the configuration shown on the status page.
func (c Config) StatusConfig() status.Config {
	return status.Config{
		PollMs:      c.PollIntervalMs,
		DebounceMs:  int64(c.Debounce.ActiveMs),
		HeartbeatMs: c.HeartbeatMs,
		Broker:      c.MQTT.Broker,
		HTTPAddr:    c.HTTP.Addr,
		Backend:     c.Backend,
		Rows:        len(c.Keypad.Rows),
		Cols:        len(c.Keypad.Cols),
		Keymap:      c.Keypad.Keymap,
	}
}
