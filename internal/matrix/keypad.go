// Package matrix scans an R×C switch matrix keypad.
//
// The axis with more lines is driven ("send") and the other is read
// ("recv"). A scan drives groups of send lines at once and bisects only the
// groups that show activity, so an idle keypad costs a single read pass.
// Detected scan codes are debounced through a small rotating pool of
// debouncers rather than one per key.
package matrix

import (
	"errors"
	"fmt"

	"github.com/sweeney/keypad-sensor/internal/clock"
	"github.com/sweeney/keypad-sensor/internal/debounce"
	"github.com/sweeney/keypad-sensor/internal/gpio"
)

// PoolSize is the number of scan codes debounced at once. Codes beyond it
// evict the oldest slot and lose debounce fidelity.
const PoolSize = 3

// DefaultMaxKeys bounds the keys reported by one scan.
const DefaultMaxKeys = 10

// ErrDuplicateKey is returned by New when two positions map to the same key.
var ErrDuplicateKey = errors.New("key mapped to more than one position")

// Common keymaps, row-major.
const (
	Keymap4x4 = "123A456B789C*0#D"
	Keymap4x3 = "123456789*0#"
)

// Config describes the keypad wiring.
type Config struct {
	Rows []int
	Cols []int
	// Keymap has one rune per scan code (row*len(Cols)+col). A zero rune
	// leaves the position unmapped.
	Keymap []rune
	// ActiveLevel is the level a driven send line puts on a closed switch.
	// Low (the default) pulls recv lines up, High pulls them down.
	ActiveLevel gpio.Level
	// MaxKeys bounds Scan's result; 0 means DefaultMaxKeys.
	MaxKeys int
	// Settings is shared by every pool debouncer; nil means defaults.
	Settings *debounce.Settings[bool]
}

type slot struct {
	code int
	deb  *debounce.Debouncer[bool]
}

// Keypad is a matrix keypad scanner. It assumes exclusive ownership of its
// pins; Scan is not reentrant.
type Keypad struct {
	pins        gpio.PinController
	rows, cols  []int
	send, recv  []int
	sendViaRows bool
	active      gpio.Level
	keymap      []rune
	maxKeys     int

	pool [PoolSize]slot
	next int

	seen    []int
	codes   []int
	pressed []rune
}

// New validates cfg, configures the recv lines and puts every send line in
// standby.
func New(pins gpio.PinController, c clock.Clock, cfg Config) (*Keypad, error) {
	if len(cfg.Rows) == 0 || len(cfg.Cols) == 0 {
		return nil, errors.New("keypad needs at least one row and one column")
	}
	if n := len(cfg.Rows) * len(cfg.Cols); len(cfg.Keymap) != n {
		return nil, fmt.Errorf("keymap has %d keys, want %d (%d rows x %d cols)", len(cfg.Keymap), n, len(cfg.Rows), len(cfg.Cols))
	}
	at := make(map[rune]int)
	for code, key := range cfg.Keymap {
		if key == 0 {
			continue
		}
		if prev, ok := at[key]; ok {
			return nil, fmt.Errorf("%q at scan codes %d and %d: %w", key, prev, code, ErrDuplicateKey)
		}
		at[key] = code
	}
	used := make(map[int]bool)
	for _, p := range append(append([]int(nil), cfg.Rows...), cfg.Cols...) {
		if used[p] {
			return nil, fmt.Errorf("pin %d used twice", p)
		}
		used[p] = true
	}

	k := &Keypad{
		pins:    pins,
		rows:    cfg.Rows,
		cols:    cfg.Cols,
		active:  cfg.ActiveLevel,
		keymap:  cfg.Keymap,
		maxKeys: cfg.MaxKeys,
	}
	if k.maxKeys <= 0 {
		k.maxKeys = DefaultMaxKeys
	}

	k.sendViaRows = len(cfg.Rows) >= len(cfg.Cols)
	if k.sendViaRows {
		k.send, k.recv = cfg.Rows, cfg.Cols
	} else {
		k.send, k.recv = cfg.Cols, cfg.Rows
	}

	settings := cfg.Settings
	if settings == nil {
		settings = debounce.DefaultSettings(false)
	}
	for i := range k.pool {
		k.pool[i] = slot{code: -1, deb: debounce.New(c, settings)}
	}

	pull := gpio.InputPullUp
	if k.active == gpio.High {
		pull = gpio.InputPullDown
	}
	for _, p := range k.recv {
		if err := pins.SetPinMode(p, pull); err != nil {
			return nil, fmt.Errorf("configure recv pin %d: %w", p, err)
		}
	}
	if err := k.standby(0, len(k.send)-1); err != nil {
		return nil, err
	}
	return k, nil
}

// Scan returns the logical keys currently pressed, after debouncing, in scan
// order. At most MaxKeys keys are returned; extras are dropped. Every send
// line is back in standby when Scan returns, error or not.
func (k *Keypad) Scan() ([]rune, error) {
	k.seen = k.seen[:0]
	if err := k.scanRange(0, len(k.send)-1, false); err != nil {
		if serr := k.standby(0, len(k.send)-1); serr != nil {
			err = errors.Join(err, serr)
		}
		return nil, err
	}

	k.codes = k.codes[:0]
	k.pressed = k.pressed[:0]
	for _, code := range k.seen {
		// unmapped positions never claim a pool slot
		if k.keymap[code] == 0 {
			continue
		}
		if k.debounceNew(code) {
			k.record(code)
		}
	}
	for i := range k.pool {
		code := k.pool[i].code
		if code < 0 || k.wasSeen(code) {
			continue
		}
		if k.debounceExisting(code, false) {
			k.record(code)
		}
	}

	out := make([]rune, len(k.pressed))
	copy(out, k.pressed)
	return out, nil
}

// scanRange resolves send lines [from, to]. driven reports whether the range
// is already active.
func (k *Keypad) scanRange(from, to int, driven bool) error {
	if !driven {
		for i := from; i <= to; i++ {
			if err := k.activate(k.send[i]); err != nil {
				return err
			}
		}
	}

	hit, err := k.anyActive()
	if err != nil {
		return err
	}
	if !hit {
		return k.standby(from, to)
	}

	if from == to {
		if err := k.readLine(from); err != nil {
			return err
		}
		return k.standby(from, to)
	}

	mid := from + (to-from)/2
	if err := k.standby(mid+1, to); err != nil {
		return err
	}
	if err := k.scanRange(from, mid, true); err != nil {
		return err
	}
	return k.scanRange(mid+1, to, false)
}

func (k *Keypad) activate(pin int) error {
	if err := k.pins.DigitalWrite(pin, k.active); err != nil {
		return fmt.Errorf("drive send pin %d: %w", pin, err)
	}
	if err := k.pins.SetPinMode(pin, gpio.Output); err != nil {
		return fmt.Errorf("drive send pin %d: %w", pin, err)
	}
	return nil
}

func (k *Keypad) standby(from, to int) error {
	for i := from; i <= to; i++ {
		if err := k.pins.SetPinMode(k.send[i], gpio.Input); err != nil {
			return fmt.Errorf("standby send pin %d: %w", k.send[i], err)
		}
	}
	return nil
}

func (k *Keypad) anyActive() (bool, error) {
	for _, p := range k.recv {
		level, err := k.pins.DigitalRead(p)
		if err != nil {
			return false, fmt.Errorf("read recv pin %d: %w", p, err)
		}
		if level == k.active {
			return true, nil
		}
	}
	return false, nil
}

func (k *Keypad) readLine(send int) error {
	for r, p := range k.recv {
		level, err := k.pins.DigitalRead(p)
		if err != nil {
			return fmt.Errorf("read recv pin %d: %w", p, err)
		}
		if level == k.active {
			k.seen = append(k.seen, k.code(send, r))
		}
	}
	return nil
}

func (k *Keypad) code(send, recv int) int {
	if k.sendViaRows {
		return send*len(k.cols) + recv
	}
	return recv*len(k.cols) + send
}

func (k *Keypad) wasSeen(code int) bool {
	for _, c := range k.seen {
		if c == code {
			return true
		}
	}
	return false
}

// debounceExisting debounces raw for a code already in the pool. Codes that
// were never tracked have nothing to debounce and return raw.
func (k *Keypad) debounceExisting(code int, raw bool) bool {
	for i := range k.pool {
		if k.pool[i].code == code {
			return k.pool[i].deb.Debounce(raw)
		}
	}
	return raw
}

// debounceNew debounces an active code, claiming the oldest pool slot for
// it if it is not tracked yet.
func (k *Keypad) debounceNew(code int) bool {
	for i := range k.pool {
		if k.pool[i].code == code {
			return k.pool[i].deb.Debounce(true)
		}
	}
	s := &k.pool[k.next]
	k.next = (k.next + 1) % PoolSize
	s.code = code
	s.deb.SetInitialValue(false)
	return s.deb.Debounce(true)
}

func (k *Keypad) record(code int) {
	key := k.keymap[code]
	if key == 0 || len(k.pressed) >= k.maxKeys {
		return
	}
	k.codes = append(k.codes, code)
	k.pressed = append(k.pressed, key)
}

// PressedCodes returns the scan codes behind the last Scan result.
func (k *Keypad) PressedCodes() []int {
	out := make([]int, len(k.codes))
	copy(out, k.codes)
	return out
}

// Rows returns the row pins.
func (k *Keypad) Rows() []int { return k.rows }

// Cols returns the column pins.
func (k *Keypad) Cols() []int { return k.cols }

// SendViaRows reports whether rows are the driven axis.
func (k *Keypad) SendViaRows() bool { return k.sendViaRows }

// Keymap returns the row-major keymap.
func (k *Keypad) Keymap() []rune { return k.keymap }
