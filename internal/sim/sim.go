// Package sim is a terminal keypad simulator. Typed keys close and open
// switches on an in-memory matrix; the real scanner and detector run against
// it and the resulting events are shown as a log.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/sweeney/keypad-sensor/internal/clock"
	"github.com/sweeney/keypad-sensor/internal/config"
	"github.com/sweeney/keypad-sensor/internal/gpio"
	"github.com/sweeney/keypad-sensor/internal/logic"
	"github.com/sweeney/keypad-sensor/internal/matrix"
)

// LogLines is how many events the log keeps.
const LogLines = 12

// canvas is the part of tcell.Screen that drawing needs.
type canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Clear()
}

// Sim holds the simulated hardware and the pipeline reading it.
type Sim struct {
	board   *gpio.FakeMatrix
	keypad  *matrix.Keypad
	buttons *gpio.PinReader
	names   []string
	invert  []bool
	pins    []int
	held    []bool

	det    *logic.Detector
	start  time.Time
	millis uint32

	keymap     []rune
	rows, cols int
	keys       []rune
	log        []string
}

// New wires a fake matrix and buttons according to c.
func New(c config.Config, start time.Time) (*Sim, error) {
	if !c.HasKeypad() {
		return nil, fmt.Errorf("simulator needs a keypad")
	}
	s := &Sim{
		board:  gpio.NewFakeMatrix(c.Keypad.Rows, c.Keypad.Cols),
		start:  start,
		keymap: c.Keymap(),
		rows:   len(c.Keypad.Rows),
		cols:   len(c.Keypad.Cols),
	}
	clk := clock.Func(func() uint32 { return s.millis })
	settings := c.DebounceSettings()

	kp, err := matrix.New(s.board, clk, c.MatrixConfig(settings))
	if err != nil {
		return nil, fmt.Errorf("keypad: %w", err)
	}
	s.keypad = kp

	wiring := c.Buttons()
	br, err := gpio.NewPinReader(s.board, wiring)
	if err != nil {
		return nil, fmt.Errorf("buttons: %w", err)
	}
	s.buttons = br
	for _, b := range wiring {
		s.names = append(s.names, b.Name)
		s.invert = append(s.invert, b.Invert)
		s.pins = append(s.pins, b.Pin)
		s.held = append(s.held, false)
	}

	s.det = logic.NewDetector(c.DetectorConfig(settings), start)
	return s, nil
}

// position finds the matrix position of a typed key. Letters match either
// case.
func (s *Sim) position(r rune) (row, col int, ok bool) {
	for i, k := range s.keymap {
		if k != 0 && (k == r || (k >= 'A' && k <= 'Z' && k+'a'-'A' == r)) {
			return i / s.cols, i % s.cols, true
		}
	}
	return 0, 0, false
}

// toggleButton flips button i between pressed and released.
func (s *Sim) toggleButton(i int) {
	s.held[i] = !s.held[i]
	// pressed reads Low unless inverted
	level := gpio.Level(s.held[i] == s.invert[i])
	s.board.SetInput(s.pins[i], level)
}

// handle applies one key press and reports whether the simulator should
// quit. Keypad keys toggle their switch; F1.. toggle buttons.
func (s *Sim) handle(key tcell.Key, r rune) bool {
	switch {
	case key == tcell.KeyEscape || key == tcell.KeyCtrlC:
		return true
	case key == tcell.KeyRune:
		if row, col, ok := s.position(r); ok {
			s.board.Toggle(row, col)
		}
	case key >= tcell.KeyF1 && key <= tcell.KeyF12:
		if i := int(key - tcell.KeyF1); i < len(s.held) {
			s.toggleButton(i)
		}
	}
	return false
}

// HandleEvent applies a terminal event.
func (s *Sim) HandleEvent(ev tcell.Event) bool {
	if k, ok := ev.(*tcell.EventKey); ok {
		return s.handle(k.Key(), k.Rune())
	}
	return false
}

// Step runs one poll: scan, read buttons, detect.
func (s *Sim) Step(now time.Time) ([]logic.Event, error) {
	s.millis = uint32(now.Sub(s.start).Milliseconds())

	keys, err := s.keypad.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	buttons, err := s.buttons.Read()
	if err != nil {
		return nil, fmt.Errorf("read buttons: %w", err)
	}
	s.keys = keys

	events := s.det.Process(logic.Input{Keys: keys, Buttons: buttons, Time: now})
	for _, e := range events {
		s.record(e)
	}
	return events, nil
}

func (s *Sim) record(e logic.Event) {
	line := fmt.Sprintf("%7.3fs %-10s", e.Timestamp.Sub(s.start).Seconds(), e.Type)
	if e.Source == logic.SourceKeypad {
		line += " " + string(e.Key)
	} else {
		line += " " + e.Source
	}
	if e.Count > 0 {
		line += fmt.Sprintf(" x%d", e.Count)
	}
	if e.Repeated {
		line += " (repeated)"
	}
	s.log = append(s.log, line)
	if len(s.log) > LogLines {
		s.log = s.log[len(s.log)-LogLines:]
	}
}

// Log returns the most recent event lines, oldest first.
func (s *Sim) Log() []string {
	return s.log
}

func drawText(c canvas, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		c.SetContent(x+i, y, r, nil, style)
	}
}

// Draw renders the keypad grid, buttons and event log.
func (s *Sim) Draw(c canvas) {
	c.Clear()
	plain := tcell.StyleDefault
	closed := plain.Reverse(true)
	active := plain.Foreground(tcell.ColorGreen).Bold(true)

	drawText(c, 0, 0, plain.Bold(true), "keypad-sensor simulator  (type keys to toggle, F1.. buttons, Esc quits)")

	down := make(map[rune]bool, len(s.keys))
	for _, k := range s.keys {
		down[k] = true
	}
	for r := 0; r < s.rows; r++ {
		for col := 0; col < s.cols; col++ {
			k := s.keymap[r*s.cols+col]
			label := ' '
			if k != 0 {
				label = k
			}
			style := plain
			if s.board.Pressed(r, col) {
				style = closed
			}
			if down[k] {
				style = style.Foreground(tcell.ColorGreen).Bold(true)
			}
			c.SetContent(2+col*4, 2+r*2, '[', nil, plain)
			c.SetContent(3+col*4, 2+r*2, label, nil, style)
			c.SetContent(4+col*4, 2+r*2, ']', nil, plain)
		}
	}

	y := 2 + s.rows*2
	for i, name := range s.names {
		style := plain
		state := "off"
		if s.held[i] {
			style = closed
		}
		if on := s.det.ButtonStates(); i < len(on) && on[i] {
			style = active
			state = "ON"
		}
		drawText(c, 2, y, style, fmt.Sprintf("F%d %s: %s", i+1, name, state))
		y++
	}

	y++
	drawText(c, 0, y, plain.Bold(true), "events")
	for i, line := range s.log {
		drawText(c, 2, y+1+i, plain, line)
	}
}

// Run drives the simulator on screen until the user quits or ctx ends.
func (s *Sim) Run(ctx context.Context, screen tcell.Screen, poll time.Duration) error {
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	events := make(chan tcell.Event)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if _, ok := ev.(*tcell.EventResize); ok {
				screen.Sync()
			}
			if s.HandleEvent(ev) {
				return nil
			}
		case now := <-ticker.C:
			if _, err := s.Step(now); err != nil {
				return err
			}
			s.Draw(screen)
			screen.Show()
		}
	}
}
