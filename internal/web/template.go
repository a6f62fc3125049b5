package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/keypad-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Keypad Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
table.grid { width: auto; }
table.grid td { width: 2em; height: 2em; text-align: center; border: 1px solid #888; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
td.pressed { background: #2a2; color: #fff; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Keypad Sensor</h1>

<h2>Keypad</h2>
{{if .Grid}}<table class="grid">
{{range .Grid}}<tr>{{range .}}<td{{if .Pressed}} class="pressed"{{end}}>{{.Label}}</td>{{end}}</tr>
{{end}}</table>{{end}}
<table>
<tr><th>Pressed</th><td id="keys">{{if .Pressed}}{{.Pressed}}{{else}}none{{end}}</td></tr>
{{range .Buttons}}<tr><th>{{.Name}}</th><td class="{{if .On}}on{{else}}off{{end}}">{{if .On}}ON{{else}}OFF{{end}}</td></tr>
{{end}}<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Key down</th><td>{{.Counts.KeyDown}}</td></tr>
<tr><th>Key up</th><td>{{.Counts.KeyUp}}</td></tr>
<tr><th>Key repeat</th><td>{{.Counts.KeyRepeat}}</td></tr>
<tr><th>Click</th><td>{{.Counts.Click}}</td></tr>
<tr><th>Long press</th><td>{{.Counts.LongPress}}</td></tr>
<tr><th>Button on</th><td>{{.Counts.ButtonOn}}</td></tr>
<tr><th>Button off</th><td>{{.Counts.ButtonOff}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type gridCell struct {
	Label   string
	Pressed bool
}

// keyGrid lays the keymap out row by row, marking pressed keys.
func keyGrid(cfg status.Config, pressed []rune) [][]gridCell {
	keymap := []rune(cfg.Keymap)
	if cfg.Rows <= 0 || cfg.Cols <= 0 || len(keymap) != cfg.Rows*cfg.Cols {
		return nil
	}
	down := make(map[rune]bool, len(pressed))
	for _, k := range pressed {
		down[k] = true
	}

	grid := make([][]gridCell, cfg.Rows)
	for r := range grid {
		grid[r] = make([]gridCell, cfg.Cols)
		for c := range grid[r] {
			k := keymap[r*cfg.Cols+c]
			if k == ' ' || k == 0 {
				continue
			}
			grid[r][c] = gridCell{Label: string(k), Pressed: down[k]}
		}
	}
	return grid
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Pressed string
		Grid    [][]gridCell
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Pressed:  string(snap.Keys),
		Grid:     keyGrid(snap.Config, snap.Keys),
	}
	return indexTmpl.Execute(w, data)
}
