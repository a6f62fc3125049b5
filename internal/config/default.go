package config

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/keypad-sensor.conf"

// DefaultConfig is the built-in configuration. It is decoded before any file,
// so a config file only needs the keys it changes.
const DefaultConfig = `# NOTE: Pins are BCM GPIO line offsets

PollIntervalMs = 10
# Publish a status heartbeat this often (0 disables)
HeartbeatMs = 900000
# Buttons must read unchanged this long before events are published
BaselineMs = 250
# cdev (Linux GPIO character device), periph (periph.io) or fake (no hardware)
Backend = "cdev"
Chip = "gpiochip0"

[Debounce]
	# A change is reported at once, then held for ActiveMs (pressed) or
	# InactiveMs (released)
	ActiveMs = 50
	InactiveMs = 50
	MinimumMs = 20
	# Require a change to persist this long before it is accepted (0 = never)
	ConfirmMs = 0

[Repeat]
	Enabled = true
	DelayMs = 500
	RateMs = 100

[MultiClick]
	Enabled = true
	MaxClickIntervalMs = 400
	# Uncomment to keep sending a long-pressed key every RepeatRateMs
	# SendRepeatedKeys = true
	RepeatRateMs = 200

[Stability]
	# Uncomment to require the primary key to hold still before it is used
	# Enabled = true
	PressDelayMs = 0
	PressStableMs = 30
	ReleaseDelayMs = 0
	ReleaseStableMs = 30

[Keypad]
	Rows = [5, 6, 13, 19]
	Cols = [12, 16, 20, 21]
	# One key per position, row by row. A space leaves the position unmapped.
	Keymap = "123A456B789C*0#D"
	# Uncomment to drive lines HIGH with pull-downs instead of LOW with pull-ups
	# ActiveHigh = true
	MaxKeys = 10

[[Button]]
	Name = "enter"
	Pin = 26
	# Uncomment to interpret pin HIGH as pressed instead of LOW (the default)
	# Invert = true

[MQTT]
	Broker = "tcp://192.168.1.200:1883"
	BufferSize = 100

[HTTP]
	# Empty disables the status server
	Addr = ":80"
`
