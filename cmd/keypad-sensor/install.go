package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/kardianos/osext"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/keypad-sensor/internal/config"
)

const serviceFile = `[Unit]
Description=Keypad Sensor
After=network-online.target
Wants=network-online.target

[Service]
EnvironmentFile=-/run/pi-helper.env
ExecStart={{.BinPath}} run -c {{.ConfigFile}}
Restart=always
RestartSec=5

[Install]
WantedBy=multi-user.target
`

var serviceTmpl = template.Must(template.New("service").Parse(serviceFile))

// Install locations, relative to the prefix.
const (
	installBinPath     = "usr/bin/keypad-sensor"
	installServicePath = "usr/lib/systemd/system/keypad-sensor.service"
)

// install copies the running binary under prefix, writes a systemd unit and,
// unless one exists and reset is false, the default config.
func install(prefix, configFile string, reset bool) error {
	if prefix == "" {
		prefix = "/"
	}
	self, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	return installFrom(self, prefix, configFile, reset)
}

func installFrom(self, prefix, configFile string, reset bool) error {
	binPath := filepath.Join(prefix, installBinPath)
	if err := copyFile(self, binPath, 0o755); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}

	// ExecStart runs inside the target root, so the unit names unprefixed paths.
	unitPath := filepath.Join(prefix, installServicePath)
	if err := writeFile(unitPath, 0o644, func(w io.Writer) error {
		return serviceTmpl.Execute(w, struct{ BinPath, ConfigFile string }{
			"/" + installBinPath, configFile,
		})
	}); err != nil {
		return fmt.Errorf("install service: %w", err)
	}

	confPath := filepath.Join(prefix, configFile)
	if _, err := os.Stat(confPath); err == nil && !reset {
		log.WithField("path", confPath).Infoln("keeping existing config")
		return nil
	}
	if err := writeFile(confPath, 0o644, func(w io.Writer) error {
		_, err := io.WriteString(w, config.DefaultConfig)
		return err
	}); err != nil {
		return fmt.Errorf("install config: %w", err)
	}
	log.WithFields(log.Fields{"binary": binPath, "service": unitPath, "config": confPath}).Infoln("installed")
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dst, perm, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeFile creates parent directories and truncates path before fill.
func writeFile(path string, perm os.FileMode, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
