package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/keypad-sensor/internal/gpio"
	"github.com/sweeney/keypad-sensor/internal/logic"
	"github.com/sweeney/keypad-sensor/internal/mqtt"
	"github.com/sweeney/keypad-sensor/internal/status"
	"github.com/sweeney/keypad-sensor/internal/web"
)

// scanner reports the debounced keys currently held on a keypad.
type scanner interface {
	Scan() ([]rune, error)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	hw, err := openHardware(c)
	if err != nil {
		return err
	}
	defer hw.Close()

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     c.MQTT.Broker,
		ClientID:   c.MQTT.ClientID,
		BufferSize: c.MQTT.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), c.StatusConfig())
	tracker.SetMQTTConnected(publisher.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warnln("failed to publish startup event")
	} else {
		log.Infoln("published startup event")
	}

	if c.HTTP.Addr != "" {
		srv := web.New(c.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Errorln("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", c.HTTP.Addr).Infoln("http status server listening")
	}

	log.WithFields(log.Fields{
		"poll":      c.PollInterval(),
		"debounce":  time.Duration(c.Debounce.ActiveMs) * time.Millisecond,
		"broker":    c.MQTT.Broker,
		"heartbeat": c.Heartbeat(),
		"backend":   c.Backend,
		"keypad":    fmt.Sprintf("%dx%d", len(c.Keypad.Rows), len(c.Keypad.Cols)),
		"buttons":   len(c.Button),
	}).Infoln("started")

	ticker := time.NewTicker(c.PollInterval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var keys scanner
	if hw.keypad != nil {
		keys = hw.keypad
	}
	detCfg := c.DetectorConfig(hw.settings)
	return runLoop(keys, hw.buttons, publisher, publisher, tracker, detCfg, c.Heartbeat(), time.Now, ticker.C, sigCh)
}

func runLoop(keys scanner, buttons gpio.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, cfg logic.Config, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	detector := logic.NewDetector(cfg, startTime)

	for {
		select {
		case s := <-sig:
			log.WithField("signal", s).Infoln("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     mqtt.EventShutdown,
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, mqtt.EventShutdown, signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.WithError(err).Warnln("failed to publish shutdown event")
			} else {
				log.Infoln("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			input, err := sample(keys, buttons)
			if err != nil {
				log.WithError(err).Warnln("input read error")
				continue
			}
			input.Time = t

			for _, event := range detector.Process(input) {
				eventLog(event).Infoln("event")
				if err := publisher.Publish(event); err != nil {
					// Don't crash on publish failure
					log.WithError(err).Warnln("publish error")
				}
			}

			if !detector.IsBaselined() {
				continue
			}

			if hbData := detector.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.WithFields(log.Fields{
					"uptime":     hbData.Uptime,
					"key_down":   hbData.Counts.KeyDown,
					"click":      hbData.Counts.Click,
					"long_press": hbData.Counts.LongPress,
					"button_on":  hbData.Counts.ButtonOn,
				}).Infoln("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     mqtt.EventHeartbeat,
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.UpdateFromDetector(detector)
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), mqtt.EventHeartbeat, "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.WithError(err).Warnln("heartbeat publish error")
				}
			}

			if tracker != nil {
				tracker.UpdateFromDetector(detector)
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

// sample reads one poll of every input. Either source may be nil.
func sample(keys scanner, buttons gpio.Reader) (logic.Input, error) {
	var in logic.Input
	var err error
	if keys != nil {
		if in.Keys, err = keys.Scan(); err != nil {
			return in, fmt.Errorf("scan keypad: %w", err)
		}
	}
	if buttons != nil {
		if in.Buttons, err = buttons.Read(); err != nil {
			return in, fmt.Errorf("read buttons: %w", err)
		}
	}
	return in, nil
}

func eventLog(e logic.Event) *log.Entry {
	fields := log.Fields{"type": e.Type, "source": e.Source}
	if e.Key != 0 {
		fields["key"] = string(e.Key)
	}
	if e.Count > 0 {
		fields["count"] = e.Count
	}
	if e.Repeated {
		fields["repeated"] = true
	}
	return log.WithFields(fields)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
