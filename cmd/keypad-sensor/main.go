// Command keypad-sensor scans a matrix keypad and standalone buttons and
// publishes key events to MQTT.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/keypad-sensor/internal/config"
)

var (
	configPath string
	logLevel   string

	pollFlag      time.Duration
	heartbeatFlag time.Duration
	brokerFlag    string
	httpFlag      string
	backendFlag   string

	installPrefix string
	installReset  bool

	mainCmd = &cobra.Command{
		Use:               "keypad-sensor",
		Short:             "Matrix keypad and button sensor publishing to MQTT",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE:              runDaemon,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Scan inputs and publish events (default)",
		RunE:  runDaemon,
	}
	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Print the keys and buttons currently pressed and exit",
		RunE:  runScan,
	}
	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Drive the detector from a simulated keypad in the terminal",
		RunE:  runSimulate,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the built-in default configuration",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.DefaultConfig)
		},
	}
	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install the binary, a systemd unit and a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return install(installPrefix, configPath, installReset)
		},
	}
)

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

// loadConfig reads the config file and applies command line overrides. The
// default path may be absent, in which case the built-in config is used.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		log.WithField("path", configPath).Infoln("no config file, using built-in defaults")
		c, err = config.Default(), nil
	}
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("poll") {
		c.PollIntervalMs = pollFlag.Milliseconds()
	}
	if flags.Changed("heartbeat") {
		c.HeartbeatMs = heartbeatFlag.Milliseconds()
	}
	if flags.Changed("broker") {
		c.MQTT.Broker = brokerFlag
	}
	if flags.Changed("http") {
		c.HTTP.Addr = httpFlag
	}
	if flags.Changed("backend") {
		c.Backend = backendFlag
	}

	if err := c.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// bindFlags registers the flags shared by every subcommand.
func bindFlags(pf *pflag.FlagSet) {
	pf.StringVarP(&configPath, "config", "c", config.DefaultPath, "Config path. The path to the configuration file")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	pf.DurationVar(&pollFlag, "poll", 10*time.Millisecond, "Polling interval, overrides the config file")
	pf.DurationVar(&heartbeatFlag, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable), overrides the config file")
	pf.StringVar(&brokerFlag, "broker", "", "MQTT broker address, overrides the config file")
	pf.StringVar(&httpFlag, "http", "", "HTTP status address (empty to disable), overrides the config file")
	pf.StringVar(&backendFlag, "backend", "", "GPIO backend (cdev, periph, fake), overrides the config file")
}

func main() {
	bindFlags(mainCmd.PersistentFlags())

	installCmd.Flags().BoolVar(&installReset, "reset", false, "Reset config. Resets configuration to default, even if a config file already exists")
	installCmd.Flags().StringVarP(&installPrefix, "prefix", "p", "", "Install prefix. Prefix to install directory, default is /")

	mainCmd.AddCommand(runCmd, scanCmd, simulateCmd, configCmd, installCmd)
	if err := mainCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
