package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/keypad-sensor/internal/sim"
)

func runSimulate(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := sim.New(c, time.Now())
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}

	// log lines would tear the screen
	out := log.StandardLogger().Out
	log.SetOutput(io.Discard)
	defer log.SetOutput(out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx, screen, c.PollInterval())
}
