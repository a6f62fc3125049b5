package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func runScan(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	hw, err := openHardware(c)
	if err != nil {
		return err
	}
	defer hw.Close()

	return printState(cmd.OutOrStdout(), hw, c.ButtonNames())
}

// printState reports one scan. A pressed key is accepted on first sight, so a
// single pass is enough.
func printState(w io.Writer, hw *hardware, names []string) error {
	var keys []rune
	if hw.keypad != nil {
		var err error
		if keys, err = hw.keypad.Scan(); err != nil {
			return fmt.Errorf("scan keypad: %w", err)
		}
	}
	buttons, err := hw.buttons.Read()
	if err != nil {
		return fmt.Errorf("read buttons: %w", err)
	}

	parts := []string{"keys: none"}
	if len(keys) > 0 {
		parts[0] = "keys: " + string(keys)
	}
	for i, on := range buttons {
		parts = append(parts, fmt.Sprintf("%s: %s", names[i], stateString(on)))
	}
	_, err = fmt.Fprintln(w, strings.Join(parts, ", "))
	return err
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
