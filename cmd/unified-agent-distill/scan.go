package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/scanner"
)

var scanPlatform string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Enumerate on-disk coding-assistant session files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.Scan(scanner.Filter{Platform: event.Platform(scanPlatform)})
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(sessions)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanPlatform, "platform", "", "restrict to one platform (claude, codex, gemini)")
	rootCmd.AddCommand(scanCmd)
}
