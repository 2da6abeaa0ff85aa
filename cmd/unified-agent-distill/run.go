package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runSessionID string

var runCmd = &cobra.Command{
	Use:   "run <session-file>",
	Short: "Parse, chunk, assess and budget-select a single session file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := runSessionID
		if sessionID == "" {
			sessionID = args[0]
		}

		ds, err := a.Run(context.Background(), sessionID, args[0], func(completed, total int) {
			fmt.Fprintf(os.Stderr, "assessed %d/%d chunks\n", completed, total)
		})
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(ds)
	},
}

func init() {
	runCmd.Flags().StringVar(&runSessionID, "session-id", "", "override the session id (defaults to the file path)")
	rootCmd.AddCommand(runCmd)
}
