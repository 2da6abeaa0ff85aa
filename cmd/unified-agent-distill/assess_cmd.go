package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var assessCmd = &cobra.Command{
	Use:   "assess <session-file>",
	Short: "Parse, chunk and assess a session file without budget-selecting a build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		chunks, err := a.ParseAndChunk(context.Background(), args[0], args[0])
		if err != nil {
			return err
		}

		results, err := a.Assess(context.Background(), chunks, func(completed, total int) {
			fmt.Fprintf(os.Stderr, "assessed %d/%d chunks\n", completed, total)
		})
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(assessCmd)
}
