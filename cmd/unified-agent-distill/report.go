package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the last build's distilled session stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ds, ok := a.Report()
		if !ok {
			fmt.Println("no build has completed yet")
			return nil
		}
		return json.NewEncoder(os.Stdout).Encode(ds)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
