package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unloadCmd = &cobra.Command{
	Use:   "unload",
	Short: "Clear the in-process last-build pointer used by report/status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.Unload()
		fmt.Println("unloaded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unloadCmd)
}
