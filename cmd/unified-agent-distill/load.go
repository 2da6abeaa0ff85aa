package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <build-dir> <project-path>",
	Short: "Find the most recent build for a project and print its path/context block",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		build, err := a.Load(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(build.ForClaude())
		fmt.Println(build.ContextBlock())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
