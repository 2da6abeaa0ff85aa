package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <build-file>",
	Short: "Store an existing build's assistant turns into the memory service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		build, err := a.Seed(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d turns from %s\n", len(build.Turns), build.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
