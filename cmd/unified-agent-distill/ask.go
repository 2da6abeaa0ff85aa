package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and get a direct, distilled answer context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.Ask(context.Background(), args[0])
		for _, c := range result.Chunks {
			for _, ev := range c.Events {
				fmt.Println(ev.Content)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
