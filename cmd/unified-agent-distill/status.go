package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Start the read-only introspection API (C26) and block",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if statusAddr != "" {
			a.Config.StatusAddr = statusAddr
		}
		if a.Config.StatusAddr == "" {
			return fmt.Errorf("status: no --addr given and no statusAddr configured")
		}

		srv := a.StatusServer()
		srv.Start()
		fmt.Printf("status API listening on %s\n", a.Config.StatusAddr)
		select {}
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "address to bind the status API (overrides config)")
	rootCmd.AddCommand(statusCmd)
}
