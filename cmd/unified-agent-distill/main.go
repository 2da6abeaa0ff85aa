// Command unified-agent-distill is the CLI shell wiring cobra subcommands
// onto the internal pipeline packages (C27). No business logic lives here
// — every command delegates to internal/app.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
