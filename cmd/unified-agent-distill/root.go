package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ronaldeddings/unified-agent/internal/app"
	"github.com/ronaldeddings/unified-agent/internal/config"
	"github.com/ronaldeddings/unified-agent/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "unified-agent-distill",
	Short: "Distill coding-assistant session history into replayable context",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config.yaml (defaults to the XDG config path)")
}

// newApp resolves config (.env, XDG path, auto-init, env overrides) and
// builds an *app.App for a single command invocation.
func newApp() (*app.App, error) {
	result, err := config.Bootstrap(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap config: %w", err)
	}
	logging.Configure(result.Config.LogFile)
	if result.Config.Debug {
		logging.SetLevel(logrus.DebugLevel)
	}
	return app.New(result.Config)
}
