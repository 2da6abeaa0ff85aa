package main

import (
	"context"
	"fmt"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"github.com/ronaldeddings/unified-agent/internal/logging"
	"github.com/ronaldeddings/unified-agent/internal/output"
)

var (
	buildSessionID string
	buildFormat    string
	buildOutPath   string
	buildOpen      bool
)

var buildCmd = &cobra.Command{
	Use:   "build <session-file>",
	Short: "Run the full pipeline and render the result in a target CLI's native format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := buildSessionID
		if sessionID == "" {
			sessionID = args[0]
		}

		ds, err := a.Run(context.Background(), sessionID, args[0], nil)
		if err != nil {
			return err
		}

		path, err := a.Build(ds, output.Format(buildFormat), buildOutPath, output.Options{})
		if err != nil {
			return err
		}
		fmt.Println(path)

		if buildOpen {
			if err := open.Run(path); err != nil {
				logging.WithError(err).Warnf("build: could not open %s", path)
			}
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildSessionID, "session-id", "", "override the session id (defaults to the file path)")
	buildCmd.Flags().StringVar(&buildFormat, "format", string(output.FormatClaudeConversation), "output format: claude-conversation, claude-summary, codex, gemini")
	buildCmd.Flags().StringVar(&buildOutPath, "out", "build.jsonl", "output file path")
	buildCmd.Flags().BoolVar(&buildOpen, "open", false, "open the rendered build in the OS default opener")
	rootCmd.AddCommand(buildCmd)
}
