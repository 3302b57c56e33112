package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/langswitch/internal/bridge"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Drive the switcher over line-delimited JSON on stdin/stdout",
	Long: `Reads editor events from stdin, one JSON object per line, and writes
status and notice events to stdout. Logs go to stderr unless log_file is set.

Example input:
  {"event":"update","text":"area $x^2$","caret":7,"doc_changed":true}
  {"event":"toggle"}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}

	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	b := bridge.New(s.ctrl, os.Stdout,
		bridge.WithParser(s.parser),
		bridge.WithLogger(logger.WithComponent("bridge")),
	)
	return s.run(cmd.Context(), func(ctx context.Context) error {
		// Reads on stdin cannot be interrupted; a signal abandons the reader.
		errc := make(chan error, 1)
		go func() { errc <- b.Serve(ctx, os.Stdin) }()
		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
			return nil
		}
	})
}
