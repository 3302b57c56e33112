package main

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/dshills/langswitch/internal/editor"
)

var editCmd = &cobra.Command{
	Use:   "edit [file]",
	Short: "Edit a file in the terminal with automatic language switching",
	Long: `Opens a minimal terminal editor. The status line shows the current
keyboard language label.

Keys:
  Ctrl+L  toggle automatic language switching
  Ctrl+R  toggle forced LTR for the active line
  Ctrl+S  save
  Ctrl+Q  quit

Logs are written only when log_file is configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	var path string
	buf := editor.NewBuffer("")
	if len(args) == 1 {
		path = args[0]
		if buf, err = editor.Load(path); err != nil {
			return err
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create terminal: %w", err)
	}

	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	ed := editor.New(screen, s.ctrl, buf,
		editor.WithPath(path),
		editor.WithParser(s.parser),
		editor.WithLogger(logger.WithComponent("editor")),
	)
	return s.run(cmd.Context(), func(ctx context.Context) error {
		return ed.Run(ctx)
	})
}
