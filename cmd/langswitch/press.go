package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/langswitch/internal/config"
	"github.com/dshills/langswitch/internal/integration/control"
	"github.com/dshills/langswitch/internal/switcher"
)

var pressCmd = &cobra.Command{
	Use:   "press <english|hebrew|keys>",
	Short: "Ask the worker to press a shortcut",
	Long: `Sends GET /press_shortcut to the configured worker. "english" and
"hebrew" use the configured shortcuts; anything else is a comma separated
key list such as "alt,shiftleft,2".`,
	Args: cobra.ExactArgs(1),
	RunE: runPress,
}

func runPress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	keys, err := shortcutFor(cfg, args[0])
	if err != nil {
		return err
	}

	client := control.New(cfg.Host, cfg.Port)
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	res := client.PressShortcut(ctx, keys.Tokens())
	if !res.OK {
		return fmt.Errorf("press %s: %w", keys, res.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pressed %s: %s\n", keys, res.Body)
	return nil
}

func shortcutFor(cfg config.Config, arg string) (config.Shortcut, error) {
	switch strings.ToLower(arg) {
	case switcher.English.String():
		return cfg.EnglishShortcut, nil
	case switcher.Hebrew.String():
		return cfg.HebrewShortcut, nil
	}
	return config.ParseShortcut(arg)
}
