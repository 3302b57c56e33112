// Package main is the entry point for langswitch.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/langswitch/internal/config"
	"github.com/dshills/langswitch/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "langswitch",
	Short: "Switch the keyboard language by syntax context",
	Long: `langswitch watches the caret in a Markdown document and switches the
keyboard input language: English inside math regions, Hebrew elsewhere.

The key chords are sent by a separate worker process (see langworker),
reached over a loopback HTTP channel.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Override the configured log file")

	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(pressCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the logging flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %s: %w", configPath, err)
	}
	return applyFlags(cfg)
}

// applyFlags overlays the logging flags on cfg.
func applyFlags(cfg config.Config) (config.Config, error) {
	if logLevel != "" {
		if !logging.ValidLevel(logLevel) {
			return config.Config{}, fmt.Errorf("invalid log level %q", logLevel)
		}
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	return cfg, nil
}

// newLogger builds the process logger. When the terminal is owned by a
// full-screen host, logs go only to the configured file.
func newLogger(cfg config.Config, ownsTerminal bool) (*logging.Logger, error) {
	if ownsTerminal && cfg.LogFile == "" {
		return logging.Nop(), nil
	}
	return logging.New(logging.Config{Level: cfg.LogLevel, Path: cfg.LogFile})
}
