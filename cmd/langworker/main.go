// Package main is the entry point for langworker, the process that presses
// keyboard-language chords for langswitch.
//
// langswitch starts it as "<python_path> <script_path>", so it is usually
// configured as python_path = "env" and script_path = the langworker binary.
// Every flag defaults from a LANGWORKER_* variable for that reason:
// LANGWORKER_ADDR, LANGWORKER_COMMAND, LANGWORKER_TIMEOUT,
// LANGWORKER_LOG_LEVEL and LANGWORKER_DRY_RUN.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/langswitch/internal/logging"
	"github.com/dshills/langswitch/internal/worker"
)

var (
	addr     string
	command  string
	timeout  time.Duration
	logLevel string
	dryRun   bool
)

var rootCmd = &cobra.Command{
	Use:   "langworker",
	Short: "Serve the langswitch control channel and press key chords",
	Long: `Listens on a loopback address and answers:

  GET /status                       200 "Server is running"
  GET /press_shortcut?keys=a,b,c    runs --command, 200 "OK" or 500 with the error

In --command, {chord} expands to the keys joined with "+", {keys} to the
comma list and a lone {args} to one argument per key.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

const defaultTimeout = 3 * time.Second

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", envOr("LANGWORKER_ADDR", worker.DefaultAddr), "Listen address")
	rootCmd.Flags().StringVar(&command, "command", envOr("LANGWORKER_COMMAND", worker.DefaultTemplate), "Chord command template")
	rootCmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, "Per-press command timeout")
	rootCmd.Flags().StringVar(&logLevel, "log-level", envOr("LANGWORKER_LOG_LEVEL", "info"), "Log level")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log chords instead of running the command")
	rootCmd.PreRunE = applyEnv
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// stderr output marks the worker as degraded on the editor side.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v, ok := lookupEnv(key); ok {
		return v
	}
	return fallback
}

// applyEnv reads the typed LANGWORKER_* defaults. Flags given on the
// command line win. A malformed variable is an error.
func applyEnv(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if v, ok := lookupEnv("LANGWORKER_TIMEOUT"); ok && !flags.Changed("timeout") {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LANGWORKER_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("LANGWORKER_TIMEOUT: must be positive, got %s", d)
		}
		timeout = d
	}
	if v, ok := lookupEnv("LANGWORKER_DRY_RUN"); ok && !flags.Changed("dry-run") {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LANGWORKER_DRY_RUN: %w", err)
		}
		dryRun = b
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func run(cmd *cobra.Command, args []string) error {
	// Logs go to stdout: the supervisor treats any stderr line as an error.
	logger := logging.NewWithWriter(os.Stdout, logLevel).WithComponent("worker")
	defer func() { _ = logger.Sync() }()

	presser, err := newPresser(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.NewServer(addr, presser, logger).ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}

func newPresser(logger *logging.Logger) (worker.Presser, error) {
	if dryRun {
		return worker.PresserFunc(func(_ context.Context, tokens []string) error {
			logger.Info("press", "keys", strings.Join(tokens, ","))
			return nil
		}), nil
	}
	p, err := worker.NewExecPresser(command, timeout)
	if err != nil {
		return nil, err
	}
	logger.Debug("press command", "argv", p.Command([]string{"{keys}"}))
	return p, nil
}
