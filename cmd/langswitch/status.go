package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
	"golang.org/x/term"

	"github.com/dshills/langswitch/internal/integration/control"
)

var errWorkerUnreachable = errors.New("worker unreachable")

var (
	statusJSON    bool
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the worker's control channel",
	Long: `Sends GET /status to the configured worker and reports the answer.
Output is human readable on a terminal and JSON otherwise.
Exits non-zero when the worker cannot be reached.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Always print JSON")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 2*time.Second, "Request timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := control.New(cfg.Host, cfg.Port, control.WithTimeout(statusTimeout))
	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()
	res := client.CheckHealth(ctx)

	out := cmd.OutOrStdout()
	if statusJSON || !isTerminal(out) {
		line, err := encodeResult(client.BaseURL(), res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, line)
	} else {
		printResult(out, client.BaseURL(), res)
	}

	if res.Transport() {
		return errWorkerUnreachable
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func encodeResult(url string, res control.Result) (string, error) {
	fields := []struct {
		path  string
		value any
	}{
		{"url", url},
		{"reachable", !res.Transport()},
		{"ok", res.OK},
		{"status_code", res.StatusCode},
		{"body", res.Body},
	}
	if res.Err != nil {
		fields = append(fields, struct {
			path  string
			value any
		}{"error", res.Err.Error()})
	}

	out := "{}"
	for _, f := range fields {
		var err error
		if out, err = sjson.Set(out, f.path, f.value); err != nil {
			return "", fmt.Errorf("encode %s: %w", f.path, err)
		}
	}
	return out, nil
}

func printResult(w io.Writer, url string, res control.Result) {
	switch {
	case res.OK:
		fmt.Fprintf(w, "worker at %s: %s\n", url, res.Body)
	case res.Transport():
		fmt.Fprintf(w, "worker at %s: unreachable (%v)\n", url, res.Err)
	default:
		fmt.Fprintf(w, "worker at %s: HTTP %d %s\n", url, res.StatusCode, res.Body)
	}
}
