package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Template placeholders.
const (
	// PlaceholderChord expands to the tokens joined with "+", e.g. alt+shift+1.
	PlaceholderChord = "{chord}"
	// PlaceholderKeys expands to the raw comma-separated list.
	PlaceholderKeys = "{keys}"
	// PlaceholderArgs, as a whole argument, expands to one argument per token.
	PlaceholderArgs = "{args}"
)

// DefaultTemplate presses chords through xdotool.
const DefaultTemplate = "xdotool key {chord}"

// ErrEmptyTemplate is returned for a template with no command.
var ErrEmptyTemplate = errors.New("command template is empty")

// Presser sends a key chord to the desktop.
type Presser interface {
	Press(ctx context.Context, tokens []string) error
}

// PresserFunc adapts a function to Presser.
type PresserFunc func(ctx context.Context, tokens []string) error

// Press calls f.
func (f PresserFunc) Press(ctx context.Context, tokens []string) error {
	return f(ctx, tokens)
}

// ExecPresser presses chords by running a command built from a template.
//
// The template is split on whitespace; no shell is involved.
type ExecPresser struct {
	argv    []string
	timeout time.Duration
}

// NewExecPresser parses template. A zero timeout means none.
func NewExecPresser(template string, timeout time.Duration) (*ExecPresser, error) {
	argv := strings.Fields(template)
	if len(argv) == 0 {
		return nil, ErrEmptyTemplate
	}
	return &ExecPresser{argv: argv, timeout: timeout}, nil
}

// Command returns the argv for tokens.
func (p *ExecPresser) Command(tokens []string) []string {
	chord := strings.Join(tokens, "+")
	keys := strings.Join(tokens, ",")

	out := make([]string, 0, len(p.argv)+len(tokens))
	for _, arg := range p.argv {
		if arg == PlaceholderArgs {
			out = append(out, tokens...)
			continue
		}
		arg = strings.ReplaceAll(arg, PlaceholderChord, chord)
		arg = strings.ReplaceAll(arg, PlaceholderKeys, keys)
		out = append(out, arg)
	}
	return out
}

// Press runs the command and returns its output as the error on failure.
func (p *ExecPresser) Press(ctx context.Context, tokens []string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	argv := p.Command(tokens)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(output.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
