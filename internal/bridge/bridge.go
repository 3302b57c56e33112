// Package bridge exposes the controller over a line-delimited JSON protocol,
// so an editor plugin written in any language can drive it over stdio.
//
// Input, one object per line:
//
//	{"event":"update","text":"...","caret":12,"doc_changed":true,"selection_set":false}
//	{"event":"toggle"}
//	{"event":"toggle_ltr"}
//	{"event":"status"}
//	{"event":"check"}
//
// The update caret counts UTF-16 code units, as CodeMirror and LSP clients
// report it. Send "caret_unit":"byte" to pass a UTF-8 byte offset instead.
//
// Output:
//
//	{"event":"status","display":"english","label":"Lang: EN",...}
//	{"event":"notice","message":"..."}
//	{"event":"error","message":"..."}
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"unicode/utf16"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/langswitch/internal/autoswitch"
	"github.com/dshills/langswitch/internal/logging"
	"github.com/dshills/langswitch/internal/status"
	"github.com/dshills/langswitch/internal/syntax"
)

// Event names.
const (
	EventUpdate    = "update"
	EventToggle    = "toggle"
	EventToggleLTR = "toggle_ltr"
	EventStatus    = "status"
	EventCheck     = "check"
	EventNotice    = "notice"
	EventError     = "error"
)

// Caret units accepted in update events.
const (
	CaretUTF16 = "utf16"
	CaretByte  = "byte"
)

// maxLine bounds one input line; whole documents travel in update events.
const maxLine = 16 * 1024 * 1024

// ErrMalformed is reported for lines that are not JSON objects.
var ErrMalformed = errors.New("malformed event")

// Controller is the part of autoswitch.Controller the bridge drives.
type Controller interface {
	Notify(snap syntax.Snapshot)
	Toggle() bool
	CheckHealth()
	Status() status.Status
	OnStatus(fn func(status.Status))
	OnNotice(fn func(string))
}

// Bridge translates protocol lines into controller calls.
type Bridge struct {
	ctrl   Controller
	parser syntax.Parser
	logger *logging.Logger

	mu  sync.Mutex
	out io.Writer
	ltr bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithParser sets the parser used for update snapshots.
func WithParser(p syntax.Parser) Option {
	return func(b *Bridge) {
		if p != nil {
			b.parser = p
		}
	}
}

// New creates a bridge writing events to out and subscribes it to ctrl.
func New(ctrl Controller, out io.Writer, opts ...Option) *Bridge {
	b := &Bridge{
		ctrl:   ctrl,
		parser: syntax.MarkdownParser{},
		logger: logging.Nop(),
		out:    out,
	}
	for _, opt := range opts {
		opt(b)
	}
	ctrl.OnStatus(func(s status.Status) { b.emit(b.encodeStatus(s)) })
	ctrl.OnNotice(func(msg string) { b.emitMessage(EventNotice, msg) })
	return b
}

// Serve reads events from r until EOF or ctx is done. Bad lines are
// answered with an error event and do not stop the loop.
func (b *Bridge) Serve(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	b.emit(b.encodeStatus(b.ctrl.Status()))
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := b.Handle(scanner.Bytes()); err != nil {
			b.logger.Warn("bridge event", "error", err)
			b.emitMessage(EventError, err.Error())
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}

// Handle processes one protocol line.
func (b *Bridge) Handle(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	if !gjson.ValidBytes(line) {
		return fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	msg := gjson.ParseBytes(line)
	if !msg.IsObject() {
		return fmt.Errorf("%w: not an object", ErrMalformed)
	}

	switch name := msg.Get("event").String(); name {
	case EventUpdate:
		return b.update(msg)
	case EventToggle:
		b.ctrl.Toggle()
	case EventToggleLTR:
		b.toggleLTR()
	case EventStatus:
		b.emit(b.encodeStatus(b.ctrl.Status()))
	case EventCheck:
		b.ctrl.CheckHealth()
	case "":
		return fmt.Errorf("%w: missing event", ErrMalformed)
	default:
		return fmt.Errorf("unknown event %q", name)
	}
	return nil
}

// update forwards document or selection changes. Other updates are ignored.
func (b *Bridge) update(msg gjson.Result) error {
	if !msg.Get("doc_changed").Bool() && !msg.Get("selection_set").Bool() {
		return nil
	}
	text := msg.Get("text")
	caret := msg.Get("caret")
	if !text.Exists() || !caret.Exists() {
		return fmt.Errorf("%w: update needs text and caret", ErrMalformed)
	}
	doc := text.String()
	offset := int(caret.Int())

	switch unit := msg.Get("caret_unit").String(); unit {
	case "", CaretUTF16:
		var err error
		if offset, err = utf16ToByte(doc, offset); err != nil {
			return err
		}
	case CaretByte:
		if offset < 0 || offset > len(doc) {
			return fmt.Errorf("caret %d outside document of %d bytes", offset, len(doc))
		}
	default:
		return fmt.Errorf("%w: unknown caret_unit %q", ErrMalformed, unit)
	}
	b.ctrl.Notify(syntax.NewTextSnapshot(doc, offset, b.parser))
	return nil
}

// utf16ToByte converts a UTF-16 code unit offset in s to a byte offset.
func utf16ToByte(s string, units int) (int, error) {
	if units < 0 {
		return 0, fmt.Errorf("caret %d outside document", units)
	}
	n := 0
	for i, r := range s {
		if n == units {
			return i, nil
		}
		n += utf16.RuneLen(r)
		if n > units {
			return 0, fmt.Errorf("caret %d splits a surrogate pair", units)
		}
	}
	if n == units {
		return len(s), nil
	}
	return 0, fmt.Errorf("caret %d outside document of %d UTF-16 units", units, n)
}

func (b *Bridge) toggleLTR() {
	b.mu.Lock()
	b.ltr = !b.ltr
	on := b.ltr
	b.mu.Unlock()

	b.emitMessage(EventNotice, autoswitch.ForcedLTRNotice(on))
	b.emit(b.encodeStatus(b.ctrl.Status()))
}

// ForcedLTR reports the presentation flag toggled by toggle_ltr.
func (b *Bridge) ForcedLTR() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ltr
}

func (b *Bridge) encodeStatus(s status.Status) []byte {
	b.mu.Lock()
	ltr := b.ltr
	b.mu.Unlock()

	out := []byte(`{}`)
	fields := []struct {
		path  string
		value any
	}{
		{"event", EventStatus},
		{"display", s.Display.String()},
		{"label", s.Label},
		{"healthy", s.Display.Healthy()},
		{"enabled", s.Inputs.Enabled},
		{"live", s.Inputs.Live},
		{"inside_math", s.Inputs.InsideMath},
		{"server_error", s.Inputs.ServerError},
		{"health", s.Inputs.Health.String()},
		{"ltr", ltr},
	}
	for _, f := range fields {
		var err error
		out, err = sjson.SetBytes(out, f.path, f.value)
		if err != nil {
			b.logger.Error("encode status", "field", f.path, "error", err)
		}
	}
	return out
}

func (b *Bridge) emitMessage(event, message string) {
	out, _ := sjson.SetBytes([]byte(`{}`), "event", event)
	out, _ = sjson.SetBytes(out, "message", message)
	b.emit(out)
}

func (b *Bridge) emit(line []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.out.Write(append(line, '\n')); err != nil {
		b.logger.Warn("write event", "error", err)
	}
}
