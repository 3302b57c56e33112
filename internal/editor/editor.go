// Package editor is a small terminal text editor that hosts the automatic
// language switcher.
//
// Every edit and caret move is handed to the controller as a snapshot, and
// the status line shows the controller's language label. Keys:
//
//	Ctrl+L  toggle automatic language switching
//	Ctrl+R  toggle forced LTR for the active line
//	Ctrl+S  save
//	Ctrl+Q  quit
//
// Lines whose first strong character is right-to-left are drawn right
// aligned. Forced LTR draws the caret line left-to-right regardless.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/langswitch/internal/autoswitch"
	"github.com/dshills/langswitch/internal/logging"
	"github.com/dshills/langswitch/internal/status"
	"github.com/dshills/langswitch/internal/syntax"
)

// Controller is the part of autoswitch.Controller the editor drives.
type Controller interface {
	Notify(snap syntax.Snapshot)
	Toggle() bool
	Status() status.Status
	OnStatus(fn func(status.Status))
	OnNotice(fn func(string))
}

// Interrupt payloads posted from observer goroutines.
type (
	noticeEvent string
	quitEvent   struct{}
)

// Editor owns the screen, the buffer and the caret.
//
// All fields are touched only by the goroutine running Run (or by the
// caller of HandleEvent in tests). Observers post interrupts instead.
type Editor struct {
	screen tcell.Screen
	ctrl   Controller
	parser syntax.Parser
	logger *logging.Logger

	buf  *Buffer
	path string
	top  int
	ltr  bool
	line StatusLine
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithParser sets the parser used for snapshots.
func WithParser(p syntax.Parser) Option {
	return func(e *Editor) {
		if p != nil {
			e.parser = p
		}
	}
}

// WithPath sets the file Ctrl+S writes to.
func WithPath(path string) Option {
	return func(e *Editor) {
		e.path = path
	}
}

// New creates an editor for buf and subscribes it to ctrl.
func New(screen tcell.Screen, ctrl Controller, buf *Buffer, opts ...Option) *Editor {
	if buf == nil {
		buf = NewBuffer("")
	}
	e := &Editor{
		screen: screen,
		ctrl:   ctrl,
		parser: syntax.MarkdownParser{},
		logger: logging.Nop(),
		buf:    buf,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.line.filename = e.path
	e.line.status = ctrl.Status()

	ctrl.OnStatus(func(s status.Status) {
		_ = screen.PostEvent(tcell.NewEventInterrupt(s))
	})
	ctrl.OnNotice(func(msg string) {
		_ = screen.PostEvent(tcell.NewEventInterrupt(noticeEvent(msg)))
	})
	return e
}

// Load reads path into a buffer. A missing file gives an empty buffer.
func Load(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewBuffer(""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewBuffer(string(data)), nil
}

// Buffer returns the edited buffer.
func (e *Editor) Buffer() *Buffer {
	return e.buf
}

// ForcedLTR reports whether the caret line is forced left-to-right.
func (e *Editor) ForcedLTR() bool {
	return e.ltr
}

// Run initializes the screen and processes events until the user quits or
// ctx is done. The screen is finalized on return.
func (e *Editor) Run(ctx context.Context) error {
	if err := e.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer e.screen.Fini()
	e.screen.EnablePaste()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = e.screen.PostEvent(tcell.NewEventInterrupt(quitEvent{}))
		case <-stop:
		}
	}()

	e.Draw()
	for {
		ev := e.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if !e.HandleEvent(ev) {
			e.logger.Debug("editor quit")
			return nil
		}
		e.Draw()
	}
}

// HandleEvent applies one screen event. It returns false when the editor
// should quit.
func (e *Editor) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return e.handleKey(ev)
	case *tcell.EventResize:
		e.screen.Sync()
	case *tcell.EventInterrupt:
		switch data := ev.Data().(type) {
		case status.Status:
			e.line.status = data
		case noticeEvent:
			e.line.message = string(data)
		case quitEvent:
			return false
		}
	}
	return true
}

func (e *Editor) handleKey(ev *tcell.EventKey) bool {
	b := e.buf
	changed := false

	switch ev.Key() {
	case tcell.KeyCtrlQ, tcell.KeyCtrlC:
		return false
	case tcell.KeyCtrlL:
		e.ctrl.Toggle()
		return true
	case tcell.KeyCtrlR:
		e.ltr = !e.ltr
		e.line.message = autoswitch.ForcedLTRNotice(e.ltr)
		return true
	case tcell.KeyCtrlS:
		e.save()
		return true
	case tcell.KeyEnter:
		b.Newline()
		changed = true
	case tcell.KeyTab:
		b.Insert('\t')
		changed = true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		changed = b.Backspace()
	case tcell.KeyDelete:
		changed = b.Delete()
	case tcell.KeyLeft:
		changed = b.Left()
	case tcell.KeyRight:
		changed = b.Right()
	case tcell.KeyUp:
		changed = b.Up()
	case tcell.KeyDown:
		changed = b.Down()
	case tcell.KeyHome:
		changed = b.Home()
	case tcell.KeyEnd:
		changed = b.End()
	case tcell.KeyRune:
		b.Insert(ev.Rune())
		changed = true
	}

	if changed {
		e.notify()
	}
	return true
}

// notify hands the current document and caret to the controller.
func (e *Editor) notify() {
	e.ctrl.Notify(syntax.NewTextSnapshot(e.buf.Text(), e.buf.Offset(), e.parser))
}

func (e *Editor) save() {
	if e.path == "" {
		e.line.message = "No file name"
		return
	}
	if err := os.WriteFile(e.path, []byte(e.buf.Text()), 0o644); err != nil {
		e.logger.Error("save failed", "path", e.path, "error", err)
		e.line.message = fmt.Sprintf("Save failed: %v", err)
		return
	}
	e.buf.MarkSaved()
	e.line.message = fmt.Sprintf("Wrote %s", e.path)
}

// Draw renders the buffer and status line.
func (e *Editor) Draw() {
	width, height := e.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}
	e.screen.Clear()

	rows := height - 1
	row, col := e.buf.Cursor()
	if row < e.top {
		e.top = row
	}
	if rows > 0 && row >= e.top+rows {
		e.top = row - rows + 1
	}

	cursorX, cursorY := 0, -1
	for y := 0; y < rows; y++ {
		i := e.top + y
		if i >= e.buf.LineCount() {
			break
		}
		text := e.buf.Line(i)
		rtl := isRTL(text)
		if i == row && e.ltr {
			rtl = false
		}
		cells, caret := layoutLine(text, rtl, width)
		for _, c := range cells {
			e.screen.SetContent(c.x, y, c.r, nil, tcell.StyleDefault)
		}
		if i == row {
			cursorX, cursorY = caret(col), y
		}
	}

	e.line.modified = e.buf.Modified()
	e.line.line = row + 1
	e.line.col = col + 1
	e.line.ltr = e.ltr
	e.line.Render(e.screen, height-1, width)

	if cursorY >= 0 {
		e.screen.ShowCursor(cursorX, cursorY)
	} else {
		e.screen.HideCursor()
	}
	e.screen.Show()
}
