package editor

import (
	"fmt"
	"path/filepath"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/langswitch/internal/status"
)

// StatusLine renders the bottom line: file, caret position, forced LTR
// marker, the last notice and the language label on the right.
type StatusLine struct {
	filename string
	modified bool
	line     int // 1-indexed
	col      int // 1-indexed
	ltr      bool
	message  string
	status   status.Status
}

// statusStyles maps displays to label styles.
var statusStyles = map[status.Display]tcell.Style{
	status.Off:          tcell.StyleDefault.Reverse(true),
	status.Disconnected: tcell.StyleDefault.Background(tcell.ColorGray).Foreground(tcell.ColorWhite),
	status.ServerError:  tcell.StyleDefault.Bold(true).Background(tcell.ColorRed).Foreground(tcell.ColorWhite),
	status.English:      tcell.StyleDefault.Bold(true).Background(tcell.ColorBlue).Foreground(tcell.ColorWhite),
	status.Hebrew:       tcell.StyleDefault.Bold(true).Background(tcell.ColorGreen).Foreground(tcell.ColorBlack),
}

var barStyle = tcell.StyleDefault.Reverse(true)

// Text returns the left part of the line.
func (s *StatusLine) Text() string {
	name := "[scratch]"
	if s.filename != "" {
		name = filepath.Base(s.filename)
	}
	if s.modified {
		name += " [+]"
	}
	text := fmt.Sprintf(" %s  %d:%d", name, s.line, s.col)
	if s.ltr {
		text += "  LTR"
	}
	if s.message != "" {
		text += "  " + s.message
	}
	return text
}

// Render draws the status line on row y.
func (s *StatusLine) Render(screen tcell.Screen, y, width int) {
	label := s.status.Label
	if label != "" {
		label = " " + label + " "
	}
	labelStart := width - len([]rune(label))

	x := 0
	for _, r := range s.Text() {
		w := RuneWidth(r)
		if x+w > labelStart {
			break
		}
		screen.SetContent(x, y, r, nil, barStyle)
		x += w
	}
	for ; x < labelStart; x++ {
		screen.SetContent(x, y, ' ', nil, barStyle)
	}

	style, ok := statusStyles[s.status.Display]
	if !ok {
		style = barStyle
	}
	for _, r := range label {
		if x >= 0 && x < width {
			screen.SetContent(x, y, r, nil, style)
		}
		x++
	}
}
