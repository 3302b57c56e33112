package editor

import (
	"strings"
	"unicode/utf8"
)

// Buffer is a line-based text buffer with a single caret.
//
// The caret is kept as a (row, col) pair where col counts runes, and
// Offset converts it to the byte offset the classifier works with.
type Buffer struct {
	lines    []string
	row, col int
	modified bool
}

// NewBuffer creates a buffer holding text with the caret at the start.
func NewBuffer(text string) *Buffer {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return &Buffer{lines: strings.Split(text, "\n")}
}

// Text returns the full buffer contents.
func (b *Buffer) Text() string {
	return strings.Join(b.lines, "\n")
}

// LineCount returns the number of lines, always at least one.
func (b *Buffer) LineCount() int {
	return len(b.lines)
}

// Line returns line i, or "" when out of range.
func (b *Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i]
}

// Cursor returns the caret row and rune column.
func (b *Buffer) Cursor() (row, col int) {
	return b.row, b.col
}

// Modified reports unsaved changes.
func (b *Buffer) Modified() bool {
	return b.modified
}

// MarkSaved clears the modified flag.
func (b *Buffer) MarkSaved() {
	b.modified = false
}

// Offset returns the caret as a byte offset into Text.
func (b *Buffer) Offset() int {
	off := 0
	for i := 0; i < b.row; i++ {
		off += len(b.lines[i]) + 1
	}
	return off + b.byteCol(b.row, b.col)
}

// SetOffset places the caret at a byte offset, clamped to the buffer.
func (b *Buffer) SetOffset(off int) {
	if off < 0 {
		off = 0
	}
	for i, line := range b.lines {
		if off <= len(line) || i == len(b.lines)-1 {
			if off > len(line) {
				off = len(line)
			}
			b.row = i
			b.col = utf8.RuneCountInString(line[:off])
			return
		}
		off -= len(line) + 1
	}
}

func (b *Buffer) byteCol(row, col int) int {
	line := b.lines[row]
	i := 0
	for n := 0; n < col && i < len(line); n++ {
		_, size := utf8.DecodeRuneInString(line[i:])
		i += size
	}
	return i
}

func (b *Buffer) runeLen(row int) int {
	return utf8.RuneCountInString(b.lines[row])
}

// Insert inserts r at the caret and advances it.
func (b *Buffer) Insert(r rune) {
	if r == '\n' {
		b.Newline()
		return
	}
	line := b.lines[b.row]
	i := b.byteCol(b.row, b.col)
	b.lines[b.row] = line[:i] + string(r) + line[i:]
	b.col++
	b.modified = true
}

// InsertString inserts s at the caret.
func (b *Buffer) InsertString(s string) {
	for _, r := range s {
		b.Insert(r)
	}
}

// Newline splits the current line at the caret.
func (b *Buffer) Newline() {
	line := b.lines[b.row]
	i := b.byteCol(b.row, b.col)

	lines := make([]string, 0, len(b.lines)+1)
	lines = append(lines, b.lines[:b.row]...)
	lines = append(lines, line[:i], line[i:])
	lines = append(lines, b.lines[b.row+1:]...)
	b.lines = lines

	b.row++
	b.col = 0
	b.modified = true
}

// Backspace deletes the rune before the caret, joining lines at column 0.
// It returns false when there was nothing to delete.
func (b *Buffer) Backspace() bool {
	if b.col > 0 {
		line := b.lines[b.row]
		end := b.byteCol(b.row, b.col)
		start := b.byteCol(b.row, b.col-1)
		b.lines[b.row] = line[:start] + line[end:]
		b.col--
		b.modified = true
		return true
	}
	if b.row == 0 {
		return false
	}
	prev := b.lines[b.row-1]
	b.col = utf8.RuneCountInString(prev)
	b.lines[b.row-1] = prev + b.lines[b.row]
	b.lines = append(b.lines[:b.row], b.lines[b.row+1:]...)
	b.row--
	b.modified = true
	return true
}

// Delete removes the rune under the caret, joining the next line at the end.
func (b *Buffer) Delete() bool {
	if b.col < b.runeLen(b.row) {
		line := b.lines[b.row]
		start := b.byteCol(b.row, b.col)
		_, size := utf8.DecodeRuneInString(line[start:])
		b.lines[b.row] = line[:start] + line[start+size:]
		b.modified = true
		return true
	}
	if b.row == len(b.lines)-1 {
		return false
	}
	b.lines[b.row] += b.lines[b.row+1]
	b.lines = append(b.lines[:b.row+1], b.lines[b.row+2:]...)
	b.modified = true
	return true
}

// Left moves the caret one rune back, wrapping to the previous line.
func (b *Buffer) Left() bool {
	switch {
	case b.col > 0:
		b.col--
	case b.row > 0:
		b.row--
		b.col = b.runeLen(b.row)
	default:
		return false
	}
	return true
}

// Right moves the caret one rune forward, wrapping to the next line.
func (b *Buffer) Right() bool {
	switch {
	case b.col < b.runeLen(b.row):
		b.col++
	case b.row < len(b.lines)-1:
		b.row++
		b.col = 0
	default:
		return false
	}
	return true
}

// Up moves the caret one line up, clamping the column.
func (b *Buffer) Up() bool {
	if b.row == 0 {
		return false
	}
	b.row--
	b.col = min(b.col, b.runeLen(b.row))
	return true
}

// Down moves the caret one line down, clamping the column.
func (b *Buffer) Down() bool {
	if b.row == len(b.lines)-1 {
		return false
	}
	b.row++
	b.col = min(b.col, b.runeLen(b.row))
	return true
}

// Home moves the caret to the start of the line.
func (b *Buffer) Home() bool {
	if b.col == 0 {
		return false
	}
	b.col = 0
	return true
}

// End moves the caret to the end of the line.
func (b *Buffer) End() bool {
	n := b.runeLen(b.row)
	if b.col == n {
		return false
	}
	b.col = n
	return true
}
