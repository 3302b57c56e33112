package editor

import (
	"golang.org/x/text/unicode/bidi"
	"golang.org/x/text/width"
)

// Direction returns the base direction of line, taken from its first
// strong character. Lines without one are left-to-right.
func Direction(line string) bidi.Direction {
	for _, r := range line {
		p, _ := bidi.LookupRune(r)
		switch p.Class() {
		case bidi.L:
			return bidi.LeftToRight
		case bidi.R, bidi.AL:
			return bidi.RightToLeft
		}
	}
	return bidi.LeftToRight
}

// RuneWidth returns the number of cells r occupies.
func RuneWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// cell is one rune placed at a screen column.
type cell struct {
	x int
	r rune
}

// layoutLine places the runes of line across cols cells. Right-to-left
// lines are right aligned in reversed rune order. The returned caret
// function maps a rune column to a screen column.
func layoutLine(line string, rtl bool, cols int) ([]cell, func(col int) int) {
	runes := []rune(line)
	prefix := make([]int, len(runes)+1)
	for i, r := range runes {
		prefix[i+1] = prefix[i] + RuneWidth(r)
	}

	cells := make([]cell, 0, len(runes))
	for i, r := range runes {
		x := prefix[i]
		if rtl {
			x = cols - prefix[i+1]
		}
		if x < 0 || x+RuneWidth(r) > cols {
			continue
		}
		cells = append(cells, cell{x: x, r: display(r)})
	}

	caret := func(col int) int {
		col = max(0, min(col, len(runes)))
		x := prefix[col]
		if rtl {
			x = cols - prefix[col] - 1
		}
		return max(0, min(x, cols-1))
	}
	return cells, caret
}

// display maps control characters to a visible placeholder.
func display(r rune) rune {
	if r == '\t' {
		return ' '
	}
	if r < 0x20 || r == 0x7F {
		return '?'
	}
	return r
}

func isRTL(line string) bool {
	return Direction(line) == bidi.RightToLeft
}
