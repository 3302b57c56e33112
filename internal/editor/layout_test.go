package editor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/unicode/bidi"
)

func TestDirection(t *testing.T) {
	tests := []struct {
		line string
		want bidi.Direction
	}{
		{"", bidi.LeftToRight},
		{"hello", bidi.LeftToRight},
		{"שלום", bidi.RightToLeft},
		{"123 שלום", bidi.RightToLeft},
		{"$x$ שלום", bidi.LeftToRight},
		{"مرحبا", bidi.RightToLeft},
		{"  ...", bidi.LeftToRight},
	}

	for _, tt := range tests {
		if got := Direction(tt.line); got != tt.want {
			t.Errorf("Direction(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestRuneWidth(t *testing.T) {
	if got := RuneWidth('a'); got != 1 {
		t.Errorf("RuneWidth('a') = %d, want 1", got)
	}
	if got := RuneWidth('ש'); got != 1 {
		t.Errorf("RuneWidth('ש') = %d, want 1", got)
	}
	if got := RuneWidth('中'); got != 2 {
		t.Errorf("RuneWidth('中') = %d, want 2", got)
	}
}

func TestLayoutLine_LTR(t *testing.T) {
	cells, caret := layoutLine("a\tb", false, 10)

	want := []cell{{0, 'a'}, {1, ' '}, {2, 'b'}}
	if diff := cmp.Diff(want, cells, cmp.AllowUnexported(cell{})); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
	if got := caret(3); got != 3 {
		t.Errorf("caret(3) = %d, want 3", got)
	}
}

func TestLayoutLine_RTL(t *testing.T) {
	cells, caret := layoutLine("אב", true, 10)

	want := []cell{{9, 'א'}, {8, 'ב'}}
	if diff := cmp.Diff(want, cells, cmp.AllowUnexported(cell{})); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
	if got := caret(0); got != 9 {
		t.Errorf("caret(0) = %d, want 9", got)
	}
	if got := caret(2); got != 7 {
		t.Errorf("caret(2) = %d, want 7", got)
	}
}

func TestLayoutLine_Truncates(t *testing.T) {
	cells, caret := layoutLine("abcdef", false, 4)
	if len(cells) != 4 {
		t.Errorf("len(cells) = %d, want 4", len(cells))
	}
	if got := caret(6); got != 3 {
		t.Errorf("caret past width = %d, want 3", got)
	}
}
