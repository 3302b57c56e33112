package syntax

import (
	"bytes"
	"context"
)

// Tags produced by MarkdownParser.
const (
	TagDocument  = "Document"
	TagText      = "text"
	TagCode      = "inline-code"
	TagCodeBlock = "code-block"
	TagMathSpan  = "math-inline"
	TagMathBlock = "math-block"
	TagMath      = "math"
	TagMathBegin = "formatting-math-begin"
	TagMathEnd   = "formatting-math-end"
)

// MarkdownParser recognises TeX math in Markdown prose.
//
// Recognised forms are $...$ and \(...\) (inline) and $$...$$ and \[...\]
// (display). Inline $ math must open before a non-space byte and close after
// one, must not be followed by a digit, and may not cross a blank line.
// Code spans and fenced code blocks are never math.
type MarkdownParser struct{}

// Parse implements Parser. It never fails.
func (MarkdownParser) Parse(_ context.Context, src []byte) (Node, error) {
	return ParseMarkdown(src), nil
}

// ParseMarkdown scans src into a flat Document tree.
func ParseMarkdown(src []byte) *Span {
	doc := &Span{Name: TagDocument, From: 0, To: len(src)}
	textStart := 0

	flush := func(end int) {
		if end > textStart {
			doc.Kids = append(doc.Kids, &Span{Name: TagText, From: textStart, To: end})
		}
	}

	for i := 0; i < len(src); {
		var node *Span
		next := 0

		switch {
		case lineStart(src, i) && bytes.HasPrefix(src[i:], []byte("```")):
			node, next = fencedCode(src, i)
		case src[i] == '`':
			node, next = codeSpan(src, i)
		case src[i] == '\\' && i+1 < len(src):
			switch src[i+1] {
			case '(':
				node, next = delimited(src, i, `\(`, `\)`, TagMathSpan, false)
			case '[':
				node, next = delimited(src, i, `\[`, `\]`, TagMathBlock, true)
			default:
				// Escaped byte, including \$.
				i += 2
				continue
			}
		case bytes.HasPrefix(src[i:], []byte("$$")):
			node, next = delimited(src, i, "$$", "$$", TagMathBlock, true)
			if node == nil {
				// Unterminated $$ is literal text; skip both bytes so the
				// second one is not taken as an inline opener.
				i += 2
				continue
			}
		case src[i] == '$':
			node, next = inlineDollar(src, i)
		}

		if node == nil {
			if next > i {
				i = next
			} else {
				i++
			}
			continue
		}
		flush(i)
		doc.Kids = append(doc.Kids, node)
		i = next
		textStart = next
	}

	flush(len(src))
	return doc
}

func lineStart(src []byte, i int) bool {
	return i == 0 || src[i-1] == '\n'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// mathNode builds a math region with delimiter and content children.
func mathNode(tag string, start, contentStart, contentEnd, end int) *Span {
	return &Span{
		Name: tag,
		From: start,
		To:   end,
		Kids: []*Span{
			{Name: TagMathBegin, From: start, To: contentStart},
			{Name: TagMath, From: contentStart, To: contentEnd},
			{Name: TagMathEnd, From: contentEnd, To: end},
		},
	}
}

func delimited(src []byte, i int, open, close, tag string, display bool) (*Span, int) {
	contentStart := i + len(open)
	rel := bytes.Index(src[contentStart:], []byte(close))
	if rel < 0 {
		return nil, 0
	}
	contentEnd := contentStart + rel
	if !display && bytes.Contains(src[contentStart:contentEnd], []byte("\n\n")) {
		return nil, 0
	}
	end := contentEnd + len(close)
	return mathNode(tag, i, contentStart, contentEnd, end), end
}

func inlineDollar(src []byte, i int) (*Span, int) {
	open := i + 1
	if open >= len(src) || isSpace(src[open]) {
		return nil, 0
	}

	for j := open; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n':
			if j+1 < len(src) && src[j+1] == '\n' {
				return nil, 0
			}
		case '$':
			if isSpace(src[j-1]) {
				continue
			}
			if j+1 < len(src) && isDigit(src[j+1]) {
				continue
			}
			return mathNode(TagMathSpan, i, open, j, j+1), j + 1
		}
	}
	return nil, 0
}

func codeSpan(src []byte, i int) (*Span, int) {
	n := 0
	for i+n < len(src) && src[i+n] == '`' {
		n++
	}
	fence := bytes.Repeat([]byte("`"), n)

	for j := i + n; j < len(src); {
		rel := bytes.Index(src[j:], fence)
		if rel < 0 {
			// An unmatched run is literal text in its entirety.
			return nil, i + n
		}
		k := j + rel
		run := 0
		for k+run < len(src) && src[k+run] == '`' {
			run++
		}
		if run == n {
			return &Span{Name: TagCode, From: i, To: k + n}, k + n
		}
		j = k + run
	}
	return nil, i + n
}

func fencedCode(src []byte, i int) (*Span, int) {
	lineEnd := bytes.IndexByte(src[i:], '\n')
	if lineEnd < 0 {
		return &Span{Name: TagCodeBlock, From: i, To: len(src)}, len(src)
	}

	for j := i + lineEnd + 1; j < len(src); {
		end := bytes.IndexByte(src[j:], '\n')
		line := src[j:]
		next := len(src)
		if end >= 0 {
			line = src[j : j+end]
			next = j + end + 1
		}
		if bytes.HasPrefix(line, []byte("```")) {
			stop := j + len(line)
			return &Span{Name: TagCodeBlock, From: i, To: stop}, stop
		}
		j = next
	}
	return &Span{Name: TagCodeBlock, From: i, To: len(src)}, len(src)
}
