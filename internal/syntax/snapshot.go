package syntax

import (
	"context"
	"fmt"
	"strings"
)

// Parser builds a syntax tree from source bytes.
type Parser interface {
	Parse(ctx context.Context, src []byte) (Node, error)
}

// Parser names accepted by ParserByName.
const (
	ParserBuiltin    = "builtin"
	ParserTreeSitter = "treesitter"
)

// ParserByName returns the parser registered under name. An empty name
// selects the built-in Markdown scanner.
func ParserByName(name string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ParserBuiltin:
		return MarkdownParser{}, nil
	case ParserTreeSitter:
		return NewMarkdownTreeSitter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParser, name)
	}
}

// Snapshot is an immutable view of an editor: its syntax tree and the
// position of the primary caret.
type Snapshot interface {
	// Tree returns the document's syntax tree. It may parse lazily.
	Tree() (Node, error)

	// Caret returns the primary caret's byte offset.
	Caret() int
}

// TextSnapshot is a Snapshot over document text that is parsed only when
// Tree is called, so snapshots superseded during debouncing are never parsed.
type TextSnapshot struct {
	Text   string
	Offset int
	Parser Parser
}

// NewTextSnapshot returns a snapshot of text with the caret at offset.
// A nil parser selects MarkdownParser.
func NewTextSnapshot(text string, offset int, parser Parser) TextSnapshot {
	if parser == nil {
		parser = MarkdownParser{}
	}
	return TextSnapshot{Text: text, Offset: offset, Parser: parser}
}

// Tree implements Snapshot.
func (s TextSnapshot) Tree() (Node, error) {
	p := s.Parser
	if p == nil {
		p = MarkdownParser{}
	}
	return p.Parse(context.Background(), []byte(s.Text))
}

// Caret implements Snapshot.
func (s TextSnapshot) Caret() int {
	return s.Offset
}

// TreeSnapshot is a Snapshot over an already built tree.
type TreeSnapshot struct {
	Root   Node
	Offset int
}

// Tree implements Snapshot.
func (s TreeSnapshot) Tree() (Node, error) {
	return s.Root, nil
}

// Caret implements Snapshot.
func (s TreeSnapshot) Caret() int {
	return s.Offset
}

// ClassifySnapshot builds snap's tree and classifies its caret.
func ClassifySnapshot(snap Snapshot) (bool, error) {
	root, err := snap.Tree()
	if err != nil {
		return false, fmt.Errorf("build syntax tree: %w", err)
	}
	return Classify(root, snap.Caret()), nil
}
