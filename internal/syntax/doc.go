// Package syntax classifies caret positions against a document's syntax tree.
//
// A tree is any value implementing Node. Two producers are provided:
// MarkdownParser, a small scanner for TeX-style math delimiters in
// Markdown prose, and TreeSitterParser, an adapter over go-tree-sitter
// grammars whose node kinds are mapped onto semantic tags.
//
// The classifier itself is grammar agnostic: a caret is "in math" when any
// node whose tag contains "math" spans it, boundaries included.
//
//	root, _ := syntax.MarkdownParser{}.Parse(ctx, []byte("area $\\pi r^2$"))
//	syntax.Classify(root, 7) // true
//
// Offsets are byte offsets into the parsed source.
package syntax
