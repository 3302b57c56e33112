package syntax

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	mdinline "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown-inline"
)

// MarkdownKinds maps inline-markdown grammar kinds onto semantic tags.
var MarkdownKinds = map[string]string{
	"latex_block": "math-latex",
	"code_span":   TagCode,
}

// TreeSitterParser adapts a tree-sitter grammar to Parser.
//
// Kinds listed in the kind map are reported under their mapped tag; all
// other nodes keep the grammar's kind. It is safe for concurrent use.
type TreeSitterParser struct {
	mu     sync.Mutex
	parser *sitter.Parser
	kinds  map[string]string
}

// NewTreeSitterParser returns a parser for lang using kinds as the tag map.
func NewTreeSitterParser(lang *sitter.Language, kinds map[string]string) *TreeSitterParser {
	p := sitter.NewParser()
	p.SetLanguage(lang)
	return &TreeSitterParser{parser: p, kinds: kinds}
}

// NewMarkdownTreeSitter returns a parser over the inline Markdown grammar,
// whose latex_block nodes become math regions.
func NewMarkdownTreeSitter() *TreeSitterParser {
	return NewTreeSitterParser(mdinline.GetLanguage(), MarkdownKinds)
}

// Parse implements Parser.
func (p *TreeSitterParser) Parse(ctx context.Context, src []byte) (Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if tree == nil {
		return nil, ErrParse
	}
	return &sitterNode{node: tree.RootNode(), tree: tree, kinds: p.kinds}, nil
}

// sitterNode keeps a reference to its tree so the tree outlives traversal.
type sitterNode struct {
	node  *sitter.Node
	tree  *sitter.Tree
	kinds map[string]string
}

func (n *sitterNode) Tag() string {
	kind := n.node.Type()
	if tag, ok := n.kinds[kind]; ok {
		return tag
	}
	return kind
}

func (n *sitterNode) Start() int { return int(n.node.StartByte()) }

func (n *sitterNode) End() int { return int(n.node.EndByte()) }

func (n *sitterNode) Children() []Node {
	count := int(n.node.ChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.node.Child(i)
		if child == nil {
			continue
		}
		out = append(out, &sitterNode{node: child, tree: n.tree, kinds: n.kinds})
	}
	return out
}
