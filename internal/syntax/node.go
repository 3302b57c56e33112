package syntax

// Node is a syntax tree node.
type Node interface {
	// Tag is the semantic tag (node name) assigned by the grammar.
	Tag() string

	// Start is the byte offset of the first byte covered by the node.
	Start() int

	// End is the byte offset one past the last byte covered by the node.
	End() int

	// Children returns the node's children in document order.
	Children() []Node
}

// Span is a plain in-memory Node.
type Span struct {
	Name string
	From int
	To   int
	Kids []*Span
}

// Tag implements Node.
func (s *Span) Tag() string { return s.Name }

// Start implements Node.
func (s *Span) Start() int { return s.From }

// End implements Node.
func (s *Span) End() int { return s.To }

// Children implements Node.
func (s *Span) Children() []Node {
	out := make([]Node, len(s.Kids))
	for i, k := range s.Kids {
		out[i] = k
	}
	return out
}

// Walk visits root and all of its descendants top-down, parents before
// children and siblings in document order. Returning false from visit
// skips that node's children.
func Walk(root Node, visit func(Node) bool) {
	if root == nil {
		return
	}
	stack := []Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			continue
		}
		kids := n.Children()
		for i := len(kids) - 1; i >= 0; i-- {
			if kids[i] != nil {
				stack = append(stack, kids[i])
			}
		}
	}
}
