package syntax

import "strings"

// MathTag is the substring that marks a node as a math region.
const MathTag = "math"

// IsMath reports whether tag names a math region. Matching is case-sensitive.
func IsMath(tag string) bool {
	return strings.Contains(tag, MathTag)
}

// Classify reports whether caret lies inside any math-tagged node of root.
//
// Every node is visited; a node contains the caret when
// Start() <= caret <= End(), so a caret sitting exactly on either boundary
// counts as inside.
func Classify(root Node, caret int) bool {
	inside := false
	Walk(root, func(n Node) bool {
		if IsMath(n.Tag()) && n.Start() <= caret && caret <= n.End() {
			inside = true
		}
		return true
	})
	return inside
}

// MathRegions returns every math-tagged node of root in traversal order.
func MathRegions(root Node) []Node {
	var out []Node
	Walk(root, func(n Node) bool {
		if IsMath(n.Tag()) {
			out = append(out, n)
		}
		return true
	})
	return out
}
