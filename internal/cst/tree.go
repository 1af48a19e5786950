package cst

import (
	"fmt"
	"strings"

	"sus/internal/source"
)

// NodeID indexes Tree.nodes; 0 is the invalid node.
type NodeID uint32

// Node is one node of the concrete syntax tree.
type Node struct {
	Kind     Kind
	Field    Field
	Span     source.Span
	Parent   NodeID
	Children []NodeID
	Text     string // leaves: identifier, number, keyword, operator
	Doc      string // "///" lines before globals, declarations and statements
}

// Tree is the parsed form of one file. Comments are kept aside in Comments,
// in source order, like the extras of an incremental parser.
type Tree struct {
	File     source.FileID
	Root     NodeID
	Comments []NodeID
	nodes    []Node
}

func newTree(file source.FileID) *Tree {
	return &Tree{File: file, nodes: make([]Node, 1, 256)}
}

func (t *Tree) add(n Node) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	for _, c := range n.Children {
		t.nodes[c].Parent = id
	}
	return id
}

func (t *Tree) Node(id NodeID) *Node {
	if id == 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

func (t *Tree) Kind(id NodeID) Kind {
	if n := t.Node(id); n != nil {
		return n.Kind
	}
	return KindInvalid
}

func (t *Tree) Span(id NodeID) source.Span {
	if n := t.Node(id); n != nil {
		return n.Span
	}
	return source.Span{File: t.File}
}

func (t *Tree) Text(id NodeID) string {
	if n := t.Node(id); n != nil {
		return n.Text
	}
	return ""
}

// Len returns the number of nodes including the invalid node 0.
func (t *Tree) Len() int { return len(t.nodes) }

// Field returns the first child of id playing role f, or 0.
func (t *Tree) Field(id NodeID, f Field) NodeID {
	n := t.Node(id)
	if n == nil {
		return 0
	}
	for _, c := range n.Children {
		if t.nodes[c].Field == f {
			return c
		}
	}
	return 0
}

// Fields returns every child of id playing role f.
func (t *Tree) Fields(id NodeID, f Field) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, c := range n.Children {
		if t.nodes[c].Field == f {
			out = append(out, c)
		}
	}
	return out
}

// Items is Fields(id, FieldItem).
func (t *Tree) Items(id NodeID) []NodeID { return t.Fields(id, FieldItem) }

// Children returns all children of id.
func (t *Tree) Children(id NodeID) []NodeID {
	if n := t.Node(id); n != nil {
		return n.Children
	}
	return nil
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the children of that node.
func (t *Tree) Walk(id NodeID, fn func(id NodeID) bool) {
	if t.Node(id) == nil || !fn(id) {
		return
	}
	for _, c := range t.nodes[id].Children {
		t.Walk(c, fn)
	}
}

// NodeAt returns the innermost node whose span contains off.
func (t *Tree) NodeAt(off uint32) NodeID {
	best := NodeID(0)
	t.Walk(t.Root, func(id NodeID) bool {
		if !t.nodes[id].Span.Contains(off) {
			return false
		}
		best = id
		return true
	})
	return best
}

// Dump renders the tree as an s-expression, for tests and --debug.
func (t *Tree) Dump() string {
	var sb strings.Builder
	var rec func(id NodeID, depth int)
	rec = func(id NodeID, depth int) {
		n := &t.nodes[id]
		sb.WriteString(strings.Repeat("  ", depth))
		if n.Field != FieldNone {
			sb.WriteString(n.Field.String())
			sb.WriteString(": ")
		}
		sb.WriteString("(")
		sb.WriteString(n.Kind.String())
		if n.Text != "" {
			fmt.Fprintf(&sb, " %q", n.Text)
		}
		if len(n.Children) == 0 {
			sb.WriteString(")\n")
			return
		}
		sb.WriteString("\n")
		for _, c := range n.Children {
			rec(c, depth+1)
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(")\n")
	}
	if t.Root != 0 {
		rec(t.Root, 0)
	}
	return sb.String()
}
