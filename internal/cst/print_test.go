package cst_test

import (
	"fmt"
	"slices"
	"testing"

	"sus/internal/cst"
	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/source"
	"sus/internal/testkit"
)

const reprintSrc = `
/// Queue stub
module FIFO #(type T, int DEPTH) {
	interface push : int data'0, int valid -> bool ready
	ready = data == valid
}

/// A small pipeline
module pipe #(int DEPTH) {
	input int a'0
	output int b'2

	state int acc
	initial acc = 0
	reg reg b = a + acc * 2 // doubled

	gen int[4] table
	for i in 0..4 {
		table[i] = i * DEPTH
	}
	if DEPTH > 3 {
		acc = acc + 1
	} else when a == 2 {
		/* narrow */ acc = -a
	}
	FIFO #(DEPTH: 4, T: type int[3]) f
	bool r = f.push(a, table[1])
}
`

// shape describes an instruction without its spans.
func shape(li *ir.LinkInfo, id ir.FlatID) string {
	in := li.Instr(id)
	out := fmt.Sprintf("%d %s %v", id, in.Kind, in.Operands())
	switch d := in.Data.(type) {
	case *ir.Declaration:
		out += fmt.Sprintf(" decl %s %s kind=%d doc=%q", d.Name, d.Ident, d.Kind, d.Doc)
	case *ir.SubModule:
		out += fmt.Sprintf(" submodule %s doc=%q", d.Name, d.Doc)
	case *ir.InterfaceDecl:
		out += fmt.Sprintf(" interface %s in=%v out=%v", d.Name, d.Inputs, d.Outputs)
	case *ir.Expression:
		out += fmt.Sprintf(" source=%d unary=%d binary=%d output=%d", d.Source.Kind, d.Source.Unary, d.Source.Binary, d.Output)
		if d.Source.Kind == ir.SourceLiteral {
			out += " literal=" + d.Source.Literal.String()
		}
		for _, w := range d.Writes {
			out += fmt.Sprintf(" write(root=%d:%d path=%d regs=%d mod=%d)", w.To.Root.Kind, w.To.Root.Local, len(w.To.Path), w.Modifiers.NumRegs, w.Modifiers.Kind)
		}
	case *ir.IfStatement:
		out += fmt.Sprintf(" when=%t then=%v else=%v", d.IsWhen, d.Then, d.Else)
	case *ir.ForStatement:
		out += fmt.Sprintf(" body=%v", d.Body)
	}
	return out
}

func stream(t *testing.T, l *linker.Linker, name string) []string {
	t.Helper()
	g, _, ok := l.Lookup(name)
	if !ok {
		t.Fatalf("global %q not found", name)
	}
	li := l.LinkInfo(g)
	var out []string
	for id := range li.Instructions.IDs().All() {
		out = append(out, shape(li, id))
	}
	return out
}

func TestReprintKeepsInstructions(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("pipe.sus", []byte(reprintSrc))
	bag := diag.NewBag(0)
	tree := cst.Parse(fs.Get(id), diag.BagReporter{Bag: bag})
	if bag.HasErrors() {
		t.Fatalf("syntax errors:\n%s", testkit.Dump(bag.Items()))
	}
	printed := cst.Print(tree, fs.Get(id).Content)

	original := testkit.Build(t, reprintSrc)
	reprinted := testkit.Build(t, printed)
	for _, name := range []string{"FIFO", "pipe"} {
		want, got := stream(t, original, name), stream(t, reprinted, name)
		if len(want) == 0 {
			t.Fatalf("%s flattened to nothing", name)
		}
		if !slices.Equal(want, got) {
			t.Fatalf("%s changed after reprinting:\n%s\n--- want\n%s\n--- got\n%s", name, printed, testkit.Dump(want), testkit.Dump(got))
		}
	}
}
