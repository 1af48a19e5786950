package testkit

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"sus/internal/diag"
	"sus/internal/flatten"
	"sus/internal/instantiate"
	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/sema"
)

// Prelude declares the builtins every test program relies on.
const Prelude = `__builtin__ struct bool {}
__builtin__ struct int #(int MIN, int MAX) {}
__builtin__ const bool true {}
__builtin__ const bool false {}
__builtin__ const int clog2 #(int V) {}
__builtin__ const bool assert #(bool C) {}
`

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true, MaxDepth: 6}

// Dump renders v for failure messages.
func Dump(v any) string { return dumper.Sdump(v) }

// Build links src after Prelude and runs it through typechecking. Parse
// errors fail the test.
func Build(tb testing.TB, src string) *linker.Linker {
	tb.Helper()
	l := linker.New(nil)
	l.AddFile("core.sus", []byte(Prelude), true)
	id := l.AddFile("test.sus", []byte(src), false)
	if bag := l.File(id).Errors; bag.HasErrors() {
		tb.Fatalf("parse errors:\n%s", Dump(bag.Items()))
	}
	flatten.FlattenAll(l)
	sema.TypecheckAll(l, sema.Options{})
	return l
}

// Module looks up a module by name and fails if it has abstract errors.
func Module(tb testing.TB, l *linker.Linker, name string) ir.ModuleID {
	tb.Helper()
	g, _, ok := l.Lookup(name)
	if !ok || g.Kind != ir.GlobalModule {
		tb.Fatalf("module %q not found", name)
	}
	if m := l.Module(g.Module()); m.Errors.HasErrors() {
		tb.Fatalf("%s: abstract errors:\n%s", name, Dump(m.Errors.Items()))
	}
	return g.Module()
}

// Instantiate instantiates a module without template arguments and fails
// on any error.
func Instantiate(tb testing.TB, l *linker.Linker, name string) *instantiate.Instance {
	tb.Helper()
	inst, err := instantiate.Instantiate(l, Module(tb, l, name), nil)
	if err != nil {
		tb.Fatalf("instantiate %s: %v", name, err)
	}
	if inst.HasErrors() {
		tb.Fatalf("%s: unexpected diagnostics:\n%s", inst.Name, Dump(inst.Errors.Items()))
	}
	return inst
}

// WithCode filters diagnostics by code.
func WithCode(bag *diag.Bag, c diag.Code) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range bag.Items() {
		if d.Code == c {
			out = append(out, d)
		}
	}
	return out
}
