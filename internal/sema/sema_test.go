package sema

import (
	"reflect"
	"strings"
	"testing"

	"sus/internal/diag"
	"sus/internal/flatten"
	"sus/internal/ir"
	"sus/internal/linker"
)

const prelude = `__builtin__ struct bool {}
__builtin__ struct int #(int MIN, int MAX) {}
__builtin__ const bool true {}
__builtin__ const bool false {}
`

func build(t *testing.T, src string) *linker.Linker {
	t.Helper()
	l := linker.New(nil)
	l.AddFile("core.sus", []byte(prelude), true)
	id := l.AddFile("test.sus", []byte(src), false)
	if bag := l.File(id).Errors; bag.HasErrors() {
		t.Fatalf("parse errors: %+v", bag.Items())
	}
	flatten.FlattenAll(l)
	TypecheckAll(l, Options{})
	return l
}

func mustModule(t *testing.T, l *linker.Linker, name string) *ir.Module {
	t.Helper()
	g, _, ok := l.Lookup(name)
	if !ok || g.Kind != ir.GlobalModule {
		t.Fatalf("module %q not found", name)
	}
	return l.Module(g.Module())
}

func withCode(li *ir.LinkInfo, c diag.Code) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range li.Errors.Items() {
		if d.Code == c {
			out = append(out, d)
		}
	}
	return out
}

func expectClean(t *testing.T, li *ir.LinkInfo) {
	t.Helper()
	if li.Errors.HasErrors() {
		t.Fatalf("%s: unexpected diagnostics: %+v", li.Name, li.Errors.Items())
	}
}

func declNamed(t *testing.T, li *ir.LinkInfo, name string) *ir.Declaration {
	t.Helper()
	for _, instr := range li.Instructions.All() {
		if d := instr.Decl(); d != nil && d.Name == name {
			return d
		}
	}
	t.Fatalf("no declaration %q in %s", name, li.Name)
	return nil
}

func lastExpr(li *ir.LinkInfo) *ir.Expression {
	var last *ir.Expression
	for _, instr := range li.Instructions.All() {
		if e := instr.Expr(); e != nil {
			last = e
		}
	}
	return last
}

func TestCleanModule(t *testing.T) {
	l := build(t, `module adder {
	input int a
	input int b
	output int c
	c = a + b
}
`)
	m := mustModule(t, l, "adder")
	expectClean(t, &m.LinkInfo)
	if m.Phase != ir.PhaseLinted {
		t.Fatalf("phase %d, want linted", m.Phase)
	}

	c := declNamed(t, &m.LinkInfo, "c")
	if got := c.Typ.Typ.Display(l, ir.ModuleUUID(1)); got != "int" {
		t.Fatalf("c has type %q", got)
	}
	e := lastExpr(&m.LinkInfo)
	if e.Typ.Typ.Inner.Named != l.Builtins.Int || e.Typ.Typ.Rank != (ir.Rank{}) {
		t.Fatalf("a + b typed %+v", e.Typ.Typ)
	}
	if e.Typ.Domain != ir.PhysicalDomain(1) {
		t.Fatalf("a + b in domain %+v", e.Typ.Domain)
	}
	if w := e.Writes[0].To.OutputTyp; w.Typ.Inner.Named != l.Builtins.Int {
		t.Fatalf("write target typed %+v", w)
	}
}

func TestTypeMismatch(t *testing.T) {
	l := build(t, `module m {
	input bool a
	output int o
	o = a
}
`)
	m := mustModule(t, l, "m")
	errs := withCode(&m.LinkInfo, diag.TypeMismatch)
	if len(errs) != 1 {
		t.Fatalf("want one mismatch, got %+v", m.Errors.Items())
	}
	if msg := errs[0].Message; !strings.Contains(msg, "'int'") || !strings.Contains(msg, "'bool'") {
		t.Fatalf("message %q", msg)
	}
}

func TestWriteAcrossDomains(t *testing.T) {
	l := build(t, `module m {
	domain clk1
	input int a
	domain clk2
	output int b
	b = a
}
`)
	m := mustModule(t, l, "m")
	errs := withCode(&m.LinkInfo, diag.TypeDomainConflict)
	if len(errs) != 1 {
		t.Fatalf("want one domain conflict, got %+v", m.Errors.Items())
	}
	d := errs[0]
	if !strings.Contains(d.Message, "clk1") || !strings.Contains(d.Message, "clk2") {
		t.Fatalf("message %q", d.Message)
	}
	if len(d.Notes) != 2 {
		t.Fatalf("want notes at both declarations, got %+v", d.Notes)
	}
}

func TestOperandsAcrossDomains(t *testing.T) {
	l := build(t, `module m {
	domain clk1
	input int a
	domain clk2
	input int b
	output int c
	c = a + b
}
`)
	m := mustModule(t, l, "m")
	errs := withCode(&m.LinkInfo, diag.TypeDomainConflict)
	if len(errs) == 0 {
		t.Fatalf("no domain conflict: %+v", m.Errors.Items())
	}
	if !strings.Contains(errs[0].Message, "'+'") || len(errs[0].Notes) != 2 {
		t.Fatalf("operand conflict %+v", errs[0])
	}
}

func TestArrays(t *testing.T) {
	l := build(t, `module m {
	input int[4] arr
	input int i
	output int o
	output int p
	o = arr[i]
	p = i[0]
}
`)
	m := mustModule(t, l, "m")
	arr := declNamed(t, &m.LinkInfo, "arr")
	if arr.Typ.Typ.Rank != (ir.Rank{Base: 1}) {
		t.Fatalf("arr rank %+v", arr.Typ.Typ.Rank)
	}
	errs := withCode(&m.LinkInfo, diag.TypeMismatch)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "Cannot index") {
		t.Fatalf("want one index error, got %+v", m.Errors.Items())
	}
	for _, instr := range m.Instructions.All() {
		e := instr.Expr()
		if e == nil || e.Source.Kind != ir.SourceWireRef || len(e.Source.Ref.Path) == 0 {
			continue
		}
		if d := m.Instr(e.Source.Ref.Root.Local).Decl(); d.Name == "arr" && e.Typ.Typ.Rank != (ir.Rank{}) {
			t.Fatalf("arr[i] rank %+v", e.Typ.Typ.Rank)
		}
	}
}

func TestSubmoduleCall(t *testing.T) {
	l := build(t, `module add {
	input int a
	input int b
	output int c
	c = a + b
}
module user {
	input int x
	output int y
	y = add(x, 2)
}
`)
	u := mustModule(t, l, "user")
	expectClean(t, &u.LinkInfo)
	for _, instr := range u.Instructions.All() {
		if sm := instr.SubModule(); sm != nil {
			if len(sm.Domains) != 1 || sm.Domains[0] != ir.PhysicalDomain(1) {
				t.Fatalf("submodule domains %+v", sm.Domains)
			}
		}
	}
}

func TestTemplateInference(t *testing.T) {
	l := build(t, `module id #(type T) {
	input T a
	output T b
	b = a
}
module user {
	input bool x
	output bool y
	y = id(x)
}
`)
	u := mustModule(t, l, "user")
	expectClean(t, &u.LinkInfo)
	var sm *ir.SubModule
	for _, instr := range u.Instructions.All() {
		if s := instr.SubModule(); s != nil {
			sm = s
		}
	}
	if sm == nil || len(sm.Module.TypeArgs) != 1 {
		t.Fatalf("submodule %+v", sm)
	}
	if got := sm.Module.TypeArgs[0]; got.Inner.Kind != ir.InnerNamed || got.Inner.Named != l.Builtins.Bool {
		t.Fatalf("T inferred as %+v", got)
	}
}

func TestRetypecheckIsStable(t *testing.T) {
	l := build(t, `module m {
	input int[2] a
	output int o
	o = a[0] + a[1]
}
`)
	m := mustModule(t, l, "m")
	expectClean(t, &m.LinkInfo)
	before := map[string]ir.FullType{}
	for _, instr := range m.Instructions.All() {
		if d := instr.Decl(); d != nil {
			before[d.Name] = d.Typ
		}
	}
	n := m.Errors.Len()

	g, _, _ := l.Lookup("m")
	m.ResetTo(ir.PhaseFlattened)
	Typecheck(l, g, Options{})
	for _, instr := range m.Instructions.All() {
		if d := instr.Decl(); d != nil && !reflect.DeepEqual(before[d.Name], d.Typ) {
			t.Fatalf("%s: %+v became %+v", d.Name, before[d.Name], d.Typ)
		}
	}
	if m.Errors.Len() != n {
		t.Fatalf("diagnostics changed: %+v", m.Errors.Items())
	}
}

func TestLints(t *testing.T) {
	l := build(t, `module m {
	input int a
	output int o
	int unused
	int never
	o = never
	unused = a
}
`)
	m := mustModule(t, l, "m")
	expectClean(t, &m.LinkInfo)
	unused := withCode(&m.LinkInfo, diag.TypeUnusedWire)
	if len(unused) != 1 || !strings.Contains(unused[0].Message, "unused") {
		t.Fatalf("unused lints %+v", unused)
	}
	unwritten := withCode(&m.LinkInfo, diag.TypeUnwrittenWire)
	if len(unwritten) != 1 || !strings.Contains(unwritten[0].Message, "never") {
		t.Fatalf("unwritten lints %+v", unwritten)
	}
}
