package flatten

import (
	"slices"
	"testing"

	"sus/internal/diag"
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
	FlattenAll(l)
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

func codes(li *ir.LinkInfo) []diag.Code {
	var out []diag.Code
	for _, d := range li.Errors.Items() {
		out = append(out, d.Code)
	}
	return out
}

func countCode(li *ir.LinkInfo, c diag.Code) int {
	n := 0
	for _, got := range codes(li) {
		if got == c {
			n++
		}
	}
	return n
}

func expectClean(t *testing.T, li *ir.LinkInfo) {
	t.Helper()
	if li.Errors.HasErrors() {
		t.Fatalf("%s: unexpected diagnostics: %+v", li.Name, li.Errors.Items())
	}
}

func TestPreludeFlattens(t *testing.T) {
	l := build(t, "")
	for g := range l.Globals() {
		li := l.LinkInfo(g)
		expectClean(t, li)
		if li.Phase != ir.PhaseFlattened {
			t.Fatalf("%s: phase %d", li.Name, li.Phase)
		}
	}
	g, _, _ := l.Lookup("int")
	li := l.LinkInfo(g)
	if li.Parameters.Len() != 2 {
		t.Fatalf("int has %d parameters", li.Parameters.Len())
	}
	for _, p := range li.Parameters.All() {
		if !p.Decl.IsValid() || li.Instr(p.Decl).Decl().Kind != ir.DeclTemplateParam {
			t.Fatalf("parameter %s has no template declaration", p.Name)
		}
	}
}

func TestPortsAndWrites(t *testing.T) {
	l := build(t, `module adder {
	input int a
	input int b
	output int c
	c = a + b
}
`)
	m := mustModule(t, l, "adder")
	expectClean(t, &m.LinkInfo)

	if m.Ports.Len() != 3 {
		t.Fatalf("want 3 ports, got %d", m.Ports.Len())
	}
	main := m.Interfaces.MustGet(m.Main)
	if len(main.Inputs) != 2 || len(main.Outputs) != 1 {
		t.Fatalf("main interface has %d inputs, %d outputs", len(main.Inputs), len(main.Outputs))
	}
	for _, p := range m.Ports.All() {
		d := m.Instr(p.Decl).Decl()
		if d == nil || d.Kind != ir.DeclPort || d.Name != p.Name {
			t.Fatalf("port %s is not bound to its declaration", p.Name)
		}
		if d.Typ.Domain != ir.PhysicalDomain(1) {
			t.Fatalf("port %s domain %+v", p.Name, d.Typ.Domain)
		}
	}

	last := m.Instr(ir.FlatID(m.Instructions.Len())).Expr()
	if last == nil || last.Output != ir.OutputMultiWrite || len(last.Writes) != 1 {
		t.Fatalf("last instruction is not a single write: %+v", last)
	}
	_, c := m.PortByName("c")
	if root := last.Writes[0].To.Root; root.Kind != ir.RootLocalDecl || root.Local != c.Decl {
		t.Fatalf("write goes to %+v, want port c", root)
	}
	if last.Source.Kind != ir.SourceBinary || last.Source.Binary != ir.BinaryAdd {
		t.Fatalf("source is %+v", last.Source)
	}
}

func TestScopes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "duplicate in one block",
			src:  "module m {\n\tint x\n\tint x\n}\n",
			want: 1,
		},
		{
			name: "shadow in nested block",
			src:  "module m {\n\tgen int x = 3\n\tif x == 3 {\n\t\tgen int x = 4\n\t}\n}\n",
			want: 0,
		},
		{
			name: "loop variable and body share a frame",
			src:  "module m {\n\tfor i in 0..4 {\n\t\tgen int i = 2\n\t}\n}\n",
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := build(t, tt.src)
			m := mustModule(t, l, "m")
			if got := countCode(&m.LinkInfo, diag.NameDuplicateLocal); got != tt.want {
				t.Fatalf("want %d duplicate errors, got %d: %+v", tt.want, got, m.Errors.Items())
			}
		})
	}
}

func TestTemplateArguments(t *testing.T) {
	l := build(t, `module fifo #(type T, int DEPTH) {}
module user {
	fifo #(DEPTH: 4, T: type bool) a
	fifo #(bool, 3) b
	fifo #(DEPTH: 4, DEPTH: 5) c
	fifo #(bool, 3, 7) d
	fifo #(X: 3) e
}
`)
	m := mustModule(t, l, "user")
	subs := map[string]*ir.SubModule{}
	for _, instr := range m.Instructions.All() {
		if sm := instr.SubModule(); sm != nil {
			subs[sm.Name] = sm
		}
	}
	if len(subs) != 5 {
		t.Fatalf("want 5 submodules, got %d", len(subs))
	}
	for _, name := range []string{"a", "b"} {
		args := subs[name].Module.Args
		if len(args) != 2 || args[0] == nil || args[1] == nil {
			t.Fatalf("%s: args %+v", name, args)
		}
		if args[0].Kind != ir.ArgType || args[1].Kind != ir.ArgValue {
			t.Fatalf("%s: arg kinds %v %v", name, args[0].Kind, args[1].Kind)
		}
	}
	if subs["b"].Module.Args[0].Type.Kind != ir.WrittenNamed {
		t.Fatalf("positional bool not read as a type")
	}
	for _, c := range []diag.Code{diag.NameDuplicateTemplate, diag.NameTooManyTemplateArg, diag.NameUnknownTemplateArg} {
		if got := countCode(&m.LinkInfo, c); got != 1 {
			t.Fatalf("want one %v, got %d: %+v", c, got, m.Errors.Items())
		}
	}
}

func TestCallArity(t *testing.T) {
	l := build(t, `module add {
	input int a
	input int b
	output int c
	c = a + b
}
module user {
	int x = add(1)
	int y = add(1, 2, 3)
	int p, int q = add(1, 2)
	int r = add(1, 2)
}
`)
	m := mustModule(t, l, "user")
	for _, c := range []diag.Code{diag.FlatTooFewArgs, diag.FlatExcessArgs, diag.FlatExcessOutputs} {
		if got := countCode(&m.LinkInfo, c); got != 1 {
			t.Fatalf("want one %v, got %d: %+v", c, got, m.Errors.Items())
		}
	}
	calls := 0
	for _, instr := range m.Instructions.All() {
		e := instr.Expr()
		if e == nil || e.Source.Kind != ir.SourceFuncCall {
			continue
		}
		calls++
		if len(e.Source.Call.Args) > 2 || len(e.Writes) > 1 {
			t.Fatalf("call not truncated: %d args, %d writes", len(e.Source.Call.Args), len(e.Writes))
		}
		if !m.Instr(e.Source.Call.SubModule).SubModule().Module.ID.IsValid() {
			t.Fatalf("inline call has no submodule")
		}
	}
	if calls != 4 {
		t.Fatalf("want 4 calls, got %d", calls)
	}
}

func TestIfWhen(t *testing.T) {
	l := build(t, `module m {
	input bool c
	output int o
	if c {
		o = 1
	}
	gen bool g = true
	when g {
		o = 2
	}
}
`)
	m := mustModule(t, l, "m")
	if countCode(&m.LinkInfo, diag.TypeIfNonGen) != 1 {
		t.Fatalf("missing if-on-wire error: %+v", m.Errors.Items())
	}
	if countCode(&m.LinkInfo, diag.TypeWhenGen) != 1 {
		t.Fatalf("missing when-on-gen warning: %+v", m.Errors.Items())
	}
	var ifs []*ir.IfStatement
	for _, instr := range m.Instructions.All() {
		if s := instr.If(); s != nil {
			ifs = append(ifs, s)
		}
	}
	if len(ifs) != 2 || ifs[0].IsWhen || !ifs[1].IsWhen {
		t.Fatalf("if statements: %+v", ifs)
	}
	if ifs[0].Then.Len() == 0 || !ifs[0].Else.Empty() {
		t.Fatalf("if bodies: then %+v else %+v", ifs[0].Then, ifs[0].Else)
	}
}

func TestForLoop(t *testing.T) {
	l := build(t, `module m {
	input int w
	gen int total = 0
	for i in 0..4 {
		total = total + i
	}
	for j in 0..w {}
}
`)
	m := mustModule(t, l, "m")
	if got := countCode(&m.LinkInfo, diag.TypeNotGenerative); got != 1 {
		t.Fatalf("want one non-generative bound, got %d: %+v", got, m.Errors.Items())
	}
	var loop *ir.ForStatement
	for _, instr := range m.Instructions.All() {
		if s := instr.For(); s != nil {
			loop = s
			break
		}
	}
	if loop == nil {
		t.Fatalf("no for statement")
	}
	v := m.Instr(loop.LoopVar).Decl()
	if v.Kind != ir.DeclLoopVar || !v.IsGenerative() || v.TypeExpr.Kind != ir.WrittenNamed {
		t.Fatalf("loop variable %+v", v)
	}
	if loop.Body.Empty() {
		t.Fatalf("empty loop body")
	}
}

func TestDomains(t *testing.T) {
	l := build(t, `module m {
	domain a
	input int x
	domain b
	output int y
	domain a
}
module plain {
	input int z
}
`)
	m := mustModule(t, l, "m")
	if countCode(&m.LinkInfo, diag.NameDuplicateDomain) != 1 {
		t.Fatalf("missing duplicate domain error: %+v", m.Errors.Items())
	}
	_, x := m.PortByName("x")
	_, y := m.PortByName("y")
	if x.Domain != 1 || y.Domain != 2 {
		t.Fatalf("port domains x=%d y=%d", x.Domain, y.Domain)
	}

	p := mustModule(t, l, "plain")
	expectClean(t, &p.LinkInfo)
	if p.Domains.Len() != 1 || !p.Domains.MustGet(1).Implicit || p.Domains.MustGet(1).Name != "clk" {
		t.Fatalf("implicit domain missing: %+v", p.Domains.Slice())
	}
}

func TestInterfaces(t *testing.T) {
	l := build(t, `module q {
	interface push : bool valid, int data -> bool ready
	output int count
}
module user {
	q inst
	bool ok = inst.push(true, 3)
	int c = inst.count
	int bad = inst.missing
}
`)
	m := mustModule(t, l, "q")
	expectClean(t, &m.LinkInfo)
	id, push := m.InterfaceByName("push")
	if push == nil || len(push.Inputs) != 2 || len(push.Outputs) != 1 {
		t.Fatalf("push interface %+v", push)
	}
	decl := m.Instr(push.Decl).Interface()
	if decl == nil || decl.Interface != id || len(decl.Inputs) != 2 {
		t.Fatalf("interface declaration %+v", decl)
	}
	for _, pid := range slices.Concat(push.Inputs, push.Outputs) {
		if p := m.Ports.MustGet(pid); p.Interface != id {
			t.Fatalf("port %s belongs to interface %d", p.Name, p.Interface)
		}
	}

	u := mustModule(t, l, "user")
	if got := codes(&u.LinkInfo); len(got) != 1 || got[0] != diag.NameUnknownPort {
		t.Fatalf("user diagnostics: %+v", u.Errors.Items())
	}
}

func TestWriteChecks(t *testing.T) {
	l := build(t, `module m {
	input int a
	gen int g
	int w
	a = 3
	g = w
	reg reg w = 2
}
`)
	m := mustModule(t, l, "m")
	if countCode(&m.LinkInfo, diag.FlatWriteToInput) != 1 {
		t.Fatalf("missing write-to-input: %+v", m.Errors.Items())
	}
	if countCode(&m.LinkInfo, diag.TypeGenerativeSink) != 1 {
		t.Fatalf("missing generative sink: %+v", m.Errors.Items())
	}
	var regs int
	for _, instr := range m.Instructions.All() {
		if e := instr.Expr(); e != nil && len(e.Writes) == 1 {
			regs = max(regs, e.Writes[0].Modifiers.NumRegs)
		}
	}
	if regs != 2 {
		t.Fatalf("want 2 registers on the last write, got %d", regs)
	}
}

func TestLatencyForms(t *testing.T) {
	l := build(t, `module fifo #(int D) {
	input int portA'0
	output int portB'D
	output int portC'2*D+1
	output int portD
}
`)
	m := mustModule(t, l, "fifo")
	expectClean(t, &m.LinkInfo)
	if len(m.LatencyForms) != 3 {
		t.Fatalf("want 3 latency forms, got %+v", m.LatencyForms)
	}
	want := map[string]ir.LatencyForm{
		"portA": {Const: 0, Factors: []int64{0}},
		"portB": {Const: 0, Factors: []int64{1}},
		"portC": {Const: 1, Factors: []int64{2}},
	}
	for _, f := range m.LatencyForms {
		name := m.Ports.MustGet(f.Port).Name
		w, ok := want[name]
		if !ok {
			t.Fatalf("unexpected form for %s", name)
		}
		if f.Const != w.Const || !slices.Equal(f.Factors, w.Factors) {
			t.Fatalf("%s: form %+v, want %+v", name, f, w)
		}
	}
	seven := int64(7)
	if got := m.LatencyForms[2].Substitute([]*int64{&seven}); got.Const != 15 || !got.IsConst() {
		t.Fatalf("substituted form %+v", got)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"010", 10, true},
		{"1_000", 1000, true},
		{"0x1F", 31, true},
		{"0b101", 5, true},
		{"0x", 0, false},
	}
	for _, tt := range tests {
		v, ok := parseNumber(tt.in)
		if ok != tt.ok {
			t.Fatalf("%q: ok=%v", tt.in, ok)
		}
		if ok && v.Int64() != tt.want {
			t.Fatalf("%q: got %v, want %d", tt.in, v, tt.want)
		}
	}
}
