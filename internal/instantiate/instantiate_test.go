package instantiate

import (
	"math/big"
	"strings"
	"testing"

	"sus/internal/diag"
	"sus/internal/flatten"
	"sus/internal/ir"
	"sus/internal/latency"
	"sus/internal/linker"
	"sus/internal/sema"
)

const prelude = `__builtin__ struct bool {}
__builtin__ struct int #(int MIN, int MAX) {}
__builtin__ const bool true {}
__builtin__ const bool false {}
__builtin__ const int clog2 #(int V) {}
__builtin__ const bool assert #(bool C) {}
`

func buildLinker(t *testing.T, src string) *linker.Linker {
	t.Helper()
	l := linker.New(nil)
	l.AddFile("core.sus", []byte(prelude), true)
	id := l.AddFile("test.sus", []byte(src), false)
	if bag := l.File(id).Errors; bag.HasErrors() {
		t.Fatalf("parse errors: %+v", bag.Items())
	}
	flatten.FlattenAll(l)
	sema.TypecheckAll(l, sema.Options{})
	return l
}

func moduleID(t *testing.T, l *linker.Linker, name string) ir.ModuleID {
	t.Helper()
	g, _, ok := l.Lookup(name)
	if !ok || g.Kind != ir.GlobalModule {
		t.Fatalf("module %q not found", name)
	}
	if m := l.Module(g.Module()); m.Errors.HasErrors() {
		t.Fatalf("%s: abstract errors: %+v", name, m.Errors.Items())
	}
	return g.Module()
}

func mustInstantiate(t *testing.T, l *linker.Linker, name string) *Instance {
	t.Helper()
	inst, err := Instantiate(l, moduleID(t, l, name), nil)
	if err != nil {
		t.Fatalf("instantiate %s: %v", name, err)
	}
	return inst
}

func expectClean(t *testing.T, inst *Instance) {
	t.Helper()
	if inst.HasErrors() {
		t.Fatalf("%s: unexpected diagnostics: %+v", inst.Name, inst.Errors.Items())
	}
	checkLatencies(t, inst)
}

// checkLatencies verifies a counted instance: every edge leaves at least its
// register count between its ends, specified wires sit at their latency and
// the ports of a submodule keep their relative latencies.
func checkLatencies(t *testing.T, inst *Instance) {
	t.Helper()
	for _, w := range inst.Wires.All() {
		if !latency.IsValid(w.Latency) {
			continue
		}
		if w.HasSpecified && w.Latency != w.Specified {
			t.Fatalf("%s: %s specified at %d but counted at %d", inst.Name, w.Name, w.Specified, w.Latency)
		}
		w.Source.Wires(func(from WireID, regs int) {
			f := inst.Wire(from)
			if latency.IsValid(f.Latency) && w.Latency-f.Latency < int64(regs) {
				t.Fatalf("%s: %s'%d -> %s'%d is shorter than %d registers", inst.Name, f.Name, f.Latency, w.Name, w.Latency, regs)
			}
		})
	}
	for _, sm := range inst.SubModules.All() {
		if sm.Instance == nil {
			continue
		}
		var ref *Wire
		var refPort int64
		for i, wid := range sm.PortMap {
			lat, ok := portLatency(sm.Instance.Port(ir.PortID(i + 1)))
			if !ok || !wid.IsValid() {
				continue
			}
			w := inst.Wire(wid)
			if !latency.IsValid(w.Latency) {
				continue
			}
			if ref == nil || ref.Domain != w.Domain {
				if ref == nil {
					ref, refPort = w, lat
				}
				continue
			}
			if w.Latency-ref.Latency != lat-refPort {
				t.Fatalf("%s: submodule %s port %s'%d does not line up with %s'%d", inst.Name, sm.Name, w.Name, w.Latency, ref.Name, ref.Latency)
			}
		}
		checkLatencies(t, sm.Instance)
	}
}

func withCode(inst *Instance, c diag.Code) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range inst.Errors.Items() {
		if d.Code == c {
			out = append(out, d)
		}
	}
	return out
}

func mustWire(t *testing.T, inst *Instance, name string) *Wire {
	t.Helper()
	_, w := inst.WireNamed(name)
	if w == nil {
		t.Fatalf("%s has no wire %q", inst.Name, name)
	}
	return w
}

func expectBounds(t *testing.T, w *Wire, lo, hi int64) {
	t.Helper()
	if w.Bounds == nil {
		t.Fatalf("%s has no bounds", w.Name)
	}
	if w.Bounds.Min.Cmp(big.NewInt(lo)) != 0 || w.Bounds.Max.Cmp(big.NewInt(hi)) != 0 {
		t.Fatalf("%s bounds %s, want [%d, %d]", w.Name, w.Bounds, lo, hi)
	}
}

func TestAdderBounds(t *testing.T) {
	l := buildLinker(t, `module adder {
	input int#(0, 7) a
	input int#(0, 7) b
	output int c
	c = a + b
}
`)
	inst := mustInstantiate(t, l, "adder")
	expectClean(t, inst)
	c := mustWire(t, inst, "c")
	expectBounds(t, c, 0, 14)
	lo, hi, ok := l.Builtins.IntBounds(c.Typ)
	if !ok || lo.Int64() != 0 || hi.Int64() != 14 {
		t.Fatalf("c finalized as %s", c.Typ.Display(l))
	}
	if p := inst.Port(3); p == nil || p.Name != "c" || p.Typ != c.Typ {
		t.Fatalf("port c %+v", p)
	}
	for _, w := range inst.Wires.All() {
		if w.Latency != 0 {
			t.Fatalf("%s at latency %d, want 0", w.Name, w.Latency)
		}
	}
}

func TestInstancesAreCached(t *testing.T) {
	l := buildLinker(t, `module m {
	input int a
	output int b
	b = a
}
`)
	id := moduleID(t, l, "m")
	first, err := Instantiate(l, id, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Instantiate(l, id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("second instantiation built a new instance")
	}
	if got := Instances(l.Module(id)); len(got) != 1 || got[0] != first {
		t.Fatalf("instances %+v", got)
	}
}

func TestForLoopUnrolls(t *testing.T) {
	l := buildLinker(t, `module m {
	input int[4] a
	output int[4] out
	for i in 0..4 {
		out[i] = a[i] + 1
	}
}
`)
	inst := mustInstantiate(t, l, "m")
	expectClean(t, inst)
	var adds int
	for _, w := range inst.Wires.All() {
		if w.Source.Kind == SourceBinary && w.Source.Binary == ir.BinaryAdd {
			adds++
		}
	}
	if adds != 4 {
		t.Fatalf("want 4 adders, got %d", adds)
	}
	out := mustWire(t, inst, "out")
	if len(out.Source.Sources) != 4 {
		t.Fatalf("out has %d writers", len(out.Source.Sources))
	}
	for i, src := range out.Source.Sources {
		if len(src.Path) != 1 || !src.Path[0].Index.IsConst() || src.Path[0].Index.Const.Int64() != int64(i) {
			t.Fatalf("write %d into %+v", i, src.Path)
		}
	}
	if n, ok := out.Typ.ArrayLen(); !ok || n != 4 {
		t.Fatalf("out typed %s", out.Typ.Display(l))
	}
}

func TestGenerativeCode(t *testing.T) {
	l := buildLinker(t, `module m {
	output int o
	gen int x = 3
	gen int[3] arr
	for i in 0..3 {
		arr[i] = i * x
	}
	o = arr[2] + clog2 #(V: 9)
}
`)
	inst := mustInstantiate(t, l, "m")
	expectClean(t, inst)
	o := mustWire(t, inst, "o")
	if len(o.Source.Sources) != 1 {
		t.Fatalf("o has %d writers", len(o.Source.Sources))
	}
	from := inst.Wire(o.Source.Sources[0].From)
	if from.Source.Kind != SourceConstant || from.Source.Value.String() != "10" {
		t.Fatalf("o driven by %s %s", from.Source.Kind, from.Source.Value)
	}
	expectBounds(t, o, 10, 10)
}

func TestGenerativeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
		msg  string
	}{
		{
			name: "index",
			src:  "module m {\n\tgen int[2] arr\n\tarr[2] = 1\n}\n",
			code: diag.GenIndexOOB,
			msg:  "Index out of bounds",
		},
		{
			name: "divide",
			src:  "module m {\n\tgen int z = 0\n\tgen int x = 4 / z\n}\n",
			code: diag.GenDivideByZero,
		},
		{
			name: "unset",
			src:  "module m {\n\tgen int x\n\tgen int y = x + 1\n}\n",
			code: diag.GenUnsetValue,
			msg:  "read before it was set",
		},
		{
			name: "range",
			src:  "module m {\n\tfor i in 4..2 {}\n}\n",
			code: diag.GenForRange,
		},
		{
			name: "clog2",
			src:  "module m {\n\tgen int x = clog2 #(V: 0)\n}\n",
			code: diag.GenBadArgument,
			msg:  "clog2: V must be >= 1! Found 0",
		},
		{
			name: "assert",
			src:  "module m {\n\tgen bool ok = assert #(C: 1 == 2)\n}\n",
			code: diag.GenAssertFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := buildLinker(t, tt.src)
			inst := mustInstantiate(t, l, "m")
			errs := withCode(inst, tt.code)
			if len(errs) == 0 {
				t.Fatalf("want %v, got %+v", tt.code, inst.Errors.Items())
			}
			if tt.msg != "" && !strings.Contains(errs[0].Message, tt.msg) {
				t.Fatalf("message %q lacks %q", errs[0].Message, tt.msg)
			}
		})
	}
}

func TestLatencyInference(t *testing.T) {
	fifos := map[string]string{
		"extern": `extern module fifo #(int D) {
	input int a'0
	output int b'D
}
`,
		"body": `module fifo #(int D) {
	input int a'0
	output int b'D
	b = a
}
`,
	}
	for name, fifo := range fifos {
		l := buildLinker(t, fifo+`module top {
	input int x'3
	output int y'10
	y = fifo(x)
}
`)
		inst := mustInstantiate(t, l, "top")
		expectClean(t, inst)
		sm := inst.SubModules.MustGet(1)
		if sm.Instance == nil {
			t.Fatalf("%s: fifo was not instantiated", name)
		}
		if v := sm.Args[0].Value.Value; v.Kind != ir.ValueInt || v.Int.Int64() != 7 {
			t.Fatalf("%s: D inferred as %s", name, v)
		}
		if sm.Instance.Name != "fifo_7" {
			t.Fatalf("%s: instance named %q", name, sm.Instance.Name)
		}
		if b := sm.Instance.Port(2); b == nil || b.Latency != 7 {
			t.Fatalf("%s: fifo port b %+v", name, b)
		}
		if w := mustWire(t, inst, "fifo_b"); w.Latency != 10 {
			t.Fatalf("%s: fifo_b at %d, want 10", name, w.Latency)
		}
		if w := mustWire(t, inst, "fifo_a"); w.Latency != 3 {
			t.Fatalf("%s: fifo_a at %d, want 3", name, w.Latency)
		}
	}
}

func TestRelatePortForms(t *testing.T) {
	form := func(c int64, factors ...int64) ir.LatencyForm {
		return ir.LatencyForm{Const: c, Factors: factors}
	}
	tests := []struct {
		name    string
		in, out ir.LatencyForm
		want    portPair
	}{
		{"constants", form(1), form(4), portPair{kind: pairKnown, offset: 3, arg: -1}},
		{"same factors", form(0, 1), form(2, 1), portPair{kind: pairKnown, offset: 2, arg: -1}},
		{"one argument", form(0, 0), form(-3, 1), portPair{kind: pairInferable, offset: -3, factor: 1, arg: 0}},
		{"negative factor", form(0, 0, 2), form(0), portPair{kind: pairInferable, factor: -2, arg: 1}},
		{"two arguments", form(0), form(0, 1, 1), portPair{kind: pairPoison, arg: -1}},
	}
	for _, tt := range tests {
		if got := relate(tt.in, tt.out); got != tt.want {
			t.Fatalf("%s: relate = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestTypeArgumentFromBounds(t *testing.T) {
	l := buildLinker(t, `module pass #(type T) {
	input T i
	output T o
	o = i
}
module top {
	input int#(0, 5) x
	output int y
	y = pass(x)
}
`)
	inst := mustInstantiate(t, l, "top")
	expectClean(t, inst)
	sm := inst.SubModules.MustGet(1)
	if sm.Instance == nil {
		t.Fatalf("pass was not instantiated: %+v", inst.Errors.Items())
	}
	lo, hi, ok := l.Builtins.IntBounds(sm.Args[0].Type)
	if !ok || lo.Int64() != 0 || hi.Int64() != 5 {
		t.Fatalf("T inferred as %s", sm.Args[0].Type.Display(l))
	}
	expectBounds(t, mustWire(t, inst, "y"), 0, 5)
}

func TestConflictingLatency(t *testing.T) {
	l := buildLinker(t, `module m {
	input int a'0
	output int b'1
	reg reg b = a
}
`)
	inst := mustInstantiate(t, l, "m")
	if len(withCode(inst, diag.LatConflicting)) != 1 {
		t.Fatalf("want one conflict, got %+v", inst.Errors.Items())
	}
	if inst.FailedLatency == nil {
		t.Fatalf("failed latency problem was not kept")
	}
}

func TestNetPositiveCycle(t *testing.T) {
	l := buildLinker(t, `module m {
	input int a
	output int b
	int x
	int y
	x = a
	reg y = x
	x = y
	b = y
}
`)
	inst := mustInstantiate(t, l, "m")
	errs := withCode(inst, diag.LatNetPositiveCycle)
	if len(errs) != 1 {
		t.Fatalf("want one cycle error, got %+v", inst.Errors.Items())
	}
	if !strings.Contains(errs[0].Message, "+1") {
		t.Fatalf("message %q", errs[0].Message)
	}
}

func TestBoundsDiverge(t *testing.T) {
	l := buildLinker(t, `module counter {
	output int o
	state int acc
	initial acc = 0
	acc = acc + 1
	o = acc
}
`)
	inst := mustInstantiate(t, l, "counter")
	errs := withCode(inst, diag.GenBoundsDiverge)
	if len(errs) == 0 {
		t.Fatalf("no divergence reported: %+v", inst.Errors.Items())
	}
	if !strings.Contains(errs[0].Message, "keep growing") {
		t.Fatalf("message %q", errs[0].Message)
	}
}

func TestBoundedCounter(t *testing.T) {
	l := buildLinker(t, `module counter {
	output int#(0, 15) o
	state int#(0, 15) acc
	initial acc = 0
	acc = acc + 1
	o = acc
}
`)
	inst := mustInstantiate(t, l, "counter")
	errs := withCode(inst, diag.PostSubtype)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "'acc'") {
		t.Fatalf("want one subtype error on acc, got %+v", inst.Errors.Items())
	}
}

func TestUnconnected(t *testing.T) {
	l := buildLinker(t, `module m {
	input int a
	output int b
	output int c
	int w
	b = a + w
}
`)
	inst := mustInstantiate(t, l, "m")
	errs := withCode(inst, diag.GenUnconnected)
	if len(errs) != 2 {
		t.Fatalf("want two unconnected wires, got %+v", inst.Errors.Items())
	}
	var msgs []string
	for _, d := range errs {
		msgs = append(msgs, d.Message)
	}
	joined := strings.Join(msgs, "\n")
	if !strings.Contains(joined, "'w' is read but never assigned") || !strings.Contains(joined, "Output port 'c'") {
		t.Fatalf("messages %q", joined)
	}
}

func TestIndexOutOfBounds(t *testing.T) {
	l := buildLinker(t, `module m {
	input int[4] arr
	input int#(0, 4) i
	output int o
	o = arr[i]
}
`)
	inst := mustInstantiate(t, l, "m")
	if len(withCode(inst, diag.PostIndexOOB)) != 1 {
		t.Fatalf("want one index error, got %+v", inst.Errors.Items())
	}
}

func TestSubmoduleRecursion(t *testing.T) {
	l := buildLinker(t, `module r {
	input int a
	output int b
	b = r(a)
}
`)
	inst := mustInstantiate(t, l, "r")
	errs := withCode(inst, diag.GenRecursion)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "r depends on itself") {
		t.Fatalf("want one recursion error, got %+v", inst.Errors.Items())
	}
}

func TestSubmoduleErrorsPropagate(t *testing.T) {
	l := buildLinker(t, `module bad {
	input int a
	output int b
	gen int z = 0
	gen int q = 4 / z
	b = a
}
module top {
	input int x
	output int y
	y = bad(x)
}
`)
	inst := mustInstantiate(t, l, "top")
	if !inst.HasErrors() {
		t.Fatalf("top does not carry the failure of bad")
	}
	if len(withCode(inst, diag.GenDivideByZero)) != 0 {
		t.Fatalf("errors of bad leaked into top: %+v", inst.Errors.Items())
	}
}

func TestMangle(t *testing.T) {
	l := buildLinker(t, `module delay #(type T, int N) {}
`)
	id := moduleID(t, l, "delay")
	args := []ir.ConcreteArg{
		{Type: l.Builtins.IntType(big.NewInt(0), big.NewInt(7))},
		{Value: ir.KnownCell(ir.IntValue(-3))},
	}
	if got := Mangle(l, id, args); got != "delay_int_0_7_n3" {
		t.Fatalf("mangled %q", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"fifo", "fifo"},
		{"a__b", "a_b"},
		{"_x_", "x"},
		{"v[1:2]", "v_1_2"},
		{"ünïcode", "n_code"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Fatalf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUniqueNames(t *testing.T) {
	n := newUniqueNames()
	got := []string{n.get("a"), n.get("a"), n.auto(), n.get("a"), n.anon("fifo"), n.anon("fifo"), n.get("_2"), n.auto()}
	want := []string{"a", "a_2", "_1", "a_3", "fifo", "fifo_2", "_2", "_2_2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names %q, want %q", got, want)
		}
	}
}

func TestPartRange(t *testing.T) {
	tests := []struct {
		base, width int64
		dir         ir.PartDirection
		from, to    int64
	}{
		{2, 3, ir.PartUp, 2, 5},
		{4, 3, ir.PartDown, 2, 5},
		{0, 1, ir.PartDown, 0, 1},
	}
	for _, tt := range tests {
		from, to := partRange(big.NewInt(tt.base), big.NewInt(tt.width), tt.dir)
		if from.Int64() != tt.from || to.Int64() != tt.to {
			t.Fatalf("part %d,%d,%d = [%s, %s), want [%d, %d)", tt.base, tt.width, tt.dir, from, to, tt.from, tt.to)
		}
	}
}

func TestBuiltins(t *testing.T) {
	ints := func(vs ...int64) []ir.ConcreteArg {
		out := make([]ir.ConcreteArg, len(vs))
		for i, v := range vs {
			out[i].Value = ir.KnownCell(ir.IntValue(v))
		}
		return out
	}
	tests := []struct {
		name string
		args []ir.ConcreteArg
		want string
		err  string
	}{
		{"clog2", ints(1), "0", ""},
		{"clog2", ints(9), "4", ""},
		{"clog2", ints(16), "4", ""},
		{"clog2", ints(0), "", "V must be >= 1! Found 0"},
		{"pow2", ints(10), "1024", ""},
		{"pow", ints(3, 4), "81", ""},
		{"factorial", ints(5), "120", ""},
		{"falling_factorial", ints(5, 2), "20", ""},
		{"comb", ints(5, 2), "10", ""},
		{"comb", ints(2, 5), "", "K must be <= N."},
		{"min", ints(3, -2), "-2", ""},
		{"max", ints(3, -2), "3", ""},
		{"pow2", ints(-1), "", "E must be positive!"},
	}
	ex := &executor{}
	for _, tt := range tests {
		v, err := ex.builtin(tt.name, tt.args)
		if err != tt.err {
			t.Fatalf("%s%v: error %q, want %q", tt.name, tt.args, err, tt.err)
		}
		if tt.err == "" && v.String() != tt.want {
			t.Fatalf("%s: got %s, want %s", tt.name, v, tt.want)
		}
	}
}
