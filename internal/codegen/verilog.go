// Package codegen writes SystemVerilog for elaborated module instances.
package codegen

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"sus/internal/instantiate"
	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/typing"
)

// ErrHasErrors is returned for instances that did not elaborate cleanly.
var ErrHasErrors = errors.New("instance has errors")

// Emitter renders one instance.
type Emitter struct {
	l    *linker.Linker
	m    *ir.Module
	inst *instantiate.Instance
	buf  strings.Builder
}

// EmitInstance returns the SystemVerilog module for inst.
func EmitInstance(l *linker.Linker, inst *instantiate.Instance) (string, error) {
	if inst == nil {
		return "", nil
	}
	if inst.HasErrors() {
		return "", fmt.Errorf("%s: %w", inst.Name, ErrHasErrors)
	}
	e := &Emitter{l: l, m: l.Module(inst.Module), inst: inst}
	if err := e.emit(); err != nil {
		return "", fmt.Errorf("%s: %w", inst.Name, err)
	}
	return e.buf.String(), nil
}

func (e *Emitter) emit() error {
	fmt.Fprintf(&e.buf, "// %s\n", e.inst.Name)
	if e.m.Extern != ir.NotExtern {
		e.buf.WriteString("// Provided externally\n")
		sig, err := e.signature()
		if err != nil {
			return err
		}
		e.buf.WriteString("// " + strings.ReplaceAll(strings.TrimSuffix(sig, "\n"), "\n", "\n// ") + "\n\n")
		return nil
	}
	sig, err := e.signature()
	if err != nil {
		return err
	}
	e.buf.WriteString(sig)
	for _, p := range e.inst.Ports {
		if p != nil {
			if err := e.latencyRegisters(e.inst.Wire(p.Wire)); err != nil {
				return err
			}
		}
	}
	e.genvars()
	if err := e.declarations(); err != nil {
		return err
	}
	if err := e.submodules(); err != nil {
		return err
	}
	if err := e.multiplexers(); err != nil {
		return err
	}
	e.buf.WriteString("endmodule\n\n")
	return nil
}

// clock names the clock of a domain of module m.
func clock(m *ir.Module, d ir.DomainID) string {
	if dom := m.Domains.Get(d); dom != nil {
		return dom.Name
	}
	return "clk"
}

func (e *Emitter) signature() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s(", e.inst.Name)
	first := true
	sep := func() {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		sb.WriteString("\n\t")
	}
	for _, d := range e.m.Domains.All() {
		sep()
		sb.WriteString("input " + d.Name)
	}
	for _, p := range e.inst.Ports {
		if p == nil {
			continue
		}
		w := e.inst.Wire(p.Wire)
		decl, err := e.decl(w.Typ, w.Name)
		if err != nil {
			return "", err
		}
		sep()
		if p.IsInput {
			sb.WriteString("input wire " + decl)
		} else {
			sb.WriteString("output logic " + decl)
		}
	}
	sb.WriteString("\n);\n\n")
	return sb.String(), nil
}

// decl renders a declaration of name with type t: the packed width, the
// name, then one unpacked dimension per array level.
func (e *Emitter) decl(t *ir.ConcreteType, name string) (string, error) {
	var dims strings.Builder
	for t != nil && t.Kind == ir.ConcreteArray {
		n, ok := t.ArrayLen()
		if !ok {
			return "", fmt.Errorf("array size of '%s' is not known", name)
		}
		fmt.Fprintf(&dims, "[%d:0]", n-1)
		t = t.Elem
	}
	width, signed, err := e.width(t)
	if err != nil {
		return "", fmt.Errorf("'%s': %w", name, err)
	}
	var sb strings.Builder
	if signed {
		sb.WriteString("signed ")
	}
	if width > 1 {
		fmt.Fprintf(&sb, "[%d:0] ", width-1)
	}
	sb.WriteString(name)
	sb.WriteString(dims.String())
	return sb.String(), nil
}

func (e *Emitter) width(t *ir.ConcreteType) (int, bool, error) {
	b := &e.l.Builtins
	switch {
	case b.IsBool(t):
		return 1, false, nil
	case b.IsInt(t):
		lo, hi, ok := b.IntBounds(t)
		if !ok {
			return 0, false, errors.New("int bounds are not known")
		}
		w, signed := typing.Bits(typing.IntRange{Min: lo, Max: hi})
		return w, signed, nil
	case t == nil:
		return 0, false, errors.New("missing type")
	}
	return 0, false, fmt.Errorf("type %s has no hardware representation", t.Display(e.l))
}

// nameAt names wire w as seen by a reader at absolute latency lat.
func nameAt(w *instantiate.Wire, lat int64) string {
	switch {
	case lat == w.Latency:
		return w.Name
	case lat < 0:
		return fmt.Sprintf("_%s_N%d", w.Name, -lat)
	default:
		return fmt.Sprintf("_%s_D%d", w.Name, lat)
	}
}

// inline reports whether w is a scalar constant written in place of its
// name.
func inline(w *instantiate.Wire) bool {
	k := w.Source.Value.Kind
	return w.Source.Kind == instantiate.SourceConstant && (k == ir.ValueBool || k == ir.ValueInt)
}

func literal(v ir.Value) string {
	switch v.Kind {
	case ir.ValueBool:
		if v.Bool {
			return "1'b1"
		}
		return "1'b0"
	case ir.ValueInt:
		return v.Int.String()
	}
	return "'x"
}

// ref names wire id as read at latency lat.
func (e *Emitter) ref(id instantiate.WireID, lat int64) string {
	w := e.inst.Wire(id)
	if inline(w) {
		return literal(w.Source.Value)
	}
	return nameAt(w, lat)
}

func (e *Emitter) operand(o instantiate.Operand, lat int64) string {
	if o.IsConst() {
		return o.Const.String()
	}
	return e.ref(o.Wire, lat)
}

// path renders the selections of p on a wire of type t.
func (e *Emitter) path(t *ir.ConcreteType, p []instantiate.PathElem, lat int64) string {
	var sb strings.Builder
	for _, el := range p {
		switch el.Kind {
		case ir.PathIndex:
			fmt.Fprintf(&sb, "[%s]", e.operand(el.Index, lat))
			if t != nil {
				t = t.Elem
			}
		case ir.PathSlice:
			from, to := "0", ""
			if el.From.IsConst() || el.From.Wire.IsValid() {
				from = e.operand(el.From, lat)
			}
			switch {
			case el.To.IsConst():
				to = new(big.Int).Sub(el.To.Const, big.NewInt(1)).String()
			case el.To.Wire.IsValid():
				to = e.operand(el.To, lat) + "-1"
			default:
				n, _ := t.ArrayLen()
				to = fmt.Sprint(n - 1)
			}
			fmt.Fprintf(&sb, "[%s:%s]", to, from)
		case ir.PathPartSelect:
			dir := "+:"
			if el.Dir == ir.PartDown {
				dir = "-:"
			}
			fmt.Fprintf(&sb, "[%s %s %s]", e.operand(el.From, lat), dir, e.operand(el.Width, lat))
		case ir.PathField:
			sb.WriteString("." + el.Name)
		}
	}
	return sb.String()
}

// loops renders one for header per array level of t and the matching index
// suffix. Inside always blocks the loop variables are declared in place,
// outside they are genvars.
func loops(t *ir.ConcreteType, inAlways bool) (header, index string) {
	var h, ix strings.Builder
	for i := 0; t != nil && t.Kind == ir.ConcreteArray; i++ {
		n, _ := t.ArrayLen()
		v, decl := fmt.Sprintf("_g%d", i), ""
		if inAlways {
			v, decl = fmt.Sprintf("_v%d", i), "int "
		}
		fmt.Fprintf(&h, "for(%s%s = 0; %s < %d; %s = %s + 1) ", decl, v, v, n, v, v)
		fmt.Fprintf(&ix, "[%s]", v)
		t = t.Elem
	}
	return h.String(), ix.String()
}

// assign copies from into to element by element.
func (e *Emitter) assign(to, arrow, from string, t *ir.ConcreteType, inAlways bool) {
	header, index := loops(t, inAlways)
	switch {
	case header == "":
		fmt.Fprintf(&e.buf, "%s %s %s;\n", to, arrow, from)
	case inAlways:
		fmt.Fprintf(&e.buf, "%s%s%s %s %s%s;\n", header, to, index, arrow, from, index)
	default:
		fmt.Fprintf(&e.buf, "generate %s%s%s %s %s%s; endgenerate\n", header, to, index, arrow, from, index)
	}
}

// constant writes v into to, one statement per scalar element.
func (e *Emitter) constant(prefix, to string, v ir.Value) {
	if v.Kind == ir.ValueArray {
		for i, el := range v.Arr {
			e.constant(prefix, fmt.Sprintf("%s[%d]", to, i), el)
		}
		return
	}
	if v.Kind == ir.ValueUnset {
		fmt.Fprintf(&e.buf, "%s%s = '0;\n", prefix, to)
		return
	}
	fmt.Fprintf(&e.buf, "%s%s = %s;\n", prefix, to, literal(v))
}

func (e *Emitter) genvars() {
	deepest := 0
	for _, w := range e.inst.Wires.All() {
		d := 0
		for t := w.Typ; t != nil && t.Kind == ir.ConcreteArray; t = t.Elem {
			d++
		}
		deepest = max(deepest, d)
	}
	for i := range deepest {
		fmt.Fprintf(&e.buf, "genvar _g%d;\n", i)
	}
}

func (e *Emitter) declarations() error {
	for _, w := range e.inst.Wires.All() {
		if inline(w) || w.Port.IsValid() {
			continue
		}
		decl, err := e.decl(w.Typ, w.Name)
		if err != nil {
			return err
		}
		lat := w.Latency
		src := &w.Source
		switch src.Kind {
		case instantiate.SourceSelect:
			root := e.inst.Wire(src.Root)
			from := e.ref(src.Root, lat) + e.path(root.Typ, src.Path, lat)
			if w.Typ.Kind == ir.ConcreteArray {
				fmt.Fprintf(&e.buf, "wire %s;\n", decl)
				e.assign("assign "+w.Name, "=", from, w.Typ, false)
			} else {
				fmt.Fprintf(&e.buf, "wire %s = %s;\n", decl, from)
			}
		case instantiate.SourceUnary:
			fmt.Fprintf(&e.buf, "wire %s;\n", decl)
			e.unary(w)
		case instantiate.SourceBinary:
			fmt.Fprintf(&e.buf, "wire %s;\n", decl)
			header, index := loops(e.outer(w.Typ, src.OpRank), false)
			expr := fmt.Sprintf("%s%s %s %s%s", e.ref(src.Left, lat), index, src.Binary, e.ref(src.Right, lat), index)
			if header == "" {
				fmt.Fprintf(&e.buf, "assign %s = %s;\n", w.Name, expr)
			} else {
				fmt.Fprintf(&e.buf, "generate %sassign %s%s = %s; endgenerate\n", header, w.Name, index, expr)
			}
		case instantiate.SourceConstant:
			fmt.Fprintf(&e.buf, "wire %s;\n", decl)
			e.constant("assign ", w.Name, src.Value)
		case instantiate.SourceArray:
			fmt.Fprintf(&e.buf, "wire %s;\n", decl)
			for i, el := range src.Elements {
				e.assign(fmt.Sprintf("assign %s[%d]", w.Name, i), "=", e.ref(el, lat), e.inst.Wire(el).Typ, false)
			}
		case instantiate.SourceMux:
			fmt.Fprintf(&e.buf, "logic %s;\n", decl)
			if src.IsState && src.Initial.IsSet() {
				e.constant("initial ", w.Name, src.Initial)
			}
		default:
			fmt.Fprintf(&e.buf, "wire %s;\n", decl)
		}
		if err := e.latencyRegisters(w); err != nil {
			return err
		}
	}
	return nil
}

// outer keeps the first rank array levels of t.
func (e *Emitter) outer(t *ir.ConcreteType, rank uint32) *ir.ConcreteType {
	if rank == 0 || t == nil || t.Kind != ir.ConcreteArray {
		return nil
	}
	return &ir.ConcreteType{Kind: ir.ConcreteArray, Size: t.Size, Elem: e.outer(t.Elem, rank-1)}
}

func (e *Emitter) unary(w *instantiate.Wire) {
	src := &w.Source
	right := e.inst.Wire(src.Right)
	header, index := loops(e.outer(w.Typ, src.OpRank), false)
	operand := e.ref(src.Right, w.Latency) + index
	var expr string
	if src.Unary.IsReduction() {
		t := right.Typ
		for range src.OpRank {
			t = t.Elem
		}
		n, _ := t.ArrayLen()
		parts := make([]string, n)
		for i := range parts {
			parts[i] = fmt.Sprintf("%s[%d]", operand, i)
		}
		expr = strings.Join(parts, " "+src.Unary.String()+" ")
		if n == 0 {
			expr = reductionIdentity(src.Unary)
		}
	} else {
		expr = src.Unary.String() + operand
	}
	if header == "" {
		fmt.Fprintf(&e.buf, "assign %s = %s;\n", w.Name, expr)
		return
	}
	fmt.Fprintf(&e.buf, "generate %sassign %s%s = %s; endgenerate\n", header, w.Name, index, expr)
}

func reductionIdentity(op ir.UnaryOperator) string {
	switch op {
	case ir.UnaryAnd:
		return "1'b1"
	case ir.UnaryProduct:
		return "1"
	case ir.UnarySum:
		return "0"
	}
	return "1'b0"
}

// latencyRegisters declares the delay chain that keeps w available until
// the last latency it is read at.
func (e *Emitter) latencyRegisters(w *instantiate.Wire) error {
	clk := clock(e.m, w.Domain)
	for i := w.Latency; i < w.NeededUntil; i++ {
		from, to := nameAt(w, i), nameAt(w, i+1)
		decl, err := e.decl(w.Typ, to)
		if err != nil {
			return err
		}
		fmt.Fprintf(&e.buf, "/*latency*/ logic %s; always_ff @(posedge %s) begin %s <= %s; end\n", decl, clk, to, from)
	}
	return nil
}

func (e *Emitter) submodules() error {
	for _, sm := range e.inst.SubModules.All() {
		sub := sm.Instance
		if sub == nil {
			return fmt.Errorf("submodule %s was not instantiated", sm.Name)
		}
		target := e.l.Module(sm.Module)
		if target.Extern != ir.NotExtern {
			e.buf.WriteString(target.Name)
			e.templateArgs(target, sub.Args)
		} else {
			e.buf.WriteString(sub.Name)
		}
		fmt.Fprintf(&e.buf, " %s(", sm.Name)
		first := true
		sep := func() {
			if !first {
				e.buf.WriteByte(',')
			}
			first = false
			e.buf.WriteString("\n\t")
		}
		for i, d := range sm.Domains {
			sep()
			fmt.Fprintf(&e.buf, ".%s(%s)", clock(target, ir.DomainID(i+1)), clock(e.m, d))
		}
		for i, p := range sub.Ports {
			if p == nil {
				continue
			}
			sep()
			w := e.inst.Wire(sm.PortMap[i])
			fmt.Fprintf(&e.buf, ".%s(%s)", p.Name, w.Name)
		}
		e.buf.WriteString("\n);\n")
	}
	return nil
}

func (e *Emitter) templateArgs(target *ir.Module, args []ir.ConcreteArg) {
	var parts []string
	for pid, p := range target.Parameters.All() {
		a := args[pid-1]
		if a.Type != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf(".%s(%s)", p.Name, literal(a.Value.Value)))
	}
	if len(parts) > 0 {
		fmt.Fprintf(&e.buf, " #(%s)", strings.Join(parts, ", "))
	}
}

func (e *Emitter) multiplexers() error {
	for _, w := range e.inst.Wires.All() {
		src := &w.Source
		if src.Kind != instantiate.SourceMux || (w.Port.IsValid() && w.IsInput) {
			continue
		}
		arrow := "="
		if src.IsState {
			fmt.Fprintf(&e.buf, "always_ff @(posedge %s) begin\n", clock(e.m, w.Domain))
			arrow = "<="
		} else {
			e.buf.WriteString("always_comb begin\n")
			if w.Typ.Kind == ir.ConcreteArray {
				fmt.Fprintf(&e.buf, "\t%s = '{default: '0};\n", w.Name)
			} else {
				fmt.Fprintf(&e.buf, "\t%s = '0;\n", w.Name)
			}
		}
		for i := range src.Sources {
			s := &src.Sources[i]
			var conds strings.Builder
			for _, c := range s.Condition {
				neg := ""
				if c.Negate {
					neg = "!"
				}
				fmt.Fprintf(&conds, "if(%s%s) ", neg, e.ref(c.Wire, w.Latency))
			}
			e.buf.WriteByte('\t')
			to := conds.String() + w.Name + e.path(w.Typ, s.Path, w.Latency)
			e.assign(to, arrow, e.ref(s.From, w.Latency), e.inst.Wire(s.From).Typ, true)
		}
		e.buf.WriteString("end\n")
	}
	return nil
}
