package instantiate

import (
	"fmt"
	"math/big"
	"slices"

	"sus/internal/arena"
	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/source"
	"sus/internal/trace"
	"sus/internal/typing"
)

type slotKind uint8

const (
	slotNone slotKind = iota
	slotValue
	slotWire
	slotSubModule
)

// slot is what an instruction produced in the current execution.
type slot struct {
	kind  slotKind
	value ir.Value
	wire  WireID
	sub   SubModuleID
}

// executor runs the instruction stream of a module or constant for one
// argument tuple. Generative instructions store values in their slots,
// physical ones add wires and submodules to inst.
type executor struct {
	l    *linker.Linker
	li   *ir.LinkInfo
	args []ir.ConcreteArg
	// inst is nil while evaluating a constant.
	inst  *Instance
	u     *typing.Unifier
	rep   diag.Reporter
	slots []slot
	// cond holds the conditions of the enclosing 'when' blocks.
	cond  []CondTerm
	names *uniqueNames
	depth int
}

func newExecutor(l *linker.Linker, li *ir.LinkInfo, args []ir.ConcreteArg, inst *Instance, u *typing.Unifier, rep diag.Reporter) *executor {
	return &executor{
		l:     l,
		li:    li,
		args:  args,
		inst:  inst,
		u:     u,
		rep:   rep,
		slots: make([]slot, li.Instructions.Len()+1),
		names: newUniqueNames(),
	}
}

func (ex *executor) run(r arena.Range[ir.FlatID]) {
	w := r.Walk()
	for id, ok := w.Next(); ok; id, ok = w.Next() {
		instr := ex.li.Instr(id)
		trace.Touch("instantiate", instr.Span)
		switch d := instr.Data.(type) {
		case *ir.Declaration:
			ex.declaration(id, d)
		case *ir.SubModule:
			ex.submodule(id, d)
		case *ir.Expression:
			ex.expression(id, instr.Span, d)
		case *ir.IfStatement:
			ex.ifStatement(d)
			w.SkipTo(max(d.Then.End, d.Else.End))
		case *ir.ForStatement:
			ex.forStatement(d)
			w.SkipTo(d.Body.End)
		}
	}
}

func (ex *executor) ifStatement(s *ir.IfStatement) {
	c := ex.slots[s.Condition]
	switch c.kind {
	case slotValue:
		if c.value.Kind != ir.ValueBool {
			return
		}
		if c.value.Bool {
			ex.run(s.Then)
		} else {
			ex.run(s.Else)
		}
	case slotWire:
		outer := ex.cond
		ex.cond = append(slices.Clip(outer), CondTerm{Wire: c.wire})
		ex.run(s.Then)
		ex.cond = append(slices.Clip(outer), CondTerm{Wire: c.wire, Negate: true})
		ex.run(s.Else)
		ex.cond = outer
	}
}

func (ex *executor) forStatement(s *ir.ForStatement) {
	start, okStart := ex.intOf(s.Start)
	end, okEnd := ex.intOf(s.End)
	if !okStart || !okEnd {
		return
	}
	if start.Cmp(end) > 0 {
		diag.ReportError(ex.rep, diag.GenForRange, ex.li.Instr(s.Start).Span,
			fmt.Sprintf("for loop range end is before begin: %s:%s", start, end)).
			WithNote(ex.li.Instr(s.End).Span, fmt.Sprintf("The range ends at %s", end)).
			Emit()
		return
	}
	one := big.NewInt(1)
	for i := new(big.Int).Set(start); i.Cmp(end) < 0; i.Add(i, one) {
		ex.slots[s.LoopVar] = slot{kind: slotValue, value: ir.BigValue(i)}
		ex.run(s.Body)
	}
}

func (ex *executor) declaration(id ir.FlatID, d *ir.Declaration) {
	switch {
	case d.Kind == ir.DeclTemplateParam:
		v := ir.ErrorValue
		if a := ex.arg(d.Param); a != nil {
			if c := ex.u.ResolveValue(a.Value); c.Known() {
				v = c.Value
			}
		}
		ex.slots[id] = slot{kind: slotValue, value: v}
	case d.IsGenerative():
		ex.slots[id] = slot{kind: slotValue, value: unsetOf(ex.concretize(&d.TypeExpr))}
	case ex.inst != nil:
		ex.slots[id] = slot{kind: slotWire, wire: ex.declWire(id, d)}
	}
}

func (ex *executor) declWire(id ir.FlatID, d *ir.Declaration) WireID {
	w := Wire{
		Name:     ex.names.get(d.Name),
		Typ:      ex.concretize(&d.TypeExpr),
		Domain:   d.Domain,
		Original: id,
		Latency:  LatencyLater,
	}
	readOnly := d.Kind == ir.DeclPort && d.IsInput
	if readOnly {
		w.Source = Source{Kind: SourceReadOnly}
	} else {
		w.Source = Source{Kind: SourceMux, IsState: d.Ident == ir.IdentState}
	}
	ex.initBounds(&w, readOnly || d.Kind == ir.DeclPort && ex.li.Extern != ir.NotExtern)
	if d.LatencySpec.IsValid() {
		if v, ok := ex.intOf(d.LatencySpec); ok && v.IsInt64() {
			w.Specified, w.HasSpecified = v.Int64(), true
		}
	}
	if d.Kind == ir.DeclPort {
		w.Port, w.IsInput = d.Port, d.IsInput
	}
	wid := ex.inst.Wires.Alloc(w)
	if d.Kind == ir.DeclPort && d.Port.IsValid() && int(d.Port) <= len(ex.inst.Ports) {
		ex.inst.Ports[d.Port-1] = &Port{
			Name:    d.Name,
			Wire:    wid,
			IsInput: d.IsInput,
			Domain:  d.Domain,
			Latency: LatencyLater,
		}
	}
	return wid
}

// initBounds fixes the range of wires whose int bounds are written. Inputs
// and the ports of extern modules without written bounds take the 32-bit
// range. Every other wire infers them from its writers.
func (ex *executor) initBounds(w *Wire, fixed bool) {
	base := ex.baseType(w.Typ)
	if !ex.l.Builtins.IsInt(base) {
		return
	}
	if lo, hi, ok := ex.l.Builtins.IntBounds(base); ok {
		w.Bounds = &typing.IntRange{Min: lo, Max: hi}
		return
	}
	if fixed {
		r := typing.Int32Range()
		w.Bounds = &r
		return
	}
	w.InferBounds = true
}

func (ex *executor) submodule(id ir.FlatID, sm *ir.SubModule) {
	if ex.inst == nil {
		return
	}
	mid := sm.Module.ID.Module()
	m := ex.l.Module(mid)
	if m == nil {
		return
	}
	name := sm.Name
	if name == "" {
		name = ex.names.anon(m.Name)
	} else {
		name = ex.names.get(name)
	}
	sub := SubModule{
		Name:     name,
		Module:   mid,
		Original: id,
		Args:     ex.templateArgs(&sm.Module, nil),
		PortMap:  make([]WireID, m.Ports.Len()),
		Domains:  make([]ir.DomainID, m.Domains.Len()),
	}
	for i, d := range sm.Domains {
		if i < len(sub.Domains) && d.Kind == ir.DomainPhysical {
			sub.Domains[i] = d.Physical
		}
	}
	for i := range sub.Domains {
		if !sub.Domains[i].IsValid() {
			sub.Domains[i] = 1
		}
	}
	sid := ex.inst.SubModules.Alloc(sub)
	ex.slots[id] = slot{kind: slotSubModule, sub: sid}

	for pid, p := range m.Ports.All() {
		w := Wire{
			Name:     ex.names.get(name + "_" + p.Name),
			Typ:      ex.portType(m, p, sub.Args),
			Domain:   sub.Domains[0],
			Original: id,
			Latency:  LatencyLater,
		}
		if int(p.Domain) <= len(sub.Domains) && p.Domain.IsValid() {
			w.Domain = sub.Domains[p.Domain-1]
		}
		if p.IsInput {
			w.Source = Source{Kind: SourceMux}
			w.InferBounds = ex.l.Builtins.IsInt(ex.baseType(w.Typ))
		} else {
			w.Source = Source{Kind: SourceOutPort, SubModule: sid, Port: pid}
		}
		wid := ex.inst.Wires.Alloc(w)
		ex.inst.SubModules.MustGet(sid).PortMap[pid-1] = wid
	}
}

// templateArgs builds the arguments of a reference to a global. Arguments
// that were not given become unifier variables. For constants, which must be
// evaluated on the spot, a missing value argument is reported at span.
func (ex *executor) templateArgs(ref *ir.GlobalRef, span *source.Span) []ir.ConcreteArg {
	target := ex.l.LinkInfo(ref.ID)
	if target == nil {
		return nil
	}
	args := make([]ir.ConcreteArg, target.Parameters.Len())
	for pid, p := range target.Parameters.All() {
		i := int(pid) - 1
		var given *ir.TemplateArg
		if i < len(ref.Args) {
			given = ref.Args[i]
		}
		switch p.Kind {
		case ir.ParamType:
			switch {
			case given != nil && given.Kind == ir.ArgType:
				args[i].Type = ex.concretize(&given.Type)
			case i < len(ref.TypeArgs):
				args[i].Type = ex.fromAbstract(ref.TypeArgs[i])
			default:
				args[i].Type = ex.u.FreshConcrete()
			}
		case ir.ParamValue:
			switch {
			case given != nil && given.Kind == ir.ArgValue:
				args[i].Value = ir.KnownCell(ex.valueOf(given.Value))
			case span != nil:
				diag.ReportError(ex.rep, diag.GenMissingArg, *span,
					fmt.Sprintf("Template argument '%s' of '%s' was not given", p.Name, target.Name)).
					WithNote(p.NameSpan, "Declared here").
					Emit()
				args[i].Value = ir.KnownCell(ir.ErrorValue)
			default:
				args[i].Value = ex.u.FreshValue()
			}
		}
	}
	return args
}

func (ex *executor) expression(id ir.FlatID, span source.Span, e *ir.Expression) {
	if e.Source.Kind == ir.SourceFuncCall {
		ex.call(id, e)
		return
	}
	if e.Typ.Domain.IsGenerative() {
		v := ex.eval(span, &e.Source)
		if e.Output == ir.OutputSubExpression {
			ex.slots[id] = slot{kind: slotValue, value: v}
			return
		}
		for i := range e.Writes {
			ex.writeValue(id, &e.Writes[i], v)
		}
		return
	}
	if ex.inst == nil {
		return
	}
	wire := ex.sourceWire(id, span, &e.Source)
	if e.Output == ir.OutputSubExpression {
		ex.slots[id] = slot{kind: slotWire, wire: wire}
		return
	}
	for i := range e.Writes {
		ex.connect(id, &e.Writes[i], wire)
	}
}

// writeValue stores a generative value. Physical targets get a constant
// driver instead.
func (ex *executor) writeValue(id ir.FlatID, w *ir.WriteTo, v ir.Value) {
	if w.Modifiers.Kind == ir.WriteInitial {
		ex.setInitial(w, v)
		return
	}
	root := w.To.Root
	if root.Kind == ir.RootLocalDecl && ex.slots[root.Local].kind == slotValue {
		ex.store(&ex.slots[root.Local].value, w.To.Path, v)
		return
	}
	if ex.inst == nil || root.Kind == ir.RootError {
		return
	}
	ex.connect(id, w, ex.constantWire(id, v))
}

func (ex *executor) setInitial(w *ir.WriteTo, v ir.Value) {
	if ex.inst == nil || w.To.Root.Kind != ir.RootLocalDecl {
		return
	}
	s := ex.slots[w.To.Root.Local]
	if s.kind != slotWire {
		return
	}
	wire := ex.inst.Wire(s.wire)
	if !wire.Source.IsState {
		return
	}
	if !wire.Source.Initial.IsSet() {
		wire.Source.Initial = unsetOf(ex.resolveType(wire.Typ))
	}
	ex.store(&wire.Source.Initial, w.To.Path, v)
}

// store writes v into the generative value cur at path.
func (ex *executor) store(cur *ir.Value, path []ir.PathElem, v ir.Value) {
	for i := range path {
		p := &path[i]
		if p.Kind != ir.PathIndex {
			diag.ReportError(ex.rep, diag.GenNotSupported, p.BracketSpan,
				"Only indexing is supported when writing to generative arrays").Emit()
			return
		}
		idx, ok := ex.intOf(p.Idx)
		if !ok || cur.Kind != ir.ValueArray {
			return
		}
		n := len(cur.Arr)
		if idx.Sign() < 0 || idx.Cmp(big.NewInt(int64(n))) >= 0 {
			diag.ReportError(ex.rep, diag.GenIndexOOB, p.BracketSpan,
				fmt.Sprintf("Index out of bounds. Array is of size %d, but the index is %s.", n, idx)).Emit()
			return
		}
		cur = &cur.Arr[idx.Int64()]
	}
	*cur = v.Clone()
}

func (ex *executor) call(id ir.FlatID, e *ir.Expression) {
	if ex.inst == nil {
		return
	}
	c := e.Source.Call
	s := ex.slots[c.SubModule]
	if s.kind != slotSubModule {
		return
	}
	m := ex.l.Module(ex.inst.SubModules.MustGet(s.sub).Module)
	iface := m.Interfaces.MustGet(c.Interface)
	for i, arg := range c.Args {
		if i >= len(iface.Inputs) {
			break
		}
		from := ex.operandWire(id, arg)
		port := ex.inst.SubModules.MustGet(s.sub).PortMap[iface.Inputs[i]-1]
		ex.addSource(port, nil, from, MuxSource{Write: id, ToSpan: ex.li.Instr(arg).Span}, ex.li.Instr(arg).Span)
	}
	outs := make([]WireID, len(iface.Outputs))
	for i, p := range iface.Outputs {
		outs[i] = ex.inst.SubModules.MustGet(s.sub).PortMap[p-1]
	}
	if e.Output == ir.OutputSubExpression {
		if len(outs) > 0 {
			ex.slots[id] = slot{kind: slotWire, wire: outs[0]}
		}
		return
	}
	for i := range e.Writes {
		if i < len(outs) {
			ex.connect(id, &e.Writes[i], outs[i])
		}
	}
}

// connect adds from as a source of the write target.
func (ex *executor) connect(id ir.FlatID, w *ir.WriteTo, from WireID) {
	target, path, ok := ex.writeTarget(&w.To)
	if !ok {
		return
	}
	ex.addSource(target, path, from, MuxSource{
		NumRegs:  w.Modifiers.NumRegs,
		Write:    id,
		ToSpan:   w.ToSpan,
		RegsSpan: w.Modifiers.RegsSpan,
	}, w.ToSpan)
}

func (ex *executor) addSource(target WireID, path []PathElem, from WireID, src MuxSource, span source.Span) {
	tw := ex.inst.Wire(target)
	if tw.Source.Kind != SourceMux {
		return
	}
	ex.checkAssign(span, ex.typeAt(tw.Typ, path), ex.inst.Wire(from).Typ)
	src.Path = path
	src.From = from
	src.Condition = slices.Clone(ex.cond)
	tw = ex.inst.Wire(target)
	tw.Source.Sources = append(tw.Source.Sources, src)
}

func (ex *executor) writeTarget(ref *ir.WireReference) (WireID, []PathElem, bool) {
	switch ref.Root.Kind {
	case ir.RootLocalDecl:
		s := ex.slots[ref.Root.Local]
		if s.kind != slotWire {
			return 0, nil, false
		}
		return s.wire, ex.path(ref.Path), true
	case ir.RootLocalSubmodule:
		port, ok := ref.IsPort()
		s := ex.slots[ref.Root.Local]
		if !ok || s.kind != slotSubModule {
			return 0, nil, false
		}
		return ex.inst.SubModules.MustGet(s.sub).PortMap[port-1], ex.path(ref.Path[1:]), true
	}
	return 0, nil, false
}

func (ex *executor) path(path []ir.PathElem) []PathElem {
	if len(path) == 0 {
		return nil
	}
	out := make([]PathElem, len(path))
	for i := range path {
		p := &path[i]
		out[i] = PathElem{
			Kind:  p.Kind,
			Span:  p.BracketSpan,
			Name:  p.Name,
			Index: ex.operand(p.Idx),
			From:  ex.operand(p.From),
			To:    ex.operand(p.To),
			Width: ex.operand(p.Width),
			Dir:   p.Dir,
		}
		if p.Kind == ir.PathField {
			out[i].Span = p.NameSpan
		}
	}
	return out
}

func (ex *executor) operand(id ir.FlatID) Operand {
	if !id.IsValid() {
		return Operand{}
	}
	switch s := ex.slots[id]; s.kind {
	case slotValue:
		if s.value.Kind == ir.ValueInt {
			return Operand{Const: new(big.Int).Set(s.value.Int)}
		}
	case slotWire:
		return Operand{Wire: s.wire}
	}
	return Operand{}
}

// sourceWire creates the wire computing a non-generative expression.
func (ex *executor) sourceWire(id ir.FlatID, span source.Span, src *ir.ExprSource) WireID {
	switch src.Kind {
	case ir.SourceWireRef:
		return ex.refWire(id, src.Ref)
	case ir.SourceUnary:
		right := ex.operandWire(id, src.Right)
		typ := ex.unaryType(src.Unary, src.OpRank.Base, ex.inst.Wire(right).Typ)
		return ex.newWire(id, typ, ex.inst.Wire(right).Domain, Source{
			Kind:   SourceUnary,
			Unary:  src.Unary,
			OpRank: src.OpRank.Base,
			Right:  right,
		})
	case ir.SourceBinary:
		left := ex.operandWire(id, src.Left)
		right := ex.operandWire(id, src.Right)
		lt, rt := ex.inst.Wire(left).Typ, ex.inst.Wire(right).Typ
		if !ex.u.UnifyShape(lt, rt, ex.l.Builtins.Int).OK() {
			diag.ReportError(ex.rep, diag.TypeMismatch, span,
				fmt.Sprintf("Instantiation TypeError: the operands of '%s' are %s and %s", src.Binary, ex.display(lt), ex.display(rt))).Emit()
		}
		return ex.newWire(id, ex.binaryType(src.Binary, src.OpRank.Base, lt), ex.joinDomain(left, right), Source{
			Kind:   SourceBinary,
			Binary: src.Binary,
			OpRank: src.OpRank.Base,
			Left:   left,
			Right:  right,
		})
	case ir.SourceArray:
		elems := make([]WireID, len(src.Elements))
		for i, el := range src.Elements {
			elems[i] = ex.operandWire(id, el)
		}
		var elem *ir.ConcreteType
		var dom ir.DomainID
		for _, el := range elems {
			w := ex.inst.Wire(el)
			if elem == nil {
				elem = w.Typ
			} else if !ex.u.UnifyShape(elem, w.Typ, ex.l.Builtins.Int).OK() {
				diag.ReportError(ex.rep, diag.TypeMismatch, span,
					fmt.Sprintf("Instantiation TypeError: array elements of types %s and %s", ex.display(elem), ex.display(w.Typ))).Emit()
			}
			if !dom.IsValid() {
				dom = w.Domain
			}
		}
		if elem == nil {
			elem = ex.u.FreshConcrete()
		}
		return ex.newWire(id, ir.ArrayOf(elem, int64(len(elems))), dom, Source{Kind: SourceArray, Elements: elems})
	case ir.SourceLiteral:
		return ex.constantWire(id, src.Literal)
	}
	return ex.constantWire(id, ir.ErrorValue)
}

// refWire reads a wire reference. A reference without path is the wire
// itself.
func (ex *executor) refWire(id ir.FlatID, ref *ir.WireReference) WireID {
	var root WireID
	path := ref.Path
	switch ref.Root.Kind {
	case ir.RootLocalDecl:
		switch s := ex.slots[ref.Root.Local]; s.kind {
		case slotWire:
			root = s.wire
		case slotValue:
			root = ex.constantWire(id, s.value)
		}
	case ir.RootLocalSubmodule:
		port, ok := ref.IsPort()
		s := ex.slots[ref.Root.Local]
		if ok && s.kind == slotSubModule {
			root = ex.inst.SubModules.MustGet(s.sub).PortMap[port-1]
			path = path[1:]
		}
	case ir.RootNamedConstant:
		root = ex.constantWire(id, ex.evalConstant(ref.Root.Global, ref.Root.Span))
	}
	if !root.IsValid() {
		return ex.constantWire(id, ir.ErrorValue)
	}
	if len(path) == 0 {
		return root
	}
	p := ex.path(path)
	rw := ex.inst.Wire(root)
	dom := rw.Domain
	if rw.Source.Kind == SourceConstant {
		for _, e := range p {
			if e.Index.Wire.IsValid() {
				dom = ex.inst.Wire(e.Index.Wire).Domain
			}
		}
	}
	return ex.newWire(id, ex.typeAt(rw.Typ, p), dom, Source{Kind: SourceSelect, Root: root, Path: p})
}

// operandWire returns the wire of an operand, wrapping generative values in
// a constant driver.
func (ex *executor) operandWire(id, operand ir.FlatID) WireID {
	switch s := ex.slots[operand]; s.kind {
	case slotWire:
		return s.wire
	case slotValue:
		return ex.constantWire(id, s.value)
	}
	return ex.constantWire(id, ir.ErrorValue)
}

func (ex *executor) constantWire(id ir.FlatID, v ir.Value) WireID {
	return ex.newWire(id, ex.valueType(v), 0, Source{Kind: SourceConstant, Value: v})
}

func (ex *executor) newWire(id ir.FlatID, typ *ir.ConcreteType, dom ir.DomainID, src Source) WireID {
	w := Wire{
		Name:     ex.names.auto(),
		Typ:      typ,
		Domain:   dom,
		Source:   src,
		Original: id,
		Latency:  LatencyLater,
	}
	w.InferBounds = ex.l.Builtins.IsInt(ex.baseType(typ))
	return ex.inst.Wires.Alloc(w)
}

func (ex *executor) joinDomain(a, b WireID) ir.DomainID {
	if d := ex.inst.Wire(a).Domain; d.IsValid() {
		return d
	}
	return ex.inst.Wire(b).Domain
}

func (ex *executor) checkAssign(span source.Span, to, from *ir.ConcreteType) {
	if ex.u.UnifyShape(to, from, ex.l.Builtins.Int).OK() {
		return
	}
	diag.ReportError(ex.rep, diag.TypeMismatch, span,
		fmt.Sprintf("Instantiation TypeError: Can't assign %s to %s", ex.display(from), ex.display(to))).Emit()
}

func (ex *executor) arg(id ir.TemplateID) *ir.ConcreteArg {
	if !id.IsValid() || int(id) > len(ex.args) {
		return nil
	}
	return &ex.args[id-1]
}

// valueOf returns the generative value an instruction produced.
func (ex *executor) valueOf(id ir.FlatID) ir.Value {
	if s := ex.slots[id]; s.kind == slotValue {
		return s.value
	}
	return ir.ErrorValue
}

// intOf returns the integer an instruction produced. Errors were reported
// where the value was computed.
func (ex *executor) intOf(id ir.FlatID) (*big.Int, bool) {
	v := ex.valueOf(id)
	if v.Kind != ir.ValueInt {
		return nil, false
	}
	return v.Int, true
}

// unsetOf builds the initial value of a generative variable of type t.
func unsetOf(t *ir.ConcreteType) ir.Value {
	if n, ok := t.ArrayLen(); ok && n >= 0 {
		arr := make([]ir.Value, n)
		for i := range arr {
			arr[i] = unsetOf(t.Elem)
		}
		return ir.ArrayValue(arr)
	}
	return ir.Value{}
}
