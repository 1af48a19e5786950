package flatten

import (
	"fmt"
	"math/big"
	"strings"

	"sus/internal/cst"
	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
)

// subexpr flattens an expression whose value is consumed by another
// instruction.
func (f *flattener) subexpr(node cst.NodeID) ir.FlatID {
	src, span, gen := f.exprSource(node)
	if src.Kind == ir.SourceFuncCall {
		f.checkOutputs(src.Call, []source.Span{span}, span)
	}
	return f.alloc(span, &ir.Expression{
		Source: src,
		Output: ir.OutputSubExpression,
		Typ:    fullType(gen),
	})
}

// exprSource flattens the operands of node and returns what it computes,
// its span and whether it is known at compile time.
func (f *flattener) exprSource(node cst.NodeID) (ir.ExprSource, source.Span, bool) {
	t := f.t
	span := t.Span(node)
	switch t.Kind(node) {
	case cst.KindNumber:
		v, ok := parseNumber(t.Text(node))
		if !ok {
			diag.ReportError(f.rep, diag.LexBadNumber, span,
				fmt.Sprintf("'%s' is not a valid number", t.Text(node))).Emit()
			return ir.ExprSource{Kind: ir.SourceLiteral, Literal: ir.ErrorValue}, span, true
		}
		return ir.ExprSource{Kind: ir.SourceLiteral, Literal: ir.Value{Kind: ir.ValueInt, Int: v}}, span, true

	case cst.KindParenthesisExpression:
		return f.exprSource(t.Field(node, cst.FieldContent))

	case cst.KindUnaryOp:
		opNode := t.Field(node, cst.FieldOperator)
		op, ok := ir.UnaryFromText(t.Text(opNode))
		if !ok {
			diag.ReportError(f.rep, diag.SynExpectExpression, t.Span(opNode),
				fmt.Sprintf("'%s' is not a unary operator", t.Text(opNode))).Emit()
		}
		right := f.subexpr(t.Field(node, cst.FieldRight))
		return ir.ExprSource{Kind: ir.SourceUnary, Unary: op, Right: right}, span, f.isGen(right)

	case cst.KindBinaryOp:
		left := f.subexpr(t.Field(node, cst.FieldLeft))
		opNode := t.Field(node, cst.FieldOperator)
		op, ok := ir.BinaryFromText(t.Text(opNode))
		if !ok {
			diag.ReportError(f.rep, diag.SynExpectExpression, t.Span(opNode),
				fmt.Sprintf("'%s' is not a binary operator", t.Text(opNode))).Emit()
		}
		right := f.subexpr(t.Field(node, cst.FieldRight))
		gen := f.isGen(left) && f.isGen(right)
		return ir.ExprSource{Kind: ir.SourceBinary, Binary: op, Left: left, Right: right}, span, gen

	case cst.KindArrayListExpression:
		gen := true
		var elems []ir.FlatID
		for _, item := range t.Items(node) {
			id := f.subexpr(item)
			gen = gen && f.isGen(id)
			elems = append(elems, id)
		}
		return ir.ExprSource{Kind: ir.SourceArray, Elements: elems}, span, gen

	case cst.KindFuncCall:
		call := f.call(node)
		if call == nil {
			return errorSource(span), span, true
		}
		return ir.ExprSource{Kind: ir.SourceFuncCall, Call: call}, span, false

	case cst.KindTemplateGlobal, cst.KindArrayOp, cst.KindFieldAccess:
		ref, gen := f.extract(f.wireRef(node))
		return ir.ExprSource{Kind: ir.SourceWireRef, Ref: &ref}, span, gen
	}
	return errorSource(span), span, true
}

func errorSource(span source.Span) ir.ExprSource {
	return ir.ExprSource{Kind: ir.SourceWireRef, Ref: errorRef(span)}
}

func errorRef(span source.Span) *ir.WireReference {
	return &ir.WireReference{Root: ir.WireRefRoot{Kind: ir.RootError, Span: span}, Span: span}
}

// parseNumber reads decimal, 0x and 0b literals with '_' separators.
func parseNumber(text string) (*big.Int, bool) {
	s := strings.ReplaceAll(text, "_", "")
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		s, base = s[2:], 2
	}
	if s == "" {
		return nil, false
	}
	return new(big.Int).SetString(s, base)
}

type partialKind uint8

const (
	partialError partialKind = iota
	partialRef
	partialGlobalModule
	partialSubmodule
	partialInterface
)

// partial is a wire reference under construction. Module names and submodule
// interfaces only become usable once a port is selected or they are called.
type partial struct {
	kind partialKind
	span source.Span
	ref  ir.WireReference
	gen  bool

	global *ir.GlobalRef // partialGlobalModule
	sub    ir.FlatID     // partialSubmodule, partialInterface
	module ir.ModuleID   // partialSubmodule, partialInterface
	iface  ir.InterfaceID
	// nameSpan is the span of the submodule or interface name.
	nameSpan source.Span
}

func errorPartial(span source.Span) partial {
	return partial{kind: partialError, span: span, ref: *errorRef(span), gen: true}
}

func (f *flattener) wireRef(node cst.NodeID) partial {
	t := f.t
	span := t.Span(node)
	switch t.Kind(node) {
	case cst.KindTemplateGlobal:
		return f.namedRoot(node)

	case cst.KindArrayOp:
		p := f.wireRef(t.Field(node, cst.FieldArr))
		elem, gen := f.bracket(t.Field(node, cst.FieldArrIdx))
		switch p.kind {
		case partialRef:
			p.ref.Path = append(p.ref.Path, elem)
			p.ref.Span = span
			p.span = span
			p.gen = p.gen && gen
			return p
		case partialError:
			return errorPartial(span)
		}
		diag.ReportError(f.rep, diag.FlatModuleAsValue, p.span,
			"Modules and interfaces cannot be indexed").Emit()
		return errorPartial(span)

	case cst.KindFieldAccess:
		return f.fieldAccess(node)

	case cst.KindNumber:
		diag.ReportError(f.rep, diag.FlatNotAssignable, span, "A constant is not a wire reference").Emit()
	case cst.KindUnaryOp, cst.KindBinaryOp:
		diag.ReportError(f.rep, diag.FlatNotAssignable, span, "The result of an operator is not a wire reference").Emit()
	case cst.KindFuncCall:
		diag.ReportError(f.rep, diag.FlatNotAssignable, span, "A submodule call is not a wire reference").Emit()
	case cst.KindParenthesisExpression:
		diag.ReportError(f.rep, diag.FlatNotAssignable, span, "Parentheses are not allowed within a wire reference").Emit()
	case cst.KindArrayListExpression:
		diag.ReportError(f.rep, diag.FlatNotAssignable, span, "An array literal is not a wire reference").Emit()
	}
	return errorPartial(span)
}

func (f *flattener) namedRoot(node cst.NodeID) partial {
	t := f.t
	span := t.Span(node)
	r := f.resolve(node)
	if !r.found {
		return errorPartial(span)
	}
	if r.isLocal {
		switch r.local.kind {
		case localDecl:
			d := f.li.Instr(r.local.id).Decl()
			return partial{
				kind: partialRef,
				span: span,
				ref: ir.WireReference{
					Root: ir.WireRefRoot{Kind: ir.RootLocalDecl, Local: r.local.id, Span: span},
					Span: span,
				},
				gen: d.IsGenerative(),
			}
		case localSubmodule:
			sm := f.li.Instr(r.local.id).SubModule()
			return partial{
				kind:     partialSubmodule,
				span:     span,
				sub:      r.local.id,
				module:   sm.Module.ID.Module(),
				nameSpan: span,
			}
		case localTemplateType:
			diag.ReportError(f.rep, diag.NameWrongKind, span,
				fmt.Sprintf("Expected a value, but instead found template type '%s'", t.Text(t.Field(node, cst.FieldName)))).
				WithNote(r.local.span, "Declared here").
				Emit()
		case localDomain:
			diag.ReportError(f.rep, diag.NameWrongKind, span,
				fmt.Sprintf("Expected a value, but instead found domain '%s'", t.Text(t.Field(node, cst.FieldName)))).
				WithNote(r.local.span, "Declared here").
				Emit()
		}
		return errorPartial(span)
	}

	switch r.ref.ID.Kind {
	case ir.GlobalConstant:
		return partial{
			kind: partialRef,
			span: span,
			ref: ir.WireReference{
				Root: ir.WireRefRoot{Kind: ir.RootNamedConstant, Global: r.ref, Span: span},
				Span: span,
			},
			gen: true,
		}
	case ir.GlobalModule:
		return partial{kind: partialGlobalModule, span: span, global: r.ref, nameSpan: r.ref.NameSpan}
	}
	f.notExpected(r.ref, "named wire: local or constant")
	return errorPartial(span)
}

func (f *flattener) fieldAccess(node cst.NodeID) partial {
	t := f.t
	span := t.Span(node)
	p := f.wireRef(t.Field(node, cst.FieldLeft))
	nameNode := t.Field(node, cst.FieldName)
	name, nameSpan := t.Text(nameNode), t.Span(nameNode)

	switch p.kind {
	case partialError:
		return errorPartial(span)

	case partialGlobalModule:
		diag.ReportError(f.rep, diag.FlatFieldAccess, p.span,
			"Ports or interfaces can only be accessed on modules that have been explicitly declared. Declare this submodule on its own line").Emit()
		return errorPartial(span)

	case partialInterface:
		diag.ReportError(f.rep, diag.FlatFieldAccess, nameSpan,
			"Omit the interface when accessing a port").Emit()
		return errorPartial(span)

	case partialSubmodule:
		m := f.l.Module(p.module)
		if m == nil {
			return errorPartial(span)
		}
		if pid, port := m.PortByName(name); port != nil {
			return partial{
				kind: partialRef,
				span: span,
				ref: ir.WireReference{
					Root: ir.WireRefRoot{Kind: ir.RootLocalSubmodule, Local: p.sub, Span: p.nameSpan},
					Path: []ir.PathElem{{
						Kind:     ir.PathField,
						Name:     name,
						NameSpan: nameSpan,
						RefersTo: ir.FieldTarget{Port: pid, Module: p.module},
					}},
					Span: span,
				},
			}
		}
		if iid, iface := m.InterfaceByName(name); iface != nil && iid != m.Main {
			return partial{
				kind:     partialInterface,
				span:     span,
				sub:      p.sub,
				module:   p.module,
				iface:    iid,
				nameSpan: nameSpan,
			}
		}
		diag.ReportError(f.rep, diag.NameUnknownPort, nameSpan,
			fmt.Sprintf("There is no port or interface of name '%s' on module %s", name, m.Name)).
			WithNote(m.NameSpan, fmt.Sprintf("Module '%s' defined here", m.Name)).
			Emit()
		return errorPartial(span)
	}

	// A field of a struct wire; resolved once the type is known.
	p.ref.Path = append(p.ref.Path, ir.PathElem{Kind: ir.PathField, Name: name, NameSpan: nameSpan})
	p.ref.Span = span
	p.span = span
	return p
}

// bracket flattens the contents of an array bracket into a path element.
func (f *flattener) bracket(node cst.NodeID) (ir.PathElem, bool) {
	t := f.t
	elem := ir.PathElem{BracketSpan: t.Span(node)}
	if c := t.Field(node, cst.FieldContent); c != 0 {
		elem.Kind = ir.PathIndex
		elem.Idx = f.subexpr(c)
		return elem, f.isGen(elem.Idx)
	}

	gen := true
	operand := func(n cst.NodeID) ir.FlatID {
		if n == 0 {
			return 0
		}
		id := f.subexpr(n)
		gen = gen && f.isGen(id)
		return id
	}
	switch t.Text(t.Field(node, cst.FieldOperator)) {
	case ":":
		elem.Kind = ir.PathSlice
		if from := t.Field(node, cst.FieldFrom); from != 0 {
			elem.From = operand(from)
			f.mustBeGen(elem.From, "Slice start", t.Span(from))
		}
		if to := t.Field(node, cst.FieldTo); to != 0 {
			elem.To = operand(to)
			f.mustBeGen(elem.To, "Slice end", t.Span(to))
		}
	case "+:", "-:":
		elem.Kind = ir.PathPartSelect
		elem.Dir = ir.PartUp
		if t.Text(t.Field(node, cst.FieldOperator)) == "-:" {
			elem.Dir = ir.PartDown
		}
		elem.From = operand(t.Field(node, cst.FieldFrom))
		width := t.Field(node, cst.FieldWidth)
		elem.Width = operand(width)
		f.mustBeGen(elem.Width, "Part-select width", t.Span(width))
	default:
		elem.Kind = ir.PathIndex
		elem.Idx = f.alloc(elem.BracketSpan, &ir.Expression{
			Source: errorSource(elem.BracketSpan),
			Output: ir.OutputSubExpression,
			Typ:    ir.FullType{Domain: ir.ErrorDomain},
		})
	}
	return elem, gen
}

// extract finishes a wire reference used as a value.
func (f *flattener) extract(p partial) (ir.WireReference, bool) {
	switch p.kind {
	case partialRef:
		return p.ref, p.gen
	case partialSubmodule:
		b := diag.ReportError(f.rep, diag.FlatModuleAsValue, p.span,
			"cannot operate on modules directly. Should use ports instead")
		if m := f.l.Module(p.module); m != nil {
			b = b.WithNote(m.NameSpan, fmt.Sprintf("Module '%s' defined here", m.Name))
		}
		b.Emit()
	case partialGlobalModule:
		target := f.l.LinkInfo(p.global.ID)
		diag.ReportError(f.rep, diag.FlatModuleAsValue, p.global.NameSpan,
			fmt.Sprintf("Expected a Wire Reference, but found module '%s' instead", target.Name)).
			WithNote(target.NameSpan, "Defined here").
			Emit()
	case partialInterface:
		iface := f.l.Module(p.module).Interfaces.MustGet(p.iface)
		diag.ReportError(f.rep, diag.FlatInterfaceNotCalled, p.nameSpan,
			fmt.Sprintf("Expected a port, but found module interface '%s' instead", iface.Name)).
			WithNote(iface.NameSpan, "Declared here").
			Emit()
	}
	return *errorRef(p.span), true
}

type callTarget struct {
	sub    ir.FlatID
	module ir.ModuleID
	iface  ir.InterfaceID
}

// call flattens a function call. It returns nil when the callee is not
// callable.
func (f *flattener) call(node cst.NodeID) *ir.FuncCall {
	t := f.t
	nameNode := t.Field(node, cst.FieldName)
	target, ok := f.callee(nameNode)

	argsNode := t.Field(node, cst.FieldArguments)
	var args []ir.FlatID
	for _, item := range t.Items(argsNode) {
		args = append(args, f.subexpr(item))
	}
	if !ok {
		return nil
	}

	iface := f.l.Module(target.module).Interfaces.MustGet(target.iface)
	want := len(iface.Inputs)
	switch {
	case len(args) > want:
		excess := source.Between(f.li.Instr(args[want]).Span, f.li.Instr(args[len(args)-1]).Span)
		diag.ReportError(f.rep, diag.FlatExcessArgs, excess,
			fmt.Sprintf("Excess argument. Function takes %d args, but %d were passed.", want, len(args))).
			WithNote(iface.NameSpan, fmt.Sprintf("'%s' declared here", iface.Name)).
			Emit()
		args = args[:want]
	case len(args) < want:
		closing := t.Span(argsNode).Tail()
		if closing.Start > 0 {
			closing.Start--
		}
		diag.ReportError(f.rep, diag.FlatTooFewArgs, closing,
			fmt.Sprintf("Too few arguments. Function takes %d args, but %d were passed.", want, len(args))).
			WithNote(iface.NameSpan, fmt.Sprintf("'%s' declared here", iface.Name)).
			Emit()
	}

	return &ir.FuncCall{
		SubModule: target.sub,
		Module:    target.module,
		Interface: target.iface,
		Callee:    t.Span(nameNode),
		Args:      args,
		ArgsSpan:  t.Span(argsNode),
	}
}

func (f *flattener) callee(node cst.NodeID) (callTarget, bool) {
	p := f.wireRef(node)
	switch p.kind {
	case partialGlobalModule:
		sub := f.alloc(p.span, &ir.SubModule{Module: *p.global})
		return f.mainInterface(sub, p.global.ID.Module(), p.span)
	case partialSubmodule:
		return f.mainInterface(p.sub, p.module, p.span)
	case partialInterface:
		return callTarget{sub: p.sub, module: p.module, iface: p.iface}, true
	case partialRef:
		if p.ref.Root.Kind != ir.RootError {
			diag.ReportError(f.rep, diag.FlatNotCallable, p.span,
				"Function call syntax is only possible on modules or interfaces of modules").Emit()
		}
	}
	return callTarget{}, false
}

func (f *flattener) mainInterface(sub ir.FlatID, mod ir.ModuleID, span source.Span) (callTarget, bool) {
	m := f.l.Module(mod)
	if m == nil || !m.Main.IsValid() {
		return callTarget{}, false
	}
	main := m.Interfaces.MustGet(m.Main)
	if len(main.Inputs)+len(main.Outputs) == 0 && m.Interfaces.Len() > 1 {
		diag.ReportError(f.rep, diag.FlatNotCallable, span,
			fmt.Sprintf("%s does not have a main interface. You should explicitly specify an interface to access", m.Name)).
			WithNote(m.NameSpan, fmt.Sprintf("Module '%s' defined here", m.Name)).
			Emit()
		return callTarget{}, false
	}
	return callTarget{sub: sub, module: mod, iface: m.Main}, true
}

// checkOutputs compares the number of write targets of a call with the
// outputs of the called interface and returns how many targets to keep.
func (f *flattener) checkOutputs(call *ir.FuncCall, targets []source.Span, callSpan source.Span) int {
	iface := f.l.Module(call.Module).Interfaces.MustGet(call.Interface)
	outs, n := len(iface.Outputs), len(targets)
	switch {
	case n > outs:
		excess := source.Between(targets[outs], targets[n-1])
		diag.ReportError(f.rep, diag.FlatExcessOutputs, excess,
			fmt.Sprintf("Excess output targets. Function returns %d results, but %d targets were given.", outs, n)).
			WithNote(iface.NameSpan, fmt.Sprintf("'%s' declared here", iface.Name)).
			Emit()
		return outs
	case n < outs:
		diag.ReportError(f.rep, diag.FlatTooFewOutputs, callSpan,
			fmt.Sprintf("Too few output targets. Function returns %d results, but %d targets were given.", outs, n)).
			WithNote(iface.NameSpan, fmt.Sprintf("'%s' declared here", iface.Name)).
			Emit()
	}
	return n
}
