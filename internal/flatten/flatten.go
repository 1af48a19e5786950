package flatten

import (
	"fmt"

	"sus/internal/arena"
	"sus/internal/cst"
	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/source"
	"sus/internal/trace"
)

// declContext tells what a declaration is allowed to be.
type declContext uint8

const (
	ctxModule declContext = iota
	ctxInterfaceInput
	ctxInterfaceOutput
	ctxTemplate
	ctxLoopVar
	ctxStruct
	// ctxGenerative is the body of a constant: everything is generative.
	ctxGenerative
)

type flattener struct {
	l   *linker.Linker
	g   ir.GlobalUUID
	li  *ir.LinkInfo
	mod *ir.Module
	t   *cst.Tree
	rep diag.Reporter

	scope       scope
	bodyCtx     declContext
	domainStmts int
}

// FlattenAll initializes and then flattens every global.
func FlattenAll(l *linker.Linker) {
	InitializeAll(l)
	for g := range l.Globals() {
		Flatten(l, g)
	}
}

// Flatten builds the instruction stream of g. Every global g may refer to
// must already be initialized.
func Flatten(l *linker.Linker, g ir.GlobalUUID) {
	li := l.LinkInfo(g)
	if li == nil || li.Phase >= ir.PhaseFlattened {
		return
	}
	if li.Phase < ir.PhaseInitialized {
		Initialize(l, g)
	}
	li.Errors.Truncate(li.Checkpoints.Initialize)
	li.Instructions.Truncate(1)

	f := &flattener{
		l:   l,
		g:   g,
		li:  li,
		t:   l.File(li.File).Tree,
		rep: li.Reporter(),
	}
	if g.Kind == ir.GlobalModule {
		f.mod = l.Module(g.Module())
	}

	defer trace.Guard(l.Files)
	f.global()

	li.Checkpoints.Flatten = li.Errors.Checkpoint()
	li.Phase = ir.PhaseFlattened
}

func (f *flattener) global() {
	f.l.CheckOwnName(f.g)
	node := f.li.Node

	f.scope.push()
	defer f.scope.pop()

	switch f.g.Kind {
	case ir.GlobalModule:
		f.bodyCtx = ctxModule
		f.declareDomains()
		f.parameters(node)
	case ir.GlobalType:
		f.bodyCtx = ctxStruct
		f.parameters(node)
	case ir.GlobalConstant:
		f.bodyCtx = ctxGenerative
		f.parameters(node)
		f.constantOutput(node)
	}

	f.block(f.t.Field(node, cst.FieldBlock))

	switch f.g.Kind {
	case ir.GlobalModule:
		f.latencyForms()
	case ir.GlobalType:
		st := f.l.Type(f.g.Type())
		st.Fields = nil
		for id, instr := range f.li.Instructions.All() {
			if d := instr.Decl(); d != nil && d.Kind == ir.DeclStructField {
				st.Fields = append(st.Fields, id)
			}
		}
	}
}

func (f *flattener) declareDomains() {
	for id, d := range f.mod.Domains.All() {
		if d.Implicit {
			continue
		}
		prev, ok := f.scope.declare(d.Name, local{kind: localDomain, domain: id, span: d.NameSpan})
		if !ok {
			diag.ReportError(f.rep, diag.NameDuplicateDomain, d.NameSpan,
				fmt.Sprintf("Conflicting domain declaration. Domain '%s' was already declared earlier", d.Name)).
				WithNote(prev.span, fmt.Sprintf("'%s' is declared here", d.Name)).
				Emit()
		}
	}
}

func (f *flattener) parameters(node cst.NodeID) {
	t := f.t
	for _, item := range t.Items(t.Field(node, cst.FieldTemplateDeclarationArguments)) {
		name := t.Field(item, cst.FieldName)
		id, p := f.paramBySpan(t.Span(name))
		if p == nil {
			continue
		}
		switch t.Kind(item) {
		case cst.KindTemplateDeclarationType:
			f.declareLocal(p.Name, p.NameSpan, local{kind: localTemplateType, param: id, span: p.NameSpan})
		case cst.KindDeclaration:
			decl := f.declaration(item, ctxTemplate, false)
			f.li.Parameters.MustGet(id).Decl = decl
		}
	}
}

// constantOutput declares the wire a constant's body assigns its value to.
func (f *flattener) constantOutput(node cst.NodeID) {
	c := f.l.Constant(f.g.Constant())
	typNode := f.t.Field(node, cst.FieldConstType)
	typ, _ := f.typeOrModule(typNode, false)
	c.Type = typ
	c.Output = f.alloc(f.li.NameSpan, &ir.Declaration{
		TypeExpr:     typ,
		Typ:          ir.FullType{Domain: ir.Generative},
		Kind:         ir.DeclConstantOutput,
		Ident:        ir.IdentGenerative,
		Name:         f.li.Name,
		NameSpan:     f.li.NameSpan,
		DeclSpan:     source.Between(f.t.Span(typNode), f.li.NameSpan),
		Doc:          f.li.Doc,
		NotWrittenTo: f.li.Extern != ir.NotExtern,
	})
	f.declareLocal(f.li.Name, f.li.NameSpan, local{kind: localDecl, id: c.Output, span: f.li.NameSpan})
}

func (f *flattener) alloc(span source.Span, data ir.InstrData) ir.FlatID {
	var kind ir.InstrKind
	switch data.(type) {
	case *ir.Declaration:
		kind = ir.InstrDeclaration
	case *ir.SubModule:
		kind = ir.InstrSubModule
	case *ir.InterfaceDecl:
		kind = ir.InstrInterface
	case *ir.Expression:
		kind = ir.InstrExpression
	case *ir.IfStatement:
		kind = ir.InstrIf
	case *ir.ForStatement:
		kind = ir.InstrFor
	}
	trace.Touch("flatten", span)
	return f.li.Instructions.Alloc(ir.Instruction{Kind: kind, Span: span, Data: data})
}

func (f *flattener) declareLocal(name string, span source.Span, l local) {
	prev, ok := f.scope.declare(name, l)
	if ok {
		return
	}
	diag.ReportError(f.rep, diag.NameDuplicateLocal, span,
		"This declaration conflicts with a previous declaration in the same scope").
		WithNote(prev.span, fmt.Sprintf("'%s' is declared here", name)).
		Emit()
}

func (f *flattener) paramBySpan(sp source.Span) (ir.TemplateID, *ir.Parameter) {
	for id, p := range f.li.Parameters.All() {
		if p.NameSpan == sp {
			return id, p
		}
	}
	return 0, nil
}

func (f *flattener) currentDomain() ir.DomainID {
	return ir.DomainID(max(1, f.domainStmts))
}

// isGen reports whether an instruction yields a compile-time value.
func (f *flattener) isGen(id ir.FlatID) bool {
	instr := f.li.Instr(id)
	switch d := instr.Data.(type) {
	case *ir.Expression:
		return d.Typ.Domain.IsGenerative()
	case *ir.Declaration:
		return d.IsGenerative()
	}
	return false
}

func (f *flattener) mustBeGen(id ir.FlatID, what string, span source.Span) {
	if !f.isGen(id) {
		diag.ReportError(f.rep, diag.TypeNotGenerative, span,
			fmt.Sprintf("%s must be a compile-time expression", what)).Emit()
	}
}

func (f *flattener) block(node cst.NodeID) arena.Range[ir.FlatID] {
	f.scope.push()
	defer f.scope.pop()
	return f.blockKeepScope(node)
}

func (f *flattener) blockKeepScope(node cst.NodeID) arena.Range[ir.FlatID] {
	start := f.li.Instructions.NextID()
	for _, item := range f.t.Items(node) {
		f.statement(item)
	}
	return arena.Range[ir.FlatID]{Start: start, End: f.li.Instructions.NextID()}
}

func (f *flattener) statement(node cst.NodeID) {
	t := f.t
	kind := t.Kind(node)
	if f.bodyCtx == ctxStruct && kind != cst.KindDeclAssignStatement {
		if kind != cst.KindError {
			diag.ReportError(f.rep, diag.FlatBadGlobalBody, t.Span(node),
				"Only field declarations are allowed in a struct").Emit()
		}
		return
	}
	switch kind {
	case cst.KindBlock:
		f.block(node)
	case cst.KindDeclAssignStatement:
		if t.Field(node, cst.FieldAssignValue) != 0 {
			f.assignment(node)
		} else {
			f.standalone(t.Field(node, cst.FieldAssignLeft))
		}
	case cst.KindIfStatement:
		f.ifStatement(node)
	case cst.KindForStatement:
		f.forStatement(node)
	case cst.KindDomainStatement:
		if f.mod == nil {
			diag.ReportError(f.rep, diag.FlatBadGlobalBody, t.Span(node),
				"Domains can only be declared in modules").Emit()
			return
		}
		if t.Field(node, cst.FieldName) != 0 {
			f.domainStmts++
		}
	case cst.KindInterfaceStatement:
		f.interfaceStatement(node)
	}
}

func (f *flattener) assignment(node cst.NodeID) {
	t := f.t
	if f.bodyCtx == ctxStruct {
		diag.ReportError(f.rep, diag.FlatBadGlobalBody, t.Span(node),
			"Struct fields cannot be assigned").Emit()
		return
	}
	writes, targetGen := f.assignLeftSide(t.Field(node, cst.FieldAssignLeft))
	src, span, gen := f.exprSource(t.Field(node, cst.FieldAssignValue))

	if src.Kind == ir.SourceFuncCall {
		spans := make([]source.Span, len(writes))
		for i, w := range writes {
			spans[i] = w.ToSpan
		}
		n := f.checkOutputs(src.Call, spans, span)
		writes, targetGen = writes[:n], targetGen[:n]
	} else if len(writes) > 1 {
		excess := source.Between(writes[1].ToSpan, writes[len(writes)-1].ToSpan)
		diag.ReportError(f.rep, diag.FlatExcessOutputs, excess,
			fmt.Sprintf("Excess output targets. An expression returns 1 result, but %d targets were given.", len(writes))).Emit()
		writes, targetGen = writes[:1], targetGen[:1]
	}

	for i, w := range writes {
		if targetGen[i] && !gen {
			diag.ReportError(f.rep, diag.TypeGenerativeSink, span,
				"This value is non-generative, yet it is being assigned to a generative value").
				WithNote(w.ToSpan, "This object is generative").
				Emit()
		}
		if w.Modifiers.Kind == ir.WriteInitial && !gen {
			diag.ReportError(f.rep, diag.TypeNotGenerative, span,
				"Initial values must be compile-time expressions").
				WithNote(w.Modifiers.InitialSpan, "Required by this 'initial'").
				Emit()
		}
	}

	f.alloc(span, &ir.Expression{
		Source: src,
		Output: ir.OutputMultiWrite,
		Typ:    fullType(gen),
		Writes: writes,
	})
}

func (f *flattener) assignLeftSide(node cst.NodeID) ([]ir.WriteTo, []bool) {
	t := f.t
	var writes []ir.WriteTo
	var gens []bool
	for _, item := range t.Items(node) {
		mods := f.writeModifiers(t.Field(item, cst.FieldWriteModifiers))
		target := t.Field(item, cst.FieldExprOrDecl)
		toSpan := t.Span(target)

		var ref ir.WireReference
		var gen bool
		if t.Kind(target) == cst.KindDeclaration {
			id := f.declaration(target, f.bodyCtx, false)
			d := f.li.Instr(id).Decl()
			if d == nil {
				continue
			}
			ref = ir.WireReference{
				Root: ir.WireRefRoot{Kind: ir.RootLocalDecl, Local: id, Span: d.NameSpan},
				Span: d.NameSpan,
			}
			gen = d.IsGenerative()
		} else {
			ref, gen = f.extract(f.wireRef(target))
		}
		f.checkWritable(&ref, toSpan)

		if mods.NumRegs > 0 && gen {
			diag.ReportError(f.rep, diag.FlatBadModifier, mods.RegsSpan,
				"Registers cannot be placed on generative values").Emit()
		}
		if mods.Kind == ir.WriteInitial && ref.Root.Kind == ir.RootLocalDecl {
			if d := f.li.Instr(ref.Root.Local).Decl(); d.Ident != ir.IdentState {
				diag.ReportError(f.rep, diag.FlatBadModifier, mods.InitialSpan,
					"'initial' can only be used on state registers").
					WithNote(d.NameSpan, fmt.Sprintf("'%s' is not declared 'state'", d.Name)).
					Emit()
			}
		}

		writes = append(writes, ir.WriteTo{To: ref, ToSpan: toSpan, Modifiers: mods})
		gens = append(gens, gen)
	}
	return writes, gens
}

func (f *flattener) writeModifiers(node cst.NodeID) ir.WriteModifiers {
	var mods ir.WriteModifiers
	if node == 0 {
		return mods
	}
	t := f.t
	initials := 0
	for _, kw := range t.Items(node) {
		switch t.Text(kw) {
		case "reg":
			mods.NumRegs++
		case "initial":
			initials++
			mods.InitialSpan = t.Span(kw)
		}
	}
	mods.RegsSpan = t.Span(node)
	if initials == 0 {
		return mods
	}
	if initials > 1 || mods.NumRegs > 0 {
		diag.ReportError(f.rep, diag.FlatBadModifier, t.Span(node),
			"'initial' cannot be combined with other write modifiers").Emit()
		mods.NumRegs = 0
	}
	mods.Kind = ir.WriteInitial
	return mods
}

func (f *flattener) checkWritable(ref *ir.WireReference, span source.Span) {
	switch ref.Root.Kind {
	case ir.RootLocalDecl:
		d := f.li.Instr(ref.Root.Local).Decl()
		if !d.ReadOnly {
			return
		}
		if d.Kind == ir.DeclPort && d.IsInput {
			diag.ReportError(f.rep, diag.FlatWriteToInput, span,
				fmt.Sprintf("Cannot write to input port '%s'", d.Name)).
				WithNote(d.NameSpan, "Declared here").
				Emit()
			return
		}
		diag.ReportError(f.rep, diag.FlatWriteToReadOnly, span,
			fmt.Sprintf("Cannot write to '%s', it is read-only", d.Name)).
			WithNote(d.NameSpan, "Declared here").
			Emit()
	case ir.RootLocalSubmodule:
		port, ok := ref.IsPort()
		if !ok {
			return
		}
		m := f.l.Module(ref.Path[0].RefersTo.Module)
		if p := m.Ports.MustGet(port); !p.IsInput {
			diag.ReportError(f.rep, diag.FlatWriteToReadOnly, span,
				fmt.Sprintf("Cannot write to output port '%s' of a submodule", p.Name)).
				WithNote(p.NameSpan, "Declared here").
				Emit()
		}
	case ir.RootNamedConstant:
		diag.ReportError(f.rep, diag.FlatNotAssignable, span, "Cannot assign to a constant").Emit()
	}
}

func (f *flattener) standalone(node cst.NodeID) {
	t := f.t
	for i, item := range t.Items(node) {
		if i > 0 {
			diag.ReportWarning(f.rep, diag.FlatUnusedExpression, t.Span(item),
				"Standalone declarations and expressions should be on their own line.").Emit()
		}
		if mods := t.Field(item, cst.FieldWriteModifiers); mods != 0 {
			diag.ReportError(f.rep, diag.FlatBadModifier, t.Span(mods),
				"No write modifiers are allowed on non-assigned to declarations or expressions").Emit()
		}
		target := t.Field(item, cst.FieldExprOrDecl)
		switch t.Kind(target) {
		case cst.KindDeclaration:
			f.declaration(target, f.bodyCtx, f.bodyCtx == ctxModule)
		case cst.KindFuncCall:
			if f.bodyCtx == ctxStruct {
				diag.ReportError(f.rep, diag.FlatBadGlobalBody, t.Span(target),
					"Only field declarations are allowed in a struct").Emit()
				continue
			}
			src, span, _ := f.exprSource(target)
			f.alloc(span, &ir.Expression{Source: src, Output: ir.OutputMultiWrite})
		case cst.KindError:
		default:
			if f.bodyCtx == ctxStruct {
				diag.ReportError(f.rep, diag.FlatBadGlobalBody, t.Span(target),
					"Only field declarations are allowed in a struct").Emit()
				continue
			}
			diag.ReportWarning(f.rep, diag.FlatUnusedExpression, t.Span(target),
				"The result of this operation is not used").Emit()
			f.subexpr(target)
		}
	}
}

func (f *flattener) ifStatement(node cst.NodeID) {
	t := f.t
	kw := t.Field(node, cst.FieldIfKeyword)
	isWhen := t.Text(kw) == "when"
	cond := f.subexpr(t.Field(node, cst.FieldCondition))
	gen := f.isGen(cond)
	switch {
	case !isWhen && !gen:
		diag.ReportError(f.rep, diag.TypeIfNonGen, t.Span(kw),
			"Used 'if' in a non generative context, use 'when' instead").Emit()
	case isWhen && gen:
		diag.ReportWarning(f.rep, diag.TypeWhenGen, t.Span(kw),
			"Used 'when' in a generative context, use 'if' instead").Emit()
	}

	stmt := &ir.IfStatement{Condition: cond, IsWhen: isWhen, Keyword: t.Span(kw)}
	f.alloc(t.Span(node), stmt)
	stmt.Then = f.block(t.Field(node, cst.FieldThenBlock))

	elseStart := f.li.Instructions.NextID()
	switch els := t.Field(node, cst.FieldElseBlock); t.Kind(els) {
	case cst.KindIfStatement:
		f.ifStatement(els)
	case cst.KindBlock:
		f.block(els)
	}
	stmt.Else = arena.Range[ir.FlatID]{Start: elseStart, End: f.li.Instructions.NextID()}
}

func (f *flattener) forStatement(node cst.NodeID) {
	t := f.t
	f.scope.push()
	defer f.scope.pop()

	loopVar := f.declaration(t.Field(node, cst.FieldForDecl), ctxLoopVar, false)
	fromNode, toNode := t.Field(node, cst.FieldFrom), t.Field(node, cst.FieldTo)
	from := f.subexpr(fromNode)
	f.mustBeGen(from, "for loop start", t.Span(fromNode))
	to := f.subexpr(toNode)
	f.mustBeGen(to, "for loop end", t.Span(toNode))

	stmt := &ir.ForStatement{LoopVar: loopVar, Start: from, End: to}
	f.alloc(t.Span(node), stmt)
	// the loop variable and the body share a frame
	stmt.Body = f.blockKeepScope(t.Field(node, cst.FieldBlock))
}

func (f *flattener) interfaceStatement(node cst.NodeID) {
	t := f.t
	if f.mod == nil {
		diag.ReportError(f.rep, diag.FlatBadGlobalBody, t.Span(node),
			"Interfaces can only be declared in modules").Emit()
		return
	}
	name := t.Field(node, cst.FieldName)
	ports := t.Field(node, cst.FieldInterfacePorts)
	var inputs, outputs []ir.FlatID
	for _, decl := range t.Items(t.Field(ports, cst.FieldInputs)) {
		inputs = append(inputs, f.declaration(decl, ctxInterfaceInput, false))
	}
	for _, decl := range t.Items(t.Field(ports, cst.FieldOutputs)) {
		outputs = append(outputs, f.declaration(decl, ctxInterfaceOutput, false))
	}

	var id ir.InterfaceID
	var iface *ir.Interface
	for iid, i := range f.mod.Interfaces.All() {
		if iid != f.mod.Main && i.NameSpan == t.Span(name) {
			id, iface = iid, i
			break
		}
	}
	if iface == nil {
		return
	}
	iface.Decl = f.alloc(t.Span(node), &ir.InterfaceDecl{
		Name:      iface.Name,
		NameSpan:  iface.NameSpan,
		Kind:      iface.Kind,
		Interface: id,
		Domain:    iface.Domain,
		Inputs:    inputs,
		Outputs:   outputs,
	})
}

func fullType(gen bool) ir.FullType {
	if gen {
		return ir.FullType{Domain: ir.Generative}
	}
	return ir.FullType{}
}
