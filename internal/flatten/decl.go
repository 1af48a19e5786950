package flatten

import (
	"fmt"
	"slices"

	"sus/internal/cst"
	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
)

// declaration flattens a declaration node and binds its name. With
// allowModules a module type yields a SubModule instead of a wire.
func (f *flattener) declaration(node cst.NodeID, ctx declContext, allowModules bool) ir.FlatID {
	t := f.t
	ioNode := t.Field(node, cst.FieldIOPortModifiers)
	modNode := t.Field(node, cst.FieldDeclarationModifiers)
	typeNode := t.Field(node, cst.FieldType)
	nameNode := t.Field(node, cst.FieldName)
	name, nameSpan := t.Text(nameNode), t.Span(nameNode)

	d := &ir.Declaration{Name: name, NameSpan: nameSpan}
	if n := t.Node(node); n != nil {
		d.Doc = n.Doc
	}
	if t.Kind(node) != cst.KindDeclaration {
		// Already reported by the parser. Keep an unnamed placeholder so the
		// caller always gets a declaration back.
		d.TypeExpr = ir.WrittenType{Kind: ir.WrittenError, Span: t.Span(node)}
		d.Typ.Domain = ir.ErrorDomain
		d.ReadOnly, d.NotWrittenTo = true, true
		return f.alloc(t.Span(node), d)
	}

	isPort, isInput := false, false
	switch ctx {
	case ctxModule:
		if ioNode != 0 {
			isPort, isInput = true, t.Text(ioNode) == "input"
		}
	case ctxInterfaceInput, ctxInterfaceOutput:
		if ioNode != 0 {
			diag.ReportError(f.rep, diag.FlatPortOutsideModule, t.Span(ioNode),
				"Cannot redeclare 'input' or 'output' on functional syntax IO").Emit()
		}
		isPort, isInput = true, ctx == ctxInterfaceInput
	default:
		if ioNode != 0 {
			diag.ReportError(f.rep, diag.FlatPortOutsideModule, t.Span(ioNode), ioMisplaced(ctx)).Emit()
		}
	}

	switch ctx {
	case ctxTemplate, ctxLoopVar, ctxGenerative:
		if modNode != 0 {
			diag.ReportError(f.rep, diag.FlatBadModifier, t.Span(modNode),
				"Cannot add modifiers to implicitly generative declarations").Emit()
		}
		d.Ident = ir.IdentGenerative
	default:
		switch t.Text(modNode) {
		case "state":
			if isPort && isInput {
				diag.ReportError(f.rep, diag.FlatBadModifier, t.Span(modNode),
					"Inputs cannot be decorated with 'state'").Emit()
			} else {
				d.Ident = ir.IdentState
			}
		case "gen":
			if isPort {
				diag.ReportError(f.rep, diag.FlatBadModifier, t.Span(modNode),
					"Cannot declare `gen` on inputs and outputs. To declare template inputs write it between the #()").Emit()
				isPort = false
			}
			d.Ident = ir.IdentGenerative
		}
	}

	var typ ir.WrittenType
	var module *ir.GlobalRef
	if typeNode == 0 {
		typ = f.intType(nameSpan)
		d.DeclSpan = nameSpan
	} else {
		typ, module = f.typeOrModule(typeNode, allowModules && !isPort && d.Ident == ir.IdentLocal)
		d.DeclSpan = source.Between(t.Span(typeNode), t.Span(node))
	}

	if module != nil {
		if ls := t.Field(node, cst.FieldLatencySpecifier); ls != 0 {
			diag.ReportError(f.rep, diag.FlatBadLatencySpec, t.Span(ls),
				"Cannot add latency specifier to module instances").Emit()
		}
		id := f.alloc(t.Span(node), &ir.SubModule{Module: *module, Name: name, NameSpan: nameSpan, Doc: d.Doc})
		f.declareLocal(name, nameSpan, local{kind: localSubmodule, id: id, span: nameSpan})
		return id
	}
	d.TypeExpr = typ

	switch {
	case ctx == ctxTemplate:
		d.Kind = ir.DeclTemplateParam
		d.Param, _ = f.paramBySpan(nameSpan)
		d.ReadOnly, d.NotWrittenTo = true, true
	case ctx == ctxLoopVar:
		d.Kind = ir.DeclLoopVar
		d.ReadOnly, d.NotWrittenTo = true, true
	case isPort && f.mod != nil:
		if pid, p := f.portBySpan(nameSpan); p != nil {
			d.Kind = ir.DeclPort
			d.Port, d.IsInput = pid, isInput
			d.Domain = p.Domain
			d.ReadOnly, d.NotWrittenTo = isInput, isInput
		}
	case ctx == ctxStruct && d.Ident != ir.IdentGenerative:
		d.Kind = ir.DeclStructField
	}

	switch {
	case d.IsGenerative():
		d.Typ.Domain = ir.Generative
	case d.Kind == ir.DeclPort:
		d.Typ.Domain = ir.PhysicalDomain(d.Domain)
	case d.Kind == ir.DeclRegular && f.mod != nil:
		d.Domain = f.currentDomain()
		d.Typ.Domain = ir.PhysicalDomain(d.Domain)
	}

	if ls := t.Field(node, cst.FieldLatencySpecifier); ls != 0 {
		content := t.Field(ls, cst.FieldContent)
		if d.IsGenerative() {
			diag.ReportError(f.rep, diag.FlatBadLatencySpec, t.Span(ls),
				"Generative values do not have a latency").Emit()
		} else if content != 0 {
			d.LatencySpec = f.subexpr(content)
			f.mustBeGen(d.LatencySpec, "Latency Specifier", t.Span(content))
		}
	}

	id := f.alloc(t.Span(node), d)
	if d.Kind == ir.DeclPort {
		p := f.mod.Ports.MustGet(d.Port)
		p.Decl = id
		p.Latency = d.LatencySpec
	}
	f.declareLocal(name, nameSpan, local{kind: localDecl, id: id, span: nameSpan})
	return id
}

func ioMisplaced(ctx declContext) string {
	switch ctx {
	case ctxTemplate:
		return "Cannot declare 'input' or 'output' on template values"
	case ctxStruct:
		return "Cannot declare 'input' or 'output' in a struct"
	default:
		return "Cannot declare 'input' or 'output' to declarations in a generative context"
	}
}

func (f *flattener) portBySpan(sp source.Span) (ir.PortID, *ir.Port) {
	for id, p := range f.mod.Ports.All() {
		if p.NameSpan == sp {
			return id, p
		}
	}
	return 0, nil
}

// intType is the type of a loop variable declared without one.
func (f *flattener) intType(span source.Span) ir.WrittenType {
	id := f.l.Builtins.Int
	if !id.IsValid() {
		return ir.WrittenType{Kind: ir.WrittenError, Span: span}
	}
	g := ir.TypeUUID(id)
	f.li.Resolved.Insert(g)
	return ir.WrittenType{
		Kind:  ir.WrittenNamed,
		Span:  span,
		Named: &ir.GlobalRef{ID: g, Span: span, NameSpan: span, Args: make([]*ir.TemplateArg, f.l.LinkInfo(g).Parameters.Len())},
	}
}

// typeOrModule flattens a written type. When allowModules is set a module
// reference is returned as the second result instead.
func (f *flattener) typeOrModule(node cst.NodeID, allowModules bool) (ir.WrittenType, *ir.GlobalRef) {
	t := f.t
	span := t.Span(node)
	accepted := "Type"
	if allowModules {
		accepted = "Type or Module"
	}
	bad := ir.WrittenType{Kind: ir.WrittenError, Span: span}

	switch t.Kind(node) {
	case cst.KindTemplateGlobal:
		r := f.resolve(node)
		switch {
		case !r.found:
		case r.isLocal:
			switch r.local.kind {
			case localTemplateType:
				return ir.WrittenType{Kind: ir.WrittenTemplate, Span: span, Template: r.local.param}, nil
			case localDomain:
				diag.ReportError(f.rep, diag.NameWrongKind, span,
					fmt.Sprintf("This is not a %s, it is a domain instead!", accepted)).
					WithNote(r.local.span, "Domain declared here").
					Emit()
			default:
				diag.ReportError(f.rep, diag.NameWrongKind, span,
					fmt.Sprintf("This is not a %s, it is a local variable instead!", accepted)).
					WithNote(r.local.span, "Local variable declared here").
					Emit()
			}
		case r.ref.ID.Kind == ir.GlobalType:
			return ir.WrittenType{Kind: ir.WrittenNamed, Span: span, Named: r.ref}, nil
		case r.ref.ID.Kind == ir.GlobalModule && allowModules:
			return bad, r.ref
		default:
			f.notExpected(r.ref, accepted)
		}
		return bad, nil

	case cst.KindArrayType, cst.KindArrayOp:
		elem, _ := f.typeOrModule(t.Field(node, cst.FieldArr), false)
		bracket := t.Field(node, cst.FieldArrIdx)
		content := t.Field(bracket, cst.FieldContent)
		if content == 0 {
			if t.Kind(node) == cst.KindArrayOp {
				diag.ReportError(f.rep, diag.NameWrongKind, t.Span(bracket),
					"An array type takes a single size, not a slice").Emit()
			}
			return bad, nil
		}
		size := f.subexpr(content)
		f.mustBeGen(size, "Array Size", t.Span(content))
		return ir.WrittenType{
			Kind:        ir.WrittenArray,
			Span:        span,
			Elem:        &elem,
			Size:        size,
			BracketSpan: t.Span(bracket),
		}, nil

	case cst.KindError:
		return bad, nil
	}

	diag.ReportError(f.rep, diag.NameWrongKind, span, fmt.Sprintf("Expected a %s here", accepted)).Emit()
	return bad, nil
}

func (f *flattener) notExpected(ref *ir.GlobalRef, accepted string) {
	target := f.l.LinkInfo(ref.ID)
	diag.ReportError(f.rep, diag.NameWrongKind, ref.NameSpan,
		fmt.Sprintf("%s is not a %s, it is a %s instead!", target.Name, accepted, ref.ID.Kind)).
		WithNote(target.NameSpan, "Defined here").
		Emit()
}

// resolved is the outcome of resolving a TemplateGlobal node.
type resolved struct {
	found   bool
	isLocal bool
	local   local
	ref     *ir.GlobalRef
}

// resolve looks a name up in the local scope and then among globals. A name
// with template arguments is always global.
func (f *flattener) resolve(node cst.NodeID) resolved {
	t := f.t
	nameNode := t.Field(node, cst.FieldName)
	name, nameSpan := t.Text(nameNode), t.Span(nameNode)
	params := t.Field(node, cst.FieldTemplateParams)

	if params == 0 {
		if l, ok := f.scope.lookup(name); ok {
			return resolved{found: true, isLocal: true, local: l}
		}
	}
	g, ok := f.l.ResolveGlobal(f.li, name, nameSpan, f.rep)
	if !ok {
		return resolved{}
	}
	ref := &ir.GlobalRef{ID: g, Span: t.Span(node), NameSpan: nameSpan}
	ref.Args = f.templateArgs(params, g)
	if params != 0 {
		ref.ArgsSpan = t.Span(params)
	}
	return resolved{found: true, ref: ref}
}

// templateArgs binds named arguments first and then fills the remaining
// parameters in order with the positional ones.
func (f *flattener) templateArgs(params cst.NodeID, g ir.GlobalUUID) []*ir.TemplateArg {
	t := f.t
	target := f.l.LinkInfo(g)
	n := target.Parameters.Len()
	args := make([]*ir.TemplateArg, n)
	if params == 0 {
		return args
	}

	var items []cst.NodeID
	for _, item := range t.Items(params) {
		switch t.Kind(item) {
		case cst.KindTemplateTypeParam, cst.KindTemplateValueParam:
			items = append(items, item)
		}
	}

	bound := make([]cst.NodeID, n)
	for _, item := range items {
		nameNode := t.Field(item, cst.FieldName)
		if nameNode == 0 {
			continue
		}
		name := t.Text(nameNode)
		id, p := target.ParamByName(name)
		if p == nil {
			diag.ReportError(f.rep, diag.NameUnknownTemplateArg, t.Span(nameNode),
				fmt.Sprintf("%s is not a valid template argument of %s", name, target.Name)).
				WithNote(target.NameSpan, fmt.Sprintf("'%s' declared here", target.Name)).
				Emit()
			continue
		}
		if prev := bound[id-1]; prev != 0 {
			diag.ReportError(f.rep, diag.NameDuplicateTemplate, t.Span(nameNode),
				fmt.Sprintf("'%s' has already been defined previously", name)).
				WithNote(t.Span(prev), "Defined here previously").
				Emit()
			continue
		}
		bound[id-1] = item
	}

	next := 0
	for _, item := range items {
		if t.Field(item, cst.FieldName) != 0 {
			continue
		}
		for next < n && bound[next] != 0 {
			next++
		}
		if next == n {
			diag.ReportError(f.rep, diag.NameTooManyTemplateArg, t.Span(item),
				fmt.Sprintf("Excess template argument. %s takes %d template arguments", target.Name, n)).
				WithNote(target.NameSpan, fmt.Sprintf("'%s' declared here", target.Name)).
				Emit()
			continue
		}
		bound[next] = item
	}

	for _, item := range items {
		i := slices.Index(bound, item)
		if i < 0 {
			continue
		}
		args[i] = f.templateArg(item, target.Parameters.MustGet(ir.TemplateID(i+1)))
	}
	return args
}

func (f *flattener) templateArg(item cst.NodeID, p *ir.Parameter) *ir.TemplateArg {
	t := f.t
	arg := &ir.TemplateArg{Span: t.Span(item), NameSpan: t.Span(item)}
	if nameNode := t.Field(item, cst.FieldName); nameNode != 0 {
		arg.NameSpan = t.Span(nameNode)
	}

	switch t.Kind(item) {
	case cst.KindTemplateTypeParam:
		if p.Kind == ir.ParamValue {
			diag.ReportError(f.rep, diag.NameWrongKind, arg.Span,
				fmt.Sprintf("'%s' is not a type. `type` keyword cannot be used for values", p.Name)).
				WithNote(p.NameSpan, "Declared here").
				Emit()
			return nil
		}
		arg.Kind = ir.ArgType
		arg.Type, _ = f.typeOrModule(t.Field(item, cst.FieldType), false)

	case cst.KindTemplateValueParam:
		value := t.Field(item, cst.FieldValue)
		if p.Kind == ir.ParamType {
			// A bare name or an indexed name reads as a type.
			switch t.Kind(value) {
			case cst.KindTemplateGlobal, cst.KindArrayOp:
				arg.Kind = ir.ArgType
				arg.Type, _ = f.typeOrModule(value, false)
				return arg
			}
			diag.ReportError(f.rep, diag.NameWrongKind, arg.Span,
				fmt.Sprintf("'%s' is not a value. To use template type arguments use the `type` keyword like `T: type int[123]`", p.Name)).
				WithNote(p.NameSpan, "Declared here").
				Emit()
			return nil
		}
		arg.Kind = ir.ArgValue
		arg.Value = f.subexpr(value)
		if !f.isGen(arg.Value) {
			diag.ReportError(f.rep, diag.TypeNotGenerative, t.Span(value),
				"Template arguments must be known at compile-time!").Emit()
		}
	}
	return arg
}
