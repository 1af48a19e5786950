package instantiate

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/ir"
)

// concretize evaluates a written type in the current execution. Array
// sizes must already have been computed.
func (ex *executor) concretize(w *ir.WrittenType) *ir.ConcreteType {
	switch w.Kind {
	case ir.WrittenTemplate:
		if a := ex.arg(w.Template); a != nil && a.Type != nil {
			return a.Type
		}
	case ir.WrittenNamed:
		return ex.concretizeNamed(w.Named)
	case ir.WrittenArray:
		elem := ex.concretize(w.Elem)
		return &ir.ConcreteType{Kind: ir.ConcreteArray, Elem: elem, Size: ex.arraySize(w)}
	}
	return &ir.ConcreteType{Kind: ir.ConcreteError}
}

func (ex *executor) concretizeNamed(ref *ir.GlobalRef) *ir.ConcreteType {
	id := ref.ID.Type()
	t := &ir.ConcreteType{Kind: ir.ConcreteNamed, Named: id}
	target := ex.l.Type(id)
	if target == nil {
		return &ir.ConcreteType{Kind: ir.ConcreteError}
	}
	t.Args = make([]ir.ConcreteArg, target.Parameters.Len())
	for pid, p := range target.Parameters.All() {
		i := int(pid) - 1
		var given *ir.TemplateArg
		if i < len(ref.Args) {
			given = ref.Args[i]
		}
		switch {
		case p.Kind == ir.ParamType && given != nil && given.Kind == ir.ArgType:
			t.Args[i].Type = ex.concretize(&given.Type)
		case p.Kind == ir.ParamType && i < len(ref.TypeArgs):
			t.Args[i].Type = ex.fromAbstract(ref.TypeArgs[i])
		case p.Kind == ir.ParamType:
			t.Args[i].Type = ex.u.FreshConcrete()
		case given != nil && given.Kind == ir.ArgValue:
			t.Args[i].Value = ir.KnownCell(ex.valueOf(given.Value))
		case id == ex.l.Builtins.Int:
			// Bounds of int are inferred from the writers, not unified.
		default:
			t.Args[i].Value = ex.u.FreshValue()
		}
	}
	return t
}

func (ex *executor) arraySize(w *ir.WrittenType) ir.ValueCell {
	v := ex.valueOf(w.Size)
	if v.Kind != ir.ValueInt {
		return ir.KnownCell(ir.ErrorValue)
	}
	if v.Int.Sign() < 0 || !v.Int.IsInt64() {
		diag.ReportError(ex.rep, diag.GenArraySize, w.BracketSpan,
			fmt.Sprintf("Array size must be a non-negative integer, found %s", v.Int)).Emit()
		return ir.KnownCell(ir.ErrorValue)
	}
	return ir.KnownCell(v)
}

// fromAbstract turns a type inferred by the typechecker into a concrete one
// with fresh variables for everything left open.
func (ex *executor) fromAbstract(t ir.AbstractRankedType) *ir.ConcreteType {
	var inner *ir.ConcreteType
	switch t.Inner.Kind {
	case ir.InnerTemplate:
		if a := ex.arg(t.Inner.Template); a != nil && a.Type != nil {
			inner = a.Type
		}
	case ir.InnerNamed:
		inner = &ir.ConcreteType{Kind: ir.ConcreteNamed, Named: t.Inner.Named}
		if target := ex.l.Type(t.Inner.Named); target != nil {
			inner.Args = make([]ir.ConcreteArg, target.Parameters.Len())
			for pid, p := range target.Parameters.All() {
				i := int(pid) - 1
				switch {
				case p.Kind == ir.ParamType && i < len(t.Inner.Args):
					inner.Args[i].Type = ex.fromAbstract(t.Inner.Args[i])
				case p.Kind == ir.ParamType:
					inner.Args[i].Type = ex.u.FreshConcrete()
				case t.Inner.Named != ex.l.Builtins.Int:
					inner.Args[i].Value = ex.u.FreshValue()
				}
			}
		}
	case ir.InnerUnknown:
		inner = ex.u.FreshConcrete()
	}
	if inner == nil {
		return &ir.ConcreteType{Kind: ir.ConcreteError}
	}
	for range t.Rank.Base {
		inner = &ir.ConcreteType{Kind: ir.ConcreteArray, Elem: inner, Size: ex.u.FreshValue()}
	}
	return inner
}

// portType is the type of a port of m as seen from the instantiation site,
// written in terms of the submodule's arguments.
func (ex *executor) portType(m *ir.Module, p *ir.Port, args []ir.ConcreteArg) *ir.ConcreteType {
	d := m.Instr(p.Decl).Decl()
	if d == nil {
		return &ir.ConcreteType{Kind: ir.ConcreteError}
	}
	return ex.foreignType(&m.LinkInfo, &d.TypeExpr, args)
}

func (ex *executor) foreignType(li *ir.LinkInfo, w *ir.WrittenType, args []ir.ConcreteArg) *ir.ConcreteType {
	switch w.Kind {
	case ir.WrittenTemplate:
		if i := int(w.Template) - 1; i >= 0 && i < len(args) && args[i].Type != nil {
			return args[i].Type
		}
	case ir.WrittenNamed:
		id := w.Named.ID.Type()
		if id == ex.l.Builtins.Int {
			return ex.l.Builtins.IntType(nil, nil)
		}
		target := ex.l.Type(id)
		if target == nil {
			break
		}
		t := &ir.ConcreteType{Kind: ir.ConcreteNamed, Named: id, Args: make([]ir.ConcreteArg, target.Parameters.Len())}
		for pid, p := range target.Parameters.All() {
			i := int(pid) - 1
			var given *ir.TemplateArg
			if i < len(w.Named.Args) {
				given = w.Named.Args[i]
			}
			switch {
			case p.Kind == ir.ParamType && given != nil && given.Kind == ir.ArgType:
				t.Args[i].Type = ex.foreignType(li, &given.Type, args)
			case p.Kind == ir.ParamType:
				t.Args[i].Type = ex.u.FreshConcrete()
			case given != nil && given.Kind == ir.ArgValue:
				t.Args[i].Value = foreignValue(li, given.Value, args, ex)
			default:
				t.Args[i].Value = ex.u.FreshValue()
			}
		}
		return t
	case ir.WrittenArray:
		return &ir.ConcreteType{
			Kind: ir.ConcreteArray,
			Elem: ex.foreignType(li, w.Elem, args),
			Size: foreignValue(li, w.Size, args, ex),
		}
	}
	return &ir.ConcreteType{Kind: ir.ConcreteError}
}

// foreignValue resolves a value expression of another global that is either
// a literal or a plain reference to one of its template parameters. Anything
// else is left for the submodule's own elaboration to check.
func foreignValue(li *ir.LinkInfo, id ir.FlatID, args []ir.ConcreteArg, ex *executor) ir.ValueCell {
	e := li.Instr(id).Expr()
	if e == nil {
		return ex.u.FreshValue()
	}
	switch e.Source.Kind {
	case ir.SourceLiteral:
		return ir.KnownCell(e.Source.Literal)
	case ir.SourceWireRef:
		ref := e.Source.Ref
		if ref.Root.Kind != ir.RootLocalDecl || len(ref.Path) != 0 {
			break
		}
		d := li.Instr(ref.Root.Local).Decl()
		if d == nil || d.Kind != ir.DeclTemplateParam {
			break
		}
		if i := int(d.Param) - 1; i >= 0 && i < len(args) {
			return args[i].Value
		}
	}
	return ex.u.FreshValue()
}

// valueType is the type of a constant driver.
func (ex *executor) valueType(v ir.Value) *ir.ConcreteType {
	switch v.Kind {
	case ir.ValueBool:
		return ex.l.Builtins.BoolType()
	case ir.ValueInt:
		return ex.l.Builtins.IntType(nil, nil)
	case ir.ValueArray:
		elem := ex.u.FreshConcrete()
		if len(v.Arr) > 0 {
			elem = ex.valueType(v.Arr[0])
		}
		return ir.ArrayOf(elem, int64(len(v.Arr)))
	}
	return &ir.ConcreteType{Kind: ir.ConcreteError}
}

// typeAt is the type reached by following path into t.
func (ex *executor) typeAt(t *ir.ConcreteType, path []PathElem) *ir.ConcreteType {
	for _, p := range path {
		t = ex.u.ResolveConcrete(t)
		if t == nil || t.Kind != ir.ConcreteArray {
			return &ir.ConcreteType{Kind: ir.ConcreteError}
		}
		switch p.Kind {
		case ir.PathIndex:
			t = t.Elem
		case ir.PathSlice:
			size := ex.u.FreshValue()
			if n, ok := ex.sliceLen(t, p); ok {
				size = ir.KnownCell(ir.IntValue(n))
			}
			t = &ir.ConcreteType{Kind: ir.ConcreteArray, Elem: t.Elem, Size: size}
		case ir.PathPartSelect:
			size := ex.u.FreshValue()
			if p.Width.IsConst() {
				size = ir.KnownCell(ir.BigValue(p.Width.Const))
			}
			t = &ir.ConcreteType{Kind: ir.ConcreteArray, Elem: t.Elem, Size: size}
		default:
			return &ir.ConcreteType{Kind: ir.ConcreteError}
		}
	}
	return t
}

func (ex *executor) sliceLen(t *ir.ConcreteType, p PathElem) (int64, bool) {
	var from, to int64
	switch {
	case p.From.IsConst() && p.From.Const.IsInt64():
		from = p.From.Const.Int64()
	case p.From.Wire.IsValid():
		return 0, false
	}
	switch {
	case p.To.IsConst() && p.To.Const.IsInt64():
		to = p.To.Const.Int64()
	case p.To.Wire.IsValid():
		return 0, false
	default:
		n, ok := ex.arrayLen(t)
		if !ok {
			return 0, false
		}
		to = n
	}
	return max(to-from, 0), true
}

func (ex *executor) arrayLen(t *ir.ConcreteType) (int64, bool) {
	t = ex.u.ResolveConcrete(t)
	if t == nil || t.Kind != ir.ConcreteArray {
		return 0, false
	}
	c := ex.u.ResolveValue(t.Size)
	if !c.Known() {
		return 0, false
	}
	return c.Value.Int64()
}

// baseType strips the array dimensions of t.
func (ex *executor) baseType(t *ir.ConcreteType) *ir.ConcreteType {
	t = ex.u.ResolveConcrete(t)
	for t != nil && t.Kind == ir.ConcreteArray {
		t = ex.u.ResolveConcrete(t.Elem)
	}
	return t
}

// resolveType substitutes what is known so far, keeping open variables.
func (ex *executor) resolveType(t *ir.ConcreteType) *ir.ConcreteType {
	out, _ := ex.u.FullySubstituteConcrete(t)
	return out
}

func (ex *executor) display(t *ir.ConcreteType) string {
	return ex.resolveType(t).Display(ex.l)
}

// rewrap rebuilds the rank outer dimensions of shape around inner.
func (ex *executor) rewrap(shape *ir.ConcreteType, rank uint32, inner func(*ir.ConcreteType) *ir.ConcreteType) *ir.ConcreteType {
	shape = ex.u.ResolveConcrete(shape)
	if rank == 0 {
		return inner(shape)
	}
	if shape == nil || shape.Kind != ir.ConcreteArray {
		return &ir.ConcreteType{Kind: ir.ConcreteError}
	}
	return &ir.ConcreteType{
		Kind: ir.ConcreteArray,
		Elem: ex.rewrap(shape.Elem, rank-1, inner),
		Size: shape.Size,
	}
}

func (ex *executor) unaryType(op ir.UnaryOperator, rank uint32, operand *ir.ConcreteType) *ir.ConcreteType {
	b := &ex.l.Builtins
	return ex.rewrap(operand, rank, func(*ir.ConcreteType) *ir.ConcreteType {
		switch op {
		case ir.UnaryNot, ir.UnaryAnd, ir.UnaryOr, ir.UnaryXor:
			return b.BoolType()
		default:
			return b.IntType(nil, nil)
		}
	})
}

func (ex *executor) binaryType(op ir.BinaryOperator, rank uint32, left *ir.ConcreteType) *ir.ConcreteType {
	b := &ex.l.Builtins
	return ex.rewrap(left, rank, func(*ir.ConcreteType) *ir.ConcreteType {
		if op.IsLogical() || op.IsComparison() {
			return b.BoolType()
		}
		return b.IntType(nil, nil)
	})
}
