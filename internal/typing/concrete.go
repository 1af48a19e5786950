package typing

import "sus/internal/ir"

// FreshConcrete allocates an unknown concrete type.
func (u *Unifier) FreshConcrete() *ir.ConcreteType {
	return &ir.ConcreteType{Kind: ir.ConcreteUnknown, Var: ir.ConcreteVar(u.concrete.fresh())}
}

// ResolveConcrete follows bound variables at the top of t.
func (u *Unifier) ResolveConcrete(t *ir.ConcreteType) *ir.ConcreteType {
	for t != nil && t.Kind == ir.ConcreteUnknown && t.Var != 0 {
		root := u.concrete.find(uint32(t.Var))
		val, ok := u.concrete.get(root)
		if !ok {
			if uint32(t.Var) == root {
				return t
			}
			return &ir.ConcreteType{Kind: ir.ConcreteUnknown, Var: ir.ConcreteVar(root)}
		}
		t = val
	}
	return t
}

// ConcreteVar returns the variable to wait on while t is unknown.
func (u *Unifier) ConcreteVar(t *ir.ConcreteType) (Var, bool) {
	t = u.ResolveConcrete(t)
	if t == nil || t.Kind != ir.ConcreteUnknown || t.Var == 0 {
		return Var{}, false
	}
	return Var{Kind: VarConcrete, ID: uint32(t.Var)}, true
}

// UnifyConcrete makes two concrete types equal, template values included.
func (u *Unifier) UnifyConcrete(a, b *ir.ConcreteType) Result {
	r := u.unifyConcrete(a, b, 0)
	u.drain()
	return r
}

// UnifyShape is UnifyConcrete except that the arguments of named type loose
// are not unified. It is used for int, whose bounds are related by
// subtyping rather than equality.
func (u *Unifier) UnifyShape(a, b *ir.ConcreteType, loose ir.TypeID) Result {
	r := u.unifyConcrete(a, b, loose)
	u.drain()
	return r
}

func (u *Unifier) unifyConcrete(a, b *ir.ConcreteType, loose ir.TypeID) Result {
	a, b = u.ResolveConcrete(a), u.ResolveConcrete(b)
	if a == nil || b == nil || a.Kind == ir.ConcreteError || b.Kind == ir.ConcreteError {
		return Success
	}
	aUnknown := a.Kind == ir.ConcreteUnknown
	bUnknown := b.Kind == ir.ConcreteUnknown
	if aUnknown && bUnknown {
		if a.Var != 0 && b.Var != 0 {
			u.concrete.link(uint32(a.Var), uint32(b.Var))
		}
		return Success
	}
	if bUnknown {
		a, b = b, a
	}
	if a.Kind == ir.ConcreteUnknown {
		if a.Var == 0 {
			return Success
		}
		if u.occursConcrete(uint32(a.Var), b) {
			return FailureInfinite
		}
		u.wake(u.concrete.bind(uint32(a.Var), b))
		return Success
	}
	if a.Kind != b.Kind {
		return Failure
	}
	switch a.Kind {
	case ir.ConcreteNamed:
		if a.Named != b.Named {
			return Failure
		}
		if a.Named == loose && loose.IsValid() {
			return Success
		}
		if len(a.Args) != len(b.Args) {
			return Failure
		}
		r := Success
		for i := range a.Args {
			x, y := a.Args[i], b.Args[i]
			if x.Type != nil || y.Type != nil {
				r = worse(r, u.unifyConcrete(x.Type, y.Type, loose))
			} else {
				r = worse(r, u.UnifyValue(x.Value, y.Value))
			}
		}
		return r
	case ir.ConcreteArray:
		return worse(u.UnifyValue(a.Size, b.Size), u.unifyConcrete(a.Elem, b.Elem, loose))
	}
	return Success
}

func (u *Unifier) occursConcrete(v uint32, t *ir.ConcreteType) bool {
	t = u.ResolveConcrete(t)
	if t == nil {
		return false
	}
	switch t.Kind {
	case ir.ConcreteUnknown:
		return uint32(t.Var) == v
	case ir.ConcreteNamed:
		for _, a := range t.Args {
			if a.Type != nil && u.occursConcrete(v, a.Type) {
				return true
			}
		}
	case ir.ConcreteArray:
		return u.occursConcrete(v, t.Elem)
	}
	return false
}

// FullySubstituteConcrete returns a copy of t with every bound variable
// replaced. It reports false when an unknown type or value remains.
func (u *Unifier) FullySubstituteConcrete(t *ir.ConcreteType) (*ir.ConcreteType, bool) {
	t = u.ResolveConcrete(t)
	if t == nil {
		return nil, false
	}
	switch t.Kind {
	case ir.ConcreteNamed:
		out := &ir.ConcreteType{Kind: ir.ConcreteNamed, Named: t.Named}
		ok := true
		if len(t.Args) > 0 {
			out.Args = make([]ir.ConcreteArg, len(t.Args))
			for i, a := range t.Args {
				if a.Type != nil {
					var argOK bool
					out.Args[i].Type, argOK = u.FullySubstituteConcrete(a.Type)
					ok = ok && argOK
					continue
				}
				c := u.ResolveValue(a.Value)
				out.Args[i].Value = ir.ValueCell{Var: c.Var, Value: c.Value.Clone()}
				ok = ok && c.Known()
			}
		}
		return out, ok
	case ir.ConcreteArray:
		elem, ok := u.FullySubstituteConcrete(t.Elem)
		size := u.ResolveValue(t.Size)
		return &ir.ConcreteType{
			Kind: ir.ConcreteArray,
			Elem: elem,
			Size: ir.ValueCell{Var: size.Var, Value: size.Value.Clone()},
		}, ok && size.Known()
	case ir.ConcreteUnknown:
		return t, false
	default:
		return t, true
	}
}
