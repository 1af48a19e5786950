package typing

import "sus/internal/ir"

func worse(a, b Result) Result {
	if a != Success {
		return a
	}
	return b
}

// FreshInner allocates an unknown inner type.
func (u *Unifier) FreshInner() ir.AbstractInner {
	return ir.AbstractInner{Kind: ir.InnerUnknown, Var: ir.TypeVar(u.inner.fresh())}
}

// FreshRank allocates an unknown rank.
func (u *Unifier) FreshRank() ir.Rank {
	return ir.Rank{Var: ir.RankVar(u.rank.fresh())}
}

// FreshType allocates a type whose inner type and rank are both unknown.
func (u *Unifier) FreshType() ir.AbstractRankedType {
	return ir.AbstractRankedType{Inner: u.FreshInner(), Rank: u.FreshRank()}
}

// InnerVar returns the variable to wait on while in is unknown.
func (u *Unifier) InnerVar(in ir.AbstractInner) (Var, bool) {
	in = u.ResolveInner(in)
	if in.Kind != ir.InnerUnknown {
		return Var{}, false
	}
	return Var{Kind: VarInner, ID: uint32(in.Var)}, true
}

// RankVar returns the variable to wait on while r is not fully known.
func (u *Unifier) RankVar(r ir.Rank) (Var, bool) {
	r = u.ResolveRank(r)
	if r.Var == 0 {
		return Var{}, false
	}
	return Var{Kind: VarRank, ID: uint32(r.Var)}, true
}

// ResolveInner follows bound variables until a known shape or an unbound
// root is reached. Arguments of named types are left as they are.
func (u *Unifier) ResolveInner(in ir.AbstractInner) ir.AbstractInner {
	for in.Kind == ir.InnerUnknown {
		root := u.inner.find(uint32(in.Var))
		val, ok := u.inner.get(root)
		if !ok {
			in.Var = ir.TypeVar(root)
			return in
		}
		in = val
	}
	return in
}

// ResolveRank folds bound rank variables into Base.
func (u *Unifier) ResolveRank(r ir.Rank) ir.Rank {
	for r.Var != 0 {
		root := u.rank.find(uint32(r.Var))
		val, ok := u.rank.get(root)
		if !ok {
			r.Var = ir.RankVar(root)
			return r
		}
		r = ir.Rank{Base: r.Base + val.Base, Var: val.Var}
	}
	return r
}

// Resolve resolves the outermost layer of t.
func (u *Unifier) Resolve(t ir.AbstractRankedType) ir.AbstractRankedType {
	return ir.AbstractRankedType{Inner: u.ResolveInner(t.Inner), Rank: u.ResolveRank(t.Rank)}
}

// FullySubstitute resolves every variable in t. It reports false when some
// variable is still unbound; the returned type then keeps those variables.
func (u *Unifier) FullySubstitute(t ir.AbstractRankedType) (ir.AbstractRankedType, bool) {
	inner, okInner := u.fullInner(t.Inner)
	rank := u.ResolveRank(t.Rank)
	return ir.AbstractRankedType{Inner: inner, Rank: rank}, okInner && rank.Var == 0
}

func (u *Unifier) fullInner(in ir.AbstractInner) (ir.AbstractInner, bool) {
	in = u.ResolveInner(in)
	switch in.Kind {
	case ir.InnerUnknown:
		return in, false
	case ir.InnerNamed:
		if len(in.Args) == 0 {
			return in, true
		}
		ok := true
		args := make([]ir.AbstractRankedType, len(in.Args))
		for i, a := range in.Args {
			var argOK bool
			args[i], argOK = u.FullySubstitute(a)
			ok = ok && argOK
		}
		in.Args = args
		return in, ok
	default:
		return in, true
	}
}

// Unify makes a and b equal.
func (u *Unifier) Unify(a, b ir.AbstractRankedType) Result {
	r := worse(u.unifyInner(a.Inner, b.Inner), u.unifyRank(a.Rank, b.Rank))
	u.drain()
	return r
}

// UnifyInner unifies only the inner types.
func (u *Unifier) UnifyInner(a, b ir.AbstractInner) Result {
	r := u.unifyInner(a, b)
	u.drain()
	return r
}

// UnifyRank unifies only the ranks.
func (u *Unifier) UnifyRank(a, b ir.Rank) Result {
	r := u.unifyRank(a, b)
	u.drain()
	return r
}

func (u *Unifier) unifyInner(a, b ir.AbstractInner) Result {
	a, b = u.ResolveInner(a), u.ResolveInner(b)
	if a.Kind == ir.InnerError || b.Kind == ir.InnerError {
		return Success
	}
	if a.Kind == ir.InnerUnknown && b.Kind == ir.InnerUnknown {
		u.inner.link(uint32(a.Var), uint32(b.Var))
		return Success
	}
	if b.Kind == ir.InnerUnknown {
		a, b = b, a
	}
	if a.Kind == ir.InnerUnknown {
		if u.occurs(uint32(a.Var), b) {
			return FailureInfinite
		}
		u.wake(u.inner.bind(uint32(a.Var), b))
		return Success
	}
	if a.Kind != b.Kind {
		return Failure
	}
	switch a.Kind {
	case ir.InnerTemplate:
		if a.Template != b.Template {
			return Failure
		}
	case ir.InnerInterface:
		if a.Module != b.Module || a.Interface != b.Interface {
			return Failure
		}
	case ir.InnerLocalInterface:
		if a.Local != b.Local {
			return Failure
		}
	case ir.InnerNamed:
		if a.Named != b.Named || len(a.Args) != len(b.Args) {
			return Failure
		}
		r := Success
		for i := range a.Args {
			r = worse(r, u.unifyInner(a.Args[i].Inner, b.Args[i].Inner))
			r = worse(r, u.unifyRank(a.Args[i].Rank, b.Args[i].Rank))
		}
		return r
	}
	return Success
}

func (u *Unifier) occurs(v uint32, in ir.AbstractInner) bool {
	in = u.ResolveInner(in)
	switch in.Kind {
	case ir.InnerUnknown:
		return uint32(in.Var) == v
	case ir.InnerNamed:
		for _, a := range in.Args {
			if u.occurs(v, a.Inner) {
				return true
			}
		}
	}
	return false
}

// unifyRank solves Succ^a.Base(a.Var) = Succ^b.Base(b.Var).
func (u *Unifier) unifyRank(a, b ir.Rank) Result {
	a, b = u.ResolveRank(a), u.ResolveRank(b)
	if a.Base > b.Base {
		a, b = b, a
	}
	diff := b.Base - a.Base
	switch {
	case a.Var == 0 && b.Var == 0:
		if diff != 0 {
			return Failure
		}
	case a.Var == 0:
		// a.Base = b.Base + n has a solution only for n = 0
		if diff != 0 {
			return Failure
		}
		u.wake(u.rank.bind(uint32(b.Var), ir.Rank{}))
	case a.Var == b.Var:
		if diff != 0 {
			return FailureInfinite
		}
	case diff == 0 && b.Var != 0:
		u.rank.link(uint32(a.Var), uint32(b.Var))
	default:
		u.wake(u.rank.bind(uint32(a.Var), ir.Rank{Base: diff, Var: b.Var}))
	}
	return Success
}

// SubstituteTemplates replaces template parameters of the owner of t by
// args, indexed by TemplateID-1. Ranks add up: a T[] with T = int[] is an
// int[][]. Types are expected to be fully substituted in their own unifier.
func SubstituteTemplates(t ir.AbstractRankedType, args []ir.AbstractRankedType) ir.AbstractRankedType {
	switch t.Inner.Kind {
	case ir.InnerTemplate:
		i := int(t.Inner.Template) - 1
		if i < 0 || i >= len(args) {
			return t
		}
		arg := args[i]
		return ir.AbstractRankedType{
			Inner: arg.Inner,
			Rank:  ir.Rank{Base: t.Rank.Base + arg.Rank.Base, Var: arg.Rank.Var},
		}
	case ir.InnerNamed:
		if len(t.Inner.Args) == 0 {
			return t
		}
		out := t
		out.Inner.Args = make([]ir.AbstractRankedType, len(t.Inner.Args))
		for i, a := range t.Inner.Args {
			out.Inner.Args[i] = SubstituteTemplates(a, args)
		}
		return out
	default:
		return t
	}
}

// CloneKnown copies t, replacing every unbound variable by a fresh one.
// Occurrences of the same variable map to the same fresh variable.
func (u *Unifier) CloneKnown(t ir.AbstractRankedType) ir.AbstractRankedType {
	inners := map[ir.TypeVar]ir.AbstractInner{}
	ranks := map[ir.RankVar]ir.RankVar{}
	return u.cloneKnown(t, inners, ranks)
}

func (u *Unifier) cloneKnown(t ir.AbstractRankedType, inners map[ir.TypeVar]ir.AbstractInner, ranks map[ir.RankVar]ir.RankVar) ir.AbstractRankedType {
	t = u.Resolve(t)
	if t.Rank.Var != 0 {
		nv, ok := ranks[t.Rank.Var]
		if !ok {
			nv = u.FreshRank().Var
			ranks[t.Rank.Var] = nv
		}
		t.Rank.Var = nv
	}
	switch t.Inner.Kind {
	case ir.InnerUnknown:
		nv, ok := inners[t.Inner.Var]
		if !ok {
			nv = u.FreshInner()
			inners[t.Inner.Var] = nv
		}
		t.Inner = nv
	case ir.InnerNamed:
		if len(t.Inner.Args) > 0 {
			args := make([]ir.AbstractRankedType, len(t.Inner.Args))
			for i, a := range t.Inner.Args {
				args[i] = u.cloneKnown(a, inners, ranks)
			}
			t.Inner.Args = args
		}
	}
	return t
}
