package typing

import "sus/internal/ir"

// FreshValue allocates an unknown template value.
func (u *Unifier) FreshValue() ir.ValueCell {
	return ir.ValueCell{Var: ir.ValueVar(u.value.fresh())}
}

// ResolveValue follows a bound value variable.
func (u *Unifier) ResolveValue(c ir.ValueCell) ir.ValueCell {
	if c.Var == 0 {
		return c
	}
	root := u.value.find(uint32(c.Var))
	if val, ok := u.value.get(root); ok {
		return ir.KnownCell(val)
	}
	return ir.ValueCell{Var: ir.ValueVar(root)}
}

// ValueVar returns the variable to wait on while c is unknown.
func (u *Unifier) ValueVar(c ir.ValueCell) (Var, bool) {
	c = u.ResolveValue(c)
	if c.Var == 0 {
		return Var{}, false
	}
	return Var{Kind: VarValue, ID: uint32(c.Var)}, true
}

// UnifyValue makes two value cells equal. A cell with neither a variable nor
// a value is unconstrained. Error values match anything.
func (u *Unifier) UnifyValue(a, b ir.ValueCell) Result {
	a, b = u.ResolveValue(a), u.ResolveValue(b)
	if a.Var == 0 && b.Var == 0 {
		if !a.Value.IsSet() || !b.Value.IsSet() {
			return Success
		}
		if a.Value.Kind == ir.ValueError || b.Value.Kind == ir.ValueError || a.Value.Equal(b.Value) {
			return Success
		}
		return Failure
	}
	if a.Var != 0 && b.Var != 0 {
		u.value.link(uint32(a.Var), uint32(b.Var))
		return Success
	}
	if b.Var != 0 {
		a, b = b, a
	}
	if !b.Value.IsSet() {
		return Success
	}
	u.wake(u.value.bind(uint32(a.Var), b.Value.Clone()))
	u.drain()
	return Success
}

// SetValue binds c to v, or checks that c already equals v.
func (u *Unifier) SetValue(c ir.ValueCell, v ir.Value) Result {
	return u.UnifyValue(c, ir.KnownCell(v))
}
