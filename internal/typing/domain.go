package typing

import "sus/internal/ir"

// FreshDomain allocates an unknown domain.
func (u *Unifier) FreshDomain() ir.DomainType {
	return ir.DomainType{Kind: ir.DomainUnknown, Var: ir.DomainVar(u.domain.fresh())}
}

// ResolveDomain follows a bound domain variable.
func (u *Unifier) ResolveDomain(d ir.DomainType) ir.DomainType {
	if d.Kind != ir.DomainUnknown || d.Var == 0 {
		return d
	}
	root := u.domain.find(uint32(d.Var))
	if val, ok := u.domain.get(root); ok {
		return val
	}
	return ir.DomainType{Kind: ir.DomainUnknown, Var: ir.DomainVar(root)}
}

// DomainVar returns the variable to wait on while d is unknown.
func (u *Unifier) DomainVar(d ir.DomainType) (Var, bool) {
	d = u.ResolveDomain(d)
	if d.Kind != ir.DomainUnknown || d.Var == 0 {
		return Var{}, false
	}
	return Var{Kind: VarDomain, ID: uint32(d.Var)}, true
}

// UnifyDomain makes two physical domains equal. The error domain matches
// anything, as does an unknown domain without a variable. Generative only
// matches generative; callers decide beforehand whether a generative side
// takes part at all.
func (u *Unifier) UnifyDomain(a, b ir.DomainType) Result {
	a, b = u.ResolveDomain(a), u.ResolveDomain(b)
	if a.Kind == ir.DomainError || b.Kind == ir.DomainError || unconstrained(a) || unconstrained(b) {
		return Success
	}
	if a.Kind == ir.DomainUnknown && b.Kind == ir.DomainUnknown {
		u.domain.link(uint32(a.Var), uint32(b.Var))
		return Success
	}
	if b.Kind == ir.DomainUnknown {
		a, b = b, a
	}
	if a.Kind == ir.DomainUnknown {
		u.wake(u.domain.bind(uint32(a.Var), b))
		u.drain()
		return Success
	}
	if a.Kind != b.Kind {
		return Failure
	}
	if a.Kind == ir.DomainPhysical && a.Physical != b.Physical {
		return Failure
	}
	return Success
}

func unconstrained(d ir.DomainType) bool { return d.Kind == ir.DomainUnknown && d.Var == 0 }
