package sema

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
)

// joinDomains returns the common domain of the non-generative operands,
// reporting operands that live in another domain. With only generative
// operands the result is generative.
func (tc *typeChecker) joinDomains(span source.Span, what string, ids ...ir.FlatID) ir.DomainType {
	var (
		dom   ir.DomainType
		first ir.FlatID
	)
	for _, id := range ids {
		if tc.isGen(id) {
			continue
		}
		d := tc.typeOf(id).Domain
		if !first.IsValid() {
			dom, first = d, id
			continue
		}
		if tc.u.UnifyDomain(dom, d).OK() {
			continue
		}
		tc.domainConflict(span, fmt.Sprintf("%s are in different domains", what), first, dom, id, d)
	}
	if !first.IsValid() {
		return ir.Generative
	}
	return dom
}

// unifyDomainsAt requires the domain of instruction id to equal want.
func (tc *typeChecker) unifyDomainsAt(span source.Span, found, want ir.DomainType, id ir.FlatID, what string) {
	if tc.u.UnifyDomain(found, want).OK() {
		return
	}
	b := diag.ReportError(tc.rep, diag.TypeDomainConflict, span,
		fmt.Sprintf("This %s is in domain '%s', but is used in domain '%s'", what, tc.domainName(found), tc.domainName(want)))
	if sp, name, ok := tc.origin(id); ok {
		b = b.WithNote(sp, fmt.Sprintf("'%s' is declared in domain '%s'", name, tc.domainName(found)))
	}
	b.Emit()
}

// writeDomain checks that a value is written into a wire of its own domain.
func (tc *typeChecker) writeDomain(src ir.FlatID, w *ir.WriteTo, valueDom, targetDom ir.DomainType) {
	if tc.u.UnifyDomain(valueDom, targetDom).OK() {
		return
	}
	target := tc.refName(&w.To)
	b := diag.ReportError(tc.rep, diag.TypeDomainConflict, w.ToSpan,
		fmt.Sprintf("This value is in domain '%s', but it is written to '%s' in domain '%s'",
			tc.domainName(valueDom), target, tc.domainName(targetDom)))
	if sp, name, ok := tc.origin(src); ok {
		b = b.WithNote(sp, fmt.Sprintf("'%s' is declared in domain '%s'", name, tc.domainName(valueDom)))
	}
	if sp, ok := tc.refOrigin(&w.To); ok {
		b = b.WithNote(sp, fmt.Sprintf("'%s' is declared in domain '%s'", target, tc.domainName(targetDom)))
	}
	b.Emit()
}

// conditionDomain checks that a write under a 'when' happens in the domain
// of its condition.
func (tc *typeChecker) conditionDomain(c condition, w *ir.WriteTo, targetDom ir.DomainType) {
	condDom := tc.typeOf(c.cond).Domain
	if tc.u.UnifyDomain(condDom, targetDom).OK() {
		return
	}
	target := tc.refName(&w.To)
	b := diag.ReportError(tc.rep, diag.TypeDomainConflict, w.ToSpan,
		fmt.Sprintf("'%s' is written in domain '%s', but the enclosing condition is in domain '%s'",
			target, tc.domainName(targetDom), tc.domainName(condDom))).
		WithNote(tc.li.Instr(c.cond).Span, "Condition")
	if sp, ok := tc.refOrigin(&w.To); ok {
		b = b.WithNote(sp, fmt.Sprintf("'%s' is declared in domain '%s'", target, tc.domainName(targetDom)))
	}
	b.Emit()
}

func (tc *typeChecker) domainConflict(span source.Span, msg string, a ir.FlatID, da ir.DomainType, b ir.FlatID, db ir.DomainType) {
	rb := diag.ReportError(tc.rep, diag.TypeDomainConflict, span, msg)
	for _, o := range []struct {
		id ir.FlatID
		d  ir.DomainType
	}{{a, da}, {b, db}} {
		if sp, name, ok := tc.origin(o.id); ok {
			rb = rb.WithNote(sp, fmt.Sprintf("'%s' is declared in domain '%s'", name, tc.domainName(o.d)))
		} else {
			rb = rb.WithNote(tc.li.Instr(o.id).Span, fmt.Sprintf("This is in domain '%s'", tc.domainName(o.d)))
		}
	}
	rb.Emit()
}

func (tc *typeChecker) domainName(d ir.DomainType) string {
	d = tc.u.ResolveDomain(d)
	var m ir.ModuleID
	if tc.mod != nil {
		m = tc.g.Module()
	}
	return d.Display(tc.l, m)
}

// origin finds the declaration a non-generative value comes from.
func (tc *typeChecker) origin(id ir.FlatID) (source.Span, string, bool) {
	switch d := tc.li.Instr(id).Data.(type) {
	case *ir.Declaration:
		return d.DeclSpan, d.Name, true
	case *ir.Expression:
		switch d.Source.Kind {
		case ir.SourceWireRef:
			if sp, ok := tc.refOrigin(d.Source.Ref); ok {
				return sp, tc.refName(d.Source.Ref), true
			}
		case ir.SourceUnary:
			return tc.origin(d.Source.Right)
		case ir.SourceBinary:
			if !tc.isGen(d.Source.Left) {
				return tc.origin(d.Source.Left)
			}
			return tc.origin(d.Source.Right)
		case ir.SourceArray:
			for _, el := range d.Source.Elements {
				if !tc.isGen(el) {
					return tc.origin(el)
				}
			}
		}
	}
	return source.Span{}, "", false
}

func (tc *typeChecker) refOrigin(ref *ir.WireReference) (source.Span, bool) {
	switch ref.Root.Kind {
	case ir.RootLocalDecl:
		if d := tc.li.Instr(ref.Root.Local).Decl(); d != nil {
			return d.DeclSpan, true
		}
	case ir.RootLocalSubmodule:
		if len(ref.Path) > 0 {
			return ref.Path[0].NameSpan, true
		}
	}
	return source.Span{}, false
}

func (tc *typeChecker) refName(ref *ir.WireReference) string {
	switch ref.Root.Kind {
	case ir.RootLocalDecl:
		if d := tc.li.Instr(ref.Root.Local).Decl(); d != nil {
			return d.Name
		}
	case ir.RootLocalSubmodule:
		sm := tc.li.Instr(ref.Root.Local).SubModule()
		if sm != nil && len(ref.Path) > 0 {
			return sm.Name + "." + ref.Path[0].Name
		}
	case ir.RootNamedConstant:
		if ref.Root.Global != nil {
			return tc.l.GlobalName(ref.Root.Global.ID)
		}
	}
	return "_"
}
