package sema

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
)

// finalize substitutes every inferred type into the instructions. Types that
// stayed unknown become the error type; they are reported only when nothing
// else went wrong in this global, since an earlier error is the usual cause.
func (tc *typeChecker) finalize() {
	for _, s := range tc.u.Stalled() {
		diag.ReportError(tc.rep, diag.TypeNotInferred, s.Span,
			fmt.Sprintf("Could not resolve the %s: the type it depends on was never inferred", s.What)).Emit()
	}
	tc.defaultDomains()

	quiet := tc.li.Errors.ErrorsSince(tc.li.Checkpoints.Flatten)
	for _, instr := range tc.li.Instructions.All() {
		switch d := instr.Data.(type) {
		case *ir.Declaration:
			tc.finalWritten(&d.TypeExpr)
			var ok bool
			d.Typ, ok = tc.finalFull(d.Typ)
			if !ok && !quiet {
				diag.ReportError(tc.rep, diag.TypeNotInferred, d.NameSpan,
					fmt.Sprintf("Could not infer the type of '%s'", d.Name)).Emit()
			}
		case *ir.SubModule:
			tc.finalSubmodule(d, quiet)
		case *ir.Expression:
			tc.finalExpr(instr.Span, d, quiet)
		}
	}
}

// defaultDomains places submodules whose domains could not be inferred. In a
// module with a single domain everything runs on that domain.
func (tc *typeChecker) defaultDomains() {
	if tc.mod == nil {
		return
	}
	single := tc.mod.Domains.Len() == 1
	for _, instr := range tc.li.Instructions.All() {
		sm := instr.SubModule()
		if sm == nil {
			continue
		}
		for i, d := range sm.Domains {
			if _, unknown := tc.u.DomainVar(d); !unknown {
				continue
			}
			if single {
				tc.u.UnifyDomain(d, ir.PhysicalDomain(1))
				continue
			}
			diag.ReportError(tc.rep, diag.TypeNotInferred, sm.NameSpan,
				fmt.Sprintf("Could not infer which domain of this module the domain '%s' of '%s' belongs to",
					tc.l.DomainName(sm.Module.ID.Module(), ir.DomainID(i+1)), sm.Name)).Emit()
			tc.u.UnifyDomain(d, ir.ErrorDomain)
		}
	}
}

func (tc *typeChecker) finalType(t ir.AbstractRankedType) (ir.AbstractRankedType, bool) {
	full, ok := tc.u.FullySubstitute(t)
	if !ok {
		return ir.ErrorType(), false
	}
	return full, true
}

func (tc *typeChecker) finalDomain(d ir.DomainType) (ir.DomainType, bool) {
	if d.Kind == ir.DomainUnknown && d.Var == 0 {
		return d, true
	}
	d = tc.u.ResolveDomain(d)
	if d.Kind != ir.DomainUnknown {
		return d, true
	}
	if tc.mod != nil && tc.mod.Domains.Len() == 1 {
		tc.u.UnifyDomain(d, ir.PhysicalDomain(1))
		return ir.PhysicalDomain(1), true
	}
	return ir.ErrorDomain, false
}

func (tc *typeChecker) finalFull(f ir.FullType) (ir.FullType, bool) {
	typ, okT := tc.finalType(f.Typ)
	dom, okD := tc.finalDomain(f.Domain)
	return ir.FullType{Typ: typ, Domain: dom}, okT && okD
}

func (tc *typeChecker) finalSubmodule(sm *ir.SubModule, quiet bool) {
	for i := range sm.Domains {
		sm.Domains[i], _ = tc.finalDomain(sm.Domains[i])
	}
	target := tc.l.LinkInfo(sm.Module.ID)
	for i, a := range sm.Module.TypeArgs {
		full, ok := tc.finalType(a)
		sm.Module.TypeArgs[i] = full
		if ok || quiet || target == nil {
			continue
		}
		if p := target.Parameters.Get(ir.TemplateID(i + 1)); p != nil && p.Kind == ir.ParamType {
			diag.ReportError(tc.rep, diag.TypeNotInferred, sm.Module.Span,
				fmt.Sprintf("Could not infer template argument '%s' of '%s'", p.Name, target.Name)).
				WithNote(p.NameSpan, "Declared here").
				Emit()
		}
	}
	tc.finalArgs(&sm.Module)
}

// finalArgs finalizes the types inside explicit template arguments.
func (tc *typeChecker) finalArgs(ref *ir.GlobalRef) {
	for i, a := range ref.TypeArgs {
		ref.TypeArgs[i], _ = tc.finalType(a)
	}
	for _, a := range ref.Args {
		if a != nil && a.Kind == ir.ArgType {
			tc.finalWritten(&a.Type)
		}
	}
}

func (tc *typeChecker) finalWritten(w *ir.WrittenType) {
	switch w.Kind {
	case ir.WrittenNamed:
		tc.finalArgs(w.Named)
	case ir.WrittenArray:
		if w.Elem != nil {
			tc.finalWritten(w.Elem)
		}
	}
}

func (tc *typeChecker) finalExpr(span source.Span, e *ir.Expression, quiet bool) {
	src := &e.Source
	if src.Kind == ir.SourceUnary || src.Kind == ir.SourceBinary {
		src.OpRank = tc.u.ResolveRank(src.OpRank)
		if !src.OpRank.Known() {
			src.OpRank = ir.Rank{}
		}
	}
	if src.Kind == ir.SourceWireRef {
		tc.finalRef(src.Ref)
	}
	for i := range e.Writes {
		tc.finalRef(&e.Writes[i].To)
	}

	multiCall := src.Kind == ir.SourceFuncCall && e.Output == ir.OutputMultiWrite
	var ok bool
	e.Typ, ok = tc.finalFull(e.Typ)
	if multiCall {
		e.Typ = ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}
		return
	}
	if !ok && !quiet {
		diag.ReportError(tc.rep, diag.TypeNotInferred, span, "Could not infer the type of this expression").Emit()
	}
}

func (tc *typeChecker) finalRef(ref *ir.WireReference) {
	if ref == nil {
		return
	}
	ref.RootTyp, _ = tc.finalFull(ref.RootTyp)
	ref.OutputTyp, _ = tc.finalFull(ref.OutputTyp)
	if ref.Root.Global != nil {
		tc.finalArgs(ref.Root.Global)
	}
}
