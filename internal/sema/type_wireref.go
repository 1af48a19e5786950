package sema

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
	"sus/internal/typing"
)

var errorFull = ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}

// wireRef types a wire reference, filling RootTyp and OutputTyp.
func (tc *typeChecker) wireRef(ref *ir.WireReference) ir.FullType {
	path := ref.Path
	var cur ir.FullType
	switch ref.Root.Kind {
	case ir.RootLocalDecl:
		if d := tc.li.Instr(ref.Root.Local).Decl(); d != nil {
			cur = d.Typ
		} else {
			cur = errorFull
		}
	case ir.RootLocalSubmodule:
		cur = errorFull
		if len(path) > 0 && path[0].Kind == ir.PathField && path[0].RefersTo.Port.IsValid() {
			cur = tc.portType(ref.Root.Local, path[0].RefersTo.Port)
			path = path[1:]
		}
	case ir.RootNamedConstant:
		cur = errorFull
		if g := ref.Root.Global; g != nil {
			args := tc.globalRefArgs(g)
			if c := tc.l.Constant(g.ID.Constant()); c != nil {
				typ := tc.foreignDeclType(g.ID, c.Output).Typ
				if !typ.IsError() {
					typ = typing.SubstituteTemplates(typ, args)
				}
				cur = ir.FullType{Typ: typ, Domain: ir.Generative}
			}
		}
	default:
		cur = errorFull
	}
	ref.RootTyp = cur

	for i := range path {
		cur = tc.pathElem(&path[i], cur)
	}
	ref.OutputTyp = cur
	return cur
}

func (tc *typeChecker) pathElem(p *ir.PathElem, cur ir.FullType) ir.FullType {
	switch p.Kind {
	case ir.PathIndex:
		tc.expect(p.Idx, tc.intType(), "Array index")
		out := tc.u.FreshType()
		if res := tc.u.Unify(withRank(out, out.Rank.Succ()), cur.Typ); !res.OK() {
			diag.ReportError(tc.rep, diag.TypeMismatch, p.BracketSpan,
				fmt.Sprintf("Typing Error: Cannot index into '%s', it is not an array", tc.display(cur.Typ))).Emit()
			out = ir.ErrorType()
		}
		return ir.FullType{Typ: out, Domain: tc.indexDomain(p.BracketSpan, cur.Domain, p.Idx)}
	case ir.PathSlice, ir.PathPartSelect:
		dom := cur.Domain
		for _, bound := range []ir.FlatID{p.From, p.To, p.Width} {
			if !bound.IsValid() {
				continue
			}
			tc.expect(bound, tc.intType(), "Slice bound")
			dom = tc.indexDomain(p.BracketSpan, dom, bound)
		}
		elem := tc.u.FreshType()
		if res := tc.u.Unify(withRank(elem, elem.Rank.Succ()), cur.Typ); !res.OK() {
			diag.ReportError(tc.rep, diag.TypeMismatch, p.BracketSpan,
				fmt.Sprintf("Typing Error: Cannot slice '%s', it is not an array", tc.display(cur.Typ))).Emit()
			return ir.FullType{Typ: ir.ErrorType(), Domain: dom}
		}
		return ir.FullType{Typ: cur.Typ, Domain: dom}
	case ir.PathField:
		return ir.FullType{Typ: tc.field(p, cur.Typ), Domain: cur.Domain}
	}
	return errorFull
}

// indexDomain joins the domain of a non-generative index into the domain of
// the indexed wire.
func (tc *typeChecker) indexDomain(span source.Span, dom ir.DomainType, idx ir.FlatID) ir.DomainType {
	if tc.isGen(idx) {
		return dom
	}
	idxDom := tc.typeOf(idx).Domain
	if dom.IsGenerative() {
		return idxDom
	}
	tc.unifyDomainsAt(span, dom, idxDom, idx, "index")
	return dom
}

// field types a struct field access. The struct is often not known yet at
// the access, so the lookup waits until the inner type is resolved.
func (tc *typeChecker) field(p *ir.PathElem, of ir.AbstractRankedType) ir.AbstractRankedType {
	out := tc.u.FreshType()
	tc.u.Delay(p.NameSpan, fmt.Sprintf("field access '.%s'", p.Name), func() []typing.Var {
		if v, ok := tc.u.InnerVar(of.Inner); ok {
			return []typing.Var{v}
		}
		inner := tc.u.ResolveInner(of.Inner)
		switch inner.Kind {
		case ir.InnerError:
			tc.u.Unify(out, ir.ErrorType())
			return nil
		case ir.InnerNamed:
		default:
			diag.ReportError(tc.rep, diag.TypeMismatch, p.NameSpan,
				fmt.Sprintf("Typing Error: Cannot access field '%s' of '%s', it is not a struct", p.Name, tc.display(of))).Emit()
			tc.u.Unify(out, ir.ErrorType())
			return nil
		}

		st := tc.l.Type(inner.Named)
		var fieldID ir.FlatID
		if st != nil {
			for _, f := range st.Fields {
				if d := st.Instr(f).Decl(); d != nil && d.Name == p.Name {
					fieldID = f
					break
				}
			}
		}
		if !fieldID.IsValid() {
			b := diag.ReportError(tc.rep, diag.NameUnknownPort, p.NameSpan,
				fmt.Sprintf("There is no field '%s' on '%s'", p.Name, tc.display(of)))
			if st != nil {
				b = b.WithNote(st.NameSpan, fmt.Sprintf("'%s' defined here", st.Name))
			}
			b.Emit()
			tc.u.Unify(out, ir.ErrorType())
			return nil
		}
		if !tc.u.UnifyRank(of.Rank, ir.Rank{}).OK() {
			diag.ReportError(tc.rep, diag.TypeMismatch, p.NameSpan,
				fmt.Sprintf("Typing Error: Cannot access field '%s' of an array '%s'", p.Name, tc.display(of))).Emit()
		}
		typ := tc.foreignDeclType(ir.TypeUUID(inner.Named), fieldID).Typ
		if !typ.IsError() {
			typ = typing.SubstituteTemplates(typ, inner.Args)
		}
		tc.unifyAt(p.NameSpan, out, typ, fmt.Sprintf("Field '%s'", p.Name))
		return nil
	})
	return out
}
