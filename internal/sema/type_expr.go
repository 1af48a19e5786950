package sema

import (
	"fmt"

	"sus/internal/ir"
	"sus/internal/source"
	"sus/internal/typing"
)

func (tc *typeChecker) expression(id ir.FlatID, span source.Span, e *ir.Expression) {
	gen := e.Typ.Domain.IsGenerative()
	keepDomain := gen || e.Typ.Domain.Kind == ir.DomainError

	var out ir.FullType
	src := &e.Source
	switch src.Kind {
	case ir.SourceLiteral:
		out = ir.FullType{Typ: tc.literalType(src.Literal), Domain: ir.Generative}
	case ir.SourceWireRef:
		out = tc.wireRef(src.Ref)
	case ir.SourceUnary:
		out = tc.unary(span, src)
	case ir.SourceBinary:
		out = tc.binary(span, src)
	case ir.SourceArray:
		out = tc.array(span, src)
	case ir.SourceFuncCall:
		out = tc.call(id, span, e)
	}
	if keepDomain {
		out.Domain = e.Typ.Domain
	}
	e.Typ = out

	if e.Output == ir.OutputMultiWrite && src.Kind != ir.SourceFuncCall {
		for i := range e.Writes {
			tc.write(id, &e.Writes[i], out, "Assignment")
		}
	}
}

func (tc *typeChecker) literalType(v ir.Value) ir.AbstractRankedType {
	switch v.Kind {
	case ir.ValueInt:
		return tc.intType()
	case ir.ValueBool:
		return tc.boolType()
	default:
		return ir.ErrorType()
	}
}

func (tc *typeChecker) unary(span source.Span, src *ir.ExprSource) ir.FullType {
	src.OpRank = tc.u.FreshRank()
	right := tc.typeOf(src.Right)
	var content ir.AbstractRankedType
	switch src.Unary {
	case ir.UnaryNot, ir.UnaryAnd, ir.UnaryOr, ir.UnaryXor:
		content = tc.boolType()
	default:
		content = tc.intType()
	}
	in := withRank(content, src.OpRank)
	if src.Unary.IsReduction() {
		in.Rank = src.OpRank.Succ()
	}
	tc.unifyAt(tc.li.Instr(src.Right).Span, in, right.Typ, fmt.Sprintf("Operator '%s'", src.Unary))
	return ir.FullType{Typ: withRank(content, src.OpRank), Domain: right.Domain}
}

func (tc *typeChecker) binary(span source.Span, src *ir.ExprSource) ir.FullType {
	src.OpRank = tc.u.FreshRank()
	op := src.Binary
	in, out := tc.intType(), tc.intType()
	switch {
	case op.IsLogical():
		in, out = tc.boolType(), tc.boolType()
	case op.IsComparison():
		out = tc.boolType()
	}
	ctx := fmt.Sprintf("Operator '%s'", op)
	tc.expectRanked(src.Left, in, src.OpRank, ctx)
	tc.expectRanked(src.Right, in, src.OpRank, ctx)
	dom := tc.joinDomains(span, fmt.Sprintf("The operands of '%s'", op), src.Left, src.Right)
	return ir.FullType{Typ: withRank(out, src.OpRank), Domain: dom}
}

func (tc *typeChecker) expectRanked(id ir.FlatID, content ir.AbstractRankedType, r ir.Rank, context string) {
	tc.unifyAt(tc.li.Instr(id).Span, withRank(content, r), tc.typeOf(id).Typ, context)
}

func (tc *typeChecker) array(span source.Span, src *ir.ExprSource) ir.FullType {
	elem := tc.u.FreshType()
	for _, el := range src.Elements {
		tc.expect(el, elem, "Array element")
	}
	dom := tc.joinDomains(span, "The elements of this array", src.Elements...)
	return ir.FullType{Typ: withRank(elem, elem.Rank.Succ()), Domain: dom}
}

// call connects the arguments to the input ports of the called interface and
// yields its first output, or writes all outputs for a multi-write.
func (tc *typeChecker) call(id ir.FlatID, span source.Span, e *ir.Expression) ir.FullType {
	c := e.Source.Call
	m := tc.l.Module(c.Module)
	if m == nil {
		return ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}
	}
	iface := m.Interfaces.MustGet(c.Interface)
	for i, arg := range c.Args {
		if i >= len(iface.Inputs) {
			break
		}
		port := tc.portType(c.SubModule, iface.Inputs[i])
		name := m.Ports.MustGet(iface.Inputs[i]).Name
		tc.expect(arg, port.Typ, fmt.Sprintf("Argument '%s'", name))
		if !tc.isGen(arg) {
			tc.unifyDomainsAt(tc.li.Instr(arg).Span, tc.typeOf(arg).Domain, port.Domain, arg,
				fmt.Sprintf("argument '%s'", name))
		}
	}

	if e.Output == ir.OutputMultiWrite {
		for i := range e.Writes {
			if i >= len(iface.Outputs) {
				break
			}
			tc.write(id, &e.Writes[i], tc.portType(c.SubModule, iface.Outputs[i]), "Function output")
		}
		return ir.FullType{Domain: ir.ErrorDomain}
	}
	if len(iface.Outputs) == 0 {
		return ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}
	}
	return tc.portType(c.SubModule, iface.Outputs[0])
}

// portType returns the type of a port of a submodule as seen from this
// global: template types substituted and the domain mapped.
func (tc *typeChecker) portType(sub ir.FlatID, port ir.PortID) ir.FullType {
	sm := tc.li.Instr(sub).SubModule()
	if sm == nil {
		return ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}
	}
	m := tc.l.Module(sm.Module.ID.Module())
	if m == nil {
		return ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}
	}
	p := m.Ports.MustGet(port)
	typ := tc.foreignDeclType(sm.Module.ID, p.Decl).Typ
	out := ir.FullType{Typ: typ, Domain: ir.ErrorDomain}
	if !typ.IsError() {
		out.Typ = typing.SubstituteTemplates(typ, sm.Module.TypeArgs)
	}
	if i := int(p.Domain) - 1; i >= 0 && i < len(sm.Domains) {
		out.Domain = sm.Domains[i]
	}
	return out
}

// write typechecks one write target against the written value.
func (tc *typeChecker) write(src ir.FlatID, w *ir.WriteTo, value ir.FullType, context string) {
	target := tc.wireRef(&w.To)
	tc.unifyAt(w.ToSpan, target.Typ, value.Typ, context)
	if target.Domain.IsGenerative() || w.Modifiers.Kind == ir.WriteInitial {
		return
	}
	if !value.Domain.IsGenerative() {
		tc.writeDomain(src, w, value.Domain, target.Domain)
	}
	for _, c := range tc.conds {
		tc.conditionDomain(c, w, target.Domain)
	}
}
