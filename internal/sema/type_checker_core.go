package sema

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/source"
	"sus/internal/trace"
	"sus/internal/typing"
)

type typeChecker struct {
	l   *linker.Linker
	g   ir.GlobalUUID
	li  *ir.LinkInfo
	mod *ir.Module
	u   *typing.Unifier
	rep diag.Reporter
	tr  trace.Tracer

	// conds holds the enclosing non-generative conditions.
	conds []condition
}

// condition is an enclosing 'when' whose body ends before end.
type condition struct {
	cond ir.FlatID
	end  ir.FlatID
}

func newTypeChecker(l *linker.Linker, g ir.GlobalUUID) *typeChecker {
	li := l.LinkInfo(g)
	tc := &typeChecker{
		l:   l,
		g:   g,
		li:  li,
		u:   typing.New(),
		rep: li.Reporter(),
	}
	if g.Kind == ir.GlobalModule {
		tc.mod = l.Module(g.Module())
	}
	return tc
}

func (tc *typeChecker) run() {
	for id, instr := range tc.li.Instructions.All() {
		for len(tc.conds) > 0 && tc.conds[len(tc.conds)-1].end <= id {
			tc.conds = tc.conds[:len(tc.conds)-1]
		}
		trace.Node(tc.tr, "typecheck", instr.Span)
		switch d := instr.Data.(type) {
		case *ir.Declaration:
			tc.declaration(d)
		case *ir.SubModule:
			tc.submodule(d)
		case *ir.Expression:
			tc.expression(id, instr.Span, d)
		case *ir.IfStatement:
			tc.expect(d.Condition, tc.boolType(), "Condition")
			if !tc.isGen(d.Condition) {
				tc.conds = append(tc.conds, condition{cond: d.Condition, end: max(d.Then.End, d.Else.End)})
			}
		case *ir.ForStatement:
			loopVar := tc.li.Instr(d.LoopVar).Decl()
			if loopVar != nil {
				tc.expect(d.Start, loopVar.Typ.Typ, "For loop start")
				tc.expect(d.End, loopVar.Typ.Typ, "For loop end")
			}
		}
	}
}

func (tc *typeChecker) declaration(d *ir.Declaration) {
	d.Typ.Typ = tc.written(&d.TypeExpr)
	if d.LatencySpec.IsValid() {
		tc.expect(d.LatencySpec, tc.intType(), "Latency specifier")
	}
}

func (tc *typeChecker) submodule(sm *ir.SubModule) {
	tc.globalRefArgs(&sm.Module)
	sm.Domains = nil
	m := tc.l.Module(sm.Module.ID.Module())
	if m == nil {
		return
	}
	sm.Domains = make([]ir.DomainType, m.Domains.Len())
	for i := range sm.Domains {
		sm.Domains[i] = tc.u.FreshDomain()
	}
}

// written converts a written type to its abstract form.
func (tc *typeChecker) written(w *ir.WrittenType) ir.AbstractRankedType {
	switch w.Kind {
	case ir.WrittenTemplate:
		return ir.AbstractRankedType{Inner: ir.AbstractInner{Kind: ir.InnerTemplate, Template: w.Template}}
	case ir.WrittenNamed:
		args := tc.globalRefArgs(w.Named)
		return ir.NamedType(w.Named.ID.Type(), args...)
	case ir.WrittenArray:
		elem := tc.written(w.Elem)
		if w.Size.IsValid() {
			tc.expect(w.Size, tc.intType(), "Array size")
		}
		elem.Rank = tc.u.ResolveRank(elem.Rank).Succ()
		return elem
	default:
		return ir.ErrorType()
	}
}

// globalRefArgs fills ref.TypeArgs and typechecks the value arguments
// against the parameter declarations of the target.
func (tc *typeChecker) globalRefArgs(ref *ir.GlobalRef) []ir.AbstractRankedType {
	target := tc.l.LinkInfo(ref.ID)
	if target == nil {
		ref.TypeArgs = nil
		return nil
	}
	args := make([]ir.AbstractRankedType, target.Parameters.Len())
	for id, p := range target.Parameters.All() {
		i := int(id) - 1
		var given *ir.TemplateArg
		if i < len(ref.Args) {
			given = ref.Args[i]
		}
		switch p.Kind {
		case ir.ParamType:
			if given != nil && given.Kind == ir.ArgType {
				args[i] = tc.written(&given.Type)
			} else {
				args[i] = tc.u.FreshType()
			}
		case ir.ParamValue:
			if given != nil && given.Kind == ir.ArgValue {
				want := typing.SubstituteTemplates(tc.foreignDeclType(ref.ID, p.Decl).Typ, args)
				tc.expect(given.Value, want, fmt.Sprintf("Template argument '%s'", p.Name))
			}
		}
	}
	ref.TypeArgs = args
	return args
}

// foreignDeclType returns the type of a declaration of another global. A
// global still being checked has no final types yet, which yields the
// error type.
func (tc *typeChecker) foreignDeclType(g ir.GlobalUUID, id ir.FlatID) ir.FullType {
	li := tc.l.LinkInfo(g)
	if li == nil || !id.IsValid() {
		return ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}
	}
	d := li.Instr(id).Decl()
	if d == nil {
		return ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}
	}
	if g != tc.g && li.Phase < ir.PhaseTypechecked {
		return ir.FullType{Typ: ir.ErrorType(), Domain: d.Typ.Domain}
	}
	return d.Typ
}

func (tc *typeChecker) intType() ir.AbstractRankedType {
	id := tc.l.Builtins.Int
	if !id.IsValid() {
		return ir.ErrorType()
	}
	return ir.NamedType(id, make([]ir.AbstractRankedType, tc.l.Type(id).Parameters.Len())...)
}

func (tc *typeChecker) boolType() ir.AbstractRankedType {
	if !tc.l.Builtins.Bool.IsValid() {
		return ir.ErrorType()
	}
	return ir.NamedType(tc.l.Builtins.Bool)
}

func withRank(t ir.AbstractRankedType, r ir.Rank) ir.AbstractRankedType {
	return ir.AbstractRankedType{Inner: t.Inner, Rank: r}
}

// typeOf returns the type an instruction yields.
func (tc *typeChecker) typeOf(id ir.FlatID) ir.FullType {
	switch d := tc.li.Instr(id).Data.(type) {
	case *ir.Expression:
		return d.Typ
	case *ir.Declaration:
		return d.Typ
	}
	return ir.FullType{Typ: ir.ErrorType(), Domain: ir.ErrorDomain}
}

func (tc *typeChecker) isGen(id ir.FlatID) bool {
	return tc.typeOf(id).Domain.IsGenerative()
}

// expect unifies the type of instruction id with want and reports a
// mismatch at the instruction.
func (tc *typeChecker) expect(id ir.FlatID, want ir.AbstractRankedType, context string) {
	tc.unifyAt(tc.li.Instr(id).Span, want, tc.typeOf(id).Typ, context)
}

// unifyAt unifies expected and found and reports failures at span.
func (tc *typeChecker) unifyAt(span source.Span, expected, found ir.AbstractRankedType, context string) bool {
	switch tc.u.Unify(expected, found) {
	case typing.Success:
		return true
	case typing.FailureInfinite:
		diag.ReportError(tc.rep, diag.TypeInfinite, span,
			fmt.Sprintf("Typing Error: %s would have to be an infinitely nested type: '%s' and '%s'",
				context, tc.display(expected), tc.display(found))).Emit()
	default:
		diag.ReportError(tc.rep, diag.TypeMismatch, span,
			fmt.Sprintf("Typing Error: %s expects a '%s' but was given a '%s'",
				context, tc.display(expected), tc.display(found))).Emit()
	}
	return false
}

func (tc *typeChecker) display(t ir.AbstractRankedType) string {
	full, _ := tc.u.FullySubstitute(t)
	return full.Display(tc.l, tc.g)
}
