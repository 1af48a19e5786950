package instantiate

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
	"sus/internal/typing"
)

// elaborate instantiates the submodules of the instance. Arguments that
// were not given are inferred from the bounds of the wires connected to
// the submodule and from latencies, interleaved until nothing changes.
func (ex *executor) elaborate() {
	for {
		ex.propagateBounds()
		progress := false
		for sid, sm := range ex.inst.SubModules.All() {
			if sm.Instance == nil && !sm.failed && ex.tryInstantiate(sid) {
				progress = true
			}
		}
		if progress {
			continue
		}
		if !ex.inferLatencyArgs() {
			break
		}
	}
	for sid, sm := range ex.inst.SubModules.All() {
		if sm.Instance == nil && !sm.failed {
			ex.reportStuck(sid)
		}
	}
}

// tryInstantiate instantiates a submodule once all of its arguments are
// known. It reports whether the submodule was dealt with.
func (ex *executor) tryInstantiate(sid SubModuleID) bool {
	sm := ex.inst.SubModules.MustGet(sid)
	target := ex.l.Module(sm.Module)
	args := make([]ir.ConcreteArg, len(sm.Args))
	for i, a := range sm.Args {
		if a.Type != nil {
			t, ok := ex.typeArg(sm, target, i)
			if !ok {
				return false
			}
			args[i].Type = t
			continue
		}
		c := ex.u.ResolveValue(a.Value)
		if !c.Known() {
			return false
		}
		args[i].Value = ir.KnownCell(c.Value)
	}

	sub, recursive := instantiate(ex.l, sm.Module, args)
	span := ex.subSpan(sm)
	if recursive {
		diag.ReportError(ex.rep, diag.GenRecursion, span,
			fmt.Sprintf("%s depends on itself! Infinite Submodule Recursion is not allowed.", Mangle(ex.l, sm.Module, args))).Emit()
		sm.failed = true
		return true
	}
	sm = ex.inst.SubModules.MustGet(sid)
	sm.Instance = sub
	sm.Args = args
	if sub.HasErrors() {
		sm.failed = true
		ex.inst.subFailed = true
		return true
	}
	ex.connectPorts(sid)
	return true
}

// typeArg substitutes type argument i. An int whose bounds are open takes
// the hull of the wires written to the inputs typed by that parameter.
func (ex *executor) typeArg(sm *SubModule, target *ir.Module, i int) (*ir.ConcreteType, bool) {
	t, ok := ex.u.FullySubstituteConcrete(sm.Args[i].Type)
	if ok {
		return t, true
	}
	var parts []typing.IntRange
	for pid, p := range target.Ports.All() {
		if !p.IsInput {
			continue
		}
		d := target.Instr(p.Decl).Decl()
		if d == nil {
			continue
		}
		if base := d.TypeExpr.Base(); base.Kind != ir.WrittenTemplate || int(base.Template) != i+1 {
			continue
		}
		w := ex.inst.Wire(sm.PortMap[pid-1])
		if w.partial || w.Bounds == nil {
			return nil, false
		}
		parts = append(parts, *w.Bounds)
	}
	r, ok := typing.Hull(parts...)
	if !ok {
		return nil, false
	}
	t = ex.withBounds(t, &r)
	return t, t.IsFullyKnown()
}

// connectPorts unifies the wires connected to a freshly instantiated
// submodule with its ports and fixes their bounds to the port types.
func (ex *executor) connectPorts(sid SubModuleID) {
	sm := ex.inst.SubModules.MustGet(sid)
	for i, wid := range sm.PortMap {
		p := sm.Instance.Port(ir.PortID(i + 1))
		w := ex.inst.Wire(wid)
		if p == nil {
			continue
		}
		if !ex.u.UnifyShape(w.Typ, p.Typ, ex.l.Builtins.Int).OK() {
			diag.ReportError(ex.rep, diag.TypeMismatch, ex.subSpan(sm),
				fmt.Sprintf("Instantiation TypeError: port '%s' is %s, but %s is connected to it",
					p.Name, p.Typ.Display(ex.l), ex.display(w.Typ))).Emit()
			continue
		}
		if lo, hi, ok := ex.l.Builtins.IntBounds(baseOf(p.Typ)); ok {
			w.Bounds = &typing.IntRange{Min: lo, Max: hi}
			w.InferBounds = false
		}
	}
}

func (ex *executor) reportStuck(sid SubModuleID) {
	sm := ex.inst.SubModules.MustGet(sid)
	target := ex.l.Module(sm.Module)
	rb := diag.ReportError(ex.rep, diag.GenTypeNotConcrete, ex.subSpan(sm),
		fmt.Sprintf("Could not fully instantiate %s", sm.Name))
	for pid, p := range target.Parameters.All() {
		i := int(pid) - 1
		known := false
		if a := sm.Args[i]; a.Type != nil {
			_, known = ex.u.FullySubstituteConcrete(a.Type)
		} else {
			known = ex.u.ResolveValue(a.Value).Known()
		}
		if !known {
			rb.WithNote(p.NameSpan, fmt.Sprintf("Could not infer template argument '%s'", p.Name))
		}
	}
	rb.Emit()
}

func (ex *executor) subSpan(sm *SubModule) source.Span {
	if d := ex.li.Instr(sm.Original).SubModule(); d != nil {
		if d.Name != "" {
			return d.NameSpan
		}
		return d.Module.Span
	}
	return ex.li.Instr(sm.Original).Span
}
