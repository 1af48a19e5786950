package instantiate

import (
	"fmt"
	"math/big"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/latency"
	"sus/internal/source"
	"sus/internal/typing"
)

// maxWidenings bounds how often the inferred range of one wire may grow.
const maxWidenings = 1000

// propagateBounds widens inferred int ranges until no writer falls outside
// the range of the wire it drives.
func (ex *executor) propagateBounds() {
	for changed := true; changed; {
		changed = false
		for _, w := range ex.inst.Wires.All() {
			if !w.InferBounds {
				continue
			}
			r, ok, partial := ex.sourceRange(w)
			w.partial = partial
			if !ok {
				continue
			}
			if w.Bounds != nil {
				if w.Bounds.Contains(r) {
					continue
				}
				r, _ = typing.Hull(*w.Bounds, r)
			}
			w.widenings++
			w.Bounds = &r
			if w.widenings > maxWidenings {
				diag.ReportError(ex.rep, diag.GenBoundsDiverge, ex.wireSpan(w),
					fmt.Sprintf("The bounds of '%s' keep growing, last seen %s. Write its bounds explicitly", w.Name, r)).Emit()
				w.InferBounds = false
				continue
			}
			changed = true
		}
	}
}

// sourceRange computes the range of the values driving w. partial reports
// that some driver had no range yet.
func (ex *executor) sourceRange(w *Wire) (r typing.IntRange, ok, partial bool) {
	var parts []typing.IntRange
	add := func(id WireID) {
		if b := ex.inst.Wire(id).Bounds; b != nil {
			parts = append(parts, *b)
		} else {
			partial = true
		}
	}
	src := &w.Source
	switch src.Kind {
	case SourceMux:
		// An undriven wire holds zero. It is reported by check.
		if len(src.Sources) == 0 && !(src.IsState && src.Initial.IsSet()) {
			return typing.Single(new(big.Int)), true, false
		}
		for i := range src.Sources {
			add(src.Sources[i].From)
		}
		if src.IsState && src.Initial.IsSet() {
			parts = appendValueRanges(parts, src.Initial)
		}
	case SourceUnary:
		b := ex.inst.Wire(src.Right).Bounds
		if b == nil {
			return r, false, true
		}
		n := int64(1)
		if src.Unary.IsReduction() {
			l, known := ex.arrayLen(ex.typeAtDepth(ex.inst.Wire(src.Right).Typ, src.OpRank))
			if !known {
				return r, false, true
			}
			n = l
		}
		r, ok = typing.UnaryRange(src.Unary, *b, n)
		return r, ok, false
	case SourceBinary:
		a, b := ex.inst.Wire(src.Left).Bounds, ex.inst.Wire(src.Right).Bounds
		if a == nil || b == nil {
			return r, false, true
		}
		r, ok = typing.BinaryRange(src.Binary, *a, *b)
		return r, ok, false
	case SourceSelect:
		add(src.Root)
	case SourceArray:
		for _, e := range src.Elements {
			add(e)
		}
	case SourceConstant:
		parts = appendValueRanges(parts, src.Value)
	case SourceOutPort:
		sm := ex.inst.SubModules.MustGet(src.SubModule)
		if sm.Instance == nil {
			return r, false, true
		}
		if p := sm.Instance.Port(src.Port); p != nil {
			if lo, hi, known := ex.l.Builtins.IntBounds(baseOf(p.Typ)); known {
				return typing.IntRange{Min: lo, Max: hi}, true, false
			}
		}
		return r, false, false
	}
	r, ok = typing.Hull(parts...)
	return r, ok, partial
}

func appendValueRanges(parts []typing.IntRange, v ir.Value) []typing.IntRange {
	switch v.Kind {
	case ir.ValueInt:
		return append(parts, typing.Single(v.Int))
	case ir.ValueArray:
		for _, e := range v.Arr {
			parts = appendValueRanges(parts, e)
		}
	}
	return parts
}

func (ex *executor) typeAtDepth(t *ir.ConcreteType, depth uint32) *ir.ConcreteType {
	for range depth {
		t = ex.u.ResolveConcrete(t)
		if t == nil || t.Kind != ir.ConcreteArray {
			return nil
		}
		t = t.Elem
	}
	return t
}

// baseOf strips the array dimensions of a substituted type.
func baseOf(t *ir.ConcreteType) *ir.ConcreteType {
	for t != nil && t.Kind == ir.ConcreteArray {
		t = t.Elem
	}
	return t
}

// withBounds returns t with the bounds of every int of unknown range set to
// r.
func (ex *executor) withBounds(t *ir.ConcreteType, r *typing.IntRange) *ir.ConcreteType {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ir.ConcreteArray:
		out := *t
		out.Elem = ex.withBounds(t.Elem, r)
		return &out
	case ir.ConcreteNamed:
		if t.Named != ex.l.Builtins.Int || r == nil {
			return t
		}
		if _, _, known := ex.l.Builtins.IntBounds(t); known {
			return t
		}
		return ex.l.Builtins.IntType(r.Min, r.Max)
	}
	return t
}

// finalizeTypes substitutes every wire type and writes the inferred bounds
// into it. Types that still contain unknowns are reported.
func (ex *executor) finalizeTypes() {
	reported := make(map[ir.FlatID]bool)
	for _, w := range ex.inst.Wires.All() {
		t, _ := ex.u.FullySubstituteConcrete(w.Typ)
		t = ex.withBounds(t, w.Bounds)
		w.Typ = t
		if t.IsFullyKnown() || reported[w.Original] {
			continue
		}
		reported[w.Original] = true
		diag.ReportError(ex.rep, diag.GenTypeNotConcrete, ex.wireSpan(w),
			fmt.Sprintf("Could not finalize this type, some parameters were still unknown: %s", t.Display(ex.l))).Emit()
	}
	for _, p := range ex.inst.Ports {
		if p != nil {
			p.Typ = ex.inst.Wire(p.Wire).Typ
		}
	}
}

// wireSpan is where diagnostics about w point.
func (ex *executor) wireSpan(w *Wire) source.Span {
	instr := ex.li.Instr(w.Original)
	switch d := instr.Data.(type) {
	case *ir.Declaration:
		return d.NameSpan
	case *ir.SubModule:
		if d.Name != "" {
			return d.NameSpan
		}
		return d.Module.Span
	}
	return instr.Span
}

// rangeOf returns the bounds of a wire, or of the int leaves of a finalized
// type.
func (ex *executor) rangeOf(id WireID) (typing.IntRange, bool) {
	w := ex.inst.Wire(id)
	if w.Bounds != nil {
		return *w.Bounds, true
	}
	if lo, hi, ok := ex.l.Builtins.IntBounds(baseOf(w.Typ)); ok {
		return typing.IntRange{Min: lo, Max: hi}, true
	}
	return typing.IntRange{}, false
}

// node maps a wire to its latency graph node.
func node(id WireID) int { return int(id) - 1 }

// portLatency returns the latency of a port of a submodule instance.
func portLatency(p *Port) (int64, bool) {
	if p == nil || !latency.IsValid(p.Latency) || p.Latency == LatencyLater {
		return 0, false
	}
	return p.Latency, true
}
