package instantiate

import (
	"fmt"
	"math/big"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/typing"
)

// check runs the checks that need final types: integer subtyping of every
// write, bounds of every index and slice, and drivers of read wires.
func (ex *executor) check(m *ir.Module) {
	read := make([]bool, ex.inst.Wires.Len()+1)
	for _, w := range ex.inst.Wires.All() {
		w.Source.Wires(func(from WireID, _ int) { read[from] = true })
	}
	for id, w := range ex.inst.Wires.All() {
		switch w.Source.Kind {
		case SourceMux:
			ex.checkMux(m, id, w, read[id])
		case SourceSelect:
			ex.checkPath(ex.inst.Wire(w.Source.Root).Typ, w.Source.Path)
		}
	}
}

func (ex *executor) checkMux(m *ir.Module, id WireID, w *Wire, read bool) {
	if len(w.Source.Sources) == 0 && !w.Source.IsState && m.Extern == ir.NotExtern {
		isOutput := w.Port.IsValid() && !w.IsInput
		if d := ex.li.Instr(w.Original).Decl(); d != nil && (isOutput || read) {
			msg := fmt.Sprintf("'%s' is read but never assigned", w.Name)
			if isOutput {
				msg = fmt.Sprintf("Output port '%s' is never assigned", w.Name)
			}
			diag.ReportError(ex.rep, diag.GenUnconnected, d.NameSpan, msg).Emit()
		}
	}
	target, fixed := ex.fixedRange(w)
	for i := range w.Source.Sources {
		src := &w.Source.Sources[i]
		ex.checkPath(w.Typ, src.Path)
		if !fixed {
			continue
		}
		if r, ok := ex.rangeOf(src.From); ok && !target.Contains(r) {
			diag.ReportError(ex.rep, diag.PostSubtype, src.ToSpan,
				fmt.Sprintf("Can't assign a value in %s to '%s', which holds %s", r, w.Name, target)).Emit()
		}
	}
	if fixed && w.Source.IsState && w.Source.Initial.IsSet() {
		var parts []typing.IntRange
		if r, ok := typing.Hull(appendValueRanges(parts, w.Source.Initial)...); ok && !target.Contains(r) {
			diag.ReportError(ex.rep, diag.PostSubtype, ex.wireSpan(w),
				fmt.Sprintf("The initial value of '%s' lies in %s, outside of %s", w.Name, r, target)).Emit()
		}
	}
}

// fixedRange returns the bounds of a wire whose range does not come from
// its writers.
func (ex *executor) fixedRange(w *Wire) (typing.IntRange, bool) {
	if w.InferBounds || w.Bounds == nil {
		return typing.IntRange{}, false
	}
	return *w.Bounds, true
}

// checkPath verifies that every index and slice of path stays within the
// arrays it selects from.
func (ex *executor) checkPath(t *ir.ConcreteType, path []PathElem) {
	for _, p := range path {
		if t == nil || t.Kind != ir.ConcreteArray {
			return
		}
		n, ok := t.ArrayLen()
		if !ok {
			return
		}
		size := big.NewInt(n)
		switch p.Kind {
		case ir.PathIndex:
			if r, ok := ex.operandRange(p.Index); ok && (r.Min.Sign() < 0 || r.Max.Cmp(size) >= 0) {
				diag.ReportError(ex.rep, diag.PostIndexOOB, p.Span,
					fmt.Sprintf("Index in %s can go out of bounds for an array of size %d", r, n)).Emit()
			}
			t = t.Elem
		case ir.PathSlice:
			from, okF := ex.operandRange(p.From)
			if !p.From.IsConst() && !p.From.Wire.IsValid() {
				from, okF = typing.NewRange(0, 0), true
			}
			to, okT := ex.operandRange(p.To)
			if !p.To.IsConst() && !p.To.Wire.IsValid() {
				to, okT = typing.NewRange(n, n), true
			}
			if okF && okT && (from.Min.Sign() < 0 || to.Max.Cmp(size) > 0 || from.Max.Cmp(to.Min) > 0) {
				diag.ReportError(ex.rep, diag.PostSliceOOB, p.Span,
					fmt.Sprintf("Slice from %s to %s can go out of bounds for an array of size %d", from, to, n)).Emit()
			}
			t = &ir.ConcreteType{Kind: ir.ConcreteArray, Elem: t.Elem}
		case ir.PathPartSelect:
			base, okB := ex.operandRange(p.From)
			if !p.Width.IsConst() {
				diag.ReportError(ex.rep, diag.PostPartSelect, p.Span, "The width of a part-select must be known at compile time").Emit()
				return
			}
			if okB {
				lo, _ := partRange(base.Min, p.Width.Const, p.Dir)
				_, hi := partRange(base.Max, p.Width.Const, p.Dir)
				if lo.Sign() < 0 || hi.Cmp(size) > 0 {
					diag.ReportError(ex.rep, diag.PostPartSelect, p.Span,
						fmt.Sprintf("Part-select of width %s at %s can go out of bounds for an array of size %d", p.Width.Const, base, n)).Emit()
				}
			}
			t = &ir.ConcreteType{Kind: ir.ConcreteArray, Elem: t.Elem}
		default:
			return
		}
	}
}

func (ex *executor) operandRange(o Operand) (typing.IntRange, bool) {
	switch {
	case o.IsConst():
		return typing.Single(o.Const), true
	case o.Wire.IsValid():
		return ex.rangeOf(o.Wire)
	}
	return typing.IntRange{}, false
}
