package instantiate

import (
	"fmt"
	"math/big"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
)

// eval computes a generative expression.
func (ex *executor) eval(span source.Span, src *ir.ExprSource) ir.Value {
	switch src.Kind {
	case ir.SourceLiteral:
		return src.Literal.Clone()
	case ir.SourceWireRef:
		return ex.evalRef(src.Ref)
	case ir.SourceUnary:
		right, ok := ex.operandValue(span, src.Right)
		if !ok {
			return ir.ErrorValue
		}
		return ex.evalUnary(span, src.Unary, src.OpRank.Base, right)
	case ir.SourceBinary:
		left, okL := ex.operandValue(span, src.Left)
		right, okR := ex.operandValue(span, src.Right)
		if !okL || !okR {
			return ir.ErrorValue
		}
		return ex.evalBinary(span, src.Binary, src.OpRank.Base, left, right)
	case ir.SourceArray:
		arr := make([]ir.Value, len(src.Elements))
		for i, el := range src.Elements {
			v, ok := ex.operandValue(span, el)
			if !ok {
				return ir.ErrorValue
			}
			arr[i] = v.Clone()
		}
		return ir.ArrayValue(arr)
	}
	return ir.ErrorValue
}

// operandValue reads the value of an operand, reporting reads of values
// that were never assigned.
func (ex *executor) operandValue(span source.Span, id ir.FlatID) (ir.Value, bool) {
	v := ex.valueOf(id)
	if v.Kind == ir.ValueError {
		return v, false
	}
	if v.ContainsUnset() {
		diag.ReportError(ex.rep, diag.GenUnsetValue, ex.li.Instr(id).Span, "This value is read before it was set").
			WithNote(span, "Used here").
			Emit()
		return ir.ErrorValue, false
	}
	return v, true
}

func (ex *executor) evalRef(ref *ir.WireReference) ir.Value {
	var v ir.Value
	switch ref.Root.Kind {
	case ir.RootLocalDecl:
		v = ex.valueOf(ref.Root.Local)
	case ir.RootNamedConstant:
		v = ex.evalConstant(ref.Root.Global, ref.Root.Span)
	default:
		return ir.ErrorValue
	}
	for i := range ref.Path {
		if v.Kind == ir.ValueError {
			return v
		}
		v = ex.selectValue(v, &ref.Path[i])
	}
	if v.ContainsUnset() {
		diag.ReportError(ex.rep, diag.GenUnsetValue, ref.Span, "This value is read before it was set").Emit()
		return ir.ErrorValue
	}
	return v
}

// selectValue applies one path element to an array value.
func (ex *executor) selectValue(v ir.Value, p *ir.PathElem) ir.Value {
	if p.Kind == ir.PathField {
		diag.ReportError(ex.rep, diag.GenNotSupported, p.NameSpan, "Fields of generative values are not supported").Emit()
		return ir.ErrorValue
	}
	if v.Kind != ir.ValueArray {
		return ir.ErrorValue
	}
	n := int64(len(v.Arr))
	switch p.Kind {
	case ir.PathIndex:
		idx, ok := ex.intOf(p.Idx)
		if !ok {
			return ir.ErrorValue
		}
		if idx.Sign() < 0 || idx.Cmp(big.NewInt(n)) >= 0 {
			diag.ReportError(ex.rep, diag.GenIndexOOB, p.BracketSpan,
				fmt.Sprintf("Index out of bounds. Array is of size %d, but the index is %s.", n, idx)).Emit()
			return ir.ErrorValue
		}
		return v.Arr[idx.Int64()]
	case ir.PathSlice:
		from, to := big.NewInt(0), big.NewInt(n)
		if p.From.IsValid() {
			f, ok := ex.intOf(p.From)
			if !ok {
				return ir.ErrorValue
			}
			from = f
		}
		if p.To.IsValid() {
			t, ok := ex.intOf(p.To)
			if !ok {
				return ir.ErrorValue
			}
			to = t
		}
		return ex.subArray(v, from, to, p.BracketSpan)
	case ir.PathPartSelect:
		base, okB := ex.intOf(p.From)
		width, okW := ex.intOf(p.Width)
		if !okB || !okW {
			return ir.ErrorValue
		}
		from, to := partRange(base, width, p.Dir)
		return ex.subArray(v, from, to, p.BracketSpan)
	}
	return ir.ErrorValue
}

// partRange returns the half-open element range of a part-select. [b +: w]
// covers b to b+w-1, [b -: w] covers b-w+1 to b.
func partRange(base, width *big.Int, dir ir.PartDirection) (from, to *big.Int) {
	if dir == ir.PartDown {
		to = new(big.Int).Add(base, big.NewInt(1))
		return new(big.Int).Sub(to, width), to
	}
	return new(big.Int).Set(base), new(big.Int).Add(base, width)
}

func (ex *executor) subArray(v ir.Value, from, to *big.Int, span source.Span) ir.Value {
	n := big.NewInt(int64(len(v.Arr)))
	if from.Sign() < 0 || from.Cmp(to) > 0 || to.Cmp(n) > 0 {
		diag.ReportError(ex.rep, diag.GenIndexOOB, span,
			fmt.Sprintf("Slice [%s:%s] is out of bounds for an array of size %s", from, to, n)).Emit()
		return ir.ErrorValue
	}
	arr := make([]ir.Value, 0, to.Int64()-from.Int64())
	for _, e := range v.Arr[from.Int64():to.Int64()] {
		arr = append(arr, e.Clone())
	}
	return ir.ArrayValue(arr)
}

// evalUnary applies op to the elements rank levels deep in v.
func (ex *executor) evalUnary(span source.Span, op ir.UnaryOperator, rank uint32, v ir.Value) ir.Value {
	if rank > 0 {
		if v.Kind != ir.ValueArray {
			return ir.ErrorValue
		}
		out := make([]ir.Value, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = ex.evalUnary(span, op, rank-1, e)
		}
		return ir.ArrayValue(out)
	}
	switch op {
	case ir.UnaryNot:
		if v.Kind == ir.ValueBool {
			return ir.BoolValue(!v.Bool)
		}
	case ir.UnaryNegate:
		if v.Kind == ir.ValueInt {
			return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Neg(v.Int)}
		}
	case ir.UnaryAnd, ir.UnaryOr, ir.UnaryXor:
		if v.Kind != ir.ValueArray {
			return ir.ErrorValue
		}
		acc := op == ir.UnaryAnd
		for _, e := range v.Arr {
			if e.Kind != ir.ValueBool {
				return ir.ErrorValue
			}
			switch op {
			case ir.UnaryAnd:
				acc = acc && e.Bool
			case ir.UnaryOr:
				acc = acc || e.Bool
			default:
				acc = acc != e.Bool
			}
		}
		return ir.BoolValue(acc)
	case ir.UnarySum, ir.UnaryProduct:
		if v.Kind != ir.ValueArray {
			return ir.ErrorValue
		}
		acc := big.NewInt(0)
		if op == ir.UnaryProduct {
			acc.SetInt64(1)
		}
		for _, e := range v.Arr {
			if e.Kind != ir.ValueInt {
				return ir.ErrorValue
			}
			if op == ir.UnarySum {
				acc.Add(acc, e.Int)
			} else {
				acc.Mul(acc, e.Int)
			}
		}
		return ir.Value{Kind: ir.ValueInt, Int: acc}
	}
	return ir.ErrorValue
}

// evalBinary applies op elementwise rank levels deep.
func (ex *executor) evalBinary(span source.Span, op ir.BinaryOperator, rank uint32, a, b ir.Value) ir.Value {
	if rank > 0 {
		if a.Kind != ir.ValueArray || b.Kind != ir.ValueArray {
			return ir.ErrorValue
		}
		if len(a.Arr) != len(b.Arr) {
			diag.ReportError(ex.rep, diag.GenArraySize, span,
				fmt.Sprintf("Operands of '%s' are arrays of different lengths: %d and %d", op, len(a.Arr), len(b.Arr))).Emit()
			return ir.ErrorValue
		}
		out := make([]ir.Value, len(a.Arr))
		for i := range a.Arr {
			out[i] = ex.evalBinary(span, op, rank-1, a.Arr[i], b.Arr[i])
		}
		return ir.ArrayValue(out)
	}
	if a.Kind == ir.ValueError || b.Kind == ir.ValueError {
		return ir.ErrorValue
	}
	if op.IsLogical() {
		if a.Kind != ir.ValueBool || b.Kind != ir.ValueBool {
			return ir.ErrorValue
		}
		switch op {
		case ir.BinaryAnd:
			return ir.BoolValue(a.Bool && b.Bool)
		case ir.BinaryOr:
			return ir.BoolValue(a.Bool || b.Bool)
		default:
			return ir.BoolValue(a.Bool != b.Bool)
		}
	}
	if op == ir.BinaryEq || op == ir.BinaryNotEq {
		return ir.BoolValue(a.Equal(b) == (op == ir.BinaryEq))
	}
	if a.Kind != ir.ValueInt || b.Kind != ir.ValueInt {
		return ir.ErrorValue
	}
	x, y := a.Int, b.Int
	switch op {
	case ir.BinaryAdd:
		return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Add(x, y)}
	case ir.BinarySub:
		return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Sub(x, y)}
	case ir.BinaryMul:
		return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Mul(x, y)}
	case ir.BinaryDiv, ir.BinaryMod:
		if y.Sign() == 0 {
			diag.ReportError(ex.rep, diag.GenDivideByZero, span, fmt.Sprintf("Divide by zero: %s %s 0", x, op)).Emit()
			return ir.ErrorValue
		}
		if op == ir.BinaryDiv {
			return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Quo(x, y)}
		}
		return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Rem(x, y)}
	case ir.BinaryLess:
		return ir.BoolValue(x.Cmp(y) < 0)
	case ir.BinaryLessEq:
		return ir.BoolValue(x.Cmp(y) <= 0)
	case ir.BinaryGreater:
		return ir.BoolValue(x.Cmp(y) > 0)
	case ir.BinaryGreaterEq:
		return ir.BoolValue(x.Cmp(y) >= 0)
	case ir.BinaryShiftLeft, ir.BinaryShiftRight:
		if y.Sign() < 0 || !y.IsUint64() || y.Uint64() > maxShift {
			diag.ReportError(ex.rep, diag.GenBadArgument, span, fmt.Sprintf("Invalid shift amount %s", y)).Emit()
			return ir.ErrorValue
		}
		if op == ir.BinaryShiftLeft {
			return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Lsh(x, uint(y.Uint64()))}
		}
		return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Rsh(x, uint(y.Uint64()))}
	}
	return ir.ErrorValue
}

const maxShift = 1 << 16
