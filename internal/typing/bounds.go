package typing

import (
	"math/big"

	"sus/internal/ir"
)

// IntRange is the closed interval of an int #(MIN, MAX) type.
type IntRange struct {
	Min *big.Int
	Max *big.Int
}

// NewRange builds a range from int64 bounds.
func NewRange(lo, hi int64) IntRange {
	return IntRange{Min: big.NewInt(lo), Max: big.NewInt(hi)}
}

// Int32Range is the range given to inputs whose bounds are not written.
func Int32Range() IntRange {
	return NewRange(-1<<31, 1<<31-1)
}

// Empty reports whether Min > Max.
func (r IntRange) Empty() bool { return r.Min.Cmp(r.Max) > 0 }

// Equal compares both bounds.
func (r IntRange) Equal(o IntRange) bool {
	return r.Min.Cmp(o.Min) == 0 && r.Max.Cmp(o.Max) == 0
}

// Contains reports whether o lies within r, that is whether int o is a
// subtype of int r.
func (r IntRange) Contains(o IntRange) bool {
	return r.Min.Cmp(o.Min) <= 0 && o.Max.Cmp(r.Max) <= 0
}

// ContainsInt reports whether v lies within r.
func (r IntRange) ContainsInt(v *big.Int) bool {
	return r.Min.Cmp(v) <= 0 && v.Cmp(r.Max) <= 0
}

func (r IntRange) String() string {
	return "[" + r.Min.String() + ", " + r.Max.String() + "]"
}

// Hull returns the smallest range containing all of rs.
func Hull(rs ...IntRange) (IntRange, bool) {
	if len(rs) == 0 {
		return IntRange{}, false
	}
	out := IntRange{Min: new(big.Int).Set(rs[0].Min), Max: new(big.Int).Set(rs[0].Max)}
	for _, r := range rs[1:] {
		if r.Min.Cmp(out.Min) < 0 {
			out.Min.Set(r.Min)
		}
		if r.Max.Cmp(out.Max) > 0 {
			out.Max.Set(r.Max)
		}
	}
	return out, true
}

// Single is the range holding only v.
func Single(v *big.Int) IntRange {
	return IntRange{Min: new(big.Int).Set(v), Max: new(big.Int).Set(v)}
}

func span(vals ...*big.Int) IntRange {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v.Cmp(lo) < 0 {
			lo = v
		}
		if v.Cmp(hi) > 0 {
			hi = v
		}
	}
	return IntRange{Min: new(big.Int).Set(lo), Max: new(big.Int).Set(hi)}
}

// BinaryRange returns the range of a op b for integer-valued operators.
// It reports false for operators that do not produce an int and for
// divisions whose divisor can only be zero.
func BinaryRange(op ir.BinaryOperator, a, b IntRange) (IntRange, bool) {
	switch op {
	case ir.BinaryAdd:
		return IntRange{Min: new(big.Int).Add(a.Min, b.Min), Max: new(big.Int).Add(a.Max, b.Max)}, true
	case ir.BinarySub:
		return IntRange{Min: new(big.Int).Sub(a.Min, b.Max), Max: new(big.Int).Sub(a.Max, b.Min)}, true
	case ir.BinaryMul:
		return span(
			new(big.Int).Mul(a.Min, b.Min), new(big.Int).Mul(a.Min, b.Max),
			new(big.Int).Mul(a.Max, b.Min), new(big.Int).Mul(a.Max, b.Max),
		), true
	case ir.BinaryDiv:
		var parts []IntRange
		for _, d := range nonZero(b) {
			parts = append(parts, span(
				new(big.Int).Quo(a.Min, d.Min), new(big.Int).Quo(a.Min, d.Max),
				new(big.Int).Quo(a.Max, d.Min), new(big.Int).Quo(a.Max, d.Max),
			))
		}
		return Hull(parts...)
	case ir.BinaryMod:
		if len(nonZero(b)) == 0 {
			return IntRange{}, false
		}
		m := new(big.Int).Abs(b.Min)
		if abs := new(big.Int).Abs(b.Max); abs.Cmp(m) > 0 {
			m = abs
		}
		m.Sub(m, big.NewInt(1))
		lo, hi := new(big.Int).Neg(m), new(big.Int).Set(m)
		if a.Min.Sign() >= 0 {
			lo.SetInt64(0)
			if a.Max.Cmp(hi) < 0 {
				hi.Set(a.Max)
			}
		}
		if a.Max.Sign() <= 0 {
			hi.SetInt64(0)
			if a.Min.Cmp(lo) > 0 {
				lo.Set(a.Min)
			}
		}
		return IntRange{Min: lo, Max: hi}, true
	case ir.BinaryShiftLeft, ir.BinaryShiftRight:
		if b.Min.Sign() < 0 || !b.Max.IsUint64() {
			return IntRange{}, false
		}
		lo, hi := uint(b.Min.Uint64()), uint(b.Max.Uint64())
		shift := func(v *big.Int, n uint) *big.Int {
			if op == ir.BinaryShiftLeft {
				return new(big.Int).Lsh(v, n)
			}
			return new(big.Int).Rsh(v, n)
		}
		return span(shift(a.Min, lo), shift(a.Min, hi), shift(a.Max, lo), shift(a.Max, hi)), true
	default:
		return IntRange{}, false
	}
}

// nonZero splits r into its strictly negative and strictly positive parts.
func nonZero(r IntRange) []IntRange {
	var out []IntRange
	minusOne, one := big.NewInt(-1), big.NewInt(1)
	if r.Min.Sign() < 0 {
		hi := minusOne
		if r.Max.Cmp(minusOne) < 0 {
			hi = r.Max
		}
		out = append(out, IntRange{Min: r.Min, Max: hi})
	}
	if r.Max.Sign() > 0 {
		lo := one
		if r.Min.Cmp(one) > 0 {
			lo = r.Min
		}
		out = append(out, IntRange{Min: lo, Max: r.Max})
	}
	return out
}

// UnaryRange returns the range of an integer unary operator. n is the
// number of elements a reduction folds.
func UnaryRange(op ir.UnaryOperator, a IntRange, n int64) (IntRange, bool) {
	switch op {
	case ir.UnaryNegate:
		return IntRange{Min: new(big.Int).Neg(a.Max), Max: new(big.Int).Neg(a.Min)}, true
	case ir.UnarySum:
		k := big.NewInt(n)
		return span(new(big.Int).Mul(a.Min, k), new(big.Int).Mul(a.Max, k)), true
	case ir.UnaryProduct:
		if n == 0 {
			return NewRange(1, 1), true
		}
		k := big.NewInt(n)
		if a.Min.Sign() >= 0 {
			return IntRange{Min: new(big.Int).Exp(a.Min, k, nil), Max: new(big.Int).Exp(a.Max, k, nil)}, true
		}
		m := new(big.Int).Abs(a.Min)
		if a.Max.CmpAbs(m) > 0 {
			m.Abs(a.Max)
		}
		p := new(big.Int).Exp(m, k, nil)
		return IntRange{Min: new(big.Int).Neg(p), Max: p}, true
	default:
		return IntRange{}, false
	}
}

// Bits returns the width of the smallest two's complement (when Min is
// negative) or unsigned encoding of r.
func Bits(r IntRange) (width int, signed bool) {
	if r.Min.Sign() >= 0 {
		return max(r.Max.BitLen(), 1), false
	}
	neg := new(big.Int).Neg(r.Min)
	neg.Sub(neg, big.NewInt(1))
	w := max(neg.BitLen(), r.Max.BitLen())
	return w + 1, true
}
