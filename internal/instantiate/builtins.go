package instantiate

import (
	"fmt"
	"math/big"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
)

// maxConstDepth bounds nested constant evaluation.
const maxConstDepth = 64

// evalConstant computes a named constant for the arguments given at ref.
func (ex *executor) evalConstant(ref *ir.GlobalRef, span source.Span) ir.Value {
	if ref == nil || ref.ID.Kind != ir.GlobalConstant {
		return ir.ErrorValue
	}
	c := ex.l.Constant(ref.ID.Constant())
	if c == nil {
		return ir.ErrorValue
	}
	args := ex.templateArgs(ref, &span)
	for _, a := range args {
		if a.Type == nil && a.Value.Value.Kind == ir.ValueError {
			return ir.ErrorValue
		}
	}
	switch c.Extern {
	case ir.Builtin:
		v, err := ex.builtin(c.Name, args)
		if err != "" {
			diag.ReportError(ex.rep, diag.GenBadArgument, span, fmt.Sprintf("%s: %s", c.Name, err)).Emit()
			return ir.ErrorValue
		}
		if v.Kind == ir.ValueBool && !v.Bool && c.Name == "assert" {
			diag.ReportError(ex.rep, diag.GenAssertFailed, span, "Assertion failed").Emit()
			return ir.ErrorValue
		}
		return v
	case ir.Extern:
		diag.ReportError(ex.rep, diag.GenNotSupported, span,
			fmt.Sprintf("The extern constant '%s' has no value at compile time", c.Name)).Emit()
		return ir.ErrorValue
	}
	if ex.depth >= maxConstDepth {
		diag.ReportError(ex.rep, diag.GenRecursion, span,
			fmt.Sprintf("Evaluating '%s' nests more than %d constants deep", c.Name, maxConstDepth)).Emit()
		return ir.ErrorValue
	}
	sub := newExecutor(ex.l, &c.LinkInfo, args, nil, ex.u, ex.rep)
	sub.depth = ex.depth + 1
	sub.run(c.Instructions.IDs())
	v := sub.valueOf(c.Output)
	if v.ContainsUnset() {
		diag.ReportError(ex.rep, diag.GenUnsetValue, span,
			fmt.Sprintf("The constant '%s' never sets its value", c.Name)).
			WithNote(c.NameSpan, "Declared here").
			Emit()
		return ir.ErrorValue
	}
	return v
}

// builtin computes the value of a compiler-provided constant. A non-empty
// string explains why the arguments were rejected.
func (ex *executor) builtin(name string, args []ir.ConcreteArg) (ir.Value, string) {
	ints := make([]*big.Int, len(args))
	for i, a := range args {
		if a.Type == nil && a.Value.Value.Kind == ir.ValueInt {
			ints[i] = a.Value.Value.Int
		}
	}
	need := func(n int) bool {
		if len(ints) < n {
			return false
		}
		for _, v := range ints[:n] {
			if v == nil {
				return false
			}
		}
		return true
	}
	switch name {
	case "true":
		return ir.BoolValue(true), ""
	case "false":
		return ir.BoolValue(false), ""
	case "assert":
		if len(args) == 1 && args[0].Value.Value.Kind == ir.ValueBool {
			return ir.BoolValue(args[0].Value.Value.Bool), ""
		}
		return ir.ErrorValue, "expected a bool condition"
	case "clog2":
		if !need(1) {
			break
		}
		if ints[0].Sign() <= 0 {
			return ir.ErrorValue, fmt.Sprintf("V must be >= 1! Found %s", ints[0])
		}
		n := new(big.Int).Sub(ints[0], big.NewInt(1))
		return ir.IntValue(int64(n.BitLen())), ""
	case "pow2":
		if !need(1) {
			break
		}
		e, err := smallUint(ints[0], "E")
		if err != "" {
			return ir.ErrorValue, err
		}
		return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Lsh(big.NewInt(1), uint(e))}, ""
	case "pow":
		if !need(2) {
			break
		}
		e, err := smallUint(ints[1], "E")
		if err != "" {
			return ir.ErrorValue, err
		}
		return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).Exp(ints[0], big.NewInt(int64(e)), nil)}, ""
	case "factorial":
		if !need(1) {
			break
		}
		n, err := smallUint(ints[0], "N")
		if err != "" {
			return ir.ErrorValue, err
		}
		return ir.Value{Kind: ir.ValueInt, Int: new(big.Int).MulRange(1, int64(n))}, ""
	case "falling_factorial", "comb":
		if !need(2) {
			break
		}
		if ints[0].Sign() < 0 {
			return ir.ErrorValue, fmt.Sprintf("N must be positive! Found %s", ints[0])
		}
		k, err := smallUint(ints[1], "K")
		if err != "" {
			return ir.ErrorValue, err
		}
		if big.NewInt(int64(k)).Cmp(ints[0]) > 0 {
			return ir.ErrorValue, "K must be <= N."
		}
		acc := big.NewInt(1)
		cur := new(big.Int).Set(ints[0])
		for range k {
			acc.Mul(acc, cur)
			cur.Sub(cur, big.NewInt(1))
		}
		if name == "comb" {
			acc.Quo(acc, new(big.Int).MulRange(1, int64(k)))
		}
		return ir.Value{Kind: ir.ValueInt, Int: acc}, ""
	case "min", "max":
		if !need(2) {
			break
		}
		a, b := ints[0], ints[1]
		if (a.Cmp(b) > 0) == (name == "min") {
			a = b
		}
		return ir.BigValue(a), ""
	default:
		return ir.ErrorValue, "not a known builtin constant"
	}
	return ir.ErrorValue, "expected integer arguments"
}

// maxExponent bounds exponents and factorials of builtins.
const maxExponent = 1 << 16

func smallUint(v *big.Int, subject string) (uint64, string) {
	if v.Sign() < 0 {
		return 0, subject + " must be positive!"
	}
	if !v.IsUint64() || v.Uint64() > maxExponent {
		return 0, fmt.Sprintf("%s is too large! It may be max %d", subject, maxExponent)
	}
	return v.Uint64(), ""
}
