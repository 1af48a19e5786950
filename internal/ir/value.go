package ir

import (
	"math/big"
	"strings"
)

// ValueKind enumerates compile-time value shapes.
type ValueKind uint8

const (
	ValueUnset ValueKind = iota
	ValueBool
	ValueInt
	ValueArray
	// ValueError marks a value whose computation already reported an error.
	ValueError
)

// Value is a generative (compile-time) value. Integers are unbounded.
type Value struct {
	Kind ValueKind
	Bool bool
	Int  *big.Int
	Arr  []Value
}

func BoolValue(b bool) Value      { return Value{Kind: ValueBool, Bool: b} }
func IntValue(v int64) Value      { return Value{Kind: ValueInt, Int: big.NewInt(v)} }
func BigValue(v *big.Int) Value   { return Value{Kind: ValueInt, Int: new(big.Int).Set(v)} }
func ArrayValue(vs []Value) Value { return Value{Kind: ValueArray, Arr: vs} }

var ErrorValue = Value{Kind: ValueError}

func (v Value) IsSet() bool { return v.Kind != ValueUnset }

// Int64 returns the integer value when it fits.
func (v Value) Int64() (int64, bool) {
	if v.Kind != ValueInt || !v.Int.IsInt64() {
		return 0, false
	}
	return v.Int.Int64(), true
}

// Clone deep-copies arrays and integers.
func (v Value) Clone() Value {
	switch v.Kind {
	case ValueInt:
		return BigValue(v.Int)
	case ValueArray:
		arr := make([]Value, len(v.Arr))
		for i, e := range v.Arr {
			arr[i] = e.Clone()
		}
		return ArrayValue(arr)
	default:
		return v
	}
}

// Equal compares two values structurally. Unset equals only unset.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueBool:
		return v.Bool == o.Bool
	case ValueInt:
		return v.Int.Cmp(o.Int) == 0
	case ValueArray:
		if len(v.Arr) != len(o.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(o.Arr[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// ContainsUnset reports whether any leaf is unset.
func (v Value) ContainsUnset() bool {
	switch v.Kind {
	case ValueUnset:
		return true
	case ValueArray:
		for _, e := range v.Arr {
			if e.ContainsUnset() {
				return true
			}
		}
	}
	return false
}

func (v Value) String() string {
	switch v.Kind {
	case ValueUnset:
		return "{unset}"
	case ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueInt:
		return v.Int.String()
	case ValueArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range v.Arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.String())
		}
		sb.WriteByte(']')
		return sb.String()
	default:
		return "{error}"
	}
}

// MangleString renders the value for use inside an identifier.
func (v Value) MangleString() string {
	switch v.Kind {
	case ValueInt:
		if v.Int.Sign() < 0 {
			return "n" + new(big.Int).Neg(v.Int).String()
		}
		return v.Int.String()
	case ValueArray:
		var sb strings.Builder
		sb.WriteString("a")
		for _, e := range v.Arr {
			sb.WriteByte('_')
			sb.WriteString(e.MangleString())
		}
		return sb.String()
	default:
		return v.String()
	}
}
