package ir

import (
	"math/big"
	"strings"
)

// ConcreteVar is a type variable of the concrete-stage value unifier.
type ConcreteVar uint32

// ConcreteKind enumerates ConcreteType shapes.
type ConcreteKind uint8

const (
	ConcreteError ConcreteKind = iota
	ConcreteNamed
	ConcreteArray
	ConcreteUnknown
)

// ValueCell is a template value that is either known or a unifier variable.
type ValueCell struct {
	Var   ValueVar
	Value Value
}

// KnownCell wraps a value.
func KnownCell(v Value) ValueCell { return ValueCell{Value: v} }

// Known reports whether the cell holds a set value and no variable.
func (c ValueCell) Known() bool { return c.Var == 0 && c.Value.IsSet() }

// ConcreteArg is one template argument of a concrete named type. Exactly one
// of Type and Value is meaningful, chosen by the parameter kind.
type ConcreteArg struct {
	Type  *ConcreteType
	Value ValueCell
}

// ConcreteType is the post-elaboration type of a wire.
type ConcreteType struct {
	Kind  ConcreteKind
	Named TypeID
	Args  []ConcreteArg
	Elem  *ConcreteType
	Size  ValueCell
	Var   ConcreteVar
}

// Builtins records the ids of the prelude globals the middle-end relies on.
type Builtins struct {
	Bool   TypeID
	Int    TypeID
	True   ConstantID
	False  ConstantID
	Assert ConstantID
	Clog2  ConstantID
}

// BoolType returns the concrete bool type.
func (b *Builtins) BoolType() *ConcreteType {
	return &ConcreteType{Kind: ConcreteNamed, Named: b.Bool}
}

// IntType returns int #(MIN: min, MAX: max). Nil bounds stay unknown.
func (b *Builtins) IntType(min, max *big.Int) *ConcreteType {
	args := []ConcreteArg{{}, {}}
	if min != nil {
		args[0].Value = KnownCell(BigValue(min))
	}
	if max != nil {
		args[1].Value = KnownCell(BigValue(max))
	}
	return &ConcreteType{Kind: ConcreteNamed, Named: b.Int, Args: args}
}

// IsInt reports whether t is an int of any bounds.
func (b *Builtins) IsInt(t *ConcreteType) bool {
	return t != nil && t.Kind == ConcreteNamed && t.Named == b.Int
}

// IsBool reports whether t is bool.
func (b *Builtins) IsBool(t *ConcreteType) bool {
	return t != nil && t.Kind == ConcreteNamed && t.Named == b.Bool
}

// IntBounds returns the bounds of an int type when both are known.
func (b *Builtins) IntBounds(t *ConcreteType) (min, max *big.Int, ok bool) {
	if !b.IsInt(t) || len(t.Args) != 2 {
		return nil, nil, false
	}
	lo, hi := t.Args[0].Value, t.Args[1].Value
	if !lo.Known() || !hi.Known() || lo.Value.Kind != ValueInt || hi.Value.Kind != ValueInt {
		return nil, nil, false
	}
	return lo.Value.Int, hi.Value.Int, true
}

// ArrayOf builds an array type of known length.
func ArrayOf(elem *ConcreteType, n int64) *ConcreteType {
	return &ConcreteType{Kind: ConcreteArray, Elem: elem, Size: KnownCell(IntValue(n))}
}

// ArrayLen returns the known length of an array type.
func (t *ConcreteType) ArrayLen() (int64, bool) {
	if t == nil || t.Kind != ConcreteArray || !t.Size.Known() {
		return 0, false
	}
	return t.Size.Value.Int64()
}

// IsFullyKnown reports whether no variable or unknown bound remains.
func (t *ConcreteType) IsFullyKnown() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case ConcreteNamed:
		for _, a := range t.Args {
			if a.Type != nil {
				if !a.Type.IsFullyKnown() {
					return false
				}
			} else if !a.Value.Known() {
				return false
			}
		}
		return true
	case ConcreteArray:
		return t.Size.Known() && t.Elem.IsFullyKnown()
	default:
		return false
	}
}

// Clone deep-copies the type.
func (t *ConcreteType) Clone() *ConcreteType {
	if t == nil {
		return nil
	}
	out := *t
	if t.Args != nil {
		out.Args = make([]ConcreteArg, len(t.Args))
		for i, a := range t.Args {
			out.Args[i] = ConcreteArg{Type: a.Type.Clone(), Value: ValueCell{Var: a.Value.Var, Value: a.Value.Value.Clone()}}
		}
	}
	out.Elem = t.Elem.Clone()
	out.Size = ValueCell{Var: t.Size.Var, Value: t.Size.Value.Clone()}
	return &out
}

// Equal compares two fully known types.
func (t *ConcreteType) Equal(o *ConcreteType) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case ConcreteNamed:
		if t.Named != o.Named || len(t.Args) != len(o.Args) {
			return false
		}
		for i := range t.Args {
			a, b := t.Args[i], o.Args[i]
			if a.Type != nil || b.Type != nil {
				if !a.Type.Equal(b.Type) {
					return false
				}
			} else if a.Value.Var != b.Value.Var || !a.Value.Value.Equal(b.Value.Value) {
				return false
			}
		}
		return true
	case ConcreteArray:
		return t.Size.Var == o.Size.Var && t.Size.Value.Equal(o.Size.Value) && t.Elem.Equal(o.Elem)
	case ConcreteUnknown:
		return t.Var == o.Var
	default:
		return true
	}
}

// Display renders the type with global names supplied by n.
func (t *ConcreteType) Display(n Namer) string {
	var sb strings.Builder
	t.display(&sb, n)
	return sb.String()
}

func (t *ConcreteType) display(sb *strings.Builder, n Namer) {
	if t == nil {
		sb.WriteString("{nil}")
		return
	}
	switch t.Kind {
	case ConcreteNamed:
		sb.WriteString(n.GlobalName(TypeUUID(t.Named)))
		if len(t.Args) == 0 {
			return
		}
		sb.WriteString(" #(")
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			if name := n.ParamName(TypeUUID(t.Named), TemplateID(i+1)); name != "" {
				sb.WriteString(name)
				sb.WriteString(": ")
			}
			switch {
			case a.Type != nil:
				a.Type.display(sb, n)
			case a.Value.Var != 0:
				sb.WriteString("?")
			default:
				sb.WriteString(a.Value.Value.String())
			}
		}
		sb.WriteByte(')')
	case ConcreteArray:
		t.Elem.display(sb, n)
		sb.WriteByte('[')
		if t.Size.Var != 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteString(t.Size.Value.String())
		}
		sb.WriteByte(']')
	case ConcreteUnknown:
		sb.WriteString("?")
	default:
		sb.WriteString("{error}")
	}
}

// Mangle renders the type as part of an identifier.
func (t *ConcreteType) Mangle(n Namer) string {
	var sb strings.Builder
	t.mangle(&sb, n)
	return sb.String()
}

func (t *ConcreteType) mangle(sb *strings.Builder, n Namer) {
	switch t.Kind {
	case ConcreteNamed:
		sb.WriteString(n.GlobalName(TypeUUID(t.Named)))
		for _, a := range t.Args {
			sb.WriteByte('_')
			if a.Type != nil {
				a.Type.mangle(sb, n)
			} else {
				sb.WriteString(a.Value.Value.MangleString())
			}
		}
	case ConcreteArray:
		t.Elem.mangle(sb, n)
		sb.WriteString("_")
		sb.WriteString(t.Size.Value.MangleString())
		sb.WriteString("x")
	default:
		sb.WriteString("err")
	}
}
