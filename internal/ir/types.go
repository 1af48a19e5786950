package ir

import "sus/internal/source"

// WrittenKind enumerates the shapes of a type expression as it appears in source.
type WrittenKind uint8

const (
	WrittenError WrittenKind = iota
	WrittenTemplate
	WrittenNamed
	WrittenArray
)

// WrittenType is a source-level type expression.
type WrittenType struct {
	Kind     WrittenKind
	Span     source.Span
	Template TemplateID // WrittenTemplate
	Named    *GlobalRef // WrittenNamed, always a GlobalType reference
	Elem     *WrittenType
	// Size is the expression instruction computing the array length.
	Size        FlatID
	BracketSpan source.Span
}

// Rank returns the number of array dimensions written.
func (w *WrittenType) Rank() uint32 {
	var r uint32
	for cur := w; cur != nil && cur.Kind == WrittenArray; cur = cur.Elem {
		r++
	}
	return r
}

// Base strips array dimensions.
func (w *WrittenType) Base() *WrittenType {
	cur := w
	for cur.Kind == WrittenArray && cur.Elem != nil {
		cur = cur.Elem
	}
	return cur
}

// InnerKind enumerates AbstractInner shapes.
type InnerKind uint8

const (
	// InnerError is compatible with everything so that one error does not cascade.
	InnerError InnerKind = iota
	InnerUnknown
	InnerTemplate
	InnerNamed
	InnerInterface
	InnerLocalInterface
)

// AbstractInner is the element type of a ranked abstract type.
type AbstractInner struct {
	Kind     InnerKind
	Var      TypeVar    // InnerUnknown
	Template TemplateID // InnerTemplate
	Named    TypeID     // InnerNamed
	// Args holds one entry per template parameter of Named. Value parameters
	// carry a zero AbstractRankedType.
	Args      []AbstractRankedType
	Module    ModuleID    // InnerInterface
	Interface InterfaceID // InnerInterface
	Local     FlatID      // InnerLocalInterface
}

// Rank is a Peano number: Base successors applied to Var, or to zero when
// Var is 0. A rank-n tensor has Rank{Base: n}.
type Rank struct {
	Base uint32
	Var  RankVar
}

// Known reports whether the rank contains no variable.
func (r Rank) Known() bool { return r.Var == 0 }

// Succ adds one dimension.
func (r Rank) Succ() Rank { return Rank{Base: r.Base + 1, Var: r.Var} }

// AbstractRankedType is the inference-stage type: an inner type raised to a rank.
type AbstractRankedType struct {
	Inner AbstractInner
	Rank  Rank
}

// ErrorType returns the universally compatible type.
func ErrorType() AbstractRankedType { return AbstractRankedType{Inner: AbstractInner{Kind: InnerError}} }

// NamedType returns the rank-0 abstract type of a struct global.
func NamedType(id TypeID, args ...AbstractRankedType) AbstractRankedType {
	return AbstractRankedType{Inner: AbstractInner{Kind: InnerNamed, Named: id, Args: args}}
}

// IsError reports whether the inner type is the error type.
func (t AbstractRankedType) IsError() bool { return t.Inner.Kind == InnerError }

// DomainKind enumerates DomainType shapes.
type DomainKind uint8

const (
	DomainUnknown DomainKind = iota
	DomainGenerative
	DomainPhysical
	// DomainError is compatible with every domain.
	DomainError
)

// DomainType tags a value with its clock domain.
type DomainType struct {
	Kind     DomainKind
	Physical DomainID  // DomainPhysical
	Var      DomainVar // DomainUnknown
}

var (
	Generative  = DomainType{Kind: DomainGenerative}
	ErrorDomain = DomainType{Kind: DomainError}
)

// PhysicalDomain returns the domain type of a resolved physical domain.
func PhysicalDomain(id DomainID) DomainType { return DomainType{Kind: DomainPhysical, Physical: id} }

func (d DomainType) IsGenerative() bool { return d.Kind == DomainGenerative }

// FullType is an abstract type tagged with a domain.
type FullType struct {
	Typ    AbstractRankedType
	Domain DomainType
}
