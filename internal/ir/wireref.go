package ir

import "sus/internal/source"

// RootKind enumerates what a wire reference starts at.
type RootKind uint8

const (
	RootError RootKind = iota
	RootLocalDecl
	RootLocalSubmodule
	RootLocalInterface
	RootNamedConstant
	RootNamedModule
)

// WireRefRoot is the named storage a reference starts from.
type WireRefRoot struct {
	Kind   RootKind
	Local  FlatID     // RootLocalDecl, RootLocalSubmodule, RootLocalInterface
	Global *GlobalRef // RootNamedConstant, RootNamedModule
	Span   source.Span
}

// PathKind enumerates wire reference path elements.
type PathKind uint8

const (
	PathField PathKind = iota + 1
	PathIndex
	PathSlice
	PathPartSelect
)

// PartDirection is the direction of a part-select.
type PartDirection uint8

const (
	PartUp   PartDirection = iota + 1 // [base +: width]
	PartDown                          // [base -: width]
)

// FieldTarget is what a field access on a submodule resolved to.
type FieldTarget struct {
	Port      PortID
	Interface InterfaceID
	Module    ModuleID
}

// PathElem is one step of a wire reference.
type PathElem struct {
	Kind     PathKind
	Name     string
	NameSpan source.Span
	RefersTo FieldTarget // PathField

	Idx   FlatID // PathIndex
	From  FlatID // PathSlice (0 = start), PathPartSelect base
	To    FlatID // PathSlice (0 = end)
	Width FlatID // PathPartSelect
	Dir   PartDirection

	BracketSpan source.Span
}

// WireReference is a path into named storage.
type WireReference struct {
	Root    WireRefRoot
	RootTyp FullType
	Path    []PathElem
	// OutputTyp is the type after applying every path element.
	OutputTyp FullType
	Span      source.Span
}

// IsPort reports whether the reference names a submodule port.
func (r *WireReference) IsPort() (PortID, bool) {
	if r.Root.Kind != RootLocalSubmodule || len(r.Path) == 0 || r.Path[0].Kind != PathField {
		return 0, false
	}
	p := r.Path[0].RefersTo.Port
	return p, p.IsValid()
}
