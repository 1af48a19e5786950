// Package ir holds the middle-end data model: globals, their flattened
// instruction streams, wire references and the three type representations
// (written, abstract, concrete).
//
// Every id is a uint32 index into an arena. Zero is the invalid sentinel.
package ir

import "fmt"

// FlatID identifies an instruction inside one global.
type FlatID uint32

// ModuleID identifies a module global.
type ModuleID uint32

// TypeID identifies a struct type global.
type TypeID uint32

// ConstantID identifies a constant global.
type ConstantID uint32

// TemplateID identifies a template parameter of one global.
type TemplateID uint32

// PortID identifies a port of one module.
type PortID uint32

// InterfaceID identifies an interface of one module.
type InterfaceID uint32

// DomainID identifies a clock domain of one module.
type DomainID uint32

// Unification variables. They index the stores owned by the typing package.
type (
	TypeVar   uint32
	RankVar   uint32
	DomainVar uint32
	ValueVar  uint32
)

func (id FlatID) IsValid() bool      { return id != 0 }
func (id ModuleID) IsValid() bool    { return id != 0 }
func (id TypeID) IsValid() bool      { return id != 0 }
func (id ConstantID) IsValid() bool  { return id != 0 }
func (id TemplateID) IsValid() bool  { return id != 0 }
func (id PortID) IsValid() bool      { return id != 0 }
func (id InterfaceID) IsValid() bool { return id != 0 }
func (id DomainID) IsValid() bool    { return id != 0 }

// GlobalKind tags which arena a GlobalUUID points into.
type GlobalKind uint8

const (
	GlobalInvalid GlobalKind = iota
	GlobalModule
	GlobalType
	GlobalConstant
)

func (k GlobalKind) String() string {
	switch k {
	case GlobalModule:
		return "module"
	case GlobalType:
		return "type"
	case GlobalConstant:
		return "constant"
	default:
		return "invalid"
	}
}

// GlobalUUID names any global across the three arenas.
type GlobalUUID struct {
	Kind GlobalKind
	ID   uint32
}

func ModuleUUID(id ModuleID) GlobalUUID     { return GlobalUUID{Kind: GlobalModule, ID: uint32(id)} }
func TypeUUID(id TypeID) GlobalUUID         { return GlobalUUID{Kind: GlobalType, ID: uint32(id)} }
func ConstantUUID(id ConstantID) GlobalUUID { return GlobalUUID{Kind: GlobalConstant, ID: uint32(id)} }

func (g GlobalUUID) IsValid() bool { return g.Kind != GlobalInvalid && g.ID != 0 }

func (g GlobalUUID) Module() ModuleID {
	if g.Kind != GlobalModule {
		return 0
	}
	return ModuleID(g.ID)
}

func (g GlobalUUID) Type() TypeID {
	if g.Kind != GlobalType {
		return 0
	}
	return TypeID(g.ID)
}

func (g GlobalUUID) Constant() ConstantID {
	if g.Kind != GlobalConstant {
		return 0
	}
	return ConstantID(g.ID)
}

func (g GlobalUUID) String() string {
	return fmt.Sprintf("%s#%d", g.Kind, g.ID)
}
