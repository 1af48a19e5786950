package ir

import (
	"github.com/hashicorp/go-set/v3"

	"sus/internal/arena"
	"sus/internal/cst"
	"sus/internal/diag"
	"sus/internal/source"
)

// Namer resolves ids to display names.
type Namer interface {
	GlobalName(g GlobalUUID) string
	ParamName(g GlobalUUID, id TemplateID) string
	DomainName(m ModuleID, id DomainID) string
	InterfaceName(m ModuleID, id InterfaceID) string
}

// ArgKind tells a type argument from a value argument.
type ArgKind uint8

const (
	ArgType ArgKind = iota + 1
	ArgValue
)

// TemplateArg is one explicitly given template argument.
type TemplateArg struct {
	Kind     ArgKind
	NameSpan source.Span // the parameter name for named args, else the value span
	Span     source.Span
	Type     WrittenType // ArgType
	Value    FlatID      // ArgValue
}

// GlobalRef is a reference to a global with its template arguments. Args has
// one slot per parameter of the target, nil where the argument was not given.
type GlobalRef struct {
	ID       GlobalUUID
	Span     source.Span
	NameSpan source.Span
	Args     []*TemplateArg
	ArgsSpan source.Span
	// TypeArgs is filled by the typechecker: the abstract type bound to each
	// type parameter, a fresh variable when the argument was omitted.
	TypeArgs []AbstractRankedType
}

// ParamKind tells type parameters from value parameters.
type ParamKind uint8

const (
	ParamType ParamKind = iota + 1
	ParamValue
)

// Parameter is a template parameter of a global.
type Parameter struct {
	Kind     ParamKind
	Name     string
	NameSpan source.Span
	Span     source.Span
	// Decl is the generative declaration a value parameter flattens to.
	Decl FlatID
}

// ExternKind marks globals implemented outside the language.
type ExternKind uint8

const (
	NotExtern ExternKind = iota
	Extern
	Builtin
)

// Checkpoints mark error-store lengths after each per-global phase.
type Checkpoints struct {
	Initialize diag.Checkpoint
	Flatten    diag.Checkpoint
	Typecheck  diag.Checkpoint
	Lint       diag.Checkpoint
}

// Phase records how far a global has progressed.
type Phase uint8

const (
	PhaseNone Phase = iota
	PhaseInitialized
	PhaseFlattened
	PhaseTypechecked
	PhaseLinted
)

// LinkInfo is the part shared by every global kind.
type LinkInfo struct {
	File     source.FileID
	Node     cst.NodeID
	Name     string
	NameSpan source.Span
	Span     source.Span
	Doc      string
	Extern   ExternKind

	Parameters   *arena.Flat[TemplateID, Parameter]
	Instructions *arena.Flat[FlatID, Instruction]
	// Resolved holds every global named by this one, for invalidation.
	Resolved *set.Set[GlobalUUID]
	// Missing holds names that failed to resolve uniquely. A global added
	// under one of these names makes this global stale.
	Missing *set.Set[string]

	Errors *diag.Bag
	Checkpoints
	Phase Phase
}

// NewLinkInfo returns LinkInfo with empty arenas.
func NewLinkInfo(file source.FileID, node cst.NodeID, name string) LinkInfo {
	return LinkInfo{
		File:         file,
		Node:         node,
		Name:         name,
		Parameters:   arena.NewFlat[TemplateID, Parameter](0),
		Instructions: arena.NewFlat[FlatID, Instruction](16),
		Errors:       diag.NewBag(0),
		Resolved:     set.New[GlobalUUID](4),
		Missing:      set.New[string](0),
	}
}

// Instr returns the instruction with the given id.
func (li *LinkInfo) Instr(id FlatID) *Instruction { return li.Instructions.MustGet(id) }

// ParamByName finds a template parameter by name.
func (li *LinkInfo) ParamByName(name string) (TemplateID, *Parameter) {
	for id, p := range li.Parameters.All() {
		if p.Name == name {
			return id, p
		}
	}
	return 0, nil
}

// Reporter returns a reporter appending to the global's error store.
func (li *LinkInfo) Reporter() diag.Reporter { return diag.BagReporter{Bag: li.Errors} }

// ResetTo truncates the error store and instructions back to a phase boundary.
func (li *LinkInfo) ResetTo(p Phase) {
	switch p {
	case PhaseInitialized:
		li.Errors.Truncate(li.Checkpoints.Initialize)
		li.Instructions.Truncate(1)
		li.Resolved = set.New[GlobalUUID](4)
		li.Missing = set.New[string](0)
	case PhaseFlattened:
		li.Errors.Truncate(li.Checkpoints.Flatten)
	case PhaseTypechecked:
		li.Errors.Truncate(li.Checkpoints.Typecheck)
	}
	if li.Phase > p {
		li.Phase = p
	}
}

// InterfaceKind enumerates how an interface is used.
type InterfaceKind uint8

const (
	InterfaceRegular InterfaceKind = iota
	InterfaceAction
	InterfaceTrigger
)

func (k InterfaceKind) String() string {
	switch k {
	case InterfaceAction:
		return "action"
	case InterfaceTrigger:
		return "trigger"
	default:
		return "interface"
	}
}

// Port is a module boundary wire.
type Port struct {
	Name      string
	NameSpan  source.Span
	DeclSpan  source.Span
	IsInput   bool
	Domain    DomainID
	Decl      FlatID
	Interface InterfaceID
	// Latency is the latency specifier expression, 0 if none.
	Latency FlatID
}

// Interface groups ports that are called together.
type Interface struct {
	Name     string
	NameSpan source.Span
	Kind     InterfaceKind
	Domain   DomainID
	Inputs   []PortID
	Outputs  []PortID
	// Decl is the interface instruction; 0 for the module's own interface.
	Decl FlatID
}

// Domain is a clock domain declared in a module.
type Domain struct {
	Name     string
	NameSpan source.Span
	Implicit bool
}

// LatencyForm is a port latency specifier that is linear in the template
// parameters: Const plus the sum of Factors[i] times parameter i+1.
type LatencyForm struct {
	Port    PortID
	Const   int64
	Factors []int64
}

// IsConst reports whether no parameter appears in the form.
func (f *LatencyForm) IsConst() bool {
	for _, v := range f.Factors {
		if v != 0 {
			return false
		}
	}
	return true
}

// Substitute folds known parameter values into Const. known[i] belongs to
// parameter i+1; nil entries stay symbolic.
func (f LatencyForm) Substitute(known []*int64) LatencyForm {
	out := LatencyForm{Port: f.Port, Const: f.Const, Factors: make([]int64, len(f.Factors))}
	for i, v := range f.Factors {
		if i < len(known) && known[i] != nil {
			out.Const += v * *known[i]
		} else {
			out.Factors[i] = v
		}
	}
	return out
}

// InstanceCache is implemented by the instantiation cache attached to a module.
type InstanceCache interface {
	Clear()
	Len() int
}

// Module is a hardware module global.
type Module struct {
	LinkInfo
	Ports      *arena.Flat[PortID, Port]
	Interfaces *arena.Flat[InterfaceID, Interface]
	Domains    *arena.Flat[DomainID, Domain]
	// Main is the interface carrying the ports declared outside interface statements.
	Main InterfaceID
	// LatencyForms holds, per port with a linear latency specifier, the
	// form used to infer template parameters from latencies.
	LatencyForms []LatencyForm
	Instances    InstanceCache
}

// NewModule allocates a module with empty port tables.
func NewModule(li LinkInfo) *Module {
	return &Module{
		LinkInfo:   li,
		Ports:      arena.NewFlat[PortID, Port](4),
		Interfaces: arena.NewFlat[InterfaceID, Interface](2),
		Domains:    arena.NewFlat[DomainID, Domain](1),
	}
}

// PortByName finds a port.
func (m *Module) PortByName(name string) (PortID, *Port) {
	for id, p := range m.Ports.All() {
		if p.Name == name {
			return id, p
		}
	}
	return 0, nil
}

// InterfaceByName finds an interface.
func (m *Module) InterfaceByName(name string) (InterfaceID, *Interface) {
	for id, i := range m.Interfaces.All() {
		if i.Name == name {
			return id, i
		}
	}
	return 0, nil
}

// DomainByName finds a domain.
func (m *Module) DomainByName(name string) DomainID {
	for id, d := range m.Domains.All() {
		if d.Name == name {
			return id
		}
	}
	return 0
}

// StructType is a struct type global.
type StructType struct {
	LinkInfo
	// Fields are the declarations in the struct body.
	Fields []FlatID
}

// Constant is a constant global.
type Constant struct {
	LinkInfo
	// Output is the declaration holding the constant's value, named like the constant.
	Output FlatID
	Type   WrittenType
}
