// Package instantiate elaborates modules for concrete template arguments.
//
// Elaboration runs the generative part of a module's instruction stream,
// builds the wire graph of the resulting netlist, infers integer bounds and
// the template arguments of submodules, and counts latencies. Every distinct
// argument tuple is elaborated once and cached on its module.
package instantiate

import (
	"math"
	"math/big"

	"sus/internal/arena"
	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/latency"
	"sus/internal/source"
	"sus/internal/typing"
)

// WireID identifies a wire of one instance.
type WireID uint32

// SubModuleID identifies a submodule of one instance.
type SubModuleID uint32

func (id WireID) IsValid() bool      { return id != 0 }
func (id SubModuleID) IsValid() bool { return id != 0 }

// LatencyLater is the latency of a wire before latency counting ran.
const LatencyLater int64 = math.MinInt64

// SourceKind enumerates what drives a wire.
type SourceKind uint8

const (
	// SourceReadOnly is an input port of the instance itself.
	SourceReadOnly SourceKind = iota + 1
	// SourceMux is any writable wire. Each write adds one MuxSource.
	SourceMux
	SourceUnary
	SourceBinary
	SourceSelect
	SourceArray
	SourceConstant
	// SourceOutPort is an output port of a submodule.
	SourceOutPort
)

func (k SourceKind) String() string {
	switch k {
	case SourceReadOnly:
		return "input"
	case SourceMux:
		return "mux"
	case SourceUnary:
		return "unary"
	case SourceBinary:
		return "binary"
	case SourceSelect:
		return "select"
	case SourceArray:
		return "array"
	case SourceConstant:
		return "constant"
	case SourceOutPort:
		return "outport"
	default:
		return "invalid"
	}
}

// Operand is an index or bound in a path: a wire, or a value known while
// elaborating.
type Operand struct {
	Wire  WireID
	Const *big.Int
}

// IsConst reports whether the operand was known while elaborating.
func (o Operand) IsConst() bool { return o.Const != nil }

// PathElem is one step into a wire.
type PathElem struct {
	Kind ir.PathKind
	Span source.Span
	// Name is the field of a PathField step.
	Name  string
	Index Operand // PathIndex
	From  Operand // PathSlice, PathPartSelect base
	To    Operand // PathSlice
	Width Operand // PathPartSelect
	Dir   ir.PartDirection
}

// CondTerm is one conjunct of the condition a write happens under.
type CondTerm struct {
	Wire   WireID
	Negate bool
}

// MuxSource is one write into a mux wire.
type MuxSource struct {
	Path    []PathElem
	From    WireID
	NumRegs int
	// Condition holds the enclosing 'when' conditions, all of which must hold.
	Condition []CondTerm
	// Write is the instruction of the write.
	Write    ir.FlatID
	ToSpan   source.Span
	RegsSpan source.Span
}

// Source is what drives a wire.
type Source struct {
	Kind SourceKind

	IsState bool     // SourceMux
	Initial ir.Value // SourceMux, state only
	Sources []MuxSource

	Unary  ir.UnaryOperator  // SourceUnary
	Binary ir.BinaryOperator // SourceBinary
	OpRank uint32            // SourceUnary, SourceBinary
	Left   WireID
	Right  WireID

	Root WireID // SourceSelect
	Path []PathElem

	Elements []WireID // SourceArray

	Value ir.Value // SourceConstant

	SubModule SubModuleID // SourceOutPort
	Port      ir.PortID
}

// Wires calls fn with every wire the source reads and the number of
// registers between that wire and the driven one.
func (s *Source) Wires(fn func(w WireID, regs int)) {
	path := func(p []PathElem, regs int) {
		for _, e := range p {
			for _, o := range []Operand{e.Index, e.From, e.To, e.Width} {
				if o.Wire.IsValid() {
					fn(o.Wire, regs)
				}
			}
		}
	}
	switch s.Kind {
	case SourceMux:
		for i := range s.Sources {
			src := &s.Sources[i]
			fn(src.From, src.NumRegs)
			path(src.Path, src.NumRegs)
			for _, c := range src.Condition {
				fn(c.Wire, src.NumRegs)
			}
		}
	case SourceUnary:
		fn(s.Right, 0)
	case SourceBinary:
		fn(s.Left, 0)
		fn(s.Right, 0)
	case SourceSelect:
		fn(s.Root, 0)
		path(s.Path, 0)
	case SourceArray:
		for _, e := range s.Elements {
			fn(e, 0)
		}
	}
}

// Wire is a signal of an instance.
type Wire struct {
	Name   string
	Typ    *ir.ConcreteType
	Domain ir.DomainID
	Source Source
	// Original is the instruction the wire was created for.
	Original ir.FlatID
	// Port is set on the wires of the instance's own ports.
	Port    ir.PortID
	IsInput bool

	// Specified is the written latency, valid when HasSpecified.
	Specified    int64
	HasSpecified bool

	Latency     int64
	NeededUntil int64

	// Bounds is the integer range carried by the wire, nil until known or
	// when the wire holds no int.
	Bounds *typing.IntRange
	// InferBounds is set when the int bounds were not written and come from
	// the writers of the wire.
	InferBounds bool
	// partial is set while some writer of the wire has no bounds yet.
	partial   bool
	widenings int
}

// SubModule is an instantiation site inside an instance.
type SubModule struct {
	Name     string
	Module   ir.ModuleID
	Original ir.FlatID
	// Args holds one template argument per parameter. Unknown arguments are
	// unifier variables until they are inferred.
	Args []ir.ConcreteArg
	// PortMap holds, per port (PortID-1), the wire connected to it.
	PortMap []WireID
	// Domains maps each domain of the submodule to one of the instance.
	Domains  []ir.DomainID
	Instance *Instance
	failed   bool
}

// Port is a port of an instance.
type Port struct {
	Name    string
	Wire    WireID
	IsInput bool
	Domain  ir.DomainID
	Latency int64
	Typ     *ir.ConcreteType
}

// Instance is one elaborated module.
type Instance struct {
	Name   string
	Module ir.ModuleID
	Args   []ir.ConcreteArg
	// Ports holds one entry per port of the module, nil for ports that were
	// never declared because their declaration sits in an untaken branch.
	Ports      []*Port
	Wires      *arena.Flat[WireID, Wire]
	SubModules *arena.Flat[SubModuleID, SubModule]
	Errors     *diag.Bag
	// FailedLatency keeps the latency problem that could not be solved so it
	// can be written out as a snapshot.
	FailedLatency *latency.Problem
	// LatencyProblem is the problem the final latencies were solved from.
	LatencyProblem *latency.Problem
	// subFailed is set when a submodule instance has errors.
	subFailed bool
}

func newInstance(name string, m ir.ModuleID, args []ir.ConcreteArg, ports int) *Instance {
	return &Instance{
		Name:       name,
		Module:     m,
		Args:       args,
		Ports:      make([]*Port, ports),
		Wires:      arena.NewFlat[WireID, Wire](32),
		SubModules: arena.NewFlat[SubModuleID, SubModule](4),
		Errors:     diag.NewBag(0),
	}
}

// NodeNames names the latency graph nodes, which are the wires in order.
func (inst *Instance) NodeNames() []string {
	names := make([]string, 0, inst.Wires.Len())
	for _, w := range inst.Wires.All() {
		names = append(names, w.Name)
	}
	return names
}

// Wire returns a wire of the instance.
func (inst *Instance) Wire(id WireID) *Wire { return inst.Wires.MustGet(id) }

// WireNamed returns the first wire with the given name.
func (inst *Instance) WireNamed(name string) (WireID, *Wire) {
	for id, w := range inst.Wires.All() {
		if w.Name == name {
			return id, w
		}
	}
	return 0, nil
}

// Port returns the port with the given id or nil.
func (inst *Instance) Port(id ir.PortID) *Port {
	if !id.IsValid() || int(id) > len(inst.Ports) {
		return nil
	}
	return inst.Ports[id-1]
}

// HasErrors reports whether elaborating the instance or one of its
// submodules reported errors.
func (inst *Instance) HasErrors() bool { return inst.subFailed || inst.Errors.HasErrors() }
