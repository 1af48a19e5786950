package ir

import (
	"sus/internal/arena"
	"sus/internal/source"
)

// InstrKind enumerates instruction variants.
type InstrKind uint8

const (
	InstrInvalid InstrKind = iota
	InstrDeclaration
	InstrSubModule
	InstrInterface
	InstrExpression
	InstrIf
	InstrFor
)

func (k InstrKind) String() string {
	switch k {
	case InstrDeclaration:
		return "declaration"
	case InstrSubModule:
		return "submodule"
	case InstrInterface:
		return "interface"
	case InstrExpression:
		return "expression"
	case InstrIf:
		return "if"
	case InstrFor:
		return "for"
	default:
		return "invalid"
	}
}

// InstrData is the payload of an instruction.
type InstrData interface {
	instrData()
}

// Instruction is one element of a flattened instruction stream.
type Instruction struct {
	Kind InstrKind
	Span source.Span
	Data InstrData
}

func (i *Instruction) Decl() *Declaration {
	d, _ := i.Data.(*Declaration)
	return d
}

func (i *Instruction) SubModule() *SubModule {
	s, _ := i.Data.(*SubModule)
	return s
}

func (i *Instruction) Interface() *InterfaceDecl {
	s, _ := i.Data.(*InterfaceDecl)
	return s
}

func (i *Instruction) Expr() *Expression {
	e, _ := i.Data.(*Expression)
	return e
}

func (i *Instruction) If() *IfStatement {
	s, _ := i.Data.(*IfStatement)
	return s
}

func (i *Instruction) For() *ForStatement {
	s, _ := i.Data.(*ForStatement)
	return s
}

// DeclKind distinguishes what a declaration declares.
type DeclKind uint8

const (
	DeclRegular DeclKind = iota
	DeclPort
	DeclTemplateParam
	DeclStructField
	DeclConstantOutput
	DeclLoopVar
)

// IdentifierType is the storage class of a declaration.
type IdentifierType uint8

const (
	IdentLocal IdentifierType = iota
	IdentState
	IdentGenerative
)

func (t IdentifierType) String() string {
	switch t {
	case IdentState:
		return "state"
	case IdentGenerative:
		return "gen"
	default:
		return "local"
	}
}

// Declaration is a named wire, port, or generative variable.
type Declaration struct {
	TypeExpr WrittenType
	Typ      FullType
	Kind     DeclKind
	Port     PortID     // DeclPort
	IsInput  bool       // DeclPort
	Param    TemplateID // DeclTemplateParam
	Ident    IdentifierType
	Name     string
	NameSpan source.Span
	DeclSpan source.Span
	// LatencySpec is the latency specifier expression, 0 if none.
	LatencySpec FlatID
	Doc         string
	ReadOnly    bool
	// NotWrittenTo is set for declarations that never appear as a write target
	// by construction: input ports and template parameters.
	NotWrittenTo bool
	Domain       DomainID
}

func (*Declaration) instrData() {}

// IsGenerative reports whether the declaration holds a compile-time value.
func (d *Declaration) IsGenerative() bool { return d.Ident == IdentGenerative }

// SubModule is an instantiation site of another module.
type SubModule struct {
	Module   GlobalRef
	Name     string
	NameSpan source.Span
	Doc      string
	// Domains maps each domain of the instantiated module, indexed by its
	// DomainID-1, to a domain of this module. Filled by the typechecker.
	Domains []DomainType
}

func (*SubModule) instrData() {}

// InterfaceDecl is an interface statement inside a module body.
type InterfaceDecl struct {
	Name      string
	NameSpan  source.Span
	Kind      InterfaceKind
	Interface InterfaceID
	Domain    DomainID
	Inputs    []FlatID
	Outputs   []FlatID
}

func (*InterfaceDecl) instrData() {}

// SourceKind enumerates expression sources.
type SourceKind uint8

const (
	SourceLiteral SourceKind = iota + 1
	SourceWireRef
	SourceUnary
	SourceBinary
	SourceFuncCall
	SourceArray
)

// FuncCall is a call of a submodule interface.
type FuncCall struct {
	SubModule FlatID
	Module    ModuleID
	Interface InterfaceID
	// Callee is the span of the called name, used for arity notes.
	Callee   source.Span
	Args     []FlatID
	ArgsSpan source.Span
}

// ExprSource is what an expression computes.
type ExprSource struct {
	Kind     SourceKind
	Literal  Value          // SourceLiteral
	Ref      *WireReference // SourceWireRef
	Unary    UnaryOperator  // SourceUnary
	Binary   BinaryOperator // SourceBinary
	OpRank   Rank           // SourceUnary, SourceBinary
	Left     FlatID
	Right    FlatID
	Call     *FuncCall // SourceFuncCall
	Elements []FlatID  // SourceArray
}

// WriteModKind enumerates write modifiers.
type WriteModKind uint8

const (
	WriteConnection WriteModKind = iota
	WriteInitial
)

// WriteModifiers are the modifiers on a write target.
type WriteModifiers struct {
	Kind     WriteModKind
	NumRegs  int
	RegsSpan source.Span
	// InitialSpan covers the 'initial' keyword.
	InitialSpan source.Span
}

// WriteTo is one target of a multi-write.
type WriteTo struct {
	To        WireReference
	ToSpan    source.Span
	Modifiers WriteModifiers
}

// OutputKind tells sub-expressions from writes.
type OutputKind uint8

const (
	OutputSubExpression OutputKind = iota + 1
	OutputMultiWrite
)

// Expression computes a value that is either consumed by another
// instruction or written to targets.
type Expression struct {
	Source ExprSource
	Output OutputKind
	// Typ is the type of the computed value. For multi-writes of a call it
	// stays unset since each target takes the type of its output port.
	Typ    FullType
	Writes []WriteTo
}

func (*Expression) instrData() {}

// IfStatement records the bodies of an if or when statement.
type IfStatement struct {
	Condition FlatID
	IsWhen    bool
	Keyword   source.Span
	Then      arena.Range[FlatID]
	Else      arena.Range[FlatID]
}

func (*IfStatement) instrData() {}

// ForStatement records a generative loop.
type ForStatement struct {
	LoopVar FlatID
	Start   FlatID
	End     FlatID
	Body    arena.Range[FlatID]
}

func (*ForStatement) instrData() {}

// Operands returns the instruction ids an instruction reads.
func (i *Instruction) Operands() []FlatID {
	var out []FlatID
	add := func(ids ...FlatID) {
		for _, id := range ids {
			if id.IsValid() {
				out = append(out, id)
			}
		}
	}
	addRef := func(r *WireReference) {
		if r == nil {
			return
		}
		for _, p := range r.Path {
			add(p.Idx, p.From, p.To, p.Width)
		}
	}
	switch d := i.Data.(type) {
	case *Declaration:
		add(d.LatencySpec)
		addWritten(&d.TypeExpr, add)
	case *SubModule:
		addGlobalRef(&d.Module, add)
	case *Expression:
		switch d.Source.Kind {
		case SourceWireRef:
			addRef(d.Source.Ref)
			if d.Source.Ref.Root.Global != nil {
				addGlobalRef(d.Source.Ref.Root.Global, add)
			}
		case SourceUnary:
			add(d.Source.Right)
		case SourceBinary:
			add(d.Source.Left, d.Source.Right)
		case SourceFuncCall:
			add(d.Source.Call.Args...)
		case SourceArray:
			add(d.Source.Elements...)
		}
		for wi := range d.Writes {
			addRef(&d.Writes[wi].To)
		}
	case *IfStatement:
		add(d.Condition)
	case *ForStatement:
		add(d.LoopVar, d.Start, d.End)
	}
	return out
}

func addWritten(w *WrittenType, add func(...FlatID)) {
	switch w.Kind {
	case WrittenArray:
		add(w.Size)
		addWritten(w.Elem, add)
	case WrittenNamed:
		addGlobalRef(w.Named, add)
	}
}

func addGlobalRef(g *GlobalRef, add func(...FlatID)) {
	for _, a := range g.Args {
		if a == nil {
			continue
		}
		if a.Kind == ArgValue {
			add(a.Value)
		} else {
			addWritten(&a.Type, add)
		}
	}
}
