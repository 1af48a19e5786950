// Package flatten turns the syntax tree of each global into a linear
// instruction stream.
//
// It runs in two passes. Initialize fills the header of every global: its
// template parameters and, for modules, the domains, ports and interfaces.
// Flatten then walks the bodies. Since a body may call into any other module,
// every global must be initialized before the first one is flattened.
package flatten

import (
	"sus/internal/cst"
	"sus/internal/ir"
	"sus/internal/linker"
)

// implicitDomain names the single domain of a module without domain statements.
const implicitDomain = "clk"

// InitializeAll initializes every global that has not been initialized yet.
func InitializeAll(l *linker.Linker) {
	for g := range l.Globals() {
		Initialize(l, g)
	}
}

// Initialize fills the header of g. It is a no-op on initialized globals.
func Initialize(l *linker.Linker, g ir.GlobalUUID) {
	li := l.LinkInfo(g)
	if li == nil || li.Phase >= ir.PhaseInitialized {
		return
	}
	t := l.File(li.File).Tree

	gatherParameters(t, li)
	if g.Kind == ir.GlobalModule {
		m := l.Module(g.Module())
		in := &initializer{t: t, m: m}
		in.gatherModule(li.Node)
	}

	li.Checkpoints.Initialize = li.Errors.Checkpoint()
	li.Phase = ir.PhaseInitialized
}

func gatherParameters(t *cst.Tree, li *ir.LinkInfo) {
	args := t.Field(li.Node, cst.FieldTemplateDeclarationArguments)
	for _, item := range t.Items(args) {
		name := t.Field(item, cst.FieldName)
		if name == 0 {
			continue
		}
		p := ir.Parameter{Name: t.Text(name), NameSpan: t.Span(name), Span: t.Span(item)}
		switch t.Kind(item) {
		case cst.KindTemplateDeclarationType:
			p.Kind = ir.ParamType
		case cst.KindDeclaration:
			p.Kind = ir.ParamValue
		default:
			continue
		}
		li.Parameters.Alloc(p)
	}
}

type initializer struct {
	t *cst.Tree
	m *ir.Module

	domainStmts int
	main        ir.Interface
}

func (in *initializer) gatherModule(node cst.NodeID) {
	m := in.m
	body := in.t.Field(node, cst.FieldBlock)

	// Domains come first so ports can point at them.
	in.t.Walk(body, func(id cst.NodeID) bool {
		if in.t.Kind(id) == cst.KindDomainStatement {
			if name := in.t.Field(id, cst.FieldName); name != 0 {
				m.Domains.Alloc(ir.Domain{Name: in.t.Text(name), NameSpan: in.t.Span(name)})
			}
			return false
		}
		return true
	})
	if m.Domains.Len() == 0 {
		m.Domains.Alloc(ir.Domain{Name: implicitDomain, NameSpan: m.NameSpan, Implicit: true})
	}

	// The main interface takes the module's name and holds every port
	// declared outside an interface statement.
	in.main = ir.Interface{Name: m.Name, NameSpan: m.NameSpan, Domain: 1}
	m.Main = m.Interfaces.Alloc(ir.Interface{})
	in.gatherBlock(body)
	*m.Interfaces.MustGet(m.Main) = in.main
}

func (in *initializer) currentDomain() ir.DomainID {
	return ir.DomainID(max(1, in.domainStmts))
}

func (in *initializer) gatherBlock(block cst.NodeID) {
	t := in.t
	for _, item := range t.Items(block) {
		switch t.Kind(item) {
		case cst.KindDomainStatement:
			if t.Field(item, cst.FieldName) != 0 {
				in.domainStmts++
			}
		case cst.KindInterfaceStatement:
			in.gatherInterface(item)
		case cst.KindBlock:
			in.gatherBlock(item)
		case cst.KindIfStatement:
			in.gatherIf(item)
		case cst.KindForStatement:
			in.gatherBlock(t.Field(item, cst.FieldBlock))
		case cst.KindDeclAssignStatement:
			left := t.Field(item, cst.FieldAssignLeft)
			for _, to := range t.Items(left) {
				decl := t.Field(to, cst.FieldExprOrDecl)
				if t.Kind(decl) != cst.KindDeclaration {
					continue
				}
				io := t.Field(decl, cst.FieldIOPortModifiers)
				if io == 0 || isGenDecl(t, decl) {
					continue
				}
				if id, ok := in.addPort(decl, t.Text(io) == "input", in.m.Main); ok {
					if t.Text(io) == "input" {
						in.main.Inputs = append(in.main.Inputs, id)
					} else {
						in.main.Outputs = append(in.main.Outputs, id)
					}
				}
			}
		}
	}
}

func (in *initializer) gatherIf(node cst.NodeID) {
	in.gatherBlock(in.t.Field(node, cst.FieldThenBlock))
	switch els := in.t.Field(node, cst.FieldElseBlock); in.t.Kind(els) {
	case cst.KindIfStatement:
		in.gatherIf(els)
	case cst.KindBlock:
		in.gatherBlock(els)
	}
}

func (in *initializer) gatherInterface(node cst.NodeID) {
	t := in.t
	name := t.Field(node, cst.FieldName)
	if name == 0 {
		return
	}
	iface := ir.Interface{
		Name:     t.Text(name),
		NameSpan: t.Span(name),
		Kind:     ir.InterfaceRegular,
		Domain:   in.currentDomain(),
	}
	id := in.m.Interfaces.NextID()
	ports := t.Field(node, cst.FieldInterfacePorts)
	for _, decl := range t.Items(t.Field(ports, cst.FieldInputs)) {
		if p, ok := in.addPort(decl, true, id); ok {
			iface.Inputs = append(iface.Inputs, p)
		}
	}
	for _, decl := range t.Items(t.Field(ports, cst.FieldOutputs)) {
		if p, ok := in.addPort(decl, false, id); ok {
			iface.Outputs = append(iface.Outputs, p)
		}
	}
	in.m.Interfaces.Alloc(iface)
}

func (in *initializer) addPort(decl cst.NodeID, isInput bool, iface ir.InterfaceID) (ir.PortID, bool) {
	t := in.t
	name := t.Field(decl, cst.FieldName)
	if name == 0 || t.Kind(decl) != cst.KindDeclaration {
		return 0, false
	}
	return in.m.Ports.Alloc(ir.Port{
		Name:      t.Text(name),
		NameSpan:  t.Span(name),
		DeclSpan:  t.Span(decl),
		IsInput:   isInput,
		Domain:    in.currentDomain(),
		Interface: iface,
	}), true
}

func isGenDecl(t *cst.Tree, decl cst.NodeID) bool {
	return t.Text(t.Field(decl, cst.FieldDeclarationModifiers)) == "gen"
}
