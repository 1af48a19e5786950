package linker

import "sus/internal/ir"

// GlobalName implements ir.Namer.
func (l *Linker) GlobalName(g ir.GlobalUUID) string {
	if li := l.LinkInfo(g); li != nil {
		return li.Name
	}
	return g.String()
}

// ParamName implements ir.Namer.
func (l *Linker) ParamName(g ir.GlobalUUID, id ir.TemplateID) string {
	li := l.LinkInfo(g)
	if li == nil {
		return ""
	}
	if p := li.Parameters.Get(id); p != nil {
		return p.Name
	}
	return ""
}

// DomainName implements ir.Namer.
func (l *Linker) DomainName(m ir.ModuleID, id ir.DomainID) string {
	if md := l.Module(m); md != nil {
		if d := md.Domains.Get(id); d != nil {
			return d.Name
		}
	}
	return "{unknown domain}"
}

// InterfaceName implements ir.Namer.
func (l *Linker) InterfaceName(m ir.ModuleID, id ir.InterfaceID) string {
	if md := l.Module(m); md != nil {
		if i := md.Interfaces.Get(id); i != nil {
			return i.Name
		}
	}
	return "{unknown interface}"
}

var _ ir.Namer = (*Linker)(nil)
