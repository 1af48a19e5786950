package ir

import (
	"fmt"
	"strings"
)

// Display renders an abstract type. Template parameters are named after the
// parameters of owner.
func (t AbstractRankedType) Display(n Namer, owner GlobalUUID) string {
	var sb strings.Builder
	t.Inner.display(&sb, n, owner)
	for range t.Rank.Base {
		sb.WriteString("[]")
	}
	if t.Rank.Var != 0 {
		sb.WriteString("[...]")
	}
	return sb.String()
}

func (in AbstractInner) display(sb *strings.Builder, n Namer, owner GlobalUUID) {
	switch in.Kind {
	case InnerError:
		sb.WriteString("{error}")
	case InnerUnknown:
		fmt.Fprintf(sb, "?%d", in.Var)
	case InnerTemplate:
		if name := n.ParamName(owner, in.Template); name != "" {
			sb.WriteString(name)
		} else {
			fmt.Fprintf(sb, "T%d", in.Template)
		}
	case InnerNamed:
		sb.WriteString(n.GlobalName(TypeUUID(in.Named)))
		first := true
		for i, a := range in.Args {
			if a.Inner.Kind == InnerError && a.Rank.Base == 0 && a.Rank.Var == 0 {
				continue
			}
			if first {
				sb.WriteString(" #(")
				first = false
			} else {
				sb.WriteString(", ")
			}
			sb.WriteString(n.ParamName(TypeUUID(in.Named), TemplateID(i+1)))
			sb.WriteString(": type ")
			sb.WriteString(a.Display(n, owner))
		}
		if !first {
			sb.WriteByte(')')
		}
	case InnerInterface:
		sb.WriteString(n.GlobalName(ModuleUUID(in.Module)))
		sb.WriteByte('.')
		sb.WriteString(n.InterfaceName(in.Module, in.Interface))
	case InnerLocalInterface:
		fmt.Fprintf(sb, "interface@%d", in.Local)
	}
}

// Display renders a domain of module m.
func (d DomainType) Display(n Namer, m ModuleID) string {
	switch d.Kind {
	case DomainGenerative:
		return "gen"
	case DomainPhysical:
		if m.IsValid() {
			return n.DomainName(m, d.Physical)
		}
		return fmt.Sprintf("domain%d", d.Physical)
	case DomainUnknown:
		return fmt.Sprintf("?domain%d", d.Var)
	default:
		return "{error}"
	}
}

// Display renders a full type as "domain type".
func (f FullType) Display(n Namer, owner GlobalUUID) string {
	return f.Domain.Display(n, owner.Module()) + " " + f.Typ.Display(n, owner)
}
