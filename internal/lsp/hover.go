package lsp

import (
	"encoding/json"
	"fmt"
	"strings"

	"sus/internal/instantiate"
	"sus/internal/ir"
	"sus/internal/latency"
)

// maxHoverInstances bounds how many instances a hover lists.
const maxHoverInstances = 8

func (s *Server) handleHover(msg *rpcMessage) error {
	var params textDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	f, loc, ok := s.nameAt(params)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	text := s.describe(loc.Ref)
	if text == "" {
		return s.sendResponse(msg.ID, nil)
	}
	r := rangeForSpan(f, loc.Span)
	return s.sendResponse(msg.ID, hover{
		Contents: markupContent{Kind: "markdown", Value: text},
		Range:    &r,
	})
}

// describe renders the hover text of ref: a code block with its signature,
// its documentation and, for wires of modules, what every instance made of
// it.
func (s *Server) describe(ref Referent) string {
	sig, doc := s.signature(ref)
	if sig == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("```sus\n")
	sb.WriteString(sig)
	sb.WriteString("\n```")
	if doc != "" {
		sb.WriteString("\n\n")
		sb.WriteString(doc)
	}
	if lines := s.instanceLines(ref); len(lines) > 0 {
		sb.WriteString("\n\n---\n")
		for _, line := range lines {
			sb.WriteString("\n- ")
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func (s *Server) signature(ref Referent) (sig, doc string) {
	li := s.l.LinkInfo(ref.Global)
	if li == nil {
		return "", ""
	}
	switch ref.Kind {
	case RefGlobal:
		return s.globalSignature(ref.Global), li.Doc
	case RefParam:
		p := li.Parameters.Get(ref.Param)
		if p == nil {
			return "", ""
		}
		owner := fmt.Sprintf("\n// parameter of %s", li.Name)
		if p.Kind == ir.ParamType {
			return "type " + p.Name + owner, ""
		}
		if instr := li.Instructions.Get(p.Decl); instr != nil {
			if d := instr.Decl(); d != nil {
				return s.declSignature(ref.Global, d) + owner, d.Doc
			}
		}
		return p.Name + owner, ""
	case RefLocal:
		instr := li.Instructions.Get(ref.Local)
		if instr == nil {
			return "", ""
		}
		switch d := instr.Data.(type) {
		case *ir.Declaration:
			return s.declSignature(ref.Global, d), d.Doc
		case *ir.SubModule:
			sig := s.l.GlobalName(d.Module.ID) + " " + d.Name
			doc := d.Doc
			if doc == "" {
				if target := s.l.LinkInfo(d.Module.ID); target != nil {
					doc = target.Doc
				}
			}
			return sig, doc
		}
	case RefPort:
		m := s.l.Module(ref.Global.Module())
		if m == nil {
			return "", ""
		}
		p := m.Ports.Get(ref.Port)
		if p == nil {
			return "", ""
		}
		dir := "output"
		if p.IsInput {
			dir = "input"
		}
		sig := dir + " " + p.Name
		doc := ""
		if instr := m.Instructions.Get(p.Decl); instr != nil {
			if d := instr.Decl(); d != nil {
				sig = dir + " " + s.declSignature(ref.Global, d)
				doc = d.Doc
			}
		}
		return sig + fmt.Sprintf("\n// port of %s", m.Name), doc
	case RefInterface:
		m := s.l.Module(ref.Global.Module())
		if m == nil {
			return "", ""
		}
		i := m.Interfaces.Get(ref.Iface)
		if i == nil {
			return "", ""
		}
		return fmt.Sprintf("%s %s : %s -> %s", i.Kind, i.Name, s.portNames(m, i.Inputs), s.portNames(m, i.Outputs)), ""
	}
	return "", ""
}

func (s *Server) globalSignature(g ir.GlobalUUID) string {
	li := s.l.LinkInfo(g)
	var sb strings.Builder
	switch li.Extern {
	case ir.Extern:
		sb.WriteString("extern ")
	case ir.Builtin:
		sb.WriteString("__builtin__ ")
	}
	switch g.Kind {
	case ir.GlobalModule:
		sb.WriteString("module ")
	case ir.GlobalType:
		sb.WriteString("struct ")
	case ir.GlobalConstant:
		sb.WriteString("const ")
		if c := s.l.Constant(g.Constant()); c != nil {
			if t := s.l.Files.Text(c.Type.Span); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		}
	}
	sb.WriteString(li.Name)
	if li.Parameters.Len() > 0 {
		sb.WriteString(" #(")
		first := true
		for _, p := range li.Parameters.All() {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			if p.Kind == ir.ParamType {
				sb.WriteString("type ")
			}
			sb.WriteString(p.Name)
		}
		sb.WriteByte(')')
	}
	if m := s.l.Module(g.Module()); m != nil && m.Ports.Len() > 0 {
		for _, p := range m.Ports.All() {
			dir := "output"
			if p.IsInput {
				dir = "input"
			}
			fmt.Fprintf(&sb, "\n  %s %s", dir, p.Name)
		}
	}
	return sb.String()
}

func (s *Server) declSignature(owner ir.GlobalUUID, d *ir.Declaration) string {
	var sb strings.Builder
	if d.Ident == ir.IdentState {
		sb.WriteString("state ")
	}
	sb.WriteString(d.Typ.Display(s.l, owner))
	sb.WriteByte(' ')
	sb.WriteString(d.Name)
	return sb.String()
}

func (s *Server) portNames(m *ir.Module, ports []ir.PortID) string {
	names := make([]string, 0, len(ports))
	for _, id := range ports {
		if p := m.Ports.Get(id); p != nil {
			names = append(names, p.Name)
		}
	}
	return strings.Join(names, ", ")
}

// instanceLines describes the wires that instances of a module made from
// the declaration behind ref.
func (s *Server) instanceLines(ref Referent) []string {
	m := s.l.Module(ref.Global.Module())
	if m == nil {
		return nil
	}
	var line func(inst *instantiate.Instance) (string, bool)
	switch ref.Kind {
	case RefLocal:
		line = func(inst *instantiate.Instance) (string, bool) { return s.wireLine(inst, ref.Local) }
	case RefPort:
		p := m.Ports.Get(ref.Port)
		if p == nil {
			return nil
		}
		line = func(inst *instantiate.Instance) (string, bool) { return s.wireLine(inst, p.Decl) }
	case RefParam:
		line = func(inst *instantiate.Instance) (string, bool) { return s.argLine(inst, ref.Param) }
	default:
		return nil
	}
	var out []string
	for _, inst := range instantiate.Instances(m) {
		if len(out) == maxHoverInstances {
			out = append(out, "...")
			break
		}
		if l, ok := line(inst); ok {
			out = append(out, l)
		}
	}
	return out
}

func (s *Server) wireLine(inst *instantiate.Instance, decl ir.FlatID) (string, bool) {
	for _, w := range inst.Wires.All() {
		if w.Original != decl {
			continue
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "`%s`: `%s`", inst.Name, w.Typ.Display(s.l))
		if latency.IsValid(w.Latency) {
			fmt.Fprintf(&sb, " latency %d", w.Latency)
		}
		if w.Bounds != nil {
			fmt.Fprintf(&sb, " range %s", w.Bounds)
		}
		return sb.String(), true
	}
	return "", false
}

// argLine shows the argument an instance was built with.
func (s *Server) argLine(inst *instantiate.Instance, id ir.TemplateID) (string, bool) {
	if !id.IsValid() || int(id) > len(inst.Args) {
		return "", false
	}
	arg := inst.Args[id-1]
	switch {
	case arg.Type != nil:
		return fmt.Sprintf("`%s`: `%s`", inst.Name, arg.Type.Display(s.l)), true
	case arg.Value.Var == 0:
		return fmt.Sprintf("`%s`: `%s`", inst.Name, arg.Value.Value.String()), true
	}
	return "", false
}
