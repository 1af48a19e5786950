package lsp

import (
	"cmp"
	"slices"
	"strings"

	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/source"
)

// RefKind tells what a name in the source refers to.
type RefKind uint8

const (
	RefGlobal RefKind = iota + 1
	RefParam
	RefLocal
	RefPort
	RefInterface
)

// Referent identifies the thing a name refers to. Two locations refer to the
// same thing exactly when their referents are equal.
type Referent struct {
	Kind RefKind
	// Global is the target for RefGlobal, the owner for RefParam and
	// RefLocal, and the module for RefPort and RefInterface.
	Global ir.GlobalUUID
	Local  ir.FlatID
	Param  ir.TemplateID
	Port   ir.PortID
	Iface  ir.InterfaceID
}

// Location is one occurrence of a name.
type Location struct {
	Span   source.Span
	Ref    Referent
	IsDecl bool
}

// Walk yields every named location of a file in source order. A span is
// yielded once even when several instructions mention it.
func Walk(l *linker.Linker, file source.FileID) []Location {
	fd := l.File(file)
	if fd == nil {
		return nil
	}
	w := &walker{l: l, seen: make(map[source.Span]bool)}
	for _, g := range fd.Globals {
		w.global(g)
	}
	slices.SortStableFunc(w.out, func(a, b Location) int {
		return cmp.Or(cmp.Compare(a.Span.Start, b.Span.Start), cmp.Compare(a.Span.End, b.Span.End))
	})
	return w.out
}

// WalkAll yields the locations of every file.
func WalkAll(l *linker.Linker) []Location {
	var out []Location
	for fd := range l.FilesInOrder() {
		out = append(out, Walk(l, fd.ID)...)
	}
	return out
}

type walker struct {
	l     *linker.Linker
	owner ir.GlobalUUID
	li    *ir.LinkInfo
	seen  map[source.Span]bool
	out   []Location
}

func (w *walker) emit(sp source.Span, ref Referent, decl bool) {
	if sp.Empty() || w.seen[sp] {
		return
	}
	w.seen[sp] = true
	w.out = append(w.out, Location{Span: sp, Ref: ref, IsDecl: decl})
}

func (w *walker) global(g ir.GlobalUUID) {
	li := w.l.LinkInfo(g)
	if li == nil {
		return
	}
	w.owner, w.li = g, li
	w.emit(li.NameSpan, Referent{Kind: RefGlobal, Global: g}, true)
	for id, p := range li.Parameters.All() {
		w.emit(p.NameSpan, Referent{Kind: RefParam, Global: g, Param: id}, true)
	}
	for id, instr := range li.Instructions.All() {
		w.instruction(id, instr)
	}
}

func (w *walker) instruction(id ir.FlatID, instr *ir.Instruction) {
	switch d := instr.Data.(type) {
	case *ir.Declaration:
		w.writtenType(&d.TypeExpr)
		w.emit(d.NameSpan, w.declRef(id, d), true)
	case *ir.SubModule:
		w.globalRef(&d.Module)
		if d.Name != "" {
			w.emit(d.NameSpan, Referent{Kind: RefLocal, Global: w.owner, Local: id}, true)
		}
	case *ir.InterfaceDecl:
		w.emit(d.NameSpan, Referent{Kind: RefInterface, Global: w.owner, Iface: d.Interface}, true)
	case *ir.Expression:
		switch d.Source.Kind {
		case ir.SourceWireRef:
			w.wireRef(d.Source.Ref)
		case ir.SourceFuncCall:
			w.call(d.Source.Call)
		}
		for i := range d.Writes {
			w.wireRef(&d.Writes[i].To)
		}
	}
}

// declRef maps a declaration to its referent. Port and parameter
// declarations stand for the port and the parameter themselves.
func (w *walker) declRef(id ir.FlatID, d *ir.Declaration) Referent {
	switch d.Kind {
	case ir.DeclPort:
		return Referent{Kind: RefPort, Global: w.owner, Port: d.Port}
	case ir.DeclTemplateParam:
		return Referent{Kind: RefParam, Global: w.owner, Param: d.Param}
	case ir.DeclConstantOutput:
		return Referent{Kind: RefGlobal, Global: w.owner}
	}
	return Referent{Kind: RefLocal, Global: w.owner, Local: id}
}

func (w *walker) writtenType(t *ir.WrittenType) {
	for ; t != nil; t = t.Elem {
		switch t.Kind {
		case ir.WrittenTemplate:
			w.emit(t.Span, Referent{Kind: RefParam, Global: w.owner, Param: t.Template}, false)
		case ir.WrittenNamed:
			w.globalRef(t.Named)
		}
	}
}

func (w *walker) globalRef(g *ir.GlobalRef) {
	if g == nil || !g.ID.IsValid() {
		return
	}
	w.emit(g.NameSpan, Referent{Kind: RefGlobal, Global: g.ID}, false)
	for i, arg := range g.Args {
		if arg == nil {
			continue
		}
		if arg.NameSpan != arg.Span {
			w.emit(arg.NameSpan, Referent{Kind: RefParam, Global: g.ID, Param: ir.TemplateID(i + 1)}, false)
		}
		if arg.Kind == ir.ArgType {
			w.writtenType(&arg.Type)
		}
	}
}

func (w *walker) wireRef(ref *ir.WireReference) {
	if ref == nil {
		return
	}
	root := &ref.Root
	switch root.Kind {
	case ir.RootLocalDecl:
		if instr := w.li.Instructions.Get(root.Local); instr != nil {
			if d := instr.Decl(); d != nil {
				w.emit(root.Span, w.declRef(root.Local, d), false)
			}
		}
	case ir.RootLocalSubmodule:
		w.emit(root.Span, Referent{Kind: RefLocal, Global: w.owner, Local: root.Local}, false)
	case ir.RootLocalInterface:
		if instr := w.li.Instructions.Get(root.Local); instr != nil {
			if d := instr.Interface(); d != nil {
				w.emit(root.Span, Referent{Kind: RefInterface, Global: w.owner, Iface: d.Interface}, false)
			}
		}
	case ir.RootNamedConstant, ir.RootNamedModule:
		w.globalRef(root.Global)
	}
	for i := range ref.Path {
		p := &ref.Path[i]
		if p.Kind != ir.PathField {
			continue
		}
		mod := ir.ModuleUUID(p.RefersTo.Module)
		switch {
		case p.RefersTo.Port.IsValid():
			w.emit(p.NameSpan, Referent{Kind: RefPort, Global: mod, Port: p.RefersTo.Port}, false)
		case p.RefersTo.Interface.IsValid():
			w.emit(p.NameSpan, Referent{Kind: RefInterface, Global: mod, Iface: p.RefersTo.Interface}, false)
		}
	}
}

// call covers the callee of a function call. The callee span is either an
// interface name, a submodule name, or "submodule.interface".
func (w *walker) call(c *ir.FuncCall) {
	if c == nil {
		return
	}
	iface := Referent{Kind: RefInterface, Global: ir.ModuleUUID(c.Module), Iface: c.Interface}
	if !c.SubModule.IsValid() {
		w.emit(c.Callee, iface, false)
		return
	}
	sm := w.li.Instr(c.SubModule).SubModule()
	if sm == nil || sm.Name == "" {
		// Anonymous submodules are covered by their module reference.
		return
	}
	text := w.l.Files.Text(c.Callee)
	if !strings.HasPrefix(text, sm.Name) {
		return
	}
	head := c.Callee
	head.End = head.Start + safeUint32(len(sm.Name))
	w.emit(head, Referent{Kind: RefLocal, Global: w.owner, Local: c.SubModule}, false)
	m := w.l.Module(c.Module)
	if m == nil || len(text) == len(sm.Name) {
		return
	}
	if i := m.Interfaces.Get(c.Interface); i != nil && strings.HasSuffix(text, i.Name) {
		tail := c.Callee
		tail.Start = tail.End - safeUint32(len(i.Name))
		w.emit(tail, iface, false)
	}
}

// At returns the location under off, preferring the narrowest span.
func At(locs []Location, off uint32) (Location, bool) {
	var best Location
	found := false
	for _, loc := range locs {
		if !loc.Span.Contains(off) {
			continue
		}
		if !found || loc.Span.Len() < best.Span.Len() {
			best, found = loc, true
		}
	}
	return best, found
}

// Definition returns the span declaring ref.
func Definition(l *linker.Linker, ref Referent) (source.Span, bool) {
	li := l.LinkInfo(ref.Global)
	if li == nil {
		return source.Span{}, false
	}
	switch ref.Kind {
	case RefGlobal:
		return li.NameSpan, true
	case RefParam:
		if p := li.Parameters.Get(ref.Param); p != nil {
			return p.NameSpan, true
		}
	case RefLocal:
		if instr := li.Instructions.Get(ref.Local); instr != nil {
			switch d := instr.Data.(type) {
			case *ir.Declaration:
				return d.NameSpan, true
			case *ir.SubModule:
				if d.Name != "" {
					return d.NameSpan, true
				}
			}
		}
	case RefPort:
		if m := l.Module(ref.Global.Module()); m != nil {
			if p := m.Ports.Get(ref.Port); p != nil {
				return p.NameSpan, true
			}
		}
	case RefInterface:
		if m := l.Module(ref.Global.Module()); m != nil {
			if i := m.Interfaces.Get(ref.Iface); i != nil && !i.NameSpan.Empty() {
				return i.NameSpan, true
			}
		}
	}
	return source.Span{}, false
}

// Occurrences returns every location of ref. Locals only occur in the file of
// their owner, everything else is searched across all files.
func Occurrences(l *linker.Linker, ref Referent) []Location {
	var locs []Location
	switch ref.Kind {
	case RefLocal:
		if li := l.LinkInfo(ref.Global); li != nil {
			locs = Walk(l, li.File)
		}
	default:
		locs = WalkAll(l)
	}
	out := locs[:0]
	for _, loc := range locs {
		if loc.Ref == ref {
			out = append(out, loc)
		}
	}
	return out
}
