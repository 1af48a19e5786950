// Package linker owns every global of a compilation: the three global arenas,
// the per-file association of globals and the namespace used to resolve names.
package linker

import (
	"iter"

	"sus/internal/arena"
	"sus/internal/cst"
	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
)

// FileData is what the linker keeps per source file.
type FileData struct {
	ID      source.FileID
	Tree    *cst.Tree
	Errors  *diag.Bag // lexer and parser diagnostics
	Globals []ir.GlobalUUID
	Std     bool
}

// Linker is the process-wide compilation state. It is not safe for
// concurrent use; callers serialize access.
type Linker struct {
	Files     *source.FileSet
	Modules   *arena.Sparse[ir.ModuleID, *ir.Module]
	Types     *arena.Sparse[ir.TypeID, *ir.StructType]
	Constants *arena.Sparse[ir.ConstantID, *ir.Constant]
	Builtins  ir.Builtins

	files     map[source.FileID]*FileData
	order     []source.FileID
	namespace map[string]*entry
}

// New creates an empty linker over fs.
func New(fs *source.FileSet) *Linker {
	if fs == nil {
		fs = source.NewFileSet()
	}
	return &Linker{
		Files:     fs,
		Modules:   arena.NewSparse[ir.ModuleID, *ir.Module](),
		Types:     arena.NewSparse[ir.TypeID, *ir.StructType](),
		Constants: arena.NewSparse[ir.ConstantID, *ir.Constant](),
		files:     make(map[source.FileID]*FileData),
		namespace: make(map[string]*entry),
	}
}

// Parse lexes and parses one file. It touches no linker state, so files can
// be parsed in parallel before being registered.
func Parse(f *source.File) (*cst.Tree, *diag.Bag) {
	bag := diag.NewBag(0)
	tree := cst.Parse(f, diag.BagReporter{Bag: bag})
	return tree, bag
}

// AddFile adds, parses and registers a new file.
func (l *Linker) AddFile(path string, content []byte, std bool) source.FileID {
	id := l.Files.AddVirtual(path, content)
	tree, errs := Parse(l.Files.Get(id))
	l.Register(id, tree, errs, std)
	return id
}

// Register enters the globals of an already parsed file.
func (l *Linker) Register(id source.FileID, tree *cst.Tree, errs *diag.Bag, std bool) {
	fd := &FileData{ID: id, Tree: tree, Errors: errs, Std: std}
	if _, existed := l.files[id]; !existed {
		l.order = append(l.order, id)
	}
	l.files[id] = fd
	l.collectGlobals(fd)
	if std {
		l.resolveBuiltins()
	}
}

// UpdateFile replaces the content of a file, drops its globals and rebuilds
// them. Globals of other files that depended on the old globals, or that
// failed to resolve a name the file now provides, are reset so the next
// compile re-flattens them. Every instantiation is dropped.
func (l *Linker) UpdateFile(id source.FileID, content []byte) {
	old := l.files[id]
	if old == nil {
		return
	}
	removed, names := l.removeGlobals(old)
	l.Files.Update(id, content)
	tree, errs := Parse(l.Files.Get(id))
	fd := &FileData{ID: id, Tree: tree, Errors: errs, Std: old.Std}
	l.files[id] = fd
	l.collectGlobals(fd)
	for _, g := range fd.Globals {
		names.Insert(l.LinkInfo(g).Name)
	}
	l.invalidate(removed, names)
	if old.Std {
		l.resolveBuiltins()
	}
}

// RemoveFile drops a file and its globals.
func (l *Linker) RemoveFile(id source.FileID) {
	fd := l.files[id]
	if fd == nil {
		return
	}
	removed, names := l.removeGlobals(fd)
	delete(l.files, id)
	for i, f := range l.order {
		if f == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.invalidate(removed, names)
}

// File returns the data of a registered file.
func (l *Linker) File(id source.FileID) *FileData { return l.files[id] }

// FilesInOrder iterates registered files in registration order.
func (l *Linker) FilesInOrder() iter.Seq[*FileData] {
	return func(yield func(*FileData) bool) {
		for _, id := range l.order {
			if !yield(l.files[id]) {
				return
			}
		}
	}
}

// Globals iterates every global, file by file in declaration order.
func (l *Linker) Globals() iter.Seq[ir.GlobalUUID] {
	return func(yield func(ir.GlobalUUID) bool) {
		for _, id := range l.order {
			for _, g := range l.files[id].Globals {
				if !yield(g) {
					return
				}
			}
		}
	}
}

// Module returns a module or nil.
func (l *Linker) Module(id ir.ModuleID) *ir.Module {
	if p := l.Modules.Get(id); p != nil {
		return *p
	}
	return nil
}

// Type returns a struct type or nil.
func (l *Linker) Type(id ir.TypeID) *ir.StructType {
	if p := l.Types.Get(id); p != nil {
		return *p
	}
	return nil
}

// Constant returns a constant or nil.
func (l *Linker) Constant(id ir.ConstantID) *ir.Constant {
	if p := l.Constants.Get(id); p != nil {
		return *p
	}
	return nil
}

// LinkInfo returns the shared part of any global, or nil.
func (l *Linker) LinkInfo(g ir.GlobalUUID) *ir.LinkInfo {
	switch g.Kind {
	case ir.GlobalModule:
		if m := l.Module(g.Module()); m != nil {
			return &m.LinkInfo
		}
	case ir.GlobalType:
		if t := l.Type(g.Type()); t != nil {
			return &t.LinkInfo
		}
	case ir.GlobalConstant:
		if c := l.Constant(g.Constant()); c != nil {
			return &c.LinkInfo
		}
	}
	return nil
}

// GlobalAt returns the global of file whose span contains off.
func (l *Linker) GlobalAt(file source.FileID, off uint32) (ir.GlobalUUID, bool) {
	fd := l.files[file]
	if fd == nil {
		return ir.GlobalUUID{}, false
	}
	for _, g := range fd.Globals {
		if l.LinkInfo(g).Span.Contains(off) {
			return g, true
		}
	}
	return ir.GlobalUUID{}, false
}

// HasErrors reports whether any file or global holds an error.
func (l *Linker) HasErrors() bool {
	for fd := range l.FilesInOrder() {
		if fd.Errors.HasErrors() {
			return true
		}
	}
	for g := range l.Globals() {
		if l.LinkInfo(g).Errors.HasErrors() {
			return true
		}
	}
	return false
}

// Diagnostics gathers the diagnostics of one file: parse errors followed by
// the errors of every global declared in it.
func (l *Linker) Diagnostics(file source.FileID) *diag.Bag {
	out := diag.NewBag(0)
	fd := l.files[file]
	if fd == nil {
		return out
	}
	out.Merge(fd.Errors)
	for _, g := range fd.Globals {
		out.Merge(l.LinkInfo(g).Errors)
	}
	return out
}

func (l *Linker) collectGlobals(fd *FileData) {
	t := fd.Tree
	for _, item := range t.Items(t.Root) {
		if t.Kind(item) != cst.KindGlobal {
			continue
		}
		nameNode := t.Field(item, cst.FieldName)
		if nameNode == 0 {
			continue
		}
		li := ir.NewLinkInfo(fd.ID, item, t.Text(nameNode))
		li.NameSpan = t.Span(nameNode)
		li.Span = t.Span(item)
		li.Doc = t.Node(item).Doc
		if m := t.Field(item, cst.FieldExternMarker); m != 0 {
			if t.Text(m) == "extern" {
				li.Extern = ir.Extern
			} else {
				li.Extern = ir.Builtin
			}
		}
		var g ir.GlobalUUID
		switch t.Text(t.Field(item, cst.FieldObjectType)) {
		case "module":
			g = ir.ModuleUUID(l.Modules.Alloc(ir.NewModule(li)))
		case "struct":
			g = ir.TypeUUID(l.Types.Alloc(&ir.StructType{LinkInfo: li}))
		case "const":
			g = ir.ConstantUUID(l.Constants.Alloc(&ir.Constant{LinkInfo: li}))
		default:
			continue
		}
		fd.Globals = append(fd.Globals, g)
		l.insertName(li.Name, g)
	}
}

func (l *Linker) resolveBuiltins() {
	typ := func(name string) ir.TypeID {
		if e := l.namespace[name]; e != nil && len(e.globals) == 1 {
			return e.globals[0].Type()
		}
		return 0
	}
	cnst := func(name string) ir.ConstantID {
		if e := l.namespace[name]; e != nil && len(e.globals) == 1 {
			return e.globals[0].Constant()
		}
		return 0
	}
	l.Builtins = ir.Builtins{
		Bool:   typ("bool"),
		Int:    typ("int"),
		True:   cnst("true"),
		False:  cnst("false"),
		Assert: cnst("assert"),
		Clog2:  cnst("clog2"),
	}
}
