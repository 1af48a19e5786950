package linker

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-set/v3"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/source"
)

// entry is one namespace slot. More than one global means a collision.
type entry struct {
	globals []ir.GlobalUUID
}

func (l *Linker) insertName(name string, g ir.GlobalUUID) {
	e := l.namespace[name]
	if e == nil {
		e = &entry{}
		l.namespace[name] = e
	}
	e.globals = append(e.globals, g)
}

func (l *Linker) removeName(name string, g ir.GlobalUUID) {
	e := l.namespace[name]
	if e == nil {
		return
	}
	e.globals = slices.DeleteFunc(e.globals, func(x ir.GlobalUUID) bool { return x == g })
	if len(e.globals) == 0 {
		delete(l.namespace, name)
	}
}

// Lookup returns the global registered under name. When several globals
// share the name, ok is false and candidates lists all of them.
func (l *Linker) Lookup(name string) (g ir.GlobalUUID, candidates []ir.GlobalUUID, ok bool) {
	e := l.namespace[name]
	if e == nil {
		return ir.GlobalUUID{}, nil, false
	}
	if len(e.globals) == 1 {
		return e.globals[0], nil, true
	}
	return ir.GlobalUUID{}, e.globals, false
}

// Names iterates every name in the namespace with its unique global. Colliding
// names are skipped.
func (l *Linker) Names(yield func(name string, g ir.GlobalUUID) bool) {
	for name, e := range l.namespace {
		if len(e.globals) != 1 {
			continue
		}
		if !yield(name, e.globals[0]) {
			return
		}
	}
}

// ResolveGlobal resolves name on behalf of from. Failures are reported to rep
// and recorded in from.Missing; successes are recorded in from.Resolved.
func (l *Linker) ResolveGlobal(from *ir.LinkInfo, name string, span source.Span, rep diag.Reporter) (ir.GlobalUUID, bool) {
	g, candidates, ok := l.Lookup(name)
	if ok {
		from.Resolved.Insert(g)
		return g, true
	}
	from.Missing.Insert(name)
	if candidates == nil {
		diag.ReportError(rep, diag.NameNotFound, span,
			fmt.Sprintf("No Global of the name '%s' was found. Did you forget to import it?", name)).Emit()
		return ir.GlobalUUID{}, false
	}
	b := diag.ReportError(rep, diag.NameCollision, span,
		fmt.Sprintf("There were colliding imports for the name '%s'. Pick one and import it by name.", name))
	for _, c := range candidates {
		li := l.LinkInfo(c)
		b.WithNote(li.NameSpan, fmt.Sprintf("%s '%s' is one of the candidates", c.Kind, li.Name))
	}
	b.Emit()
	return ir.GlobalUUID{}, false
}

// CheckOwnName reports a collision of g's own name against the other
// globals sharing it.
func (l *Linker) CheckOwnName(g ir.GlobalUUID) {
	li := l.LinkInfo(g)
	_, candidates, ok := l.Lookup(li.Name)
	if ok || candidates == nil {
		return
	}
	li.Missing.Insert(li.Name)
	b := diag.ReportError(li.Reporter(), diag.NameCollision, li.NameSpan,
		fmt.Sprintf("Another global is also named '%s'", li.Name))
	for _, c := range candidates {
		if c == g {
			continue
		}
		other := l.LinkInfo(c)
		b.WithNote(other.NameSpan, fmt.Sprintf("'%s' is also declared here", other.Name))
	}
	b.Emit()
}

func (l *Linker) removeGlobals(fd *FileData) (removed *set.Set[ir.GlobalUUID], names *set.Set[string]) {
	removed = set.New[ir.GlobalUUID](len(fd.Globals))
	names = set.New[string](len(fd.Globals))
	for _, g := range fd.Globals {
		li := l.LinkInfo(g)
		names.Insert(li.Name)
		removed.Insert(g)
		l.removeName(li.Name, g)
		switch g.Kind {
		case ir.GlobalModule:
			l.Modules.Free(g.Module())
		case ir.GlobalType:
			l.Types.Free(g.Type())
		case ir.GlobalConstant:
			l.Constants.Free(g.Constant())
		}
	}
	fd.Globals = nil
	return removed, names
}

// invalidate resets globals whose resolution results may have changed and
// drops every instantiation.
func (l *Linker) invalidate(removed *set.Set[ir.GlobalUUID], names *set.Set[string]) {
	for g := range l.Globals() {
		li := l.LinkInfo(g)
		stale := false
		for dep := range li.Resolved.Items() {
			if removed.Contains(dep) {
				stale = true
				break
			}
			if other := l.LinkInfo(dep); other != nil && names.Contains(other.Name) {
				stale = true
				break
			}
		}
		if !stale {
			for n := range li.Missing.Items() {
				if names.Contains(n) {
					stale = true
					break
				}
			}
		}
		if stale && li.Phase > ir.PhaseInitialized {
			li.ResetTo(ir.PhaseInitialized)
		}
	}
	l.ClearInstances()
}

// ClearInstances drops the instantiation cache of every module.
func (l *Linker) ClearInstances() {
	for _, m := range l.Modules.All() {
		if (*m).Instances != nil {
			(*m).Instances.Clear()
		}
	}
}
