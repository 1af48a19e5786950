package sema

import (
	"fmt"

	"sus/internal/diag"
	"sus/internal/ir"
	"sus/internal/linker"
)

// Lint reports wires of a typechecked module that are never read or never
// written. Running it again replaces the previous lint results.
func Lint(l *linker.Linker, g ir.GlobalUUID) {
	li := l.LinkInfo(g)
	if li == nil {
		return
	}
	switch li.Phase {
	case ir.PhaseLinted:
		li.ResetTo(ir.PhaseTypechecked)
	case ir.PhaseTypechecked:
	default:
		return
	}
	if g.Kind == ir.GlobalModule && li.Extern == ir.NotExtern {
		lintWires(li)
	}
	li.Checkpoints.Lint = li.Errors.Checkpoint()
	li.Phase = ir.PhaseLinted
}

func lintWires(li *ir.LinkInfo) {
	n := li.Instructions.Len() + 1
	read := make([]bool, n)
	written := make([]bool, n)
	for _, instr := range li.Instructions.All() {
		e := instr.Expr()
		if e == nil {
			continue
		}
		if e.Source.Kind == ir.SourceWireRef && e.Source.Ref.Root.Kind == ir.RootLocalDecl {
			read[e.Source.Ref.Root.Local] = true
		}
		for _, w := range e.Writes {
			if w.To.Root.Kind == ir.RootLocalDecl {
				written[w.To.Root.Local] = true
			}
		}
	}

	rep := li.Reporter()
	for id, instr := range li.Instructions.All() {
		d := instr.Decl()
		if d == nil || d.Name == "" {
			continue
		}
		switch d.Kind {
		case ir.DeclRegular:
			if !read[id] {
				diag.ReportWarning(rep, diag.TypeUnusedWire, d.NameSpan,
					fmt.Sprintf("Unused variable '%s'", d.Name)).Emit()
			}
			if !written[id] && !d.NotWrittenTo {
				diag.ReportWarning(rep, diag.TypeUnwrittenWire, d.NameSpan,
					fmt.Sprintf("'%s' is never written to", d.Name)).Emit()
			}
		case ir.DeclPort:
			if !d.IsInput && !written[id] {
				diag.ReportWarning(rep, diag.TypeUnwrittenWire, d.NameSpan,
					fmt.Sprintf("Output port '%s' is never written to", d.Name)).Emit()
			}
		}
	}
}
