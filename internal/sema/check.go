// Package sema typechecks flattened globals.
//
// Typechecking annotates every declaration, expression and wire reference of
// a global with a FullType: an abstract ranked type and a domain. Types are
// inferred with the unifiers of package typing; anything that cannot be
// inferred ends up as the error type so later phases do not cascade. Linting
// runs after typechecking and reports wires that are never read or written.
package sema

import (
	"github.com/hashicorp/go-set/v3"

	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/trace"
)

// Options configure a typechecking session.
type Options struct {
	Tracer trace.Tracer
}

// session typechecks globals in dependency order. Globals are checked at most
// once; active breaks cycles between modules that instantiate each other.
type session struct {
	l      *linker.Linker
	opts   Options
	active *set.Set[ir.GlobalUUID]
}

func newSession(l *linker.Linker, opts Options) *session {
	return &session{l: l, opts: opts, active: set.New[ir.GlobalUUID](8)}
}

// TypecheckAll typechecks and lints every flattened global.
func TypecheckAll(l *linker.Linker, opts Options) {
	s := newSession(l, opts)
	var span *trace.Span
	if opts.Tracer != nil && opts.Tracer.Enabled() {
		span = trace.Begin(opts.Tracer, trace.ScopePass, "typecheck", 0)
	}
	for g := range l.Globals() {
		s.typecheck(g)
	}
	for g := range l.Globals() {
		Lint(l, g)
	}
	if span != nil {
		span.End("")
	}
}

// Typecheck typechecks g and every global it refers to.
func Typecheck(l *linker.Linker, g ir.GlobalUUID, opts Options) {
	newSession(l, opts).typecheck(g)
}

func (s *session) typecheck(g ir.GlobalUUID) {
	li := s.l.LinkInfo(g)
	if li == nil || li.Phase != ir.PhaseFlattened || !s.active.Insert(g) {
		return
	}
	defer s.active.Remove(g)

	for dep := range li.Resolved.Items() {
		if dep != g {
			s.typecheck(dep)
		}
	}
	li.Errors.Truncate(li.Checkpoints.Flatten)

	trace.Point(s.opts.Tracer, trace.ScopeGlobal, "global:"+li.Name, g.Kind.String())
	tc := newTypeChecker(s.l, g)
	tc.tr = s.opts.Tracer
	defer trace.Guard(s.l.Files)
	tc.run()
	tc.finalize()

	li.Checkpoints.Typecheck = li.Errors.Checkpoint()
	li.Phase = ir.PhaseTypechecked
}
