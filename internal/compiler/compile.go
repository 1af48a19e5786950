// Package compiler runs the phases of a compilation over a set of files.
package compiler

import (
	"context"
	"fmt"
	"io"
	"time"

	"sus/internal/diag"
	"sus/internal/flatten"
	"sus/internal/instantiate"
	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/observ"
	"sus/internal/sema"
	"sus/internal/trace"
)

// Options configures one compilation.
type Options struct {
	Files []string
	// StdDir holds the standard library. Empty selects the embedded prelude.
	StdDir string
	// Upto stops after the given phase. Zero runs every phase.
	Upto Phase

	// Codegen writes one SystemVerilog file per instance into OutDir.
	Codegen bool
	// Standalone writes one file with the named module and everything it
	// depends on.
	Standalone string
	OutDir     string

	// Debug receives a dump of every flattened global when set.
	Debug io.Writer
	// DebugLatency writes every latency problem as a snapshot into OutDir.
	DebugLatency bool

	MaxDiagnostics int
	Jobs           int
	Progress       ProgressSink
	Timer          *observ.Timer
	// Now stamps generated files. Nil leaves the time out.
	Now func() time.Time
}

// Result holds the state reached by a compilation.
type Result struct {
	Linker    *linker.Linker
	Instances []*instantiate.Instance
	// Written lists the files produced by codegen and debug output.
	Written []string
	// Reached is the last phase that ran.
	Reached Phase

	max int
}

// Compile runs the pipeline. Diagnostics are collected in the result; the
// returned error reports failures to read input or write output.
func Compile(ctx context.Context, opts *Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		return nil, fmt.Errorf("missing compile options")
	}
	if len(opts.Files) == 0 {
		return nil, ErrNoSources
	}
	upto := opts.Upto
	if upto == 0 {
		upto = PhaseCodegen
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "compile", trace.CurrentSpan(ctx))
	defer span.End("")
	timer := phaseTimer{opts.Timer}

	l := linker.New(nil)
	defer trace.Guard(l.Files)
	res := &Result{Linker: l, max: opts.MaxDiagnostics}
	if err := LoadStd(l, opts.StdDir); err != nil {
		return res, fmt.Errorf("standard library: %w", err)
	}
	if opts.Progress != nil {
		for _, f := range opts.Files {
			opts.Progress.OnEvent(Event{File: f, Status: StatusQueued})
		}
	}
	idx := timer.begin("parse")
	if _, err := loadFiles(ctx, l, opts.Files, opts.Jobs, opts.Progress); err != nil {
		return res, err
	}
	timer.end(idx, fmt.Sprintf("%d files", len(opts.Files)))

	phases := []struct {
		phase Phase
		run   func() error
	}{
		{PhaseInitialize, func() error { flatten.InitializeAll(l); return nil }},
		{PhaseFlatten, func() error {
			for g := range l.Globals() {
				flatten.Flatten(l, g)
			}
			return dumpGlobals(opts.Debug, l)
		}},
		{PhaseTypecheck, func() error {
			for g := range l.Globals() {
				sema.Typecheck(l, g, sema.Options{Tracer: tracer})
			}
			return nil
		}},
		{PhaseLint, func() error {
			for g := range l.Globals() {
				sema.Lint(l, g)
			}
			return nil
		}},
		{PhaseInstantiate, func() error {
			if err := res.instantiate(opts); err != nil {
				return err
			}
			res.traceInstances(tracer)
			if opts.DebugLatency {
				return res.writeSnapshots(opts)
			}
			return nil
		}},
		{PhaseCodegen, func() error { return res.codegen(opts) }},
	}
	for _, p := range phases {
		if p.phase > upto {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		emit(opts.Progress, opts.Files, p.phase, StatusWorking, nil, 0)
		ps := trace.Begin(tracer, trace.ScopePass, p.phase.String(), span.ID())
		idx := timer.begin(p.phase.String())
		err := p.run()
		timer.end(idx, "")
		ps.End("")
		res.Reached = p.phase
		status := StatusDone
		if err != nil {
			status = StatusError
		}
		emit(opts.Progress, opts.Files, p.phase, status, err, time.Since(start))
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Result) instantiate(opts *Options) error {
	if opts.Standalone == "" {
		r.Instances = instantiate.InstantiateAll(r.Linker)
		return nil
	}
	g, candidates, ok := r.Linker.Lookup(opts.Standalone)
	switch {
	case !ok && len(candidates) > 1:
		return fmt.Errorf("module %q is ambiguous", opts.Standalone)
	case !ok:
		return fmt.Errorf("no module named %q", opts.Standalone)
	case g.Kind != ir.GlobalModule:
		return fmt.Errorf("%q is not a module", opts.Standalone)
	}
	m := r.Linker.Module(g.Module())
	if m.Parameters.Len() != 0 {
		return fmt.Errorf("module %q takes template arguments and cannot be the top module", opts.Standalone)
	}
	inst, err := instantiate.Instantiate(r.Linker, g.Module(), nil)
	if err != nil {
		return err
	}
	r.Instances = []*instantiate.Instance{inst}
	return nil
}

// traceInstances emits one point per instance and one node event per
// instance error.
func (r *Result) traceInstances(t trace.Tracer) {
	if !t.Enabled() {
		return
	}
	for _, inst := range r.AllInstances() {
		trace.Point(t, trace.ScopeGlobal, "inst:"+inst.Name, fmt.Sprintf("%d wires", inst.Wires.Len()))
		for _, d := range inst.Errors.Items() {
			trace.Node(t, "inst:"+inst.Name, d.Primary)
		}
	}
}

// AllInstances returns every instance created during the compilation,
// submodule instances included.
func (r *Result) AllInstances() []*instantiate.Instance {
	var out []*instantiate.Instance
	for _, m := range r.Linker.Modules.All() {
		out = append(out, instantiate.Instances(*m)...)
	}
	return out
}

// Diagnostics gathers the diagnostics of every file and instance, sorted
// and without duplicates.
func (r *Result) Diagnostics() *diag.Bag {
	bag := diag.NewBag(r.max)
	if r.Linker == nil {
		return bag
	}
	for fd := range r.Linker.FilesInOrder() {
		bag.Merge(r.Linker.Diagnostics(fd.ID))
	}
	for _, inst := range r.AllInstances() {
		bag.Merge(inst.Errors)
	}
	bag.Sort()
	bag.Dedup()
	return bag
}

// HasErrors reports whether any error diagnostic was emitted.
func (r *Result) HasErrors() bool {
	if r.Linker == nil {
		return false
	}
	if r.Linker.HasErrors() {
		return true
	}
	for _, inst := range r.AllInstances() {
		if inst.HasErrors() {
			return true
		}
	}
	return false
}
