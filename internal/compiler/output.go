package compiler

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"

	"sus/internal/codegen"
	"sus/internal/latency"
	"sus/internal/linker"
	"sus/internal/project"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	MaxDepth:                5,
}

// dumpGlobals writes the instruction stream of every global to w.
func dumpGlobals(w io.Writer, l *linker.Linker) error {
	if w == nil {
		return nil
	}
	for g := range l.Globals() {
		li := l.LinkInfo(g)
		if li == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "=== %s %s ===\n", g.Kind, li.Name); err != nil {
			return err
		}
		for id, instr := range li.Instructions.All() {
			if _, err := fmt.Fprintf(w, "%d: %s", id, dumpConfig.Sdump(instr)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Options) outDir() string {
	if o.OutDir != "" {
		return o.OutDir
	}
	return project.DefaultOutDir
}

func (o *Options) header() string {
	var now time.Time
	if o.Now != nil {
		now = o.Now()
	}
	return codegen.Header(now)
}

// codegen writes SystemVerilog. Instances with errors are skipped: their
// diagnostics already explain why.
func (r *Result) codegen(opts *Options) error {
	if !opts.Codegen && opts.Standalone == "" {
		return nil
	}
	dir := opts.outDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if opts.Standalone != "" {
		var buf bytes.Buffer
		buf.WriteString(opts.header())
		buf.WriteString("\n")
		if err := codegen.WriteAll(&buf, r.Linker, codegen.Order(r.Instances...)); err != nil {
			return err
		}
		return r.write(filepath.Join(dir, codegen.FileName(opts.Standalone, codegen.Extension)), buf.Bytes())
	}
	for _, inst := range codegen.Order(r.Instances...) {
		if inst.HasErrors() {
			continue
		}
		code, err := codegen.EmitInstance(r.Linker, inst)
		if err != nil {
			return err
		}
		content := opts.header() + "\n" + code
		if err := r.write(filepath.Join(dir, codegen.FileName(inst.Name, codegen.Extension)), []byte(content)); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotExtension is the file extension of latency snapshots.
const SnapshotExtension = ".latency.msgpack"

// writeSnapshots stores the latency problem of every instance that got far
// enough to build one.
func (r *Result) writeSnapshots(opts *Options) error {
	dir := opts.outDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	for _, inst := range r.AllInstances() {
		p := inst.LatencyProblem
		if inst.FailedLatency != nil {
			p = inst.FailedLatency
		}
		if p == nil {
			continue
		}
		var buf bytes.Buffer
		if err := latency.WriteSnapshot(&buf, inst.Name, p, nil, inst.NodeNames()); err != nil {
			return fmt.Errorf("latency snapshot of %s: %w", inst.Name, err)
		}
		if err := r.write(filepath.Join(dir, codegen.FileName(inst.Name, SnapshotExtension)), buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) write(path string, content []byte) error {
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	r.Written = append(r.Written, path)
	return nil
}

// ReadSnapshot loads a snapshot written with --debug-latency.
func ReadSnapshot(path string) (*latency.Snapshot, error) {
	f, err := os.Open(path) // #nosec G304 -- user supplied debug file
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return latency.ReadSnapshot(f)
}
