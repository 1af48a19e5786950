package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sus/internal/diag"
	"sus/internal/observ"
	"sus/internal/testkit"
)

const adderSrc = `module adder {
	input int#(0, 7) a
	input int#(0, 7) b
	output int c
	c = a + b
}
`

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) saw(phase Phase, status Status) bool {
	for _, ev := range r.events {
		if ev.File == "" && ev.Phase == phase && ev.Status == status {
			return true
		}
	}
	return false
}

func TestCompileCodegen(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	rec := &recorder{}
	timer := observ.NewTimer()
	res, err := Compile(context.Background(), &Options{
		Files:    []string{writeSource(t, dir, "adder.sus", adderSrc)},
		Codegen:  true,
		OutDir:   out,
		Progress: rec,
		Timer:    timer,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.HasErrors() {
		t.Fatalf("unexpected diagnostics:\n%s", testkit.Dump(res.Diagnostics().Items()))
	}
	if res.Reached != PhaseCodegen {
		t.Fatalf("reached %s", res.Reached)
	}
	want := filepath.Join(out, "adder.sv")
	if len(res.Written) != 1 || res.Written[0] != want {
		t.Fatalf("written %v", res.Written)
	}
	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(content), "// THIS IS A GENERATED FILE\n") || !strings.Contains(string(content), "module adder(") {
		t.Fatalf("output:\n%s", content)
	}
	if !rec.saw(PhaseCodegen, StatusDone) || !rec.saw(PhaseInitialize, StatusWorking) {
		t.Fatalf("missing phase events: %+v", rec.events)
	}
	if len(timer.Report().Phases) != 7 {
		t.Fatalf("timings %s", timer.Summary())
	}
}

func TestUpto(t *testing.T) {
	dir := t.TempDir()
	res, err := Compile(context.Background(), &Options{
		Files:   []string{writeSource(t, dir, "adder.sus", adderSrc)},
		Upto:    PhaseFlatten,
		Codegen: true,
		OutDir:  filepath.Join(dir, "out"),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.Reached != PhaseFlatten || res.Instances != nil || len(res.Written) != 0 {
		t.Fatalf("ran past flatten: reached %s, %d instances", res.Reached, len(res.Instances))
	}
}

func TestStandalone(t *testing.T) {
	dir := t.TempDir()
	src := `module inner {
	input int#(0, 3) i
	output int#(0, 3) o
	o = i
}
module top {
	input int#(0, 3) x
	output int#(0, 3) y
	y = inner(x)
}
`
	out := filepath.Join(dir, "out")
	res, err := Compile(context.Background(), &Options{
		Files:      []string{writeSource(t, dir, "top.sus", src)},
		Standalone: "top",
		OutDir:     out,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Written) != 1 {
		t.Fatalf("written %v", res.Written)
	}
	content, err := os.ReadFile(filepath.Join(out, "top.sv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	s := string(content)
	inner, top := strings.Index(s, "module inner("), strings.Index(s, "module top(")
	if inner < 0 || top < 0 || inner > top {
		t.Fatalf("output:\n%s", s)
	}
}

func TestStandaloneErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "adder.sus", adderSrc)
	for _, name := range []string{"missing", "int"} {
		_, err := Compile(context.Background(), &Options{Files: []string{path}, Standalone: name, OutDir: dir})
		if err == nil {
			t.Fatalf("standalone %q: expected an error", name)
		}
	}
}

func TestDiagnosticsIncludeInstances(t *testing.T) {
	dir := t.TempDir()
	res, err := Compile(context.Background(), &Options{
		Files: []string{writeSource(t, dir, "m.sus", "module m {\n\tgen int z = 0\n\tgen int x = 4 / z\n}\n")},
		Upto:  PhaseInstantiate,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !res.HasErrors() || res.Linker.HasErrors() {
		t.Fatalf("the error belongs to the instance only")
	}
	if len(testkit.WithCode(res.Diagnostics(), diag.GenDivideByZero)) != 1 {
		t.Fatalf("diagnostics:\n%s", testkit.Dump(res.Diagnostics().Items()))
	}
}

func TestEmbeddedStd(t *testing.T) {
	dir := t.TempDir()
	src := `module m {
	gen int w = comb #(N: 5, K: 2)
	output int o
	o = w
}
`
	res, err := Compile(context.Background(), &Options{
		Files: []string{writeSource(t, dir, "m.sus", src)},
		Upto:  PhaseInstantiate,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.HasErrors() {
		t.Fatalf("unexpected diagnostics:\n%s", testkit.Dump(res.Diagnostics().Items()))
	}
	_, o := res.Instances[0].WireNamed("o")
	if o == nil || o.Bounds == nil || o.Bounds.Min.Int64() != 10 || o.Bounds.Max.Int64() != 10 {
		t.Fatalf("o %+v", o)
	}
	for fd := range res.Linker.FilesInOrder() {
		if err := testkit.CheckSpanInvariants(res.Linker, fd.ID); err != nil {
			t.Fatalf("%s: %v", res.Linker.Files.Get(fd.ID).Path, err)
		}
	}
}

func TestStdDirOverride(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "core.sus", testkit.Prelude)
	t.Setenv(StdEnv, dir)
	if got := StdDir(); got != dir {
		t.Fatalf("StdDir() = %q", got)
	}
	files, err := stdSources(dir)
	if err != nil || len(files) != 1 || files[0].path != filepath.Join(dir, "core.sus") {
		t.Fatalf("sources %+v, err %v", files, err)
	}
	if _, err := stdSources(t.TempDir()); err == nil {
		t.Fatalf("an empty std dir must be rejected")
	}
}

func TestDebugLatency(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	res, err := Compile(context.Background(), &Options{
		Files:        []string{writeSource(t, dir, "adder.sus", adderSrc)},
		Upto:         PhaseInstantiate,
		DebugLatency: true,
		OutDir:       out,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Written) != 1 {
		t.Fatalf("written %v", res.Written)
	}
	snap, err := ReadSnapshot(res.Written[0])
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Module != "adder" || len(snap.Names) != res.Instances[0].Wires.Len() {
		t.Fatalf("snapshot %s", testkit.Dump(snap))
	}
}

func TestDebugDump(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	if _, err := Compile(context.Background(), &Options{
		Files: []string{writeSource(t, dir, "adder.sus", adderSrc)},
		Upto:  PhaseFlatten,
		Debug: &sb,
	}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(sb.String(), "adder ===") {
		t.Fatalf("dump lacks the adder module:\n%s", sb.String())
	}
}

func TestNoSources(t *testing.T) {
	if _, err := Compile(context.Background(), &Options{}); !errors.Is(err, ErrNoSources) {
		t.Fatalf("got %v", err)
	}
	if _, err := FindSources(t.TempDir()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("got %v", err)
	}
}

func TestMissingFile(t *testing.T) {
	_, err := Compile(context.Background(), &Options{Files: []string{filepath.Join(t.TempDir(), "nope.sus")}})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v", err)
	}
}

func TestParsePhase(t *testing.T) {
	for p := PhaseInitialize; p <= PhaseCodegen; p++ {
		got, err := ParsePhase(p.String())
		if err != nil || got != p {
			t.Fatalf("ParsePhase(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParsePhase("link"); err == nil {
		t.Fatalf("expected an error")
	}
}
