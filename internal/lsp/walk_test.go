package lsp

import (
	"strings"
	"testing"

	"sus/internal/ir"
	"sus/internal/linker"
	"sus/internal/source"
	"sus/internal/testkit"
)

const walkSrc = `/// Adds one.
module inc {
	input int#(0, 7) i
	output int#(0, 8) o
	o = i + 1
}
module top {
	input int#(0, 7) x
	output int#(0, 8) y
	inc step
	step.i = x
	y = step.o
}
`

func buildWalk(t *testing.T) (*linker.Linker, source.FileID) {
	t.Helper()
	l := testkit.Build(t, walkSrc)
	id, ok := l.Files.Lookup("test.sus")
	if !ok {
		t.Fatal("test.sus not registered")
	}
	return l, id
}

// offsetOf returns the offset of the nth occurrence of needle plus skip.
func offsetOf(t *testing.T, src, needle string, nth, skip int) uint32 {
	t.Helper()
	off := -1
	for range nth + 1 {
		i := strings.Index(src[off+1:], needle)
		if i < 0 {
			t.Fatalf("%q occurs fewer than %d times", needle, nth+1)
		}
		off += i + 1
	}
	return safeUint32(off + skip)
}

func mustAt(t *testing.T, locs []Location, off uint32) Location {
	t.Helper()
	loc, ok := At(locs, off)
	if !ok {
		t.Fatalf("no name at offset %d", off)
	}
	return loc
}

func TestWalkSubmoduleReferences(t *testing.T) {
	l, file := buildWalk(t)
	locs := Walk(l, file)

	decl := mustAt(t, locs, offsetOf(t, walkSrc, "inc step", 0, len("inc ")))
	if decl.Ref.Kind != RefLocal || !decl.IsDecl {
		t.Fatalf("submodule declaration: %+v", decl)
	}
	for nth, needle := range []string{"step.i", "step.o"} {
		use := mustAt(t, locs, offsetOf(t, walkSrc, needle, 0, 1))
		if use.Ref != decl.Ref || use.IsDecl {
			t.Fatalf("use %d of step: %+v, want %+v", nth, use, decl.Ref)
		}
	}
	if got := Occurrences(l, decl.Ref); len(got) != 3 {
		t.Fatalf("step occurs %d times: %+v", len(got), got)
	}
}

func TestWalkPortsAcrossModules(t *testing.T) {
	l, file := buildWalk(t)
	locs := Walk(l, file)

	g, _, ok := l.Lookup("inc")
	if !ok {
		t.Fatal("inc not found")
	}
	portDecl := mustAt(t, locs, offsetOf(t, walkSrc, "int#(0, 8) o", 0, len("int#(0, 8) ")))
	if portDecl.Ref.Kind != RefPort || portDecl.Ref.Global != g || !portDecl.IsDecl {
		t.Fatalf("port declaration: %+v", portDecl)
	}
	field := mustAt(t, locs, offsetOf(t, walkSrc, "step.o", 0, len("step.")))
	if field.Ref != portDecl.Ref {
		t.Fatalf("step.o refers to %+v, want %+v", field.Ref, portDecl.Ref)
	}
	// declaration, the write in inc and the read in top
	if got := Occurrences(l, portDecl.Ref); len(got) != 3 {
		t.Fatalf("o occurs %d times: %+v", len(got), got)
	}

	span, ok := Definition(l, field.Ref)
	if !ok || span != portDecl.Span {
		t.Fatalf("definition of step.o = %v, want %v", span, portDecl.Span)
	}
}

func TestWalkGlobalReferences(t *testing.T) {
	l, file := buildWalk(t)
	locs := Walk(l, file)

	use := mustAt(t, locs, offsetOf(t, walkSrc, "inc step", 0, 1))
	g, _, _ := l.Lookup("inc")
	if use.Ref != (Referent{Kind: RefGlobal, Global: g}) || use.IsDecl {
		t.Fatalf("module use: %+v", use)
	}
	span, ok := Definition(l, use.Ref)
	if !ok || l.Files.Text(span) != "inc" || span.Start != offsetOf(t, walkSrc, "module inc", 0, len("module ")) {
		t.Fatalf("definition of inc: %v", span)
	}

	// int is declared in the prelude file, so its occurrences span files.
	intUse := mustAt(t, locs, offsetOf(t, walkSrc, "int#", 0, 1))
	if intUse.Ref.Kind != RefGlobal || intUse.Ref.Global.Kind != ir.GlobalType {
		t.Fatalf("int use: %+v", intUse)
	}
	inTest, declared := 0, false
	for _, o := range Occurrences(l, intUse.Ref) {
		switch {
		case o.Span.File == file:
			inTest++
		case o.IsDecl:
			declared = true
		}
	}
	if inTest != 4 || !declared {
		t.Fatalf("int occurs %d times in test.sus, declaration found: %v", inTest, declared)
	}
}

func TestWalkIsSortedAndUnique(t *testing.T) {
	l, file := buildWalk(t)
	locs := Walk(l, file)
	seen := make(map[source.Span]bool)
	for i, loc := range locs {
		if seen[loc.Span] {
			t.Fatalf("span %v yielded twice", loc.Span)
		}
		seen[loc.Span] = true
		if i > 0 && locs[i-1].Span.Start > loc.Span.Start {
			t.Fatalf("locations out of order at %d", i)
		}
		if loc.Span.File != file {
			t.Fatalf("location %v outside the walked file", loc.Span)
		}
	}
}
