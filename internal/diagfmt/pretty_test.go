package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"sus/internal/diag"
	"sus/internal/source"
)

func sampleBag() (*diag.Bag, *source.FileSet) {
	fs := source.NewFileSet()
	content := []byte("module m {\n\tint x = y\n}\n")
	id := fs.AddVirtual("/work/src/m.sus", content)
	bag := diag.NewBag(0)
	start := uint32(strings.Index(string(content), "y"))
	decl := uint32(strings.Index(string(content), "x"))
	bag.Add(diag.NewError(diag.NameNotFound, source.Span{File: id, Start: start, End: start + 1}, "No Wire or Global of the name 'y' was found").
		WithNote(source.Span{File: id, Start: decl, End: decl + 1}, "while writing x"))
	return bag, fs
}

func TestPrettyLayout(t *testing.T) {
	bag, fs := sampleBag()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename, ShowNotes: true})
	out := buf.String()
	for _, want := range []string{
		"m.sus:2:10: error NAM3001: No Wire or Global of the name 'y' was found",
		"2 | \tint x = y",
		"\t        ^",
		"note: m.sus:2:6: while writing x",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrettyWithoutNotes(t *testing.T) {
	bag, fs := sampleBag()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	if strings.Contains(buf.String(), "note:") {
		t.Fatalf("notes should be hidden:\n%s", buf.String())
	}
}

func TestJSONPositions(t *testing.T) {
	bag, fs := sampleBag()
	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, IncludeNotes: true, PathMode: PathModeAbsolute}); err != nil {
		t.Fatalf("json: %v", err)
	}
	var out Document
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Errors != 1 || len(out.Diagnostics) != 1 || len(out.Diagnostics[0].Infos) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	loc := out.Diagnostics[0].Location
	if loc.File != "/work/src/m.sus" || loc.Start.Line != 2 || loc.Start.Col != 10 || loc.End.Col != 11 {
		t.Fatalf("unexpected location: %+v", loc)
	}
}

func TestJSONMaxKeepsTotals(t *testing.T) {
	bag, fs := sampleBag()
	bag.Add(diag.NewError(diag.NameNotFound, source.Span{File: bag.Items()[0].Primary.File, Start: 0, End: 1}, "second"))
	doc := Collect(bag, fs, JSONOpts{Max: 1})
	if len(doc.Diagnostics) != 1 || doc.Errors != 2 || !doc.Truncated {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Diagnostics[0].Infos != nil || doc.Diagnostics[0].Location.Start.Line != 0 {
		t.Fatalf("notes and positions are opt-in: %+v", doc.Diagnostics[0])
	}
}
