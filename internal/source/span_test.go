package source

import "testing"

func TestSpanCover(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want Span
	}{
		{"disjoint", Span{File: 1, Start: 2, End: 4}, Span{File: 1, Start: 8, End: 9}, Span{File: 1, Start: 2, End: 9}},
		{"nested", Span{File: 1, Start: 2, End: 10}, Span{File: 1, Start: 3, End: 4}, Span{File: 1, Start: 2, End: 10}},
		{"other file ignored", Span{File: 1, Start: 2, End: 4}, Span{File: 2, Start: 0, End: 9}, Span{File: 1, Start: 2, End: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Cover(tt.b); got != tt.want {
				t.Fatalf("Cover = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpanContains(t *testing.T) {
	s := Span{File: 0, Start: 5, End: 8}
	for off, want := range map[uint32]bool{4: false, 5: true, 7: true, 8: true, 9: false} {
		if got := s.Contains(off); got != want {
			t.Errorf("Contains(%d) = %v, want %v", off, got, want)
		}
	}
	if !s.ContainsSpan(Span{File: 0, Start: 6, End: 8}) {
		t.Errorf("expected nested span to be contained")
	}
	if s.ContainsSpan(Span{File: 1, Start: 6, End: 8}) {
		t.Errorf("span from another file must not be contained")
	}
}

func TestFileSetResolveAndUpdate(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.sus", []byte("module a {\r\n  int x\r\n}\n"))
	f := fs.Get(id)
	if f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("expected CRLF normalization flag")
	}
	start, end := fs.Resolve(Span{File: id, Start: 13, End: 16})
	if start != (LineCol{Line: 2, Col: 3}) || end != (LineCol{Line: 2, Col: 6}) {
		t.Fatalf("unexpected positions %v %v", start, end)
	}
	if got := f.Line(2); got != "  int x" {
		t.Fatalf("Line(2) = %q", got)
	}
	fs.Update(id, []byte("module b {}"))
	if got := fs.Text(Span{File: id, Start: 7, End: 8}); got != "b" {
		t.Fatalf("Text after update = %q", got)
	}
	if fs.Get(id).Version != 1 {
		t.Fatalf("expected version bump")
	}
	if got, ok := fs.Lookup("./a.sus"); !ok || got != id {
		t.Fatalf("Lookup failed: %v %v", got, ok)
	}
}
