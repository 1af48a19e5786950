package diag

import (
	"testing"

	"sus/internal/source"
)

func TestBagCheckpointTruncate(t *testing.T) {
	b := NewBag(0)
	b.Add(New(SevWarning, TypeUnusedWire, source.Span{File: 1, Start: 0, End: 1}, "unused"))
	cp := b.Checkpoint()
	if b.ErrorsSince(cp) {
		t.Fatalf("no errors expected after checkpoint")
	}
	ReportError(BagReporter{Bag: b}, TypeMismatch, source.Span{File: 1, Start: 2, End: 3}, "mismatch").
		WithNote(source.Span{File: 1, Start: 0, End: 1}, "declared here").
		Emit()
	if !b.ErrorsSince(cp) || !b.HasErrors() {
		t.Fatalf("expected error after checkpoint")
	}
	if got := len(b.Items()[1].Notes); got != 1 {
		t.Fatalf("expected 1 note, got %d", got)
	}
	b.Truncate(cp)
	if b.Len() != 1 || b.HasErrors() {
		t.Fatalf("truncate failed: len=%d", b.Len())
	}
}

func TestBagSortDedup(t *testing.T) {
	b := NewBag(0)
	sp1 := source.Span{File: 1, Start: 10, End: 12}
	sp2 := source.Span{File: 1, Start: 2, End: 4}
	b.Add(NewError(NameNotFound, sp1, "x"))
	b.Add(NewError(NameNotFound, sp1, "x"))
	b.Add(NewError(NameNotFound, sp2, "y"))
	b.Dedup()
	if b.Len() != 2 {
		t.Fatalf("dedup: want 2, got %d", b.Len())
	}
	b.Sort()
	if b.Items()[0].Primary != sp2 {
		t.Fatalf("sort: want %v first, got %v", sp2, b.Items()[0].Primary)
	}
}

func TestBagLimit(t *testing.T) {
	b := NewBag(1)
	if !b.Add(NewError(GenIndexOOB, source.Span{}, "a")) {
		t.Fatalf("first add must succeed")
	}
	if b.Add(NewError(GenIndexOOB, source.Span{}, "b")) {
		t.Fatalf("second add must be rejected")
	}
}

func TestCodeID(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{LexUnknownChar, "LEX1001"},
		{NameNotFound, "NAM3001"},
		{LatNetPositiveCycle, "LAT7001"},
		{PostIndexOOB, "CHK8002"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Errorf("%d: want %s, got %s", tt.code, tt.want, got)
		}
	}
}
