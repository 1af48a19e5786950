package lsp

import (
	"testing"

	"sus/internal/source"
)

func TestPositionsCountUTF16Units(t *testing.T) {
	fs := source.NewFileSet()
	// 'é' is two bytes and one unit, the emoji four bytes and two units.
	id := fs.AddVirtual("u.sus", []byte("ab\né😀x\n"))
	f := fs.Get(id)

	tests := []struct {
		off uint32
		pos position
	}{
		{0, position{0, 0}},
		{2, position{0, 2}},
		{3, position{1, 0}},
		{5, position{1, 1}},
		{9, position{1, 3}},
		{10, position{1, 4}},
		{11, position{2, 0}},
	}
	for _, tt := range tests {
		if got := positionForOffsetInFile(f, tt.off); got != tt.pos {
			t.Fatalf("position of %d = %+v, want %+v", tt.off, got, tt.pos)
		}
		if got := offsetForPositionInFile(f, tt.pos); got != tt.off {
			t.Fatalf("offset of %+v = %d, want %d", tt.pos, got, tt.off)
		}
	}
}

func TestOffsetClamps(t *testing.T) {
	fs := source.NewFileSet()
	f := fs.Get(fs.AddVirtual("c.sus", []byte("abc\nde")))
	tests := []struct {
		pos  position
		want uint32
	}{
		{position{0, 99}, 3},
		{position{1, 99}, 6},
		{position{7, 0}, 6},
		{position{-1, 0}, 0},
	}
	for _, tt := range tests {
		if got := offsetForPositionInFile(f, tt.pos); got != tt.want {
			t.Fatalf("offset of %+v = %d, want %d", tt.pos, got, tt.want)
		}
	}
}
