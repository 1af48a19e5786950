package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"sus/internal/linker"
	"sus/internal/source"
)

// CheckSpanInvariants runs a minimal set of span invariants on a linked file:
// 1) every global span is non-empty and within file content bounds
// 2) every global name span lies inside its global span
// 3) every instruction span lies inside the span of its global
func CheckSpanInvariants(l *linker.Linker, id source.FileID) error {
	if l == nil {
		return fmt.Errorf("nil linker")
	}
	fd, sf := l.File(id), l.Files.Get(id)
	if fd == nil || sf == nil {
		return fmt.Errorf("file %d not found", id)
	}
	lenContent, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	for _, g := range fd.Globals {
		li := l.LinkInfo(g)
		if li == nil {
			return fmt.Errorf("nil link info for %v", g)
		}
		sp := li.Span
		if sp.End <= sp.Start {
			return fmt.Errorf("%s: empty span: %v", li.Name, sp)
		}
		if sp.File != id {
			return fmt.Errorf("%s: span file mismatch: got=%d want=%d", li.Name, sp.File, id)
		}
		if sp.End > lenContent {
			return fmt.Errorf("%s: span end beyond content: %d > %d", li.Name, sp.End, lenContent)
		}
		if !sp.ContainsSpan(li.NameSpan) {
			return fmt.Errorf("%s: name span %v is outside %v", li.Name, li.NameSpan, sp)
		}
		for fid, instr := range li.Instructions.All() {
			if instr.Span.File != id {
				return fmt.Errorf("%s: instruction %d points to file %d", li.Name, fid, instr.Span.File)
			}
			if !sp.ContainsSpan(instr.Span) {
				return fmt.Errorf("%s: instruction %d span %v is outside %v", li.Name, fid, instr.Span, sp)
			}
		}
	}
	return nil
}
