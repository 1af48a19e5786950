package lsp

import (
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	"fortio.org/safecast"

	"sus/internal/source"
)

// safeUint32 clamps n into the uint32 range.
func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return ^uint32(0)
	}
	return v
}

// lineBounds returns the byte range of a 0-based line, without its '\n'.
func lineBounds(f *source.File, line int) (start, end uint32) {
	end = safeUint32(len(f.Content))
	if line > 0 {
		start = min(f.LineIdx[line-1]+1, end)
	}
	if line < len(f.LineIdx) {
		end = f.LineIdx[line]
	}
	return start, end
}

// utf16Len counts the UTF-16 code units of one decoded rune. Invalid bytes
// count as one unit each, the way editors display them.
func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// offsetForPositionInFile converts an LSP position, counted in UTF-16 code
// units, to a byte offset. Positions past a line end clamp to it.
func offsetForPositionInFile(f *source.File, pos position) uint32 {
	if f == nil || pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	if pos.Line > len(f.LineIdx) {
		return safeUint32(len(f.Content))
	}
	off, end := lineBounds(f, pos.Line)
	for units := 0; off < end; {
		r, size := utf8.DecodeRune(f.Content[off:end])
		units += utf16Len(r)
		if units > pos.Character {
			break
		}
		off += safeUint32(size)
	}
	return off
}

func positionForOffsetInFile(f *source.File, offset uint32) position {
	if f == nil {
		return position{}
	}
	offset = min(offset, safeUint32(len(f.Content)))
	line, _ := slices.BinarySearch(f.LineIdx, offset)
	start, _ := lineBounds(f, line)
	units := 0
	for off := start; off < offset; {
		r, size := utf8.DecodeRune(f.Content[off:offset])
		units += utf16Len(r)
		off += safeUint32(size)
	}
	return position{Line: line, Character: units}
}

func rangeForSpan(f *source.File, span source.Span) lspRange {
	if f == nil {
		return lspRange{}
	}
	return lspRange{Start: positionForOffsetInFile(f, span.Start), End: positionForOffsetInFile(f, span.End)}
}

// locationForSpan resolves a span of any file to an LSP location.
func locationForSpan(fs *source.FileSet, span source.Span) (location, bool) {
	f := fs.Get(span.File)
	if f == nil {
		return location{}, false
	}
	return location{URI: pathToURI(f.Path), Range: rangeForSpan(f, span)}, true
}
