package diagfmt

import (
	"encoding/json"
	"io"

	"sus/internal/diag"
	"sus/internal/source"
)

// Point is one end of a span. Line and Col are 1-based and omitted when
// positions were not requested.
type Point struct {
	Byte uint32 `json:"byte"`
	Line uint32 `json:"line,omitempty"`
	Col  uint32 `json:"col,omitempty"`
}

// Location is a span rendered for machines.
type Location struct {
	File  string `json:"file"`
	Start Point  `json:"start"`
	End   Point  `json:"end"`
}

// Info is a secondary location attached to a diagnostic.
type Info struct {
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

// Record is one diagnostic.
type Record struct {
	Severity string   `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
	Infos    []Info   `json:"infos,omitempty"`
}

// Document is what JSON writes.
type Document struct {
	Diagnostics []Record `json:"diagnostics"`
	Errors      int      `json:"errors"`
	Warnings    int      `json:"warnings"`
	Truncated   bool     `json:"truncated,omitempty"`
}

type locator struct {
	fs   *source.FileSet
	opts JSONOpts
}

func (l locator) at(span source.Span) Location {
	loc := Location{
		File:  displayPath(l.fs.Get(span.File), l.opts.PathMode),
		Start: Point{Byte: span.Start},
		End:   Point{Byte: span.End},
	}
	if l.opts.IncludePositions {
		from, to := l.fs.Resolve(span)
		loc.Start.Line, loc.Start.Col = from.Line, from.Col
		loc.End.Line, loc.End.Col = to.Line, to.Col
	}
	return loc
}

// Collect converts the bag into a Document. Severity totals always count the
// whole bag, even when Max cuts the list short.
func Collect(bag *diag.Bag, fs *source.FileSet, opts JSONOpts) Document {
	loc := locator{fs: fs, opts: opts}
	var doc Document
	for i, d := range bag.Items() {
		switch d.Severity {
		case diag.SevError:
			doc.Errors++
		case diag.SevWarning:
			doc.Warnings++
		}
		if opts.Max > 0 && i >= opts.Max {
			doc.Truncated = true
			continue
		}
		rec := Record{
			Severity: d.Severity.String(),
			Code:     d.Code.ID(),
			Message:  d.Message,
			Location: loc.at(d.Primary),
		}
		if opts.IncludeNotes {
			for _, n := range d.Notes {
				rec.Infos = append(rec.Infos, Info{Message: n.Msg, Location: loc.at(n.Span)})
			}
		}
		doc.Diagnostics = append(doc.Diagnostics, rec)
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []Record{}
	}
	return doc
}

// JSON writes the diagnostics as one indented document.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Collect(bag, fs, opts))
}
