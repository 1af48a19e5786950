package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"sus/internal/diag"
	"sus/internal/source"
)

type palette struct {
	err, warn, info, note, path, gutter, caret *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		err:    mk(color.FgRed, color.Bold),
		warn:   mk(color.FgYellow, color.Bold),
		info:   mk(color.FgCyan, color.Bold),
		note:   mk(color.FgBlue),
		path:   mk(color.Bold),
		gutter: mk(color.FgBlue),
		caret:  mk(color.FgGreen, color.Bold),
	}
}

func (p palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty renders the bag in a human readable form:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//	   |
//	12 | reg int x = y
//	   |         ^~~~~
//
// followed by the notes in the same layout. The bag is expected to be sorted.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		writeOne(w, p, d, fs, opts)
	}
}

func writeOne(w io.Writer, p palette, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	start, _ := fs.Resolve(d.Primary)
	path := displayPath(fs.Get(d.Primary.File), opts.PathMode)
	sev := p.severity(d.Severity)
	fmt.Fprintf(w, "%s: %s %s: %s\n",
		p.path.Sprintf("%s:%d:%d", path, start.Line, start.Col),
		sev.Sprint(d.Severity.String()),
		d.Code.ID(),
		d.Message,
	)
	writeSnippet(w, p, sev, d.Primary, fs, opts.Context)
	if !opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		ns, _ := fs.Resolve(n.Span)
		np := displayPath(fs.Get(n.Span.File), opts.PathMode)
		fmt.Fprintf(w, "  %s %s: %s\n", p.note.Sprint("note:"), p.path.Sprintf("%s:%d:%d", np, ns.Line, ns.Col), n.Msg)
		writeSnippet(w, p, p.note, n.Span, fs, 0)
	}
}

func writeSnippet(w io.Writer, p palette, underline *color.Color, sp source.Span, fs *source.FileSet, context int8) {
	f := fs.Get(sp.File)
	if f == nil {
		return
	}
	start, end := fs.Resolve(sp)
	first := start.Line
	if context > 0 {
		if uint32(context) < first {
			first -= uint32(context)
		} else {
			first = 1
		}
	}
	width := len(fmt.Sprint(start.Line))
	pad := strings.Repeat(" ", width)
	fmt.Fprintf(w, "%s %s\n", pad, p.gutter.Sprint("|"))
	for ln := first; ln < start.Line; ln++ {
		fmt.Fprintf(w, "%*d %s %s\n", width, ln, p.gutter.Sprint("|"), f.Line(ln))
	}
	text := f.Line(start.Line)
	fmt.Fprintf(w, "%*d %s %s\n", width, start.Line, p.gutter.Sprint("|"), text)

	col := int(start.Col) - 1
	if col < 0 {
		col = 0
	}
	if col > len(text) {
		col = len(text)
	}
	n := 1
	if end.Line == start.Line && end.Col > start.Col {
		n = int(end.Col - start.Col)
	} else if end.Line > start.Line {
		n = len(text) - col
	}
	if n < 1 {
		n = 1
	}
	// keep tabs so the caret lines up with the source line
	lead := []byte(text[:col])
	for i, c := range lead {
		if c != '\t' {
			lead[i] = ' '
		}
	}
	marker := "^" + strings.Repeat("~", n-1)
	fmt.Fprintf(w, "%s %s %s%s\n", pad, p.gutter.Sprint("|"), lead, underline.Sprint(marker))
}

func displayPath(f *source.File, mode PathMode) string {
	if f == nil {
		return "<unknown>"
	}
	switch mode {
	case PathModeAbsolute:
		return f.Path
	case PathModeBasename:
		return filepath.Base(f.Path)
	default:
		return f.DisplayPath()
	}
}
