package trace

import (
	"fmt"
	"io"
	"os"
	"sync"

	"sus/internal/source"
)

// Touched is one entry of the span history.
type Touched struct {
	What string
	Span source.Span
}

const historySize = 32

// history is the one process-wide mutable object of the compiler: it only
// serves crash reports.
var history = struct {
	sync.Mutex
	items [historySize]Touched
	head  int
	n     int
}{}

// Touch records that a pass is working on sp.
func Touch(what string, sp source.Span) {
	history.Lock()
	history.items[history.head] = Touched{What: what, Span: sp}
	history.head = (history.head + 1) % historySize
	if history.n < historySize {
		history.n++
	}
	history.Unlock()
}

// History returns the recorded spans, oldest first.
func History() []Touched {
	history.Lock()
	defer history.Unlock()
	out := make([]Touched, 0, history.n)
	start := (history.head - history.n + historySize) % historySize
	for i := range history.n {
		out = append(out, history.items[(start+i)%historySize])
	}
	return out
}

// ResetHistory clears the span history.
func ResetHistory() {
	history.Lock()
	history.head, history.n = 0, 0
	history.Unlock()
}

// Guard prints the span history to stderr and re-panics when the calling
// function panics. Use as `defer trace.Guard(fs)`.
func Guard(fs *source.FileSet) {
	if r := recover(); r != nil {
		DumpHistory(os.Stderr, fs)
		panic(r)
	}
}

// DumpHistory writes the span history with resolved positions.
func DumpHistory(w io.Writer, fs *source.FileSet) {
	items := History()
	fmt.Fprintf(w, "internal compiler error; last %d touched spans:\n", len(items))
	for _, t := range items {
		loc := t.Span.String()
		if fs != nil {
			if f := fs.Get(t.Span.File); f != nil {
				start, _ := fs.Resolve(t.Span)
				loc = fmt.Sprintf("%s:%d:%d", f.DisplayPath(), start.Line, start.Col)
				if text := fs.Text(t.Span); text != "" && len(text) < 60 {
					loc += " `" + text + "`"
				}
			}
		}
		fmt.Fprintf(w, "  %-12s %s\n", t.What, loc)
	}
}
