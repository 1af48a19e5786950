package trace

import (
	"bytes"
	"strings"
	"testing"

	"sus/internal/source"
)

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		r.Emit(&Event{Kind: KindPoint, Scope: ScopeNode, Name: name})
	}
	got := r.Snapshot()
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "c" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelPhase, FormatText)
	sp := Begin(st, ScopePass, "typecheck", 0)
	Point(st, ScopeNode, "instr", "")
	sp.End("")
	out := buf.String()
	if !strings.Contains(out, "> typecheck") || !strings.Contains(out, "< typecheck") {
		t.Fatalf("missing pass events:\n%s", out)
	}
	if strings.Contains(out, "instr") {
		t.Fatalf("node event leaked at phase level:\n%s", out)
	}
}

func TestNodeEventsCarrySpans(t *testing.T) {
	ResetHistory()
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDebug, Mode: ModeBoth, Output: &buf, Format: FormatNDJSON, RingSize: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sp := source.Span{File: 1, Start: 4, End: 9}
	Node(tr, "flatten", sp)

	if !strings.Contains(buf.String(), `"scope":"node"`) || !strings.Contains(buf.String(), `"start":4`) {
		t.Fatalf("unexpected stream output: %s", buf.String())
	}
	ring := Ring(tr)
	if ring == nil {
		t.Fatal("both mode keeps a ring")
	}
	if got := ring.Snapshot(); len(got) != 1 || got[0].At != sp {
		t.Fatalf("ring holds %+v", got)
	}
	if h := History(); len(h) != 1 || h[0].Span != sp {
		t.Fatalf("history holds %+v", h)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLevel("Detail"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("unknown level accepted")
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Fatal("unknown mode accepted")
	}
	if tr, err := New(Config{Level: LevelOff}); err != nil || tr.Enabled() {
		t.Fatalf("off level must give Nop: %v", err)
	}
}

func TestGuardDumpsHistory(t *testing.T) {
	ResetHistory()
	fs := source.NewFileSet()
	id := fs.AddVirtual("g.sus", []byte("module g {}\n"))
	Touch("flatten", source.Span{File: id, Start: 7, End: 8})

	var buf bytes.Buffer
	DumpHistory(&buf, fs)
	if !strings.Contains(buf.String(), "g.sus:1:8 `g`") {
		t.Fatalf("unexpected dump:\n%s", buf.String())
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("Guard must re-panic")
		}
	}()
	func() {
		defer Guard(fs)
		panic("boom")
	}()
}

func TestHistoryKeepsMostRecent(t *testing.T) {
	ResetHistory()
	for i := range historySize + 3 {
		Touch("x", source.Span{Start: uint32(i)})
	}
	h := History()
	if len(h) != historySize || h[0].Span.Start != 3 {
		t.Fatalf("unexpected history: len=%d first=%d", len(h), h[0].Span.Start)
	}
}
