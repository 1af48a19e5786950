package ui

import (
	"strings"
	"testing"
	"time"

	"sus/internal/compiler"
)

func feed(m *progressModel, events ...compiler.Event) {
	for _, ev := range events {
		m.Update(eventMsg(ev))
	}
}

func TestProgressTracksPhases(t *testing.T) {
	m := NewProgressModel("compiling", []string{"a.sus", "b.sus"}, compiler.PhaseTypecheck, nil).(*progressModel)
	if len(m.phases) != 3 {
		t.Fatalf("pipeline has %d phases, want 3", len(m.phases))
	}
	feed(m,
		compiler.Event{File: "a.sus", Status: compiler.StatusDone},
		compiler.Event{File: "b.sus", Status: compiler.StatusWorking},
	)
	if got := m.fraction(); got != 0.5/4 {
		t.Fatalf("fraction after one parse = %v", got)
	}
	feed(m,
		compiler.Event{File: "b.sus", Status: compiler.StatusDone},
		compiler.Event{Phase: compiler.PhaseInitialize, Status: compiler.StatusDone, Elapsed: 3 * time.Millisecond},
		compiler.Event{File: "a.sus", Phase: compiler.PhaseFlatten, Status: compiler.StatusError},
	)
	if got := m.fraction(); got != 2.0/4 {
		t.Fatalf("fraction after initialize = %v", got)
	}
	if m.phases[1].status != compiler.StatusQueued {
		t.Fatalf("per-file phase events must not move the pipeline: %+v", m.phases[1])
	}
	if !m.failed {
		t.Fatal("an error event marks the run failed")
	}

	m.Update(doneMsg{})
	view := m.View()
	for _, want := range []string{"failed: compiling", "parsed", "initialize 3ms", "typecheck"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view misses %q:\n%s", want, view)
		}
	}
}

func TestTruncateKeepsFileName(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"top.sus", 20, "top.sus"},
		{"/very/long/path/to/top.sus", 10, "...top.sus"},
		{"abcdef", 2, "ef"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
