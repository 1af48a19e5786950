package observ

import (
	"strings"
	"sync"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	i := tm.Begin("flatten")
	tm.End(i, "3 globals")
	tm.End(i, "ended twice")
	j := tm.Begin("typecheck")
	tm.End(j, "")
	tm.End(99, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "flatten" || r.Phases[0].Note != "3 globals" {
		t.Fatalf("unexpected report: %+v", r)
	}
	s := tm.Summary()
	if !strings.Contains(s, "3 globals") || !strings.Contains(s, "total") {
		t.Fatalf("summary:\n%s", s)
	}
}

func TestTimerConcurrentPhases(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() { tm.End(tm.Begin("parse"), "") })
	}
	wg.Wait()
	if got := len(tm.Report().Phases); got != 8 {
		t.Fatalf("recorded %d phases", got)
	}
}
