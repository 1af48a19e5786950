package compiler

import "sus/internal/observ"

type phaseTimer struct{ *observ.Timer }

func (t phaseTimer) begin(name string) int {
	if t.Timer == nil {
		return -1
	}
	return t.Begin(name)
}

func (t phaseTimer) end(idx int, note string) {
	if t.Timer != nil {
		t.End(idx, note)
	}
}
