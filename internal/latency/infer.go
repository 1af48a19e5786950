package latency

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-set/v3"
)

// Candidate proposes a value for a latency variable: the variable times
// Factor plus Offset must fit between the latencies of From and To.
// From is an input of a submodule, To one of its outputs.
type Candidate struct {
	Factor int64 `msgpack:"factor"`
	From   int   `msgpack:"from"`
	To     int   `msgpack:"to"`
	Offset int64 `msgpack:"offset"`
	// Target indexes the value this candidate infers.
	Target int `msgpack:"target"`
}

// ValueToInfer accumulates the candidates for one latency variable. A
// variable used with a positive factor takes the smallest candidate, one
// used with a negative factor the largest, so the result satisfies all of
// them.
type ValueToInfer struct {
	value    int64
	spoiled  bool
	positive bool
}

// NewValueToInfer prepares a variable for inference.
func NewValueToInfer(positive bool) ValueToInfer {
	v := ValueToInfer{positive: positive, value: math.MinInt64}
	if positive {
		v.value = math.MaxInt64
	}
	return v
}

// Get returns the inferred value, if one was found.
func (v *ValueToInfer) Get() (int64, bool) {
	if v.spoiled || v.value == math.MaxInt64 || v.value == math.MinInt64 {
		return 0, false
	}
	return v.value, true
}

func (v *ValueToInfer) apply(candidate int64) {
	if v.spoiled {
		return
	}
	if v.positive {
		v.value = min(v.value, candidate)
	} else {
		v.value = max(v.value, candidate)
	}
}

// Spoil marks the variable as not inferable.
func (v *ValueToInfer) Spoil() { v.spoiled = true }

// inferencePorts treats candidate destinations as inputs and sources as
// outputs, so solving them yields the room available on each edge.
func inferencePorts(candidates []Candidate) Ports {
	var ports Ports
	inputs := set.New[int](len(candidates))
	outputs := set.New[int](len(candidates))
	for _, c := range candidates {
		if inputs.Insert(c.To) {
			ports.Push(c.To, true)
		}
	}
	for _, c := range candidates {
		if inputs.Contains(c.From) {
			panic(fmt.Sprintf("latency: inference port %d is both input and output", c.From))
		}
		if outputs.Insert(c.From) {
			ports.Push(c.From, false)
		}
	}
	return ports
}

// Infer computes values for latency variables from the given candidates.
// Candidates whose endpoints are not in one partial solution spoil their
// variable.
func Infer(p *Problem, candidates []Candidate, values []ValueToInfer) error {
	if len(p.Fanins) == 0 || len(candidates) == 0 {
		return nil
	}
	fanins := p.Fanins.Clone()
	fanins.AddCycle(p.Specified)

	if err := findPositiveCycle(fanins, p.Specified); err != nil {
		return err
	}

	partials, err := solvePorts(fanins.Complement(), &p.Ports)
	if err != nil {
		return err
	}
	for _, ps := range partials {
		fanins.AddCycle(ps)
	}
	fanouts := fanins.Complement()

	ports := inferencePorts(candidates)
	solutions, err := solvePorts(fanouts, &ports)
	if err != nil {
		return err
	}

	for _, c := range candidates {
		found := false
		for _, sol := range solutions {
			from, okFrom := lookupSpecified(sol, c.From)
			to, okTo := lookupSpecified(sol, c.To)
			if !okFrom || !okTo {
				continue
			}
			if found {
				panic("latency: candidate found in two partial solutions")
			}
			found = true
			values[c.Target].apply((to - from - c.Offset) / c.Factor)
		}
		if !found {
			values[c.Target].Spoil()
		}
	}
	return nil
}
