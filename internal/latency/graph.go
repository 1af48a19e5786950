// Package latency assigns absolute latencies to the wires of an instantiated
// module and infers latency template arguments of submodules.
//
// The problem is a graph of nodes (wires) connected by edges carrying the
// minimal latency difference between their endpoints. Ports are pulled
// together as tightly as possible: inputs as late and outputs as early as
// the graph allows. Every other node ends up as early as possible.
package latency

import (
	"fmt"
	"math"
	"slices"
)

const (
	unset  int64 = math.MinInt64
	poison int64 = math.MaxInt64

	// SeedOffset separates disjoint partial solutions so they are easy to
	// tell apart in the output.
	SeedOffset int64 = 1000
)

// IsValid reports whether a solved latency is a real value.
func IsValid(l int64) bool { return l != unset && l != poison }

// Edge is one connection in a fanin or fanout list. Node is the other
// endpoint: the source in a fanin list, the destination in a fanout list.
// A poisoned edge has an unknown delta.
type Edge struct {
	Node   int   `msgpack:"n"`
	Delta  int64 `msgpack:"d"`
	Poison bool  `msgpack:"p,omitempty"`
}

// Fan is a minimal-latency edge.
func Fan(node int, delta int64) Edge { return Edge{Node: node, Delta: delta} }

// Poisoned is an edge of unknown latency.
func Poisoned(node int) Edge { return Edge{Node: node, Poison: true} }

// Graph holds one edge list per node.
type Graph [][]Edge

// NewGraph allocates a graph of n nodes without edges.
func NewGraph(n int) Graph { return make(Graph, n) }

// Connect adds the edge from -> to with the given minimal delta. g must be a
// fanin graph.
func (g Graph) Connect(from, to int, delta int64) {
	g[to] = append(g[to], Fan(from, delta))
}

// ConnectPoison adds a poisoned edge from -> to. g must be a fanin graph.
func (g Graph) ConnectPoison(from, to int) {
	g[to] = append(g[to], Poisoned(from))
}

// Clone copies the graph so edges can be added without touching g.
func (g Graph) Clone() Graph {
	out := make(Graph, len(g))
	for i, l := range g {
		out[i] = slices.Clone(l)
	}
	return out
}

// Complement turns fanins into fanouts and back.
func (g Graph) Complement() Graph {
	out := make(Graph, len(g))
	for node, l := range g {
		for _, e := range l {
			out[e.Node] = append(out[e.Node], Edge{Node: node, Delta: e.Delta, Poison: e.Poison})
		}
	}
	return out
}

// AddCycle pins the given nodes relative to each other by adding a cycle of
// edges whose deltas are the differences of their latencies. g must be a
// fanin graph.
func (g Graph) AddCycle(cycle []Specified) {
	if len(cycle) < 2 {
		return
	}
	prev := cycle[len(cycle)-1]
	for _, n := range cycle {
		g[n.Node] = append(g[n.Node], Edge{Node: prev.Node, Delta: n.Latency - prev.Latency})
		prev = n
	}
}

func (g Graph) hasPoison() bool {
	for _, l := range g {
		for _, e := range l {
			if e.Poison {
				return true
			}
		}
	}
	return false
}

// Specified is a node whose latency is fixed.
type Specified struct {
	Node    int   `msgpack:"n"`
	Latency int64 `msgpack:"l"`
}

func (s Specified) String() string { return fmt.Sprintf("%d'%d", s.Node, s.Latency) }

func lookupSpecified(list []Specified, node int) (int64, bool) {
	for _, s := range list {
		if s.Node == node {
			return s.Latency, true
		}
	}
	return 0, false
}

// Ports lists the port nodes, inputs first.
type Ports struct {
	Nodes        []int `msgpack:"nodes"`
	OutputsStart int   `msgpack:"outputs_start"`
}

// NewPorts builds a port list from separate inputs and outputs.
func NewPorts(inputs, outputs []int) Ports {
	nodes := make([]int, 0, len(inputs)+len(outputs))
	nodes = append(nodes, inputs...)
	nodes = append(nodes, outputs...)
	return Ports{Nodes: nodes, OutputsStart: len(inputs)}
}

// Push adds a port.
func (p *Ports) Push(node int, input bool) {
	if input {
		p.Nodes = slices.Insert(p.Nodes, p.OutputsStart, node)
		p.OutputsStart++
		return
	}
	p.Nodes = append(p.Nodes, node)
}

func (p *Ports) Inputs() []int  { return p.Nodes[:p.OutputsStart] }
func (p *Ports) Outputs() []int { return p.Nodes[p.OutputsStart:] }
