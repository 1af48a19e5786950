package latency

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-set/v3"
)

// Problem is one latency counting problem.
type Problem struct {
	// Fanins holds, per node, the edges coming into it.
	Fanins    Graph       `msgpack:"fanins"`
	Ports     Ports       `msgpack:"ports"`
	Specified []Specified `msgpack:"specified"`
	// PortsPerDomain groups the port nodes of each clock domain. Every port
	// of a domain must be reachable from the others.
	PortsPerDomain [][]int `msgpack:"ports_per_domain,omitempty"`
}

type solution struct {
	lat   []int64
	queue []int
}

func newSolution(n int, seeds []Specified) *solution {
	s := &solution{lat: make([]int64, n), queue: make([]int, 0, n)}
	for i := range s.lat {
		s.lat[i] = unset
	}
	for _, sp := range seeds {
		if s.lat[sp.Node] != unset {
			panic(fmt.Sprintf("latency: node %d specified twice", sp.Node))
		}
		s.lat[sp.Node] = sp.Latency
		s.queue = append(s.queue, sp.Node)
	}
	return s
}

// invert negates every set latency and queues its node, switching between
// the forward and backward view of the graph.
func (s *solution) invert() {
	s.queue = s.queue[:0]
	for n, l := range s.lat {
		if l != unset {
			s.queue = append(s.queue, n)
			s.lat[n] = -l
		}
	}
}

func (s *solution) fillPoison(fanouts Graph, start int) {
	stack := []int{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range fanouts[n] {
			if s.lat[e.Node] != poison {
				s.lat[e.Node] = poison
				stack = append(stack, e.Node)
			}
		}
	}
}

// bellmanFord pushes latencies along fanouts until nothing grows. The graph
// must be free of positive cycles.
func (s *solution) bellmanFord(fanouts Graph) {
	for len(s.queue) > 0 {
		from := s.queue[0]
		s.queue = s.queue[1:]
		fromLat := s.lat[from]
		if fromLat == poison {
			s.fillPoison(fanouts, from)
			continue
		}
		for _, e := range fanouts[from] {
			next := poison
			if !e.Poison {
				next = fromLat + e.Delta
			}
			if next > s.lat[e.Node] {
				s.lat[e.Node] = next
				s.queue = append(s.queue, e.Node)
			}
		}
	}
}

// explore alternates forward and backward passes until the set of reached
// nodes stops growing. Afterwards queue lists every reached node.
func (s *solution) explore(fanins, fanouts Graph) {
	for {
		s.bellmanFord(fanouts)
		s.invert()
		before := len(s.queue)
		s.bellmanFord(fanins)
		s.invert()
		if len(s.queue) == before {
			return
		}
	}
}

// pin shifts the solution so spec holds.
func (s *solution) pin(spec Specified) {
	offset := spec.Latency - s.lat[spec.Node]
	if offset == 0 {
		return
	}
	for _, n := range s.queue {
		if s.lat[n] != unset {
			s.lat[n] += offset
		}
	}
}

// mergePortGroups folds every group touching the solution into it, shifted
// so it lines up, and records ports where the two disagree. The ports reached
// by the solution then form a new group.
func (s *solution) mergePortGroups(groups *[][]Specified, ports *Ports, bad *[]BadPort) {
	kept := (*groups)[:0]
	for _, g := range *groups {
		offset, found := int64(0), false
		for _, v := range g {
			if IsValid(s.lat[v.Node]) {
				offset, found = s.lat[v.Node]-v.Latency, true
				break
			}
		}
		if !found {
			kept = append(kept, g)
			continue
		}
		for _, v := range g {
			want := v.Latency + offset
			switch cur := s.lat[v.Node]; {
			case cur == unset:
				s.lat[v.Node] = want
			case cur != want:
				*bad = append(*bad, BadPort{Node: v.Node, Found: cur, Expected: want})
			}
		}
	}
	*groups = kept

	var fresh []Specified
	for _, n := range ports.Nodes {
		if l := s.lat[n]; IsValid(l) {
			fresh = append(fresh, Specified{Node: n, Latency: l})
		}
	}
	if len(fresh) > 0 {
		*groups = append(*groups, fresh)
	}
}

func (s *solution) copyTo(final []int64) {
	for _, n := range s.queue {
		if final[n] == unset {
			final[n] = s.lat[n]
		}
	}
	s.queue = s.queue[:0]
}

// solvePorts computes groups of ports whose relative latencies are fixed by
// the graph. Each input is explored on its own; outputs start as singleton
// groups.
func solvePorts(fanouts Graph, ports *Ports) ([][]Specified, error) {
	var bad []BadPort
	groups := make([][]Specified, 0, len(ports.Outputs()))
	for _, out := range ports.Outputs() {
		groups = append(groups, []Specified{{Node: out}})
	}

	for _, in := range ports.Inputs() {
		s := newSolution(len(fanouts), []Specified{{Node: in}})
		s.bellmanFord(fanouts)
		// other inputs in the fanout of this one do not belong to its group
		for _, other := range ports.Inputs() {
			if other != in {
				s.lat[other] = unset
			}
		}
		s.mergePortGroups(&groups, ports, &bad)
	}

	if len(bad) > 0 {
		return nil, &IndeterminablePortError{BadPorts: bad}
	}
	return groups, nil
}

// Solve assigns a latency to every node.
//
// Partial solutions that are not connected to each other are placed
// SeedOffset apart. The partial solution holding the specified latencies is
// positioned by them; the others start at multiples of SeedOffset.
func Solve(p *Problem) ([]int64, error) {
	n := len(p.Fanins)
	if n == 0 {
		return nil, nil
	}
	fanins := p.Fanins.Clone()
	fanins.AddCycle(p.Specified)

	if err := findPositiveCycle(fanins, p.Specified); err != nil {
		return nil, err
	}
	if fanins.hasPoison() {
		panic("latency: Solve called on a graph with poisoned edges")
	}
	fanouts := fanins.Complement()

	seeds, err := solvePorts(fanouts, &p.Ports)
	if err != nil {
		return nil, err
	}
	if len(p.Specified) > 0 {
		// all specified nodes already share one cycle, so this cannot add bad ports
		var ignored []BadPort
		newSolution(n, p.Specified).mergePortGroups(&seeds, &p.Ports, &ignored)
	}

	final := make([]int64, n)
	for i := range final {
		final[i] = unset
	}

	domains := make([][]int, len(p.PortsPerDomain))
	for i, d := range p.PortsPerDomain {
		domains[i] = slices.Clone(d)
	}
	var unreachable []DomainPartition

	seedStart := int64(0)
	if len(p.Specified) > 0 {
		seedStart = SeedOffset
	}
	for _, seed := range seeds {
		present := 0
		for _, s := range seed {
			if final[s.Node] != unset {
				present++
			}
		}
		if present != 0 {
			// left over from an earlier error
			continue
		}

		offset := seedStart - seed[0].Latency
		shifted := make([]Specified, len(seed))
		for i, s := range seed {
			shifted[i] = Specified{Node: s.Node, Latency: s.Latency + offset}
		}
		seedStart += SeedOffset

		sol := newSolution(n, shifted)

		domains = slices.DeleteFunc(domains, func(nodes []int) bool {
			hit := set.New[int](len(nodes))
			for _, node := range nodes {
				if sol.lat[node] != unset {
					hit.Insert(node)
				}
			}
			if !hit.Empty() && hit.Size() != len(nodes) {
				var part DomainPartition
				for _, node := range nodes {
					if hit.Contains(node) {
						part.Hit = append(part.Hit, node)
					} else {
						part.NotHit = append(part.NotHit, node)
					}
				}
				unreachable = append(unreachable, part)
			}
			return !hit.Empty()
		})

		sol.explore(fanins, fanouts)

		// every specified node lives in the same partial solution
		if len(p.Specified) > 0 && IsValid(sol.lat[p.Specified[0].Node]) {
			sol.pin(p.Specified[0])
			seedStart -= SeedOffset
		}
		sol.copyTo(final)
	}

	if len(unreachable) > 0 {
		return nil, &UnreachablePortError{Partitions: unreachable}
	}

	for node := range final {
		if final[node] != unset {
			continue
		}
		sol := newSolution(n, []Specified{{Node: node, Latency: seedStart}})
		seedStart += SeedOffset
		sol.explore(fanins, fanouts)
		sol.copyTo(final)
	}
	return final, nil
}
