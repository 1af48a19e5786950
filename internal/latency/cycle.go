package latency

import "math"

const (
	unreached       = -2
	specifiedParent = -1
)

type bfNode struct {
	value  int64
	parent int // a node index, unreached or specifiedParent
}

type bfFailure struct {
	nodes      []bfNode
	start, end int
}

// findPositiveCycle runs Bellman-Ford over the fanins from every specified
// node and then from every node not yet visited, looking for a cycle that
// keeps growing or a path between two specified nodes that is too long.
// Poisoned edges are skipped since their delta is unknown.
func findPositiveCycle(fanins Graph, specified []Specified) error {
	nodes := make([]bfNode, len(fanins))
	for i := range nodes {
		nodes[i] = bfNode{value: unset, parent: unreached}
	}
	var queue, seen []int
	step := 0

	for _, s := range specified {
		nodes[s.Node] = bfNode{value: -s.Latency, parent: specifiedParent}
		queue = append(queue, s.Node)
		seen = append(seen, s.Node)
	}

	// findRoot walks parents until a node without one, or gives up inside a cycle.
	findRoot := func(idx, maxSteps int) int {
		for range maxSteps {
			p := nodes[idx].parent
			if p < 0 {
				break
			}
			idx = p
		}
		return idx
	}
	fail := func(start, end int) error {
		return (&bfFailure{nodes: nodes, start: start, end: end}).toError(fanins)
	}

	nextStart := 0
	for {
		for len(queue) > 0 {
			from := queue[0]
			queue = queue[1:]
			fromValue := nodes[from].value
			for _, e := range fanins[from] {
				if e.Poison {
					continue
				}
				target := fromValue + e.Delta
				to := &nodes[e.Node]
				if target <= to.value {
					continue
				}
				// the parent is replaced first so a cycle is closed when we walk it
				old := to.parent
				to.parent = from
				switch old {
				case unreached:
					seen = append(seen, e.Node)
				case specifiedParent:
					root := findRoot(from, len(seen))
					if nodes[root].parent >= 0 {
						nodes[root].value = 0
						return fail(root, root)
					}
					return fail(root, e.Node)
				}
				to.value = target
				queue = append(queue, e.Node)

				// walking back is O(N), so only do it every N updates
				step++
				if step > len(seen) {
					step = 0
					root := findRoot(from, len(seen))
					if nodes[root].parent >= 0 {
						nodes[root].value = 0
						return fail(root, root)
					}
				}
			}
		}

		for _, n := range seen {
			nodes[n].value = math.MaxInt64
		}
		seen = seen[:0]
		step = 0

		for nodes[nextStart].value == math.MaxInt64 {
			nextStart++
			if nextStart >= len(nodes) {
				return nil
			}
		}
		seen = append(seen, nextStart)
		nodes[nextStart].value = 0
		queue = append(queue, nextStart)
	}
}

// toError rebuilds the offending path by following parents from end back to
// start, accumulating the largest delta of each step.
func (f *bfFailure) toError(fanins Graph) error {
	var path []Specified
	net := -f.nodes[f.end].value
	cur := f.end
	for {
		path = append(path, Specified{Node: cur, Latency: net})
		parent := f.nodes[cur].parent
		delta := int64(math.MinInt64)
		for _, e := range fanins[parent] {
			if e.Node == cur && !e.Poison {
				delta = max(delta, e.Delta)
			}
		}
		net += delta
		cur = parent
		if cur == f.start {
			break
		}
	}
	if f.start == f.end {
		return &NetPositiveCycleError{Path: path, Roundtrip: net}
	}
	path = append(path, Specified{Node: cur, Latency: net})
	return &ConflictingSpecifiedError{Path: path}
}
