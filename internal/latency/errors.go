package latency

import (
	"fmt"
	"strings"
)

// NetPositiveCycleError is returned when a cycle in the graph requires a
// node to be later than itself.
type NetPositiveCycleError struct {
	Path      []Specified
	Roundtrip int64
}

func (e *NetPositiveCycleError) Error() string {
	return fmt.Sprintf("net-positive latency cycle of +%d through %s", e.Roundtrip, formatPath(e.Path))
}

// ConflictingSpecifiedError is returned when two specified latencies cannot
// both hold. Path runs from the first specified node to the second.
type ConflictingSpecifiedError struct {
	Path []Specified
}

func (e *ConflictingSpecifiedError) Error() string {
	return "conflicting specified latencies along " + formatPath(e.Path)
}

// BadPort is a port reached at two different latencies.
type BadPort struct {
	Node     int
	Found    int64
	Expected int64
}

// IndeterminablePortError is returned when the relative latency of ports
// depends on which input it is computed from.
type IndeterminablePortError struct {
	BadPorts []BadPort
}

func (e *IndeterminablePortError) Error() string {
	var sb strings.Builder
	sb.WriteString("cannot determine port latency:")
	for _, b := range e.BadPorts {
		fmt.Fprintf(&sb, " node %d is %d or %d;", b.Node, b.Found, b.Expected)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// DomainPartition splits the ports of one domain into those reached from a
// seed and those that were not.
type DomainPartition struct {
	Hit    []int
	NotHit []int
}

// UnreachablePortError is returned when some ports of a domain are not
// connected to the others.
type UnreachablePortError struct {
	Partitions []DomainPartition
}

func (e *UnreachablePortError) Error() string {
	n := 0
	for _, p := range e.Partitions {
		n += len(p.NotHit)
	}
	return fmt.Sprintf("%d port(s) are not connected to the other ports of their domain", n)
}

func formatPath(path []Specified) string {
	parts := make([]string, len(path))
	for i, s := range path {
		parts[i] = s.String()
	}
	return strings.Join(parts, " -> ")
}
