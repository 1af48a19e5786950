// Package typing holds the unification machinery of the middle-end.
//
// A Unifier owns five variable stores: abstract inner types, ranks, domains,
// template values and concrete types. Each store is a union-find whose roots
// are either unknown or bound to a value. Bound is final: a variable is never
// rebound, so a resolved part of a type can be read while other parts are
// still unknown.
//
// Constraints that cannot be decided until some variable is known are queued
// with Delay. They sit on the watcher lists of the variables they wait for
// and run once those variables are bound.
package typing

import (
	"sus/internal/ir"
	"sus/internal/source"
)

// Result is the outcome of a unification.
type Result uint8

const (
	Success Result = iota
	Failure
	// FailureInfinite means the two sides could only be equal as infinite types.
	FailureInfinite
)

func (r Result) OK() bool { return r == Success }

// VarKind tells the stores apart.
type VarKind uint8

const (
	VarInner VarKind = iota + 1
	VarRank
	VarDomain
	VarValue
	VarConcrete
)

// Var names one unification variable of any store.
type Var struct {
	Kind VarKind
	ID   uint32
}

type cell[T any] struct {
	parent   uint32
	known    bool
	val      T
	watchers []int
}

// store is a union-find over variables numbered from 1.
type store[T any] struct {
	cells []cell[T]
}

func (s *store[T]) fresh() uint32 {
	s.cells = append(s.cells, cell[T]{})
	return uint32(len(s.cells))
}

func (s *store[T]) at(v uint32) *cell[T] { return &s.cells[v-1] }

func (s *store[T]) find(v uint32) uint32 {
	root := v
	for s.at(root).parent != 0 {
		root = s.at(root).parent
	}
	for v != root {
		next := s.at(v).parent
		s.at(v).parent = root
		v = next
	}
	return root
}

func (s *store[T]) get(v uint32) (T, bool) {
	c := s.at(s.find(v))
	return c.val, c.known
}

// bind sets the value of an unknown root and returns its watchers.
func (s *store[T]) bind(root uint32, val T) []int {
	c := s.at(root)
	if c.known {
		panic("typing: rebinding a known variable")
	}
	c.known, c.val = true, val
	w := c.watchers
	c.watchers = nil
	return w
}

// link makes a point at b. Both must be unknown roots.
func (s *store[T]) link(a, b uint32) {
	if a == b {
		return
	}
	ca, cb := s.at(a), s.at(b)
	cb.watchers = append(cb.watchers, ca.watchers...)
	ca.watchers = nil
	ca.parent = b
}

func (s *store[T]) watch(v uint32, c int) {
	root := s.at(s.find(v))
	root.watchers = append(root.watchers, c)
}

// constraint is a delayed check. try returns the variables it still waits
// on; an empty result means it is done.
type constraint struct {
	span source.Span
	what string
	try  func() []Var
	done bool
}

// Stalled is a delayed constraint that never became decidable.
type Stalled struct {
	Span source.Span
	What string
}

// Unifier is the per-global inference state.
type Unifier struct {
	inner    store[ir.AbstractInner]
	rank     store[ir.Rank]
	domain   store[ir.DomainType]
	value    store[ir.Value]
	concrete store[*ir.ConcreteType]

	constraints []*constraint
	ready       []int
	draining    bool
}

// New returns an empty unifier.
func New() *Unifier { return &Unifier{} }

// Delay queues check. try is run at once and then again whenever one of the
// variables it returned becomes known, until it returns no variables.
func (u *Unifier) Delay(span source.Span, what string, try func() []Var) {
	id := len(u.constraints)
	u.constraints = append(u.constraints, &constraint{span: span, what: what, try: try})
	u.ready = append(u.ready, id)
	u.drain()
}

func (u *Unifier) wake(ids []int) {
	u.ready = append(u.ready, ids...)
}

// drain runs ready constraints until none is left. Binding a variable inside
// a constraint only appends to the ready list.
func (u *Unifier) drain() {
	if u.draining {
		return
	}
	u.draining = true
	defer func() { u.draining = false }()
	for len(u.ready) > 0 {
		id := u.ready[0]
		u.ready = u.ready[1:]
		c := u.constraints[id]
		if c.done {
			continue
		}
		waits := c.try()
		if len(waits) == 0 {
			c.done = true
			continue
		}
		for _, v := range waits {
			u.watch(v, id)
		}
	}
}

func (u *Unifier) watch(v Var, id int) {
	switch v.Kind {
	case VarInner:
		u.inner.watch(v.ID, id)
	case VarRank:
		u.rank.watch(v.ID, id)
	case VarDomain:
		u.domain.watch(v.ID, id)
	case VarValue:
		u.value.watch(v.ID, id)
	case VarConcrete:
		u.concrete.watch(v.ID, id)
	}
}

// Stalled returns the delayed constraints that never completed.
func (u *Unifier) Stalled() []Stalled {
	u.drain()
	var out []Stalled
	for _, c := range u.constraints {
		if !c.done {
			out = append(out, Stalled{Span: c.span, What: c.what})
		}
	}
	return out
}
