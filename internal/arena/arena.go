// Package arena provides index-based storage for graph-shaped compiler data.
//
// Every arena hands out typed uint32 ids. Id 0 is reserved as the invalid
// sentinel, so the zero value of any id type means "no object". Ids are never
// reused by Flat; Sparse recycles freed slots through a free list.
package arena

import (
	"fmt"
	"iter"

	"fortio.org/safecast"
)

// ID is the constraint satisfied by every typed arena index.
type ID interface {
	~uint32
}

func idFromLen[I ID](n int) I {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("arena overflow: %w", err))
	}
	return I(v)
}

// Flat is a dense append-only arena. The id of an element is its 1-based position.
type Flat[I ID, T any] struct {
	data []T
}

// NewFlat creates an empty arena with a capacity hint.
func NewFlat[I ID, T any](capHint int) *Flat[I, T] {
	return &Flat[I, T]{data: make([]T, 0, capHint)}
}

// Alloc appends value and returns its id.
func (a *Flat[I, T]) Alloc(value T) I {
	a.data = append(a.data, value)
	return idFromLen[I](len(a.data))
}

// NextID returns the id the next Alloc will hand out.
func (a *Flat[I, T]) NextID() I {
	return idFromLen[I](len(a.data) + 1)
}

// Get returns a pointer to the element or nil for an invalid id.
func (a *Flat[I, T]) Get(id I) *T {
	if id == 0 || int(id) > len(a.data) {
		return nil
	}
	return &a.data[id-1]
}

// MustGet is Get that panics on an invalid id.
func (a *Flat[I, T]) MustGet(id I) *T {
	p := a.Get(id)
	if p == nil {
		panic(fmt.Sprintf("arena: invalid id %d (len %d)", id, len(a.data)))
	}
	return p
}

// Len reports the number of allocated elements.
func (a *Flat[I, T]) Len() int { return len(a.data) }

// IDs returns the range covering every allocated element.
func (a *Flat[I, T]) IDs() Range[I] {
	return Range[I]{Start: 1, End: idFromLen[I](len(a.data) + 1)}
}

// All iterates over (id, element) pairs in allocation order.
func (a *Flat[I, T]) All() iter.Seq2[I, *T] {
	return func(yield func(I, *T) bool) {
		for i := range a.data {
			if !yield(idFromLen[I](i+1), &a.data[i]) {
				return
			}
		}
	}
}

// Slice exposes the backing storage. Index i holds id i+1.
func (a *Flat[I, T]) Slice() []T { return a.data }

// Truncate drops every element with id >= from.
func (a *Flat[I, T]) Truncate(from I) {
	if from == 0 {
		from = 1
	}
	if int(from-1) < len(a.data) {
		clear(a.data[from-1:])
		a.data = a.data[:from-1]
	}
}

// Map builds a parallel arena holding fn(id, elem) for every element.
func Map[I ID, T, U any](a *Flat[I, T], fn func(I, *T) U) *Flat[I, U] {
	out := NewFlat[I, U](a.Len())
	for id, v := range a.All() {
		out.Alloc(fn(id, v))
	}
	return out
}
