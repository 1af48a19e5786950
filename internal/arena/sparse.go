package arena

import (
	"fmt"
	"iter"
	"sync"
)

type sparseSlot[T any] struct {
	value    T
	occupied bool
	reserved bool
}

// Sparse is an arena whose slots can be freed and recycled.
//
// Reserve hands out an id before the value exists so that cyclic structures
// can refer to each other; Fill completes the reservation.
type Sparse[I ID, T any] struct {
	slots []sparseSlot[T]
	free  []I
}

// NewSparse creates an empty sparse arena.
func NewSparse[I ID, T any]() *Sparse[I, T] {
	return &Sparse[I, T]{}
}

func (a *Sparse[I, T]) take() I {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id
	}
	a.slots = append(a.slots, sparseSlot[T]{})
	return idFromLen[I](len(a.slots))
}

// Alloc stores value in a free slot and returns its id.
func (a *Sparse[I, T]) Alloc(value T) I {
	id := a.take()
	a.slots[id-1] = sparseSlot[T]{value: value, occupied: true}
	return id
}

// Reserve claims an id without a value.
func (a *Sparse[I, T]) Reserve() I {
	id := a.take()
	a.slots[id-1] = sparseSlot[T]{reserved: true}
	return id
}

// Fill stores the value of a previously reserved id.
func (a *Sparse[I, T]) Fill(id I, value T) {
	slot := a.slot(id)
	if slot == nil || !slot.reserved {
		panic(fmt.Sprintf("arena: fill of id %d that was not reserved", id))
	}
	*slot = sparseSlot[T]{value: value, occupied: true}
}

// Free releases the slot and returns the value it held.
func (a *Sparse[I, T]) Free(id I) T {
	slot := a.slot(id)
	if slot == nil || !(slot.occupied || slot.reserved) {
		panic(fmt.Sprintf("arena: double free of id %d", id))
	}
	v := slot.value
	*slot = sparseSlot[T]{}
	a.free = append(a.free, id)
	return v
}

func (a *Sparse[I, T]) slot(id I) *sparseSlot[T] {
	if id == 0 || int(id) > len(a.slots) {
		return nil
	}
	return &a.slots[id-1]
}

// Get returns the value for id or nil when the slot is empty or only reserved.
func (a *Sparse[I, T]) Get(id I) *T {
	slot := a.slot(id)
	if slot == nil || !slot.occupied {
		return nil
	}
	return &slot.value
}

// Len reports the number of occupied slots.
func (a *Sparse[I, T]) Len() int {
	n := 0
	for i := range a.slots {
		if a.slots[i].occupied {
			n++
		}
	}
	return n
}

// All iterates over occupied slots in id order.
func (a *Sparse[I, T]) All() iter.Seq2[I, *T] {
	return func(yield func(I, *T) bool) {
		for i := range a.slots {
			if !a.slots[i].occupied {
				continue
			}
			if !yield(idFromLen[I](i+1), &a.slots[i].value) {
				return
			}
		}
	}
}

// AppendOnly is a concurrent arena: many goroutines may Alloc while others Get.
// Elements are never removed.
type AppendOnly[T any] struct {
	mu   sync.RWMutex
	data []T
}

// Alloc appends value and returns its 1-based index.
func (a *AppendOnly[T]) Alloc(value T) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = append(a.data, value)
	return idFromLen[uint32](len(a.data))
}

// Get returns a copy of the element at the 1-based index.
func (a *AppendOnly[T]) Get(id uint32) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var zero T
	if id == 0 || int(id) > len(a.data) {
		return zero, false
	}
	return a.data[id-1], true
}

// Snapshot copies out the current contents.
func (a *AppendOnly[T]) Snapshot() []T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]T, len(a.data))
	copy(out, a.data)
	return out
}
