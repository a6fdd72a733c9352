// Package arena provides slot storage for tree nodes addressed by
// generational references.
//
// Only the arena owns node memory. The tree packages link nodes together
// with plain Ref values carrying no ownership semantics; freeing a slot
// bumps its generation so a stale Ref can never silently address a
// recycled node.
//
// An arena is not safe for concurrent use; the owning tree provides
// whatever synchronization it needs.
package arena

import "fmt"

// Ref addresses one slot in an Arena. The zero Ref is the null reference.
type Ref struct {
	index uint32
	gen   uint32
}

// IsNil reports whether r is the null reference.
func (r Ref) IsNil() bool { return r.gen == 0 }

func (r Ref) String() string {
	if r.IsNil() {
		return "ref(nil)"
	}
	return fmt.Sprintf("ref(%d@%d)", r.index, r.gen)
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Arena is a grow-only slice of slots with a free list of reclaimed
// indices. Pointers obtained through Get stay valid only until the next
// Alloc, which may move the backing storage.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// New creates an arena with room for hint values before it has to grow.
func New[T any](hint int) *Arena[T] {
	return &Arena[T]{slots: make([]slot[T], 0, hint)}
}

// Alloc stores v in a fresh or recycled slot and returns its reference.
func (a *Arena[T]) Alloc(v T) Ref {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		if s.live {
			panic("arena: free list corrupt")
		}
		s.value = v
		s.gen++
		s.live = true
		a.live++
		return Ref{index: idx, gen: s.gen}
	}
	a.slots = append(a.slots, slot[T]{value: v, gen: 1, live: true})
	a.live++
	return Ref{index: uint32(len(a.slots) - 1), gen: 1}
}

// Get returns the value stored at r. It panics when r is null, stale or
// out of range: such a reference means the caller's node surgery is
// defective and continuing would corrupt the structure.
func (a *Arena[T]) Get(r Ref) *T {
	return &a.slot(r).value
}

// Free returns r's slot to the free list, zeroing the stored value.
func (a *Arena[T]) Free(r Ref) {
	s := a.slot(r)
	var zero T
	s.value = zero
	s.live = false
	a.live--
	a.free = append(a.free, r.index)
}

// Len is the number of live slots.
func (a *Arena[T]) Len() int { return a.live }

func (a *Arena[T]) slot(r Ref) *slot[T] {
	if r.IsNil() {
		panic("arena: null reference")
	}
	if int(r.index) >= len(a.slots) {
		panic(fmt.Sprintf("arena: reference index %d out of range", r.index))
	}
	s := &a.slots[r.index]
	if !s.live || s.gen != r.gen {
		panic(fmt.Sprintf("arena: stale reference to slot %d", r.index))
	}
	return s
}
