package btree

import (
	"golang.org/x/exp/constraints"

	"github.com/yeqown/abtree/internal/arena"
)

// frame is one pending step of a cursor: a node and the entry index the
// cursor will handle next inside it.
type frame struct {
	node arena.Ref
	idx  int
}

// Iter walks the tree without recursion. Each direction keeps an explicit
// stack of (node, entry index) frames plus the set of nodes it has fully
// explored, and remaining counts the entries not yet produced by either
// direction so interleaved cursors stop exactly where they meet, emitting
// every entry once. The tree must not be mutated while a cursor is in use.
type Iter[K constraints.Ordered, V any] struct {
	tree      *Tree[K, V]
	next      []frame
	seen      map[arena.Ref]struct{}
	nextBack  []frame
	seenBack  map[arena.Ref]struct{}
	remaining int
}

// Iter returns a bidirectional cursor over the live tree: Next ascends,
// NextBack descends, and the two may be interleaved in any order.
func (t *Tree[K, V]) Iter() *Iter[K, V] {
	it := &Iter[K, V]{
		tree:      t,
		seen:      make(map[arena.Ref]struct{}),
		seenBack:  make(map[arena.Ref]struct{}),
		remaining: t.length,
	}
	if !t.root.IsNil() {
		it.next = append(it.next, frame{node: t.root})
		it.nextBack = append(it.nextBack, frame{
			node: t.root,
			idx:  len(t.node(t.root).entries) - 1,
		})
	}
	return it
}

// Next returns the smallest entry not yet produced.
func (it *Iter[K, V]) Next() (K, V, bool) {
	var (
		k K
		v V
	)
	if it.remaining <= 0 {
		return k, v, false
	}
	e, ok := it.ascend()
	if !ok {
		return k, v, false
	}
	it.remaining--
	return e.key, e.value, true
}

// NextBack returns the largest entry not yet produced.
func (it *Iter[K, V]) NextBack() (K, V, bool) {
	var (
		k K
		v V
	)
	if it.remaining <= 0 {
		return k, v, false
	}
	e, ok := it.descend()
	if !ok {
		return k, v, false
	}
	it.remaining--
	return e.key, e.value, true
}

// ascend emits the entry at the top frame once the child below it is
// exhausted, then advances the frame to the next entry or schedules the
// trailing child.
func (it *Iter[K, V]) ascend() (entry[K, V], bool) {
	t := it.tree
	for len(it.next) > 0 {
		f := it.next[len(it.next)-1]
		it.next = it.next[:len(it.next)-1]
		if member(it.seen, f.node) {
			continue
		}
		n := t.node(f.node)

		if left := t.childAt(f.node, f.idx); !left.IsNil() && !member(it.seen, left) {
			it.next = append(it.next, f, frame{node: left})
			continue
		}
		e := n.entries[f.idx]
		if f.idx == len(n.entries)-1 {
			it.seen[f.node] = struct{}{}
			if right := t.childAt(f.node, f.idx+1); !right.IsNil() && !member(it.seen, right) {
				it.next = append(it.next, frame{node: right})
			}
		} else {
			f.idx++
			it.next = append(it.next, f)
		}
		return e, true
	}
	return entry[K, V]{}, false
}

// descend mirrors ascend, draining each node's entries from last to first
// with the child above each entry visited first.
func (it *Iter[K, V]) descend() (entry[K, V], bool) {
	t := it.tree
	for len(it.nextBack) > 0 {
		f := it.nextBack[len(it.nextBack)-1]
		it.nextBack = it.nextBack[:len(it.nextBack)-1]
		if member(it.seenBack, f.node) {
			continue
		}
		n := t.node(f.node)

		if right := t.childAt(f.node, f.idx+1); !right.IsNil() && !member(it.seenBack, right) {
			it.nextBack = append(it.nextBack, f, frame{
				node: right,
				idx:  len(t.node(right).entries) - 1,
			})
			continue
		}
		e := n.entries[f.idx]
		if f.idx == 0 {
			it.seenBack[f.node] = struct{}{}
			if left := t.childAt(f.node, 0); !left.IsNil() && !member(it.seenBack, left) {
				it.nextBack = append(it.nextBack, frame{
					node: left,
					idx:  len(t.node(left).entries) - 1,
				})
			}
		} else {
			f.idx--
			it.nextBack = append(it.nextBack, f)
		}
		return e, true
	}
	return entry[K, V]{}, false
}

func member(set map[arena.Ref]struct{}, r arena.Ref) bool {
	_, ok := set[r]
	return ok
}

// IntoIter is a consuming iterator: Next removes and returns the minimum
// entry, NextBack the maximum. The source tree is empty once the iterator
// is exhausted.
type IntoIter[K constraints.Ordered, V any] struct {
	tree *Tree[K, V]
}

// IntoIter returns a consuming iterator that drains the tree.
func (t *Tree[K, V]) IntoIter() *IntoIter[K, V] {
	return &IntoIter[K, V]{tree: t}
}

// Next removes and returns the smallest remaining entry.
func (it *IntoIter[K, V]) Next() (K, V, bool) { return it.tree.PopMin() }

// NextBack removes and returns the largest remaining entry.
func (it *IntoIter[K, V]) NextBack() (K, V, bool) { return it.tree.PopMax() }

// Ascend calls fn for every entry in ascending key order until fn returns
// false.
func (t *Tree[K, V]) Ascend(fn func(k K, v V) bool) {
	it := t.Iter()
	for {
		k, v, ok := it.Next()
		if !ok || !fn(k, v) {
			return
		}
	}
}

// Descend calls fn for every entry in descending key order until fn
// returns false.
func (t *Tree[K, V]) Descend(fn func(k K, v V) bool) {
	it := t.Iter()
	for {
		k, v, ok := it.NextBack()
		if !ok || !fn(k, v) {
			return
		}
	}
}
