package avl

import (
	"golang.org/x/exp/constraints"

	"github.com/yeqown/abtree/internal/arena"
)

// Iter walks the tree without recursion. Each direction keeps an explicit
// stack of pending nodes plus the set of nodes it has already emitted, and
// remaining counts the entries not yet produced by either direction so
// interleaved cursors stop exactly where they meet, emitting every entry
// once. The tree must not be mutated while a cursor is in use.
type Iter[K constraints.Ordered, V any] struct {
	tree      *Tree[K, V]
	next      []arena.Ref
	seen      map[arena.Ref]struct{}
	nextBack  []arena.Ref
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
		it.next = append(it.next, t.root)
		it.nextBack = append(it.nextBack, t.root)
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
	r := it.ascend()
	if r.IsNil() {
		return k, v, false
	}
	it.remaining--
	n := it.tree.node(r)
	return n.key, n.value, true
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
	r := it.descend()
	if r.IsNil() {
		return k, v, false
	}
	it.remaining--
	n := it.tree.node(r)
	return n.key, n.value, true
}

// ascend schedules unexplored children left-then-self-then-right and emits
// a node once its left subtree is exhausted.
func (it *Iter[K, V]) ascend() arena.Ref {
	for len(it.next) > 0 {
		cur := it.next[len(it.next)-1]
		it.next = it.next[:len(it.next)-1]
		n := it.tree.node(cur)

		if left := n.left; !left.IsNil() && !member(it.seen, left) {
			it.next = append(it.next, cur, left)
			continue
		}
		it.seen[cur] = struct{}{}
		if right := n.right; !right.IsNil() && !member(it.seen, right) {
			it.next = append(it.next, right)
		}
		return cur
	}
	return arena.Ref{}
}

// descend mirrors ascend: right-then-self-then-left.
func (it *Iter[K, V]) descend() arena.Ref {
	for len(it.nextBack) > 0 {
		cur := it.nextBack[len(it.nextBack)-1]
		it.nextBack = it.nextBack[:len(it.nextBack)-1]
		n := it.tree.node(cur)

		if right := n.right; !right.IsNil() && !member(it.seenBack, right) {
			it.nextBack = append(it.nextBack, cur, right)
			continue
		}
		it.seenBack[cur] = struct{}{}
		if left := n.left; !left.IsNil() && !member(it.seenBack, left) {
			it.nextBack = append(it.nextBack, left)
		}
		return cur
	}
	return arena.Ref{}
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
