// Package btree implements a B-tree ordered map with configurable fan-out.
//
// The order of a tree is the maximum number of entries a node may hold;
// order 3 makes it a 2-3 tree. Node storage lives in a generational arena
// and parent links are plain arena references used only for upward
// propagation during splits and merges.
//
// Note: an individual tree is not thread safe, so either access only
// from a single goroutine or use a mutex/rwmutex to restrict access.
package btree

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/yeqown/abtree/internal/arena"
)

type entry[K constraints.Ordered, V any] struct {
	key   K
	value V
}

// node holds a sorted run of unique entries and, when internal, exactly
// one more child than it has entries. A node is never partially internal:
// children is either empty or len(entries)+1 long.
type node[K constraints.Ordered, V any] struct {
	parent   arena.Ref
	entries  []entry[K, V]
	children []arena.Ref
}

// Tree is a B-tree ordered map. Every node except the root keeps at least
// the post-split occupancy floor (minKeyNum at odd orders, minKeyNum-1 at
// even ones) and at most maxKeyNum entries, and all leaves sit at the same
// depth.
type Tree[K constraints.Ordered, V any] struct {
	nodes     *arena.Arena[node[K, V]]
	root      arena.Ref
	length    int
	maxKeyNum int // a node reaching this many entries splits
	minKeyNum int // minimum entries per non-root node
}

// New creates a tree of the given order, the maximum number of entries per
// node. It panics when order < 3: below that the minimum-occupancy rule
// cannot hold.
func New[K constraints.Ordered, V any](order int) *Tree[K, V] {
	if order < 3 {
		panic(fmt.Sprintf("btree: order %d is below the minimum of 3", order))
	}
	return &Tree[K, V]{
		nodes:     arena.New[node[K, V]](16),
		maxKeyNum: order,
		minKeyNum: (order+2)/2 - 1, // ceil((order+1)/2) - 1
	}
}

// Order is the configured maximum number of entries per node.
func (t *Tree[K, V]) Order() int { return t.maxKeyNum }

// minOccupancy is the lowest entry count a non-root node may hold at rest.
// Splitting a maxKeyNum-entry node at index minKeyNum leaves the right
// remainder with maxKeyNum-minKeyNum-1 entries, one below minKeyNum when
// the order is even, so the legitimate floor is the smaller of the two.
func (t *Tree[K, V]) minOccupancy() int {
	if f := t.maxKeyNum - t.minKeyNum - 1; f < t.minKeyNum {
		return f
	}
	return t.minKeyNum
}

// Len is the number of entries currently in the tree.
func (t *Tree[K, V]) Len() int { return t.length }

// IsEmpty reports whether the tree holds no entries.
func (t *Tree[K, V]) IsEmpty() bool { return t.length == 0 }

// Insert stores v under k. When k is already present its value is
// overwritten in place and the tree structure is untouched.
func (t *Tree[K, V]) Insert(k K, v V) {
	if t.root.IsNil() {
		t.root = t.nodes.Alloc(node[K, V]{entries: []entry[K, V]{{key: k, value: v}}})
		t.length++
		return
	}
	target := t.movingTarget(t.root, k)
	if !t.addEntry(target, k, v) {
		return // overwrote an existing key
	}
	t.length++
	t.splitUpward(target)
}

// Add is an alias of Insert.
func (t *Tree[K, V]) Add(k K, v V) { t.Insert(k, v) }

// Set is an alias of Insert.
func (t *Tree[K, V]) Set(k K, v V) { t.Insert(k, v) }

// Get returns the value stored under k.
func (t *Tree[K, V]) Get(k K) (V, bool) {
	var zero V
	if t.root.IsNil() {
		return zero, false
	}
	n := t.node(t.movingTarget(t.root, k))
	for i := range n.entries {
		if n.entries[i].key == k {
			return n.entries[i].value, true
		}
	}
	return zero, false
}

// Contains reports whether k is present.
func (t *Tree[K, V]) Contains(k K) bool {
	_, ok := t.Get(k)
	return ok
}

// Remove deletes k and returns the value it held. Removing an absent key
// is a no-op.
func (t *Tree[K, V]) Remove(k K) (V, bool) {
	var zero V
	if t.root.IsNil() {
		return zero, false
	}
	target := t.movingTarget(t.root, k)
	idx, ok := t.entryIndex(target, k)
	if !ok {
		return zero, false
	}

	if t.length == 1 {
		// deleting the only entry empties the tree
		value := t.node(target).entries[0].value
		t.nodes.Free(t.root)
		t.root = arena.Ref{}
		t.length = 0
		return value, true
	}

	t.length--
	if left := t.childAt(target, idx); !left.IsNil() {
		// interior entry: replace it from an adjacent extremum,
		// preferring whichever can spare an entry
		right := t.childAt(target, idx+1)
		leftMax := t.maxNode(left)
		rightMin := t.minNode(right)
		value := t.node(target).entries[idx].value
		switch {
		case len(t.node(leftMax).entries) > t.minKeyNum:
			repl := t.removeEntry(leftMax, len(t.node(leftMax).entries)-1)
			t.node(target).entries[idx] = repl
		case len(t.node(rightMin).entries) > t.minKeyNum:
			repl := t.removeEntry(rightMin, 0)
			t.node(target).entries[idx] = repl
		default:
			// neither extremum has surplus: pull from the left
			// maximum anyway and repair it
			repl := t.removeEntry(leftMax, len(t.node(leftMax).entries)-1)
			t.node(target).entries[idx] = repl
			t.rebalance(leftMax)
		}
		return value, true
	}

	// leaf entry
	value := t.removeEntry(target, idx).value
	n := t.node(target)
	if !n.parent.IsNil() && len(n.entries) < t.minKeyNum {
		t.rebalance(target)
	}
	return value, true
}

// PopMin removes and returns the smallest entry.
func (t *Tree[K, V]) PopMin() (K, V, bool) {
	var (
		k K
		v V
	)
	if t.root.IsNil() {
		return k, v, false
	}
	min := t.minNode(t.root)
	e := t.removeEntry(min, 0)
	t.length--
	if t.length == 0 {
		t.nodes.Free(t.root)
		t.root = arena.Ref{}
	} else {
		t.rebalance(min)
	}
	return e.key, e.value, true
}

// PopMax removes and returns the largest entry.
func (t *Tree[K, V]) PopMax() (K, V, bool) {
	var (
		k K
		v V
	)
	if t.root.IsNil() {
		return k, v, false
	}
	max := t.maxNode(t.root)
	e := t.removeEntry(max, len(t.node(max).entries)-1)
	t.length--
	if t.length == 0 {
		t.nodes.Free(t.root)
		t.root = arena.Ref{}
	} else {
		t.rebalance(max)
	}
	return e.key, e.value, true
}

// Clear resets the tree to empty with the same order, returning every node
// to the arena free list. Teardown is an iterative pop-minimum loop so a
// deep tree never grows the call stack.
func (t *Tree[K, V]) Clear() {
	for {
		if _, _, ok := t.PopMin(); !ok {
			return
		}
	}
}

// Drain empties the tree in ascending order, calling fn for every entry.
// A panic inside fn does not stop the drain: the remaining entries are
// still detached and freed before the panic resumes.
func (t *Tree[K, V]) Drain(fn func(k K, v V)) {
	for {
		k, v, ok := t.PopMin()
		if !ok {
			return
		}
		if fn != nil {
			t.guarded(fn, k, v)
		}
	}
}

func (t *Tree[K, V]) guarded(fn func(K, V), k K, v V) {
	defer func() {
		if r := recover(); r != nil {
			t.Clear()
			panic(r)
		}
	}()
	fn(k, v)
}

// internal: descent

func (t *Tree[K, V]) node(r arena.Ref) *node[K, V] {
	return t.nodes.Get(r)
}

// movingTarget descends from r toward k. It stops at the node holding k or
// at the leaf whose entry run brackets k, picking at each internal node
// the child of the first entry strictly greater than k, or the last child
// when k is greater than every entry.
func (t *Tree[K, V]) movingTarget(r arena.Ref, k K) arena.Ref {
	cur := r
	for {
		n := t.node(cur)
		if len(n.children) == 0 {
			return cur
		}
		next := arena.Ref{}
		found := false
		for i := range n.entries {
			if n.entries[i].key == k {
				found = true
				break
			}
			if n.entries[i].key > k {
				next = n.children[i]
				break
			}
		}
		if found {
			return cur
		}
		if next.IsNil() {
			next = n.children[len(n.children)-1]
		}
		cur = next
	}
}

func (t *Tree[K, V]) minNode(r arena.Ref) arena.Ref {
	for {
		n := t.node(r)
		if len(n.children) == 0 {
			return r
		}
		r = n.children[0]
	}
}

func (t *Tree[K, V]) maxNode(r arena.Ref) arena.Ref {
	for {
		n := t.node(r)
		if len(n.children) == 0 {
			return r
		}
		r = n.children[len(n.children)-1]
	}
}

// entryIndex locates k within r's own entry run.
func (t *Tree[K, V]) entryIndex(r arena.Ref, k K) (int, bool) {
	n := t.node(r)
	for i := range n.entries {
		if n.entries[i].key == k {
			return i, true
		}
	}
	return 0, false
}

// childAt returns r's i-th child, or the null Ref when r is a leaf or i is
// outside the child run.
func (t *Tree[K, V]) childAt(r arena.Ref, i int) arena.Ref {
	n := t.node(r)
	if i < 0 || i >= len(n.children) {
		return arena.Ref{}
	}
	return n.children[i]
}

// childIndex finds child's position in parent's child run.
func (t *Tree[K, V]) childIndex(parent, child arena.Ref) int {
	n := t.node(parent)
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	panic("btree: node is not a child of its parent")
}

// internal: entry surgery

// addEntry puts k into r's entry run in sorted position, reporting false
// when it overwrote an existing key instead.
func (t *Tree[K, V]) addEntry(r arena.Ref, k K, v V) bool {
	n := t.node(r)
	for i := range n.entries {
		if n.entries[i].key == k {
			n.entries[i].value = v
			return false
		}
		if n.entries[i].key > k {
			n.entries = append(n.entries, entry[K, V]{})
			copy(n.entries[i+1:], n.entries[i:])
			n.entries[i] = entry[K, V]{key: k, value: v}
			return true
		}
	}
	n.entries = append(n.entries, entry[K, V]{key: k, value: v})
	return true
}

// removeEntry splices entry i out of r. An index outside the entry run is
// a defect in the rebalancing logic, so it aborts.
func (t *Tree[K, V]) removeEntry(r arena.Ref, i int) entry[K, V] {
	n := t.node(r)
	if i < 0 || i >= len(n.entries) {
		panic(fmt.Sprintf("btree: entry index %d out of range [0,%d)", i, len(n.entries)))
	}
	e := n.entries[i]
	n.entries = append(n.entries[:i], n.entries[i+1:]...)
	return e
}

// internal: growth

// splitUpward splits r once its entry count has reached the configured
// maximum and folds the promoted median into the parent, repeating upward
// while the parent overflows in turn. A split root stays in place as a
// fresh one-entry node, growing the tree by one level.
func (t *Tree[K, V]) splitUpward(r arena.Ref) {
	cur := r
	for !cur.IsNil() && len(t.node(cur).entries) >= t.maxKeyNum {
		t.split(cur)
		parent := t.node(cur).parent
		if parent.IsNil() {
			t.root = cur
			return
		}
		t.foldIntoParent(parent, cur)
		if len(t.node(parent).entries) < t.maxKeyNum {
			return
		}
		cur = parent
	}
}

// split turns r into a one-entry node holding its median, with the left
// and right remainders as its two children. The split point is minKeyNum
// so both halves satisfy the minimum-occupancy rule.
func (t *Tree[K, V]) split(r arena.Ref) {
	splitIdx := t.minKeyNum
	n := t.node(r)
	median := n.entries[splitIdx]
	leftEntries := append([]entry[K, V]{}, n.entries[:splitIdx]...)
	rightEntries := append([]entry[K, V]{}, n.entries[splitIdx+1:]...)

	var leftChildren, rightChildren []arena.Ref
	if len(n.children) > 0 {
		leftChildren = append([]arena.Ref{}, n.children[:splitIdx+1]...)
		rightChildren = append([]arena.Ref{}, n.children[splitIdx+1:]...)
	}

	left := t.nodes.Alloc(node[K, V]{parent: r, entries: leftEntries, children: leftChildren})
	right := t.nodes.Alloc(node[K, V]{parent: r, entries: rightEntries, children: rightChildren})
	for _, c := range leftChildren {
		t.node(c).parent = left
	}
	for _, c := range rightChildren {
		t.node(c).parent = right
	}

	n = t.node(r) // Alloc may move the arena, re-resolve
	n.entries = []entry[K, V]{median}
	n.children = []arena.Ref{left, right}

	defaultLogger.Log("split node at key %v: %d left, %d right", median.key, len(leftEntries), len(rightEntries))
}

// foldIntoParent absorbs a freshly split one-entry child into parent as
// one entry plus two children, freeing the child's slot.
func (t *Tree[K, V]) foldIntoParent(parent, child arena.Ref) {
	idx := t.childIndex(parent, child)
	cn := t.node(child)
	median := cn.entries[0]
	left, right := cn.children[0], cn.children[1]

	pn := t.node(parent)
	pn.children = append(pn.children, arena.Ref{})
	copy(pn.children[idx+2:], pn.children[idx+1:])
	pn.children[idx] = left
	pn.children[idx+1] = right

	pn.entries = append(pn.entries, entry[K, V]{})
	copy(pn.entries[idx+1:], pn.entries[idx:])
	pn.entries[idx] = median

	t.node(left).parent = parent
	t.node(right).parent = parent

	cn.entries = nil
	cn.children = nil
	t.nodes.Free(child)
}

// internal: shrinkage

// rebalance restores the minimum-occupancy rule at r after entries were
// removed, borrowing from a rich sibling or merging with an adjacent one
// and propagating the repair upward. A root emptied of entries is replaced
// by its sole child, shrinking the tree by one level.
func (t *Tree[K, V]) rebalance(r arena.Ref) {
	cur := r
	for {
		n := t.node(cur)
		parent := n.parent
		if parent.IsNil() {
			if len(n.entries) == 0 {
				old := cur
				if len(n.children) > 0 {
					t.root = n.children[0]
					t.node(t.root).parent = arena.Ref{}
				} else {
					t.root = arena.Ref{}
				}
				t.node(old).children = nil
				t.nodes.Free(old)
				defaultLogger.Log("root collapsed, tree height shrank")
			}
			return
		}
		if len(n.entries) >= t.minKeyNum {
			return
		}

		if sibling := t.richSibling(cur); !sibling.IsNil() {
			t.borrow(cur, sibling)
			return
		}
		t.mergeWithSibling(cur) // frees cur, shrinks parent by one entry
		cur = parent
	}
}

// richSibling returns an adjacent sibling holding more than minKeyNum
// entries, preferring the left one, or the null Ref when neither can
// spare an entry.
func (t *Tree[K, V]) richSibling(r arena.Ref) arena.Ref {
	parent := t.node(r).parent
	idx := t.childIndex(parent, r)
	pn := t.node(parent)
	last := len(pn.children) - 1

	var candidates [2]arena.Ref
	switch {
	case idx == 0:
		candidates[0] = pn.children[1]
	case idx == last:
		candidates[0] = pn.children[last-1]
	default:
		candidates[0] = pn.children[idx-1]
		candidates[1] = pn.children[idx+1]
	}
	for _, s := range candidates {
		if !s.IsNil() && len(t.node(s).entries) > t.minKeyNum {
			return s
		}
	}
	return arena.Ref{}
}

// borrow rotates one entry through the parent: the boundary entry moves
// into cur, the sibling's adjacent extreme entry takes its place in the
// parent, and the sibling's adjacent extreme child moves across when the
// nodes are internal. Occupancy is restored with O(1) work.
func (t *Tree[K, V]) borrow(cur, sibling arena.Ref) {
	parent := t.node(cur).parent
	curIdx := t.childIndex(parent, cur)
	sibIdx := t.childIndex(parent, sibling)
	pn := t.node(parent)
	cn := t.node(cur)
	sn := t.node(sibling)

	if curIdx < sibIdx {
		// the right sibling donates its first entry
		cn.entries = append(cn.entries, pn.entries[curIdx])
		pn.entries[curIdx] = sn.entries[0]
		sn.entries = append(sn.entries[:0], sn.entries[1:]...)
		if len(sn.children) > 0 {
			moved := sn.children[0]
			sn.children = append(sn.children[:0], sn.children[1:]...)
			cn.children = append(cn.children, moved)
			t.node(moved).parent = cur
		}
	} else {
		// the left sibling donates its last entry
		cn.entries = append([]entry[K, V]{pn.entries[curIdx-1]}, cn.entries...)
		pn.entries[curIdx-1] = sn.entries[len(sn.entries)-1]
		sn.entries = sn.entries[:len(sn.entries)-1]
		if len(sn.children) > 0 {
			moved := sn.children[len(sn.children)-1]
			sn.children = sn.children[:len(sn.children)-1]
			cn.children = append([]arena.Ref{moved}, cn.children...)
			t.node(moved).parent = cur
		}
	}
	defaultLogger.Log("borrowed an entry through the parent for an underfull node")
}

// mergeWithSibling folds cur and the separating parent entry into an
// adjacent sibling, removing cur from the parent. The parent shrank by one
// entry, so the caller re-runs the repair there.
func (t *Tree[K, V]) mergeWithSibling(cur arena.Ref) {
	parent := t.node(cur).parent
	idx := t.childIndex(parent, cur)
	pn := t.node(parent)
	cn := t.node(cur)

	if idx == 0 {
		sibling := pn.children[1]
		sn := t.node(sibling)
		merged := make([]entry[K, V], 0, len(cn.entries)+1+len(sn.entries))
		merged = append(merged, cn.entries...)
		merged = append(merged, pn.entries[0])
		merged = append(merged, sn.entries...)
		sn.entries = merged
		if len(cn.children) > 0 {
			children := make([]arena.Ref, 0, len(cn.children)+len(sn.children))
			children = append(children, cn.children...)
			children = append(children, sn.children...)
			sn.children = children
			for _, c := range cn.children {
				t.node(c).parent = sibling
			}
		}
		pn.entries = append(pn.entries[:0], pn.entries[1:]...)
		pn.children = append(pn.children[:0], pn.children[1:]...)
	} else {
		sibling := pn.children[idx-1]
		sn := t.node(sibling)
		sn.entries = append(sn.entries, pn.entries[idx-1])
		sn.entries = append(sn.entries, cn.entries...)
		if len(cn.children) > 0 {
			sn.children = append(sn.children, cn.children...)
			for _, c := range cn.children {
				t.node(c).parent = sibling
			}
		}
		pn.entries = append(pn.entries[:idx-1], pn.entries[idx:]...)
		pn.children = append(pn.children[:idx], pn.children[idx+1:]...)
	}

	cn.entries = nil
	cn.children = nil
	t.nodes.Free(cur)
	defaultLogger.Log("merged an underfull node into its sibling")
}
