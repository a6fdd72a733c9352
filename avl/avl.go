package avl

import (
	"golang.org/x/exp/constraints"

	"github.com/yeqown/abtree/internal/arena"
)

// node is one element of the tree. parent is a non-owning back reference
// used only for upward height propagation; the arena owns the storage.
type node[K constraints.Ordered, V any] struct {
	key    K
	value  V
	parent arena.Ref
	left   arena.Ref
	right  arena.Ref
	height int // leaf = 1, absent child = 0
}

// Tree is a height-balanced (AVL) ordered map. After every public mutation
// each reachable node's left and right subtree heights differ by at most
// one, keeping lookups, inserts and removals O(log n).
type Tree[K constraints.Ordered, V any] struct {
	nodes  *arena.Arena[node[K, V]]
	root   arena.Ref
	length int
}

// New creates an initially empty tree.
func New[K constraints.Ordered, V any]() *Tree[K, V] {
	return &Tree[K, V]{
		nodes: arena.New[node[K, V]](16),
	}
}

// Len is the number of entries currently in the tree.
func (t *Tree[K, V]) Len() int { return t.length }

// IsEmpty reports whether the tree holds no entries.
func (t *Tree[K, V]) IsEmpty() bool { return t.length == 0 }

// PeekRoot returns the entry currently sitting at the root.
func (t *Tree[K, V]) PeekRoot() (K, V, bool) {
	var (
		k K
		v V
	)
	if t.root.IsNil() {
		return k, v, false
	}
	n := t.node(t.root)
	return n.key, n.value, true
}

// Insert stores v under k. When k is already present its value is
// overwritten in place and the tree structure is untouched.
func (t *Tree[K, V]) Insert(k K, v V) {
	if t.root.IsNil() {
		t.root = t.nodes.Alloc(node[K, V]{key: k, value: v, height: 1})
		t.length++
		return
	}

	cur := t.root
	for {
		n := t.node(cur)
		switch {
		case k == n.key:
			n.value = v
			return
		case k < n.key:
			if !n.left.IsNil() {
				cur = n.left
				continue
			}
			leaf := t.nodes.Alloc(node[K, V]{key: k, value: v, parent: cur, height: 1})
			t.node(cur).left = leaf // Alloc may move the arena, re-resolve
			t.length++
			t.rebalanceFrom(cur)
			return
		default:
			if !n.right.IsNil() {
				cur = n.right
				continue
			}
			leaf := t.nodes.Alloc(node[K, V]{key: k, value: v, parent: cur, height: 1})
			t.node(cur).right = leaf
			t.length++
			t.rebalanceFrom(cur)
			return
		}
	}
}

// Add is an alias of Insert.
func (t *Tree[K, V]) Add(k K, v V) { t.Insert(k, v) }

// Set is an alias of Insert.
func (t *Tree[K, V]) Set(k K, v V) { t.Insert(k, v) }

// Get returns the value stored under k.
func (t *Tree[K, V]) Get(k K) (V, bool) {
	var zero V
	r := t.find(k)
	if r.IsNil() {
		return zero, false
	}
	return t.node(r).value, true
}

// Contains reports whether k is present.
func (t *Tree[K, V]) Contains(k K) bool { return !t.find(k).IsNil() }

// Remove deletes k and returns the value it held. Removing an absent key
// is a no-op.
func (t *Tree[K, V]) Remove(k K) (V, bool) {
	var zero V
	target := t.find(k)
	if target.IsNil() {
		return zero, false
	}

	n := t.node(target)
	value := n.value
	parent := n.parent
	start := parent // deepest node whose height may have changed

	switch {
	case n.left.IsNil() && n.right.IsNil():
		t.replaceChild(parent, target, arena.Ref{})
	case n.left.IsNil():
		t.replaceChild(parent, target, n.right)
	case n.right.IsNil():
		t.replaceChild(parent, target, n.left)
	default:
		// splice in the in-order predecessor, the maximum of the
		// left subtree
		pred := t.maxOf(n.left)
		pn := t.node(pred)
		if pred == n.left {
			// the predecessor keeps its own left subtree
			t.replaceChild(parent, target, pred)
			pn.right = n.right
			t.node(n.right).parent = pred
			start = pred
		} else {
			// hand the predecessor's left subtree to its old
			// parent before moving the predecessor up
			predParent := pn.parent
			t.node(predParent).right = pn.left
			if !pn.left.IsNil() {
				t.node(pn.left).parent = predParent
			}
			t.replaceChild(parent, target, pred)
			pn.left = n.left
			pn.right = n.right
			t.node(n.left).parent = pred
			t.node(n.right).parent = pred
			start = predParent
		}
	}

	t.nodes.Free(target)
	t.length--
	if !start.IsNil() {
		t.rebalanceFrom(start)
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
	k = t.node(t.minOf(t.root)).key
	v, _ = t.Remove(k)
	return k, v, true
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
	k = t.node(t.maxOf(t.root)).key
	v, _ = t.Remove(k)
	return k, v, true
}

// Clear resets the tree to empty, returning every node to the arena free
// list. Teardown is an iterative pop-minimum loop so a deep tree never
// grows the call stack.
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

// internal: node surgery and rebalancing

func (t *Tree[K, V]) node(r arena.Ref) *node[K, V] {
	return t.nodes.Get(r)
}

func (t *Tree[K, V]) find(k K) arena.Ref {
	cur := t.root
	for !cur.IsNil() {
		n := t.node(cur)
		switch {
		case k == n.key:
			return cur
		case k < n.key:
			cur = n.left
		default:
			cur = n.right
		}
	}
	return arena.Ref{}
}

func (t *Tree[K, V]) minOf(r arena.Ref) arena.Ref {
	for {
		n := t.node(r)
		if n.left.IsNil() {
			return r
		}
		r = n.left
	}
}

func (t *Tree[K, V]) maxOf(r arena.Ref) arena.Ref {
	for {
		n := t.node(r)
		if n.right.IsNil() {
			return r
		}
		r = n.right
	}
}

func (t *Tree[K, V]) height(r arena.Ref) int {
	if r.IsNil() {
		return 0
	}
	return t.node(r).height
}

func (t *Tree[K, V]) balanceFactor(r arena.Ref) int {
	if r.IsNil() {
		return 0
	}
	n := t.node(r)
	return t.height(n.left) - t.height(n.right)
}

func (t *Tree[K, V]) updateHeight(r arena.Ref) {
	n := t.node(r)
	lh, rh := t.height(n.left), t.height(n.right)
	if lh < rh {
		n.height = rh + 1
	} else {
		n.height = lh + 1
	}
}

// replaceChild points the parent slot that held old at repl instead; a nil
// parent means old was the root.
func (t *Tree[K, V]) replaceChild(parent, old, repl arena.Ref) {
	if parent.IsNil() {
		t.root = repl
	} else {
		p := t.node(parent)
		switch old {
		case p.left:
			p.left = repl
		case p.right:
			p.right = repl
		default:
			panic("avl: node is not a child of its parent")
		}
	}
	if !repl.IsNil() {
		t.node(repl).parent = parent
	}
}

// rebalanceFrom recomputes heights from r up to the root, rotating at
// every node whose balance factor leaves {-1, 0, 1}.
func (t *Tree[K, V]) rebalanceFrom(r arena.Ref) {
	for cur := r; !cur.IsNil(); {
		t.updateHeight(cur)
		cur = t.rebalance(cur)
		cur = t.node(cur).parent
	}
}

// rebalance applies one of the four rotation cases at r when needed and
// returns the reference now rooting the subtree.
func (t *Tree[K, V]) rebalance(r arena.Ref) arena.Ref {
	bf := t.balanceFactor(r)
	switch {
	case bf > 1:
		if t.balanceFactor(t.node(r).left) < 0 { // LR case
			t.rotateLeft(t.node(r).left)
		}
		return t.rotateRight(r)
	case bf < -1:
		if t.balanceFactor(t.node(r).right) > 0 { // RL case
			t.rotateRight(t.node(r).right)
		}
		return t.rotateLeft(r)
	}
	return r
}

// rotateRight lifts y's left child into y's place.
//
//	      y                x
//	     / \             /   \
//	    x   T4          z     y
//	   / \      ->     / \   / \
//	  z   T3         T1  T2 T3  T4
//	 / \
//	T1  T2
func (t *Tree[K, V]) rotateRight(y arena.Ref) arena.Ref {
	yn := t.node(y)
	parent := yn.parent
	x := yn.left
	xn := t.node(x)
	t3 := xn.right

	yn.left = t3
	if !t3.IsNil() {
		t.node(t3).parent = y
	}
	xn.right = y
	yn.parent = x
	t.replaceChild(parent, y, x)

	t.updateHeight(y)
	t.updateHeight(x)
	return x
}

// rotateLeft lifts y's right child into y's place; the mirror image of
// rotateRight.
func (t *Tree[K, V]) rotateLeft(y arena.Ref) arena.Ref {
	yn := t.node(y)
	parent := yn.parent
	x := yn.right
	xn := t.node(x)
	t2 := xn.left

	yn.right = t2
	if !t2.IsNil() {
		t.node(t2).parent = y
	}
	xn.left = y
	yn.parent = x
	t.replaceChild(parent, y, x)

	t.updateHeight(y)
	t.updateHeight(x)
	return x
}
