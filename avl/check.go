package avl

import (
	"github.com/pkg/errors"

	"github.com/yeqown/abtree/internal/arena"
)

// IsBalancedTree reports whether every reachable node has a balance factor
// in {-1, 0, 1}. It scans breadth-first and serves as the structural
// oracle the rebalancing code is tested against.
func (t *Tree[K, V]) IsBalancedTree() bool {
	if t.root.IsNil() {
		return true
	}
	queue := []arena.Ref{t.root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if bf := t.balanceFactor(cur); bf < -1 || bf > 1 {
			return false
		}
		n := t.node(cur)
		if !n.left.IsNil() {
			queue = append(queue, n.left)
		}
		if !n.right.IsNil() {
			queue = append(queue, n.right)
		}
	}
	return true
}

// checkStructure verifies parent links, stored heights, key ordering and
// the reachable node count for every node in the tree.
func (t *Tree[K, V]) checkStructure() error {
	if t.root.IsNil() {
		if t.length != 0 {
			return errors.Errorf("avl: empty tree reports length %d", t.length)
		}
		return nil
	}

	type frame struct {
		node   arena.Ref
		parent arena.Ref
	}
	stack := []frame{{node: t.root}}
	count := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.node(f.node)
		count++

		if n.parent != f.parent {
			return errors.Errorf("avl: parent link broken at key %v", n.key)
		}
		lh, rh := t.height(n.left), t.height(n.right)
		want := 1 + max(lh, rh)
		if n.height != want {
			return errors.Errorf("avl: stale height at key %v: have %d want %d", n.key, n.height, want)
		}
		if !n.left.IsNil() {
			if l := t.node(n.left); !(l.key < n.key) {
				return errors.Errorf("avl: left child %v not below %v", l.key, n.key)
			}
			stack = append(stack, frame{node: n.left, parent: f.node})
		}
		if !n.right.IsNil() {
			if r := t.node(n.right); !(n.key < r.key) {
				return errors.Errorf("avl: right child %v not above %v", r.key, n.key)
			}
			stack = append(stack, frame{node: n.right, parent: f.node})
		}
	}
	if count != t.length {
		return errors.Errorf("avl: length %d does not match %d reachable nodes", t.length, count)
	}
	return nil
}
