package btree

import (
	"github.com/pkg/errors"

	"github.com/yeqown/abtree/internal/arena"
)

// checkInvariants verifies the structural rules the rebalancing code must
// maintain: occupancy within [minOccupancy, maxKeyNum] on every non-root
// node, exactly entries+1 children on internal nodes, strictly ascending
// keys, uniform leaf depth and intact parent links. It is the oracle the
// mutation paths are tested against.
func (t *Tree[K, V]) checkInvariants() error {
	if t.root.IsNil() {
		if t.length != 0 {
			return errors.Errorf("btree: empty tree reports length %d", t.length)
		}
		return nil
	}

	type frame struct {
		node   arena.Ref
		parent arena.Ref
		depth  int
	}
	stack := []frame{{node: t.root}}
	leafDepth := -1
	count := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.node(f.node)
		count += len(n.entries)

		if n.parent != f.parent {
			return errors.Errorf("btree: parent link broken at node with %d entries", len(n.entries))
		}
		if f.node == t.root {
			if len(n.entries) == 0 || len(n.entries) > t.maxKeyNum {
				return errors.Errorf("btree: root holds %d entries, want [1,%d]", len(n.entries), t.maxKeyNum)
			}
		} else if len(n.entries) < t.minOccupancy() || len(n.entries) > t.maxKeyNum {
			return errors.Errorf("btree: node holds %d entries, want [%d,%d]", len(n.entries), t.minOccupancy(), t.maxKeyNum)
		}
		for i := 1; i < len(n.entries); i++ {
			if !(n.entries[i-1].key < n.entries[i].key) {
				return errors.Errorf("btree: entries out of order around %v", n.entries[i].key)
			}
		}
		if len(n.children) == 0 {
			if leafDepth == -1 {
				leafDepth = f.depth
			} else if leafDepth != f.depth {
				return errors.Errorf("btree: leaves at depths %d and %d", leafDepth, f.depth)
			}
			continue
		}
		if len(n.children) != len(n.entries)+1 {
			return errors.Errorf("btree: internal node has %d children for %d entries", len(n.children), len(n.entries))
		}
		for _, c := range n.children {
			stack = append(stack, frame{node: c, parent: f.node, depth: f.depth + 1})
		}
	}
	if count != t.length {
		return errors.Errorf("btree: length %d does not match %d stored entries", t.length, count)
	}
	return nil
}
