package btree

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type pair struct {
	k, v int
}

func dump(t *Tree[int, int]) []pair {
	out := make([]pair, 0, t.Len())
	t.Ascend(func(k, v int) bool {
		out = append(out, pair{k, v})
		return true
	})
	return out
}

func Test_BTree_New(t *testing.T) {
	for _, order := range []int{0, 1, 2, -3} {
		order := order
		t.Run(fmt.Sprintf("order %d panics", order), func(t *testing.T) {
			require.Panics(t, func() { New[int, int](order) })
		})
	}

	for _, order := range []int{3, 4, 5, 6, 7, 16} {
		tree := New[int, int](order)
		assert.Equal(t, order, tree.Order())
	}
}

func Test_BTree_SplitOccupancy(t *testing.T) {
	// filling a node to its order triggers the first split; at even orders
	// the right remainder legitimately sits one entry below minKeyNum and
	// the occupancy oracle must accept it
	for _, order := range []int{3, 4, 5, 6, 16} {
		order := order
		t.Run(fmt.Sprintf("order %d", order), func(t *testing.T) {
			tree := New[int, int](order)
			for k := 1; k <= order; k++ {
				tree.Insert(k, k)
				require.NoError(t, tree.checkInvariants(), "after inserting %d", k)
			}
			assert.Equal(t, order, tree.Len())

			keys := make([]int, 0, order)
			tree.Ascend(func(k, v int) bool {
				keys = append(keys, k)
				return true
			})
			require.Len(t, keys, order)
			require.True(t, sort.IntsAreSorted(keys))
		})
	}
}

func Test_BTree_Empty(t *testing.T) {
	tree := New[int, int](4)

	assert.Equal(t, 0, tree.Len())
	assert.True(t, tree.IsEmpty())

	_, ok := tree.Get(1)
	assert.False(t, ok)
	assert.False(t, tree.Contains(1))

	_, ok = tree.Remove(1)
	assert.False(t, ok)

	_, _, ok = tree.PopMin()
	assert.False(t, ok)
	_, _, ok = tree.PopMax()
	assert.False(t, ok)

	require.NoError(t, tree.checkInvariants())
}

func Test_BTree_Order5_InsertRemove(t *testing.T) {
	tree := New[int, int](5)
	for _, k := range []int{8, 12, 18, 19, 20, 21, 22, 23} {
		tree.Insert(k, k)
		require.NoError(t, tree.checkInvariants(), "after inserting %d", k)
	}
	assert.Equal(t, 8, tree.Len())

	v, ok := tree.Remove(19)
	require.True(t, ok)
	assert.Equal(t, 19, v)
	require.NoError(t, tree.checkInvariants())

	v, ok = tree.Remove(20)
	require.True(t, ok)
	assert.Equal(t, 20, v)
	require.NoError(t, tree.checkInvariants())

	_, ok = tree.Remove(30)
	assert.False(t, ok)

	want := []pair{{8, 8}, {12, 12}, {18, 18}, {21, 21}, {22, 22}, {23, 23}}
	assert.Equal(t, want, dump(tree))
	assert.Equal(t, 6, tree.Len())
}

func Test_BTree_Order3_InsertRemove(t *testing.T) {
	tree := New[int, int](3)
	for _, k := range []int{8, 12, 18, 19, 20, 21, 22, 23} {
		tree.Insert(k, k)
		require.NoError(t, tree.checkInvariants(), "after inserting %d", k)
	}

	v, ok := tree.Remove(19)
	require.True(t, ok)
	assert.Equal(t, 19, v)
	require.NoError(t, tree.checkInvariants())

	v, ok = tree.Remove(20)
	require.True(t, ok)
	assert.Equal(t, 20, v)
	require.NoError(t, tree.checkInvariants())

	_, ok = tree.Remove(30)
	assert.False(t, ok)

	want := []pair{{8, 8}, {12, 12}, {18, 18}, {21, 21}, {22, 22}, {23, 23}}
	assert.Equal(t, want, dump(tree))
}

func Test_BTree_SetOverwrite(t *testing.T) {
	tree := New[int, int](5)
	tree.Insert(8, 8)
	tree.Insert(12, 12)
	tree.Set(8, 91)
	tree.Set(10, 100)

	assert.Equal(t, 3, tree.Len())
	assert.Equal(t, []pair{{8, 91}, {10, 100}, {12, 12}}, dump(tree))
}

func Test_BTree_Get(t *testing.T) {
	tree := New[int, string](4)
	for i := 0; i < 200; i++ {
		tree.Insert(i, fmt.Sprintf("v%d", i))
	}

	for i := 0; i < 200; i++ {
		v, ok := tree.Get(i)
		require.True(t, ok, "missing key %d", i)
		assert.Equal(t, fmt.Sprintf("v%d", i), v)
	}
	_, ok := tree.Get(200)
	assert.False(t, ok)
	assert.False(t, tree.Contains(-1))
}

func Test_BTree_RandomInsertRemove(t *testing.T) {
	const n = 400
	for _, order := range []int{3, 4, 5, 9, 16} {
		order := order
		t.Run(fmt.Sprintf("order %d", order), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(order)))
			tree := New[int, int](order)

			for i, k := range rng.Perm(n) {
				tree.Insert(k, k)
				require.Equal(t, i+1, tree.Len())
				require.NoError(t, tree.checkInvariants(), "after inserting %d", k)
			}

			keys := make([]int, 0, n)
			tree.Ascend(func(k, v int) bool {
				keys = append(keys, k)
				return true
			})
			require.True(t, sort.IntsAreSorted(keys))
			require.Len(t, keys, n)

			for i, k := range rng.Perm(n) {
				v, ok := tree.Remove(k)
				require.True(t, ok, "missing key %d", k)
				require.Equal(t, k, v)
				require.Equal(t, n-i-1, tree.Len())
				require.NoError(t, tree.checkInvariants(), "after removing %d", k)
			}
			assert.True(t, tree.IsEmpty())
		})
	}
}

func Test_BTree_PopMinPopMax(t *testing.T) {
	const n = 100
	tree := New[int, int](4)
	rng := rand.New(rand.NewSource(99))
	for _, k := range rng.Perm(n) {
		tree.Insert(k, k)
	}

	lo, hi := 0, n-1
	for !tree.IsEmpty() {
		if rng.Intn(2) == 0 {
			k, v, ok := tree.PopMin()
			require.True(t, ok)
			require.Equal(t, lo, k)
			require.Equal(t, lo, v)
			lo++
		} else {
			k, v, ok := tree.PopMax()
			require.True(t, ok)
			require.Equal(t, hi, k)
			require.Equal(t, hi, v)
			hi--
		}
		require.NoError(t, tree.checkInvariants())
	}
	assert.Equal(t, hi+1, lo)

	_, _, ok := tree.PopMin()
	assert.False(t, ok)
}

func Test_BTree_Clear(t *testing.T) {
	tree := New[int, int](3)
	for i := 0; i < 50; i++ {
		tree.Insert(i, i)
	}

	tree.Clear()
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 3, tree.Order())
	require.NoError(t, tree.checkInvariants())

	tree.Insert(7, 70)
	v, ok := tree.Get(7)
	require.True(t, ok)
	assert.Equal(t, 70, v)
}

func Test_BTree_Drain(t *testing.T) {
	tree := New[int, int](4)
	for _, k := range []int{3, 1, 2} {
		tree.Insert(k, k)
	}

	var drained []int
	tree.Drain(func(k, v int) {
		drained = append(drained, k)
	})

	assert.Equal(t, []int{1, 2, 3}, drained)
	assert.True(t, tree.IsEmpty())
}

func Test_BTree_DrainPanicStillFreesRest(t *testing.T) {
	tree := New[int, int](3)
	for i := 0; i < 20; i++ {
		tree.Insert(i, i)
	}

	require.Panics(t, func() {
		tree.Drain(func(k, v int) {
			if k == 5 {
				panic("boom")
			}
		})
	})
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, 0, tree.Len())
}

type btreeTestSuite struct {
	suite.Suite

	tree *Tree[string, int]
}

func (su *btreeTestSuite) SetupTest() {
	su.tree = New[string, int](4)
	for i, k := range []string{"delta", "alpha", "echo", "bravo", "charlie"} {
		su.tree.Insert(k, i)
	}
}

func (su *btreeTestSuite) Test_GetSet() {
	v, ok := su.tree.Get("alpha")
	su.True(ok)
	su.Equal(1, v)

	su.tree.Set("alpha", 42)
	v, ok = su.tree.Get("alpha")
	su.True(ok)
	su.Equal(42, v)
	su.Equal(5, su.tree.Len())
}

func (su *btreeTestSuite) Test_Remove() {
	v, ok := su.tree.Remove("charlie")
	su.True(ok)
	su.Equal(4, v)
	su.False(su.tree.Contains("charlie"))
	su.Equal(4, su.tree.Len())

	_, ok = su.tree.Remove("charlie")
	su.False(ok)
}

func (su *btreeTestSuite) Test_MinMax() {
	k, _, ok := su.tree.PopMin()
	su.True(ok)
	su.Equal("alpha", k)

	k, _, ok = su.tree.PopMax()
	su.True(ok)
	su.Equal("echo", k)
}

func Test_BTree_Suite(t *testing.T) {
	suite.Run(t, new(btreeTestSuite))
}
