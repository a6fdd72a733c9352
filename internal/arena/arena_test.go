package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Arena_AllocGetFree(t *testing.T) {
	a := New[int](4)

	r1 := a.Alloc(10)
	r2 := a.Alloc(20)
	require.False(t, r1.IsNil())
	require.False(t, r2.IsNil())
	assert.Equal(t, 2, a.Len())

	assert.Equal(t, 10, *a.Get(r1))
	assert.Equal(t, 20, *a.Get(r2))

	*a.Get(r1) = 11
	assert.Equal(t, 11, *a.Get(r1))

	a.Free(r1)
	assert.Equal(t, 1, a.Len())
}

func Test_Arena_ReuseBumpsGeneration(t *testing.T) {
	a := New[string](1)

	r1 := a.Alloc("first")
	a.Free(r1)

	r2 := a.Alloc("second")
	require.False(t, r2.IsNil())
	assert.Equal(t, "second", *a.Get(r2))

	// the recycled slot must not be reachable through the old reference
	assert.NotEqual(t, r1, r2)
	assert.Panics(t, func() { a.Get(r1) })
}

func Test_Arena_Assertions(t *testing.T) {
	a := New[int](0)
	r := a.Alloc(1)

	assert.Panics(t, func() { a.Get(Ref{}) }, "null reference")
	assert.Panics(t, func() { a.Get(Ref{index: 99, gen: 1}) }, "out of range")

	a.Free(r)
	assert.Panics(t, func() { a.Free(r) }, "double free")
	assert.Panics(t, func() { a.Get(r) }, "stale reference")
}

func Test_Arena_ZeroRefIsNil(t *testing.T) {
	var r Ref
	assert.True(t, r.IsNil())
	assert.Equal(t, "ref(nil)", r.String())
}
