package shape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComputeStrides tests row-major stride computation.
func TestComputeStrides(t *testing.T) {
	assert.Equal(t, []int{}, Shape{}.ComputeStrides())
	assert.Equal(t, []int{1}, Shape{5}.ComputeStrides())
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
}

// TestRavelUnravel tests that Unravel inverts Ravel for every index.
func TestRavelUnravel(t *testing.T) {
	s := Shape{2, 3, 1, 4}
	for i := 0; i < s.NumElements(); i++ {
		coords := s.Unravel(i)
		assert.Equal(t, i, s.Ravel(coords))
	}
	assert.Equal(t, 0, Shape{}.Ravel(nil))
}

// TestTexelShape tests the packed view of logical shapes.
func TestTexelShape(t *testing.T) {
	tests := []struct {
		in, want Shape
	}{
		{Shape{}, Shape{}},
		{Shape{5}, Shape{3}},
		{Shape{3, 5}, Shape{2, 3}},
		{Shape{2, 4, 4}, Shape{2, 2, 2}},
		{Shape{1, 1, 1, 1, 1, 1}, Shape{1, 1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TexelShape(tt.in), "shape %v", tt.in)
	}
}

// TestTexShapeFor tests storage shape selection.
func TestTexShapeFor(t *testing.T) {
	tests := []struct {
		name   string
		shape  Shape
		packed bool
		max    int
		want   [2]int
	}{
		{"scalar", Shape{}, false, 0, [2]int{1, 1}},
		{"vector", Shape{7}, false, 0, [2]int{1, 7}},
		{"matrix", Shape{3, 5}, false, 0, [2]int{3, 5}},
		{"rank 3 folds rows", Shape{2, 3, 4}, false, 0, [2]int{6, 4}},
		{"rank 4 keeps suffix when small", Shape{2, 3, 4, 5}, false, 100, [2]int{24, 5}},
		{"long vector goes square", Shape{100}, false, 16, [2]int{10, 10}},
		{"packed scalar", Shape{}, true, 0, [2]int{1, 1}},
		{"packed vector", Shape{5}, true, 0, [2]int{1, 5}},
		{"packed matrix", Shape{3, 5}, true, 0, [2]int{3, 5}},
		{"packed rank 3", Shape{2, 3, 5}, true, 0, [2]int{8, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TexShapeFor(tt.shape, tt.packed, tt.max)
			assert.Equal(t, tt.want, got)
			info := Info{LogicalShape: tt.shape, TexShape: got, IsPacked: tt.packed}
			assert.NoError(t, info.Validate())
		})
	}
}

// TestBroadcastShapes tests NumPy broadcasting.
func TestBroadcastShapes(t *testing.T) {
	got, needs, err := BroadcastShapes(Shape{3, 1}, Shape{3, 5})
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Equal(t, Shape{3, 5}, got)

	got, needs, err = BroadcastShapes(Shape{5}, Shape{2, 5})
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Equal(t, Shape{2, 5}, got)

	_, needs, err = BroadcastShapes(Shape{3, 5}, Shape{3, 5})
	require.NoError(t, err)
	assert.False(t, needs)

	_, _, err = BroadcastShapes(Shape{3, 4}, Shape{3, 5})
	assert.Error(t, err)
}

// TestBroadcastDims tests detection of size-1 axes against larger outputs.
func TestBroadcastDims(t *testing.T) {
	assert.Equal(t, []int{0}, BroadcastDims(Shape{1, 4}, Shape{3, 4}))
	assert.Equal(t, []int{1}, BroadcastDims(Shape{3, 1}, Shape{2, 3, 4}))
	assert.Equal(t, []int{0, 2}, BroadcastDims(Shape{1, 3, 1}, Shape{2, 3, 4}))
	assert.Nil(t, BroadcastDims(Shape{1}, Shape{1}))
	assert.Nil(t, BroadcastDims(Shape{}, Shape{2, 2}))
}

// TestSqueeze tests that squeezing returns a new value with kept axes.
func TestSqueeze(t *testing.T) {
	orig := New(Shape{1, 3, 1, 4}, false, 0)
	sq, kept := orig.Squeeze()
	assert.Equal(t, Shape{3, 4}, sq.LogicalShape)
	assert.Equal(t, []int{1, 3}, kept)
	assert.Equal(t, Shape{1, 3, 1, 4}, orig.LogicalShape, "receiver must not change")
	assert.Equal(t, orig.TexShape, sq.TexShape)

	packed := New(Shape{1, 2, 1, 1}, true, 0)
	sq, kept = packed.Squeeze()
	assert.Equal(t, Shape{2, 1, 1}, sq.LogicalShape, "packed keeps the last two axes")
	assert.Equal(t, []int{1, 2, 3}, kept)

	sq, kept = New(Shape{1}, false, 0).Squeeze()
	assert.Equal(t, 0, sq.Rank())
	assert.Empty(t, kept)
}

// TestInfoValidate tests the invariant checks.
func TestInfoValidate(t *testing.T) {
	err := Info{LogicalShape: Shape{1, 1, 1, 1, 1, 1, 2}, TexShape: [2]int{1, 2}}.Validate()
	var rankErr *UnsupportedRankError
	require.ErrorAs(t, err, &rankErr)
	assert.Equal(t, 7, rankErr.Rank)
	assert.True(t, errors.Is(err, ErrUnsupportedRank))

	err = Info{LogicalShape: Shape{2, 2}, TexShape: [2]int{2, 2}, IsPacked: true, FlatOffset: 1}.Validate()
	assert.ErrorIs(t, err, ErrUnsupportedFeature)

	err = Info{LogicalShape: Shape{3, 3}, TexShape: [2]int{2, 4}}.Validate()
	assert.Error(t, err)

	err = Info{LogicalShape: Shape{3, 3}, TexShape: [2]int{2, 5}, FlatOffset: 1}.Validate()
	assert.NoError(t, err)
}

// TestInfoString tests the key format.
func TestInfoString(t *testing.T) {
	assert.Equal(t, "[2 3]@2x3", New(Shape{2, 3}, false, 0).String())
	assert.Equal(t, "[2 3]@2x3p", New(Shape{2, 3}, true, 0).String())
	assert.Equal(t, "[4]@1x4u", NewUniform(Shape{4}).String())
}
