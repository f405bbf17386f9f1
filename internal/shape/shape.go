// Package shape describes how a logical tensor is laid out in 2D texture
// storage. It holds the pure data the coordinate compiler and the kernel
// generators consume; nothing in it emits code.
package shape

import (
	"fmt"
	"math"
)

// MaxRank is the highest logical rank the coordinate compiler supports.
const MaxRank = 6

// DefaultMaxTextureSize is the default maxTextureDimension2D of WebGPU
// adapters.
const DefaultMaxTextureSize = 8192

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that the rank is supported and all dimensions are > 0.
func (s Shape) Validate() error {
	if len(s) > MaxRank {
		return &UnsupportedRankError{Rank: len(s), Max: MaxRank}
	}
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Ravel returns the row-major flat index of coords.
func (s Shape) Ravel(coords []int) int {
	idx := 0
	for i, c := range coords {
		idx = idx*s[i] + c
	}
	return idx
}

// Unravel is the inverse of Ravel.
func (s Shape) Unravel(flat int) []int {
	coords := make([]int, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		coords[i] = flat % s[i]
		flat /= s[i]
	}
	return coords
}

// TexelShape returns the shape of a packed tensor in texel units: the last
// two axes are halved (rounded up). A vector [n] becomes [ceil(n/2)] and a
// scalar stays a scalar.
func TexelShape(s Shape) Shape {
	out := s.Clone()
	switch len(s) {
	case 0:
	case 1:
		out[0] = ceilDiv(s[0], 2)
	default:
		out[len(s)-2] = ceilDiv(s[len(s)-2], 2)
		out[len(s)-1] = ceilDiv(s[len(s)-1], 2)
	}
	return out
}

// TexShapeFor selects the 2D storage shape (rows, cols) of a tensor.
//
// Vectors are stored as a single row, matrices as themselves. Higher ranks
// fold leading axes into rows, trying to keep as many trailing axes in the
// columns as the size limit allows; when no split fits, a squarish shape is
// used. Packed tensors apply the same rules in texel units, so every 2x2
// block lands in one texel.
func TexShapeFor(s Shape, packed bool, maxTexSize int) [2]int {
	if maxTexSize <= 0 {
		maxTexSize = DefaultMaxTextureSize
	}
	if !packed {
		return texShape(s, maxTexSize)
	}
	switch len(s) {
	case 0:
		return [2]int{1, 1}
	case 1:
		if t := texShape(TexelShape(s), maxTexSize/2); t[0] == 1 {
			return [2]int{1, s[0]}
		}
	case 2:
		if s[0] <= maxTexSize && s[1] <= maxTexSize {
			return [2]int{s[0], s[1]}
		}
	}
	t := texShape(TexelShape(s), maxTexSize/2)
	return [2]int{2 * t[0], 2 * t[1]}
}

func texShape(s Shape, maxTexSize int) [2]int {
	switch len(s) {
	case 0:
		return [2]int{1, 1}
	case 1:
		if s[0] <= maxTexSize {
			return [2]int{1, s[0]}
		}
	case 2:
		if s[0] <= maxTexSize && s[1] <= maxTexSize {
			return [2]int{s[0], s[1]}
		}
	default:
		for j := len(s) - 1; j >= 1; j-- {
			rows, cols := s[:j].NumElements(), s[j:].NumElements()
			if rows <= maxTexSize && cols <= maxTexSize {
				return [2]int{rows, cols}
			}
		}
	}
	n := s.NumElements()
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	return [2]int{ceilDiv(n, cols), cols}
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Rules:
// 1. Compare shapes element-wise from right to left
// 2. Dimensions are compatible if:
//   - They are equal, OR
//   - One of them is 1
//
// 3. Missing dimensions are treated as 1
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed, and an error if incompatible.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := false

	for i := 0; i < maxLen; i++ {
		aDim := dimFromRight(a, i)
		bDim := dimFromRight(b, i)

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}
	if len(a) != len(b) {
		needsBroadcast = true
	}

	return result, needsBroadcast, nil
}

// BroadcastDims returns the axes of in (ascending) that are size 1 while
// the rightmost-aligned axis of out is larger. Reads along those axes must
// use coordinate zero.
func BroadcastDims(in, out Shape) []int {
	var dims []int
	for i := 0; i < len(in); i++ {
		axis := len(in) - 1 - i
		if in[axis] == 1 && dimFromRight(out, i) > 1 {
			dims = append([]int{axis}, dims...)
		}
	}
	return dims
}

func dimFromRight(s Shape, i int) int {
	if idx := len(s) - 1 - i; idx >= 0 {
		return s[idx]
	}
	return 1
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
