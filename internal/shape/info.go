package shape

import "fmt"

// Info describes one tensor as seen by a kernel: its logical shape and the
// physical texture that stores it.
//
// Info is a value. Methods that transform it return a new Info and never
// share the LogicalShape backing array with the receiver.
type Info struct {
	LogicalShape Shape
	// TexShape is the storage texture size as (rows, cols) in logical
	// elements. A packed texture has ceil(rows/2) x ceil(cols/2) texels.
	TexShape [2]int
	// IsUniform marks small inputs passed as a uniform buffer instead of a
	// texture.
	IsUniform bool
	// IsPacked marks 2x2 channel packing: one RGBA texel per 2x2 block of
	// the last two axes.
	IsPacked bool
	// FlatOffset is the position of element 0 inside the storage, in
	// elements. Only unpacked storage supports an offset.
	FlatOffset int
}

// Input binds a tensor to the identifier used for it in kernel source.
type Input struct {
	Name  string
	Shape Info
}

// New describes a texture-backed tensor with the default storage shape.
func New(logical Shape, packed bool, maxTexSize int) Info {
	return Info{
		LogicalShape: logical.Clone(),
		TexShape:     TexShapeFor(logical, packed, maxTexSize),
		IsPacked:     packed,
	}
}

// NewUniform describes a tensor passed as a uniform buffer.
func NewUniform(logical Shape) Info {
	return Info{
		LogicalShape: logical.Clone(),
		TexShape:     [2]int{1, logical.NumElements()},
		IsUniform:    true,
	}
}

// Rank returns the logical rank.
func (i Info) Rank() int { return len(i.LogicalShape) }

// Size returns the number of logical elements.
func (i Info) Size() int { return i.LogicalShape.NumElements() }

// Clone returns a deep copy.
func (i Info) Clone() Info {
	i.LogicalShape = i.LogicalShape.Clone()
	return i
}

// WithLogicalShape returns a copy viewing the same storage under another
// logical shape.
func (i Info) WithLogicalShape(s Shape) Info {
	i.LogicalShape = s.Clone()
	return i
}

// TexRows returns the storage height in addressable units: texels for
// packed storage, elements otherwise.
func (i Info) TexRows() int {
	if i.IsPacked {
		return ceilDiv(i.TexShape[0], 2)
	}
	return i.TexShape[0]
}

// TexCols is TexRows for the width.
func (i Info) TexCols() int {
	if i.IsPacked {
		return ceilDiv(i.TexShape[1], 2)
	}
	return i.TexShape[1]
}

// Space returns the shape that addressing formulas iterate over: the texel
// shape for packed storage, the logical shape otherwise.
func (i Info) Space() Shape {
	if i.IsPacked {
		return TexelShape(i.LogicalShape)
	}
	return i.LogicalShape.Clone()
}

// Squeeze drops size-1 axes and reports the kept axes of the original
// shape. Packed tensors keep their last two axes (the last one for vectors)
// because channel packing is defined on them.
func (i Info) Squeeze() (Info, []int) {
	s := i.LogicalShape
	protected := 0
	if i.IsPacked {
		protected = min(len(s), 2)
	}
	kept := make([]int, 0, len(s))
	squeezed := make(Shape, 0, len(s))
	for axis, dim := range s {
		if dim != 1 || axis >= len(s)-protected {
			kept = append(kept, axis)
			squeezed = append(squeezed, dim)
		}
	}
	i.LogicalShape = squeezed
	return i, kept
}

// Validate checks the invariants the coordinate compiler relies on: a
// supported rank, enough storage for every element, and no flat offset or
// uniform storage combined with packing.
func (i Info) Validate() error {
	if err := i.LogicalShape.Validate(); err != nil {
		return err
	}
	if i.IsPacked && i.FlatOffset != 0 {
		return &UnsupportedFeatureError{Feature: "flat offset", Reason: "packed storage"}
	}
	if i.IsPacked && i.IsUniform {
		return &UnsupportedFeatureError{Feature: "uniform input", Reason: "packed storage"}
	}
	if i.IsUniform {
		return nil
	}
	if i.TexShape[0] <= 0 || i.TexShape[1] <= 0 {
		return fmt.Errorf("invalid texture shape %v", i.TexShape)
	}
	need, have := i.Size()+i.FlatOffset, i.TexShape[0]*i.TexShape[1]
	if i.IsPacked {
		need, have = i.Space().NumElements(), i.TexRows()*i.TexCols()
	}
	if need > have {
		return fmt.Errorf("shape %v does not fit texture %v", i.LogicalShape, i.TexShape)
	}
	return nil
}

// String formats the info for keys and logs.
func (i Info) String() string {
	s := fmt.Sprintf("%v@%dx%d", []int(i.LogicalShape), i.TexShape[0], i.TexShape[1])
	switch {
	case i.IsUniform:
		s += "u"
	case i.IsPacked:
		s += "p"
	}
	if i.FlatOffset != 0 {
		s += fmt.Sprintf("+%d", i.FlatOffset)
	}
	return s
}
