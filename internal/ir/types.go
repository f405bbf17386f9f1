// Package ir is a small code-generation intermediate representation for
// GPU kernels. Generators build trees of expressions and statements; Print
// renders them as WGSL and the device simulator executes them directly, so
// formulas can be checked without comparing source text.
package ir

import "fmt"

// Kind is a scalar kind.
type Kind uint8

// Scalar kinds.
const (
	Bool Kind = iota + 1
	I32
	U32
	F32
)

// String returns the WGSL spelling of the kind.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case F32:
		return "f32"
	default:
		return "invalid"
	}
}

// Type is a scalar (Width 1), a vector (Width 2..4) or, when Len > 0, a
// fixed-size array of such elements.
type Type struct {
	Kind  Kind
	Width int
	Len   int
}

// Common types.
var (
	TBool  = Type{Kind: Bool, Width: 1}
	TI32   = Type{Kind: I32, Width: 1}
	TU32   = Type{Kind: U32, Width: 1}
	TF32   = Type{Kind: F32, Width: 1}
	TVec2I = Type{Kind: I32, Width: 2}
	TVec3I = Type{Kind: I32, Width: 3}
	TVec4I = Type{Kind: I32, Width: 4}
	TVec3U = Type{Kind: U32, Width: 3}
	TVec2F = Type{Kind: F32, Width: 2}
	TVec3F = Type{Kind: F32, Width: 3}
	TVec4F = Type{Kind: F32, Width: 4}
	TVec4B = Type{Kind: Bool, Width: 4}
)

// Vec returns the vector type vecN<k>. Width 1 yields the scalar.
func Vec(k Kind, n int) Type {
	return Type{Kind: k, Width: n}
}

// ArrayOf returns array<elem, n>.
func ArrayOf(elem Type, n int) Type {
	elem.Len = n
	return elem
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return t.Len > 0 }

// IsScalar reports whether t is a non-array scalar.
func (t Type) IsScalar() bool { return t.Len == 0 && t.Width == 1 }

// Elem returns the element type of an array.
func (t Type) Elem() Type {
	t.Len = 0
	return t
}

// String returns the WGSL spelling of the type.
func (t Type) String() string {
	elem := t.Kind.String()
	if t.Width > 1 {
		elem = fmt.Sprintf("vec%d<%s>", t.Width, elem)
	}
	if t.Len > 0 {
		return fmt.Sprintf("array<%s, %d>", elem, t.Len)
	}
	return elem
}

// Format is a storage texel format.
type Format string

// Texel formats used for tensor storage.
const (
	FormatR32Float    Format = "r32float"
	FormatRGBA32Float Format = "rgba32float"
)

// Channels returns the number of channels stored per texel.
func (f Format) Channels() int {
	if f == FormatRGBA32Float {
		return 4
	}
	return 1
}

// Stage is a shader pipeline stage.
type Stage uint8

// Pipeline stages.
const (
	Compute Stage = iota + 1
	Fragment
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case Compute:
		return "compute"
	case Fragment:
		return "fragment"
	default:
		return "invalid"
	}
}

// Space is the address space of a module-scope variable.
type Space uint8

// Address spaces.
const (
	Private Space = iota + 1
	Workgroup
)

// String returns the WGSL spelling of the address space.
func (s Space) String() string {
	if s == Workgroup {
		return "workgroup"
	}
	return "private"
}
