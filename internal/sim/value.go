package sim

import (
	"fmt"

	"github.com/born-ml/gpgpu/internal/ir"
)

// Value is a runtime value: a scalar, a vector of up to four components,
// or an array.
type Value struct {
	T   ir.Type
	I   [4]int32
	U   [4]uint32
	F   [4]float32
	B   [4]bool
	Arr []Value
}

// Int returns an i32 value.
func Int(v int) Value { return Value{T: ir.TI32, I: [4]int32{int32(v)}} }

// Float returns an f32 value.
func Float(v float32) Value { return Value{T: ir.TF32, F: [4]float32{v}} }

// Bool returns a bool value.
func Bool(v bool) Value { return Value{T: ir.TBool, B: [4]bool{v}} }

// IVec returns a vecN<i32>.
func IVec(vs ...int) Value {
	out := Value{T: ir.Vec(ir.I32, len(vs))}
	for i, v := range vs {
		out.I[i] = int32(v)
	}
	return out
}

// UVec returns a vecN<u32>.
func UVec(vs ...int) Value {
	out := Value{T: ir.Vec(ir.U32, len(vs))}
	for i, v := range vs {
		out.U[i] = uint32(v)
	}
	return out
}

// FVec returns a vecN<f32>.
func FVec(vs ...float32) Value {
	out := Value{T: ir.Vec(ir.F32, len(vs))}
	copy(out.F[:], vs)
	return out
}

// Ints flattens an integer scalar, vector or array of scalars.
func (v Value) Ints() []int {
	if v.T.IsArray() {
		var out []int
		for _, e := range v.Arr {
			out = append(out, e.Ints()...)
		}
		return out
	}
	out := make([]int, v.T.Width)
	for i := range out {
		if v.T.Kind == ir.U32 {
			out[i] = int(v.U[i])
		} else {
			out[i] = int(v.I[i])
		}
	}
	return out
}

// Floats returns the components of an f32 scalar or vector.
func (v Value) Floats() []float32 {
	return append([]float32(nil), v.F[:v.T.Width]...)
}

// Vec4 returns the components of a vec4<f32>.
func (v Value) Vec4() [4]float32 { return v.F }

// String formats the value for error messages.
func (v Value) String() string {
	if v.T.IsArray() {
		return fmt.Sprintf("%s%v", v.T, v.Arr)
	}
	switch v.T.Kind {
	case ir.F32:
		return fmt.Sprintf("%s%v", v.T, v.F[:v.T.Width])
	case ir.Bool:
		return fmt.Sprintf("%s%v", v.T, v.B[:v.T.Width])
	case ir.U32:
		return fmt.Sprintf("%s%v", v.T, v.U[:v.T.Width])
	}
	return fmt.Sprintf("%s%v", v.T, v.I[:v.T.Width])
}

// zero returns the zero value of t.
func zero(t ir.Type) Value {
	v := Value{T: t}
	if t.IsArray() {
		v.Arr = make([]Value, t.Len)
		for i := range v.Arr {
			v.Arr[i] = zero(t.Elem())
		}
	}
	return v
}

// clone deep copies arrays so assignment has value semantics.
func (v Value) clone() Value {
	if v.Arr != nil {
		arr := make([]Value, len(v.Arr))
		for i, e := range v.Arr {
			arr[i] = e.clone()
		}
		v.Arr = arr
	}
	return v
}

// component returns component i of a vector as a scalar.
func (v Value) component(i int) Value {
	s := Value{T: ir.Type{Kind: v.T.Kind, Width: 1}}
	s.I[0], s.U[0], s.F[0], s.B[0] = v.I[i], v.U[i], v.F[i], v.B[i]
	return s
}

// setComponent stores scalar s into component i.
func (v *Value) setComponent(i int, s Value) {
	v.I[i], v.U[i], v.F[i], v.B[i] = s.I[0], s.U[0], s.F[0], s.B[0]
}

// splat widens a scalar to width n.
func (v Value) splat(n int) Value {
	out := Value{T: ir.Type{Kind: v.T.Kind, Width: n}}
	for i := range n {
		out.setComponent(i, v)
	}
	return out
}

func literal(l ir.Lit) Value {
	switch l.Type.Kind {
	case ir.F32:
		return Float(float32(l.Float))
	case ir.U32:
		return Value{T: ir.TU32, U: [4]uint32{uint32(l.Int)}}
	case ir.Bool:
		return Bool(l.Bool)
	}
	return Int(int(l.Int))
}
