package shader

import (
	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/packing"
)

// Options control prefix generation.
type Options struct {
	// Production replaces the NaN checks with stubs that return false.
	Production bool
}

// Stability helper names.
const (
	FnIsNaN     = "isnanF32"
	FnIsNaNVec4 = "isnanVec4"
)

// StabilityFuncs returns the NaN detection helpers. A NaN compares false
// against everything, which is the only portable test.
func StabilityFuncs(opts Options) []ir.Global {
	v := ir.V("v")
	isnan := ir.Not(ir.Or(
		ir.Lt(v, ir.Float(0)),
		ir.Lt(ir.Float(0), v),
		ir.Eq(v, ir.Float(0)),
	))
	if opts.Production {
		isnan = ir.BoolLit(false)
	}
	vecParam := []ir.Param{{Name: "v", Type: ir.TVec4F}}
	return []ir.Global{
		ir.Func(FnIsNaN, []ir.Param{{Name: "v", Type: ir.TF32}}, ir.TBool, ir.Ret(isnan)),
		ir.Func(FnIsNaNVec4, vecParam, ir.TVec4B,
			ir.Ret(ir.Make(ir.TVec4B,
				ir.Fn(FnIsNaN, ir.Swz(v, "x")),
				ir.Fn(FnIsNaN, ir.Swz(v, "y")),
				ir.Fn(FnIsNaN, ir.Swz(v, "z")),
				ir.Fn(FnIsNaN, ir.Swz(v, "w")),
			)),
		),
	}
}

// IndexMathFuncs returns the index and packing helpers.
func IndexMathFuncs() []ir.Global {
	return append(coords.IndexMathFuncs(), packing.GetChannelFunc())
}
