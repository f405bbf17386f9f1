package coords

import "github.com/born-ml/gpgpu/internal/ir"

// Helper function names emitted by IndexMathFuncs.
const (
	fnImod        = "imod"
	fnFlatToTexel = "flatToTexel"
	fnTexelToUV   = "texelToUV"
	fnUVToTexel   = "uvToTexel"
	fnPacked2D    = "packedTexelFrom2D"
	fnPacked3D    = "packedTexelFrom3D"
)

// IndexMathFuncs returns the index helpers generated accessors call:
//
//	imod(a, b)                     a mod b for non-negative a
//	flatToTexel(index, texCols)    vec2<i32>(col, row) of a row-major index
//	texelToUV(texel, cols, rows)   normalised centre of a texel
//	uvToTexel(uv, cols, rows)      texel containing uv
//	packedTexelFrom2D(...)         texel of logical (row, col) in packed storage
//	packedTexelFrom3D(...)         same with a leading batch axis
func IndexMathFuncs() []ir.Global {
	size := ir.Make(ir.TVec2F, ir.ToF32(ir.V("texCols")), ir.ToF32(ir.V("texRows")))
	return []ir.Global{
		ir.Func(fnImod, ir.Params("a", "b"), ir.TI32,
			ir.Ret(ir.Sub(ir.V("a"), ir.Mul(ir.V("b"), ir.Div(ir.V("a"), ir.V("b"))))),
		),
		ir.Func(fnFlatToTexel, ir.Params("index", "texCols"), ir.TVec2I,
			ir.Ret(ir.Make(ir.TVec2I,
				ir.Fn(fnImod, ir.V("index"), ir.V("texCols")),
				ir.Div(ir.V("index"), ir.V("texCols")),
			)),
		),
		ir.Func(fnTexelToUV,
			[]ir.Param{{Name: "texel", Type: ir.TVec2I}, {Name: "texCols", Type: ir.TI32}, {Name: "texRows", Type: ir.TI32}},
			ir.TVec2F,
			ir.Ret(ir.Div(
				ir.Add(ir.Make(ir.TVec2F, ir.V("texel")), ir.Make(ir.TVec2F, ir.Float(0.5), ir.Float(0.5))),
				size,
			)),
		),
		ir.Func(fnUVToTexel,
			[]ir.Param{{Name: "uv", Type: ir.TVec2F}, {Name: "texCols", Type: ir.TI32}, {Name: "texRows", Type: ir.TI32}},
			ir.TVec2I,
			ir.Ret(ir.Make(ir.TVec2I, ir.Fn("floor", ir.Mul(ir.V("uv"), size)))),
		),
		ir.Func(fnPacked2D, ir.Params("texelsInLogicalRow", "texCols", "row", "col"), ir.TVec2I,
			ir.Let("index", ir.Add(
				ir.Mul(ir.Div(ir.V("row"), ir.Int(2)), ir.V("texelsInLogicalRow")),
				ir.Div(ir.V("col"), ir.Int(2)),
			)),
			ir.Ret(ir.Fn(fnFlatToTexel, ir.V("index"), ir.V("texCols"))),
		),
		ir.Func(fnPacked3D, ir.Params("texelsInBatch", "texelsInLogicalRow", "texCols", "b", "row", "col"), ir.TVec2I,
			ir.Let("index", ir.Add(
				ir.Add(
					ir.Mul(ir.V("b"), ir.V("texelsInBatch")),
					ir.Mul(ir.Div(ir.V("row"), ir.Int(2)), ir.V("texelsInLogicalRow")),
				),
				ir.Div(ir.V("col"), ir.Int(2)),
			)),
			ir.Ret(ir.Fn(fnFlatToTexel, ir.V("index"), ir.V("texCols"))),
		),
	}
}
