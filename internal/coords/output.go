package coords

import (
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Output function names.
const (
	FnOutputTexel  = "getOutputTexel"
	FnOutputValid  = "isValidOutputTexel"
	FnOutputCoords = "getOutputCoords"
	FnSetOutput    = "setOutput"
)

// checkOutput validates the output description for mode.
func checkOutput(out shape.Info, mode Mode) error {
	if err := out.Validate(); err != nil {
		return err
	}
	switch {
	case out.IsUniform:
		return &shape.UnsupportedFeatureError{Feature: "uniform output"}
	case out.FlatOffset != 0:
		return &shape.UnsupportedFeatureError{Feature: "flat offset", Reason: "program output"}
	case out.IsPacked != mode.Packed:
		return &shape.UnsupportedFeatureError{Feature: "output packing", Reason: "mismatched program mode"}
	}
	return nil
}

// OutputBinding declares the output texture. Sampling programs render to
// their target and declare nothing.
func OutputBinding(out shape.Info, mode Mode, binding int) []ir.Global {
	if mode.Access != Indexed {
		return nil
	}
	format := ir.FormatR32Float
	if mode.Packed {
		format = ir.FormatRGBA32Float
	}
	return []ir.Global{ir.TextureBinding{Name: OutputName, Binding: binding, Storage: true, Format: format}}
}

// InvocationGlobals declares the private copies of the invocation builtins
// that Prologue fills in.
func InvocationGlobals(mode Mode) []ir.Global {
	if mode.Access == Sampling {
		return []ir.Global{ir.GlobalVar{Name: ResultUV, Space: ir.Private, Type: ir.TVec2F}}
	}
	return []ir.Global{
		ir.GlobalVar{Name: GlobalID, Space: ir.Private, Type: ir.TVec3I},
		ir.GlobalVar{Name: LocalID, Space: ir.Private, Type: ir.TVec3I},
		ir.GlobalVar{Name: WorkgroupID, Space: ir.Private, Type: ir.TVec3I},
	}
}

// Prologue returns the statements that open the entry point, copying the
// builtins into the invocation globals.
func Prologue(out shape.Info, mode Mode) []ir.Stmt {
	if mode.Access == Sampling {
		size := ir.Make(ir.TVec2F, ir.Float(float64(out.TexCols())), ir.Float(float64(out.TexRows())))
		return []ir.Stmt{ir.Set(ir.V(ResultUV), ir.Div(ir.Swz(ir.V(ir.BuiltinFragCoord), "xy"), size))}
	}
	return []ir.Stmt{
		ir.Set(ir.V(GlobalID), ir.Make(ir.TVec3I, ir.V(ir.BuiltinGlobalID))),
		ir.Set(ir.V(LocalID), ir.Make(ir.TVec3I, ir.V(ir.BuiltinLocalID))),
		ir.Set(ir.V(WorkgroupID), ir.Make(ir.TVec3I, ir.V(ir.BuiltinWorkgroupID))),
	}
}

// EmitOutput returns the invocation globals and the output functions:
//
//	getOutputTexel() -> vec2<i32>           texel this invocation owns
//	isValidOutputTexel(texel) -> bool       texel stores an output element
//	getOutputCoords() -> coords             logical coordinates of that texel
//	setOutput(d0, ..., value)               indexed mode only
//
// Packed programs decode to the top-left coordinate of the texel's block.
func EmitOutput(out shape.Info, mode Mode) ([]ir.Global, error) {
	if err := checkOutput(out, mode); err != nil {
		return nil, err
	}
	f, err := formFor(out.Rank())
	if err != nil {
		return nil, err
	}
	l := layoutOf(out)

	texel := ir.Make(ir.TVec2I, ir.Swz(ir.V(GlobalID), "x"), ir.Swz(ir.V(GlobalID), "y"))
	if mode.Access == Sampling {
		texel = ir.Fn(fnUVToTexel, ir.V(ResultUV), ir.Int(l.cols), ir.Int(l.rows))
	}

	decodeStmts, coords := l.decode(ir.V("texel"))
	body := append([]ir.Stmt{ir.Let("texel", ir.Fn(FnOutputTexel))}, decodeStmts...)
	if out.Rank() > 0 {
		body = append(body, ir.Ret(f.Build(coords)))
	} else {
		body = []ir.Stmt{ir.Ret(ir.Int(0))}
	}

	valid := ir.And(
		ir.InRange(ir.Swz(ir.V("texel"), "x"), ir.Int(0), ir.Int(l.cols)),
		ir.InRange(ir.Swz(ir.V("texel"), "y"), ir.Int(0), ir.Int(l.rows)),
		ir.Lt(
			ir.Add(ir.Mul(ir.Swz(ir.V("texel"), "y"), ir.Int(l.cols)), ir.Swz(ir.V("texel"), "x")),
			ir.Int(l.space.NumElements()),
		),
	)

	decls := InvocationGlobals(mode)
	decls = append(decls,
		ir.Func(FnOutputTexel, nil, ir.TVec2I, ir.Ret(texel)),
		ir.Func(FnOutputValid, []ir.Param{{Name: "texel", Type: ir.TVec2I}}, ir.TBool, ir.Ret(valid)),
		ir.Func(FnOutputCoords, nil, f.Type, body...),
	)
	if mode.Access == Indexed {
		decls = append(decls, emitSetOutput(out, mode, l))
	}
	return decls, nil
}

func emitSetOutput(out shape.Info, mode Mode, l layout) *ir.Function {
	names := paramNames(out.Rank())
	params := ir.Params(names...)
	params = append(params, ir.Param{Name: "value", Type: mode.ValueType()})

	stmts, texel := l.encode(ir.Idents(names...), Indexed)
	value := ir.V("value")
	if !mode.Packed {
		value = ir.Make(ir.TVec4F, value, ir.Float(0), ir.Float(0), ir.Float(0))
	}
	stmts = append(stmts, ir.Do(ir.Fn("textureStore", ir.V(OutputName), texel, value)))
	return &ir.Function{Name: FnSetOutput, Params: params, Body: stmts}
}

// OutputValue converts a program value to the vec4 a sampling program
// returns.
func OutputValue(v ir.Expr, mode Mode) ir.Expr {
	if mode.Packed {
		return v
	}
	return ir.Make(ir.TVec4F, v, ir.Float(0), ir.Float(0), ir.Float(0))
}
