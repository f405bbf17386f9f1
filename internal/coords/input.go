package coords

import (
	"slices"
	"strings"

	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/packing"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Accessor returns the accessor name of an input: "A" reads via getA.
func Accessor(name string) string {
	return "get" + strings.ToUpper(name[:1]) + name[1:]
}

// AtOutCoords returns the broadcast accessor name of an input.
func AtOutCoords(name string) string {
	return Accessor(name) + "AtOutCoords"
}

// InputBinding declares the storage of an input: a uniform vec4 array or a
// sampled texture.
func InputBinding(in shape.Input, binding int) ir.Global {
	if in.Shape.IsUniform {
		n := max(1, (in.Shape.Size()+3)/4)
		return ir.UniformBinding{Name: in.Name, Binding: binding, Type: ir.ArrayOf(ir.TVec4F, n)}
	}
	return ir.TextureBinding{Name: in.Name, Binding: binding}
}

// SamplerBinding declares the sampler used by sampling programs.
func SamplerBinding(binding int) ir.Global {
	return ir.SamplerBinding{Name: SamplerName, Binding: binding}
}

// EmitInput returns the accessors of one input:
//
//	getA(d0, ..., dn-1)   value at logical coordinates (vec4 block when packed)
//	getAAtOutCoords()     value aligned with the program's output coordinates
//
// Size-1 axes are squeezed out: getA forwards the kept coordinates to
// getASqueezed, whose formula only spans the remaining axes.
//
// getAAtOutCoords calls getOutputCoords, so it must be placed after the
// output functions. It is nil when the input cannot be aligned with the
// output: the input has more axes, or it is unpacked in a packed program.
func EmitInput(in shape.Input, out shape.Info, mode Mode) ([]ir.Global, *ir.Function, error) {
	if err := in.Shape.Validate(); err != nil {
		return nil, nil, err
	}
	if _, err := formFor(out.Rank()); err != nil {
		return nil, nil, err
	}
	return emitAccessor(in, mode.Access), emitAtOutCoords(in, out, mode), nil
}

func valueType(info shape.Info) ir.Type {
	if info.IsPacked {
		return ir.TVec4F
	}
	return ir.TF32
}

func emitAccessor(in shape.Input, access Access) []ir.Global {
	name := Accessor(in.Name)
	rank := in.Shape.Rank()
	squeezed, kept := in.Shape.Squeeze()
	if len(kept) == rank {
		return []ir.Global{readFunc(name, in.Name, in.Shape, access)}
	}

	inner := name + "Squeezed"
	names := paramNames(rank)
	args := make([]ir.Expr, len(kept))
	for i, axis := range kept {
		args[i] = ir.V(names[axis])
	}
	outer := ir.Func(name, ir.Params(names...), valueType(in.Shape), ir.Ret(ir.Fn(inner, args...)))
	return []ir.Global{readFunc(inner, in.Name, squeezed, access), outer}
}

// readFunc emits the accessor that addresses storage directly.
func readFunc(fn, binding string, info shape.Info, access Access) *ir.Function {
	names := paramNames(info.Rank())
	logical := ir.Idents(names...)
	t := valueType(info)

	if info.IsUniform {
		index := ir.Add(ravel(logical, info.LogicalShape), ir.Int(info.FlatOffset))
		return ir.Func(fn, ir.Params(names...), t,
			ir.Let("index", index),
			ir.Ret(ir.At(ir.At(ir.V(binding), ir.Div(ir.V("index"), ir.Int(4))), ir.Fn(fnImod, ir.V("index"), ir.Int(4)))),
		)
	}

	l := layoutOf(info)
	stmts, texel := l.encode(logical, access)
	var read ir.Expr
	if access == Sampling {
		uv := ir.Fn(fnTexelToUV, texel, ir.Int(l.cols), ir.Int(l.rows))
		read = ir.Fn("textureSampleLevel", ir.V(binding), ir.V(SamplerName), uv, ir.Float(0))
	} else {
		read = ir.Fn("textureLoad", ir.V(binding), texel, ir.Int(0))
	}
	if !info.IsPacked {
		read = ir.Swz(read, "x")
	}
	return ir.Func(fn, ir.Params(names...), t, append(stmts, ir.Ret(read))...)
}

// emitAtOutCoords reads the input at the output invocation's coordinates.
// Leading output axes the input lacks are dropped and axes along which the
// input is broadcast read coordinate zero. Packed inputs are rearranged to
// the packed output block, or reduced to the addressed channel in unpacked
// programs.
func emitAtOutCoords(in shape.Input, out shape.Info, mode Mode) *ir.Function {
	inRank, outRank := in.Shape.Rank(), out.Rank()
	if inRank > outRank || (mode.Packed && !in.Shape.IsPacked) {
		return nil
	}

	diff := outRank - inRank
	broadcast := shape.BroadcastDims(in.Shape.LogicalShape, out.LogicalShape)
	args := make([]ir.Expr, inRank)
	for i := range args {
		if slices.Contains(broadcast, i) {
			args[i] = ir.Int(0)
			continue
		}
		args[i] = Component(ir.V("coords"), outRank, i+diff)
	}

	var body []ir.Stmt
	if outRank > 0 && inRank > 0 {
		body = append(body, ir.Let("coords", ir.Fn(FnOutputCoords)))
	}
	value := ir.Fn(Accessor(in.Name), args...)
	switch {
	case mode.Packed:
		value = packing.RelayoutFor(in.Shape.LogicalShape, out.LogicalShape).Apply(value)
	case in.Shape.IsPacked:
		row, col := ir.Int(0), ir.Int(0)
		if inRank >= 1 {
			col = args[inRank-1]
		}
		if inRank >= 2 {
			row = args[inRank-2]
		}
		value = ir.Fn("getChannel", value, ir.Make(ir.TVec2I, row, col))
	}
	body = append(body, ir.Ret(value))
	return ir.Func(AtOutCoords(in.Name), nil, mode.ValueType(), body...)
}
