package kernels

import (
	"fmt"

	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/shape"
)

// BinaryOp is an elementwise binary operator.
type BinaryOp string

// Binary operators.
const (
	BinaryAdd BinaryOp = "add"
	BinarySub BinaryOp = "sub"
	BinaryMul BinaryOp = "mul"
	BinaryMax BinaryOp = "max"
	BinaryMin BinaryOp = "min"
)

// Apply returns the operator applied to x and y.
func (op BinaryOp) Apply(x, y ir.Expr) (ir.Expr, error) {
	switch op {
	case BinaryAdd:
		return ir.Add(x, y), nil
	case BinarySub:
		return ir.Sub(x, y), nil
	case BinaryMul:
		return ir.Mul(x, y), nil
	case BinaryMax:
		return ir.Fn("max", x, y), nil
	case BinaryMin:
		return ir.Fn("min", x, y), nil
	}
	return nil, fmt.Errorf("unknown binary operator %q", string(op))
}

// Eval applies the operator on the host.
func (op BinaryOp) Eval(x, y float32) float32 {
	switch op {
	case BinarySub:
		return x - y
	case BinaryMul:
		return x * y
	case BinaryMax:
		return max(x, y)
	case BinaryMin:
		return min(x, y)
	}
	return x + y
}

// Binary generates act(a op b) with numpy-style broadcasting. The output
// takes the broadcast shape and the layout of mode. Packed programs need
// packed inputs; unpacked programs read packed inputs channel by channel.
func Binary(op BinaryOp, a, b shape.Info, mode coords.Mode, act Activation, opts Options) (*shader.Program, error) {
	name := "binary_" + string(op)
	if mode.Packed && (!a.IsPacked || !b.IsPacked) {
		return nil, reject(name, "unpacked input", "packed program")
	}
	outShape, _, err := shape.BroadcastShapes(a.LogicalShape, b.LogicalShape)
	if err != nil {
		return nil, fmt.Errorf("kernels: %s: %w", name, err)
	}
	value, err := op.Apply(ir.Fn(coords.AtOutCoords("A")), ir.Fn(coords.AtOutCoords("B")))
	if err != nil {
		return nil, fmt.Errorf("kernels: %s: %w", name, err)
	}
	out := shape.New(outShape, mode.Packed, opts.maxTextureSize())
	return elementwise(name, []shape.Input{{Name: "A", Shape: a}, {Name: "B", Shape: b}}, out, mode, act, value,
		BinaryKey(op, a, b, mode, act, opts), opts)
}

// Unary generates act(x).
func Unary(act Activation, x shape.Info, mode coords.Mode, opts Options) (*shader.Program, error) {
	name := "unary_" + act.String()
	if mode.Packed && !x.IsPacked {
		return nil, reject(name, "unpacked input", "packed program")
	}
	out := shape.New(x.LogicalShape, mode.Packed, opts.maxTextureSize())
	return elementwise(name, []shape.Input{{Name: "X", Shape: x}}, out, mode, act, ir.Fn(coords.AtOutCoords("X")),
		UnaryKey(act, x, mode, opts), opts)
}

func elementwise(name string, inputs []shape.Input, out shape.Info, mode coords.Mode, act Activation, value ir.Expr, key string, opts Options) (*shader.Program, error) {
	if _, err := coords.CoordsType(out.Rank()); err != nil {
		return nil, fmt.Errorf("kernels: %s: %w", name, err)
	}
	value = ir.Fn(FnActivation, value)
	if mode.Packed {
		value = maskOutput(value, out)
	}
	entry := &ir.EntryPoint{Stage: mode.Stage(), Body: perTexel(out, mode, value)}
	spec := shader.Spec{
		Name:          name,
		Inputs:        inputs,
		Output:        out,
		Mode:          mode,
		WorkPerThread: [2]int{1, 1},
		Body:          []ir.Global{act.Func(mode.ValueType()), entry},
		Key:           key,
	}
	if mode.Access == coords.Indexed {
		entry.WorkgroupSize = [3]int{naiveWorkgroup, naiveWorkgroup, 1}
		spec.WorkgroupSize = entry.WorkgroupSize
		spec.Dispatch = texelDispatch(out, naiveWorkgroup)
	}
	return build(spec, opts)
}

// maskOutput applies padMask to a packed value computed at the output
// coordinates bound to coords.
func maskOutput(value ir.Expr, out shape.Info) ir.Expr {
	rank := out.Rank()
	row, col := ir.Expr(ir.Int(0)), ir.Expr(ir.Int(0))
	rows, cols := 1, 1
	if rank >= 1 {
		col = coords.Component(ir.V("coords"), rank, rank-1)
		cols = out.LogicalShape[rank-1]
	}
	if rank >= 2 {
		row = coords.Component(ir.V("coords"), rank, rank-2)
		rows = out.LogicalShape[rank-2]
	}
	return padMask(value, row, col, rows, cols)
}
