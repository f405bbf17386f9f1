// Package kernels generates the operator programs: tiled matrix multiply,
// convolution and elementwise kernels. Every generator is a pure function
// of its shape description, tiling configuration and options, and returns
// a self-contained shader.Program.
package kernels

import (
	"fmt"

	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/logging"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Options are the generation options shared by all operators.
type Options struct {
	// Production disables NaN checks in the emitted prefix.
	Production bool
	// MaxTextureSize bounds either side of the storage textures chosen for
	// operands. Zero selects shape.DefaultMaxTextureSize.
	MaxTextureSize int
}

func (o Options) shader() shader.Options {
	return shader.Options{Production: o.Production}
}

// keySuffix distinguishes keys of programs built with different options.
func (o Options) keySuffix() string {
	s := fmt.Sprintf("max=%d", o.maxTextureSize())
	if o.Production {
		s += ":prod"
	}
	return s
}

func (o Options) maxTextureSize() int {
	if o.MaxTextureSize <= 0 {
		return shape.DefaultMaxTextureSize
	}
	return o.MaxTextureSize
}

// build assembles s and logs the result.
func build(s shader.Spec, opts Options) (*shader.Program, error) {
	prog, err := shader.Build(s, opts.shader())
	if err != nil {
		return nil, fmt.Errorf("kernels: %w", err)
	}
	logging.Logger().Debug("kernels: built program",
		"name", prog.Name,
		"key", prog.Key,
		"bytes", len(prog.Source))
	return prog, nil
}

// reject logs a refused feature request and returns its error.
func reject(op, feature, reason string) error {
	logging.Logger().Warn("kernels: unsupported feature requested",
		"op", op,
		"feature", feature,
		"reason", reason)
	return fmt.Errorf("kernels: %s: %w", op, &shape.UnsupportedFeatureError{Feature: feature, Reason: reason})
}

// Invocation ids as i32.
var (
	localX = ir.Swz(ir.V(coords.LocalID), "x")
	localY = ir.Swz(ir.V(coords.LocalID), "y")
	groupX = ir.Swz(ir.V(coords.WorkgroupID), "x")
	groupY = ir.Swz(ir.V(coords.WorkgroupID), "y")
	groupZ = ir.Swz(ir.V(coords.WorkgroupID), "z")
)

var zeroVec4 = ir.Make(ir.TVec4F, ir.Float(0))

// perTexel returns the entry body of a program computing one output texel
// per invocation. value is evaluated with coords bound to the output
// coordinates.
func perTexel(out shape.Info, mode coords.Mode, value ir.Expr) []ir.Stmt {
	valid := ir.Fn(coords.FnOutputValid, ir.Fn(coords.FnOutputTexel))
	load := ir.Let("coords", ir.Fn(coords.FnOutputCoords))
	if mode.Access == coords.Sampling {
		return []ir.Stmt{
			ir.If{Cond: ir.Not(valid), Then: []ir.Stmt{ir.Ret(ir.Make(ir.TVec4F, ir.Float(0)))}},
			load,
			ir.Ret(coords.OutputValue(value, mode)),
		}
	}
	args := make([]ir.Expr, 0, out.Rank()+1)
	for i := range out.Rank() {
		args = append(args, coords.Component(ir.V("coords"), out.Rank(), i))
	}
	args = append(args, value)
	return []ir.Stmt{ir.When(valid, load, ir.Do(ir.Fn(coords.FnSetOutput, args...)))}
}

// padMask zeroes the lanes of the packed block at logical (row, col) that
// lie outside a rows x cols matrix. Padding lanes must stay zero whatever
// the bias and activation make of them.
func padMask(value, row, col ir.Expr, rows, cols int) ir.Expr {
	if rows%2 == 0 && cols%2 == 0 {
		return value
	}
	rowIn, colIn := ir.BoolLit(true), ir.BoolLit(true)
	if rows%2 != 0 {
		rowIn = ir.Lt(ir.Add(row, ir.Int(1)), ir.Int(rows))
	}
	if cols%2 != 0 {
		colIn = ir.Lt(ir.Add(col, ir.Int(1)), ir.Int(cols))
	}
	keep := ir.Make(ir.TVec4B, ir.BoolLit(true), colIn, rowIn, ir.And(rowIn, colIn))
	return ir.Fn("select", zeroVec4, value, keep)
}

// texelDispatch returns the workgroup count covering every output texel
// with size x size workgroups.
func texelDispatch(out shape.Info, size int) [3]int {
	return [3]int{ceilDiv(out.TexCols(), size), ceilDiv(out.TexRows(), size), 1}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
