// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package program

import (
	"context"
	"log/slog"

	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/logging"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/shape"
	"github.com/born-ml/gpgpu/internal/sim"
)

// Program is a generated kernel with everything needed to bind and
// dispatch it.
type Program = shader.Program

// Binding is one slot of a program's bind group.
type Binding = shader.Binding

// Shape is a logical tensor shape, outermost axis first.
type Shape = shape.Shape

// Info describes a tensor and the texture it is stored in.
type Info = shape.Info

// Input is a named program input.
type Input = shape.Input

// Mode selects packed or unpacked storage and the access mode.
type Mode = coords.Mode

// Access is how kernels reach texture storage.
type Access = coords.Access

// Access modes.
const (
	Indexed  = coords.Indexed
	Sampling = coords.Sampling
)

// MaxRank is the highest supported tensor rank.
const MaxRank = shape.MaxRank

// NewInfo returns the description of a tensor of shape s. maxTexSize
// bounds the texture sides; zero selects the WebGPU default.
func NewInfo(s Shape, packed bool, maxTexSize int) Info {
	return shape.New(s, packed, maxTexSize)
}

// Simulate runs prog on the CPU with one row-major slice per input and
// returns the row-major output.
func Simulate(ctx context.Context, prog *Program, values ...[]float32) ([]float32, error) {
	return sim.Execute(ctx, prog, values...)
}

// SetLogger installs the logger used by the generators. Rejected feature
// requests are logged at warn level and program builds at debug level.
// Passing nil silences logging, which is the default.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}
