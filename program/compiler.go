// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package program

import (
	"github.com/born-ml/gpgpu/internal/config"
	"github.com/born-ml/gpgpu/internal/kernels"
)

// Config is a tiling profile, loadable from YAML.
type Config = config.Config

// MatMulConfig is the matrix multiply tiling.
type MatMulConfig = config.MatMul

// ConvConfig is the convolution tiling.
type ConvConfig = config.Conv

// MatMulVariant selects the matrix multiply tiling strategy.
type MatMulVariant = config.MatMulVariant

// ConvVariant selects the convolution strategy.
type ConvVariant = config.ConvVariant

// Tiling variants.
const (
	MatMulBasic   = config.MatMulBasic
	MatMulWPT     = config.MatMulWPT
	MatMulWPT2D   = config.MatMulWPT2D
	MatMulBlocked = config.MatMulBlocked

	ConvCached = config.ConvCached
	ConvBlock  = config.ConvBlock
	ConvNaive  = config.ConvNaive
)

// DefaultConfig returns the default tiling profile.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads a YAML tiling profile over the defaults.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Compiler generates programs with one tiling profile and caches them.
// It is safe for concurrent use.
type Compiler = kernels.Compiler

// NewCompiler returns a compiler for cfg, which must validate.
func NewCompiler(cfg Config) (*Compiler, error) { return kernels.NewCompiler(cfg) }

// Options are the generation options shared by all operators.
type Options = kernels.Options

// MatMulInfo describes a batched matrix multiply.
type MatMulInfo = kernels.MatMulInfo

// Conv2DInfo describes an NHWC convolution.
type Conv2DInfo = kernels.Conv2DInfo

// ConvOutputSize returns the output extent of a convolution axis.
func ConvOutputSize(in, filter, stride, dilation, padBefore, padAfter int) int {
	return kernels.ConvOutputSize(in, filter, stride, dilation, padBefore, padAfter)
}

// Activation is the function applied to operator results.
type Activation = kernels.Activation

// Activations.
const (
	Linear    = kernels.Linear
	ReLU      = kernels.ReLU
	ReLU6     = kernels.ReLU6
	ELU       = kernels.ELU
	Sigmoid   = kernels.Sigmoid
	Tanh      = kernels.Tanh
	LeakyReLU = kernels.LeakyReLU
)

// ParseActivation parses names such as "relu" or "leakyrelu(0.1)".
func ParseActivation(s string) (Activation, error) { return kernels.ParseActivation(s) }

// BinaryOp is an elementwise binary operator.
type BinaryOp = kernels.BinaryOp

// Binary operators.
const (
	BinaryAdd = kernels.BinaryAdd
	BinarySub = kernels.BinarySub
	BinaryMul = kernels.BinaryMul
	BinaryMax = kernels.BinaryMax
	BinaryMin = kernels.BinaryMin
)

// MatMul generates a matrix multiply program without caching.
func MatMul(info MatMulInfo, tiling MatMulConfig, opts Options) (*Program, error) {
	return kernels.MatMul(info, tiling, opts)
}

// Conv2D generates a convolution program without caching.
func Conv2D(info Conv2DInfo, tiling ConvConfig, opts Options) (*Program, error) {
	return kernels.Conv2D(info, tiling, opts)
}

// DepthwiseConv2D generates a depthwise convolution program without
// caching.
func DepthwiseConv2D(info Conv2DInfo, tiling ConvConfig, opts Options) (*Program, error) {
	return kernels.DepthwiseConv2D(info, tiling, opts)
}

// Binary generates act(a op b) with broadcasting.
func Binary(op BinaryOp, a, b Info, mode Mode, act Activation, opts Options) (*Program, error) {
	return kernels.Binary(op, a, b, mode, act, opts)
}

// Unary generates act(x).
func Unary(act Activation, x Info, mode Mode, opts Options) (*Program, error) {
	return kernels.Unary(act, x, mode, opts)
}
