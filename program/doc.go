// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package program generates GPU kernels for tensor operators.
//
// # Overview
//
// Every generator returns a self-contained Program: WGSL source with its
// binding layout, workgroup size and dispatch grid. Tensors live in 2D
// float textures, either unpacked (one element per texel) or packed (a
// 2x2 block of the two innermost axes per RGBA texel). Programs read their
// inputs by sampling (fragment stage) or by indexed loads (compute stage).
//
// Operators:
//   - MatMul: batched, tiled matrix multiply with four tiling variants
//   - Conv2D and DepthwiseConv2D: NHWC convolution, cached, block or naive
//   - Binary and Unary: broadcasting elementwise kernels
//
// # Basic Usage
//
//	c, err := program.NewCompiler(program.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	prog, err := c.MatMul(program.MatMulInfo{BatchA: 1, BatchB: 1, M: 64, K: 32, N: 64})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(prog.Source)
//
// Programs can be run on the CPU with Simulate, which executes the
// generated kernel invocation by invocation.
package program
