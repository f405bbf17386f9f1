// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu compiles generated programs into WebGPU compute
// pipelines on the local GPU.
//
// The native WebGPU library is loaded on Windows only. On other systems
// New returns ErrUnavailable.
//
// Example:
//
//	import (
//	    "github.com/born-ml/gpgpu/backend/webgpu"
//	    "github.com/born-ml/gpgpu/program"
//	)
//
//	func main() {
//	    gpu, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer gpu.Release()
//
//	    c, _ := program.NewCompiler(program.DefaultConfig())
//	    prog, _ := c.MatMul(program.MatMulInfo{BatchA: 1, BatchB: 1, M: 256, K: 256, N: 256})
//	    if err := gpu.Pipelines().Prepare(prog); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/gpgpu/internal/backend/webgpu"
)

// Device is an open WebGPU device.
type Device = internalwebgpu.Device

// ErrUnavailable is returned by New when no WebGPU device can be opened.
var ErrUnavailable = internalwebgpu.ErrUnavailable

// New opens the high performance adapter. Call Release when done.
func New() (*Device, error) {
	return internalwebgpu.New()
}

// IsAvailable reports whether a WebGPU adapter is present. It's useful for
// falling back to the simulator when no GPU is available.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
