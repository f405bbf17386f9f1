//go:build !windows

package webgpu

import "github.com/born-ml/gpgpu/internal/shader"

// Device is unavailable on this platform.
type Device struct{}

// New returns ErrUnavailable.
func New() (*Device, error) { return nil, ErrUnavailable }

// IsAvailable returns false.
func IsAvailable() bool { return false }

// Name returns "WebGPU".
func (*Device) Name() string { return adapterName("", "") }

// Pipelines returns an empty cache.
func (*Device) Pipelines() *PipelineCache { return &PipelineCache{} }

// Release does nothing.
func (*Device) Release() {}

// PipelineCache is unavailable on this platform.
type PipelineCache struct{}

// Prepare returns ErrUnavailable.
func (*PipelineCache) Prepare(*shader.Program) error { return ErrUnavailable }

// Len returns 0.
func (*PipelineCache) Len() int { return 0 }
