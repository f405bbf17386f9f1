//go:build windows

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/internal/config"
	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/kernels"
	"github.com/born-ml/gpgpu/internal/shape"
)

func openDevice(t *testing.T) *Device {
	t.Helper()
	if !IsAvailable() {
		t.Skip("WebGPU not available")
	}
	d, err := New()
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

// TestPipelineCache tests that compute programs compile once per key.
func TestPipelineCache(t *testing.T) {
	d := openDevice(t)
	c, err := kernels.NewCompiler(config.Default())
	require.NoError(t, err)

	prog, err := c.MatMul(kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 32, K: 32, N: 32})
	require.NoError(t, err)

	first, err := d.Pipelines().Pipeline(prog)
	require.NoError(t, err)
	second, err := d.Pipelines().Pipeline(prog)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, d.Pipelines().Len())
}

// TestPipelineRejectsFragment tests that sampling programs are refused.
func TestPipelineRejectsFragment(t *testing.T) {
	d := openDevice(t)
	s := shape.New(shape.Shape{4, 4}, false, 0)
	prog, err := kernels.Unary(kernels.Activation{}, s, coords.Mode{Access: coords.Sampling}, kernels.Options{})
	require.NoError(t, err)

	_, err = d.Pipelines().Pipeline(prog)
	assert.ErrorIs(t, err, shape.ErrUnsupportedFeature)
	assert.Equal(t, 0, d.Pipelines().Len())
}
