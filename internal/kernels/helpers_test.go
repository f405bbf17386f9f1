package kernels_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/sim"
	"github.com/born-ml/gpgpu/internal/texture"
)

// execute runs prog on the simulator and returns its row-major output.
func execute(t *testing.T, prog *shader.Program, values ...[]float32) []float32 {
	t.Helper()
	out, err := sim.Execute(context.Background(), prog, values...)
	require.NoError(t, err)
	return out
}

// outputTexture runs prog and returns the raw output texture.
func outputTexture(t *testing.T, prog *shader.Program, values ...[]float32) *texture.Texture {
	t.Helper()
	inputs, err := sim.Encode(prog, values...)
	require.NoError(t, err)
	out, err := sim.Run(prog, inputs)
	require.NoError(t, err)
	return out
}

func random(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}

func sequence(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}
