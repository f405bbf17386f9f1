package kernels_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/kernels"
	"github.com/born-ml/gpgpu/internal/packing"
	"github.com/born-ml/gpgpu/internal/reference"
	"github.com/born-ml/gpgpu/internal/shape"
)

var modes = map[string]coords.Mode{
	"indexed":         {Access: coords.Indexed},
	"indexed packed":  {Access: coords.Indexed, Packed: true},
	"sampling":        {Access: coords.Sampling},
	"sampling packed": {Access: coords.Sampling, Packed: true},
}

// TestBinaryBroadcast tests broadcasting binary operators in every mode.
func TestBinaryBroadcast(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 2))
	tests := []struct {
		name   string
		op     kernels.BinaryOp
		as, bs shape.Shape
		act    kernels.Activation
	}{
		{"same shape", kernels.BinaryAdd, shape.Shape{3, 5}, shape.Shape{3, 5}, kernels.Activation{}},
		{"row vector", kernels.BinarySub, shape.Shape{2, 3, 4}, shape.Shape{4}, kernels.Activation{}},
		{"column", kernels.BinaryMul, shape.Shape{2, 3, 4}, shape.Shape{3, 1}, kernels.Activation{Kind: kernels.ReLU}},
		{"both sides", kernels.BinaryMax, shape.Shape{5, 1}, shape.Shape{1, 3}, kernels.Activation{}},
		{"scalar", kernels.BinaryMin, shape.Shape{2, 2, 3}, shape.Shape{}, kernels.Activation{Kind: kernels.Sigmoid}},
	}
	for _, tt := range tests {
		for label, mode := range modes {
			t.Run(tt.name+"/"+label, func(t *testing.T) {
				a := shape.New(tt.as, mode.Packed, 0)
				b := shape.New(tt.bs, mode.Packed, 0)
				prog, err := kernels.Binary(tt.op, a, b, mode, tt.act, kernels.Options{})
				require.NoError(t, err)

				av := random(rng, tt.as.NumElements())
				bv := random(rng, tt.bs.NumElements())
				want, outShape, err := reference.Binary(tt.op, av, tt.as, bv, tt.bs, tt.act)
				require.NoError(t, err)
				assert.Equal(t, outShape, prog.OutputShape())
				assert.InDeltaSlice(t, want, execute(t, prog, av, bv), 1e-5)
			})
		}
	}
}

// TestBinaryPackedInputInUnpackedProgram tests reading packed inputs
// channel by channel.
func TestBinaryPackedInputInUnpackedProgram(t *testing.T) {
	as := shape.Shape{3, 3}
	a := shape.New(as, true, 0)
	b := shape.New(as, false, 0)
	prog, err := kernels.Binary(kernels.BinaryAdd, a, b, coords.Mode{Access: coords.Indexed}, kernels.Activation{}, kernels.Options{})
	require.NoError(t, err)
	got := execute(t, prog, sequence(9), sequence(9))
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12, 14, 16, 18}, got)
}

// TestUnary tests every activation in every mode, and that padding lanes
// of packed outputs stay zero.
func TestUnary(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 1))
	s := shape.Shape{3, 5}
	acts := []kernels.Activation{
		{},
		{Kind: kernels.ReLU},
		{Kind: kernels.ReLU6},
		{Kind: kernels.ELU},
		{Kind: kernels.Sigmoid},
		{Kind: kernels.Tanh},
		{Kind: kernels.LeakyReLU, Alpha: 0.2},
	}
	for _, act := range acts {
		for label, mode := range modes {
			t.Run(act.String()+"/"+label, func(t *testing.T) {
				prog, err := kernels.Unary(act, shape.New(s, mode.Packed, 0), mode, kernels.Options{})
				require.NoError(t, err)
				x := random(rng, s.NumElements())
				for i := range x {
					x[i] *= 8
				}
				want := reference.Unary(act, x)
				assert.InDeltaSlice(t, want, execute(t, prog, x), 1e-5)

				if mode.Packed && mode.Access == coords.Indexed {
					out := outputTexture(t, prog, x)
					packed := packing.Pack(s, want)
					assert.InDeltaSlice(t, packed, out.Data[:len(packed)], 1e-5)
				}
			})
		}
	}
}

// TestElementwiseUnsupported tests the refused combinations.
func TestElementwiseUnsupported(t *testing.T) {
	packed := coords.Mode{Access: coords.Indexed, Packed: true}
	s := shape.Shape{2, 2}

	_, err := kernels.Binary(kernels.BinaryAdd, shape.New(s, true, 0), shape.New(s, false, 0), packed, kernels.Activation{}, kernels.Options{})
	assert.ErrorIs(t, err, shape.ErrUnsupportedFeature)

	_, err = kernels.Unary(kernels.Activation{}, shape.New(s, false, 0), packed, kernels.Options{})
	assert.ErrorIs(t, err, shape.ErrUnsupportedFeature)

	deep := shape.Shape{1, 1, 1, 1, 1, 2, 2}
	_, err = kernels.Unary(kernels.Activation{}, shape.New(deep, false, 0), coords.Mode{Access: coords.Indexed}, kernels.Options{})
	assert.ErrorIs(t, err, shape.ErrUnsupportedRank)

	_, err = kernels.Binary(kernels.BinaryAdd, shape.New(shape.Shape{2}, false, 0), shape.New(shape.Shape{3}, false, 0),
		coords.Mode{Access: coords.Indexed}, kernels.Activation{}, kernels.Options{})
	assert.Error(t, err)

	_, err = kernels.Binary("pow", shape.New(s, false, 0), shape.New(s, false, 0),
		coords.Mode{Access: coords.Indexed}, kernels.Activation{}, kernels.Options{})
	assert.Error(t, err)
}

// TestPackedTexelsMatchUnpacked tests that each packed output texel holds
// the 2x2 block of the same program's unpacked output, channel x at the
// top-left and w at the bottom-right.
func TestPackedTexelsMatchUnpacked(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 3))
	act := kernels.Activation{Kind: kernels.ReLU}
	for _, s := range []shape.Shape{{2, 2}, {4, 6}} {
		x := random(rng, s.NumElements())

		flat, err := kernels.Unary(act, shape.New(s, false, 0), coords.Mode{Access: coords.Indexed}, kernels.Options{})
		require.NoError(t, err)
		packed, err := kernels.Unary(act, shape.New(s, true, 0), coords.Mode{Access: coords.Indexed, Packed: true}, kernels.Options{})
		require.NoError(t, err)

		scalars := outputTexture(t, flat, x)
		texels := outputTexture(t, packed, x)
		require.Equal(t, [2]int{s[0] / 2, s[1] / 2}, [2]int{texels.Rows, texels.Cols}, "%v", s)

		at := func(r, c int) float32 {
			i := r*s[1] + c
			return scalars.Texel(i/scalars.Cols, i%scalars.Cols)[0]
		}
		for tr := range texels.Rows {
			for tc := range texels.Cols {
				got := texels.Texel(tr, tc)
				for ch := range 4 {
					r, c := 2*tr+ch/2, 2*tc+ch%2
					assert.Equal(t, at(r, c), got[ch], "%v texel (%d,%d) channel %d", s, tr, tc, ch)
				}
			}
		}
	}
}
