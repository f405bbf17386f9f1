package reference

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/internal/kernels"
	"github.com/born-ml/gpgpu/internal/shape"
)

func random(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}

// TestMatMulAgainstDense tests the host matmul against the gonum product.
func TestMatMulAgainstDense(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tests := []struct {
		name string
		info kernels.MatMulInfo
	}{
		{"plain", kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 5, K: 7, N: 3}},
		{"batched", kernels.MatMulInfo{BatchA: 3, BatchB: 3, M: 4, K: 2, N: 6}},
		{"broadcast A", kernels.MatMulInfo{BatchA: 1, BatchB: 2, M: 3, K: 3, N: 3}},
		{"transposed", kernels.MatMulInfo{BatchA: 2, BatchB: 1, M: 3, K: 5, N: 4, TransposeA: true, TransposeB: true}},
		{"bias relu", kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 6, K: 4, N: 5, Bias: true, Activation: kernels.Activation{Kind: kernels.ReLU}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := random(rng, tt.info.ShapeA().NumElements())
			b := random(rng, tt.info.ShapeB().NumElements())
			bias := random(rng, tt.info.N)
			got := MatMul(tt.info, a, b, bias)
			want := MatMulDense(tt.info, a, b, bias)
			require.Len(t, got, tt.info.OutputShape().NumElements())
			assert.InDeltaSlice(t, want, got, 1e-5)
		})
	}
}

// TestMatMulSmall tests a product small enough to check by hand.
func TestMatMulSmall(t *testing.T) {
	info := kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 2, K: 2, N: 2, Bias: true}
	got := MatMul(info, []float32{1, 2, 3, 4}, []float32{5, 6, 7, 8}, []float32{1, -1})
	assert.Equal(t, []float32{20, 21, 44, 49}, got)
}

// TestConv2D tests the im2col convolution on hand-computed outputs.
func TestConv2D(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	w := []float32{1, 1, 1, 1}
	base := kernels.Conv2DInfo{
		Batch: 1, InHeight: 3, InWidth: 3, InChannels: 1,
		FilterHeight: 2, FilterWidth: 2, OutChannels: 1,
		StrideHeight: 1, StrideWidth: 1, DilationHeight: 1, DilationWidth: 1,
	}
	tests := []struct {
		name   string
		modify func(*kernels.Conv2DInfo)
		want   []float32
	}{
		{"valid", func(c *kernels.Conv2DInfo) { c.OutHeight, c.OutWidth = 2, 2 }, []float32{12, 16, 24, 28}},
		{"padded", func(c *kernels.Conv2DInfo) {
			c.OutHeight, c.OutWidth, c.PadTop, c.PadLeft = 2, 2, 1, 1
			c.StrideHeight, c.StrideWidth = 2, 2
		}, []float32{1, 5, 11, 28}},
		{"dilated", func(c *kernels.Conv2DInfo) {
			c.OutHeight, c.OutWidth = 1, 1
			c.DilationHeight, c.DilationWidth = 2, 2
		}, []float32{20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := base
			tt.modify(&info)
			assert.Equal(t, tt.want, Conv2D(info, x, w, nil))
		})
	}
}

// TestDepthwiseMatchesConv tests that a depthwise convolution with one
// channel equals the regular convolution.
func TestDepthwiseMatchesConv(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	info := kernels.Conv2DInfo{
		Batch: 2, InHeight: 5, InWidth: 5, InChannels: 1,
		FilterHeight: 3, FilterWidth: 3, OutHeight: 5, OutWidth: 5, OutChannels: 1,
		StrideHeight: 1, StrideWidth: 1, DilationHeight: 1, DilationWidth: 1,
		PadTop: 1, PadLeft: 1, Bias: true,
	}
	x := random(rng, info.InputShape().NumElements())
	w := random(rng, 9)
	bias := []float32{0.5}
	conv := Conv2D(info, x, w, bias)
	info.Depthwise = true
	assert.InDeltaSlice(t, conv, DepthwiseConv2D(info, x, w, bias), 1e-5)
}

// TestDepthwiseMultiplier tests output channel order with a channel
// multiplier.
func TestDepthwiseMultiplier(t *testing.T) {
	info := kernels.Conv2DInfo{
		Batch: 1, InHeight: 1, InWidth: 1, InChannels: 2,
		FilterHeight: 1, FilterWidth: 1, OutHeight: 1, OutWidth: 1, OutChannels: 4,
		StrideHeight: 1, StrideWidth: 1, DilationHeight: 1, DilationWidth: 1,
		ChannelMultiplier: 2, Depthwise: true,
	}
	got := Conv2D(info, []float32{3, 5}, []float32{1, 2, 10, 20}, nil)
	assert.Equal(t, []float32{3, 6, 50, 100}, got)
}

// TestBinaryBroadcast tests broadcasting along leading and size-1 axes.
func TestBinaryBroadcast(t *testing.T) {
	got, s, err := Binary(kernels.BinaryAdd,
		[]float32{1, 2, 3, 4, 5, 6}, shape.Shape{2, 3},
		[]float32{10, 20}, shape.Shape{2, 1},
		kernels.Activation{})
	require.NoError(t, err)
	assert.Equal(t, shape.Shape{2, 3}, s)
	assert.Equal(t, []float32{11, 12, 13, 24, 25, 26}, got)

	got, _, err = Binary(kernels.BinaryMax, []float32{-1, 2, -3}, shape.Shape{3}, []float32{0}, shape.Shape{}, kernels.Activation{})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 0}, got)

	_, _, err = Binary(kernels.BinaryMul, []float32{1, 2}, shape.Shape{2}, []float32{1, 2, 3}, shape.Shape{3}, kernels.Activation{})
	require.Error(t, err)

	assert.Equal(t, []float32{0, 0.5}, Unary(kernels.Activation{Kind: kernels.ReLU}, []float32{-1, 0.5}))
}
