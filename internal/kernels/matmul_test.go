package kernels_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/internal/config"
	"github.com/born-ml/gpgpu/internal/kernels"
	"github.com/born-ml/gpgpu/internal/packing"
	"github.com/born-ml/gpgpu/internal/reference"
	"github.com/born-ml/gpgpu/internal/shape"
)

func basic(ts int) config.MatMul {
	return config.MatMul{Variant: config.MatMulBasic, TileSize: ts}
}

func wpt(ts, w int) config.MatMul {
	return config.MatMul{Variant: config.MatMulWPT, TileSize: ts, WorkPerThread: w}
}

func wpt2d(ts, w int) config.MatMul {
	return config.MatMul{Variant: config.MatMulWPT2D, TileSize: ts, WorkPerThread: w}
}

func blocked(tsm, tsn, tsk, wm, wn int) config.MatMul {
	return config.MatMul{Variant: config.MatMulBlocked, TileM: tsm, TileN: tsn, TileK: tsk, WorkPerThreadM: wm, WorkPerThreadN: wn}
}

// tilings covers every variant with tiles that divide the packed K
// dimension of some shapes and leave a remainder tile for others.
var tilings = []config.MatMul{
	basic(1),
	basic(2),
	basic(4),
	wpt(2, 2),
	wpt(4, 2),
	wpt(4, 4),
	wpt2d(2, 2),
	wpt2d(4, 2),
	blocked(4, 4, 2, 2, 2),
	blocked(2, 4, 4, 1, 2),
	blocked(8, 8, 8, 2, 2),
}

func name(c config.MatMul) string {
	if c.Variant == config.MatMulBlocked {
		return fmt.Sprintf("%s_%dx%dx%d_%dx%d", c.Variant, c.TileM, c.TileN, c.TileK, c.WorkPerThreadM, c.WorkPerThreadN)
	}
	return fmt.Sprintf("%s_%d_%d", c.Variant, c.TileSize, c.WorkPerThread)
}

func checkMatMul(t *testing.T, rng *rand.Rand, info kernels.MatMulInfo, tiling config.MatMul) {
	t.Helper()
	prog, err := kernels.MatMul(info, tiling, kernels.Options{})
	require.NoError(t, err)

	a := random(rng, info.ShapeA().NumElements())
	b := random(rng, info.ShapeB().NumElements())
	values := [][]float32{a, b}
	var bias []float32
	if info.Bias {
		bias = random(rng, info.N)
		values = append(values, bias)
	}
	got := execute(t, prog, values...)
	assert.InDeltaSlice(t, reference.MatMul(info, a, b, bias), got, 1e-4)
}

// TestMatMulTilings tests that every tiling variant computes the same
// product, with and without a remainder tile along K.
func TestMatMulTilings(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	shapes := []kernels.MatMulInfo{
		{BatchA: 2, BatchB: 2, M: 6, K: 10, N: 7},
		{BatchA: 1, BatchB: 1, M: 8, K: 8, N: 8},
		{BatchA: 1, BatchB: 1, M: 1, K: 3, N: 1},
	}
	for _, info := range shapes {
		for _, tiling := range tilings {
			t.Run(fmt.Sprintf("%dx%dx%d/%s", info.M, info.K, info.N, name(tiling)), func(t *testing.T) {
				checkMatMul(t, rng, info, tiling)
			})
		}
	}
}

// TestMatMulIdentity tests a 4x4 product with the identity on tiles of two
// and one texels.
func TestMatMulIdentity(t *testing.T) {
	a := sequence(16)
	identity := []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	info := kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 4, K: 4, N: 4}
	for _, ts := range []int{1, 2} {
		t.Run(fmt.Sprintf("tile %d", ts), func(t *testing.T) {
			prog, err := kernels.MatMul(info, basic(ts), kernels.Options{})
			require.NoError(t, err)
			assert.Equal(t, a, execute(t, prog, a, identity))
			assert.Equal(t, a, execute(t, prog, identity, a))
		})
	}
}

// TestMatMulTranspose tests every transpose combination.
func TestMatMulTranspose(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 9))
	for _, ta := range []bool{false, true} {
		for _, tb := range []bool{false, true} {
			info := kernels.MatMulInfo{BatchA: 1, BatchB: 2, M: 5, K: 6, N: 3, TransposeA: ta, TransposeB: tb}
			for _, tiling := range []config.MatMul{basic(2), wpt(2, 2), wpt2d(2, 2), blocked(4, 4, 2, 2, 2)} {
				t.Run(fmt.Sprintf("%t_%t/%s", ta, tb, name(tiling)), func(t *testing.T) {
					checkMatMul(t, rng, info, tiling)
				})
			}
		}
	}
}

// TestMatMulBroadcastBatch tests a batch of one against a larger batch.
func TestMatMulBroadcastBatch(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	checkMatMul(t, rng, kernels.MatMulInfo{BatchA: 3, BatchB: 1, M: 4, K: 5, N: 6}, wpt(2, 2))
	checkMatMul(t, rng, kernels.MatMulInfo{BatchA: 1, BatchB: 3, M: 4, K: 5, N: 6}, blocked(2, 4, 4, 1, 2))
}

// TestMatMulBiasActivation tests the fused bias and activations, and that
// padding lanes of the output stay zero.
func TestMatMulBiasActivation(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	acts := []kernels.Activation{
		{Kind: kernels.ReLU},
		{Kind: kernels.ReLU6},
		{Kind: kernels.ELU},
		{Kind: kernels.Sigmoid},
		{Kind: kernels.Tanh},
		{Kind: kernels.LeakyReLU, Alpha: 0.1},
	}
	for _, act := range acts {
		for _, tiling := range []config.MatMul{basic(2), wpt(2, 1)} {
			t.Run(act.String()+"/"+name(tiling), func(t *testing.T) {
				info := kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 5, K: 3, N: 3, Bias: true, Activation: act}
				prog, err := kernels.MatMul(info, tiling, kernels.Options{})
				require.NoError(t, err)

				a := random(rng, 15)
				b := random(rng, 9)
				bias := random(rng, 3)
				want := reference.MatMul(info, a, b, bias)
				out := outputTexture(t, prog, a, b, bias)
				packed := packing.Pack(info.OutputShape(), want)
				assert.InDeltaSlice(t, packed, out.Data[:len(packed)], 1e-4)
			})
		}
	}
}

// TestMatMulBiasRejected tests that variants without a bias path fail
// fast with an UnsupportedFeatureError.
func TestMatMulBiasRejected(t *testing.T) {
	info := kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 4, K: 4, N: 4, Bias: true}
	for _, tiling := range []config.MatMul{wpt(4, 2), wpt2d(4, 2), blocked(4, 4, 2, 2, 2)} {
		t.Run(name(tiling), func(t *testing.T) {
			prog, err := kernels.MatMul(info, tiling, kernels.Options{})
			require.Error(t, err)
			assert.Nil(t, prog)
			assert.ErrorIs(t, err, shape.ErrUnsupportedFeature)
			var fe *shape.UnsupportedFeatureError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "bias", fe.Feature)
			assert.Contains(t, fe.Reason, string(tiling.Variant))
		})
	}
}

// TestMatMulInvalid tests rejection of bad shapes and tilings.
func TestMatMulInvalid(t *testing.T) {
	tests := []struct {
		name   string
		info   kernels.MatMulInfo
		tiling config.MatMul
	}{
		{"zero dim", kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 0, K: 2, N: 2}, basic(2)},
		{"batch mismatch", kernels.MatMulInfo{BatchA: 2, BatchB: 3, M: 2, K: 2, N: 2}, basic(2)},
		{"bad tiling", kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 2, K: 2, N: 2}, wpt(3, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := kernels.MatMul(tt.info, tt.tiling, kernels.Options{})
			require.Error(t, err)
		})
	}
}

// TestMatMulProgramLayout tests the dispatch geometry recorded in the
// program descriptor.
func TestMatMulProgramLayout(t *testing.T) {
	info := kernels.MatMulInfo{BatchA: 2, BatchB: 2, M: 32, K: 16, N: 48}
	tests := []struct {
		tiling    config.MatMul
		workgroup [3]int
		dispatch  [3]int
		tile      [3]int
		wpt       [2]int
	}{
		{basic(8), [3]int{8, 8, 1}, [3]int{3, 2, 2}, [3]int{8, 8, 8}, [2]int{1, 1}},
		{wpt(8, 2), [3]int{8, 4, 1}, [3]int{3, 2, 2}, [3]int{8, 8, 8}, [2]int{2, 1}},
		{wpt2d(8, 2), [3]int{4, 4, 1}, [3]int{3, 2, 2}, [3]int{8, 8, 8}, [2]int{2, 2}},
		{blocked(16, 16, 8, 2, 2), [3]int{8, 8, 1}, [3]int{2, 1, 2}, [3]int{16, 16, 8}, [2]int{2, 2}},
	}
	for _, tt := range tests {
		t.Run(name(tt.tiling), func(t *testing.T) {
			prog, err := kernels.MatMul(info, tt.tiling, kernels.Options{})
			require.NoError(t, err)
			assert.Equal(t, "matmul_"+string(tt.tiling.Variant), prog.Name)
			assert.Equal(t, tt.workgroup, prog.WorkgroupSize)
			assert.Equal(t, tt.dispatch, prog.Dispatch)
			assert.Equal(t, tt.tile, prog.TileSize)
			assert.Equal(t, tt.wpt, prog.WorkPerThread)
			assert.True(t, prog.Packed())
			assert.Equal(t, []string{"A", "B"}, prog.Variables)
			assert.Equal(t, shape.Shape{2, 32, 48}, prog.OutputShape())
			assert.Contains(t, prog.Source, "var<workgroup> tileA")
			assert.Contains(t, prog.Source, "workgroupBarrier();")
			assert.Equal(t, kernels.MatMulKey(info, tt.tiling, kernels.Options{}), prog.Key)
		})
	}
}

// TestMatMulSPIRV tests that generated matmul source compiles with naga.
func TestMatMulSPIRV(t *testing.T) {
	info := kernels.MatMulInfo{BatchA: 1, BatchB: 1, M: 6, K: 10, N: 7, Bias: true, Activation: kernels.Activation{Kind: kernels.ReLU}}
	prog, err := kernels.MatMul(info, basic(4), kernels.Options{Production: true})
	require.NoError(t, err)
	spirv, err := prog.SPIRV()
	if err != nil {
		// naga does not cover all of WGSL yet.
		t.Skipf("Skipping: naga cannot compile kernel: %v", err)
	}
	assert.NotEmpty(t, spirv)
}
