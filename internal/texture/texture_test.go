package texture

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shape"
)

func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) + 0.5
	}
	return out
}

// TestEncodeUnpacked tests row-major placement with a flat offset.
func TestEncodeUnpacked(t *testing.T) {
	info := shape.Info{LogicalShape: shape.Shape{2, 3}, TexShape: [2]int{2, 4}, FlatOffset: 2}
	tex, err := Encode(info, seq(6))
	require.NoError(t, err)
	assert.Equal(t, 2, tex.Rows)
	assert.Equal(t, 4, tex.Cols)
	assert.Equal(t, ir.FormatR32Float, tex.Format)
	assert.Equal(t, []float32{0, 0, 0.5, 1.5, 2.5, 3.5, 4.5, 5.5}, tex.Data)

	back, err := Decode(info, tex)
	require.NoError(t, err)
	assert.Equal(t, seq(6), back)
}

// TestEncodePacked tests that packed textures hold 2x2 blocks per texel.
func TestEncodePacked(t *testing.T) {
	info := shape.New(shape.Shape{2, 4}, true, 0)
	tex, err := Encode(info, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, 1, tex.Rows)
	assert.Equal(t, 2, tex.Cols)
	assert.Equal(t, [4]float32{1, 2, 5, 6}, tex.Texel(0, 0))
	assert.Equal(t, [4]float32{3, 4, 7, 8}, tex.Texel(0, 1))
	assert.Equal(t, gputypes.TextureFormatRGBA32Float, tex.GPUFormat())

	back, err := Decode(info, tex)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, back)
}

// TestRoundTripHighRank tests host layout for ranks up to 6 in both layouts.
func TestRoundTripHighRank(t *testing.T) {
	shapes := []shape.Shape{{}, {3}, {3, 5}, {2, 3, 5}, {2, 1, 3, 2}, {2, 2, 1, 3, 3}, {1, 2, 2, 1, 3, 3}}
	for _, s := range shapes {
		for _, packed := range []bool{false, true} {
			info := shape.New(s, packed, 4)
			data := seq(s.NumElements())
			tex, err := Encode(info, data)
			require.NoError(t, err, "shape %v packed %v", s, packed)
			back, err := Decode(info, tex)
			require.NoError(t, err)
			assert.Equal(t, data, back, "shape %v packed %v", s, packed)
		}
	}
}

// TestEncodeErrors tests rejection of mismatched inputs.
func TestEncodeErrors(t *testing.T) {
	_, err := Encode(shape.New(shape.Shape{2, 2}, false, 0), seq(3))
	assert.Error(t, err)

	_, err = Encode(shape.Info{LogicalShape: shape.Shape{1, 1, 1, 1, 1, 1, 1}, TexShape: [2]int{1, 1}}, seq(1))
	assert.ErrorIs(t, err, shape.ErrUnsupportedRank)

	_, err = Decode(shape.New(shape.Shape{2, 2}, false, 0), New(1, 4, ir.FormatR32Float))
	assert.Error(t, err)
}

// TestUniform tests vec4 padding of uniform inputs.
func TestUniform(t *testing.T) {
	assert.Equal(t, []float32{1, 2, 3, 0}, Uniform([]float32{1, 2, 3}))
	assert.Len(t, Uniform(nil), 4)

	info := shape.NewUniform(shape.Shape{5})
	tex, err := Encode(info, seq(5))
	require.NoError(t, err)
	assert.Equal(t, 2, tex.Cols)
	assert.Equal(t, Uniform(seq(5)), tex.Data)
}

// TestTextureHelpers tests texel access and upload helpers.
func TestTextureHelpers(t *testing.T) {
	tex := New(2, 3, ir.FormatR32Float)
	tex.SetTexel(1, 2, [4]float32{7, 8, 9, 10})
	assert.Equal(t, [4]float32{7, 0, 0, 0}, tex.Texel(1, 2))
	assert.True(t, tex.InBounds(1, 2))
	assert.False(t, tex.InBounds(2, 0))
	assert.False(t, tex.InBounds(0, -1))
	assert.Equal(t, gputypes.Extent3D{Width: 3, Height: 2, DepthOrArrayLayers: 1}, tex.Extent())
	assert.Equal(t, 12, tex.BytesPerRow())
	assert.Len(t, tex.Bytes(), 24)
}
