// Package texture is the host side of tensor storage: it lays tensor values
// out in 2D textures exactly the way generated kernels address them.
package texture

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/packing"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Texture is a 2D float texture in host memory. Rows and Cols count texels.
type Texture struct {
	Rows   int
	Cols   int
	Format ir.Format
	Data   []float32
}

// New returns a zeroed texture.
func New(rows, cols int, format ir.Format) *Texture {
	return &Texture{
		Rows:   rows,
		Cols:   cols,
		Format: format,
		Data:   make([]float32, rows*cols*format.Channels()),
	}
}

// ForShape returns a zeroed texture sized to store info.
func ForShape(info shape.Info) *Texture {
	if info.IsUniform {
		return New(1, uniformTexels(info.Size()), ir.FormatRGBA32Float)
	}
	return New(info.TexRows(), info.TexCols(), FormatOf(info))
}

// FormatOf returns the texel format of info's storage.
func FormatOf(info shape.Info) ir.Format {
	if info.IsPacked || info.IsUniform {
		return ir.FormatRGBA32Float
	}
	return ir.FormatR32Float
}

// Channels returns the number of floats per texel.
func (t *Texture) Channels() int { return t.Format.Channels() }

// InBounds reports whether (row, col) is a texel of t.
func (t *Texture) InBounds(row, col int) bool {
	return row >= 0 && row < t.Rows && col >= 0 && col < t.Cols
}

// Texel returns the texel at (row, col). Channels the format lacks read as
// zero.
func (t *Texture) Texel(row, col int) [4]float32 {
	var v [4]float32
	n := t.Channels()
	copy(v[:n], t.Data[(row*t.Cols+col)*n:])
	return v
}

// SetTexel stores v at (row, col), dropping channels the format lacks.
func (t *Texture) SetTexel(row, col int, v [4]float32) {
	n := t.Channels()
	copy(t.Data[(row*t.Cols+col)*n:(row*t.Cols+col+1)*n], v[:n])
}

// GPUFormat returns the WebGPU texture format.
func (t *Texture) GPUFormat() gputypes.TextureFormat {
	if t.Format == ir.FormatRGBA32Float {
		return gputypes.TextureFormatRGBA32Float
	}
	return gputypes.TextureFormatR32Float
}

// Extent returns the WebGPU texture size.
func (t *Texture) Extent() gputypes.Extent3D {
	//nolint:gosec // G115: texture dimensions are bounded by the device limit
	return gputypes.Extent3D{Width: uint32(t.Cols), Height: uint32(t.Rows), DepthOrArrayLayers: 1}
}

// BytesPerRow returns the size of one texel row in bytes.
func (t *Texture) BytesPerRow() int { return t.Cols * t.Channels() * 4 }

// Bytes returns the texel data as little-endian float32 for upload.
func (t *Texture) Bytes() []byte {
	out := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// Encode lays out row-major values in a new texture for info.
func Encode(info shape.Info, values []float32) (*Texture, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if len(values) != info.Size() {
		return nil, fmt.Errorf("texture: %d values for shape %v", len(values), info.LogicalShape)
	}
	t := ForShape(info)
	switch {
	case info.IsPacked:
		copy(t.Data, packing.Pack(info.LogicalShape, values))
	default:
		copy(t.Data[info.FlatOffset:], values)
	}
	return t, nil
}

// Decode reads the row-major values of info back from t.
func Decode(info shape.Info, t *Texture) ([]float32, error) {
	want := ForShape(info)
	if t.Rows != want.Rows || t.Cols != want.Cols || t.Format != want.Format {
		return nil, fmt.Errorf("texture: %dx%d %s does not store %s", t.Rows, t.Cols, t.Format, info)
	}
	n := info.Size()
	if info.IsPacked {
		return packing.Unpack(info.LogicalShape, t.Data[:packing.Channels*info.Space().NumElements()]), nil
	}
	out := make([]float32, n)
	copy(out, t.Data[info.FlatOffset:info.FlatOffset+n])
	return out, nil
}

// Uniform returns values padded to whole vec4s, the layout of a
// var<uniform> array<vec4<f32>, N>.
func Uniform(values []float32) []float32 {
	out := make([]float32, 4*uniformTexels(len(values)))
	copy(out, values)
	return out
}

func uniformTexels(n int) int {
	return max(1, (n+3)/4)
}
