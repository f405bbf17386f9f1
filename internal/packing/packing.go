// Package packing defines 2x2 channel packing: one RGBA texel holds a 2x2
// block of the last two logical axes, channels in row-major block order.
//
//	x = (2tr, 2tc)    y = (2tr, 2tc+1)
//	z = (2tr+1, 2tc)  w = (2tr+1, 2tc+1)
//
// Vectors use channels x and y, scalars channel x. Channels past the end of
// an axis are padding and hold zero.
package packing

import (
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Channels is the number of logical values per packed texel.
const Channels = 4

// channelNames maps a channel index to its swizzle letter.
const channelNames = "xyzw"

// Channel returns the channel that stores logical (row, col) of its block.
func Channel(row, col int) int {
	return (row%2)*2 + col%2
}

// ChannelName returns the swizzle letter of channel c.
func ChannelName(c int) string {
	return channelNames[c : c+1]
}

// Logical maps channel c of the texel at texel coordinates to logical
// coordinates of s. ok is false for padding channels.
func Logical(s shape.Shape, texel []int, c int) ([]int, bool) {
	coords := make([]int, len(s))
	copy(coords, texel)
	dr, dc := c/2, c%2
	switch len(s) {
	case 0:
		return coords, c == 0
	case 1:
		coords[0] = 2*texel[0] + dc
		return coords, dr == 0 && coords[0] < s[0]
	}
	r, col := len(s)-2, len(s)-1
	coords[r] = 2*texel[r] + dr
	coords[col] = 2*texel[col] + dc
	return coords, coords[r] < s[r] && coords[col] < s[col]
}

// Pack lays out row-major logical data as texels in texel-shape order, four
// floats per texel.
func Pack(s shape.Shape, data []float32) []float32 {
	ts := shape.TexelShape(s)
	out := make([]float32, Channels*ts.NumElements())
	for t := range ts.NumElements() {
		texel := ts.Unravel(t)
		for c := range Channels {
			if coords, ok := Logical(s, texel, c); ok {
				out[t*Channels+c] = data[s.Ravel(coords)]
			}
		}
	}
	return out
}

// Unpack is the inverse of Pack. Padding channels are dropped.
func Unpack(s shape.Shape, texels []float32) []float32 {
	ts := shape.TexelShape(s)
	out := make([]float32, s.NumElements())
	for t := range ts.NumElements() {
		texel := ts.Unravel(t)
		for c := range Channels {
			if coords, ok := Logical(s, texel, c); ok {
				out[s.Ravel(coords)] = texels[t*Channels+c]
			}
		}
	}
	return out
}

// GetChannelFunc returns the getChannel(v, rc) helper, which selects the
// channel of v holding logical (row, col) = rc.
func GetChannelFunc() *ir.Function {
	params := []ir.Param{{Name: "v", Type: ir.TVec4F}, {Name: "rc", Type: ir.TVec2I}}
	return ir.Func("getChannel", params, ir.TF32,
		ir.Let("ch", ir.Add(
			ir.Mul(ir.Mod(ir.Swz(ir.V("rc"), "x"), ir.Int(2)), ir.Int(2)),
			ir.Mod(ir.Swz(ir.V("rc"), "y"), ir.Int(2)),
		)),
		ir.Ret(ir.At(ir.V("v"), ir.V("ch"))),
	)
}
