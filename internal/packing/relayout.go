package packing

import (
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Relayout rearranges the channels of a packed input texel so that it lines
// up with a packed output texel when the input is broadcast against the
// output. The zero value is the identity.
type Relayout struct {
	// Sel is the swizzle applied to the input texel.
	Sel string
	// ZeroTail keeps only Sel's first two channels and zero fills z and w.
	ZeroTail bool
}

// Identity reports whether r leaves texels unchanged.
func (r Relayout) Identity() bool { return r.Sel == "" }

// Apply returns v rearranged by r.
func (r Relayout) Apply(v ir.Expr) ir.Expr {
	switch {
	case r.Identity():
		return v
	case r.ZeroTail:
		return ir.Make(ir.TVec4F, ir.Swz(v, r.Sel[:2]), ir.Float(0), ir.Float(0))
	}
	return ir.Swz(v, r.Sel)
}

// ApplyValues is Apply on a host texel.
func (r Relayout) ApplyValues(v [4]float32) [4]float32 {
	if r.Identity() {
		return v
	}
	var out [4]float32
	n := 4
	if r.ZeroTail {
		n = 2
	}
	for i := range n {
		out[i] = v[channelIndex(r.Sel[i])]
	}
	return out
}

// String returns the swizzle, "" for the identity.
func (r Relayout) String() string {
	if r.ZeroTail {
		return r.Sel[:2] + "00"
	}
	return r.Sel
}

func channelIndex(b byte) int {
	switch b {
	case 'y':
		return 1
	case 'z':
		return 2
	case 'w':
		return 3
	}
	return 0
}

// RelayoutFor returns how a packed input of shape in must be rearranged to
// match a packed output of shape out.
//
// A scalar is replicated into every channel (a vector output only uses x
// and y, so its padding channels stay zero). A vector input reads as a
// single row [1, n]. When the input's row axis is broadcast both output
// rows take the input row (xyxy); when its column axis is broadcast both
// output columns take the input column (xxzz); both at once replicate x.
func RelayoutFor(in, out shape.Shape) Relayout {
	if len(in) == 0 {
		if len(out) == 1 {
			return Relayout{Sel: "xx", ZeroTail: true}
		}
		if len(out) == 0 {
			return Relayout{}
		}
		return Relayout{Sel: "xxxx"}
	}
	if len(out) == 0 {
		return Relayout{}
	}
	inRows, inCols := lastTwo(in)
	outRows, outCols := lastTwo(out)
	rows := inRows == 1 && outRows > 1
	cols := inCols == 1 && outCols > 1
	switch {
	case rows && cols:
		return Relayout{Sel: "xxxx"}
	case rows:
		return Relayout{Sel: "xyxy"}
	case cols:
		return Relayout{Sel: "xxzz"}
	}
	return Relayout{}
}

func lastTwo(s shape.Shape) (rows, cols int) {
	if len(s) == 1 {
		return 1, s[0]
	}
	return s[len(s)-2], s[len(s)-1]
}
