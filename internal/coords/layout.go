package coords

import (
	"fmt"

	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shape"
)

// maxExactIndex bounds flat indices that f32 represents exactly. Sampling
// programs only compute indices with a float dot product below it.
const maxExactIndex = 1 << 24

// layout is the addressing view of one tensor: its space (logical shape,
// or texel shape when packed) row-major over a texture of rows x cols
// addressable units starting at offset.
type layout struct {
	space  shape.Shape
	rows   int
	cols   int
	offset int
	packed bool
}

func layoutOf(info shape.Info) layout {
	return layout{
		space:  info.Space(),
		rows:   info.TexRows(),
		cols:   info.TexCols(),
		offset: info.FlatOffset,
		packed: info.IsPacked,
	}
}

// split returns the first axis j whose suffix space[j:] exactly fills a
// texture row. Rows then hold the ravelled prefix and columns the ravelled
// suffix, so no division by the texture width is needed.
func (l layout) split() (int, bool) {
	if l.offset != 0 {
		return 0, false
	}
	for j := 0; j <= len(l.space); j++ {
		if l.space[j:].NumElements() == l.cols {
			return j, true
		}
	}
	return 0, false
}

// toSpace converts logical coordinates to space coordinates.
func (l layout) toSpace(logical []ir.Expr) []ir.Expr {
	out := append([]ir.Expr(nil), logical...)
	if !l.packed {
		return out
	}
	for _, i := range packedAxes(len(out)) {
		out[i] = ir.Div(out[i], ir.Int(2))
	}
	return out
}

// fromSpace converts space coordinates to the top-left logical coordinate
// of the block they address.
func (l layout) fromSpace(space []ir.Expr) []ir.Expr {
	out := append([]ir.Expr(nil), space...)
	if !l.packed {
		return out
	}
	for _, i := range packedAxes(len(out)) {
		out[i] = ir.Mul(out[i], ir.Int(2))
	}
	return out
}

func packedAxes(rank int) []int {
	switch rank {
	case 0:
		return nil
	case 1:
		return []int{0}
	}
	return []int{rank - 2, rank - 1}
}

// encode returns statements and the texel expression (vec2<i32>(col, row))
// addressing the given logical coordinates.
func (l layout) encode(logical []ir.Expr, access Access) ([]ir.Stmt, ir.Expr) {
	if len(l.space) == 0 {
		return nil, ir.Make(ir.TVec2I, ir.Int(l.offset%l.cols), ir.Int(l.offset/l.cols))
	}
	sc := l.toSpace(logical)
	if j, ok := l.split(); ok {
		row := ravel(sc[:j], l.space[:j])
		col := ravel(sc[j:], l.space[j:])
		return nil, ir.Make(ir.TVec2I, col, row)
	}
	if l.packed {
		switch r := len(l.space); r {
		case 2:
			return nil, ir.Fn(fnPacked2D, ir.Int(l.space[1]), ir.Int(l.cols), logical[0], logical[1])
		case 3:
			return nil, ir.Fn(fnPacked3D, ir.Int(l.space[1]*l.space[2]), ir.Int(l.space[2]), ir.Int(l.cols),
				logical[0], logical[1], logical[2])
		}
	}
	index := ir.Add(l.flatIndex(sc, access), ir.Int(l.offset))
	return []ir.Stmt{ir.Let("index", index)}, ir.Fn(fnFlatToTexel, ir.V("index"), ir.Int(l.cols))
}

// flatIndex ravels space coordinates. Sampling programs use a float dot
// product when every index is exactly representable; larger spaces keep
// the multiplies in i32.
func (l layout) flatIndex(sc []ir.Expr, access Access) ir.Expr {
	r := len(l.space)
	maxIndex := l.space.NumElements() - 1 + l.offset
	if access != Sampling || r < 2 || r > 4 || maxIndex >= maxExactIndex {
		return ravel(sc, l.space)
	}
	strides := l.space.ComputeStrides()
	cs := make([]ir.Expr, r)
	ss := make([]ir.Expr, r)
	for i := range sc {
		cs[i] = ir.ToF32(sc[i])
		ss[i] = ir.Float(float64(strides[i]))
	}
	t := ir.Vec(ir.F32, r)
	return ir.ToI32(ir.Fn("dot", ir.Make(t, cs...), ir.Make(t, ss...)))
}

// decode returns statements binding c0..c{n-1} to the logical coordinates
// stored at texel.
func (l layout) decode(texel ir.Expr) ([]ir.Stmt, []ir.Expr) {
	r := len(l.space)
	if r == 0 {
		return nil, nil
	}
	names := coordNames(r)
	var stmts []ir.Stmt
	if j, ok := l.split(); ok {
		stmts = append(stmts, unravel(ir.Swz(texel, "y"), l.space[:j], names[:j], "remRow")...)
		stmts = append(stmts, unravel(ir.Swz(texel, "x"), l.space[j:], names[j:], "remCol")...)
	} else {
		index := ir.Add(ir.Mul(ir.Swz(texel, "y"), ir.Int(l.cols)), ir.Swz(texel, "x"))
		stmts = append(stmts, ir.Let("index", index))
		stmts = append(stmts, unravel(ir.V("index"), l.space, names, "rem")...)
	}
	return stmts, l.fromSpace(ir.Idents(names...))
}

// ravel returns the row-major flat index of coords in dims.
func ravel(coords []ir.Expr, dims shape.Shape) ir.Expr {
	strides := dims.ComputeStrides()
	idx := ir.Int(0)
	for i, c := range coords {
		if dims[i] == 1 {
			continue
		}
		idx = ir.Add(idx, ir.Mul(c, ir.Int(strides[i])))
	}
	return idx
}

// unravel emits straight-line divisions splitting index into one named
// coordinate per axis of dims.
func unravel(index ir.Expr, dims shape.Shape, names []string, remPrefix string) []ir.Stmt {
	if len(dims) == 0 {
		return nil
	}
	strides := dims.ComputeStrides()
	var stmts []ir.Stmt
	rem := index
	for i := 0; i < len(dims)-1; i++ {
		if dims[i] == 1 {
			stmts = append(stmts, ir.Let(names[i], ir.Int(0)))
			continue
		}
		stmts = append(stmts, ir.Let(names[i], ir.Div(rem, ir.Int(strides[i]))))
		remName := fmt.Sprintf("%s%d", remPrefix, i)
		stmts = append(stmts, ir.Let(remName, ir.Sub(rem, ir.Mul(ir.V(names[i]), ir.Int(strides[i])))))
		rem = ir.V(remName)
	}
	return append(stmts, ir.Let(names[len(dims)-1], rem))
}

func coordNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("c%d", i)
	}
	return names
}
