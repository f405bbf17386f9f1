package coords

import (
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shape"
)

// form is how a coordinate tuple of one rank is represented in code.
type form struct {
	// Type is the coordinate tuple type.
	Type ir.Type
	// Component extracts axis i of a tuple.
	Component func(v ir.Expr, i int) ir.Expr
	// Build assembles a tuple from per-axis values.
	Build func(parts []ir.Expr) ir.Expr
}

const swizzleNames = "xyzw"

var (
	scalarForm = form{
		Type:      ir.TI32,
		Component: func(ir.Expr, int) ir.Expr { return ir.Int(0) },
		Build:     func([]ir.Expr) ir.Expr { return ir.Int(0) },
	}
	lineForm = form{
		Type:      ir.TI32,
		Component: func(v ir.Expr, _ int) ir.Expr { return v },
		Build:     func(p []ir.Expr) ir.Expr { return p[0] },
	}
)

func vectorForm(n int) form {
	t := ir.Vec(ir.I32, n)
	return form{
		Type:      t,
		Component: func(v ir.Expr, i int) ir.Expr { return ir.Swz(v, swizzleNames[i:i+1]) },
		Build:     func(p []ir.Expr) ir.Expr { return ir.Make(t, p...) },
	}
}

func arrayForm(n int) form {
	t := ir.ArrayOf(ir.TI32, n)
	return form{
		Type:      t,
		Component: func(v ir.Expr, i int) ir.Expr { return ir.At(v, ir.Int(i)) },
		Build:     func(p []ir.Expr) ir.Expr { return ir.Make(t, p...) },
	}
}

// rankForms is indexed by rank. Vectors only go up to four components, so
// ranks 5 and 6 use fixed arrays indexed with constants.
var rankForms = [shape.MaxRank + 1]form{
	scalarForm,
	lineForm,
	vectorForm(2),
	vectorForm(3),
	vectorForm(4),
	arrayForm(5),
	arrayForm(6),
}

// formFor returns the representation of rank, or an UnsupportedRankError.
func formFor(rank int) (form, error) {
	if rank < 0 || rank >= len(rankForms) {
		return form{}, &shape.UnsupportedRankError{Rank: rank, Max: shape.MaxRank}
	}
	return rankForms[rank], nil
}

// CoordsType returns the type getOutputCoords returns for rank.
func CoordsType(rank int) (ir.Type, error) {
	f, err := formFor(rank)
	return f.Type, err
}

// Component returns axis i of a coordinate tuple of the given rank.
func Component(v ir.Expr, rank, i int) ir.Expr {
	return rankForms[rank].Component(v, i)
}

// paramNames returns d0..d{n-1}.
func paramNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "d" + string(rune('0'+i))
	}
	return names
}
