package sim

import (
	"math"

	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/texture"
)

func (inv *invocation) builtin(c ir.Call, sc *scope) Value {
	switch c.Fn {
	case "textureLoad":
		tex := inv.texture(c.Args[0])
		return inv.load(tex, inv.eval(c.Args[1], sc))
	case "textureSampleLevel":
		tex := inv.texture(c.Args[0])
		if id, ok := c.Args[1].(ir.Ident); !ok || !inv.m.samplers[id.Name] {
			fail("textureSampleLevel without a declared sampler")
		}
		uv := inv.eval(c.Args[2], sc)
		if uv.T != ir.TVec2F {
			fail("sample coordinate is %s", uv.T)
		}
		// Nearest filtering with clamp-to-edge addressing.
		col := clampInt(int(math.Floor(float64(uv.F[0])*float64(tex.Cols))), 0, tex.Cols-1)
		row := clampInt(int(math.Floor(float64(uv.F[1])*float64(tex.Rows))), 0, tex.Rows-1)
		return texelValue(tex, row, col)
	case "textureStore":
		id, ok := c.Args[0].(ir.Ident)
		tex := inv.m.storage[id.Name]
		if !ok || tex == nil {
			fail("textureStore to undeclared storage texture")
		}
		at := inv.eval(c.Args[1], sc)
		v := inv.eval(c.Args[2], sc)
		if at.T != ir.TVec2I || v.T != ir.TVec4F {
			fail("textureStore(%s, %s)", at.T, v.T)
		}
		col, row := int(at.I[0]), int(at.I[1])
		if !tex.InBounds(row, col) {
			fail("textureStore at (%d, %d) outside %dx%d texture", col, row, tex.Cols, tex.Rows)
		}
		tex.SetTexel(row, col, v.F)
		return Value{}
	}

	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		args[i] = inv.eval(a, sc)
	}
	switch c.Fn {
	case "dot":
		x, y := args[0], args[1]
		if x.T != y.T || x.T.Kind != ir.F32 || x.T.Width < 2 {
			fail("dot(%s, %s)", x.T, y.T)
		}
		var sum float32
		for i := range x.T.Width {
			sum += x.F[i] * y.F[i]
		}
		return Float(sum)
	case "floor":
		return mapF32(args[0], func(f float32) float32 { return float32(math.Floor(float64(f))) })
	case "exp":
		return mapF32(args[0], func(f float32) float32 { return float32(math.Exp(float64(f))) })
	case "tanh":
		return mapF32(args[0], func(f float32) float32 { return float32(math.Tanh(float64(f))) })
	case "abs":
		if args[0].T.Kind == ir.I32 {
			out := args[0]
			for i := range out.T.Width {
				if out.I[i] < 0 {
					out.I[i] = -out.I[i]
				}
			}
			return out
		}
		return mapF32(args[0], func(f float32) float32 { return float32(math.Abs(float64(f))) })
	case "max":
		return pick(args[0], args[1], ir.OpGt)
	case "min":
		return pick(args[0], args[1], ir.OpLt)
	case "clamp":
		return pick(pick(args[0], args[1], ir.OpGt), args[2], ir.OpLt)
	case "select":
		f, t, cond := args[0], args[1], args[2]
		if f.T != t.T || cond.T.Kind != ir.Bool {
			fail("select(%s, %s, %s)", f.T, t.T, cond.T)
		}
		if cond.T.Width == 1 {
			if cond.B[0] {
				return t
			}
			return f
		}
		if cond.T.Width != f.T.Width {
			fail("select(%s, %s, %s)", f.T, t.T, cond.T)
		}
		out := f
		for i := range f.T.Width {
			if cond.B[i] {
				out.setComponent(i, t.component(i))
			}
		}
		return out
	}
	fail("builtin %s is not implemented", c.Fn)
	return Value{}
}

func (inv *invocation) texture(e ir.Expr) *texture.Texture {
	id, ok := e.(ir.Ident)
	if !ok {
		fail("texture argument must name a binding")
	}
	tex, ok := inv.m.textures[id.Name]
	if !ok {
		fail("undeclared texture %s", id.Name)
	}
	return tex
}

func (inv *invocation) load(tex *texture.Texture, at Value) Value {
	if at.T != ir.TVec2I {
		fail("textureLoad coordinate is %s", at.T)
	}
	col, row := int(at.I[0]), int(at.I[1])
	if !tex.InBounds(row, col) {
		fail("textureLoad at (%d, %d) outside %dx%d texture", col, row, tex.Cols, tex.Rows)
	}
	return texelValue(tex, row, col)
}

// texelValue reads a texel as vec4<f32>. Single channel formats read
// (r, 0, 0, 1).
func texelValue(tex *texture.Texture, row, col int) Value {
	v := FVec(0, 0, 0, 0)
	v.F = tex.Texel(row, col)
	if tex.Channels() == 1 {
		v.F[3] = 1
	}
	return v
}

func mapF32(v Value, f func(float32) float32) Value {
	if v.T.Kind != ir.F32 || v.T.IsArray() {
		fail("float builtin on %s", v.T)
	}
	out := v
	for i := range v.T.Width {
		out.F[i] = f(v.F[i])
	}
	return out
}

// pick returns, per component, x when x op y holds and y otherwise. NaN
// operands yield the other operand, matching common GPU max/min.
func pick(x, y Value, op ir.Op) Value {
	if y.T.Width == 1 && x.T.Width > 1 {
		y = y.splat(x.T.Width)
	}
	if x.T != y.T {
		fail("max/min/clamp between %s and %s", x.T, y.T)
	}
	out := y
	for i := range x.T.Width {
		xi, yi := x.component(i), y.component(i)
		if x.T.Kind == ir.F32 && math.IsNaN(float64(y.F[i])) {
			out.setComponent(i, xi)
			continue
		}
		if compare(op, xi, yi) {
			out.setComponent(i, xi)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
