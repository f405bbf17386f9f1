package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFolding tests integer constant folding in the builders.
func TestFolding(t *testing.T) {
	assert.Equal(t, Int(7), Add(Int(3), Int(4)))
	assert.Equal(t, V("x"), Add(V("x"), Int(0)))
	assert.Equal(t, V("x"), Mul(Int(1), V("x")))
	assert.Equal(t, Int(2), Div(Int(7), Int(3)))
	assert.Equal(t, Int(1), Mod(Int(7), Int(3)))
	assert.Equal(t, Int(-3), Neg(Int(3)))
	assert.Equal(t, Float(2), ToF32(Int(2)))
	assert.Equal(t, Binary{Op: OpDiv, X: Int(1), Y: Int(0)}, Div(Int(1), Int(0)))
}

// TestPrintExpr tests operator parenthesization and literal spelling.
func TestPrintExpr(t *testing.T) {
	tests := []struct {
		expr Expr
		want string
	}{
		{Add(Mul(V("a"), Int(3)), V("b")), "(a * 3) + b"},
		{Sub(V("a"), Sub(V("b"), V("c"))), "a - (b - c)"},
		{Float(1), "1.0"},
		{Float(0.5), "0.5"},
		{Uint(4), "4u"},
		{BoolLit(true), "true"},
		{Not(Lt(V("x"), Int(0))), "!(x < 0)"},
		{Make(TVec2I, V("c"), V("r")), "vec2<i32>(c, r)"},
		{Swz(Add(V("a"), V("b")), "xxzz"), "(a + b).xxzz"},
		{At(V("arr"), Int(2)), "arr[2]"},
		{Fn("textureLoad", V("A"), V("p"), Int(0)), "textureLoad(A, p, 0)"},
		{ToI32(V("u")), "i32(u)"},
		{And(), "true"},
		{And(V("a"), V("b"), V("c")), "(a && b) && c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrintExpr(tt.expr))
	}
}

// TestPrintModule tests declarations, statements and entry points.
func TestPrintModule(t *testing.T) {
	m := &Module{Sections: []Section{
		{Name: "inputs", Globals: []Global{
			TextureBinding{Name: "A", Group: 0, Binding: 0},
			UniformBinding{Name: "B", Group: 0, Binding: 1, Type: ArrayOf(TVec4F, 2)},
			TextureBinding{Name: "result", Group: 0, Binding: 2, Storage: true, Format: FormatRGBA32Float},
			GlobalVar{Name: "tile", Space: Workgroup, Type: ArrayOf(TVec4F, 4)},
			Const{Name: "N", Value: Lit{Type: TI32, Int: 4}},
		}},
		{Name: "empty"},
		{Name: "body", Globals: []Global{
			Func("twice", Params("x"), TI32, Ret(Mul(V("x"), Int(2)))),
			&EntryPoint{Stage: Compute, WorkgroupSize: [3]int{4, 2, 1}, Body: []Stmt{
				Var("acc", TI32, nil),
				Loop("i", Int(0), V("N"),
					Accumulate(V("acc"), Fn("twice", V("i"))),
				),
				Barrier{},
				If{
					Cond: Gt(V("acc"), Int(3)),
					Then: []Stmt{Set(V("acc"), Int(3))},
					Else: []Stmt{If{Cond: Lt(V("acc"), Int(0)), Then: []Stmt{Return{}}, Else: []Stmt{Comment{Text: "ok"}}}},
				},
			}},
		}},
	}}

	want := `// inputs
@group(0) @binding(0) var A: texture_2d<f32>;
@group(0) @binding(1) var<uniform> B: array<vec4<f32>, 2>;
@group(0) @binding(2) var result: texture_storage_2d<rgba32float, write>;
var<workgroup> tile: array<vec4<f32>, 4>;
const N: i32 = 4;

// body
fn twice(x: i32) -> i32 {
    return x * 2;
}
@compute @workgroup_size(4, 2, 1)
fn main(@builtin(global_invocation_id) globalId: vec3<u32>, @builtin(local_invocation_id) localId: vec3<u32>, @builtin(workgroup_id) workgroupId: vec3<u32>) {
    var acc: i32;
    for (var i: i32 = 0; i < N; i += 1) {
        acc += twice(i);
    }
    workgroupBarrier();
    if (acc > 3) {
        acc = 3;
    } else if (acc < 0) {
        return;
    } else {
        // ok
    }
}
`
	assert.Equal(t, want, Print(m))
}

// TestPrintFragmentEntry tests the fragment signature.
func TestPrintFragmentEntry(t *testing.T) {
	m := &Module{Sections: []Section{{Name: "main", Globals: []Global{
		SamplerBinding{Name: "texSampler", Binding: 3},
		&EntryPoint{Stage: Fragment, Body: []Stmt{Ret(Make(TVec4F, Float(0)))}},
	}}}}
	got := Print(m)
	assert.Contains(t, got, "@group(0) @binding(3) var texSampler: sampler;")
	assert.Contains(t, got, "@fragment\nfn main(@builtin(position) fragCoord: vec4<f32>) -> @location(0) vec4<f32> {")
	assert.Contains(t, got, "    return vec4<f32>(0.0);")
}

// TestModuleLookup tests name resolution across sections.
func TestModuleLookup(t *testing.T) {
	f := Func("f", nil, TF32, Ret(Float(1)))
	m := &Module{Sections: []Section{
		{Name: "a", Globals: []Global{GlobalVar{Name: "g", Space: Private, Type: TVec3I}}},
		{Name: "b", Globals: []Global{f, &EntryPoint{Stage: Compute}}},
	}}
	got, ok := m.Function("f")
	assert.True(t, ok)
	assert.Same(t, f, got)
	_, ok = m.Function("g")
	assert.False(t, ok)
	assert.NotNil(t, m.Entry())
	assert.Len(t, m.Globals(), 3)
}
