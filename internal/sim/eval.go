package sim

import (
	"fmt"
	"math"

	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/texture"
)

// execError aborts an invocation. It is raised with panic inside the
// evaluator and recovered at the invocation boundary.
type execError struct{ err error }

func fail(format string, args ...any) {
	panic(execError{fmt.Errorf(format, args...)})
}

// machine holds the module-wide state of one dispatch.
type machine struct {
	mod      *ir.Module
	funcs    map[string]*ir.Function
	consts   map[string]Value
	uniforms map[string]Value
	textures map[string]*texture.Texture
	samplers map[string]bool
	storage  map[string]*texture.Texture
	privates []ir.GlobalVar
	shared   []ir.GlobalVar
}

func newMachine(mod *ir.Module, inputs map[string]*texture.Texture, output *texture.Texture) (*machine, error) {
	m := &machine{
		mod:      mod,
		funcs:    map[string]*ir.Function{},
		consts:   map[string]Value{},
		uniforms: map[string]Value{},
		textures: map[string]*texture.Texture{},
		samplers: map[string]bool{},
		storage:  map[string]*texture.Texture{},
	}
	for _, g := range mod.Globals() {
		switch g := g.(type) {
		case *ir.Function:
			m.funcs[g.Name] = g
		case ir.Const:
			m.consts[g.Name] = literal(g.Value)
		case ir.GlobalVar:
			if g.Space == ir.Workgroup {
				m.shared = append(m.shared, g)
			} else {
				m.privates = append(m.privates, g)
			}
		case ir.SamplerBinding:
			m.samplers[g.Name] = true
		case ir.TextureBinding:
			if g.Storage {
				if output == nil {
					return nil, fmt.Errorf("sim: no output texture for %s", g.Name)
				}
				if output.Format != g.Format {
					return nil, fmt.Errorf("sim: output %s is %s, want %s", g.Name, output.Format, g.Format)
				}
				m.storage[g.Name] = output
				continue
			}
			tex, ok := inputs[g.Name]
			if !ok {
				return nil, fmt.Errorf("sim: missing input texture %s", g.Name)
			}
			m.textures[g.Name] = tex
		case ir.UniformBinding:
			tex, ok := inputs[g.Name]
			if !ok {
				return nil, fmt.Errorf("sim: missing uniform %s", g.Name)
			}
			u := zero(g.Type)
			for i := range u.Arr {
				u.Arr[i].T = ir.TVec4F
				for c := range 4 {
					if k := 4*i + c; k < len(tex.Data) {
						u.Arr[i].F[c] = tex.Data[k]
					}
				}
			}
			m.uniforms[g.Name] = u
		}
	}
	return m, nil
}

// binding is one name in a scope.
type binding struct {
	v       *Value
	mutable bool
}

type scope struct {
	vars   map[string]binding
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: map[string]binding{}, parent: parent}
}

func (s *scope) lookup(name string) (binding, bool) {
	for ; s != nil; s = s.parent {
		if b, ok := s.vars[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// invocation is one thread of execution.
type invocation struct {
	m        *machine
	privates map[string]*Value
	shared   map[string]*Value
	builtins map[string]Value
	barrier  *barrier
}

func (m *machine) newInvocation(shared map[string]*Value, b *barrier) *invocation {
	inv := &invocation{
		m:        m,
		privates: map[string]*Value{},
		shared:   shared,
		builtins: map[string]Value{},
		barrier:  b,
	}
	for _, g := range m.privates {
		v := zero(g.Type)
		inv.privates[g.Name] = &v
	}
	return inv
}

func (m *machine) newShared() map[string]*Value {
	shared := make(map[string]*Value, len(m.shared))
	for _, g := range m.shared {
		v := zero(g.Type)
		shared[g.Name] = &v
	}
	return shared
}

func (inv *invocation) resolve(name string, sc *scope) binding {
	if b, ok := sc.lookup(name); ok {
		return b
	}
	if v, ok := inv.privates[name]; ok {
		return binding{v: v, mutable: true}
	}
	if v, ok := inv.shared[name]; ok {
		return binding{v: v, mutable: true}
	}
	if v, ok := inv.builtins[name]; ok {
		return binding{v: &v}
	}
	if v, ok := inv.m.consts[name]; ok {
		return binding{v: &v}
	}
	if v, ok := inv.m.uniforms[name]; ok {
		return binding{v: &v}
	}
	fail("undefined name %s", name)
	return binding{}
}

// control is the outcome of executing statements.
type control uint8

const (
	next control = iota
	returned
)

func (inv *invocation) execBlock(stmts []ir.Stmt, sc *scope) (control, Value) {
	for _, s := range stmts {
		if c, v := inv.exec(s, sc); c == returned {
			return c, v
		}
	}
	return next, Value{}
}

func (inv *invocation) exec(s ir.Stmt, sc *scope) (control, Value) {
	switch s := s.(type) {
	case ir.Local:
		if _, exists := sc.vars[s.Name]; exists {
			fail("%s redeclared in the same scope", s.Name)
		}
		var v Value
		switch {
		case s.Value != nil:
			v = inv.eval(s.Value, sc).clone()
			if s.Type != nil && v.T != *s.Type {
				fail("%s: cannot initialise %s with %s", s.Name, *s.Type, v.T)
			}
		case s.Type != nil:
			v = zero(*s.Type)
		default:
			fail("%s declared without type or value", s.Name)
		}
		sc.vars[s.Name] = binding{v: &v, mutable: s.Mutable}
	case ir.Assign:
		inv.assign(s, sc)
	case ir.If:
		cond := inv.eval(s.Cond, sc)
		if cond.T != ir.TBool {
			fail("if condition is %s", cond.T)
		}
		if cond.B[0] {
			return inv.execBlock(s.Then, newScope(sc))
		}
		return inv.execBlock(s.Else, newScope(sc))
	case ir.For:
		loop := newScope(sc)
		if s.Init != nil {
			inv.exec(s.Init, loop)
		}
		for {
			cond := inv.eval(s.Cond, loop)
			if cond.T != ir.TBool {
				fail("loop condition is %s", cond.T)
			}
			if !cond.B[0] {
				break
			}
			if c, v := inv.execBlock(s.Body, newScope(loop)); c == returned {
				return c, v
			}
			if s.Post != nil {
				inv.exec(s.Post, loop)
			}
		}
	case ir.Return:
		if s.Value == nil {
			return returned, Value{}
		}
		return returned, inv.eval(s.Value, sc)
	case ir.ExprStmt:
		inv.eval(s.X, sc)
	case ir.Barrier:
		if inv.barrier == nil {
			fail("workgroupBarrier outside a compute dispatch")
		}
		if err := inv.barrier.wait(); err != nil {
			panic(execError{err})
		}
	case ir.Comment:
	default:
		fail("unknown statement %T", s)
	}
	return next, Value{}
}

func (inv *invocation) assign(s ir.Assign, sc *scope) {
	v := inv.eval(s.Value, sc)
	target, comp := inv.ref(s.Target, sc)
	if s.Op != "" {
		cur := *target
		if comp >= 0 {
			cur = target.component(comp)
		}
		v = binary(s.Op, cur, v)
	}
	if comp >= 0 {
		if v.T != (ir.Type{Kind: target.T.Kind, Width: 1}) {
			fail("cannot store %s into a component of %s", v.T, target.T)
		}
		target.setComponent(comp, v)
		return
	}
	if v.T != target.T {
		fail("cannot assign %s to %s", v.T, target.T)
	}
	*target = v.clone()
}

// ref resolves an assignable expression to storage and, for vector
// components, the component index (-1 otherwise).
func (inv *invocation) ref(e ir.Expr, sc *scope) (*Value, int) {
	switch e := e.(type) {
	case ir.Ident:
		b := inv.resolve(e.Name, sc)
		if !b.mutable {
			fail("cannot assign to %s", e.Name)
		}
		return b.v, -1
	case ir.Index:
		base, comp := inv.ref(e.X, sc)
		if comp >= 0 {
			fail("cannot index a scalar")
		}
		i := index(inv.eval(e.I, sc), base.T)
		if base.T.IsArray() {
			return &base.Arr[i], -1
		}
		return base, i
	case ir.Swizzle:
		base, comp := inv.ref(e.X, sc)
		if comp >= 0 || len(e.Sel) != 1 {
			fail("unsupported assignment to .%s", e.Sel)
		}
		return base, swizzleIndex(e.Sel[0], base.T.Width)
	}
	fail("expression %T is not assignable", e)
	return nil, 0
}

func index(i Value, of ir.Type) int {
	var n int
	switch i.T {
	case ir.TI32:
		n = int(i.I[0])
	case ir.TU32:
		n = int(i.U[0])
	default:
		fail("index of type %s", i.T)
	}
	limit := of.Width
	if of.IsArray() {
		limit = of.Len
	}
	if n < 0 || n >= limit {
		fail("index %d out of bounds for %s", n, of)
	}
	return n
}

func swizzleIndex(c byte, width int) int {
	i := 0
	switch c {
	case 'x':
		i = 0
	case 'y':
		i = 1
	case 'z':
		i = 2
	case 'w':
		i = 3
	default:
		fail("bad swizzle component %q", c)
	}
	if i >= width {
		fail("swizzle .%c on vec%d", c, width)
	}
	return i
}

func (inv *invocation) eval(e ir.Expr, sc *scope) Value {
	switch e := e.(type) {
	case ir.Lit:
		return literal(e)
	case ir.Ident:
		return *inv.resolve(e.Name, sc).v
	case ir.Binary:
		x := inv.eval(e.X, sc)
		if e.Op == ir.OpAnd || e.Op == ir.OpOr {
			if x.T != ir.TBool {
				fail("%s on %s", e.Op, x.T)
			}
			if (e.Op == ir.OpAnd) != x.B[0] {
				return x
			}
			y := inv.eval(e.Y, sc)
			if y.T != ir.TBool {
				fail("%s on %s", e.Op, y.T)
			}
			return y
		}
		return binary(e.Op, x, inv.eval(e.Y, sc))
	case ir.Unary:
		return unary(e.Op, inv.eval(e.X, sc))
	case ir.Call:
		return inv.call(e, sc)
	case ir.Construct:
		args := make([]Value, len(e.Args))
		for i, a := range e.Args {
			args[i] = inv.eval(a, sc)
		}
		return construct(e.Type, args)
	case ir.Swizzle:
		x := inv.eval(e.X, sc)
		if x.T.IsArray() {
			fail("swizzle on %s", x.T)
		}
		out := Value{T: ir.Type{Kind: x.T.Kind, Width: len(e.Sel)}}
		for i := range len(e.Sel) {
			out.setComponent(i, x.component(swizzleIndex(e.Sel[i], x.T.Width)))
		}
		return out
	case ir.Index:
		x := inv.eval(e.X, sc)
		i := index(inv.eval(e.I, sc), x.T)
		if x.T.IsArray() {
			return x.Arr[i]
		}
		return x.component(i)
	}
	fail("unknown expression %T", e)
	return Value{}
}

func (inv *invocation) call(c ir.Call, sc *scope) Value {
	if ir.Builtins[c.Fn] {
		return inv.builtin(c, sc)
	}
	f, ok := inv.m.funcs[c.Fn]
	if !ok {
		fail("call to undefined function %s", c.Fn)
	}
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		args[i] = inv.eval(a, sc)
	}
	return inv.invoke(f, args)
}

func (inv *invocation) invoke(f *ir.Function, args []Value) Value {
	if len(args) != len(f.Params) {
		fail("%s takes %d arguments, got %d", f.Name, len(f.Params), len(args))
	}
	frame := newScope(nil)
	for i, p := range f.Params {
		v := args[i]
		if v.T != p.Type {
			fail("%s: argument %s is %s, want %s", f.Name, p.Name, v.T, p.Type)
		}
		frame.vars[p.Name] = binding{v: &v}
	}
	ctrl, v := inv.execBlock(f.Body, frame)
	if f.Result == nil {
		return Value{}
	}
	if ctrl != returned {
		fail("%s ends without returning", f.Name)
	}
	if v.T != *f.Result {
		fail("%s returns %s, declared %s", f.Name, v.T, *f.Result)
	}
	return v
}

// binary applies an arithmetic or comparison operator component-wise. A
// scalar operand is widened against a vector; otherwise types must match.
func binary(op ir.Op, x, y Value) Value {
	if x.T.IsArray() || y.T.IsArray() {
		fail("%s on arrays", op)
	}
	if x.T.Kind != y.T.Kind {
		fail("%s between %s and %s", op, x.T, y.T)
	}
	switch {
	case x.T.Width == 1 && y.T.Width > 1:
		x = x.splat(y.T.Width)
	case y.T.Width == 1 && x.T.Width > 1:
		y = y.splat(x.T.Width)
	case x.T.Width != y.T.Width:
		fail("%s between %s and %s", op, x.T, y.T)
	}
	w := x.T.Width
	out := Value{T: x.T}
	switch op {
	case ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe, ir.OpEq, ir.OpNe:
		out.T = ir.Type{Kind: ir.Bool, Width: w}
		for i := range w {
			out.B[i] = compare(op, x.component(i), y.component(i))
		}
		return out
	}
	for i := range w {
		switch x.T.Kind {
		case ir.I32:
			out.I[i] = arithI32(op, x.I[i], y.I[i])
		case ir.U32:
			out.U[i] = arithU32(op, x.U[i], y.U[i])
		case ir.F32:
			out.F[i] = arithF32(op, x.F[i], y.F[i])
		default:
			fail("%s on %s", op, x.T)
		}
	}
	return out
}

func compare(op ir.Op, x, y Value) bool {
	var c int
	switch x.T.Kind {
	case ir.I32:
		c = cmp(x.I[0], y.I[0])
	case ir.U32:
		c = cmp(x.U[0], y.U[0])
	case ir.F32:
		a, b := x.F[0], y.F[0]
		if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
			return op == ir.OpNe
		}
		c = cmp(a, b)
	case ir.Bool:
		if op != ir.OpEq && op != ir.OpNe {
			fail("%s on bool", op)
		}
		if x.B[0] != y.B[0] {
			c = 1
		}
	}
	switch op {
	case ir.OpLt:
		return c < 0
	case ir.OpLe:
		return c <= 0
	case ir.OpGt:
		return c > 0
	case ir.OpGe:
		return c >= 0
	case ir.OpEq:
		return c == 0
	default:
		return c != 0
	}
}

func cmp[T int32 | uint32 | float32](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// arithI32 follows WGSL: wrapping arithmetic, x / 0 == x, x % 0 == 0.
func arithI32(op ir.Op, a, b int32) int32 {
	switch op {
	case ir.OpAdd:
		return a + b
	case ir.OpSub:
		return a - b
	case ir.OpMul:
		return a * b
	case ir.OpDiv:
		if b == 0 || (a == math.MinInt32 && b == -1) {
			return a
		}
		return a / b
	case ir.OpMod:
		if b == 0 || (a == math.MinInt32 && b == -1) {
			return 0
		}
		return a % b
	}
	fail("%s on i32", op)
	return 0
}

func arithU32(op ir.Op, a, b uint32) uint32 {
	switch op {
	case ir.OpAdd:
		return a + b
	case ir.OpSub:
		return a - b
	case ir.OpMul:
		return a * b
	case ir.OpDiv:
		if b == 0 {
			return a
		}
		return a / b
	case ir.OpMod:
		if b == 0 {
			return 0
		}
		return a % b
	}
	fail("%s on u32", op)
	return 0
}

func arithF32(op ir.Op, a, b float32) float32 {
	switch op {
	case ir.OpAdd:
		return a + b
	case ir.OpSub:
		return a - b
	case ir.OpMul:
		return a * b
	case ir.OpDiv:
		return a / b
	case ir.OpMod:
		return float32(math.Mod(float64(a), float64(b)))
	}
	fail("%s on f32", op)
	return 0
}

func unary(op ir.Op, x Value) Value {
	out := x
	for i := range x.T.Width {
		switch {
		case op == ir.OpNot && x.T.Kind == ir.Bool:
			out.B[i] = !x.B[i]
		case op == ir.OpNeg && x.T.Kind == ir.I32:
			out.I[i] = -x.I[i]
		case op == ir.OpNeg && x.T.Kind == ir.F32:
			out.F[i] = -x.F[i]
		default:
			fail("%s on %s", op, x.T)
		}
	}
	return out
}

// construct builds vectors and arrays from components, splats a single
// scalar, and converts between scalar kinds.
func construct(t ir.Type, args []Value) Value {
	if t.IsArray() {
		if len(args) != t.Len {
			fail("%s from %d values", t, len(args))
		}
		out := Value{T: t, Arr: make([]Value, t.Len)}
		for i, a := range args {
			if a.T != t.Elem() {
				fail("%s element %d is %s", t, i, a.T)
			}
			out.Arr[i] = a.clone()
		}
		return out
	}
	if len(args) == 1 && args[0].T.Width == t.Width && !args[0].T.IsArray() {
		return convert(args[0], t)
	}
	if len(args) == 1 && args[0].T.Width == 1 && args[0].T.Kind == t.Kind {
		return args[0].splat(t.Width)
	}
	out := Value{T: t}
	n := 0
	for _, a := range args {
		if a.T.Kind != t.Kind || a.T.IsArray() {
			fail("%s from %s", t, a.T)
		}
		for i := range a.T.Width {
			if n >= t.Width {
				fail("too many components for %s", t)
			}
			out.setComponent(n, a.component(i))
			n++
		}
	}
	if n != t.Width {
		fail("%s from %d components", t, n)
	}
	return out
}

func convert(v Value, t ir.Type) Value {
	out := Value{T: t}
	for i := range t.Width {
		switch t.Kind {
		case ir.F32:
			switch v.T.Kind {
			case ir.F32:
				out.F[i] = v.F[i]
			case ir.I32:
				out.F[i] = float32(v.I[i])
			case ir.U32:
				out.F[i] = float32(v.U[i])
			default:
				fail("f32 from %s", v.T)
			}
		case ir.I32:
			switch v.T.Kind {
			case ir.I32:
				out.I[i] = v.I[i]
			case ir.U32:
				out.I[i] = int32(v.U[i]) //nolint:gosec // G115: WGSL i32(u32) reinterprets bits
			case ir.F32:
				out.I[i] = f32ToI32(v.F[i])
			case ir.Bool:
				if v.B[i] {
					out.I[i] = 1
				}
			}
		case ir.U32:
			switch v.T.Kind {
			case ir.U32:
				out.U[i] = v.U[i]
			case ir.I32:
				out.U[i] = uint32(v.I[i]) //nolint:gosec // G115: WGSL u32(i32) reinterprets bits
			default:
				fail("u32 from %s", v.T)
			}
		case ir.Bool:
			if v.T.Kind != ir.Bool {
				fail("bool from %s", v.T)
			}
			out.B[i] = v.B[i]
		}
	}
	return out
}

// f32ToI32 truncates toward zero and saturates, as WGSL does.
func f32ToI32(f float32) int32 {
	switch {
	case math.IsNaN(float64(f)):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}
