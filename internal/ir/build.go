package ir

// Int returns an i32 literal.
func Int(v int) Expr { return Lit{Type: TI32, Int: int64(v)} }

// Uint returns a u32 literal.
func Uint(v int) Expr { return Lit{Type: TU32, Int: int64(v)} }

// Float returns an f32 literal.
func Float(v float64) Expr { return Lit{Type: TF32, Float: v} }

// BoolLit returns a bool literal.
func BoolLit(v bool) Expr { return Lit{Type: TBool, Bool: v} }

// V returns a reference to name.
func V(name string) Expr { return Ident{Name: name} }

// IntValue reports the value of an i32 literal.
func IntValue(e Expr) (int, bool) {
	l, ok := e.(Lit)
	if !ok || l.Type != TI32 {
		return 0, false
	}
	return int(l.Int), true
}

// Add returns x + y, folding i32 constants and additive identities.
func Add(x, y Expr) Expr {
	a, aok := IntValue(x)
	b, bok := IntValue(y)
	switch {
	case aok && bok:
		return Int(int(int32(a + b)))
	case aok && a == 0:
		return y
	case bok && b == 0:
		return x
	}
	return Binary{Op: OpAdd, X: x, Y: y}
}

// Sub returns x - y, folding i32 constants.
func Sub(x, y Expr) Expr {
	a, aok := IntValue(x)
	b, bok := IntValue(y)
	switch {
	case aok && bok:
		return Int(int(int32(a - b)))
	case bok && b == 0:
		return x
	}
	return Binary{Op: OpSub, X: x, Y: y}
}

// Mul returns x * y, folding i32 constants and multiplicative identities.
func Mul(x, y Expr) Expr {
	a, aok := IntValue(x)
	b, bok := IntValue(y)
	switch {
	case aok && bok:
		return Int(int(int32(a * b)))
	case aok && a == 1:
		return y
	case bok && b == 1:
		return x
	}
	return Binary{Op: OpMul, X: x, Y: y}
}

// Div returns x / y, folding i32 constants.
func Div(x, y Expr) Expr {
	a, aok := IntValue(x)
	b, bok := IntValue(y)
	switch {
	case aok && bok && b != 0:
		return Int(a / b)
	case bok && b == 1:
		return x
	}
	return Binary{Op: OpDiv, X: x, Y: y}
}

// Mod returns x % y.
func Mod(x, y Expr) Expr {
	a, aok := IntValue(x)
	b, bok := IntValue(y)
	if aok && bok && b != 0 {
		return Int(a % b)
	}
	return Binary{Op: OpMod, X: x, Y: y}
}

// Lt returns x < y.
func Lt(x, y Expr) Expr { return Binary{Op: OpLt, X: x, Y: y} }

// Le returns x <= y.
func Le(x, y Expr) Expr { return Binary{Op: OpLe, X: x, Y: y} }

// Gt returns x > y.
func Gt(x, y Expr) Expr { return Binary{Op: OpGt, X: x, Y: y} }

// Ge returns x >= y.
func Ge(x, y Expr) Expr { return Binary{Op: OpGe, X: x, Y: y} }

// Eq returns x == y.
func Eq(x, y Expr) Expr { return Binary{Op: OpEq, X: x, Y: y} }

// Ne returns x != y.
func Ne(x, y Expr) Expr { return Binary{Op: OpNe, X: x, Y: y} }

// And folds the conditions with &&. With no conditions it returns true.
func And(conds ...Expr) Expr {
	if len(conds) == 0 {
		return BoolLit(true)
	}
	out := conds[0]
	for _, c := range conds[1:] {
		out = Binary{Op: OpAnd, X: out, Y: c}
	}
	return out
}

// Or folds the conditions with ||.
func Or(conds ...Expr) Expr {
	if len(conds) == 0 {
		return BoolLit(false)
	}
	out := conds[0]
	for _, c := range conds[1:] {
		out = Binary{Op: OpOr, X: out, Y: c}
	}
	return out
}

// Neg returns -x.
func Neg(x Expr) Expr {
	if v, ok := IntValue(x); ok {
		return Int(-v)
	}
	return Unary{Op: OpNeg, X: x}
}

// Not returns !x.
func Not(x Expr) Expr { return Unary{Op: OpNot, X: x} }

// InRange returns lo <= x && x < hi.
func InRange(x, lo, hi Expr) Expr {
	return And(Ge(x, lo), Lt(x, hi))
}

// Fn calls a builtin or module function.
func Fn(name string, args ...Expr) Expr { return Call{Fn: name, Args: args} }

// Make constructs a value of type t.
func Make(t Type, args ...Expr) Expr { return Construct{Type: t, Args: args} }

// ToI32 converts x to i32.
func ToI32(x Expr) Expr { return Construct{Type: TI32, Args: []Expr{x}} }

// ToF32 converts x to f32.
func ToF32(x Expr) Expr {
	if v, ok := IntValue(x); ok {
		return Float(float64(v))
	}
	return Construct{Type: TF32, Args: []Expr{x}}
}

// Swz selects vector components.
func Swz(x Expr, sel string) Expr { return Swizzle{X: x, Sel: sel} }

// At indexes an array or vector.
func At(x, i Expr) Expr { return Index{X: x, I: i} }

// Let declares an immutable local.
func Let(name string, v Expr) Stmt { return Local{Name: name, Value: v} }

// Var declares a mutable local of type t initialised to v; a nil v zero
// initialises it.
func Var(name string, t Type, v Expr) Stmt {
	return Local{Name: name, Mutable: true, Type: &t, Value: v}
}

// Set assigns v to target.
func Set(target, v Expr) Stmt { return Assign{Target: target, Value: v} }

// Accumulate adds v to target in place.
func Accumulate(target, v Expr) Stmt { return Assign{Target: target, Op: OpAdd, Value: v} }

// When returns an if statement without else branch.
func When(cond Expr, then ...Stmt) Stmt { return If{Cond: cond, Then: then} }

// Loop returns for (var name = from; name < to; name += 1) { body }.
func Loop(name string, from, to Expr, body ...Stmt) Stmt {
	return LoopStep(name, from, to, Int(1), body...)
}

// LoopStep is Loop with an explicit increment.
func LoopStep(name string, from, to, step Expr, body ...Stmt) Stmt {
	return For{
		Init: Var(name, TI32, from),
		Cond: Lt(V(name), to),
		Post: Assign{Target: V(name), Op: OpAdd, Value: step},
		Body: body,
	}
}

// Ret returns v.
func Ret(v Expr) Stmt { return Return{Value: v} }

// Do evaluates a call for its side effects.
func Do(call Expr) Stmt { return ExprStmt{X: call} }

// Func declares a function returning result.
func Func(name string, params []Param, result Type, body ...Stmt) *Function {
	return &Function{Name: name, Params: params, Result: &result, Body: body}
}

// Params returns i32 parameters with the given names.
func Params(names ...string) []Param {
	out := make([]Param, len(names))
	for i, n := range names {
		out[i] = Param{Name: n, Type: TI32}
	}
	return out
}

// Idents returns references to the given names.
func Idents(names ...string) []Expr {
	out := make([]Expr, len(names))
	for i, n := range names {
		out[i] = V(n)
	}
	return out
}
