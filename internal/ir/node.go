package ir

// Expr is an expression node.
type Expr interface{ expr() }

// Op is a unary or binary operator, spelled as in WGSL.
type Op string

// Operators.
const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpAnd Op = "&&"
	OpOr  Op = "||"
	OpNeg Op = "-"
	OpNot Op = "!"
)

// Lit is a scalar literal. Int carries i32 and u32 values, Float carries
// f32 values.
type Lit struct {
	Type  Type
	Int   int64
	Float float64
	Bool  bool
}

// Ident refers to a local, parameter, global or constant by name.
type Ident struct {
	Name string
}

// Binary is X Op Y.
type Binary struct {
	Op   Op
	X, Y Expr
}

// Unary is Op X.
type Unary struct {
	Op Op
	X  Expr
}

// Call invokes a builtin or a module function.
type Call struct {
	Fn   string
	Args []Expr
}

// Construct builds a value of Type from Args: vector and array
// constructors as well as scalar conversions.
type Construct struct {
	Type Type
	Args []Expr
}

// Swizzle selects vector components, e.g. "xxzz".
type Swizzle struct {
	X   Expr
	Sel string
}

// Index is X[I] on an array or a vector.
type Index struct {
	X, I Expr
}

func (Lit) expr()       {}
func (Ident) expr()     {}
func (Binary) expr()    {}
func (Unary) expr()     {}
func (Call) expr()      {}
func (Construct) expr() {}
func (Swizzle) expr()   {}
func (Index) expr()     {}

// Stmt is a statement node.
type Stmt interface{ stmt() }

// Local declares a function-scope name. Mutable locals print as var, the
// rest as let. A var with a nil Value is zero initialised.
type Local struct {
	Name    string
	Mutable bool
	Type    *Type
	Value   Expr
}

// Assign stores Value into Target. A non-empty Op makes it a compound
// assignment such as +=.
type Assign struct {
	Target Expr
	Op     Op
	Value  Expr
}

// If is a conditional with an optional else branch.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// For is a C-style loop.
type For struct {
	Init Stmt
	Cond Expr
	Post Stmt
	Body []Stmt
}

// Return leaves the current function. Value may be nil.
type Return struct {
	Value Expr
}

// ExprStmt evaluates X for its side effects.
type ExprStmt struct {
	X Expr
}

// Barrier is workgroupBarrier(): every invocation of the workgroup must
// reach it before any proceeds, and workgroup memory writes made before it
// are visible after it.
type Barrier struct{}

// Comment is emitted verbatim as a line comment.
type Comment struct {
	Text string
}

func (Local) stmt()    {}
func (Assign) stmt()   {}
func (If) stmt()       {}
func (For) stmt()      {}
func (Return) stmt()   {}
func (ExprStmt) stmt() {}
func (Barrier) stmt()  {}
func (Comment) stmt()  {}
