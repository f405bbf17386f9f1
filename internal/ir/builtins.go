package ir

// Builtins lists the WGSL builtin functions generated kernels may call.
var Builtins = map[string]bool{
	"textureLoad":        true,
	"textureStore":       true,
	"textureSampleLevel": true,
	"dot":                true,
	"floor":              true,
	"abs":                true,
	"max":                true,
	"min":                true,
	"clamp":              true,
	"exp":                true,
	"tanh":               true,
	"select":             true,
}

// Calls returns the names of all functions called in stmts, in order of
// first appearance.
func Calls(stmts []Stmt) []string {
	var out []string
	seen := map[string]bool{}
	var visitExpr func(Expr)
	visitExpr = func(e Expr) {
		switch e := e.(type) {
		case Binary:
			visitExpr(e.X)
			visitExpr(e.Y)
		case Unary:
			visitExpr(e.X)
		case Call:
			if !seen[e.Fn] {
				seen[e.Fn] = true
				out = append(out, e.Fn)
			}
			for _, a := range e.Args {
				visitExpr(a)
			}
		case Construct:
			for _, a := range e.Args {
				visitExpr(a)
			}
		case Swizzle:
			visitExpr(e.X)
		case Index:
			visitExpr(e.X)
			visitExpr(e.I)
		}
	}
	var visit func([]Stmt)
	visit = func(stmts []Stmt) {
		for _, s := range stmts {
			switch s := s.(type) {
			case Local:
				if s.Value != nil {
					visitExpr(s.Value)
				}
			case Assign:
				visitExpr(s.Target)
				visitExpr(s.Value)
			case If:
				visitExpr(s.Cond)
				visit(s.Then)
				visit(s.Else)
			case For:
				if s.Init != nil {
					visit([]Stmt{s.Init})
				}
				visitExpr(s.Cond)
				if s.Post != nil {
					visit([]Stmt{s.Post})
				}
				visit(s.Body)
			case Return:
				if s.Value != nil {
					visitExpr(s.Value)
				}
			case ExprStmt:
				visitExpr(s.X)
			}
		}
	}
	visit(stmts)
	return out
}
