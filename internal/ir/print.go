package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders the module as WGSL source.
func Print(m *Module) string {
	p := &printer{}
	for i, s := range m.Sections {
		if len(s.Globals) == 0 {
			continue
		}
		if i > 0 && p.sb.Len() > 0 {
			p.sb.WriteByte('\n')
		}
		p.line("// " + s.Name)
		for _, g := range s.Globals {
			p.global(g)
		}
	}
	return p.sb.String()
}

// PrintExpr renders a single expression.
func PrintExpr(e Expr) string {
	p := &printer{}
	return p.expr(e)
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) line(s string) {
	for i := 0; i < p.indent; i++ {
		p.sb.WriteString("    ")
	}
	p.sb.WriteString(s)
	p.sb.WriteByte('\n')
}

func (p *printer) global(g Global) {
	switch g := g.(type) {
	case TextureBinding:
		typ := "texture_2d<f32>"
		if g.Storage {
			typ = fmt.Sprintf("texture_storage_2d<%s, write>", g.Format)
		}
		p.line(fmt.Sprintf("@group(%d) @binding(%d) var %s: %s;", g.Group, g.Binding, g.Name, typ))
	case SamplerBinding:
		p.line(fmt.Sprintf("@group(%d) @binding(%d) var %s: sampler;", g.Group, g.Binding, g.Name))
	case UniformBinding:
		p.line(fmt.Sprintf("@group(%d) @binding(%d) var<uniform> %s: %s;", g.Group, g.Binding, g.Name, g.Type))
	case GlobalVar:
		p.line(fmt.Sprintf("var<%s> %s: %s;", g.Space, g.Name, g.Type))
	case Const:
		p.line(fmt.Sprintf("const %s: %s = %s;", g.Name, g.Value.Type, p.expr(g.Value)))
	case *Function:
		params := make([]string, len(g.Params))
		for i, prm := range g.Params {
			params[i] = prm.Name + ": " + prm.Type.String()
		}
		head := fmt.Sprintf("fn %s(%s)", g.Name, strings.Join(params, ", "))
		if g.Result != nil {
			head += " -> " + g.Result.String()
		}
		p.line(head + " {")
		p.block(g.Body)
		p.line("}")
	case *EntryPoint:
		p.entry(g)
	}
}

func (p *printer) entry(e *EntryPoint) {
	switch e.Stage {
	case Compute:
		p.line(fmt.Sprintf("@compute @workgroup_size(%d, %d, %d)",
			e.WorkgroupSize[0], e.WorkgroupSize[1], e.WorkgroupSize[2]))
		p.line(fmt.Sprintf("fn main(@builtin(global_invocation_id) %s: vec3<u32>, "+
			"@builtin(local_invocation_id) %s: vec3<u32>, @builtin(workgroup_id) %s: vec3<u32>) {",
			BuiltinGlobalID, BuiltinLocalID, BuiltinWorkgroupID))
	case Fragment:
		p.line("@fragment")
		p.line(fmt.Sprintf("fn main(@builtin(position) %s: vec4<f32>) -> @location(0) vec4<f32> {", BuiltinFragCoord))
	}
	p.block(e.Body)
	p.line("}")
}

func (p *printer) block(stmts []Stmt) {
	p.indent++
	for _, s := range stmts {
		p.stmt(s)
	}
	p.indent--
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case Local:
		p.line(p.local(s) + ";")
	case Assign:
		p.line(p.assign(s) + ";")
	case If:
		p.ifStmt(s, "if")
		p.line("}")
	case For:
		init := ""
		if s.Init != nil {
			init = p.simple(s.Init)
		}
		post := ""
		if s.Post != nil {
			post = p.simple(s.Post)
		}
		p.line(fmt.Sprintf("for (%s; %s; %s) {", init, p.expr(s.Cond), post))
		p.block(s.Body)
		p.line("}")
	case Return:
		if s.Value == nil {
			p.line("return;")
			return
		}
		p.line("return " + p.expr(s.Value) + ";")
	case ExprStmt:
		p.line(p.expr(s.X) + ";")
	case Barrier:
		p.line("workgroupBarrier();")
	case Comment:
		p.line("// " + s.Text)
	}
}

// ifStmt prints the head and branches of s; the caller closes the brace.
func (p *printer) ifStmt(s If, kw string) {
	p.line(fmt.Sprintf("%s (%s) {", kw, p.expr(s.Cond)))
	p.block(s.Then)
	if len(s.Else) == 0 {
		return
	}
	if nested, ok := s.Else[0].(If); ok && len(s.Else) == 1 {
		p.ifStmt(nested, "} else if")
		return
	}
	p.line("} else {")
	p.block(s.Else)
}

func (p *printer) simple(s Stmt) string {
	switch s := s.(type) {
	case Local:
		return p.local(s)
	case Assign:
		return p.assign(s)
	case ExprStmt:
		return p.expr(s.X)
	}
	panic(fmt.Sprintf("ir: %T cannot appear in a for clause", s))
}

func (p *printer) local(s Local) string {
	kw := "let"
	if s.Mutable {
		kw = "var"
	}
	out := kw + " " + s.Name
	if s.Type != nil {
		out += ": " + s.Type.String()
	}
	if s.Value != nil {
		out += " = " + p.expr(s.Value)
	}
	return out
}

func (p *printer) assign(s Assign) string {
	return fmt.Sprintf("%s %s= %s", p.expr(s.Target), s.Op, p.expr(s.Value))
}

func (p *printer) expr(e Expr) string {
	switch e := e.(type) {
	case Lit:
		return literal(e)
	case Ident:
		return e.Name
	case Binary:
		return p.operand(e.X) + " " + string(e.Op) + " " + p.operand(e.Y)
	case Unary:
		return string(e.Op) + p.operand(e.X)
	case Call:
		return e.Fn + "(" + p.list(e.Args) + ")"
	case Construct:
		return e.Type.String() + "(" + p.list(e.Args) + ")"
	case Swizzle:
		return p.operand(e.X) + "." + e.Sel
	case Index:
		return p.operand(e.X) + "[" + p.expr(e.I) + "]"
	}
	panic(fmt.Sprintf("ir: unknown expression %T", e))
}

func (p *printer) operand(e Expr) string {
	switch e.(type) {
	case Binary, Unary:
		return "(" + p.expr(e) + ")"
	}
	return p.expr(e)
}

func (p *printer) list(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = p.expr(a)
	}
	return strings.Join(parts, ", ")
}

func literal(l Lit) string {
	switch l.Type.Kind {
	case Bool:
		return strconv.FormatBool(l.Bool)
	case U32:
		return strconv.FormatInt(l.Int, 10) + "u"
	case F32:
		s := strconv.FormatFloat(l.Float, 'g', -1, 32)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	default:
		return strconv.FormatInt(l.Int, 10)
	}
}
