package ir

// Global is a module-scope declaration.
type Global interface {
	global()
	// Ident returns the declared name.
	Ident() string
}

// TextureBinding declares a texture. Sampled textures are texture_2d<f32>;
// storage textures are write-only texture_storage_2d with the given format.
type TextureBinding struct {
	Name    string
	Group   int
	Binding int
	Storage bool
	Format  Format
}

// SamplerBinding declares a sampler.
type SamplerBinding struct {
	Name    string
	Group   int
	Binding int
}

// UniformBinding declares a var<uniform> of Type.
type UniformBinding struct {
	Name    string
	Group   int
	Binding int
	Type    Type
}

// GlobalVar declares a private or workgroup variable. Workgroup variables
// are zero initialised at the start of each workgroup.
type GlobalVar struct {
	Name  string
	Space Space
	Type  Type
}

// Const declares a module-scope constant.
type Const struct {
	Name  string
	Value Lit
}

// Param is a function parameter.
type Param struct {
	Name string
	Type Type
}

// Function is a module function. Result is nil for functions without a
// return value.
type Function struct {
	Name   string
	Params []Param
	Result *Type
	Body   []Stmt
}

// EntryPoint is the kernel entry, always named main.
//
// Compute entries receive the builtins globalId, localId and workgroupId
// (vec3<u32>); fragment entries receive fragCoord (vec4<f32>) and return the
// texel value as vec4<f32>.
type EntryPoint struct {
	Stage         Stage
	WorkgroupSize [3]int
	Body          []Stmt
}

// EntryName is the function name of every entry point.
const EntryName = "main"

// Builtin parameter names of the entry point.
const (
	BuiltinGlobalID    = "globalId"
	BuiltinLocalID     = "localId"
	BuiltinWorkgroupID = "workgroupId"
	BuiltinFragCoord   = "fragCoord"
)

func (TextureBinding) global() {}
func (SamplerBinding) global() {}
func (UniformBinding) global() {}
func (GlobalVar) global()      {}
func (Const) global()          {}
func (*Function) global()      {}
func (*EntryPoint) global()    {}

// Ident returns the declared name.
func (g TextureBinding) Ident() string { return g.Name }

// Ident returns the declared name.
func (g SamplerBinding) Ident() string { return g.Name }

// Ident returns the declared name.
func (g UniformBinding) Ident() string { return g.Name }

// Ident returns the declared name.
func (g GlobalVar) Ident() string { return g.Name }

// Ident returns the declared name.
func (g Const) Ident() string { return g.Name }

// Ident returns the declared name.
func (f *Function) Ident() string { return f.Name }

// Ident returns EntryName.
func (*EntryPoint) Ident() string { return EntryName }

// Section is a named, ordered group of declarations.
type Section struct {
	Name    string
	Globals []Global
}

// Module is a complete kernel: sections in emission order.
type Module struct {
	Sections []Section
}

// Globals returns every declaration in emission order.
func (m *Module) Globals() []Global {
	var out []Global
	for _, s := range m.Sections {
		out = append(out, s.Globals...)
	}
	return out
}

// Lookup returns the declaration with the given name.
func (m *Module) Lookup(name string) (Global, bool) {
	for _, s := range m.Sections {
		for _, g := range s.Globals {
			if g.Ident() == name {
				return g, true
			}
		}
	}
	return nil, false
}

// Function returns the module function with the given name.
func (m *Module) Function(name string) (*Function, bool) {
	g, ok := m.Lookup(name)
	if !ok {
		return nil, false
	}
	f, ok := g.(*Function)
	return f, ok
}

// Entry returns the entry point, or nil when the module has none.
func (m *Module) Entry() *EntryPoint {
	for _, g := range m.Globals() {
		if e, ok := g.(*EntryPoint); ok {
			return e
		}
	}
	return nil
}
