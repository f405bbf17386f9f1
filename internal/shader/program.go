package shader

import (
	"fmt"
	"slices"

	"github.com/gogpu/naga"

	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shape"
)

// BindingKind is the resource type behind a binding slot.
type BindingKind uint8

// Binding kinds.
const (
	BindTexture BindingKind = iota + 1
	BindUniform
	BindStorageTexture
	BindSampler
)

// String returns the binding kind name.
func (k BindingKind) String() string {
	switch k {
	case BindTexture:
		return "texture"
	case BindUniform:
		return "uniform"
	case BindStorageTexture:
		return "storage_texture"
	case BindSampler:
		return "sampler"
	default:
		return "invalid"
	}
}

// Binding is one slot of bind group 0.
type Binding struct {
	Name    string
	Binding int
	Kind    BindingKind
}

// Program is a compiled kernel and everything the execution engine needs
// to run it. Programs are shared between dispatches with the same Key and
// must not be modified after they are built, including the elements of
// their slices. Use Clone for a private copy.
type Program struct {
	// Name identifies the operator, e.g. "matmul_wpt".
	Name string
	// Variables are the input names in binding order.
	Variables []string
	// Inputs describe the storage of every input, in binding order.
	Inputs []shape.Input
	// Bindings lists every slot of group 0: inputs, then the output
	// storage texture (indexed) or the sampler (sampling).
	Bindings []Binding
	// Output describes the output tensor and its texture.
	Output shape.Info
	// Mode is the addressing mode the program was generated for.
	Mode coords.Mode
	// WorkgroupSize is the compute workgroup size; zero for fragment
	// programs.
	WorkgroupSize [3]int
	// Dispatch is the number of workgroups per axis. Fragment programs
	// draw one invocation per output texel instead.
	Dispatch [3]int
	// WorkPerThread is the number of output texels per invocation along
	// rows and columns.
	WorkPerThread [2]int
	// TileSize is the (rows, cols, shared) tile of tiled kernels.
	TileSize [3]int
	// Module is the generated kernel.
	Module *ir.Module
	// Source is Module printed as WGSL.
	Source string
	// Key identifies the program in caches.
	Key string
}

// Clone returns a copy whose slices and shapes do not alias p. Module is
// shared; it is never modified after printing.
func (p *Program) Clone() *Program {
	c := *p
	c.Variables = slices.Clone(p.Variables)
	c.Bindings = slices.Clone(p.Bindings)
	if p.Inputs != nil {
		c.Inputs = make([]shape.Input, len(p.Inputs))
		for i, in := range p.Inputs {
			c.Inputs[i] = shape.Input{Name: in.Name, Shape: in.Shape.Clone()}
		}
	}
	c.Output = p.Output.Clone()
	return &c
}

// Stage returns the pipeline stage of the entry point.
func (p *Program) Stage() ir.Stage { return p.Mode.Stage() }

// Packed reports whether the program reads and writes packed textures.
func (p *Program) Packed() bool { return p.Mode.Packed }

// OutputShape returns the logical output shape.
func (p *Program) OutputShape() shape.Shape { return p.Output.LogicalShape }

// OutputTexShape returns the output texture size in texels as (rows, cols).
func (p *Program) OutputTexShape() [2]int {
	return [2]int{p.Output.TexRows(), p.Output.TexCols()}
}

// OutputFormat returns the texel format of the output texture.
func (p *Program) OutputFormat() ir.Format {
	if p.Output.IsPacked {
		return ir.FormatRGBA32Float
	}
	return ir.FormatR32Float
}

// Invocations returns the total number of invocations of one dispatch.
func (p *Program) Invocations() int {
	if p.Stage() == ir.Fragment {
		return p.Output.TexRows() * p.Output.TexCols()
	}
	n := 1
	for i := range 3 {
		n *= p.WorkgroupSize[i] * p.Dispatch[i]
	}
	return n
}

// SPIRV compiles the program source to SPIR-V with naga.
func (p *Program) SPIRV() ([]byte, error) {
	spirv, err := naga.Compile(p.Source)
	if err != nil {
		return nil, fmt.Errorf("shader: compile %s: %w", p.Name, err)
	}
	return spirv, nil
}

// Spec is the generator-specific description of a program to build.
type Spec struct {
	Name          string
	Inputs        []shape.Input
	Output        shape.Info
	Mode          coords.Mode
	WorkgroupSize [3]int
	Dispatch      [3]int
	WorkPerThread [2]int
	TileSize      [3]int
	// Body holds workgroup memory, operator helpers and the entry point.
	// The prologue copying builtins into globals is prepended to the entry
	// point by Build.
	Body []ir.Global
	Key  string
}

// Build generates the input and output addressing for s, assembles the
// module and prints it.
func Build(s Spec, opts Options) (*Program, error) {
	var inputs []ir.Global
	bindings := make([]Binding, 0, len(s.Inputs)+1)
	names := make([]string, len(s.Inputs))
	for i, in := range s.Inputs {
		names[i] = in.Name
		kind := BindTexture
		if in.Shape.IsUniform {
			kind = BindUniform
		}
		bindings = append(bindings, Binding{Name: in.Name, Binding: i, Kind: kind})
		inputs = append(inputs, coords.InputBinding(in, i))
	}
	if s.Mode.Access == coords.Sampling && len(s.Inputs) > 0 {
		bindings = append(bindings, Binding{Name: coords.SamplerName, Binding: len(s.Inputs), Kind: BindSampler})
		inputs = append(inputs, coords.SamplerBinding(len(s.Inputs)))
	}

	output, err := coords.EmitOutput(s.Output, s.Mode)
	if err != nil {
		return nil, fmt.Errorf("shader: %s output: %w", s.Name, err)
	}
	for _, in := range s.Inputs {
		decls, atOut, err := coords.EmitInput(in, s.Output, s.Mode)
		if err != nil {
			return nil, fmt.Errorf("shader: %s input %s: %w", s.Name, in.Name, err)
		}
		inputs = append(inputs, decls...)
		if atOut != nil {
			output = append(output, atOut)
		}
	}
	if s.Mode.Access == coords.Indexed {
		bindings = append(bindings, Binding{Name: coords.OutputName, Binding: len(s.Inputs), Kind: BindStorageTexture})
		output = append(coords.OutputBinding(s.Output, s.Mode, len(s.Inputs)), output...)
	}

	body := make([]ir.Global, len(s.Body))
	copy(body, s.Body)
	for i, g := range body {
		if e, ok := g.(*ir.EntryPoint); ok {
			entry := *e
			entry.Body = append(coords.Prologue(s.Output, s.Mode), e.Body...)
			body[i] = &entry
		}
	}

	m, err := Assemble(opts, Parts{Inputs: inputs, Output: output, Body: body})
	if err != nil {
		return nil, fmt.Errorf("shader: %s: %w", s.Name, err)
	}
	inputsCopy := make([]shape.Input, len(s.Inputs))
	for i, in := range s.Inputs {
		inputsCopy[i] = shape.Input{Name: in.Name, Shape: in.Shape.Clone()}
	}
	return &Program{
		Name:          s.Name,
		Variables:     names,
		Inputs:        inputsCopy,
		Bindings:      bindings,
		Output:        s.Output.Clone(),
		Mode:          s.Mode,
		WorkgroupSize: s.WorkgroupSize,
		Dispatch:      s.Dispatch,
		WorkPerThread: s.WorkPerThread,
		TileSize:      s.TileSize,
		Module:        m,
		Source:        ir.Print(m),
		Key:           s.Key,
	}, nil
}
