// Package shader assembles generated kernel parts into one self-contained
// module and describes the result as a Program.
package shader

import (
	"fmt"

	"github.com/born-ml/gpgpu/internal/ir"
)

// Section names, in emission order.
const (
	SectionStability = "stability"
	SectionIndexMath = "index math"
	SectionInputs    = "inputs"
	SectionOutput    = "output"
	SectionBody      = "body"
)

// Parts are the generated pieces of one kernel.
type Parts struct {
	// Inputs holds bindings and accessors of every input.
	Inputs []ir.Global
	// Output holds the output binding, invocation globals and the output
	// coordinate functions.
	Output []ir.Global
	// Body holds workgroup memory, operator helpers and the entry point.
	Body []ir.Global
}

// Assemble joins the prefix and parts in the fixed order stability, index
// math, inputs, output, body. WGSL has no forward declarations of helpers
// here, so later sections may only call names declared before them; the
// assembled module is checked with Verify.
func Assemble(opts Options, parts Parts) (*ir.Module, error) {
	m := &ir.Module{Sections: []ir.Section{
		{Name: SectionStability, Globals: StabilityFuncs(opts)},
		{Name: SectionIndexMath, Globals: IndexMathFuncs()},
		{Name: SectionInputs, Globals: parts.Inputs},
		{Name: SectionOutput, Globals: parts.Output},
		{Name: SectionBody, Globals: parts.Body},
	}}
	if err := Verify(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Verify checks that names are declared once, that every function call
// targets a builtin or a function declared earlier in the module, and that
// the module has exactly one entry point.
func Verify(m *ir.Module) error {
	declared := map[string]bool{}
	entries := 0
	for _, g := range m.Globals() {
		var body []ir.Stmt
		switch g := g.(type) {
		case *ir.Function:
			body = g.Body
		case *ir.EntryPoint:
			body = g.Body
			entries++
		}
		for _, fn := range ir.Calls(body) {
			if !ir.Builtins[fn] && !declared[fn] {
				return fmt.Errorf("shader: %s calls %s before it is declared", g.Ident(), fn)
			}
		}
		if declared[g.Ident()] {
			return fmt.Errorf("shader: %s declared twice", g.Ident())
		}
		declared[g.Ident()] = true
	}
	if entries != 1 {
		return fmt.Errorf("shader: module has %d entry points", entries)
	}
	return nil
}
