// Package coords compiles tensor addressing into kernel code. For the
// program output it emits the decoder from the invocation's texel to
// logical coordinates (and, in indexed mode, the encoder used by
// setOutput); for each input it emits an accessor from logical coordinates
// to a texture read, plus a broadcast-aware accessor at the output's
// coordinates.
//
// One generator serves all four combinations of packed/unpacked storage
// and sampling/indexed access; Mode selects between them.
package coords

import "github.com/born-ml/gpgpu/internal/ir"

// Access is how kernels reach texture storage.
type Access uint8

const (
	// Indexed programs run in the compute stage: reads are textureLoad at
	// integer texel positions and results are written with textureStore.
	// Workgroup memory and barriers are available.
	Indexed Access = iota + 1
	// Sampling programs run in the fragment stage: reads sample at the
	// texel centre's normalised coordinate and each invocation returns the
	// value of its own output texel.
	Sampling
)

// String returns the access mode name.
func (a Access) String() string {
	switch a {
	case Indexed:
		return "indexed"
	case Sampling:
		return "sampling"
	default:
		return "invalid"
	}
}

// Mode selects the addressing scheme of a program.
type Mode struct {
	// Packed programs produce packed output: every invocation handles one
	// 2x2 block and works on vec4 values.
	Packed bool
	Access Access
}

// Stage returns the pipeline stage the mode runs in.
func (m Mode) Stage() ir.Stage {
	if m.Access == Sampling {
		return ir.Fragment
	}
	return ir.Compute
}

// ValueType returns the per-invocation value type: vec4<f32> for packed
// programs, f32 otherwise.
func (m Mode) ValueType() ir.Type {
	if m.Packed {
		return ir.TVec4F
	}
	return ir.TF32
}

// Names shared by generated code.
const (
	OutputName  = "result"
	SamplerName = "texSampler"

	GlobalID    = "gGlobalId"
	LocalID     = "gLocalId"
	WorkgroupID = "gWorkgroupId"
	ResultUV    = "gResultUV"
)
