package shader_test

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/shape"
	"github.com/born-ml/gpgpu/internal/sim"
)

func addSpec(mode coords.Mode) shader.Spec {
	out := shape.New(shape.Shape{2, 4}, mode.Packed, 0)
	sum := ir.Add(ir.Fn(coords.AtOutCoords("A")), ir.Fn(coords.AtOutCoords("B")))
	var body []ir.Stmt
	entry := &ir.EntryPoint{Stage: mode.Stage()}
	if mode.Access == coords.Sampling {
		body = []ir.Stmt{ir.Ret(coords.OutputValue(sum, mode))}
	} else {
		entry.WorkgroupSize = [3]int{8, 8, 1}
		body = []ir.Stmt{
			ir.When(ir.Fn(coords.FnOutputValid, ir.Fn(coords.FnOutputTexel)),
				ir.Let("coords", ir.Fn(coords.FnOutputCoords)),
				ir.Do(ir.Fn(coords.FnSetOutput, ir.Swz(ir.V("coords"), "x"), ir.Swz(ir.V("coords"), "y"), sum)),
			),
		}
	}
	entry.Body = body
	return shader.Spec{
		Name: "add",
		Inputs: []shape.Input{
			{Name: "A", Shape: shape.New(shape.Shape{2, 4}, mode.Packed, 0)},
			{Name: "B", Shape: shape.New(shape.Shape{4}, mode.Packed, 0)},
		},
		Output:        out,
		Mode:          mode,
		WorkgroupSize: entry.WorkgroupSize,
		Dispatch:      [3]int{1, 1, 1},
		Body:          []ir.Global{entry},
		Key:           "add:" + out.String(),
	}
}

// TestBuildBindings tests binding slot assignment in both access modes.
func TestBuildBindings(t *testing.T) {
	prog, err := shader.Build(addSpec(coords.Mode{Access: coords.Indexed}), shader.Options{})
	require.NoError(t, err)
	assert.Equal(t, []shader.Binding{
		{Name: "A", Binding: 0, Kind: shader.BindTexture},
		{Name: "B", Binding: 1, Kind: shader.BindTexture},
		{Name: "result", Binding: 2, Kind: shader.BindStorageTexture},
	}, prog.Bindings)
	assert.Equal(t, []string{"A", "B"}, prog.Variables)
	assert.Equal(t, ir.Compute, prog.Stage())
	assert.Contains(t, prog.Source, "@group(0) @binding(2) var result: texture_storage_2d<r32float, write>;")

	prog, err = shader.Build(addSpec(coords.Mode{Packed: true, Access: coords.Sampling}), shader.Options{})
	require.NoError(t, err)
	assert.Equal(t, shader.Binding{Name: "texSampler", Binding: 2, Kind: shader.BindSampler}, prog.Bindings[2])
	assert.Equal(t, ir.Fragment, prog.Stage())
	assert.Equal(t, ir.FormatRGBA32Float, prog.OutputFormat())
	assert.Equal(t, [2]int{1, 2}, prog.OutputTexShape())
	assert.Equal(t, 2, prog.Invocations())
}

// TestBuildRuns tests that an assembled program computes a broadcast sum in
// every mode.
func TestBuildRuns(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	b := []float32{10, 20, 30, 40}
	want := []float32{11, 22, 33, 44, 15, 26, 37, 48}
	for _, mode := range []coords.Mode{
		{Access: coords.Indexed},
		{Packed: true, Access: coords.Indexed},
		{Access: coords.Sampling},
		{Packed: true, Access: coords.Sampling},
	} {
		prog, err := shader.Build(addSpec(mode), shader.Options{})
		require.NoError(t, err)
		got, err := sim.Execute(t.Context(), prog, a, b)
		require.NoError(t, err)
		assert.Equal(t, want, got, "mode %+v", mode)
	}
}

// TestSectionOrder tests that sections are emitted in their fixed order.
func TestSectionOrder(t *testing.T) {
	prog, err := shader.Build(addSpec(coords.Mode{Access: coords.Indexed}), shader.Options{})
	require.NoError(t, err)
	var names []string
	for _, s := range prog.Module.Sections {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		shader.SectionStability, shader.SectionIndexMath, shader.SectionInputs, shader.SectionOutput, shader.SectionBody,
	}, names)

	positions := []int{
		strings.Index(prog.Source, "fn isnanF32("),
		strings.Index(prog.Source, "fn flatToTexel("),
		strings.Index(prog.Source, "fn getA("),
		strings.Index(prog.Source, "fn getOutputCoords("),
		strings.Index(prog.Source, "fn getAAtOutCoords("),
		strings.Index(prog.Source, "fn main("),
	}
	for i := 1; i < len(positions); i++ {
		assert.Less(t, positions[i-1], positions[i])
	}
}

// TestVerify tests the declaration order checks.
func TestVerify(t *testing.T) {
	helper := ir.Func("helper", nil, ir.TF32, ir.Ret(ir.Float(1)))
	early := ir.Func("early", nil, ir.TF32, ir.Ret(ir.Fn("helper")))
	entry := &ir.EntryPoint{Stage: ir.Compute, WorkgroupSize: [3]int{1, 1, 1}}

	_, err := shader.Assemble(shader.Options{}, shader.Parts{Inputs: []ir.Global{early}, Body: []ir.Global{helper, entry}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "early calls helper before it is declared")

	_, err = shader.Assemble(shader.Options{}, shader.Parts{Inputs: []ir.Global{helper}, Body: []ir.Global{early, entry}})
	require.NoError(t, err)

	_, err = shader.Assemble(shader.Options{}, shader.Parts{Inputs: []ir.Global{helper}, Body: []ir.Global{helper, entry}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")

	_, err = shader.Assemble(shader.Options{}, shader.Parts{Body: []ir.Global{helper}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 entry points")
}

// TestStabilityFuncs tests the NaN check and its production stub.
func TestStabilityFuncs(t *testing.T) {
	entry := &ir.EntryPoint{Stage: ir.Compute, WorkgroupSize: [3]int{1, 1, 1}}
	nan := sim.Float(float32(math.NaN()))

	m, err := shader.Assemble(shader.Options{}, shader.Parts{Body: []ir.Global{entry}})
	require.NoError(t, err)
	got, err := sim.Call(m, shader.FnIsNaN, sim.Env{}, nan)
	require.NoError(t, err)
	assert.True(t, got.B[0])
	got, err = sim.Call(m, shader.FnIsNaN, sim.Env{}, sim.Float(0))
	require.NoError(t, err)
	assert.False(t, got.B[0])
	got, err = sim.Call(m, shader.FnIsNaNVec4, sim.Env{}, sim.FVec(1, float32(math.NaN()), -1, 0))
	require.NoError(t, err)
	assert.Equal(t, [4]bool{false, true, false, false}, got.B)

	m, err = shader.Assemble(shader.Options{Production: true}, shader.Parts{Body: []ir.Global{entry}})
	require.NoError(t, err)
	got, err = sim.Call(m, shader.FnIsNaN, sim.Env{}, nan)
	require.NoError(t, err)
	assert.False(t, got.B[0])
}

// TestSPIRV tests that generated source compiles to SPIR-V with naga.
func TestSPIRV(t *testing.T) {
	prog, err := shader.Build(addSpec(coords.Mode{Access: coords.Indexed}), shader.Options{})
	require.NoError(t, err)
	spirv, err := prog.SPIRV()
	if err != nil {
		// naga does not cover all of WGSL yet.
		t.Skipf("Skipping: naga cannot compile kernel: %v", err)
	}
	require.GreaterOrEqual(t, len(spirv), 4)
	assert.Equal(t, uint32(0x07230203), binary.LittleEndian.Uint32(spirv))
}
