//go:build windows

package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/logging"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/shape"
)

// PipelineCache holds shader modules and compute pipelines by program key.
type PipelineCache struct {
	device *wgpu.Device

	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
}

// NewPipelineCache returns an empty cache for device.
func NewPipelineCache(device *wgpu.Device) *PipelineCache {
	return &PipelineCache{
		device:    device,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}
}

// Pipeline returns the compute pipeline of prog, compiling it on first use.
// Fragment programs need a render pipeline and are refused.
func (c *PipelineCache) Pipeline(prog *shader.Program) (*wgpu.ComputePipeline, error) {
	if prog.Stage() != ir.Compute {
		return nil, fmt.Errorf("webgpu: %s: %w", prog.Name,
			&shape.UnsupportedFeatureError{Feature: "render pipeline", Reason: "fragment programs"})
	}

	c.mu.RLock()
	if pipeline, exists := c.pipelines[prog.Key]; exists {
		c.mu.RUnlock()
		return pipeline, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if pipeline, exists := c.pipelines[prog.Key]; exists {
		return pipeline, nil
	}

	module := c.device.CreateShaderModuleWGSL(prog.Source)
	if module == nil {
		return nil, fmt.Errorf("webgpu: %s: shader module creation failed", prog.Name)
	}
	// Auto layout; bindings follow prog.Bindings.
	pipeline := c.device.CreateComputePipelineSimple(nil, module, ir.EntryName)
	if pipeline == nil {
		module.Release()
		return nil, fmt.Errorf("webgpu: %s: pipeline creation failed", prog.Name)
	}
	c.shaders[prog.Key] = module
	c.pipelines[prog.Key] = pipeline
	logging.Logger().Debug("webgpu: pipeline created", "name", prog.Name, "key", prog.Key)
	return pipeline, nil
}

// Prepare compiles the pipeline of prog ahead of its first dispatch.
func (c *PipelineCache) Prepare(prog *shader.Program) error {
	_, err := c.Pipeline(prog)
	return err
}

// Len returns the number of cached pipelines.
func (c *PipelineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// Release releases every cached pipeline and shader module.
func (c *PipelineCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pipelines {
		p.Release()
	}
	for _, s := range c.shaders {
		s.Release()
	}
	c.pipelines = make(map[string]*wgpu.ComputePipeline)
	c.shaders = make(map[string]*wgpu.ShaderModule)
}
