package kernels

import (
	"fmt"

	"github.com/born-ml/gpgpu/internal/config"
	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Compiler generates programs with one tiling profile and caches them by
// key. It is safe for concurrent use.
type Compiler struct {
	cfg   config.Config
	cache *Cache
}

// NewCompiler returns a compiler for a validated profile.
func NewCompiler(cfg config.Config) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kernels: %w", err)
	}
	return &Compiler{cfg: cfg, cache: NewCache()}, nil
}

// Config returns the compiler's profile.
func (c *Compiler) Config() config.Config { return c.cfg }

// Cache returns the program cache.
func (c *Compiler) Cache() *Cache { return c.cache }

// Options returns the generation options derived from the profile.
func (c *Compiler) Options() Options {
	return Options{Production: c.cfg.Production, MaxTextureSize: c.cfg.MaxTextureSize}
}

// MatMul returns the matrix multiply program for info.
func (c *Compiler) MatMul(info MatMulInfo) (*shader.Program, error) {
	opts := c.Options()
	return c.cache.GetOrBuild(MatMulKey(info, c.cfg.MatMul, opts), func() (*shader.Program, error) {
		return MatMul(info, c.cfg.MatMul, opts)
	})
}

// Conv2D returns the convolution program for info.
func (c *Compiler) Conv2D(info Conv2DInfo) (*shader.Program, error) {
	opts := c.Options()
	return c.cache.GetOrBuild(Conv2DKey(info, c.cfg.Conv, opts), func() (*shader.Program, error) {
		return Conv2D(info, c.cfg.Conv, opts)
	})
}

// DepthwiseConv2D returns the depthwise convolution program for info.
func (c *Compiler) DepthwiseConv2D(info Conv2DInfo) (*shader.Program, error) {
	info.Depthwise = true
	return c.Conv2D(info)
}

// Binary returns the elementwise program act(a op b).
func (c *Compiler) Binary(op BinaryOp, a, b shape.Info, mode coords.Mode, act Activation) (*shader.Program, error) {
	opts := c.Options()
	return c.cache.GetOrBuild(BinaryKey(op, a, b, mode, act, opts), func() (*shader.Program, error) {
		return Binary(op, a, b, mode, act, opts)
	})
}

// Unary returns the elementwise program act(x).
func (c *Compiler) Unary(act Activation, x shape.Info, mode coords.Mode) (*shader.Program, error) {
	opts := c.Options()
	return c.cache.GetOrBuild(UnaryKey(act, x, mode, opts), func() (*shader.Program, error) {
		return Unary(act, x, mode, opts)
	})
}
