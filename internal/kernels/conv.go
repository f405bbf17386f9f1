package kernels

import (
	"fmt"

	"github.com/born-ml/gpgpu/internal/config"
	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/shape"
)

// MaxWorkgroupStorage is the workgroup memory budget in bytes, the WebGPU
// default of maxComputeWorkgroupStorageSize.
const MaxWorkgroupStorage = 16384

// naiveWorkgroup is the square workgroup size of per-texel programs.
const naiveWorkgroup = 8

// Conv2DInfo describes a 2D cross-correlation over NHWC input.
//
// The filter is HWIO ([FilterHeight, FilterWidth, InChannels, OutChannels])
// for a regular convolution and HWCM ([FilterHeight, FilterWidth,
// InChannels, ChannelMultiplier]) for a depthwise one, where output channel
// co reads input channel co / ChannelMultiplier. Padding is implicit: reads
// outside the input contribute zero.
type Conv2DInfo struct {
	Batch                         int
	InHeight, InWidth, InChannels int
	FilterHeight, FilterWidth     int
	OutHeight, OutWidth           int
	OutChannels                   int
	StrideHeight, StrideWidth     int
	DilationHeight, DilationWidth int
	PadTop, PadLeft               int
	ChannelMultiplier             int
	Depthwise                     bool
	Bias                          bool
	Activation                    Activation
}

// ConvOutputSize returns the output extent of one spatial axis.
func ConvOutputSize(in, filter, stride, dilation, padBefore, padAfter int) int {
	effective := (filter-1)*dilation + 1
	return (in+padBefore+padAfter-effective)/stride + 1
}

// InputShape returns [Batch, InHeight, InWidth, InChannels].
func (c Conv2DInfo) InputShape() shape.Shape {
	return shape.Shape{c.Batch, c.InHeight, c.InWidth, c.InChannels}
}

// FilterShape returns the HWIO or HWCM filter shape.
func (c Conv2DInfo) FilterShape() shape.Shape {
	if c.Depthwise {
		return shape.Shape{c.FilterHeight, c.FilterWidth, c.InChannels, c.multiplier()}
	}
	return shape.Shape{c.FilterHeight, c.FilterWidth, c.InChannels, c.OutChannels}
}

// OutputShape returns [Batch, OutHeight, OutWidth, OutChannels].
func (c Conv2DInfo) OutputShape() shape.Shape {
	return shape.Shape{c.Batch, c.OutHeight, c.OutWidth, c.OutChannels}
}

func (c Conv2DInfo) multiplier() int {
	return max(c.ChannelMultiplier, 1)
}

func (c Conv2DInfo) validate() error {
	for _, d := range []int{
		c.Batch, c.InHeight, c.InWidth, c.InChannels,
		c.FilterHeight, c.FilterWidth, c.OutHeight, c.OutWidth, c.OutChannels,
		c.StrideHeight, c.StrideWidth, c.DilationHeight, c.DilationWidth,
	} {
		if d < 1 {
			return fmt.Errorf("invalid convolution %+v", c)
		}
	}
	if c.Depthwise && c.OutChannels != c.InChannels*c.multiplier() {
		return fmt.Errorf("depthwise output channels %d, want %d x %d", c.OutChannels, c.InChannels, c.multiplier())
	}
	return nil
}

// Conv2D generates a convolution in unpacked indexed mode. A set
// Depthwise flag selects the depthwise kernel.
//
//	cached  a TileWidth x TileChannels workgroup computes TileWidth output
//	        columns of one output row for TileChannels channels, reading the
//	        receptive field from a workgroup cache filled cooperatively
//	block   a BlockWidth x BlockHeight workgroup caches one input block and
//	        computes one channel; invocations whose receptive field leaves
//	        the block read storage directly
//	naive   one output element per invocation, direct reads
func Conv2D(info Conv2DInfo, tiling config.Conv, opts Options) (*shader.Program, error) {
	op := info.op()
	if err := info.validate(); err != nil {
		return nil, fmt.Errorf("kernels: %s: %w", op, err)
	}
	if err := tiling.Validate(); err != nil {
		return nil, fmt.Errorf("kernels: %s: %w", op, err)
	}
	g := conv{info: info, m: info.multiplier()}

	var v tiled
	var err error
	switch tiling.Variant {
	case config.ConvCached:
		v, err = g.cached(tiling.TileWidth, tiling.TileChannels)
	case config.ConvBlock:
		v, err = g.block(tiling.BlockHeight, tiling.BlockWidth)
	case config.ConvNaive:
		v = g.naive(opts)
	}
	if err != nil {
		return nil, err
	}

	maxTex := opts.maxTextureSize()
	inputs := []shape.Input{
		{Name: "x", Shape: shape.New(info.InputShape(), false, maxTex)},
		{Name: "w", Shape: shape.New(info.FilterShape(), false, maxTex)},
	}
	if info.Bias {
		inputs = append(inputs, shape.Input{Name: "bias", Shape: shape.New(shape.Shape{info.OutChannels}, false, maxTex)})
	}
	body := append(v.shared, g.helpers()...)
	body = append(body, &ir.EntryPoint{Stage: ir.Compute, WorkgroupSize: v.workgroup, Body: v.body})
	return build(shader.Spec{
		Name:          op + "_" + string(tiling.Variant),
		Inputs:        inputs,
		Output:        shape.New(info.OutputShape(), false, maxTex),
		Mode:          coords.Mode{Access: coords.Indexed},
		WorkgroupSize: v.workgroup,
		Dispatch:      v.dispatch,
		WorkPerThread: v.wpt,
		TileSize:      v.tile,
		Body:          body,
		Key:           Conv2DKey(info, tiling, opts),
	}, opts)
}

// DepthwiseConv2D generates a depthwise convolution; see Conv2D.
func DepthwiseConv2D(info Conv2DInfo, tiling config.Conv, opts Options) (*shader.Program, error) {
	info.Depthwise = true
	return Conv2D(info, tiling, opts)
}

func (c Conv2DInfo) op() string {
	if c.Depthwise {
		return "depthwise"
	}
	return "conv2d"
}

// Convolution helper names.
const (
	fnReadX  = "readX"
	fnFinish = "finish"
)

type conv struct {
	info Conv2DInfo
	m    int
}

// helpers returns readX, activation and finish.
//
//	readX(b, y, x, c)           input value, zero outside the input
//	finish(b, oy, ox, co, acc)  bias and activation, then store
func (g conv) helpers() []ir.Global {
	y, x := ir.V("y"), ir.V("x0")
	read := ir.Func(fnReadX, ir.Params("b", "y", "x0", "c"), ir.TF32,
		ir.When(g.inBounds(y, x),
			ir.Ret(ir.Fn(coords.Accessor("x"), ir.V("b"), y, x, ir.V("c"))),
		),
		ir.Ret(ir.Float(0)),
	)
	value := ir.V("acc")
	if g.info.Bias {
		value = ir.Add(value, ir.Fn(coords.Accessor("bias"), ir.V("co")))
	}
	params := append(ir.Params("b", "oy", "ox", "co"), ir.Param{Name: "acc", Type: ir.TF32})
	finish := &ir.Function{Name: fnFinish, Params: params, Body: []ir.Stmt{
		ir.Do(ir.Fn(coords.FnSetOutput, ir.V("b"), ir.V("oy"), ir.V("ox"), ir.V("co"), ir.Fn(FnActivation, value))),
	}}
	return []ir.Global{read, g.info.Activation.Func(ir.TF32), finish}
}

func (g conv) inBounds(y, x ir.Expr) ir.Expr {
	return ir.And(
		ir.InRange(y, ir.Int(0), ir.Int(g.info.InHeight)),
		ir.InRange(x, ir.Int(0), ir.Int(g.info.InWidth)),
	)
}

func (g conv) weight(c ir.Expr) ir.Expr {
	co := ir.V("co")
	if g.info.Depthwise {
		co = ir.V("q")
	}
	return ir.Fn(coords.Accessor("w"), ir.V("fy"), ir.V("fx"), c, co)
}

// reduce returns the statements adding one filter tap to acc. For a
// regular convolution the input channels are reduced in vec4 dot products
// with a vec3, vec2 or scalar remainder; src(c) reads channel c of the
// tap's input position. A depthwise tap reads the single channel src(ci).
func (g conv) reduce(src func(c ir.Expr) ir.Expr, depthwiseChannel ir.Expr) []ir.Stmt {
	acc := ir.V("acc")
	if g.info.Depthwise {
		return []ir.Stmt{ir.Accumulate(acc, ir.Mul(src(depthwiseChannel), g.weight(ir.V("ci"))))}
	}
	group := func(base ir.Expr, n int) ir.Expr {
		if n == 1 {
			return ir.Mul(src(base), g.weight(base))
		}
		xs := make([]ir.Expr, n)
		ws := make([]ir.Expr, n)
		for i := range n {
			c := ir.Add(base, ir.Int(i))
			xs[i], ws[i] = src(c), g.weight(c)
		}
		t := ir.Vec(ir.F32, n)
		return ir.Fn("dot", ir.Make(t, xs...), ir.Make(t, ws...))
	}
	cin := g.info.InChannels
	full := cin - cin%4
	var out []ir.Stmt
	if full > 0 {
		out = append(out, ir.LoopStep("c", ir.Int(0), ir.Int(full), ir.Int(4),
			ir.Accumulate(acc, group(ir.V("c"), 4)),
		))
	}
	if rem := cin % 4; rem > 0 {
		out = append(out, ir.Accumulate(acc, group(ir.Int(full), rem)))
	}
	return out
}

// taps loops over the filter window.
func (g conv) taps(body ...ir.Stmt) ir.Stmt {
	return ir.Loop("fy", ir.Int(0), ir.Int(g.info.FilterHeight),
		ir.Loop("fx", ir.Int(0), ir.Int(g.info.FilterWidth), body...),
	)
}

// channelOf binds ci and q, the input channel and the filter column of
// output channel co, for depthwise kernels.
func (g conv) channelOf() []ir.Stmt {
	if !g.info.Depthwise {
		return nil
	}
	return []ir.Stmt{
		ir.Let("ci", ir.Div(ir.V("co"), ir.Int(g.m))),
		ir.Let("q", ir.Mod(ir.V("co"), ir.Int(g.m))),
	}
}

func (g conv) direct() []ir.Stmt {
	iy := ir.Add(ir.Sub(ir.Mul(ir.V("oy"), ir.Int(g.info.StrideHeight)), ir.Int(g.info.PadTop)), ir.Mul(ir.V("fy"), ir.Int(g.info.DilationHeight)))
	ix := ir.Add(ir.Sub(ir.Mul(ir.V("ox"), ir.Int(g.info.StrideWidth)), ir.Int(g.info.PadLeft)), ir.Mul(ir.V("fx"), ir.Int(g.info.DilationWidth)))
	read := func(c ir.Expr) ir.Expr { return ir.Fn(fnReadX, ir.V("b"), ir.V("iy"), ir.V("ix"), c) }
	body := []ir.Stmt{ir.Let("iy", iy), ir.Let("ix", ix)}
	body = append(body, g.reduce(read, ir.V("ci"))...)
	return []ir.Stmt{g.taps(body...)}
}

func (g conv) finish() ir.Stmt {
	return ir.Do(ir.Fn(fnFinish, ir.V("b"), ir.V("oy"), ir.V("ox"), ir.V("co"), ir.V("acc")))
}

func (g conv) checkCache(floats int) error {
	if bytes := 4 * floats; bytes > MaxWorkgroupStorage {
		return reject(g.info.op(), "workgroup cache", fmt.Sprintf("%d bytes over the %d byte limit", bytes, MaxWorkgroupStorage))
	}
	return nil
}

// cached covers tw output columns and tc output channels of one output row
// per workgroup. The cache holds the filterHeight x cacheWidth x channels
// receptive field of the tile; positions outside the input are never
// written and stay zero.
func (g conv) cached(tw, tc int) (tiled, error) {
	in := g.info
	cw := (tw-1)*in.StrideWidth + (in.FilterWidth-1)*in.DilationWidth + 1
	cs := in.InChannels
	if in.Depthwise {
		cs = min(in.InChannels, (tc-1)/g.m+2)
	}
	total := in.FilterHeight * cw * cs
	if err := g.checkCache(total); err != nil {
		return tiled{}, err
	}
	threads := tw * tc
	idx := ir.V("idx")

	channel := ir.V("cc")
	fillCond := []ir.Expr{g.inBounds(ir.V("iy"), ir.V("ix"))}
	var head []ir.Stmt
	if in.Depthwise {
		head = append(head, ir.Let("ci0", ir.Div(ir.Mul(groupY, ir.Int(tc)), ir.Int(g.m))))
		channel = ir.Add(ir.V("ci0"), ir.V("cc"))
		fillCond = append(fillCond, ir.Lt(channel, ir.Int(in.InChannels)))
	}
	fill := ir.LoopStep("idx", ir.V("tid"), ir.Int(total), ir.Int(threads),
		ir.Let("cc", ir.Mod(idx, ir.Int(cs))),
		ir.Let("rest", ir.Div(idx, ir.Int(cs))),
		ir.Let("cx", ir.Mod(ir.V("rest"), ir.Int(cw))),
		ir.Let("ry", ir.Div(ir.V("rest"), ir.Int(cw))),
		ir.Let("iy", ir.Add(ir.Sub(ir.Mul(ir.V("oy"), ir.Int(in.StrideHeight)), ir.Int(in.PadTop)), ir.Mul(ir.V("ry"), ir.Int(in.DilationHeight)))),
		ir.Let("ix", ir.Add(ir.Sub(ir.Mul(ir.V("ox0"), ir.Int(in.StrideWidth)), ir.Int(in.PadLeft)), ir.V("cx"))),
		ir.When(ir.And(fillCond...),
			ir.Set(ir.At(ir.V("cache"), idx), ir.Fn(coords.Accessor("x"), ir.V("b"), ir.V("iy"), ir.V("ix"), channel)),
		),
	)

	base := ir.Mul(
		ir.Add(ir.Mul(ir.V("fy"), ir.Int(cw)), ir.Add(ir.Mul(localX, ir.Int(in.StrideWidth)), ir.Mul(ir.V("fx"), ir.Int(in.DilationWidth)))),
		ir.Int(cs),
	)
	read := func(c ir.Expr) ir.Expr { return ir.At(ir.V("cache"), ir.Add(ir.V("base"), c)) }
	compute := append(g.channelOf(), ir.Var("acc", ir.TF32, ir.Float(0)))
	tap := append([]ir.Stmt{ir.Let("base", base)}, g.reduce(read, ir.Sub(ir.V("ci"), ir.V("ci0")))...)
	compute = append(compute, g.taps(tap...), g.finish())

	body := []ir.Stmt{
		ir.Let("b", ir.Div(groupZ, ir.Int(in.OutHeight))),
		ir.Let("oy", ir.Mod(groupZ, ir.Int(in.OutHeight))),
		ir.Let("ox0", ir.Mul(groupX, ir.Int(tw))),
		ir.Let("tid", ir.Add(ir.Mul(localY, ir.Int(tw)), localX)),
	}
	body = append(body, head...)
	body = append(body,
		fill,
		ir.Barrier{},
		ir.Let("ox", ir.Add(ir.V("ox0"), localX)),
		ir.Let("co", ir.Add(ir.Mul(groupY, ir.Int(tc)), localY)),
		ir.When(ir.And(ir.Lt(ir.V("ox"), ir.Int(in.OutWidth)), ir.Lt(ir.V("co"), ir.Int(in.OutChannels))), compute...),
	)
	return tiled{
		workgroup: [3]int{tw, tc, 1},
		dispatch:  [3]int{ceilDiv(in.OutWidth, tw), ceilDiv(in.OutChannels, tc), in.Batch * in.OutHeight},
		tile:      [3]int{in.FilterHeight, cw, cs},
		wpt:       [2]int{1, 1},
		shared:    []ir.Global{ir.GlobalVar{Name: "cache", Space: ir.Workgroup, Type: ir.ArrayOf(ir.TF32, total)}},
		body:      body,
	}, nil
}

// block covers a bh x bw block of output positions for one output channel
// per workgroup. Each invocation caches the input channels at its own
// position of the block's input window; invocations whose receptive field
// fits inside that window read the cache, the others read storage.
func (g conv) block(bh, bw int) (tiled, error) {
	in := g.info
	cs := in.InChannels
	if in.Depthwise {
		cs = 1
	}
	if err := g.checkCache(bh * bw * cs); err != nil {
		return tiled{}, err
	}
	lx, ly := localX, localY
	slot := ir.Add(ir.Mul(ly, ir.Int(bw)), lx)

	var fill ir.Stmt
	load := func(c ir.Expr) ir.Expr {
		return ir.Fn(coords.Accessor("x"), ir.V("b"), ir.V("iy0"), ir.V("ix0"), c)
	}
	if in.Depthwise {
		fill = ir.Set(ir.At(ir.V("cache"), slot), load(ir.V("ci")))
	} else {
		fill = ir.Loop("c", ir.Int(0), ir.Int(cs),
			ir.Set(ir.At(ir.V("cache"), ir.Add(ir.Mul(slot, ir.Int(cs)), ir.V("c"))), load(ir.V("c"))),
		)
	}

	ry := ir.Add(ir.Mul(ly, ir.Int(in.StrideHeight)), ir.Mul(ir.V("fy"), ir.Int(in.DilationHeight)))
	rx := ir.Add(ir.Mul(lx, ir.Int(in.StrideWidth)), ir.Mul(ir.V("fx"), ir.Int(in.DilationWidth)))
	read := func(c ir.Expr) ir.Expr { return ir.At(ir.V("cache"), ir.Add(ir.V("base"), c)) }
	cachedTap := append([]ir.Stmt{ir.Let("base", ir.Mul(ir.Add(ir.Mul(ry, ir.Int(bw)), rx), ir.Int(cs)))}, g.reduce(read, ir.Int(0))...)
	interior := ir.And(
		ir.Lt(ir.Add(ir.Mul(ly, ir.Int(in.StrideHeight)), ir.Int((in.FilterHeight-1)*in.DilationHeight)), ir.Int(bh)),
		ir.Lt(ir.Add(ir.Mul(lx, ir.Int(in.StrideWidth)), ir.Int((in.FilterWidth-1)*in.DilationWidth)), ir.Int(bw)),
	)

	compute := []ir.Stmt{
		ir.Var("acc", ir.TF32, ir.Float(0)),
		ir.If{Cond: interior, Then: []ir.Stmt{g.taps(cachedTap...)}, Else: g.direct()},
		g.finish(),
	}
	body := []ir.Stmt{
		ir.Let("b", ir.Div(groupZ, ir.Int(in.OutChannels))),
		ir.Let("co", ir.Mod(groupZ, ir.Int(in.OutChannels))),
	}
	body = append(body, g.channelOf()...)
	body = append(body,
		ir.Let("oy0", ir.Mul(groupY, ir.Int(bh))),
		ir.Let("ox0", ir.Mul(groupX, ir.Int(bw))),
		ir.Let("iy0", ir.Add(ir.Sub(ir.Mul(ir.V("oy0"), ir.Int(in.StrideHeight)), ir.Int(in.PadTop)), ly)),
		ir.Let("ix0", ir.Add(ir.Sub(ir.Mul(ir.V("ox0"), ir.Int(in.StrideWidth)), ir.Int(in.PadLeft)), lx)),
		ir.When(g.inBounds(ir.V("iy0"), ir.V("ix0")), fill),
		ir.Barrier{},
		ir.Let("oy", ir.Add(ir.V("oy0"), ly)),
		ir.Let("ox", ir.Add(ir.V("ox0"), lx)),
		ir.When(ir.And(ir.Lt(ir.V("oy"), ir.Int(in.OutHeight)), ir.Lt(ir.V("ox"), ir.Int(in.OutWidth))), compute...),
	)
	return tiled{
		workgroup: [3]int{bw, bh, 1},
		dispatch:  [3]int{ceilDiv(in.OutWidth, bw), ceilDiv(in.OutHeight, bh), in.Batch * in.OutChannels},
		tile:      [3]int{bh, bw, cs},
		wpt:       [2]int{1, 1},
		shared:    []ir.Global{ir.GlobalVar{Name: "cache", Space: ir.Workgroup, Type: ir.ArrayOf(ir.TF32, bh*bw*cs)}},
		body:      body,
	}, nil
}

// naive decodes its output element from the invocation's texel.
func (g conv) naive(opts Options) tiled {
	out := shape.New(g.info.OutputShape(), false, opts.maxTextureSize())
	c := ir.V("coords")
	compute := []ir.Stmt{
		ir.Let("coords", ir.Fn(coords.FnOutputCoords)),
		ir.Let("b", coords.Component(c, 4, 0)),
		ir.Let("oy", coords.Component(c, 4, 1)),
		ir.Let("ox", coords.Component(c, 4, 2)),
		ir.Let("co", coords.Component(c, 4, 3)),
	}
	compute = append(compute, g.channelOf()...)
	compute = append(compute, ir.Var("acc", ir.TF32, ir.Float(0)))
	compute = append(compute, g.direct()...)
	compute = append(compute, g.finish())
	return tiled{
		workgroup: [3]int{naiveWorkgroup, naiveWorkgroup, 1},
		dispatch:  texelDispatch(out, naiveWorkgroup),
		wpt:       [2]int{1, 1},
		body: []ir.Stmt{
			ir.When(ir.Fn(coords.FnOutputValid, ir.Fn(coords.FnOutputTexel)), compute...),
		},
	}
}
