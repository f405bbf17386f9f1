package kernels

import (
	"fmt"

	"github.com/born-ml/gpgpu/internal/config"
	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/shape"
)

// MatMulInfo describes C[b] = act(op(A[b]) @ op(B[b]) + bias).
//
// A is [BatchA, M, K] ([BatchA, K, M] when TransposeA), B is [BatchB, K, N]
// ([BatchB, N, K] when TransposeB). A batch of 1 broadcasts against the
// other operand. The bias is a vector of N values added to every row.
type MatMulInfo struct {
	BatchA, BatchB int
	M, K, N        int
	TransposeA     bool
	TransposeB     bool
	Bias           bool
	Activation     Activation
}

// Batch returns the output batch size.
func (m MatMulInfo) Batch() int { return max(m.BatchA, m.BatchB) }

// ShapeA returns the logical shape of A.
func (m MatMulInfo) ShapeA() shape.Shape {
	if m.TransposeA {
		return shape.Shape{m.BatchA, m.K, m.M}
	}
	return shape.Shape{m.BatchA, m.M, m.K}
}

// ShapeB returns the logical shape of B.
func (m MatMulInfo) ShapeB() shape.Shape {
	if m.TransposeB {
		return shape.Shape{m.BatchB, m.N, m.K}
	}
	return shape.Shape{m.BatchB, m.K, m.N}
}

// OutputShape returns [Batch, M, N].
func (m MatMulInfo) OutputShape() shape.Shape {
	return shape.Shape{m.Batch(), m.M, m.N}
}

func (m MatMulInfo) validate() error {
	if m.BatchA < 1 || m.BatchB < 1 || m.M < 1 || m.K < 1 || m.N < 1 {
		return fmt.Errorf("invalid dimensions batch %d/%d, M %d, K %d, N %d", m.BatchA, m.BatchB, m.M, m.K, m.N)
	}
	if m.BatchA != m.BatchB && m.BatchA != 1 && m.BatchB != 1 {
		return fmt.Errorf("batch %d does not broadcast against %d", m.BatchA, m.BatchB)
	}
	return nil
}

// Swizzles of the 2x2 block product per (TransposeA, TransposeB):
// C += a.s[0] * b.s[1] + a.s[2] * b.s[3].
var blockSwizzles = map[[2]bool][4]string{
	{false, false}: {"xxzz", "xyxy", "yyww", "zwzw"},
	{true, false}:  {"xxyy", "xyxy", "zzww", "zwzw"},
	{false, true}:  {"xxzz", "xzxz", "yyww", "ywyw"},
	{true, true}:   {"xxyy", "xzxz", "zzww", "ywyw"},
}

// Matmul helper names.
const (
	fnLoadA       = "loadA"
	fnLoadB       = "loadB"
	fnMulBlock    = "mulBlock"
	fnWriteOutput = "writeOutput"
)

// matmul holds the packed dimensions of one generation. All tile and
// work-per-thread sizes count texels: one texel is a 2x2 block.
type matmul struct {
	info       MatMulInfo
	mp, kp, np int
}

// MatMul generates a tiled matrix multiply over packed operands in indexed
// mode. Each invocation accumulates 2x2 output blocks; tiles of A and B are
// staged in workgroup memory between two barriers per step along K.
//
// Bias is supported by the basic variant and by wpt with WorkPerThread 1.
// Other variants reject it with an UnsupportedFeatureError.
func MatMul(info MatMulInfo, tiling config.MatMul, opts Options) (*shader.Program, error) {
	if err := info.validate(); err != nil {
		return nil, fmt.Errorf("kernels: matmul: %w", err)
	}
	if err := tiling.Validate(); err != nil {
		return nil, fmt.Errorf("kernels: matmul: %w", err)
	}
	if info.Bias && !biasSupported(tiling) {
		return nil, reject("matmul", "bias", "matmul variant "+string(tiling.Variant))
	}

	g := matmul{
		info: info,
		mp:   ceilDiv(info.M, 2),
		kp:   ceilDiv(info.K, 2),
		np:   ceilDiv(info.N, 2),
	}
	maxTex := opts.maxTextureSize()
	inputs := []shape.Input{
		{Name: "A", Shape: shape.New(info.ShapeA(), true, maxTex)},
		{Name: "B", Shape: shape.New(info.ShapeB(), true, maxTex)},
	}
	if info.Bias {
		inputs = append(inputs, shape.Input{Name: "bias", Shape: shape.New(shape.Shape{info.N}, true, maxTex)})
	}

	var v tiled
	switch tiling.Variant {
	case config.MatMulBasic:
		v = g.basic(tiling.TileSize)
	case config.MatMulWPT:
		v = g.wpt(tiling.TileSize, tiling.WorkPerThread)
	case config.MatMulWPT2D:
		v = g.wpt2d(tiling.TileSize, tiling.WorkPerThread)
	case config.MatMulBlocked:
		v = g.blocked(tiling)
	}

	body := append(v.shared, g.helpers()...)
	body = append(body, &ir.EntryPoint{Stage: ir.Compute, WorkgroupSize: v.workgroup, Body: v.body})
	return build(shader.Spec{
		Name:          "matmul_" + string(tiling.Variant),
		Inputs:        inputs,
		Output:        shape.New(info.OutputShape(), true, maxTex),
		Mode:          coords.Mode{Packed: true, Access: coords.Indexed},
		WorkgroupSize: v.workgroup,
		Dispatch:      v.dispatch,
		WorkPerThread: v.wpt,
		TileSize:      v.tile,
		Body:          body,
		Key:           MatMulKey(info, tiling, opts),
	}, opts)
}

func biasSupported(tiling config.MatMul) bool {
	switch tiling.Variant {
	case config.MatMulBasic:
		return true
	case config.MatMulWPT:
		return tiling.WorkPerThread == 1
	}
	return false
}

// tiled is the variant-specific part of a tiled program.
type tiled struct {
	workgroup [3]int
	dispatch  [3]int
	tile      [3]int
	wpt       [2]int
	shared    []ir.Global
	body      []ir.Stmt
}

func (g matmul) batchOf(n int) ir.Expr {
	if n == 1 {
		return ir.Int(0)
	}
	return ir.V("b")
}

// helpers returns loadA, loadB, mulBlock, activation and writeOutput.
//
//	loadA(b, row, col)   texel (row, col) of op(A), zero outside
//	loadB(b, row, col)   texel (row, col) of op(B), zero outside
//	mulBlock(a, b)       2x2 block product
//	writeOutput(b, row, col, value)
//	                     bias, activation and padding mask, then store
//	                     when in range
func (g matmul) helpers() []ir.Global {
	row, col := ir.V("row"), ir.V("col")
	two := ir.Int(2)
	load := func(name, input string, rows, cols, batch int, transpose bool) *ir.Function {
		r, c := ir.Mul(two, row), ir.Mul(two, col)
		if transpose {
			r, c = c, r
		}
		return ir.Func(name, ir.Params("b", "row", "col"), ir.TVec4F,
			ir.When(ir.And(ir.Lt(row, ir.Int(rows)), ir.Lt(col, ir.Int(cols))),
				ir.Ret(ir.Fn(coords.Accessor(input), g.batchOf(batch), r, c)),
			),
			ir.Ret(zeroVec4),
		)
	}

	sw := blockSwizzles[[2]bool{g.info.TransposeA, g.info.TransposeB}]
	a, b := ir.V("a"), ir.V("b")
	mul := ir.Func(fnMulBlock, []ir.Param{{Name: "a", Type: ir.TVec4F}, {Name: "b", Type: ir.TVec4F}}, ir.TVec4F,
		ir.Ret(ir.Add(
			ir.Mul(ir.Swz(a, sw[0]), ir.Swz(b, sw[1])),
			ir.Mul(ir.Swz(a, sw[2]), ir.Swz(b, sw[3])),
		)),
	)

	value := ir.V("value")
	if g.info.Bias {
		value = ir.Add(value, ir.Swz(ir.Fn(coords.Accessor("bias"), ir.Mul(two, col)), "xyxy"))
	}
	params := append(ir.Params("b", "row", "col"), ir.Param{Name: "value", Type: ir.TVec4F})
	write := &ir.Function{Name: fnWriteOutput, Params: params, Body: []ir.Stmt{
		ir.When(ir.And(ir.Lt(row, ir.Int(g.mp)), ir.Lt(col, ir.Int(g.np))),
			ir.Do(ir.Fn(coords.FnSetOutput, ir.V("b"), ir.Mul(two, row), ir.Mul(two, col),
				padMask(ir.Fn(FnActivation, value), ir.Mul(two, row), ir.Mul(two, col), g.info.M, g.info.N))),
		),
	}}

	return []ir.Global{
		load(fnLoadA, "A", g.mp, g.kp, g.info.BatchA, g.info.TransposeA),
		load(fnLoadB, "B", g.kp, g.np, g.info.BatchB, g.info.TransposeB),
		mul,
		g.info.Activation.Func(ir.TVec4F),
		write,
	}
}

// kBound returns the number of valid shared indices in tile t of numTiles,
// switching to the remainder on the last tile when tile does not divide kp.
func (g matmul) kBound(tile int) []ir.Stmt {
	numTiles := ceilDiv(g.kp, tile)
	rem := g.kp % tile
	switch {
	case rem == 0:
		return []ir.Stmt{ir.Let("kEnd", ir.Int(tile))}
	case numTiles == 1:
		return []ir.Stmt{ir.Let("kEnd", ir.Int(rem))}
	}
	return []ir.Stmt{ir.Let("kEnd", ir.Fn("select", ir.Int(tile), ir.Int(rem), ir.Eq(ir.V("t"), ir.Int(numTiles-1))))}
}

func sharedTile(name string, n int) ir.Global {
	return ir.GlobalVar{Name: name, Space: ir.Workgroup, Type: ir.ArrayOf(ir.TVec4F, n)}
}

// tileLoop wraps load and compute statements into the loop over K tiles.
func (g matmul) tileLoop(tile int, load, compute []ir.Stmt) ir.Stmt {
	body := append([]ir.Stmt{}, load...)
	body = append(body, ir.Barrier{})
	body = append(body, g.kBound(tile)...)
	body = append(body, compute...)
	body = append(body, ir.Barrier{})
	return ir.Loop("t", ir.Int(0), ir.Int(ceilDiv(g.kp, tile)), body...)
}

func (g matmul) mulAcc(acc, a, b ir.Expr) ir.Stmt {
	return ir.Accumulate(acc, ir.Fn(fnMulBlock, a, b))
}

func (g matmul) write(row, col, value ir.Expr) ir.Stmt {
	return ir.Do(ir.Fn(fnWriteOutput, ir.V("b"), row, col, value))
}

// basic: a TS x TS workgroup computes a TS x TS tile of output texels, one
// per invocation.
func (g matmul) basic(ts int) tiled {
	lx, ly, t, k := localX, localY, ir.V("t"), ir.V("k")
	at := func(r, c ir.Expr) ir.Expr { return ir.Add(ir.Mul(r, ir.Int(ts)), c) }
	kt := ir.Mul(t, ir.Int(ts))

	load := []ir.Stmt{
		ir.Set(ir.At(ir.V("tileA"), at(ly, lx)), ir.Fn(fnLoadA, ir.V("b"), ir.V("row"), ir.Add(kt, lx))),
		ir.Set(ir.At(ir.V("tileB"), at(ly, lx)), ir.Fn(fnLoadB, ir.V("b"), ir.Add(kt, ly), ir.V("col"))),
	}
	compute := []ir.Stmt{
		ir.Loop("k", ir.Int(0), ir.V("kEnd"),
			g.mulAcc(ir.V("acc"), ir.At(ir.V("tileA"), at(ly, k)), ir.At(ir.V("tileB"), at(k, lx))),
		),
	}
	body := []ir.Stmt{
		ir.Let("row", ir.Add(ir.Mul(groupY, ir.Int(ts)), ly)),
		ir.Let("col", ir.Add(ir.Mul(groupX, ir.Int(ts)), lx)),
		ir.Let("b", groupZ),
		ir.Var("acc", ir.TVec4F, zeroVec4),
		g.tileLoop(ts, load, compute),
		g.write(ir.V("row"), ir.V("col"), ir.V("acc")),
	}
	return tiled{
		workgroup: [3]int{ts, ts, 1},
		dispatch:  [3]int{ceilDiv(g.np, ts), ceilDiv(g.mp, ts), g.info.Batch()},
		tile:      [3]int{ts, ts, ts},
		wpt:       [2]int{1, 1},
		shared:    []ir.Global{sharedTile("tileA", ts*ts), sharedTile("tileB", ts*ts)},
		body:      body,
	}
}

// wpt: a TS x TS/WPT workgroup covers a TS x TS tile; every invocation
// computes WPT rows spaced TS/WPT apart.
func (g matmul) wpt(ts, wpt int) tiled {
	rts := ts / wpt
	lx, ly, t, k, w := localX, localY, ir.V("t"), ir.V("k"), ir.V("w")
	at := func(r, c ir.Expr) ir.Expr { return ir.Add(ir.Mul(r, ir.Int(ts)), c) }
	kt := ir.Mul(t, ir.Int(ts))
	rowOf := ir.Add(ly, ir.Mul(w, ir.Int(rts)))

	load := []ir.Stmt{
		ir.Loop("w", ir.Int(0), ir.Int(wpt),
			ir.Let("r", rowOf),
			ir.Set(ir.At(ir.V("tileA"), at(ir.V("r"), lx)),
				ir.Fn(fnLoadA, ir.V("b"), ir.Add(ir.V("tileRow"), ir.V("r")), ir.Add(kt, lx))),
			ir.Set(ir.At(ir.V("tileB"), at(ir.V("r"), lx)),
				ir.Fn(fnLoadB, ir.V("b"), ir.Add(kt, ir.V("r")), ir.V("col"))),
		),
	}
	compute := []ir.Stmt{
		ir.Loop("k", ir.Int(0), ir.V("kEnd"),
			ir.Let("bv", ir.At(ir.V("tileB"), at(k, lx))),
			ir.Loop("w", ir.Int(0), ir.Int(wpt),
				g.mulAcc(ir.At(ir.V("acc"), w), ir.At(ir.V("tileA"), at(rowOf, k)), ir.V("bv")),
			),
		),
	}
	body := []ir.Stmt{
		ir.Let("tileRow", ir.Mul(groupY, ir.Int(ts))),
		ir.Let("col", ir.Add(ir.Mul(groupX, ir.Int(ts)), lx)),
		ir.Let("b", groupZ),
		ir.Var("acc", ir.ArrayOf(ir.TVec4F, wpt), nil),
		g.tileLoop(ts, load, compute),
		ir.Loop("w", ir.Int(0), ir.Int(wpt),
			g.write(ir.Add(ir.V("tileRow"), rowOf), ir.V("col"), ir.At(ir.V("acc"), w)),
		),
	}
	return tiled{
		workgroup: [3]int{ts, rts, 1},
		dispatch:  [3]int{ceilDiv(g.np, ts), ceilDiv(g.mp, ts), g.info.Batch()},
		tile:      [3]int{ts, ts, ts},
		wpt:       [2]int{wpt, 1},
		shared:    []ir.Global{sharedTile("tileA", ts*ts), sharedTile("tileB", ts*ts)},
		body:      body,
	}
}

// wpt2d: a TS/WPT x TS/WPT workgroup covers a TS x TS tile; every
// invocation computes a WPT x WPT grid of texels spaced TS/WPT apart.
func (g matmul) wpt2d(ts, wpt int) tiled {
	rts := ts / wpt
	lx, ly, t, k := localX, localY, ir.V("t"), ir.V("k")
	wr, wc := ir.V("wr"), ir.V("wc")
	at := func(r, c ir.Expr) ir.Expr { return ir.Add(ir.Mul(r, ir.Int(ts)), c) }
	kt := ir.Mul(t, ir.Int(ts))
	rowOf := ir.Add(ly, ir.Mul(wr, ir.Int(rts)))
	colOf := ir.Add(lx, ir.Mul(wc, ir.Int(rts)))
	accAt := ir.At(ir.V("acc"), ir.Add(ir.Mul(wr, ir.Int(wpt)), wc))

	load := []ir.Stmt{
		ir.Loop("wr", ir.Int(0), ir.Int(wpt),
			ir.Loop("wc", ir.Int(0), ir.Int(wpt),
				ir.Let("r", rowOf),
				ir.Let("c", colOf),
				ir.Set(ir.At(ir.V("tileA"), at(ir.V("r"), ir.V("c"))),
					ir.Fn(fnLoadA, ir.V("b"), ir.Add(ir.V("tileRow"), ir.V("r")), ir.Add(kt, ir.V("c")))),
				ir.Set(ir.At(ir.V("tileB"), at(ir.V("r"), ir.V("c"))),
					ir.Fn(fnLoadB, ir.V("b"), ir.Add(kt, ir.V("r")), ir.Add(ir.V("tileCol"), ir.V("c")))),
			),
		),
	}
	compute := []ir.Stmt{
		ir.Loop("k", ir.Int(0), ir.V("kEnd"),
			ir.Loop("wr", ir.Int(0), ir.Int(wpt),
				ir.Let("a", ir.At(ir.V("tileA"), at(rowOf, k))),
				ir.Loop("wc", ir.Int(0), ir.Int(wpt),
					g.mulAcc(accAt, ir.V("a"), ir.At(ir.V("tileB"), at(k, colOf))),
				),
			),
		),
	}
	body := []ir.Stmt{
		ir.Let("tileRow", ir.Mul(groupY, ir.Int(ts))),
		ir.Let("tileCol", ir.Mul(groupX, ir.Int(ts))),
		ir.Let("b", groupZ),
		ir.Var("acc", ir.ArrayOf(ir.TVec4F, wpt*wpt), nil),
		g.tileLoop(ts, load, compute),
		ir.Loop("wr", ir.Int(0), ir.Int(wpt),
			ir.Loop("wc", ir.Int(0), ir.Int(wpt),
				g.write(ir.Add(ir.V("tileRow"), rowOf), ir.Add(ir.V("tileCol"), colOf), accAt),
			),
		),
	}
	return tiled{
		workgroup: [3]int{rts, rts, 1},
		dispatch:  [3]int{ceilDiv(g.np, ts), ceilDiv(g.mp, ts), g.info.Batch()},
		tile:      [3]int{ts, ts, ts},
		wpt:       [2]int{wpt, wpt},
		shared:    []ir.Global{sharedTile("tileA", ts*ts), sharedTile("tileB", ts*ts)},
		body:      body,
	}
}

// blocked: independent TSM x TSN output tiles with TSK deep shared tiles.
// The TSM/WPTM x TSN/WPTN invocations fill the shared tiles cooperatively,
// LPTA cells of A and LPTB cells of B each.
func (g matmul) blocked(c config.MatMul) tiled {
	tsm, tsn, tsk := c.TileM, c.TileN, c.TileK
	rtsm, rtsn := tsm/c.WorkPerThreadM, tsn/c.WorkPerThreadN
	threads := rtsm * rtsn
	lpta, lptb := tsm*tsk/threads, tsk*tsn/threads
	lx, ly, t, k, l := localX, localY, ir.V("t"), ir.V("k"), ir.V("l")
	wm, wn := ir.V("wm"), ir.V("wn")
	idx := ir.V("idx")
	kt := ir.Mul(t, ir.Int(tsk))
	rowOf := ir.Add(ly, ir.Mul(wm, ir.Int(rtsm)))
	colOf := ir.Add(lx, ir.Mul(wn, ir.Int(rtsn)))
	accAt := ir.At(ir.V("acc"), ir.Add(ir.Mul(wm, ir.Int(c.WorkPerThreadN)), wn))

	load := []ir.Stmt{
		ir.Loop("l", ir.Int(0), ir.Int(lpta),
			ir.Let("idx", ir.Add(ir.Mul(l, ir.Int(threads)), ir.V("tid"))),
			ir.Set(ir.At(ir.V("tileA"), idx), ir.Fn(fnLoadA, ir.V("b"),
				ir.Add(ir.V("tileRow"), ir.Div(idx, ir.Int(tsk))),
				ir.Add(kt, ir.Mod(idx, ir.Int(tsk))))),
		),
		ir.Loop("l", ir.Int(0), ir.Int(lptb),
			ir.Let("idx", ir.Add(ir.Mul(l, ir.Int(threads)), ir.V("tid"))),
			ir.Set(ir.At(ir.V("tileB"), idx), ir.Fn(fnLoadB, ir.V("b"),
				ir.Add(kt, ir.Div(idx, ir.Int(tsn))),
				ir.Add(ir.V("tileCol"), ir.Mod(idx, ir.Int(tsn))))),
		),
	}
	compute := []ir.Stmt{
		ir.Loop("k", ir.Int(0), ir.V("kEnd"),
			ir.Loop("wm", ir.Int(0), ir.Int(c.WorkPerThreadM),
				ir.Let("a", ir.At(ir.V("tileA"), ir.Add(ir.Mul(rowOf, ir.Int(tsk)), k))),
				ir.Loop("wn", ir.Int(0), ir.Int(c.WorkPerThreadN),
					g.mulAcc(accAt, ir.V("a"), ir.At(ir.V("tileB"), ir.Add(ir.Mul(k, ir.Int(tsn)), colOf))),
				),
			),
		),
	}
	body := []ir.Stmt{
		ir.Let("tileRow", ir.Mul(groupY, ir.Int(tsm))),
		ir.Let("tileCol", ir.Mul(groupX, ir.Int(tsn))),
		ir.Let("b", groupZ),
		ir.Let("tid", ir.Add(ir.Mul(ly, ir.Int(rtsn)), lx)),
		ir.Var("acc", ir.ArrayOf(ir.TVec4F, c.WorkPerThreadM*c.WorkPerThreadN), nil),
		g.tileLoop(tsk, load, compute),
		ir.Loop("wm", ir.Int(0), ir.Int(c.WorkPerThreadM),
			ir.Loop("wn", ir.Int(0), ir.Int(c.WorkPerThreadN),
				g.write(ir.Add(ir.V("tileRow"), rowOf), ir.Add(ir.V("tileCol"), colOf), accAt),
			),
		),
	}
	return tiled{
		workgroup: [3]int{rtsn, rtsm, 1},
		dispatch:  [3]int{ceilDiv(g.np, tsn), ceilDiv(g.mp, tsm), g.info.Batch()},
		tile:      [3]int{tsm, tsn, tsk},
		wpt:       [2]int{c.WorkPerThreadM, c.WorkPerThreadN},
		shared:    []ir.Global{sharedTile("tileA", tsm*tsk), sharedTile("tileB", tsk*tsn)},
		body:      body,
	}
}
