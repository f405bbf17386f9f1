package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/born-ml/gpgpu/program"
)

func runMatMul(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("matmul", flag.ContinueOnError)
	var c common
	c.register(fs)
	variant := fs.String("variant", "", "tiling variant: basic, wpt, wpt2d or blocked")
	batchA := fs.Int("batch-a", 1, "batches of A")
	batchB := fs.Int("batch-b", 1, "batches of B")
	m := fs.Int("m", 64, "rows of the output")
	k := fs.Int("k", 64, "shared dimension")
	n := fs.Int("n", 64, "columns of the output")
	ta := fs.Bool("ta", false, "A is stored transposed")
	tb := fs.Bool("tb", false, "B is stored transposed")
	bias := fs.Bool("bias", false, "add a bias of length n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, act, err := c.setup()
	if err != nil {
		return err
	}
	if *variant != "" {
		cfg.MatMul.Variant = program.MatMulVariant(*variant)
	}
	comp, err := program.NewCompiler(cfg)
	if err != nil {
		return err
	}
	info := program.MatMulInfo{
		BatchA: *batchA, BatchB: *batchB, M: *m, K: *k, N: *n,
		TransposeA: *ta, TransposeB: *tb, Bias: *bias, Activation: act,
	}
	prog, err := comp.MatMul(info)
	if err != nil {
		return err
	}
	return c.emit(stdout, prog, func(p *program.Program) (float64, error) {
		return verifyMatMul(p, info, c.seed)
	})
}

func runConv2D(args []string, stdout io.Writer) error {
	return runConv(args, stdout, false)
}

func runDepthwise(args []string, stdout io.Writer) error {
	return runConv(args, stdout, true)
}

func runConv(args []string, stdout io.Writer, depthwise bool) error {
	name := "conv2d"
	if depthwise {
		name = "depthwise"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var c common
	c.register(fs)
	variant := fs.String("variant", "", "convolution variant: cached, block or naive")
	batch := fs.Int("batch", 1, "batch size")
	height := fs.Int("h", 32, "input height")
	width := fs.Int("w", 32, "input width")
	cin := fs.Int("cin", 8, "input channels")
	fh := fs.Int("fh", 3, "filter height")
	fw := fs.Int("fw", 3, "filter width")
	cout := fs.Int("cout", 8, "output channels (conv2d)")
	mult := fs.Int("multiplier", 1, "channel multiplier (depthwise)")
	stride := fs.Int("stride", 1, "stride along both axes")
	dilation := fs.Int("dilation", 1, "dilation along both axes")
	pad := fs.String("pad", "same", "padding: same, valid or an explicit count")
	bias := fs.Bool("bias", false, "add a bias per output channel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, act, err := c.setup()
	if err != nil {
		return err
	}
	if *variant != "" {
		cfg.Conv.Variant = program.ConvVariant(*variant)
	}
	comp, err := program.NewCompiler(cfg)
	if err != nil {
		return err
	}

	padTop, padBottom, err := padding(*pad, *height, *fh, *stride, *dilation)
	if err != nil {
		return err
	}
	padLeft, padRight, err := padding(*pad, *width, *fw, *stride, *dilation)
	if err != nil {
		return err
	}
	info := program.Conv2DInfo{
		Batch:          *batch,
		InHeight:       *height,
		InWidth:        *width,
		InChannels:     *cin,
		FilterHeight:   *fh,
		FilterWidth:    *fw,
		OutHeight:      program.ConvOutputSize(*height, *fh, *stride, *dilation, padTop, padBottom),
		OutWidth:       program.ConvOutputSize(*width, *fw, *stride, *dilation, padLeft, padRight),
		OutChannels:    *cout,
		StrideHeight:   *stride,
		StrideWidth:    *stride,
		DilationHeight: *dilation,
		DilationWidth:  *dilation,
		PadTop:         padTop,
		PadLeft:        padLeft,
		Bias:           *bias,
		Activation:     act,
	}
	var prog *program.Program
	if depthwise {
		info.OutChannels = *cin * *mult
		info.ChannelMultiplier = *mult
		prog, err = comp.DepthwiseConv2D(info)
		info.Depthwise = true
	} else {
		prog, err = comp.Conv2D(info)
	}
	if err != nil {
		return err
	}
	return c.emit(stdout, prog, func(p *program.Program) (float64, error) {
		return verifyConv(p, info, c.seed)
	})
}

func runBinary(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("binary", flag.ContinueOnError)
	var c common
	c.register(fs)
	op := fs.String("op", "add", "operator: add, sub, mul, max or min")
	a := fs.String("a", "4,4", "shape of A, comma separated")
	b := fs.String("b", "4", "shape of B, comma separated")
	packed := fs.Bool("packed", false, "packed storage")
	sampling := fs.Bool("sampling", false, "sampling access (fragment stage)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, act, err := c.setup()
	if err != nil {
		return err
	}
	comp, err := program.NewCompiler(cfg)
	if err != nil {
		return err
	}
	as, err := parseShape(*a)
	if err != nil {
		return err
	}
	bs, err := parseShape(*b)
	if err != nil {
		return err
	}
	mode := program.Mode{Access: program.Indexed, Packed: *packed}
	if *sampling {
		mode.Access = program.Sampling
	}
	prog, err := comp.Binary(program.BinaryOp(*op),
		program.NewInfo(as, *packed, cfg.MaxTextureSize),
		program.NewInfo(bs, *packed, cfg.MaxTextureSize),
		mode, act)
	if err != nil {
		return err
	}
	return c.emit(stdout, prog, func(p *program.Program) (float64, error) {
		return verifyBinary(p, program.BinaryOp(*op), as, bs, act, c.seed)
	})
}

// padding returns the padding before and after an axis. "same" keeps
// ceil(in/stride) outputs with the extra row after.
func padding(mode string, in, filter, stride, dilation int) (before, after int, err error) {
	switch mode {
	case "valid":
		return 0, 0, nil
	case "same":
		out := (in + stride - 1) / stride
		total := max((out-1)*stride+(filter-1)*dilation+1-in, 0)
		return total / 2, total - total/2, nil
	}
	p, err := strconv.Atoi(mode)
	if err != nil || p < 0 {
		return 0, 0, fmt.Errorf("bad padding %q", mode)
	}
	return p, p, nil
}

func parseShape(s string) (program.Shape, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return program.Shape{}, nil
	}
	parts := strings.Split(s, ",")
	out := make(program.Shape, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d < 1 {
			return nil, fmt.Errorf("bad shape %q", s)
		}
		out[i] = d
	}
	return out, nil
}
