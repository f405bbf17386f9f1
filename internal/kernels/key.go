package kernels

import (
	"fmt"
	"strings"

	"github.com/born-ml/gpgpu/internal/config"
	"github.com/born-ml/gpgpu/internal/coords"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Keys identify generated programs. Two requests with equal keys produce
// identical programs, so keys are computed before generation and used to
// look programs up in a Cache.

// MatMulKey returns the key of MatMul(info, tiling, opts).
func MatMulKey(info MatMulInfo, tiling config.MatMul, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "matmul:%s:%d,%d:%dx%dx%d:t%d%d:bias%d:%s",
		tiling.Variant, info.BatchA, info.BatchB, info.M, info.K, info.N,
		b2i(info.TransposeA), b2i(info.TransposeB), b2i(info.Bias), info.Activation)
	switch tiling.Variant {
	case config.MatMulBlocked:
		fmt.Fprintf(&b, ":tile%dx%dx%d:wpt%dx%d",
			tiling.TileM, tiling.TileN, tiling.TileK, tiling.WorkPerThreadM, tiling.WorkPerThreadN)
	case config.MatMulBasic:
		fmt.Fprintf(&b, ":tile%d", tiling.TileSize)
	default:
		fmt.Fprintf(&b, ":tile%d:wpt%d", tiling.TileSize, tiling.WorkPerThread)
	}
	return b.String() + ":" + opts.keySuffix()
}

// Conv2DKey returns the key of Conv2D(info, tiling, opts).
func Conv2DKey(info Conv2DInfo, tiling config.Conv, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s:%v:%v:o%dx%d:s%dx%d:d%dx%d:p%dx%d:bias%d:%s",
		info.op(), tiling.Variant, info.InputShape(), info.FilterShape(),
		info.OutHeight, info.OutWidth, info.StrideHeight, info.StrideWidth,
		info.DilationHeight, info.DilationWidth, info.PadTop, info.PadLeft,
		b2i(info.Bias), info.Activation)
	switch tiling.Variant {
	case config.ConvCached:
		fmt.Fprintf(&b, ":tile%dx%d", tiling.TileWidth, tiling.TileChannels)
	case config.ConvBlock:
		fmt.Fprintf(&b, ":block%dx%d", tiling.BlockHeight, tiling.BlockWidth)
	}
	return b.String() + ":" + opts.keySuffix()
}

// BinaryKey returns the key of Binary(op, a, b, mode, act, opts).
func BinaryKey(op BinaryOp, a, b shape.Info, mode coords.Mode, act Activation, opts Options) string {
	return fmt.Sprintf("binary:%s:%s:%s:%s:%s:%s",
		op, a, b, modeKey(mode), act, opts.keySuffix())
}

// UnaryKey returns the key of Unary(act, x, mode, opts).
func UnaryKey(act Activation, x shape.Info, mode coords.Mode, opts Options) string {
	return fmt.Sprintf("unary:%s:%s:%s:%s", act, x, modeKey(mode), opts.keySuffix())
}

func modeKey(m coords.Mode) string {
	s := "indexed"
	if m.Access == coords.Sampling {
		s = "sampling"
	}
	if m.Packed {
		s += "+packed"
	}
	return s
}
