// Package reference computes operator results on the host in row-major
// logical layout. Kernel tests compare simulated programs against it.
package reference

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/gpgpu/internal/kernels"
	"github.com/born-ml/gpgpu/internal/parallel"
	"github.com/born-ml/gpgpu/internal/shape"
)

var cfg = parallel.DefaultConfig()

// MatMul returns act(op(A) @ op(B) + bias) as [Batch, M, N]. bias may be
// nil when info.Bias is false.
func MatMul(info kernels.MatMulInfo, a, b, bias []float32) []float32 {
	m, k, n := info.M, info.K, info.N
	out := make([]float32, info.Batch()*m*n)
	parallel.ForGrid(info.Batch(), m, func(bi, i int) {
		ab, bb := bi%info.BatchA, bi%info.BatchB
		for j := 0; j < n; j++ {
			var sum float32
			for l := 0; l < k; l++ {
				sum += at(a, ab, i, l, m, k, info.TransposeA) * at(b, bb, l, j, k, n, info.TransposeB)
			}
			if info.Bias {
				sum += bias[j]
			}
			out[(bi*m+i)*n+j] = info.Activation.Eval(sum)
		}
	}, cfg)
	return out
}

// at reads element (r, c) of op(X) for batch bi, where op(X) is rows x cols.
func at(x []float32, bi, r, c, rows, cols int, transpose bool) float32 {
	if transpose {
		return x[(bi*cols+c)*rows+r]
	}
	return x[(bi*rows+r)*cols+c]
}

// MatMulDense computes the same product as MatMul in float64 with gonum.
func MatMulDense(info kernels.MatMulInfo, a, b, bias []float32) []float32 {
	m, k, n := info.M, info.K, info.N
	out := make([]float32, 0, info.Batch()*m*n)
	for bi := range info.Batch() {
		ma := operand(a, bi%info.BatchA, m, k, info.TransposeA)
		mb := operand(b, bi%info.BatchB, k, n, info.TransposeB)
		var c mat.Dense
		c.Mul(ma, mb)
		for i := range m {
			for j := range n {
				v := c.At(i, j)
				if info.Bias {
					v += float64(bias[j])
				}
				out = append(out, info.Activation.Eval(float32(v)))
			}
		}
	}
	return out
}

func operand(x []float32, bi, rows, cols int, transpose bool) mat.Matrix {
	size := rows * cols
	data := toFloat64(x[bi*size : (bi+1)*size])
	if transpose {
		return mat.NewDense(cols, rows, data).T()
	}
	return mat.NewDense(rows, cols, data)
}

// Conv2D returns the NHWC convolution of x with the HWIO filter w using
// im2col: every output position becomes a row of its receptive field in
// (fy, fx, ci) order, so the product with w flattened to
// [FilterHeight*FilterWidth*InChannels, OutChannels] is the output.
func Conv2D(info kernels.Conv2DInfo, x, w, bias []float32) []float32 {
	if info.Depthwise {
		return DepthwiseConv2D(info, x, w, bias)
	}
	rows := info.OutHeight * info.OutWidth
	width := info.FilterHeight * info.FilterWidth * info.InChannels
	filter := mat.NewDense(width, info.OutChannels, toFloat64(w))

	out := make([]float32, 0, info.Batch*rows*info.OutChannels)
	for b := range info.Batch {
		cols := mat.NewDense(rows, width, im2col(info, x, b))
		var res mat.Dense
		res.Mul(cols, filter)
		for r := range rows {
			for co := range info.OutChannels {
				v := float32(res.At(r, co))
				if info.Bias {
					v += bias[co]
				}
				out = append(out, info.Activation.Eval(v))
			}
		}
	}
	return out
}

func im2col(info kernels.Conv2DInfo, x []float32, b int) []float64 {
	width := info.FilterHeight * info.FilterWidth * info.InChannels
	buf := make([]float64, info.OutHeight*info.OutWidth*width)
	parallel.ForGrid(info.OutHeight, info.OutWidth, func(oy, ox int) {
		idx := (oy*info.OutWidth + ox) * width
		for fy := range info.FilterHeight {
			for fx := range info.FilterWidth {
				iy := oy*info.StrideHeight - info.PadTop + fy*info.DilationHeight
				ix := ox*info.StrideWidth - info.PadLeft + fx*info.DilationWidth
				for ci := range info.InChannels {
					if iy >= 0 && iy < info.InHeight && ix >= 0 && ix < info.InWidth {
						buf[idx] = float64(x[((b*info.InHeight+iy)*info.InWidth+ix)*info.InChannels+ci])
					}
					idx++
				}
			}
		}
	}, cfg)
	return buf
}

// DepthwiseConv2D returns the NHWC depthwise convolution of x with the HWCM
// filter w. Output channel co reads input channel co / M and filter
// column co % M.
func DepthwiseConv2D(info kernels.Conv2DInfo, x, w, bias []float32) []float32 {
	mult := max(info.ChannelMultiplier, 1)
	out := make([]float32, info.Batch*info.OutHeight*info.OutWidth*info.OutChannels)
	parallel.ForGrid(info.Batch, info.OutHeight, func(b, oy int) {
		for ox := range info.OutWidth {
			for co := range info.OutChannels {
				ci, q := co/mult, co%mult
				var sum float32
				for fy := range info.FilterHeight {
					for fx := range info.FilterWidth {
						iy := oy*info.StrideHeight - info.PadTop + fy*info.DilationHeight
						ix := ox*info.StrideWidth - info.PadLeft + fx*info.DilationWidth
						if iy < 0 || iy >= info.InHeight || ix < 0 || ix >= info.InWidth {
							continue
						}
						sum += x[((b*info.InHeight+iy)*info.InWidth+ix)*info.InChannels+ci] *
							w[((fy*info.FilterWidth+fx)*info.InChannels+ci)*mult+q]
					}
				}
				if info.Bias {
					sum += bias[co]
				}
				out[((b*info.OutHeight+oy)*info.OutWidth+ox)*info.OutChannels+co] = info.Activation.Eval(sum)
			}
		}
	}, cfg)
	return out
}

// Binary returns act(a op b) broadcast to the common shape, along with
// that shape.
func Binary(op kernels.BinaryOp, a []float32, as shape.Shape, b []float32, bs shape.Shape, act kernels.Activation) ([]float32, shape.Shape, error) {
	outShape, _, err := shape.BroadcastShapes(as, bs)
	if err != nil {
		return nil, nil, fmt.Errorf("reference: %w", err)
	}
	out := make([]float32, outShape.NumElements())
	for i := range out {
		idx := outShape.Unravel(i)
		out[i] = act.Eval(op.Eval(a[broadcastIndex(idx, as)], b[broadcastIndex(idx, bs)]))
	}
	return out, outShape, nil
}

// Unary returns act(x).
func Unary(act kernels.Activation, x []float32) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = act.Eval(v)
	}
	return out
}

// broadcastIndex maps output coordinates to the flat index of an input of
// shape s aligned to the right.
func broadcastIndex(idx []int, s shape.Shape) int {
	if len(s) == 0 {
		return 0
	}
	diff := len(idx) - len(s)
	in := make([]int, len(s))
	for i := range s {
		if s[i] != 1 {
			in[i] = idx[i+diff]
		}
	}
	return s.Ravel(in)
}

func toFloat64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}
