package main

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/born-ml/gpgpu/internal/reference"
	"github.com/born-ml/gpgpu/program"
)

const verifyTolerance = 1e-3

func verifyMatMul(prog *program.Program, info program.MatMulInfo, seed uint64) (float64, error) {
	rng := rand.New(rand.NewPCG(seed, 0))
	a := random(rng, info.ShapeA().NumElements())
	b := random(rng, info.ShapeB().NumElements())
	values := [][]float32{a, b}
	var bias []float32
	if info.Bias {
		bias = random(rng, info.N)
		values = append(values, bias)
	}
	got, err := program.Simulate(context.Background(), prog, values...)
	if err != nil {
		return 0, err
	}
	return maxAbsDiff(got, reference.MatMul(info, a, b, bias)), nil
}

func verifyConv(prog *program.Program, info program.Conv2DInfo, seed uint64) (float64, error) {
	rng := rand.New(rand.NewPCG(seed, 0))
	x := random(rng, info.InputShape().NumElements())
	w := random(rng, info.FilterShape().NumElements())
	values := [][]float32{x, w}
	var bias []float32
	if info.Bias {
		bias = random(rng, info.OutChannels)
		values = append(values, bias)
	}
	got, err := program.Simulate(context.Background(), prog, values...)
	if err != nil {
		return 0, err
	}
	return maxAbsDiff(got, reference.Conv2D(info, x, w, bias)), nil
}

func verifyBinary(prog *program.Program, op program.BinaryOp, as, bs program.Shape, act program.Activation, seed uint64) (float64, error) {
	rng := rand.New(rand.NewPCG(seed, 0))
	a := random(rng, as.NumElements())
	b := random(rng, bs.NumElements())
	want, _, err := reference.Binary(op, a, as, b, bs, act)
	if err != nil {
		return 0, err
	}
	got, err := program.Simulate(context.Background(), prog, a, b)
	if err != nil {
		return 0, err
	}
	return maxAbsDiff(got, want), nil
}

func random(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}

func maxAbsDiff(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var m float64
	for i := range a {
		m = max(m, math.Abs(float64(a[i]-b[i])))
	}
	return m
}
