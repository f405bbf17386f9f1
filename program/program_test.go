// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package program_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/program"
)

// TestCompilerMatMul tests generating and simulating through the public API.
func TestCompilerMatMul(t *testing.T) {
	c, err := program.NewCompiler(program.DefaultConfig())
	require.NoError(t, err)

	prog, err := c.MatMul(program.MatMulInfo{BatchA: 1, BatchB: 1, M: 2, K: 2, N: 2})
	require.NoError(t, err)
	assert.Equal(t, program.Shape{1, 2, 2}, prog.OutputShape())
	assert.Contains(t, prog.Source, "@compute")

	got, err := program.Simulate(context.Background(), prog,
		[]float32{1, 2, 3, 4},
		[]float32{1, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
}

// TestErrorsMatch tests that public sentinels match generator errors.
func TestErrorsMatch(t *testing.T) {
	cfg := program.DefaultConfig()
	cfg.MatMul.Variant = program.MatMulBlocked
	_, err := program.MatMul(program.MatMulInfo{BatchA: 1, BatchB: 1, M: 4, K: 4, N: 4, Bias: true}, cfg.MatMul, program.Options{})
	require.ErrorIs(t, err, program.ErrUnsupportedFeature)
	var feature *program.UnsupportedFeatureError
	require.ErrorAs(t, err, &feature)
	assert.Equal(t, "bias", feature.Feature)

	deep := program.NewInfo(program.Shape{1, 1, 1, 1, 1, 1, 2}, false, 0)
	_, err = program.Unary(program.Activation{}, deep, program.Mode{Access: program.Indexed}, program.Options{})
	require.ErrorIs(t, err, program.ErrUnsupportedRank)

	cfg.MaxTextureSize = 1
	_, err = program.NewCompiler(cfg)
	var cfgErr *program.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "MaxTextureSize", cfgErr.Field)
}

// TestSetLogger tests that rejected requests reach an installed logger.
func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	program.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { program.SetLogger(nil) })

	cfg := program.DefaultConfig().MatMul
	cfg.Variant = program.MatMulWPT2D
	_, err := program.MatMul(program.MatMulInfo{BatchA: 1, BatchB: 1, M: 4, K: 4, N: 4, Bias: true}, cfg, program.Options{})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "unsupported feature requested")
	assert.Contains(t, buf.String(), "feature=bias")
}

// TestConvOutputSize tests the same-padding output extent.
func TestConvOutputSize(t *testing.T) {
	assert.Equal(t, 112, program.ConvOutputSize(224, 7, 2, 1, 3, 3))
	assert.Equal(t, 5, program.ConvOutputSize(5, 3, 1, 1, 1, 1))
}
