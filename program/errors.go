// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package program

import (
	"github.com/born-ml/gpgpu/internal/config"
	"github.com/born-ml/gpgpu/internal/shape"
)

// Errors matched with errors.Is.
var (
	ErrUnsupportedRank    = shape.ErrUnsupportedRank
	ErrUnsupportedFeature = shape.ErrUnsupportedFeature
)

// UnsupportedRankError reports a tensor of more than MaxRank axes.
type UnsupportedRankError = shape.UnsupportedRankError

// UnsupportedFeatureError reports an option combination that cannot be
// generated, such as bias on a tiling variant without a bias path.
type UnsupportedFeatureError = shape.UnsupportedFeatureError

// ConfigError reports an invalid tiling configuration.
type ConfigError = config.ConfigError
