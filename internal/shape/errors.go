package shape

import (
	"errors"
	"fmt"
)

// Common errors, matched with errors.Is.
var (
	ErrUnsupportedRank    = errors.New("unsupported rank")
	ErrUnsupportedFeature = errors.New("unsupported feature")
)

// UnsupportedRankError is returned when a logical shape has more axes than
// the coordinate compiler supports. The build must not be attempted.
type UnsupportedRankError struct {
	Rank int // Rank requested
	Max  int // Highest supported rank
}

// Error implements the error interface.
func (e *UnsupportedRankError) Error() string {
	return fmt.Sprintf("unsupported rank %d (max %d)", e.Rank, e.Max)
}

// Is reports whether target is ErrUnsupportedRank.
func (e *UnsupportedRankError) Is(target error) bool {
	return target == ErrUnsupportedRank
}

// UnsupportedFeatureError is returned when a requested combination of
// options cannot be generated, e.g. bias on a tiling variant without a bias
// path.
type UnsupportedFeatureError struct {
	Feature string // Feature requested (e.g., "bias")
	Reason  string // Context that rules it out (e.g., "matmul variant wpt2d")
}

// Error implements the error interface.
func (e *UnsupportedFeatureError) Error() string {
	if e.Reason == "" {
		return "unsupported feature: " + e.Feature
	}
	return fmt.Sprintf("unsupported feature: %s with %s", e.Feature, e.Reason)
}

// Is reports whether target is ErrUnsupportedFeature.
func (e *UnsupportedFeatureError) Is(target error) bool {
	return target == ErrUnsupportedFeature
}
