//go:build !windows

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestUnavailable tests that New fails cleanly without a native library.
func TestUnavailable(t *testing.T) {
	assert.False(t, IsAvailable())
	d, err := New()
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrUnavailable)
}
