package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAdapterName tests the adapter description built from vendor and
// device strings.
func TestAdapterName(t *testing.T) {
	tests := []struct {
		vendor, device string
		want           string
	}{
		{"NVIDIA", "GeForce RTX 4090", "WebGPU (NVIDIA GeForce RTX 4090)"},
		{"", "Intel(R) UHD Graphics", "WebGPU (Intel(R) UHD Graphics)"},
		{" AMD ", "", "WebGPU (AMD)"},
		{"", "", "WebGPU"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, adapterName(tt.vendor, tt.device))
	}
}
