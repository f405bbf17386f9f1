// Package webgpu compiles generated programs into WebGPU compute pipelines.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// The native library is only wired on Windows. Elsewhere New returns
// ErrUnavailable and IsAvailable reports false.
package webgpu

import (
	"errors"
	"strings"
)

// ErrUnavailable is returned when no WebGPU device can be opened.
var ErrUnavailable = errors.New("webgpu: not available")

// adapterName describes an adapter from its vendor and device strings.
func adapterName(vendor, device string) string {
	desc := strings.TrimSpace(strings.TrimSpace(vendor) + " " + strings.TrimSpace(device))
	if desc == "" {
		return "WebGPU"
	}
	return "WebGPU (" + desc + ")"
}
