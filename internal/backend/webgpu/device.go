//go:build windows

package webgpu

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/gpgpu/internal/logging"
)

// Device is an open WebGPU device with its pipeline cache.
type Device struct {
	instance    *wgpu.Instance
	adapter     *wgpu.Adapter
	device      *wgpu.Device
	queue       *wgpu.Queue
	adapterInfo *wgpu.AdapterInfoGo
	pipelines   *PipelineCache
}

// New opens the high performance adapter.
func New() (d *Device, err error) {
	// wgpu panics when the native library is missing.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = fmt.Errorf("%w: %v", ErrUnavailable, r)
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrUnavailable, err)
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: request adapter: %w", ErrUnavailable, err)
	}
	// Adapter info is optional; Name falls back without it.
	info, err := adapter.GetInfo()
	if err != nil {
		logging.Logger().Debug("webgpu: adapter info unavailable", "err", err)
		info = nil
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: request device: %w", ErrUnavailable, err)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: no queue", ErrUnavailable)
	}

	d = &Device{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		adapterInfo: info,
		pipelines:   NewPipelineCache(device),
	}
	logging.Logger().Debug("webgpu: device opened", "name", d.Name())
	return d, nil
}

// IsAvailable reports whether a WebGPU adapter can be requested.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Name describes the adapter.
func (d *Device) Name() string {
	if d.adapterInfo == nil {
		return adapterName("", "")
	}
	return adapterName(d.adapterInfo.Vendor, d.adapterInfo.Device)
}

// Pipelines returns the device's pipeline cache.
func (d *Device) Pipelines() *PipelineCache { return d.pipelines }

// Release releases the cached pipelines and the device.
func (d *Device) Release() {
	if d.pipelines != nil {
		d.pipelines.Release()
		d.pipelines = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
