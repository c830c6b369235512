// Package wgpu binds render plans to the WebGPU hardware abstraction
// layer: named textures and buffers, one render pipeline per pass, and
// ordered submission each frame.
package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// deviceHandles owns the standalone instance, device, and queue.
type deviceHandles struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string
}

// openDevice acquires a standalone device: the first discrete or
// integrated adapter of the Vulkan backend, falling back to whatever the
// platform exposes. A host that already owns a device can inject it via
// NewWithDevice instead.
func openDevice() (*deviceHandles, error) {
	be, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("wgpu: vulkan backend not available")
	}
	instance, err := be.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		t := adapters[i].Info.DeviceType
		if t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}
	return &deviceHandles{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		adapter:  selected.Info.Name,
	}, nil
}
