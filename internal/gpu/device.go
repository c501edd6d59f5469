// Package gpu owns every GPU-side resource of the fractal render core:
// device and queue acquisition, the iteration and colour compute pipelines,
// the per-pixel storage buffers, the output texture, and the batched
// dispatch loops that drive them.
//
// All objects in this package are exclusively owned by the render worker
// goroutine. The single exception is SharedTexture, which hands read access
// to the displayable output across threads behind a read-write lock.
package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import the Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	corgi "github.com/KiranWells/corgi-sub000"
)

// submitTimeout bounds every fence wait. A batch that takes longer than
// this has stalled the device; the iteration batch size keeps individual
// dispatches far below it.
const submitTimeout = 10 * time.Second

// Device acquisition errors. These are fatal for the worker: without an
// adapter there is no render path other than the CPU oracle.
var (
	// ErrNoBackend is returned when no hal backend is compiled in or
	// available on this platform.
	ErrNoBackend = errors.New("gpu: no GPU backend available")

	// ErrNoAdapter is returned when the backend enumerates zero adapters.
	ErrNoAdapter = errors.New("gpu: no GPU adapters found")

	// ErrCancelled reports cooperative cancellation between batches. It is
	// not a failure; in-flight work is dropped silently.
	ErrCancelled = errors.New("gpu: cancelled")
)

// Context holds the instance, device and queue shared by every Resources
// set. It is created once at worker startup and closed when the worker
// exits.
type Context struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	adapterName string
}

// NewContext initialises the GPU: backend, instance, adapter, device, queue.
// A discrete or integrated GPU is preferred over software adapters.
func NewContext() (*Context, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoBackend
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	corgi.Logger().Info("gpu: device initialized", "adapter", selected.Info.Name)

	return &Context{
		instance:    instance,
		device:      openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
	}, nil
}

// AdapterName returns the name of the selected adapter.
func (c *Context) AdapterName() string { return c.adapterName }

// Close releases the device and instance. Resources sets must be closed
// first.
func (c *Context) Close() {
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
		c.queue = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}

// bufferKind captures the four usage patterns of the pipeline's buffers.
type bufferKind int

const (
	// shaderOnly buffers live entirely on the GPU (iteration state).
	shaderOnly bufferKind = iota
	// hostWritable buffers receive uploads from the CPU (probe, delta grid).
	hostWritable
	// hostReadable buffers are mappable staging targets for readback.
	hostReadable
	// uniformKind buffers hold parameter blocks.
	uniformKind
)

func (k bufferKind) usage() gputypes.BufferUsage {
	switch k {
	case hostWritable:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	case hostReadable:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	case uniformKind:
		return gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageStorage
	}
}

// createBuffer allocates a buffer of the given kind.
func (c *Context) createBuffer(label string, size uint64, kind bufferKind) (hal.Buffer, error) {
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: kind.usage(),
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %s (%d bytes): %w", label, size, err)
	}
	return buf, nil
}

// submitAndWait runs a finished encoder through the queue and blocks until
// the fence signals. Batched dispatch relies on this per-submission wait for
// its ordering guarantee and to stay under device timeouts.
func (c *Context) submitAndWait(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := c.device.Wait(fence, 1, submitTimeout)
	if err != nil || !ok {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}
