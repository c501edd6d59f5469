package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SharedTexture is the displayable render output. The worker goroutine
// updates it after each colour pass; the UI thread samples it. A
// read-write lock keeps the two from overlapping: writers take the write
// lock for uploads and resizes, readers hold the read lock for the
// duration of their draw.
type SharedTexture struct {
	mu      sync.RWMutex
	texture hal.Texture
	view    hal.TextureView
	width   int
	height  int
}

func newSharedTexture(ctx *Context, label string, width, height int) (*SharedTexture, error) {
	tex, err := ctx.device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create output texture: %w", err)
	}
	view, err := ctx.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:     label + "_view",
		Format:    gputypes.TextureFormatUndefined,
		Dimension: gputypes.TextureViewDimensionUndefined,
		Aspect:    gputypes.TextureAspectAll,
	})
	if err != nil {
		ctx.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create output texture view: %w", err)
	}
	return &SharedTexture{texture: tex, view: view, width: width, height: height}, nil
}

// Size returns the texture extent in pixels.
func (t *SharedTexture) Size() (width, height int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.width, t.height
}

// Acquire locks the texture for reading and returns its view. The
// returned release function must be called when the caller is done
// sampling; uploads and resizes block until then.
func (t *SharedTexture) Acquire() (hal.TextureView, func()) {
	t.mu.RLock()
	return t.view, t.mu.RUnlock
}

// write uploads tightly packed RGBA pixels under the write lock.
func (t *SharedTexture) write(ctx *Context, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: 0,
			Origin:   hal.Origin3D{},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(t.width) * 4,
			RowsPerImage: uint32(t.height),
		},
		&hal.Extent3D{
			Width:              uint32(t.width),
			Height:             uint32(t.height),
			DepthOrArrayLayers: 1,
		},
	)
}

func (t *SharedTexture) destroy(device hal.Device) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.texture != nil {
		device.DestroyTexture(t.texture)
		t.texture = nil
	}
	t.width = 0
	t.height = 0
}
