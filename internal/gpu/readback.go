package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the WebGPU (and DX12) row alignment requirement
// for texture-to-buffer copies.
const copyPitchAlignment = 256

// TextureData reads the output texture back as tightly packed RGBA bytes,
// row-major, four bytes per pixel. Used by the export path once a render
// settles.
func (r *Resources) TextureData() ([]byte, error) {
	if !r.Sized() {
		return nil, ErrNotSized
	}
	w := uint32(r.width)
	h := uint32(r.height)
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := r.ctx.createBuffer(r.label+"_readback", stagingSize, hostReadable)
	if err != nil {
		return nil, err
	}
	defer r.ctx.device.DestroyBuffer(staging)

	if err := r.texture.copyTo(r.ctx, staging, alignedBytesPerRow); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := r.ctx.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	if alignedBytesPerRow == bytesPerRow {
		return readback, nil
	}
	// Strip per-row padding from the aligned readback data.
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := uint32(0); row < h; row++ {
		srcOff := int(row) * int(alignedBytesPerRow)
		dstOff := int(row) * int(bytesPerRow)
		copy(tight[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
	}
	return tight, nil
}

// copyTo encodes a texture-to-buffer copy under the read lock, so a
// concurrent upload cannot interleave with the export.
func (t *SharedTexture) copyTo(ctx *Context, staging hal.Buffer, alignedBytesPerRow uint32) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w := uint32(t.width)
	h := uint32(t.height)

	encoder, err := ctx.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "texture_readback"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("texture_readback"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	// The texture was last written via WriteTexture, leaving it in the
	// copy destination layout. CopyTextureToBuffer needs the source
	// layout; transition there and back.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(t.texture, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.texture, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageCopyDst,
		},
	}})
	return ctx.submitAndWait(encoder)
}
