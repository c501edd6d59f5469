package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	corgi "github.com/KiranWells/corgi-sub000"
)

// RunColor maps the iteration results to packed RGBA through the colour
// kernel, reads the pixel buffer back, and publishes it to the shared
// output texture. It is cheap relative to iteration, so it runs
// uncancelled as a single dispatch.
func (r *Resources) RunColor(img *corgi.Image) error {
	if !r.Sized() {
		return ErrNotSized
	}
	params := corgi.RenderParamsFor(img)
	r.ctx.queue.WriteBuffer(r.buf.renderParams, 0, params.Bytes())

	pixelSize := uint64(r.width) * uint64(r.height) * 4
	staging, err := r.ctx.createBuffer(r.label+"_color_staging", pixelSize, hostReadable)
	if err != nil {
		return err
	}
	defer r.ctx.device.DestroyBuffer(staging)

	encoder, err := r.ctx.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: r.label + "_color"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("color"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "color"})
	pass.SetPipeline(r.colorPipeline)
	pass.SetBindGroup(0, r.colorBind, nil)
	pass.SetBindGroup(1, r.renderParamsBind, nil)
	x, y := dispatchExtent(r.width, r.height)
	pass.Dispatch(x, y, 1)
	pass.End()
	encoder.CopyBufferToBuffer(r.buf.pixels, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: pixelSize},
	})
	if err := r.ctx.submitAndWait(encoder); err != nil {
		return err
	}

	data := make([]byte, pixelSize)
	if err := r.ctx.queue.ReadBuffer(staging, 0, data); err != nil {
		return fmt.Errorf("read pixel buffer: %w", err)
	}
	r.texture.write(r.ctx, data)
	return nil
}
