package gpu

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/wgpu/hal"

	corgi "github.com/KiranWells/corgi-sub000"
	"github.com/KiranWells/corgi-sub000/probe"
)

// ProgressFunc reports iteration progress after each batch. done counts
// completed iterations out of total.
type ProgressFunc func(done, total uint64)

// RunPerturbed runs the perturbation kernel over the whole reference
// orbit, one batch of iterations per dispatch. The delta grid must already
// be uploaded. Cancellation is checked between batches; iteration state
// buffers are left as-is on cancel, so a later run must start from
// iteration zero.
func (r *Resources) RunPerturbed(img *corgi.Image, orbit probe.Orbit, progress ProgressFunc, cancel *atomic.Bool) error {
	if !r.Sized() {
		return ErrNotSized
	}
	total := orbit.Len()
	start := time.Now()
	for _, b := range planBatches(total, r.iterBatch) {
		if cancel != nil && cancel.Load() {
			return ErrCancelled
		}
		// The batch slice of the orbit goes in two blocks: z values at
		// the start, derivative values right after. The kernel finds the
		// derivative block at index probe_len.
		r.ctx.queue.WriteBuffer(r.buf.probe, 0, vec2Bytes(orbit.Z[b.offset:b.offset+b.length]))
		r.ctx.queue.WriteBuffer(r.buf.probe, uint64(b.length)*8, vec2Bytes(orbit.ZP[b.offset:b.offset+b.length]))

		params := corgi.ComputeParams{
			Width:      uint32(r.width),
			Height:     uint32(r.height),
			MaxIter:    uint32(total),
			ProbeLen:   uint32(b.length),
			IterOffset: uint32(b.offset),
		}
		r.ctx.queue.WriteBuffer(r.buf.computeParams, 0, params.Bytes())

		if err := r.dispatchIter(r.perturbPipeline, "perturb"); err != nil {
			return err
		}
		if progress != nil {
			progress(uint64(b.offset+b.length), uint64(total))
		}
	}
	corgi.Logger().Debug("gpu: perturbed iteration done",
		"label", r.label, "iterations", total, "elapsed", time.Since(start))
	return nil
}

// RunDirect iterates z = z*z + c per pixel in hardware floats, for shallow
// zooms where no reference orbit is needed. The pixel's c is the probe
// location plus its delta grid entry, so the same uploaded grid serves
// both kernels. The delta_n buffer carries z between batches.
func (r *Resources) RunDirect(img *corgi.Image, progress ProgressFunc, cancel *atomic.Bool) error {
	if !r.Sized() {
		return ErrNotSized
	}
	if img.MaxIter > uint64(^uint32(0)) {
		return fmt.Errorf("gpu: max iterations %d exceeds dispatch limit", img.MaxIter)
	}
	total := int(img.MaxIter)
	cx := img.ProbeLocation.X.Float32()
	cy := img.ProbeLocation.Y.Float32()
	start := time.Now()
	for _, b := range planBatches(total, r.iterBatch) {
		if cancel != nil && cancel.Load() {
			return ErrCancelled
		}
		params := corgi.ComputeParams{
			Width:      uint32(r.width),
			Height:     uint32(r.height),
			MaxIter:    uint32(total),
			ProbeLen:   uint32(b.length),
			IterOffset: uint32(b.offset),
			Cx:         cx,
			Cy:         cy,
		}
		r.ctx.queue.WriteBuffer(r.buf.computeParams, 0, params.Bytes())

		if err := r.dispatchIter(r.directPipeline, "direct"); err != nil {
			return err
		}
		if progress != nil {
			progress(uint64(b.offset+b.length), uint64(total))
		}
	}
	corgi.Logger().Debug("gpu: direct iteration done",
		"label", r.label, "iterations", total, "elapsed", time.Since(start))
	return nil
}

// dispatchIter encodes one compute pass over the full pixel grid and
// blocks until the device finishes it.
func (r *Resources) dispatchIter(pipeline hal.ComputePipeline, label string) error {
	encoder, err := r.ctx.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: r.label + "_" + label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, r.iterBind, nil)
	pass.SetBindGroup(1, r.computeParamsBind, nil)
	x, y := dispatchExtent(r.width, r.height)
	pass.Dispatch(x, y, 1)
	pass.End()
	return r.ctx.submitAndWait(encoder)
}
