package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	corgi "github.com/KiranWells/corgi-sub000"
)

// DefaultIterBatch is the number of iterations processed per compute
// dispatch. Each batch is one submit and one fence wait, so this trades
// dispatch overhead against device responsiveness on deep renders.
const DefaultIterBatch = 2000

// workgroupDim matches the @workgroup_size attribute in the shaders.
const workgroupDim = 16

// ErrNotSized is returned when a dispatch or readback runs before Resize
// has allocated the per-pixel buffers.
var ErrNotSized = errors.New("gpu: resources not sized")

// Options control the construction of a Resources set.
type Options struct {
	// Label prefixes every GPU object label, so the preview and output
	// resource sets are distinguishable in debug output.
	Label string

	// IterBatch overrides DefaultIterBatch when positive.
	IterBatch int
}

// buffers is the full per-pixel buffer inventory of the pipeline.
//
// probe holds one batch of the reference orbit: z values first, then the
// derivative values at byte offset iterBatch*8. The remaining buffers are
// one element per buffer pixel.
type buffers struct {
	probe      hal.Buffer // 2 * iterBatch * vec2<f32>, host writable
	delta0     hal.Buffer // vec2<f32> per pixel, host writable
	deltaN     hal.Buffer // vec2<f32> per pixel, iteration state
	deltaPrime hal.Buffer // vec2<f32> per pixel, derivative state
	step       hal.Buffer // u32 per pixel, escape iteration
	orbit      hal.Buffer // f32 per pixel, orbit trap minimum
	r          hal.Buffer // f32 per pixel, final magnitude
	dr         hal.Buffer // f32 per pixel, final derivative magnitude
	pixels     hal.Buffer // u32 per pixel, packed RGBA output

	computeParams hal.Buffer // uniform for the iteration kernels
	renderParams  hal.Buffer // uniform for the colour kernel
}

// Resources owns one complete set of pipelines, buffers and the output
// texture for a single render target. The preview and the full-resolution
// output each own a Resources value sharing one Context.
type Resources struct {
	ctx       *Context
	label     string
	iterBatch int

	perturbShader hal.ShaderModule
	directShader  hal.ShaderModule
	colorShader   hal.ShaderModule

	iterLayout    hal.BindGroupLayout
	colorLayout   hal.BindGroupLayout
	uniformLayout hal.BindGroupLayout

	iterPipeLayout  hal.PipelineLayout
	colorPipeLayout hal.PipelineLayout

	perturbPipeline hal.ComputePipeline
	directPipeline  hal.ComputePipeline
	colorPipeline   hal.ComputePipeline

	buf buffers

	iterBind          hal.BindGroup
	colorBind         hal.BindGroup
	computeParamsBind hal.BindGroup
	renderParamsBind  hal.BindGroup

	texture *SharedTexture

	// Current buffer extent in pixels. Zero until the first Resize.
	width, height int
}

// NewResources compiles the three kernels and builds the pipelines. The
// per-pixel buffers are not allocated until Resize is called.
func NewResources(ctx *Context, opts Options) (*Resources, error) {
	r := &Resources{
		ctx:       ctx,
		label:     opts.Label,
		iterBatch: opts.IterBatch,
	}
	if r.iterBatch <= 0 {
		r.iterBatch = DefaultIterBatch
	}
	if err := r.createPipelines(); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.createUniforms(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// IterBatch returns the iteration batch size in use.
func (r *Resources) IterBatch() int { return r.iterBatch }

// Texture returns the shared output texture, or nil before the first
// Resize.
func (r *Resources) Texture() *SharedTexture { return r.texture }

// Sized reports whether the per-pixel buffers are allocated.
func (r *Resources) Sized() bool { return r.width > 0 && r.height > 0 }

func (r *Resources) createPipelines() error {
	device := r.ctx.device

	var err error
	r.perturbShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  r.label + "_perturb",
		Source: hal.ShaderSource{WGSL: perturbShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile perturb shader: %w", err)
	}
	r.directShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  r.label + "_direct",
		Source: hal.ShaderSource{WGSL: directShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile direct shader: %w", err)
	}
	r.colorShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  r.label + "_color",
		Source: hal.ShaderSource{WGSL: colorShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile color shader: %w", err)
	}

	storageEntry := func(binding uint32, readOnly bool) gputypes.BindGroupLayoutEntry {
		t := gputypes.BufferBindingTypeStorage
		if readOnly {
			t = gputypes.BufferBindingTypeReadOnlyStorage
		}
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		}
	}

	r.iterLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: r.label + "_iter_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			storageEntry(0, true),  // probe
			storageEntry(1, true),  // delta_0
			storageEntry(2, false), // delta_n
			storageEntry(3, false), // delta_p
			storageEntry(4, false), // step
			storageEntry(5, false), // orbit
			storageEntry(6, false), // r
			storageEntry(7, false), // dr
		},
	})
	if err != nil {
		return fmt.Errorf("create iter bind group layout: %w", err)
	}

	r.colorLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: r.label + "_color_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			storageEntry(0, true),  // step
			storageEntry(1, true),  // orbit
			storageEntry(2, true),  // r
			storageEntry(3, true),  // dr
			storageEntry(4, false), // pixels
		},
	})
	if err != nil {
		return fmt.Errorf("create color bind group layout: %w", err)
	}

	r.uniformLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: r.label + "_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform bind group layout: %w", err)
	}

	r.iterPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            r.label + "_iter_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.iterLayout, r.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create iter pipeline layout: %w", err)
	}
	r.colorPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            r.label + "_color_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.colorLayout, r.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create color pipeline layout: %w", err)
	}

	r.perturbPipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   r.label + "_perturb_pipeline",
		Layout:  r.iterPipeLayout,
		Compute: hal.ComputeState{Module: r.perturbShader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create perturb pipeline: %w", err)
	}
	r.directPipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   r.label + "_direct_pipeline",
		Layout:  r.iterPipeLayout,
		Compute: hal.ComputeState{Module: r.directShader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create direct pipeline: %w", err)
	}
	r.colorPipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   r.label + "_color_pipeline",
		Layout:  r.colorPipeLayout,
		Compute: hal.ComputeState{Module: r.colorShader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create color pipeline: %w", err)
	}
	return nil
}

// createUniforms allocates the size-independent buffers and their bind
// groups: the probe slice and the two parameter blocks.
func (r *Resources) createUniforms() error {
	var err error
	probeSize := uint64(r.iterBatch) * 2 * 8
	r.buf.probe, err = r.ctx.createBuffer(r.label+"_probe", probeSize, hostWritable)
	if err != nil {
		return err
	}
	r.buf.computeParams, err = r.ctx.createBuffer(r.label+"_compute_params", corgi.ComputeParamsSize, uniformKind)
	if err != nil {
		return err
	}
	r.buf.renderParams, err = r.ctx.createBuffer(r.label+"_render_params", corgi.RenderParamsSize, uniformKind)
	if err != nil {
		return err
	}

	r.computeParamsBind, err = r.ctx.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  r.label + "_compute_params_bind",
		Layout: r.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: r.buf.computeParams.NativeHandle(), Offset: 0, Size: corgi.ComputeParamsSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create compute params bind group: %w", err)
	}
	r.renderParamsBind, err = r.ctx.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  r.label + "_render_params_bind",
		Layout: r.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: r.buf.renderParams.NativeHandle(), Offset: 0, Size: corgi.RenderParamsSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create render params bind group: %w", err)
	}
	return nil
}

// Resize reallocates every per-pixel buffer and the output texture for the
// given buffer extent, then rebuilds the bind groups over them. Previous
// contents are discarded. The caller must not have work in flight.
func (r *Resources) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("gpu: bad buffer extent %dx%d", width, height)
	}
	if int64(width)*int64(height) > corgi.MaxBufferPixels {
		return corgi.ErrViewportTooBig
	}
	r.destroySized()

	pixels := uint64(width) * uint64(height)
	device := r.ctx.device

	alloc := func(dst *hal.Buffer, name string, elemSize uint64, kind bufferKind) error {
		if *dst != nil {
			return nil
		}
		buf, err := r.ctx.createBuffer(r.label+"_"+name, pixels*elemSize, kind)
		if err != nil {
			return err
		}
		*dst = buf
		return nil
	}
	steps := []struct {
		dst      *hal.Buffer
		name     string
		elemSize uint64
		kind     bufferKind
	}{
		{&r.buf.delta0, "delta_0", 8, hostWritable},
		{&r.buf.deltaN, "delta_n", 8, shaderOnly},
		{&r.buf.deltaPrime, "delta_p", 8, shaderOnly},
		{&r.buf.step, "step", 4, shaderOnly},
		{&r.buf.orbit, "orbit", 4, shaderOnly},
		{&r.buf.r, "r", 4, shaderOnly},
		{&r.buf.dr, "dr", 4, shaderOnly},
	}
	for _, s := range steps {
		if err := alloc(s.dst, s.name, s.elemSize, s.kind); err != nil {
			r.destroySized()
			return err
		}
	}
	// The pixel buffer is also the copy source for the display texture
	// upload, so it needs CopySrc on top of storage.
	var err error
	r.buf.pixels, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: r.label + "_pixels",
		Size:  pixels * 4,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		r.destroySized()
		return fmt.Errorf("create pixel buffer: %w", err)
	}

	bufEntry := func(binding uint32, buf hal.Buffer, size uint64) gputypes.BindGroupEntry {
		return gputypes.BindGroupEntry{
			Binding:  binding,
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: size},
		}
	}
	r.iterBind, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  r.label + "_iter_bind",
		Layout: r.iterLayout,
		Entries: []gputypes.BindGroupEntry{
			bufEntry(0, r.buf.probe, uint64(r.iterBatch)*2*8),
			bufEntry(1, r.buf.delta0, pixels*8),
			bufEntry(2, r.buf.deltaN, pixels*8),
			bufEntry(3, r.buf.deltaPrime, pixels*8),
			bufEntry(4, r.buf.step, pixels*4),
			bufEntry(5, r.buf.orbit, pixels*4),
			bufEntry(6, r.buf.r, pixels*4),
			bufEntry(7, r.buf.dr, pixels*4),
		},
	})
	if err != nil {
		r.destroySized()
		return fmt.Errorf("create iter bind group: %w", err)
	}
	r.colorBind, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  r.label + "_color_bind",
		Layout: r.colorLayout,
		Entries: []gputypes.BindGroupEntry{
			bufEntry(0, r.buf.step, pixels*4),
			bufEntry(1, r.buf.orbit, pixels*4),
			bufEntry(2, r.buf.r, pixels*4),
			bufEntry(3, r.buf.dr, pixels*4),
			bufEntry(4, r.buf.pixels, pixels*4),
		},
	})
	if err != nil {
		r.destroySized()
		return fmt.Errorf("create color bind group: %w", err)
	}

	tex, err := newSharedTexture(r.ctx, r.label+"_output", width, height)
	if err != nil {
		r.destroySized()
		return err
	}
	r.texture = tex
	r.width = width
	r.height = height
	return nil
}

// UploadDeltaGrid writes the per-pixel offset grid into the delta_0 buffer.
// The grid must match the current buffer extent.
func (r *Resources) UploadDeltaGrid(grid [][2]float32) error {
	if !r.Sized() {
		return ErrNotSized
	}
	if len(grid) != r.width*r.height {
		return fmt.Errorf("gpu: delta grid has %d entries, want %d", len(grid), r.width*r.height)
	}
	r.ctx.queue.WriteBuffer(r.buf.delta0, 0, vec2Bytes(grid))
	return nil
}

// destroySized releases everything Resize allocates.
func (r *Resources) destroySized() {
	device := r.ctx.device
	if r.iterBind != nil {
		device.DestroyBindGroup(r.iterBind)
		r.iterBind = nil
	}
	if r.colorBind != nil {
		device.DestroyBindGroup(r.colorBind)
		r.colorBind = nil
	}
	for _, buf := range []*hal.Buffer{
		&r.buf.delta0, &r.buf.deltaN, &r.buf.deltaPrime,
		&r.buf.step, &r.buf.orbit, &r.buf.r, &r.buf.dr, &r.buf.pixels,
	} {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	if r.texture != nil {
		r.texture.destroy(device)
		r.texture = nil
	}
	r.width = 0
	r.height = 0
}

// Close releases every GPU object owned by this set.
func (r *Resources) Close() {
	device := r.ctx.device
	if device == nil {
		return
	}
	r.destroySized()
	if r.computeParamsBind != nil {
		device.DestroyBindGroup(r.computeParamsBind)
		r.computeParamsBind = nil
	}
	if r.renderParamsBind != nil {
		device.DestroyBindGroup(r.renderParamsBind)
		r.renderParamsBind = nil
	}
	for _, buf := range []*hal.Buffer{&r.buf.probe, &r.buf.computeParams, &r.buf.renderParams} {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	if r.perturbPipeline != nil {
		device.DestroyComputePipeline(r.perturbPipeline)
		r.perturbPipeline = nil
	}
	if r.directPipeline != nil {
		device.DestroyComputePipeline(r.directPipeline)
		r.directPipeline = nil
	}
	if r.colorPipeline != nil {
		device.DestroyComputePipeline(r.colorPipeline)
		r.colorPipeline = nil
	}
	if r.iterPipeLayout != nil {
		device.DestroyPipelineLayout(r.iterPipeLayout)
		r.iterPipeLayout = nil
	}
	if r.colorPipeLayout != nil {
		device.DestroyPipelineLayout(r.colorPipeLayout)
		r.colorPipeLayout = nil
	}
	for _, l := range []*hal.BindGroupLayout{&r.iterLayout, &r.colorLayout, &r.uniformLayout} {
		if *l != nil {
			device.DestroyBindGroupLayout(*l)
			*l = nil
		}
	}
	for _, s := range []*hal.ShaderModule{&r.perturbShader, &r.directShader, &r.colorShader} {
		if *s != nil {
			device.DestroyShaderModule(*s)
			*s = nil
		}
	}
}

// vec2Bytes reinterprets a vec2 slice as its raw bytes for upload.
func vec2Bytes(v [][2]float32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*8) //nolint:gosec // safe struct serialization
}
