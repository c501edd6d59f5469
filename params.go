package corgi

import (
	"encoding/binary"
	"math"
)

// ComputeParams is the uniform block for one batch of the iteration kernels.
// The byte layout must match the Params struct in perturb.wgsl / direct.wgsl.
type ComputeParams struct {
	// Width and Height are the buffer extent in pixels.
	Width  uint32
	Height uint32

	// MaxIter is the full iteration budget across all batches.
	MaxIter uint32

	// ProbeLen is the number of iterations in this batch.
	ProbeLen uint32

	// IterOffset is the global index of this batch's first iteration.
	IterOffset uint32

	// Cx and Cy are the reference point narrowed to float32; only the
	// direct kernel reads them (pixel c = (Cx, Cy) + delta0).
	Cx float32
	Cy float32
}

// ComputeParamsSize is the uniform buffer size: seven 4-byte fields padded to
// the 16-byte uniform alignment rule.
const ComputeParamsSize = 32

// Bytes encodes the block little-endian with trailing padding.
func (p *ComputeParams) Bytes() []byte {
	buf := make([]byte, ComputeParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], p.Width)
	binary.LittleEndian.PutUint32(buf[4:], p.Height)
	binary.LittleEndian.PutUint32(buf[8:], p.MaxIter)
	binary.LittleEndian.PutUint32(buf[12:], p.ProbeLen)
	binary.LittleEndian.PutUint32(buf[16:], p.IterOffset)
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(p.Cx))
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(p.Cy))
	return buf
}

// RenderParams is the uniform block for the colour kernel. The byte layout
// must match the Params struct in color.wgsl.
type RenderParams struct {
	ImageWidth uint32
	MaxStep    uint32
	Zoom       float32

	External Coloring
	Internal Coloring

	Misc         float32
	DebugShutter float32
}

// RenderParamsSize is the uniform buffer size: seventeen 4-byte fields padded
// to the 16-byte uniform alignment rule.
const RenderParamsSize = 80

// Bytes encodes the block little-endian with trailing padding.
func (p *RenderParams) Bytes() []byte {
	buf := make([]byte, RenderParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], p.ImageWidth)
	binary.LittleEndian.PutUint32(buf[4:], p.MaxStep)
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.Zoom))
	off := putColoring(buf, 12, p.External)
	off = putColoring(buf, off, p.Internal)
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(p.Misc))
	binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(p.DebugShutter))
	return buf
}

func putColoring(buf []byte, off int, c Coloring) int {
	for _, f := range [...]float32{
		c.Saturation, c.ColorFrequency, c.ColorOffset,
		c.GlowSpread, c.GlowIntensity, c.Brightness,
	} {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	return off
}

// RenderParamsFor assembles the colour uniform for a request.
func RenderParamsFor(img *Image) RenderParams {
	return RenderParams{
		ImageWidth:   uint32(img.Viewport.BufferWidth()),
		MaxStep:      uint32(img.MaxIter),
		Zoom:         float32(img.Viewport.Zoom),
		External:     img.ExternalColoring,
		Internal:     img.InternalColoring,
		Misc:         img.Misc,
		DebugShutter: img.DebugShutter,
	}
}
