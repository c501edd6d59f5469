package corgi

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestComputeParams_Bytes(t *testing.T) {
	p := ComputeParams{
		Width: 512, Height: 384, MaxIter: 1000,
		ProbeLen: 500, IterOffset: 1500,
		Cx: -0.5, Cy: 0.25,
	}
	buf := p.Bytes()
	if len(buf) != ComputeParamsSize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(buf), ComputeParamsSize)
	}
	if got := binary.LittleEndian.Uint32(buf[0:]); got != 512 {
		t.Errorf("width = %d, want 512", got)
	}
	if got := binary.LittleEndian.Uint32(buf[16:]); got != 1500 {
		t.Errorf("iter_offset = %d, want 1500", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[20:])); got != -0.5 {
		t.Errorf("cx = %v, want -0.5", got)
	}
	// Trailing padding must be zero for deterministic uploads.
	for i := 28; i < ComputeParamsSize; i++ {
		if buf[i] != 0 {
			t.Errorf("padding byte %d = %d, want 0", i, buf[i])
		}
	}
}

func TestRenderParams_Bytes(t *testing.T) {
	img := DefaultImage()
	img.Viewport.Scaling = 2
	p := RenderParamsFor(&img)
	buf := p.Bytes()
	if len(buf) != RenderParamsSize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(buf), RenderParamsSize)
	}
	if got := binary.LittleEndian.Uint32(buf[0:]); got != 1024 {
		t.Errorf("image_width = %d, want oversampled 1024", got)
	}
	if got := binary.LittleEndian.Uint32(buf[4:]); got != 1000 {
		t.Errorf("max_step = %d, want 1000", got)
	}
	// External brightness is the sixth field of the first colouring block.
	off := 12 + 5*4
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])); got != 2.0 {
		t.Errorf("external brightness = %v, want 2.0", got)
	}
	// Misc follows both colouring blocks.
	off = 12 + 12*4
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])); got != 1.0 {
		t.Errorf("misc = %v, want 1.0", got)
	}
}
