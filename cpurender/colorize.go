package cpurender

import (
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	corgi "github.com/KiranWells/corgi-sub000"
)

// Colorize maps a frame through the request's colouring parameters to an
// RGBA image. The shading follows the same structure as the GPU colour
// kernel: smoothed iteration count and distance estimate glow outside the
// set, orbit trap shading inside.
func Colorize(frame *Frame, img *corgi.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	maxStep := uint32(img.MaxIter)
	ext := img.ExternalColoring
	intl := img.InternalColoring
	pixelSize := math.Exp2(-img.Viewport.Zoom) / float64(frame.Width)

	white := colorful.Color{R: 1, G: 1, B: 1}
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			i := y*frame.Width + x
			var c colorful.Color
			if frame.Step[i] < maxStep {
				c = exteriorColor(frame, i, ext)
				if ext.GlowIntensity > 0 {
					glow := glowFactor(frame, i, ext.GlowSpread, pixelSize)
					c = c.BlendRgb(white, glow*float64(ext.GlowIntensity)).Clamped()
				}
			} else {
				c = interiorColor(frame, i, intl)
			}
			if img.DebugShutter > 0 {
				gray := float64(frame.Step[i]) / float64(maxStep)
				c = c.BlendRgb(colorful.Color{R: gray, G: gray, B: gray}, float64(img.DebugShutter)).Clamped()
			}
			r, g, b := c.RGB255()
			off := out.PixOffset(x, y)
			out.Pix[off+0] = r
			out.Pix[off+1] = g
			out.Pix[off+2] = b
			out.Pix[off+3] = 255
		}
	}
	return out
}

func exteriorColor(frame *Frame, i int, c corgi.Coloring) colorful.Color {
	s := smoothStep(frame.Step[i], frame.R[i])
	hue := fractF(s*float64(c.ColorFrequency)*0.01 + float64(c.ColorOffset))
	value := clamp01(float64(c.Brightness))
	return colorful.Hsv(hue*360, clamp01(float64(c.Saturation)), value)
}

func interiorColor(frame *Frame, i int, c corgi.Coloring) colorful.Color {
	trap := clamp01(float64(frame.Orbit[i]))
	hue := fractF(trap*float64(c.ColorFrequency) + float64(c.ColorOffset))
	value := clamp01(float64(c.Brightness) * trap)
	return colorful.Hsv(hue*360, clamp01(float64(c.Saturation)), value)
}

// smoothStep removes the banding from the integer escape count using the
// standard log-log correction.
func smoothStep(step uint32, r float32) float64 {
	rr := math.Max(float64(r), 1.0001)
	nu := math.Log2(math.Max(math.Log2(rr), 1e-20))
	return float64(step) + 1 - nu
}

// glowFactor estimates the distance to the set boundary and turns it into
// a highlight that hugs the boundary at any zoom.
func glowFactor(frame *Frame, i int, spread float32, pixelSize float64) float64 {
	r := math.Max(float64(frame.R[i]), 1.0001)
	dr := math.Max(float64(frame.DR[i]), 1e-20)
	de := 2 * r * math.Log(r) / dr
	return math.Exp(-de / (pixelSize * math.Max(float64(spread), 1e-6)))
}

func fractF(x float64) float64 {
	f := x - math.Floor(x)
	if f < 0 {
		f += 1
	}
	return f
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
