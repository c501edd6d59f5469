package corgi

import (
	"errors"
	"fmt"
	"math"

	"github.com/KiranWells/corgi-sub000/bigfloat"
)

// EscapeRadius is the squared-magnitude threshold beyond which an orbit is
// provably divergent.
const EscapeRadius = 1e10

// PerturbZoomThreshold is the zoom above which float32 can no longer resolve
// individual pixels in absolute coordinates: at plane extent 2^-zoom a
// float32 mantissa (23 bits) runs out near zoom 13, so deeper views must use
// the perturbed path.
const PerturbZoomThreshold = 13.0

// Viewport size bounds.
const (
	MinViewportSide = 10
	MinViewportArea = 100
	// MaxBufferPixels bounds width*scaling * height*scaling; beyond this the
	// per-pixel GPU buffers exceed what common adapters allocate.
	MaxBufferPixels = 20_000_000
)

// Viewport validation errors.
var (
	ErrViewportTooSmall = errors.New("corgi: viewport is below the minimum size")
	ErrViewportTooBig   = errors.New("corgi: viewport buffer exceeds the pixel limit")
	ErrBadScaling       = errors.New("corgi: scaling must be positive")
)

// Precision returns the number of mantissa bits required for arbitrary
// precision values participating in probe or delta-grid computation at the
// given zoom: max(53, ceil(1.5*zoom)).
func Precision(zoom float64) uint {
	// Compare in float64: a negative zoom converted to uint would wrap.
	p := math.Ceil(zoom * 1.5)
	if p < bigfloat.MinPrecision {
		return bigfloat.MinPrecision
	}
	return uint(p)
}

// Algorithm selects between the two GPU iteration strategies.
type Algorithm int

const (
	// AlgorithmDirect iterates z = z^2 + c per pixel in float32, with no
	// reference orbit. Valid while float32 resolves the pixel grid.
	AlgorithmDirect Algorithm = iota

	// AlgorithmPerturbed iterates a per-pixel delta against a shared
	// high-precision reference orbit.
	AlgorithmPerturbed
)

// String returns the algorithm's name.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmDirect:
		return "direct"
	case AlgorithmPerturbed:
		return "perturbed"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// AlgorithmFor returns the iteration strategy for a zoom depth.
func AlgorithmFor(zoom float64) Algorithm {
	if zoom >= PerturbZoomThreshold {
		return AlgorithmPerturbed
	}
	return AlgorithmDirect
}

// ComplexPoint is a point in the complex plane held at arbitrary precision.
type ComplexPoint struct {
	X bigfloat.Float `json:"x"`
	Y bigfloat.Float `json:"y"`
}

// NewComplexPoint builds a point from float64 components at the given
// precision.
func NewComplexPoint(prec uint, x, y float64) ComplexPoint {
	return ComplexPoint{X: bigfloat.New(prec, x), Y: bigfloat.New(prec, y)}
}

// ParseComplexPoint reads base-10 components at the given precision.
func ParseComplexPoint(prec uint, x, y string) (ComplexPoint, error) {
	px, err := bigfloat.Parse(prec, x)
	if err != nil {
		return ComplexPoint{}, err
	}
	py, err := bigfloat.Parse(prec, y)
	if err != nil {
		return ComplexPoint{}, err
	}
	return ComplexPoint{X: px, Y: py}, nil
}

// Equal reports bit-for-bit equality at the declared precisions.
func (p ComplexPoint) Equal(q ComplexPoint) bool {
	return p.X.Equal(q.X) && p.Y.Equal(q.Y)
}

// IsSet reports whether both components were explicitly constructed or
// decoded, rather than left as zero values.
func (p ComplexPoint) IsSet() bool {
	return p.X.IsSet() && p.Y.IsSet()
}

// Viewport describes what rectangle of the complex plane maps to what pixel
// rectangle.
//
// The plane-to-pixel map is
//
//	c(x, y) = center + 2^-zoom * (2*(x/width)-1, 2*(y/height)-1) * aspectScale
//
// where aspectScale is (a, 1) for aspect ratio a < 1 and (1, 1/a) otherwise,
// so the shorter image axis always spans the full 2^(1-zoom) plane extent.
type Viewport struct {
	// Width and Height are the logical image size in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Scaling is the oversampling factor; the GPU buffer extent is
	// (Width*Scaling, Height*Scaling) and the result is downsampled on
	// export.
	Scaling float64 `json:"scaling"`

	// Zoom sets the magnification to 2^Zoom; larger is deeper.
	Zoom float64 `json:"zoom"`

	// Center is the plane location of the image center.
	Center ComplexPoint `json:"center"`
}

// Validate checks the size bounds. A zero-valued or nonsensical viewport is
// rejected before any buffer allocation happens.
func (v *Viewport) Validate() error {
	if v.Width < MinViewportSide || v.Height < MinViewportSide || v.Width*v.Height < MinViewportArea {
		return fmt.Errorf("%w: %dx%d", ErrViewportTooSmall, v.Width, v.Height)
	}
	if v.Scaling <= 0 {
		return fmt.Errorf("%w: %v", ErrBadScaling, v.Scaling)
	}
	if v.BufferWidth()*v.BufferHeight() > MaxBufferPixels {
		return fmt.Errorf("%w: %dx%d at scaling %v", ErrViewportTooBig, v.Width, v.Height, v.Scaling)
	}
	return nil
}

// BufferWidth returns the oversampled buffer width in pixels.
func (v *Viewport) BufferWidth() int {
	return int(math.Ceil(float64(v.Width) * v.Scaling))
}

// BufferHeight returns the oversampled buffer height in pixels.
func (v *Viewport) BufferHeight() int {
	return int(math.Ceil(float64(v.Height) * v.Scaling))
}

// AspectRatio returns width/height.
func (v *Viewport) AspectRatio() float64 {
	return float64(v.Width) / float64(v.Height)
}

// aspectScale returns the per-axis plane scale factors.
func (v *Viewport) aspectScale() (float64, float64) {
	a := v.AspectRatio()
	if a < 1 {
		return a, 1
	}
	return 1, 1 / a
}

// PlaneCoords maps a (possibly fractional) pixel position in logical image
// coordinates to the complex plane at Precision(zoom).
func (v *Viewport) PlaneCoords(x, y float64) ComplexPoint {
	return v.PlaneCoordsPrec(x, y, Precision(v.Zoom))
}

// PlaneCoordsPrec is PlaneCoords at an explicit precision. The delta grid
// uses doubled precision here so that the low-order bits surviving the
// narrowing to float32 are exact.
func (v *Viewport) PlaneCoordsPrec(x, y float64, prec uint) ComplexPoint {
	scale := bigfloat.Pow2(prec, -v.Zoom)
	ax, ay := v.aspectScale()

	nx := (2*(x/float64(v.Width)) - 1) * ax
	ny := (2*(y/float64(v.Height)) - 1) * ay

	re := scale.MulFloat64(nx).Add(v.Center.X.WithPrec(prec))
	im := scale.MulFloat64(ny).Add(v.Center.Y.WithPrec(prec))
	return ComplexPoint{X: re, Y: im}
}

// Equal reports whether two viewports describe the identical render extent,
// including bit-for-bit center equality.
func (v *Viewport) Equal(o *Viewport) bool {
	return v.Width == o.Width &&
		v.Height == o.Height &&
		v.Scaling == o.Scaling &&
		v.Zoom == o.Zoom &&
		v.Center.Equal(o.Center)
}

// SizeEqual reports whether only the pixel dimensions match; used by the
// resize decision, which does not care about pan or zoom.
func (v *Viewport) SizeEqual(o *Viewport) bool {
	return v.Width == o.Width && v.Height == o.Height && v.Scaling == o.Scaling
}
