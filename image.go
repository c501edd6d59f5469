package corgi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadMaxIter is returned by Image.Validate for a zero iteration budget.
var ErrBadMaxIter = errors.New("corgi: max_iter must be at least 1")

// Coloring is an opaque block of colouring parameters, passed through to the
// colour kernel unchanged. The core attaches no meaning to the fields.
type Coloring struct {
	Saturation     float32 `json:"saturation"`
	ColorFrequency float32 `json:"color_frequency"`
	ColorOffset    float32 `json:"color_offset"`
	GlowSpread     float32 `json:"glow_spread"`
	GlowIntensity  float32 `json:"glow_intensity"`
	Brightness     float32 `json:"brightness"`
}

// DefaultExternalColoring returns the colouring applied outside the set.
func DefaultExternalColoring() Coloring {
	return Coloring{
		Saturation:     1.0,
		ColorFrequency: 1.0,
		ColorOffset:    0.0,
		GlowSpread:     1.0,
		GlowIntensity:  1.0,
		Brightness:     2.0,
	}
}

// DefaultInternalColoring returns the colouring applied inside the set.
func DefaultInternalColoring() Coloring {
	return Coloring{
		Saturation:     1.0,
		ColorFrequency: 1.0,
		ColorOffset:    0.0,
		GlowSpread:     1.0,
		GlowIntensity:  1.0,
		Brightness:     1.0,
	}
}

// Image is a complete render request.
type Image struct {
	Viewport Viewport `json:"viewport"`

	// MaxIter is the iteration budget per pixel (and the reference orbit
	// length bound).
	MaxIter uint64 `json:"max_iter"`

	// ProbeLocation is the reference point for the perturbed path,
	// typically near or inside the viewport.
	ProbeLocation ComplexPoint `json:"probe_location"`

	// ExternalColoring and InternalColoring are forwarded to the colour
	// kernel for pixels outside and inside the set respectively.
	ExternalColoring Coloring `json:"external_coloring"`
	InternalColoring Coloring `json:"internal_coloring"`

	// Misc and DebugShutter are developer-facing knobs routed to the
	// shaders with no core invariants.
	Misc         float32 `json:"misc"`
	DebugShutter float32 `json:"debug_shutter"`
}

// DefaultImage returns the classic whole-set view: the cardioid centered at
// (-0.5, 0) with the probe on the center.
func DefaultImage() Image {
	return Image{
		Viewport: Viewport{
			Width:   512,
			Height:  512,
			Scaling: 1.0,
			Zoom:    -1.0,
			Center:  NewComplexPoint(53, -0.5, 0),
		},
		MaxIter:          1000,
		ProbeLocation:    NewComplexPoint(53, -0.5, 0),
		ExternalColoring: DefaultExternalColoring(),
		InternalColoring: DefaultInternalColoring(),
		Misc:             1.0,
	}
}

// Validate checks the request bounds.
func (img *Image) Validate() error {
	if err := img.Viewport.Validate(); err != nil {
		return err
	}
	if img.MaxIter < 1 {
		return ErrBadMaxIter
	}
	return nil
}

// Algorithm returns the iteration strategy this request needs.
func (img *Image) Algorithm() Algorithm {
	return AlgorithmFor(img.Viewport.Zoom)
}

// Equal reports whether two requests are identical, with arbitrary-precision
// values compared bit-for-bit at their declared precision.
func (img *Image) Equal(o *Image) bool {
	return img.Viewport.Equal(&o.Viewport) &&
		img.MaxIter == o.MaxIter &&
		img.ProbeLocation.Equal(o.ProbeLocation) &&
		img.ExternalColoring == o.ExternalColoring &&
		img.InternalColoring == o.InternalColoring &&
		img.Misc == o.Misc &&
		img.DebugShutter == o.DebugShutter
}

// MarshalText serialises the request as a JSON document, the on-disk format
// embedded into saved image metadata.
func (img *Image) MarshalText() ([]byte, error) {
	return json.MarshalIndent(img, "", "  ")
}

// ParseImage reads the JSON on-disk format back into an Image.
func ParseImage(data []byte) (Image, error) {
	var img Image
	if err := json.Unmarshal(data, &img); err != nil {
		return Image{}, fmt.Errorf("corgi: parse image settings: %w", err)
	}
	// Older settings files omit the probe; the view center is always a
	// valid reference point.
	if !img.ProbeLocation.IsSet() {
		img.ProbeLocation = img.Viewport.Center
	}
	if err := img.Validate(); err != nil {
		return Image{}, err
	}
	return img, nil
}
