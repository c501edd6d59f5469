package corgi

// Landmark is a named view preset.
type Landmark struct {
	Name    string
	X, Y    string // base-10 center coordinates
	Zoom    float64
	MaxIter uint64
}

// Landmarks are classic regions of the Mandelbrot set, usable as CLI presets
// and as stable deep-zoom test targets.
var Landmarks = []Landmark{
	{Name: "overview", X: "-0.5", Y: "0", Zoom: -1, MaxIter: 1000},
	{Name: "seahorse-valley", X: "-0.75", Y: "0.1", Zoom: 4, MaxIter: 2000},
	{Name: "elephant-valley", X: "-1.80", Y: "-0.06", Zoom: 4, MaxIter: 2000},
	{Name: "spiral-minibrot", X: "-0.74275", Y: "0.13175", Zoom: 10, MaxIter: 5000},
	{Name: "triple-spiral", X: "-0.7465", Y: "0.0965", Zoom: 9, MaxIter: 5000},
	{Name: "dragon-valley", X: "-0.7375", Y: "0.1825", Zoom: 8, MaxIter: 5000},
	{Name: "needle-minibrot", X: "-1.7490", Y: "0", Zoom: 30, MaxIter: 20000},
}

// FindLandmark returns the named preset, or false.
func FindLandmark(name string) (Landmark, bool) {
	for _, l := range Landmarks {
		if l.Name == name {
			return l, true
		}
	}
	return Landmark{}, false
}

// Image builds a full render request for the landmark at the given pixel
// size, with the probe on the view center.
func (l Landmark) Image(width, height int) (Image, error) {
	img := DefaultImage()
	img.Viewport.Width = width
	img.Viewport.Height = height
	img.Viewport.Zoom = l.Zoom
	img.MaxIter = l.MaxIter

	center, err := ParseComplexPoint(Precision(l.Zoom), l.X, l.Y)
	if err != nil {
		return Image{}, err
	}
	img.Viewport.Center = center
	img.ProbeLocation = center
	return img, img.Validate()
}
