package worker

import (
	"errors"
	"image"
	"sync/atomic"

	"github.com/KiranWells/corgi-sub000/cpurender"
	"github.com/KiranWells/corgi-sub000/internal/gpu"
	"github.com/KiranWells/corgi-sub000/internal/parallel"
	"github.com/KiranWells/corgi-sub000/probe"

	corgi "github.com/KiranWells/corgi-sub000"
)

// errNoFrame is returned when a save is requested before any render
// completed on the target.
var errNoFrame = errors.New("worker: no completed render to save")

// renderTarget is one render destination (preview or output). The GPU and
// CPU fallback implementations share it so the orchestration logic does
// not care which path is active.
type renderTarget interface {
	// resize reallocates the per-pixel state for the image's buffer extent.
	resize(img *corgi.Image) error
	// uploadGrid installs the per-pixel delta grid.
	uploadGrid(grid [][2]float32) error
	// iterate runs the iteration kernel chosen by the image's algorithm.
	iterate(img *corgi.Image, orbit probe.Orbit, progress gpu.ProgressFunc, cancel *atomic.Bool) error
	// colorize maps iteration results to displayable pixels.
	colorize(img *corgi.Image) error
	// texture returns the shared display texture, nil on the CPU path.
	texture() *gpu.SharedTexture
	// pixels returns the last colorized frame as an image, reading back
	// from the GPU when needed.
	pixels() (*image.RGBA, error)
	close()
}

// gpuTarget renders through the compute pipelines.
type gpuTarget struct {
	res *gpu.Resources
}

func newGPUTarget(ctx *gpu.Context, label string, iterBatch int) (*gpuTarget, error) {
	res, err := gpu.NewResources(ctx, gpu.Options{Label: label, IterBatch: iterBatch})
	if err != nil {
		return nil, err
	}
	return &gpuTarget{res: res}, nil
}

func (t *gpuTarget) resize(img *corgi.Image) error {
	return t.res.Resize(img.Viewport.BufferWidth(), img.Viewport.BufferHeight())
}

func (t *gpuTarget) uploadGrid(grid [][2]float32) error {
	return t.res.UploadDeltaGrid(grid)
}

func (t *gpuTarget) iterate(img *corgi.Image, orbit probe.Orbit, progress gpu.ProgressFunc, cancel *atomic.Bool) error {
	if img.Algorithm() == corgi.AlgorithmDirect {
		return t.res.RunDirect(img, progress, cancel)
	}
	return t.res.RunPerturbed(img, orbit, progress, cancel)
}

func (t *gpuTarget) colorize(img *corgi.Image) error {
	return t.res.RunColor(img)
}

func (t *gpuTarget) texture() *gpu.SharedTexture { return t.res.Texture() }

func (t *gpuTarget) pixels() (*image.RGBA, error) {
	data, err := t.res.TextureData()
	if err != nil {
		return nil, err
	}
	w, h := t.res.Texture().Size()
	return &image.RGBA{Pix: data, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

func (t *gpuTarget) close() { t.res.Close() }

// cpuTarget renders through the cpurender oracle when no adapter exists.
type cpuTarget struct {
	renderer *cpurender.Renderer
	width    int
	height   int
	grid     [][2]float32
	frame    *cpurender.Frame
	img      *image.RGBA
}

func newCPUTarget(pool *parallel.Pool, iterBatch int) *cpuTarget {
	return &cpuTarget{renderer: cpurender.New(pool, iterBatch)}
}

func (t *cpuTarget) resize(img *corgi.Image) error {
	t.width = img.Viewport.BufferWidth()
	t.height = img.Viewport.BufferHeight()
	t.grid = nil
	t.frame = nil
	t.img = nil
	return nil
}

func (t *cpuTarget) uploadGrid(grid [][2]float32) error {
	t.grid = grid
	return nil
}

func (t *cpuTarget) iterate(img *corgi.Image, orbit probe.Orbit, progress gpu.ProgressFunc, cancel *atomic.Bool) error {
	var frame *cpurender.Frame
	var err error
	if img.Algorithm() == corgi.AlgorithmDirect {
		frame, err = t.renderer.Direct(img, t.grid, cancel)
	} else {
		frame, err = t.renderer.Perturbed(img, orbit, t.grid, cancel)
	}
	if err != nil {
		return err
	}
	t.frame = frame
	if progress != nil {
		progress(img.MaxIter, img.MaxIter)
	}
	return nil
}

func (t *cpuTarget) colorize(img *corgi.Image) error {
	if t.frame == nil {
		return errNoFrame
	}
	t.img = cpurender.Colorize(t.frame, img)
	return nil
}

func (t *cpuTarget) texture() *gpu.SharedTexture { return nil }

func (t *cpuTarget) pixels() (*image.RGBA, error) {
	if t.img == nil {
		return nil, errNoFrame
	}
	return t.img, nil
}

func (t *cpuTarget) close() {}
