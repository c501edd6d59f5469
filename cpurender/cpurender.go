// Package cpurender iterates the fractal on the CPU with the same batch
// schedule and float32 arithmetic as the GPU kernels. It doubles as the
// fallback render path when no adapter is available and as the oracle the
// GPU pipeline is validated against.
package cpurender

import (
	"math"
	"sync/atomic"

	corgi "github.com/KiranWells/corgi-sub000"
	"github.com/KiranWells/corgi-sub000/internal/parallel"
	"github.com/KiranWells/corgi-sub000/probe"
)

// Frame holds the per-pixel iteration results, row-major over the buffer
// extent. It is the CPU mirror of the GPU storage buffers.
type Frame struct {
	Width  int
	Height int

	Step  []uint32  // escape iteration, or the budget if never escaped
	Orbit []float32 // orbit trap minimum magnitude
	R     []float32 // magnitude at termination
	DR    []float32 // derivative magnitude at termination
}

// NewFrame allocates a zeroed frame for the given buffer extent.
func NewFrame(width, height int) *Frame {
	n := width * height
	return &Frame{
		Width:  width,
		Height: height,
		Step:   make([]uint32, n),
		Orbit:  make([]float32, n),
		R:      make([]float32, n),
		DR:     make([]float32, n),
	}
}

// Renderer runs the iteration kernels over a worker pool. A zero batch
// size means the whole budget runs as one batch; tests use small batches
// to exercise the same state carry the GPU path relies on.
type Renderer struct {
	pool  *parallel.Pool
	batch int
}

// New creates a renderer. pool may be nil, in which case rows run
// serially.
func New(pool *parallel.Pool, batchSize int) *Renderer {
	return &Renderer{pool: pool, batch: batchSize}
}

// pixelState carries one pixel's iteration state between batches, the way
// the GPU keeps it in the delta_n and delta_p buffers.
type pixelState struct {
	zr, zi   float32 // delta for perturbed, z for direct
	pr, pi   float32 // derivative part
	trap     float32
	lastR    float32
	lastDR   float32
	step     uint32
	finished bool
}

const escapeRadius = float32(corgi.EscapeRadius)

// Perturbed iterates every pixel against the reference orbit. The grid
// must have one delta per buffer pixel. Cancellation is checked between
// batches.
func (rr *Renderer) Perturbed(img *corgi.Image, orbit probe.Orbit, grid [][2]float32, cancel *atomic.Bool) (*Frame, error) {
	bw := img.Viewport.BufferWidth()
	bh := img.Viewport.BufferHeight()
	total := orbit.Len()
	maxIter := uint32(total)

	states := initStates(bw*bh, maxIter, 0, 0)
	for off := 0; off < total; off += rr.batchLen(total) {
		if cancel != nil && cancel.Load() {
			return nil, probe.ErrCancelled
		}
		n := rr.batchLen(total)
		if off+n > total {
			n = total - off
		}
		rr.rows(bh, func(row int) {
			for x := 0; x < bw; x++ {
				i := row*bw + x
				st := &states[i]
				if st.finished {
					continue
				}
				perturbBatch(st, grid[i], orbit, off, n, maxIter)
			}
		})
	}
	return statesToFrame(states, bw, bh), nil
}

// Direct iterates z = z*z + c per pixel, with c offset from the reference
// point by the same grid the perturbed path uses.
func (rr *Renderer) Direct(img *corgi.Image, grid [][2]float32, cancel *atomic.Bool) (*Frame, error) {
	bw := img.Viewport.BufferWidth()
	bh := img.Viewport.BufferHeight()
	total := int(img.MaxIter)
	maxIter := uint32(total)
	cx := img.ProbeLocation.X.Float32()
	cy := img.ProbeLocation.Y.Float32()

	states := initStates(bw*bh, maxIter, 1, 1)
	for off := 0; off < total; off += rr.batchLen(total) {
		if cancel != nil && cancel.Load() {
			return nil, probe.ErrCancelled
		}
		n := rr.batchLen(total)
		if off+n > total {
			n = total - off
		}
		rr.rows(bh, func(row int) {
			for x := 0; x < bw; x++ {
				i := row*bw + x
				st := &states[i]
				if st.finished {
					continue
				}
				directBatch(st, cx+grid[i][0], cy+grid[i][1], off, n, maxIter)
			}
		})
	}
	return statesToFrame(states, bw, bh), nil
}

func (rr *Renderer) batchLen(total int) int {
	if rr.batch <= 0 {
		return total
	}
	return rr.batch
}

func (rr *Renderer) rows(n int, fn func(row int)) {
	if rr.pool != nil {
		rr.pool.Rows(n, fn)
		return
	}
	for row := 0; row < n; row++ {
		fn(row)
	}
}

func initStates(n int, maxIter uint32, pr, pi float32) []pixelState {
	states := make([]pixelState, n)
	for i := range states {
		states[i].pr = pr
		states[i].pi = pi
		states[i].trap = float32(math.Inf(1))
		states[i].step = maxIter
	}
	return states
}

// perturbBatch advances one pixel through iterations [off, off+n). The
// recurrences match perturb.wgsl term for term.
func perturbBatch(st *pixelState, d0 [2]float32, orbit probe.Orbit, off, n int, maxIter uint32) {
	dnr, dni := st.zr, st.zi
	dpr, dpi := st.pr, st.pi
	for k := 0; k < n; k++ {
		zr, zi := orbit.Z[off+k][0], orbit.Z[off+k][1]
		zpr, zpi := orbit.ZP[off+k][0], orbit.ZP[off+k][1]
		yr := zr + dnr
		yi := zi + dni
		r2 := yr*yr + yi*yi
		st.lastR = sqrt32(r2)
		ypr := zpr + dpr
		ypi := zpi + dpi
		st.lastDR = sqrt32(ypr*ypr + ypi*ypi)
		if r2 > escapeRadius {
			st.step = uint32(off + k)
			st.finished = true
			break
		}
		if off+k > 0 && st.lastR < st.trap {
			st.trap = st.lastR
		}
		// delta_p' = 2*(z*delta_p + delta*z' + delta*delta_p)
		npr := 2 * (zr*dpr - zi*dpi + dnr*zpr - dni*zpi + dnr*dpr - dni*dpi)
		npi := 2 * (zr*dpi + zi*dpr + dnr*zpi + dni*zpr + dnr*dpi + dni*dpr)
		// delta' = (2*z + delta)*delta + delta_0
		tr := 2*zr + dnr
		ti := 2*zi + dni
		ndr := tr*dnr - ti*dni + d0[0]
		ndi := tr*dni + ti*dnr + d0[1]
		dpr, dpi = npr, npi
		dnr, dni = ndr, ndi
	}
	st.zr, st.zi = dnr, dni
	st.pr, st.pi = dpr, dpi
	if st.step == maxIter && uint32(off+n) == maxIter {
		st.finished = true
	}
}

// directBatch advances one pixel of plain iteration through [off, off+n).
func directBatch(st *pixelState, cr, ci float32, off, n int, maxIter uint32) {
	zr, zi := st.zr, st.zi
	pr, pi := st.pr, st.pi
	for k := 0; k < n; k++ {
		r2 := zr*zr + zi*zi
		st.lastR = sqrt32(r2)
		st.lastDR = sqrt32(pr*pr + pi*pi)
		if r2 > escapeRadius {
			st.step = uint32(off + k)
			st.finished = true
			break
		}
		if off+k > 0 && st.lastR < st.trap {
			st.trap = st.lastR
		}
		npr := 2*(zr*pr-zi*pi) + 1
		npi := 2 * (zr*pi + zi*pr)
		nzr := zr*zr - zi*zi + cr
		nzi := 2*zr*zi + ci
		pr, pi = npr, npi
		zr, zi = nzr, nzi
	}
	st.zr, st.zi = zr, zi
	st.pr, st.pi = pr, pi
	if st.step == maxIter && uint32(off+n) == maxIter {
		st.finished = true
	}
}

func statesToFrame(states []pixelState, bw, bh int) *Frame {
	f := NewFrame(bw, bh)
	for i := range states {
		f.Step[i] = states[i].step
		trap := states[i].trap
		if math.IsInf(float64(trap), 1) {
			trap = 0
		}
		f.Orbit[i] = trap
		f.R[i] = states[i].lastR
		f.DR[i] = states[i].lastDR
	}
	return f
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
