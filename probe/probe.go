// Package probe computes the high-precision inputs of the perturbed render
// path: the reference orbit of a chosen point and the per-pixel delta grid.
//
// Everything here runs on the CPU in arbitrary precision; results are
// narrowed to float32 before they reach the GPU. The narrowing is deliberate:
// the perturbation delta stays small enough for float32 regardless of the
// absolute magnitude of the coordinates, so it absorbs the error.
package probe

import (
	"errors"
	"sync/atomic"

	corgi "github.com/KiranWells/corgi-sub000"
	"github.com/KiranWells/corgi-sub000/bigfloat"
	"github.com/KiranWells/corgi-sub000/internal/parallel"
)

// ErrCancelled is returned when the cooperative cancel flag interrupts a
// stage. It is not a failure; the orchestrator drops the work silently.
var ErrCancelled = errors.New("probe: cancelled")

// cancelStride is how many orbit iterations run between cancel checks.
const cancelStride = 256

// Orbit is a reference orbit and its derivative orbit, narrowed to float32.
// Both slices always have equal length, at most the iteration budget; the
// orbit ends early at the first iterate whose squared magnitude exceeds
// the escape radius.
type Orbit struct {
	// Z[n] is the orbit z_n of z <- z^2 + c, starting at z_0 = 0.
	Z [][2]float32

	// ZP[n] is the derivative orbit z'_{n+1} = 2*z_n*z'_n + 1, starting at
	// z'_0 = 1+i.
	ZP [][2]float32
}

// Len returns the orbit length.
func (o *Orbit) Len() int { return len(o.Z) }

// Probe iterates the reference point at Precision(zoom) bits and returns the
// narrowed orbit. The cancel flag (may be nil) is checked periodically;
// cancellation returns ErrCancelled and a partial orbit that must be
// discarded.
func Probe(loc corgi.ComplexPoint, maxIter uint64, zoom float64, cancel *atomic.Bool) (Orbit, error) {
	prec := corgi.Precision(zoom)

	cr := loc.X.WithPrec(prec)
	ci := loc.Y.WithPrec(prec)

	zr := bigfloat.New(prec, 0)
	zi := bigfloat.New(prec, 0)
	zpr := bigfloat.New(prec, 1)
	zpi := bigfloat.New(prec, 1)

	// Squares carried across iterations so the optimised update below needs
	// only three high-precision multiplies for z.
	sqr := bigfloat.New(prec, 0)
	sqi := bigfloat.New(prec, 0)

	orbit := Orbit{
		Z:  make([][2]float32, 0, min(maxIter, 1<<16)),
		ZP: make([][2]float32, 0, min(maxIter, 1<<16)),
	}
	orbit.Z = append(orbit.Z, [2]float32{0, 0})
	orbit.ZP = append(orbit.ZP, [2]float32{1, 1})

	for n := uint64(1); n < maxIter; n++ {
		if cancel != nil && n%cancelStride == 0 && cancel.Load() {
			return orbit, ErrCancelled
		}

		// z' = 2*z*z' + 1, using z before its own update.
		npr := zr.Mul(zpr).Sub(zi.Mul(zpi)).MulFloat64(2).AddFloat64(1)
		npi := zr.Mul(zpi).Add(zi.Mul(zpr)).MulFloat64(2)
		zpr, zpi = npr, npi

		// z = z^2 + c in the optimised form:
		//   z.i = 2*z.r*z.i + c.i
		//   z.r = r2 - i2 + c.r
		zi = zr.Add(zr).Mul(zi).Add(ci)
		zr = sqr.Sub(sqi).Add(cr)
		sqr = zr.Mul(zr)
		sqi = zi.Mul(zi)

		orbit.Z = append(orbit.Z, [2]float32{zr.Float32(), zi.Float32()})
		orbit.ZP = append(orbit.ZP, [2]float32{zpr.Float32(), zpi.Float32()})

		if sqr.Float64()+sqi.Float64() > corgi.EscapeRadius {
			break
		}
	}

	return orbit, nil
}

// DeltaGrid computes, for every buffer pixel, the narrowed initial
// perturbation c(x, y) - probeLocation. Intermediates run at twice the zoom
// precision so the bits that survive the narrowing to float32 are exact.
//
// Rows are computed in parallel on the pool. The result has
// BufferWidth*BufferHeight entries in row-major order.
func DeltaGrid(vp *corgi.Viewport, probeLoc corgi.ComplexPoint, pool *parallel.Pool, cancel *atomic.Bool) ([][2]float32, error) {
	prec := 2 * corgi.Precision(vp.Zoom)
	px := probeLoc.X.WithPrec(prec)
	py := probeLoc.Y.WithPrec(prec)

	bw := vp.BufferWidth()
	bh := vp.BufferHeight()
	grid := make([][2]float32, bw*bh)

	pool.Rows(bh, func(j int) {
		if cancel != nil && cancel.Load() {
			return
		}
		y := float64(j) / vp.Scaling
		for i := range bw {
			x := float64(i) / vp.Scaling
			c := vp.PlaneCoordsPrec(x, y, prec)
			grid[j*bw+i] = [2]float32{
				c.X.Sub(px).Float32(),
				c.Y.Sub(py).Float32(),
			}
		}
	})

	if cancel != nil && cancel.Load() {
		return nil, ErrCancelled
	}
	return grid, nil
}
