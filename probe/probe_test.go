package probe

import (
	"math"
	"sync/atomic"
	"testing"

	corgi "github.com/KiranWells/corgi-sub000"
	"github.com/KiranWells/corgi-sub000/internal/parallel"
)

func TestProbe_LengthInvariants(t *testing.T) {
	tests := []struct {
		name    string
		x, y    float64
		maxIter uint64
	}{
		{"inside cardioid", -0.5, 0, 500},
		{"escapes fast", 2, 2, 500},
		{"near boundary", -0.7435, 0.1314, 2000},
		{"single iteration", -0.5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orbit, err := Probe(corgi.NewComplexPoint(53, tt.x, tt.y), tt.maxIter, 0, nil)
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if len(orbit.Z) != len(orbit.ZP) {
				t.Errorf("len(Z) = %d, len(ZP) = %d, want equal", len(orbit.Z), len(orbit.ZP))
			}
			if uint64(orbit.Len()) > tt.maxIter {
				t.Errorf("orbit length %d exceeds max_iter %d", orbit.Len(), tt.maxIter)
			}
			// Every element but the last must be below the escape radius;
			// the last is either below it or the first to exceed it.
			for n, z := range orbit.Z[:orbit.Len()-1] {
				if mag2(z) > corgi.EscapeRadius {
					t.Errorf("non-terminal iterate %d escaped: |z|^2 = %v", n, mag2(z))
				}
			}
		})
	}
}

func TestProbe_InsidePointRunsFullBudget(t *testing.T) {
	orbit, err := Probe(corgi.NewComplexPoint(53, -0.5, 0), 1000, 0, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if orbit.Len() != 1000 {
		t.Errorf("interior orbit length = %d, want 1000", orbit.Len())
	}
	last := orbit.Z[orbit.Len()-1]
	if mag2(last) > corgi.EscapeRadius {
		t.Errorf("interior orbit escaped: |z|^2 = %v", mag2(last))
	}
}

func TestProbe_EscapingPointTerminatesEarly(t *testing.T) {
	orbit, err := Probe(corgi.NewComplexPoint(53, 2, 2), 1000, 0, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if orbit.Len() >= 10 {
		t.Errorf("orbit of (2,2) has %d iterates, want < 10", orbit.Len())
	}
	last := orbit.Z[orbit.Len()-1]
	if mag2(last) <= corgi.EscapeRadius {
		t.Errorf("terminal iterate did not escape: |z|^2 = %v", mag2(last))
	}
}

// TestProbe_MatchesFloat64Iteration cross-checks the arbitrary-precision
// orbit against a plain float64 iteration at shallow zoom, where both are
// exact to float32.
func TestProbe_MatchesFloat64Iteration(t *testing.T) {
	const cx, cy = -0.7435, 0.1314
	orbit, err := Probe(corgi.NewComplexPoint(53, cx, cy), 200, 0, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	zr, zi := 0.0, 0.0
	for n := 1; n < orbit.Len(); n++ {
		zr, zi = zr*zr-zi*zi+cx, 2*zr*zi+cy
		if got, want := orbit.Z[n][0], float32(zr); got != want {
			t.Fatalf("Z[%d].re = %v, want %v", n, got, want)
		}
		if got, want := orbit.Z[n][1], float32(zi); got != want {
			t.Fatalf("Z[%d].im = %v, want %v", n, got, want)
		}
	}
}

// TestProbe_DerivativeOrbit checks z'_{n+1} = 2 z_n z'_n + 1 against float64.
func TestProbe_DerivativeOrbit(t *testing.T) {
	const cx, cy = -0.7435, 0.1314
	orbit, err := Probe(corgi.NewComplexPoint(53, cx, cy), 100, 0, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	if orbit.ZP[0] != [2]float32{1, 1} {
		t.Fatalf("ZP[0] = %v, want (1, 1)", orbit.ZP[0])
	}

	zr, zi := 0.0, 0.0
	dr, di := 1.0, 1.0
	for n := 1; n < orbit.Len(); n++ {
		dr, di = 2*(zr*dr-zi*di)+1, 2*(zr*di+zi*dr)
		zr, zi = zr*zr-zi*zi+cx, 2*zr*zi+cy
		if got, want := orbit.ZP[n][0], float32(dr); got != want {
			t.Fatalf("ZP[%d].re = %v, want %v", n, got, want)
		}
		if got, want := orbit.ZP[n][1], float32(di); got != want {
			t.Fatalf("ZP[%d].im = %v, want %v", n, got, want)
		}
	}
}

func TestProbe_Cancellation(t *testing.T) {
	var cancel atomic.Bool
	cancel.Store(true)
	_, err := Probe(corgi.NewComplexPoint(53, -0.5, 0), 100000, 0, &cancel)
	if err != ErrCancelled {
		t.Errorf("Probe with cancel set returned %v, want ErrCancelled", err)
	}
}

func testViewport(zoom float64) *corgi.Viewport {
	return &corgi.Viewport{
		Width: 64, Height: 64, Scaling: 1, Zoom: zoom,
		Center: corgi.NewComplexPoint(corgi.Precision(zoom), -0.5, 0),
	}
}

func TestDeltaGrid_Size(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	vp := testViewport(2)
	vp.Scaling = 1.5
	grid, err := DeltaGrid(vp, corgi.NewComplexPoint(53, -0.5, 0), pool, nil)
	if err != nil {
		t.Fatalf("DeltaGrid: %v", err)
	}
	if want := vp.BufferWidth() * vp.BufferHeight(); len(grid) != want {
		t.Errorf("len(grid) = %d, want %d", len(grid), want)
	}
}

func TestDeltaGrid_Idempotent(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	vp := testViewport(30)
	loc := vp.Center
	a, err := DeltaGrid(vp, loc, pool, nil)
	if err != nil {
		t.Fatalf("DeltaGrid: %v", err)
	}
	b, err := DeltaGrid(vp, loc, pool, nil)
	if err != nil {
		t.Fatalf("DeltaGrid: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("grid[%d] differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestDeltaGrid_BoundedByZoomExtent(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	for _, zoom := range []float64{0, 13, 40} {
		vp := testViewport(zoom)
		grid, err := DeltaGrid(vp, vp.Center, pool, nil)
		if err != nil {
			t.Fatalf("DeltaGrid: %v", err)
		}
		// With the probe at the center, |delta| is at most the diagonal
		// half-extent sqrt(2)*2^-zoom.
		limit := math.Sqrt2 * math.Exp2(-zoom) * 1.0001
		for i, d := range grid {
			m := math.Hypot(float64(d[0]), float64(d[1]))
			if m > limit {
				t.Fatalf("zoom %v: |grid[%d]| = %v exceeds %v", zoom, i, m, limit)
			}
		}
	}
}

func TestDeltaGrid_DeepZoomNonDegenerate(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	// At zoom 40 a float64-only pipeline would collapse neighbouring pixels
	// into identical deltas; the doubled-precision path must not.
	vp := testViewport(40)
	grid, err := DeltaGrid(vp, vp.Center, pool, nil)
	if err != nil {
		t.Fatalf("DeltaGrid: %v", err)
	}
	bw := vp.BufferWidth()
	if grid[0] == grid[1] {
		t.Error("adjacent pixels have identical deltas at deep zoom")
	}
	if grid[0] == grid[bw] {
		t.Error("vertically adjacent pixels have identical deltas at deep zoom")
	}
}

func TestDeltaGrid_Cancellation(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	var cancel atomic.Bool
	cancel.Store(true)
	vp := testViewport(2)
	if _, err := DeltaGrid(vp, vp.Center, pool, &cancel); err != ErrCancelled {
		t.Errorf("DeltaGrid with cancel set returned %v, want ErrCancelled", err)
	}
}

func mag2(z [2]float32) float64 {
	return float64(z[0])*float64(z[0]) + float64(z[1])*float64(z[1])
}
