package worker

import (
	"errors"

	"github.com/KiranWells/corgi-sub000/internal/gpu"
	"github.com/KiranWells/corgi-sub000/probe"

	corgi "github.com/KiranWells/corgi-sub000"
)

// renderSlot renders the slot's pending settings and reports the outcome.
// A cancelled render keeps the settings pending; the newest state renders
// on the next loop pass.
func (w *Worker) renderSlot(s *slot) {
	img := s.pending
	err := w.render(s, img)
	switch {
	case err == nil:
		s.pending = nil
		msg := FrameReady{Output: s.output}
		if s.rt.texture() == nil {
			pix, perr := s.rt.pixels()
			if perr != nil {
				w.sendBlocking(Error{Err: perr})
				return
			}
			msg.Pixels = pix
		}
		w.sendBlocking(msg)
	case isCancelled(err):
		corgi.Logger().Debug("worker: render superseded", "output", s.output)
	default:
		w.sendBlocking(Error{Err: err})
	}
}

// isCancelled matches the cooperative cancellation sentinels of the CPU
// and GPU stages.
func isCancelled(err error) bool {
	return errors.Is(err, probe.ErrCancelled) || errors.Is(err, gpu.ErrCancelled)
}

// render runs only the stages the settings change requires: resize,
// reference orbit, delta grid, iteration, colouring. Any failure clears
// the tracked state so the next attempt starts from scratch.
func (w *Worker) render(s *slot, img *corgi.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	diff := corgi.Diff(s.current, img)
	if !diff.Any() {
		return nil
	}
	// Until every stage lands, the buffers hold a mix of old and new.
	s.current = nil

	if diff.Resize {
		w.sendStatus("allocating buffers", 0)
		if err := s.rt.resize(img); err != nil {
			return err
		}
		s.gridFor = nil
		w.announceViewport(s, img)
	}

	if img.Algorithm() == corgi.AlgorithmPerturbed && (diff.Reprobe || !s.hasOrbit) {
		w.sendStatus("computing reference orbit", 0)
		s.hasOrbit = false
		orbit, err := probe.Probe(img.ProbeLocation, img.MaxIter, img.Viewport.Zoom, &w.cancel)
		if err != nil {
			return err
		}
		s.orbit = orbit
		s.hasOrbit = true
		w.sendStatus("computing reference orbit", 1)
	}

	if diff.Recompute {
		if s.needGrid(img) {
			w.sendStatus("computing delta grid", 0)
			grid, err := probe.DeltaGrid(&img.Viewport, img.ProbeLocation, w.pool, &w.cancel)
			if err != nil {
				return err
			}
			if err := s.rt.uploadGrid(grid); err != nil {
				return err
			}
			s.gridFor = img
		}
		progress := func(done, total uint64) {
			w.sendStatus("iterating", float64(done)/float64(total))
		}
		if err := s.rt.iterate(img, s.orbit, progress, &w.cancel); err != nil {
			return err
		}
	}

	if diff.Recolor {
		w.sendStatus("coloring", 1)
		if err := s.rt.colorize(img); err != nil {
			return err
		}
	}

	s.current = img
	return nil
}

// needGrid reports whether the uploaded delta grid is stale for img. The
// grid depends only on the viewport and the reference point; a cancelled
// render that retries with the same geometry skips the recompute. Any
// resize clears gridFor because it reallocates the buffer under the grid.
func (s *slot) needGrid(img *corgi.Image) bool {
	if s.gridFor == nil {
		return true
	}
	return !s.gridFor.Viewport.Equal(&img.Viewport) ||
		!s.gridFor.ProbeLocation.Equal(img.ProbeLocation)
}

func (w *Worker) announceViewport(s *slot, img *corgi.Image) {
	if s.output {
		w.sendBlocking(NewOutputViewport{
			Texture: s.rt.texture(),
			Width:   img.Viewport.Width,
			Height:  img.Viewport.Height,
		})
		return
	}
	w.sendBlocking(NewPreviewViewport{
		Texture: s.rt.texture(),
		Width:   img.Viewport.Width,
		Height:  img.Viewport.Height,
	})
}
