package corgi

// ImageDiff records which pipeline stages must re-run to turn the last
// satisfied request into a new one. The diff is pure and total: missing a
// flag degrades to stale output, never to a crash, so each rule errs on the
// side of re-running.
type ImageDiff struct {
	// Resize: the pixel buffers and output texture need reallocating.
	Resize bool

	// Reprobe: the reference orbit must be recomputed.
	Reprobe bool

	// Recompute: the per-pixel iteration stage must re-run.
	Recompute bool

	// Recolor: the colour stage must re-run.
	Recolor bool
}

// Diff compares a new request against the previously satisfied one.
// A nil old image re-runs everything.
func Diff(old, new *Image) ImageDiff {
	if old == nil {
		return ImageDiff{Resize: true, Reprobe: true, Recompute: true, Recolor: true}
	}

	var d ImageDiff

	d.Resize = !new.Viewport.SizeEqual(&old.Viewport) || new.MaxIter != old.MaxIter

	// The perturbed path cannot start from a direct render's state; switching
	// into it forces a fresh orbit even if the probe itself is unchanged.
	algorithmSwitch := old.Algorithm() == AlgorithmDirect && new.Algorithm() == AlgorithmPerturbed
	d.Reprobe = new.MaxIter != old.MaxIter ||
		!new.ProbeLocation.Equal(old.ProbeLocation) ||
		algorithmSwitch ||
		d.Resize

	d.Recompute = !new.Viewport.Equal(&old.Viewport) ||
		new.MaxIter != old.MaxIter ||
		d.Reprobe

	d.Recolor = new.ExternalColoring != old.ExternalColoring ||
		new.InternalColoring != old.InternalColoring ||
		new.Misc != old.Misc ||
		new.DebugShutter != old.DebugShutter ||
		d.Recompute

	return d
}

// Any reports whether any stage needs to run at all.
func (d ImageDiff) Any() bool {
	return d.Resize || d.Reprobe || d.Recompute || d.Recolor
}
