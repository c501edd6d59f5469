package corgi

import "testing"

func TestDiff_EqualImages(t *testing.T) {
	a := DefaultImage()
	b := DefaultImage()
	d := Diff(&a, &b)
	if d.Any() {
		t.Errorf("Diff of equal images = %+v, want all false", d)
	}
}

func TestDiff_NilOld(t *testing.T) {
	img := DefaultImage()
	d := Diff(nil, &img)
	want := ImageDiff{Resize: true, Reprobe: true, Recompute: true, Recolor: true}
	if d != want {
		t.Errorf("Diff(nil, img) = %+v, want %+v", d, want)
	}
}

// TestDiff_SingleFieldChanges walks every mutable request field and checks
// the stage cascade of the diff table.
func TestDiff_SingleFieldChanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Image)
		want   ImageDiff
	}{
		{
			name:   "width",
			mutate: func(i *Image) { i.Viewport.Width = 600 },
			want:   ImageDiff{Resize: true, Reprobe: true, Recompute: true, Recolor: true},
		},
		{
			name:   "height",
			mutate: func(i *Image) { i.Viewport.Height = 600 },
			want:   ImageDiff{Resize: true, Reprobe: true, Recompute: true, Recolor: true},
		},
		{
			name:   "scaling",
			mutate: func(i *Image) { i.Viewport.Scaling = 2 },
			want:   ImageDiff{Resize: true, Reprobe: true, Recompute: true, Recolor: true},
		},
		{
			name:   "max_iter",
			mutate: func(i *Image) { i.MaxIter = 2000 },
			want:   ImageDiff{Resize: true, Reprobe: true, Recompute: true, Recolor: true},
		},
		{
			name:   "probe location",
			mutate: func(i *Image) { i.ProbeLocation = NewComplexPoint(53, -0.4, 0.1) },
			want:   ImageDiff{Reprobe: true, Recompute: true, Recolor: true},
		},
		{
			name:   "pan (shallow)",
			mutate: func(i *Image) { i.Viewport.Center = NewComplexPoint(53, -0.4, 0.1) },
			want:   ImageDiff{Recompute: true, Recolor: true},
		},
		{
			name:   "zoom within direct range",
			mutate: func(i *Image) { i.Viewport.Zoom = 2 },
			want:   ImageDiff{Recompute: true, Recolor: true},
		},
		{
			name:   "zoom crossing into perturbed",
			mutate: func(i *Image) { i.Viewport.Zoom = 20 },
			want:   ImageDiff{Reprobe: true, Recompute: true, Recolor: true},
		},
		{
			name:   "external coloring",
			mutate: func(i *Image) { i.ExternalColoring.Brightness = 3 },
			want:   ImageDiff{Recolor: true},
		},
		{
			name:   "internal coloring",
			mutate: func(i *Image) { i.InternalColoring.Saturation = 0.5 },
			want:   ImageDiff{Recolor: true},
		},
		{
			name:   "misc",
			mutate: func(i *Image) { i.Misc = 2 },
			want:   ImageDiff{Recolor: true},
		},
		{
			name:   "debug shutter",
			mutate: func(i *Image) { i.DebugShutter = 1 },
			want:   ImageDiff{Recolor: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := DefaultImage()
			next := DefaultImage()
			tt.mutate(&next)
			got := Diff(&old, &next)
			if got != tt.want {
				t.Errorf("Diff = %+v, want %+v", got, tt.want)
			}
			if !got.Any() {
				t.Error("a changed field flipped no flag")
			}
		})
	}
}

func TestDiff_PerturbedToDirectNoReprobe(t *testing.T) {
	old := DefaultImage()
	old.Viewport.Zoom = 20
	next := DefaultImage()
	next.Viewport.Zoom = 2
	d := Diff(&old, &next)
	if d.Reprobe {
		t.Error("leaving the perturbed path should not force a reprobe")
	}
	if !d.Recompute {
		t.Error("zoom change must recompute")
	}
}
