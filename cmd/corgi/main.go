// Command corgi renders Mandelbrot set images from the command line.
//
// A render target comes from either a named landmark preset or a settings
// JSON file previously saved by corgi. The result is written as PNG or JPEG
// with the full settings embedded, so any output can be re-rendered later
// with -settings.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	corgi "github.com/KiranWells/corgi-sub000"
	"github.com/KiranWells/corgi-sub000/export"
	"github.com/KiranWells/corgi-sub000/worker"
)

func main() {
	var (
		landmark = flag.String("landmark", "overview", "named view preset (see -list)")
		list     = flag.Bool("list", false, "list landmark presets and exit")
		settings = flag.String("settings", "", "render from a settings JSON file or a previously saved image")
		output   = flag.String("o", "render.png", "output file (.png or .jpg)")
		width    = flag.Int("width", 1024, "image width")
		height   = flag.Int("height", 1024, "image height")
		scale    = flag.Float64("scale", 1.0, "oversampling factor")
		zoom     = flag.Float64("zoom", 0, "zoom override, log2 of magnification")
		maxIter  = flag.Uint64("maxiter", 0, "iteration limit override")
		cpu      = flag.Bool("cpu", false, "render on the CPU even if a GPU is available")
		verbose  = flag.Bool("v", false, "log render stages and timings")
	)
	flag.Parse()

	if *list {
		for _, l := range corgi.Landmarks {
			fmt.Printf("%-18s zoom %5.1f  maxiter %6d  (%s, %s)\n", l.Name, l.Zoom, l.MaxIter, l.X, l.Y)
		}
		return
	}

	if *verbose {
		corgi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	img, err := buildImage(*settings, *landmark, *width, *height)
	if err != nil {
		log.Fatalf("corgi: %v", err)
	}
	// Overrides apply only when the flag was given, so a settings file
	// keeps its own values otherwise.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scale":
			img.Viewport.Scaling = *scale
		case "zoom":
			img.Viewport.Zoom = *zoom
		case "maxiter":
			img.MaxIter = *maxIter
		}
	})
	if err := img.Validate(); err != nil {
		log.Fatalf("corgi: %v", err)
	}

	if err := render(&img, *output, *cpu); err != nil {
		log.Fatalf("corgi: %v", err)
	}
}

// buildImage resolves the render request from a settings file or a preset.
// Settings files win; width and height only apply to presets, since a
// settings file already carries its own viewport.
func buildImage(settingsPath, landmarkName string, width, height int) (corgi.Image, error) {
	if settingsPath != "" {
		img, err := export.Load(settingsPath)
		if err != nil {
			return corgi.Image{}, fmt.Errorf("load %s: %w", settingsPath, err)
		}
		return *img, nil
	}
	l, ok := corgi.FindLandmark(landmarkName)
	if !ok {
		return corgi.Image{}, fmt.Errorf("unknown landmark %q (try -list)", landmarkName)
	}
	return l.Image(width, height)
}

// render runs a one-shot render through the worker and saves the result.
func render(img *corgi.Image, path string, cpuOnly bool) error {
	w, err := worker.New(worker.Config{
		DisableGPU:   cpuOnly,
		DebounceWait: time.Millisecond,
	})
	if err != nil {
		return err
	}
	go w.Run()

	start := time.Now()
	w.Send(worker.NewOutputSettings{Image: img})

	var renderErr error
	for msg := range w.Status() {
		switch m := msg.(type) {
		case worker.Status:
			if m.Progress > 0 {
				fmt.Fprintf(os.Stderr, "\r%s %3.0f%%", m.Message, m.Progress*100)
			} else {
				fmt.Fprintf(os.Stderr, "\r%s        ", m.Message)
			}
		case worker.FrameReady:
			if m.Output {
				w.Send(worker.SaveToFile{Path: path})
			}
		case worker.Saved:
			fmt.Fprintf(os.Stderr, "\rsaved %s in %v\n", m.Path, time.Since(start).Round(time.Millisecond))
			w.Close()
		case worker.Error:
			renderErr = m.Err
			w.Close()
		}
	}
	return renderErr
}
