// Package export persists rendered frames to disk. The full-resolution
// render is oversampled by the viewport scaling factor; export downsamples
// it to the requested size and embeds the render settings in the file so a
// saved image can be reopened and re-rendered exactly.
package export

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	corgi "github.com/KiranWells/corgi-sub000"
)

// jpegQuality matches the usual "visually lossless" setting.
const jpegQuality = 92

// softwareTag identifies the producer in embedded metadata.
const softwareTag = "corgi"

// Save writes pixels (tightly packed RGBA, row-major over the buffer
// extent of img) to path. The format follows the file extension: PNG by
// default, JPEG for .jpg/.jpeg. PNG files carry the settings JSON in a
// tEXt chunk; JPEG files get a sidecar .json next to them.
func Save(path string, pixels []byte, img *corgi.Image) error {
	bw := img.Viewport.BufferWidth()
	bh := img.Viewport.BufferHeight()
	if len(pixels) != bw*bh*4 {
		return fmt.Errorf("export: pixel data is %d bytes, want %d for %dx%d", len(pixels), bw*bh*4, bw, bh)
	}
	src := &image.RGBA{
		Pix:    pixels,
		Stride: bw * 4,
		Rect:   image.Rect(0, 0, bw, bh),
	}
	final := Downsample(src, img.Viewport.Width, img.Viewport.Height)

	settings, err := img.MarshalText()
	if err != nil {
		return fmt.Errorf("export: encode settings: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return saveJPEG(path, final, settings)
	default:
		return savePNG(path, final, settings)
	}
}

// Downsample scales src to the requested size with a Catmull-Rom filter.
// When the sizes already match, src is returned as-is.
func Downsample(src *image.RGBA, width, height int) *image.RGBA {
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func savePNG(path string, final *image.RGBA, settings []byte) error {
	data, err := encodePNGWithMetadata(final, settings)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

func saveJPEG(path string, final *image.RGBA, settings []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, final, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: encode jpeg: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	// JPEG has no standard text chunk worth the trouble; a sidecar keeps
	// the settings reopenable.
	sidecar := sidecarPath(path)
	if err := os.WriteFile(sidecar, settings, 0o644); err != nil {
		return fmt.Errorf("export: write sidecar %s: %w", sidecar, err)
	}
	return nil
}

func sidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
}

// Load reads the render settings back out of a saved file: the tEXt chunk
// for PNG, the sidecar for JPEG.
func Load(path string) (*corgi.Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		data, err := os.ReadFile(sidecarPath(path))
		if err != nil {
			return nil, fmt.Errorf("export: read sidecar: %w", err)
		}
		img, err := corgi.ParseImage(data)
		if err != nil {
			return nil, err
		}
		return &img, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("export: read %s: %w", path, err)
		}
		settings, err := pngDescription(data)
		if err != nil {
			return nil, err
		}
		img, err := corgi.ParseImage(settings)
		if err != nil {
			return nil, err
		}
		return &img, nil
	}
}
