package worker

import (
	"image"

	"github.com/KiranWells/corgi-sub000/internal/gpu"

	corgi "github.com/KiranWells/corgi-sub000"
)

// Command is a request sent into the worker. Settings commands supersede
// older unprocessed settings of the same kind; the worker always renders
// the newest state it has seen.
type Command interface{ isCommand() }

// NewPreviewSettings requests an interactive re-render of the preview
// target. Preview renders start immediately and abort in-flight work.
type NewPreviewSettings struct {
	Image *corgi.Image
}

// NewOutputSettings requests a re-render of the full-resolution output
// target. Output renders are debounced: they start only after the
// settings stop changing for the configured quiet period.
type NewOutputSettings struct {
	Image *corgi.Image
}

// SaveToFile writes the last completed output render to disk. The format
// follows the file extension.
type SaveToFile struct {
	Path string
}

func (NewPreviewSettings) isCommand() {}
func (NewOutputSettings) isCommand()  {}
func (SaveToFile) isCommand()         {}

// StatusMessage is an update emitted by the worker. The consumer must
// drain the status channel; progress updates are dropped rather than
// blocking the render, but structural messages wait for the consumer.
type StatusMessage interface{ isStatus() }

// Status reports render progress. Progress runs 0 to 1 within the named
// stage.
type Status struct {
	Message  string
	Progress float64
}

// NewPreviewViewport announces that the preview target's texture was
// reallocated; previous texture handles are stale.
type NewPreviewViewport struct {
	Texture *gpu.SharedTexture // nil on the CPU fallback path
	Width   int
	Height  int
}

// NewOutputViewport announces that the output target's texture was
// reallocated.
type NewOutputViewport struct {
	Texture *gpu.SharedTexture // nil on the CPU fallback path
	Width   int
	Height  int
}

// FrameReady announces finished pixels for a target. On the GPU path the
// shared texture already holds them; on the CPU fallback Pixels carries
// the frame.
type FrameReady struct {
	Output bool // false for the preview target
	Pixels *image.RGBA
}

// Saved confirms a completed SaveToFile.
type Saved struct {
	Path string
}

// Error reports a failed command. The worker keeps running; the settings
// that failed stay pending until superseded.
type Error struct {
	Err error
}

func (Status) isStatus()             {}
func (NewPreviewViewport) isStatus() {}
func (NewOutputViewport) isStatus()  {}
func (FrameReady) isStatus()         {}
func (Saved) isStatus()              {}
func (Error) isStatus()              {}
