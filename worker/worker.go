// Package worker runs the render orchestrator goroutine. It owns the GPU
// context and both render targets, accepts settings over a command
// channel, and reports progress and results over a status channel.
//
// Settings are latest-wins: a new settings command aborts in-flight work
// through a cooperative cancel flag and the worker drains its queue before
// starting again, so it only ever renders the newest state. Preview
// renders start immediately; full-resolution output renders wait for a
// quiet period first.
package worker

import (
	"sync/atomic"
	"time"

	"github.com/KiranWells/corgi-sub000/debounce"
	"github.com/KiranWells/corgi-sub000/export"
	"github.com/KiranWells/corgi-sub000/internal/gpu"
	"github.com/KiranWells/corgi-sub000/internal/parallel"
	"github.com/KiranWells/corgi-sub000/probe"

	corgi "github.com/KiranWells/corgi-sub000"
)

// DefaultDebounceWait is the quiet period before an output render starts.
const DefaultDebounceWait = 100 * time.Millisecond

// Config controls worker construction. The zero value is usable.
type Config struct {
	// DebounceWait overrides DefaultDebounceWait when positive.
	DebounceWait time.Duration

	// IterBatch is the iteration batch size per dispatch; zero uses the
	// GPU package default.
	IterBatch int

	// Workers sizes the CPU worker pool; zero uses GOMAXPROCS.
	Workers int

	// DisableGPU forces the CPU render path. Mostly for tests and
	// headless environments without a usable adapter.
	DisableGPU bool
}

// slot is one render destination plus the state tracked between renders.
type slot struct {
	output   bool
	rt       renderTarget
	current  *corgi.Image // last fully rendered settings
	pending  *corgi.Image // newest requested settings not yet rendered
	orbit    probe.Orbit
	hasOrbit bool
	gridFor  *corgi.Image // settings the uploaded delta grid belongs to
}

// Worker owns the render pipeline. Create with New, drive with Send, run
// Run on its own goroutine, and stop by calling Close.
type Worker struct {
	ctx  *gpu.Context
	pool *parallel.Pool

	preview *slot
	output  *slot

	commands chan Command
	status   chan StatusMessage
	cancel   atomic.Bool

	outputDebounce *debounce.Debouncer
}

// New builds a worker. When a GPU adapter is unavailable (or DisableGPU is
// set) the worker falls back to the CPU renderer and keeps the same
// command surface.
func New(cfg Config) (*Worker, error) {
	wait := cfg.DebounceWait
	if wait <= 0 {
		wait = DefaultDebounceWait
	}
	w := &Worker{
		pool:           parallel.NewPool(cfg.Workers),
		commands:       make(chan Command, 16),
		status:         make(chan StatusMessage, 64),
		outputDebounce: debounce.New(wait),
	}

	if !cfg.DisableGPU {
		ctx, err := gpu.NewContext()
		if err != nil {
			corgi.Logger().Warn("worker: GPU unavailable, using CPU renderer", "error", err)
		} else {
			w.ctx = ctx
		}
	}

	if w.ctx != nil {
		pt, err := newGPUTarget(w.ctx, "preview", cfg.IterBatch)
		if err != nil {
			w.ctx.Close()
			w.pool.Close()
			return nil, err
		}
		ot, err := newGPUTarget(w.ctx, "output", cfg.IterBatch)
		if err != nil {
			pt.close()
			w.ctx.Close()
			w.pool.Close()
			return nil, err
		}
		w.preview = &slot{rt: pt}
		w.output = &slot{output: true, rt: ot}
	} else {
		w.preview = &slot{rt: newCPUTarget(w.pool, cfg.IterBatch)}
		w.output = &slot{output: true, rt: newCPUTarget(w.pool, cfg.IterBatch)}
	}
	return w, nil
}

// Status returns the channel of worker updates. It is closed when Run
// returns.
func (w *Worker) Status() <-chan StatusMessage { return w.status }

// Send enqueues a command. Settings commands raise the cancel flag first,
// so an in-flight render aborts at its next batch boundary and the worker
// picks up the newest settings.
func (w *Worker) Send(cmd Command) {
	switch cmd.(type) {
	case NewPreviewSettings, NewOutputSettings:
		w.cancel.Store(true)
	}
	w.commands <- cmd
}

// Close stops the worker after the current drain; Run returns and closes
// the status channel.
func (w *Worker) Close() {
	w.cancel.Store(true)
	close(w.commands)
}

// Run processes commands until Close. It must run on a dedicated
// goroutine; all GPU work happens here.
func (w *Worker) Run() {
	defer w.shutdown()
	for {
		var timerC <-chan time.Time
		var timer *time.Timer
		if w.outputDebounce.Armed() {
			timer = time.NewTimer(w.outputDebounce.Remaining() + time.Millisecond)
			timerC = timer.C
		}

		select {
		case cmd, ok := <-w.commands:
			if timer != nil {
				timer.Stop()
			}
			if !ok {
				return
			}
			w.apply(cmd)
			w.drain()
		case <-timerC:
		}

		w.cancel.Store(false)
		if w.preview.pending != nil {
			w.renderSlot(w.preview)
		}
		if w.output.pending != nil && w.outputDebounce.Poll() {
			w.renderSlot(w.output)
		}
	}
}

// drain empties the queued commands so only the newest settings of each
// kind survive. Saves execute in arrival order.
func (w *Worker) drain() {
	for {
		select {
		case cmd, ok := <-w.commands:
			if !ok {
				return
			}
			w.apply(cmd)
		default:
			return
		}
	}
}

func (w *Worker) apply(cmd Command) {
	switch c := cmd.(type) {
	case NewPreviewSettings:
		w.preview.pending = c.Image
	case NewOutputSettings:
		w.output.pending = c.Image
		w.outputDebounce.Trigger()
	case SaveToFile:
		w.save(c.Path)
	}
}

// save writes the last completed output render. It intentionally uses the
// settings of that completed render, not any pending ones.
func (w *Worker) save(path string) {
	s := w.output
	if s.current == nil {
		w.sendBlocking(Error{Err: errNoFrame})
		return
	}
	pix, err := s.rt.pixels()
	if err != nil {
		w.sendBlocking(Error{Err: err})
		return
	}
	if err := export.Save(path, pix.Pix, s.current); err != nil {
		w.sendBlocking(Error{Err: err})
		return
	}
	corgi.Logger().Info("worker: saved render", "path", path)
	w.sendBlocking(Saved{Path: path})
}

// sendStatus publishes a progress update, dropping it if the consumer is
// behind.
func (w *Worker) sendStatus(message string, progress float64) {
	select {
	case w.status <- Status{Message: message, Progress: progress}:
	default:
	}
}

// sendBlocking publishes a structural message the consumer must see.
func (w *Worker) sendBlocking(msg StatusMessage) {
	w.status <- msg
}

func (w *Worker) shutdown() {
	w.preview.rt.close()
	w.output.rt.close()
	if w.ctx != nil {
		w.ctx.Close()
	}
	w.pool.Close()
	close(w.status)
}
