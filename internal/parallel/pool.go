// Package parallel runs data-parallel pixel work across a fixed pool of
// goroutines. The delta grid and the CPU oracle renderer are embarrassingly
// parallel over rows; the pool keeps their goroutine churn bounded when the
// orchestrator re-runs stages at interactive rates.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed set of worker goroutines consuming row tasks.
//
// Each worker primarily pulls from its own queue but steals from the others
// when idle, which balances load between cheap rows (early escapes) and
// expensive ones (interior pixels that run the full budget).
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewPool creates a pool with the given number of workers; zero or negative
// uses GOMAXPROCS. Workers start immediately.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// Workers returns the worker count.
func (p *Pool) Workers() int { return p.workers }

// IsRunning reports whether the pool still accepts work.
func (p *Pool) IsRunning() bool { return p.running.Load() }

// Close stops the workers after draining queued work. Safe to call twice.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	mine := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(mine)
			return
		case task := <-mine:
			if task != nil {
				task()
			}
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(mine)
				return
			case task := <-mine:
				if task != nil {
					task()
				}
			}
		}
	}
}

func (p *Pool) drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			if task != nil {
				task()
			}
		default:
			return
		}
	}
}

func (p *Pool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case task := <-p.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// Rows splits [0, n) into one task per row, distributes them round-robin,
// and waits for completion. fn is called with each row index, concurrently.
// A closed pool runs the rows serially on the caller so results are still
// produced.
func (p *Pool) Rows(n int, fn func(row int)) {
	if n <= 0 {
		return
	}
	if p == nil || !p.running.Load() {
		for row := range n {
			fn(row)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for row := range n {
		r := row
		task := func() {
			defer wg.Done()
			fn(r)
		}
		select {
		case p.queues[row%p.workers] <- task:
		case <-p.done:
			// Pool is closing; run on the caller instead of dropping.
			task()
		}
	}
	wg.Wait()
}
