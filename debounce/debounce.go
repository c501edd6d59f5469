// Package debounce coalesces bursts of triggers into a single event.
//
// The render worker uses it to hold off expensive full-resolution work
// while interactive edits are still arriving: every edit re-arms the
// timer, and only a quiet period lets it fire.
package debounce

import (
	"sync"
	"time"
)

// Debouncer fires once after a quiet period following the last Trigger.
// It is polled rather than callback-driven so the owning loop stays in
// control of when work may start. Safe for concurrent use.
type Debouncer struct {
	mu       sync.Mutex
	wait     time.Duration
	deadline time.Time
	armed    bool

	now func() time.Time // swapped out in tests
}

// New creates a debouncer with the given quiet period.
func New(wait time.Duration) *Debouncer {
	return &Debouncer{wait: wait, now: time.Now}
}

// Trigger arms the debouncer and pushes the deadline out to a full quiet
// period from now. Triggering while armed restarts the period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed = true
	d.deadline = d.now().Add(d.wait)
}

// Poll reports whether the quiet period has elapsed. It returns true at
// most once per Trigger burst; the debouncer disarms on firing.
func (d *Debouncer) Poll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.armed || d.now().Before(d.deadline) {
		return false
	}
	d.armed = false
	return true
}

// Reset disarms the debouncer without firing.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed = false
}

// Armed reports whether a trigger is pending.
func (d *Debouncer) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Remaining returns the time left until the debouncer will fire, or zero
// when it is disarmed or already due. Useful as a poll timeout.
func (d *Debouncer) Remaining() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.armed {
		return 0
	}
	r := d.deadline.Sub(d.now())
	if r < 0 {
		return 0
	}
	return r
}
