package workspace

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is used when a Debouncer is created without one.
const DefaultQuietPeriod = 1000 * time.Millisecond

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests swap in a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer coalesces bursts of change events into one trailing call.
// It is Idle until an event arrives, then Pending until the quiet period
// passes with no further event, at which point onFire runs once and it
// returns to Idle. Every event while Pending restarts the quiet period.
type Debouncer struct {
	quiet  time.Duration
	onFire func()
	clock  Clock

	mu      sync.Mutex
	timer   Timer
	gen     uint64 // bumped on every reschedule; stale callbacks compare and bail
	stopped bool
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithClock replaces the wall clock.
func WithClock(c Clock) DebouncerOption {
	return func(d *Debouncer) {
		if c != nil {
			d.clock = c
		}
	}
}

// NewDebouncer creates a Debouncer that calls onFire after quiet has elapsed
// since the last event. A non-positive quiet selects DefaultQuietPeriod.
func NewDebouncer(quiet time.Duration, onFire func(), opts ...DebouncerOption) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	d := &Debouncer{quiet: quiet, onFire: onFire, clock: realClock{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnEvent records that something changed. Only the fact of the change
// matters; the event itself is not kept.
func (d *Debouncer) OnEvent(ev WatchEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(gen) })
	sub("debounce").Debug("refresh scheduled", "op", ev.Op, "path", ev.Path, "quiet", d.quiet)
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	debounceFires.Inc()
	sub("debounce").Debug("quiet period elapsed, firing refresh")
	if d.onFire != nil {
		d.onFire()
	}
}

// Pending reports whether a refresh is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops a scheduled refresh, if any, and returns to Idle.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels any scheduled refresh and ignores all later events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}
