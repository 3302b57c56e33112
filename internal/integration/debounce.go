package integration

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into one callback per quiet period.
//
// Each Call carries a value; when the timer finally fires the callback
// receives the value of the most recent Call only. A Call made while a
// timer is pending cancels that timer and arms a fresh one, so at most one
// timer is ever pending and superseded values are dropped, not queued.
//
// Thread-safety: All methods are safe for concurrent use. The callback is
// never invoked concurrently with itself from the debouncer.
type Debouncer[T any] struct {
	mu       sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	pending  bool
	latest   T
	seq      uint64 // sequence number to detect stale callbacks
	callback func(T)
	running  sync.Mutex
}

// NewDebouncer creates a new debouncer with the specified delay.
func NewDebouncer[T any](delay time.Duration, callback func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		delay:    delay,
		callback: callback,
	}
}

// Call schedules the callback with v after the debounce delay, replacing
// any value and timer already pending.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	d.latest = v
	d.seq++
	currentSeq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(currentSeq)
	})
}

// fire runs the callback if seq still identifies the armed timer.
func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if !d.pending || d.seq != seq || d.callback == nil {
		d.mu.Unlock()
		return
	}
	v := d.take()
	d.mu.Unlock()

	d.running.Lock()
	defer d.running.Unlock()
	d.callback(v)
}

// take clears the pending value (must hold mu).
func (d *Debouncer[T]) take() T {
	v := d.latest
	var zero T
	d.latest = zero
	d.pending = false
	d.timer = nil
	return v
}

// Flush runs the callback immediately with the pending value, if any,
// canceling the scheduled call. It reports whether a callback ran.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()

	if d.timer != nil {
		d.timer.Stop()
	}
	// Increment seq to invalidate any running timer callback
	d.seq++

	if !d.pending || d.callback == nil {
		d.timer = nil
		d.mu.Unlock()
		return false
	}
	v := d.take()
	d.mu.Unlock()

	d.running.Lock()
	defer d.running.Unlock()
	d.callback(v)
	return true
}

// Cancel drops any pending call and its value.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	// Increment seq to invalidate any running timer callback
	d.seq++
	d.take()
}

// IsPending returns true if there's a pending debounced call.
func (d *Debouncer[T]) IsPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Delay returns the quiet period.
func (d *Debouncer[T]) Delay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}

// SetDelay changes the quiet period for calls made after it returns.
func (d *Debouncer[T]) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}
