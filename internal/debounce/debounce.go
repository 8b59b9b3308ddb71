// Package debounce delays an action until its input has been quiet for a
// fixed window.
package debounce

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the Debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer calls fn with the last value passed to Trigger once no new value
// has arrived for the delay.
type Debouncer[T any] struct {
	delay     time.Duration
	fn        func(T)
	afterFunc AfterFunc

	mu      sync.Mutex
	idle    *sync.Cond
	timer   Timer
	gen     uint64
	pending bool
	value   T
	running int
}

// New returns a Debouncer. A zero delay fires on the next timer tick.
func New[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	d := &Debouncer[T]{delay: delay, fn: fn, afterFunc: realAfterFunc}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// WithAfterFunc replaces the timer source, for tests.
func (d *Debouncer[T]) WithAfterFunc(af AfterFunc) *Debouncer[T] {
	d.afterFunc = af
	return d
}

// Trigger records v and restarts the quiet window.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.value = v
	d.pending = true
	d.timer = d.afterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// A timer that could not be stopped in time may still run; only the
	// newest one fires.
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.timer = nil
	d.running++
	d.mu.Unlock()

	d.run(v)
}

// run calls fn; the caller has counted it in running.
func (d *Debouncer[T]) run(v T) {
	defer func() {
		d.mu.Lock()
		d.running--
		if d.running == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}()
	d.fn(v)
}

// Flush fires a pending value immediately, then waits for every call of fn
// in progress to return. It reports whether a value was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		d.Wait()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	v := d.value
	d.pending = false
	d.timer = nil
	d.running++
	d.mu.Unlock()

	d.run(v)
	d.Wait()
	return true
}

// Wait blocks until no call of fn is in progress. It must not be called
// from fn.
func (d *Debouncer[T]) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.running > 0 {
		d.idle.Wait()
	}
}

// Stop cancels a pending fire. A call of fn already in progress is not
// interrupted; use Wait for it.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.pending = false
	d.timer = nil
}

// Pending reports whether a value is waiting to fire.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
