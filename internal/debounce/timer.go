// Package debounce delays filter commits until input has been quiet for a
// fixed interval.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period used by list views.
const DefaultDelay = 250 * time.Millisecond

// Stopper cancels a scheduled callback.
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks. It exists so tests can drive time by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// SystemClock schedules with the runtime timer.
type SystemClock struct{}

// AfterFunc implements Clock.
func (SystemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Timer is a trailing-edge debounce timer. Each Schedule cancels the pending
// callback and restarts the delay; a callback fires at most once. Callbacks
// of one Timer never run concurrently.
type Timer struct {
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	gen     uint64
	pending func()
	stopper Stopper

	run sync.Mutex
}

// NewTimer creates a Timer. A nil clock uses SystemClock.
func NewTimer(delay time.Duration, clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Timer{clock: clock, delay: delay}
}

// Schedule replaces any pending callback with fn and restarts the delay.
func (t *Timer) Schedule(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	gen := t.gen
	if t.stopper != nil {
		t.stopper.Stop()
	}
	t.pending = fn
	t.stopper = t.clock.AfterFunc(t.delay, func() { t.fire(gen) })
}

// Stop cancels the pending callback. It reports whether one was pending.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked() != nil
}

// Flush runs the pending callback now instead of at the end of the delay.
// It reports whether a callback ran.
func (t *Timer) Flush() bool {
	t.mu.Lock()
	fn := t.cancelLocked()
	t.mu.Unlock()
	if fn == nil {
		return false
	}
	t.exec(fn)
	return true
}

// Pending reports whether a callback is waiting to fire.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// fire runs the callback scheduled as generation gen unless a later
// Schedule, Stop or Flush superseded it.
func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.pending == nil {
		t.mu.Unlock()
		return
	}
	fn := t.pending
	t.pending = nil
	t.stopper = nil
	t.mu.Unlock()
	t.exec(fn)
}

func (t *Timer) cancelLocked() func() {
	t.gen++
	fn := t.pending
	if t.stopper != nil {
		t.stopper.Stop()
	}
	t.pending = nil
	t.stopper = nil
	return fn
}

func (t *Timer) exec(fn func()) {
	t.run.Lock()
	defer t.run.Unlock()
	fn()
}
