// Package clock abstracts time so that animation frames, poll ticks and the
// completion grace delay can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by the animator, poller and orchestrator.
type Clock interface {
	Now() time.Time
	// NewTimer returns a one-shot timer that fires once d elapses.
	NewTimer(d time.Duration) Timer
	// NewTicker returns a ticker that fires every d.
	NewTicker(d time.Duration) Ticker
}

// Timer delivers a single value on C unless stopped first.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time { return r.t.C }
func (r *realTimer) Stop() bool          { return r.t.Stop() }

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// Fake is a manually advanced Clock. Timers and tickers created from it
// fire only when Advance moves the virtual time past their deadline.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
	cond    *sync.Cond
}

type waiter struct {
	deadline time.Time
	period   time.Duration // zero for one-shot
	ch       chan time.Time
	stopped  bool
}

// NewFake creates a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Now returns the virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTimer registers a one-shot timer. A non-positive d fires immediately.
func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &waiter{deadline: f.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		w.ch <- f.now
		w.stopped = true
		return &fakeTimer{f: f, w: w}
	}
	f.add(w)
	return &fakeTimer{f: f, w: w}
}

// NewTicker registers a periodic timer. Like time.Ticker, a tick that is not
// received before the next one is due is dropped.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &waiter{deadline: f.now.Add(d), period: d, ch: make(chan time.Time, 1)}
	f.add(w)
	return &fakeTicker{f: f, w: w}
}

// Advance moves virtual time forward by d, firing every timer whose deadline
// is reached in deadline order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := f.now.Add(d)
	for {
		w := f.next(end)
		if w == nil {
			break
		}
		f.now = w.deadline
		select {
		case w.ch <- f.now:
		default:
		}
		if w.period > 0 {
			w.deadline = w.deadline.Add(w.period)
		} else {
			w.stopped = true
			f.remove(w)
		}
	}
	f.now = end
}

// BlockUntil waits until at least n timers or tickers are registered.
// Tests call it before Advance so the goroutine under test has reached
// its wait.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.waiters) < n {
		f.cond.Wait()
	}
}

// Waiters returns the number of registered timers and tickers.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

func (f *Fake) add(w *waiter) {
	f.waiters = append(f.waiters, w)
	f.cond.Broadcast()
}

func (f *Fake) remove(w *waiter) {
	for i, x := range f.waiters {
		if x == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			break
		}
	}
	f.cond.Broadcast()
}

// next returns the registered waiter with the earliest deadline not after end.
func (f *Fake) next(end time.Time) *waiter {
	var best *waiter
	for _, w := range f.waiters {
		if w.deadline.After(end) {
			continue
		}
		if best == nil || w.deadline.Before(best.deadline) {
			best = w
		}
	}
	return best
}

type fakeTicker struct {
	f *Fake
	w *waiter
}

func (t *fakeTicker) C() <-chan time.Time { return t.w.ch }

func (t *fakeTicker) Stop() {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if t.w.stopped {
		return
	}
	t.w.stopped = true
	t.f.remove(t.w)
}

type fakeTimer struct {
	f *Fake
	w *waiter
}

func (t *fakeTimer) C() <-chan time.Time { return t.w.ch }

// Stop reports whether the timer was still pending.
func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if t.w.stopped {
		return false
	}
	t.w.stopped = true
	t.f.remove(t.w)
	return true
}
