// Package timer schedules delayed and periodic callbacks behind a small
// handle-based interface so the crossfade scheduler can run on the wall
// clock in production and on a virtual clock in tests.
package timer

import (
	"sync"
	"time"
)

// Handle is a live scheduled callback.
type Handle interface {
	// Cancel stops future firings. Safe to call more than once.
	Cancel()
}

// Service schedules fn to run after delay and then every period.
// A period of zero schedules a one-shot callback.
type Service interface {
	Schedule(delay, period time.Duration, fn func()) Handle
}

// Real runs callbacks on the wall clock, each schedule on its own goroutine.
type Real struct{}

// NewReal returns a wall-clock timer service.
func NewReal() *Real {
	return &Real{}
}

type realHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *realHandle) Cancel() {
	h.once.Do(func() { close(h.done) })
}

// Schedule implements Service.
func (r *Real) Schedule(delay, period time.Duration, fn func()) Handle {
	h := &realHandle{done: make(chan struct{})}
	go func() {
		first := time.NewTimer(delay)
		defer first.Stop()

		select {
		case <-h.done:
			return
		case <-first.C:
		}
		fn()
		if period <= 0 {
			return
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				// a cancel may race with the tick; prefer the cancel
				select {
				case <-h.done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return h
}
