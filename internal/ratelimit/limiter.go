// Package ratelimit paces outbound provider calls. Each Limiter serializes
// the operations submitted to it, enforcing a fixed minimum interval between
// dispatches in FIFO submission order.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter serializes submitted operations at a fixed minimum interval.
// Queueing is unbounded; no operation is ever dropped. A single drain
// goroutine, started on first use, dispatches queued work in submission
// order and exits when the queue empties.
type Limiter struct {
	minInterval time.Duration

	mu       sync.Mutex
	queue    []func()
	draining bool
	lastRun  time.Time
}

// New creates a Limiter allowing requestsPerSecond dispatches per second.
// Values < 1 are treated as 1.
func New(requestsPerSecond int) *Limiter {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &Limiter{
		minInterval: time.Second / time.Duration(requestsPerSecond),
	}
}

// Execute enqueues fn and blocks until it has run, returning its result.
// Operations begin in submission order, spaced at least the limiter's
// minimum interval apart. The operation's error propagates unchanged.
// ctx cancellation only abandons the wait; the queued operation still
// runs when its slot comes up (in-flight work is never cancelled).
func Execute[T any](ctx context.Context, l *Limiter, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	l.enqueue(func() {
		v, err := fn()
		done <- result{value: v, err: err}
	})

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (l *Limiter) enqueue(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	if !l.draining {
		l.draining = true
		go l.drain()
	}
	l.mu.Unlock()
}

// drain runs queued tasks one at a time, sleeping out the remainder of the
// minimum interval before each dispatch.
func (l *Limiter) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue = l.queue[1:]
		wait := l.minInterval - time.Since(l.lastRun)
		l.mu.Unlock()

		if wait > 0 {
			time.Sleep(wait)
		}

		l.mu.Lock()
		l.lastRun = time.Now()
		l.mu.Unlock()

		task()
	}
}
