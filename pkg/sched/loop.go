package sched

import (
	"context"
	"sync"
	"time"
)

// Loop is a Scheduler backed by a single goroutine.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop with room for size pending callbacks.
func NewLoop(size int) *Loop {
	if size < 1 {
		size = 1
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run executes callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn. It drops fn once the loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Go runs work on its own goroutine and posts the continuation.
func (l *Loop) Go(work func() func()) {
	go func() {
		if next := work(); next != nil {
			l.Post(next)
		}
	}()
}

// Every starts a ticker whose ticks are posted to the loop.
func (l *Loop) Every(d time.Duration, fn func()) Handle {
	t := &loopTicker{stop: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(func() {
					// stopped is only written on the loop, so a tick
					// queued before Stop is discarded here.
					if !t.stopped {
						fn()
					}
				})
			}
		}
	}()
	return t
}

type loopTicker struct {
	stop    chan struct{}
	stopped bool
}

func (t *loopTicker) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}
