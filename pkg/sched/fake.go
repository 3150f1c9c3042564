package sched

import (
	"sort"
	"time"
)

// Fake is a deterministic Scheduler for tests. Time only moves on Advance;
// Post and Go run synchronously.
type Fake struct {
	now     time.Time
	tickers []*fakeTicker
	seq     int
}

// NewFake creates a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	return f.now
}

func (f *Fake) Post(fn func()) {
	fn()
}

func (f *Fake) Go(work func() func()) {
	if next := work(); next != nil {
		next()
	}
}

func (f *Fake) Every(d time.Duration, fn func()) Handle {
	f.seq++
	t := &fakeTicker{period: d, next: f.now.Add(d), fn: fn, seq: f.seq}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing every tick that falls due in
// time order.
func (f *Fake) Advance(d time.Duration) {
	end := f.now.Add(d)
	for {
		t := f.nextDue(end)
		if t == nil {
			break
		}
		f.now = t.next
		t.next = t.next.Add(t.period)
		t.fn()
	}
	f.now = end
}

// Active returns the number of live periodic tasks.
func (f *Fake) Active() int {
	n := 0
	for _, t := range f.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (f *Fake) nextDue(end time.Time) *fakeTicker {
	live := f.tickers[:0]
	for _, t := range f.tickers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	f.tickers = live
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].next.Equal(live[j].next) {
			return live[i].seq < live[j].seq
		}
		return live[i].next.Before(live[j].next)
	})
	if len(live) == 0 || live[0].next.After(end) {
		return nil
	}
	return live[0]
}

type fakeTicker struct {
	period  time.Duration
	next    time.Time
	fn      func()
	seq     int
	stopped bool
}

func (t *fakeTicker) Stop() {
	t.stopped = true
}
