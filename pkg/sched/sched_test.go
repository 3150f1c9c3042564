package sched

import (
	"context"
	"testing"
	"time"
)

func TestFake_Every(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var fired []time.Duration
	h := f.Every(50*time.Millisecond, func() {
		fired = append(fired, f.Now().Sub(time.Unix(0, 0)))
	})

	f.Advance(175 * time.Millisecond)
	if len(fired) != 3 {
		t.Fatalf("fired %d times, want 3", len(fired))
	}
	for i, at := range fired {
		if want := time.Duration(i+1) * 50 * time.Millisecond; at != want {
			t.Errorf("tick %d at %v, want %v", i, at, want)
		}
	}
	if f.Now().Sub(time.Unix(0, 0)) != 175*time.Millisecond {
		t.Errorf("Now() = %v after Advance", f.Now())
	}

	h.Stop()
	f.Advance(time.Second)
	if len(fired) != 3 {
		t.Errorf("ticker fired after Stop")
	}
	if f.Active() != 0 {
		t.Errorf("Active() = %d, want 0", f.Active())
	}
}

func TestFake_StopFromCallback(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var a, b int
	var hb Handle
	f.Every(10*time.Millisecond, func() {
		a++
		hb.Stop()
	})
	hb = f.Every(10*time.Millisecond, func() { b++ })

	f.Advance(30 * time.Millisecond)
	if a != 3 {
		t.Errorf("a = %d, want 3", a)
	}
	if b != 0 {
		t.Errorf("b = %d, want 0: stopped before its first tick", b)
	}
}

func TestFake_Interleaved(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var order []string
	f.Every(50*time.Millisecond, func() { order = append(order, "dispatch") })
	f.Every(100*time.Millisecond, func() { order = append(order, "poll") })

	f.Advance(100 * time.Millisecond)
	want := []string{"dispatch", "dispatch", "poll"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestFake_Go(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var got []string
	f.Go(func() func() {
		got = append(got, "work")
		return func() { got = append(got, "then") }
	})
	f.Go(func() func() { return nil })
	if len(got) != 2 || got[0] != "work" || got[1] != "then" {
		t.Errorf("got %v", got)
	}
}

func TestLoop_RunsPostedAndTicks(t *testing.T) {
	l := NewLoop(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	done := make(chan struct{})
	l.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted callback did not run")
	}

	ticks := make(chan struct{}, 10)
	var h Handle
	l.Post(func() {
		h = l.Every(5*time.Millisecond, func() { ticks <- struct{}{} })
	})
	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("ticker did not fire")
		}
	}

	stopped := make(chan struct{})
	l.Post(func() {
		h.Stop()
		h.Stop()
		close(stopped)
	})
	<-stopped

	// Drain anything delivered before Stop, then expect silence.
	time.Sleep(20 * time.Millisecond)
	for len(ticks) > 0 {
		<-ticks
	}
	select {
	case <-ticks:
		t.Error("ticker fired after Stop")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestLoop_GoPostsContinuation(t *testing.T) {
	l := NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	got := make(chan string, 1)
	l.Go(func() func() {
		v := "result"
		return func() { got <- v }
	})
	select {
	case v := <-got:
		if v != "result" {
			t.Errorf("continuation got %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("continuation did not run")
	}
}
