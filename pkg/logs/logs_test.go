package logs

import (
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	t := time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC)
	return func() time.Time { return t }
}

func TestLog_RecentIsBounded(t *testing.T) {
	l := New(3).WithClock(fixedClock())
	for i := 0; i < 5; i++ {
		l.Infof("line %d", i)
	}

	got := l.Recent()
	if len(got) != 3 {
		t.Fatalf("Recent() has %d entries, want 3", len(got))
	}
	if got[0].Message != "line 2" || got[2].Message != "line 4" {
		t.Errorf("Recent() = %v", got)
	}
}

func TestLog_ChannelDropsWhenFull(t *testing.T) {
	l := New(2)
	l.Infof("a")
	l.Infof("b")
	l.Infof("c") // dropped, must not block

	if n := len(l.Entries()); n != 2 {
		t.Errorf("channel holds %d entries, want 2", n)
	}
}

func TestLog_Once(t *testing.T) {
	l := New(10)
	if !l.Once("transport", Error, "down") {
		t.Error("first Once should log")
	}
	if l.Once("transport", Error, "down") {
		t.Error("second Once should be suppressed")
	}
	l.Reset("transport")
	if !l.Once("transport", Error, "down again") {
		t.Error("Once after Reset should log")
	}
	if n := len(l.Recent()); n != 2 {
		t.Errorf("Recent() has %d entries, want 2", n)
	}
}

func TestLog_Levels(t *testing.T) {
	l := New(10)
	l.Successf("ok")
	l.Warnf("careful")
	l.Errorf("bad")
	l.Logf("bogus", "unknown level")

	want := []Level{Success, Warning, Error, Info}
	got := l.Recent()
	for i, lvl := range want {
		if got[i].Level != lvl {
			t.Errorf("entry %d level = %s, want %s", i, got[i].Level, lvl)
		}
	}
}

func TestEntry_String(t *testing.T) {
	e := Entry{Time: fixedClock()(), Message: "Teleoperation started"}
	if got, want := e.String(), "[13:04:05] Teleoperation started"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
