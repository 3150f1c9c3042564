// Package logs is the operator-facing log surface.
package logs

import (
	"fmt"
	"sync"
	"time"
)

// Level classifies a log entry.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// Entry is a single log line.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

// String formats the entry the way the console shows it.
func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
}

// Log keeps the most recent entries and fans new ones out to a subscriber
// channel. Sends never block; a full channel drops the entry.
type Log struct {
	mu     sync.Mutex
	now    func() time.Time
	max    int
	recent []Entry
	once   map[string]bool
	ch     chan Entry
}

// New creates a log that keeps up to max recent entries.
func New(max int) *Log {
	if max < 1 {
		max = 1
	}
	return &Log{
		now:  time.Now,
		max:  max,
		once: make(map[string]bool),
		ch:   make(chan Entry, max),
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Entries returns a channel that receives new entries.
func (l *Log) Entries() <-chan Entry {
	return l.ch
}

// Recent returns a copy of the retained entries, oldest first.
func (l *Log) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.recent))
	copy(out, l.recent)
	return out
}

func (l *Log) Infof(format string, args ...any)    { l.add(Info, format, args...) }
func (l *Log) Successf(format string, args ...any) { l.add(Success, format, args...) }
func (l *Log) Warnf(format string, args ...any)    { l.add(Warning, format, args...) }
func (l *Log) Errorf(format string, args ...any)   { l.add(Error, format, args...) }

// Logf logs at an explicit level. Unknown levels are logged as Info.
func (l *Log) Logf(level Level, format string, args ...any) {
	switch level {
	case Info, Success, Warning, Error:
	default:
		level = Info
	}
	l.add(level, format, args...)
}

// Once logs the message only if key has not been logged since the last
// Reset(key). It reports whether the entry was written.
func (l *Log) Once(key string, level Level, format string, args ...any) bool {
	l.mu.Lock()
	if l.once[key] {
		l.mu.Unlock()
		return false
	}
	l.once[key] = true
	l.mu.Unlock()
	l.Logf(level, format, args...)
	return true
}

// Reset re-arms a Once key.
func (l *Log) Reset(key string) {
	l.mu.Lock()
	delete(l.once, key)
	l.mu.Unlock()
}

func (l *Log) add(level Level, format string, args ...any) {
	e := Entry{Time: l.now(), Level: level, Message: fmt.Sprintf(format, args...)}

	l.mu.Lock()
	l.recent = append(l.recent, e)
	if len(l.recent) > l.max {
		l.recent = l.recent[len(l.recent)-l.max:]
	}
	l.mu.Unlock()

	select {
	case l.ch <- e:
	default:
		// Drop if channel full
	}
}
