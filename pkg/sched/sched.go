// Package sched provides the cooperative scheduler the console runs on.
//
// All state owned by the dispatch loop, the slider adapter and the wizard is
// touched only from scheduler callbacks, so none of it needs locking. Blocking
// work (network calls) runs off the loop via Go and its continuation is
// posted back.
package sched

import "time"

// Handle cancels a periodic task.
type Handle interface {
	Stop()
}

// Scheduler runs callbacks one at a time.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// Every runs fn every d until the returned handle is stopped. fn never
	// runs after Stop returns when Stop is called from a callback.
	Every(d time.Duration, fn func()) Handle
	// Post queues fn to run on the scheduler.
	Post(fn func())
	// Go runs work off the scheduler and posts the continuation it returns.
	// A nil continuation is skipped.
	Go(work func() func())
}
