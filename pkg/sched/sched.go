// Package sched abstracts delayed, cancellable callbacks so that backoff
// delays and debounce windows can be driven by a fake clock in tests.
package sched

import "time"

// Timer is a pending callback. Stop reports whether the callback was
// cancelled before it fired.
type Timer interface {
	Stop() bool
}

// Scheduler hands out delayed callbacks.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

type wallScheduler struct{}

// New returns the wall-clock scheduler backed by time.AfterFunc.
func New() Scheduler { return wallScheduler{} }

func (wallScheduler) After(d time.Duration, fn func()) Timer {
	return wallTimer{t: time.AfterFunc(d, fn)}
}

type wallTimer struct{ t *time.Timer }

func (w wallTimer) Stop() bool { return w.t.Stop() }
