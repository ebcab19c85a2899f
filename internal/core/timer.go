package core

import "time"

// Timer is the cancellable handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Components take it as a dependency so tests can drive time.
type AfterFunc func(d time.Duration, f func()) Timer

func RealAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
