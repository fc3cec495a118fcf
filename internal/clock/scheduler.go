package clock

import "time"

// Timer is a pending callback. Stop cancels it and reports whether the call prevented the
// callback from running; stopping an already fired or stopped timer is a no-op.
type Timer interface {
	Stop() bool
}

// Scheduler arms timers. Detectors receive one at construction so tests can drive time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler arms timers on the runtime timer heap.
type RealScheduler struct{}

// AfterFunc runs f on its own goroutine after d.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// PostFunc hands a callback to an event loop.
type PostFunc func(func())

// LoopScheduler arms real timers whose callbacks run on an event loop instead of the timer
// goroutine, keeping all detector state confined to the loop.
type LoopScheduler struct {
	Post PostFunc
}

// AfterFunc posts f to the loop after d.
func (s LoopScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { s.Post(f) })
}

// SecondsToDuration converts fractional seconds to a Duration.
func SecondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
