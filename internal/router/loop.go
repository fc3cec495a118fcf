package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midiroute/sdk/contracts"
)

const defaultQueueSize = 256

// Loop serialises work from port callbacks and timers onto one goroutine.
type Loop struct {
	log     contracts.Logger
	queue   chan func()
	done    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	running   atomic.Bool
	dropped   atomic.Uint64
}

// NewLoop creates a loop with a queue of size entries (default 256 when size <= 0).
func NewLoop(log contracts.Logger, size int) *Loop {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Loop{
		log:     log,
		queue:   make(chan func(), size),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Post queues f, blocking while the queue is full. It returns false once the loop is closed.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- f:
		return true
	case <-l.done:
		return false
	}
}

// TryPost queues f without blocking. A full queue drops f with a warning.
func (l *Loop) TryPost(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- f:
		return true
	default:
		l.dropped.Add(1)
		l.log.Warn("Event buffer full; dropping MIDI event",
			l.log.Field().Uint64("dropped", l.dropped.Load()))
		return false
	}
}

// PostFunc adapts Post to clock.PostFunc.
func (l *Loop) PostFunc(f func()) {
	if !l.Post(f) {
		l.log.Debug("loop closed; discarding scheduled callback")
	}
}

// Dropped returns the number of deliveries dropped by TryPost.
func (l *Loop) Dropped() uint64 {
	return l.dropped.Load()
}

// Run executes queued work until ctx is done or Close is called. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatch loop already running")
	}
	defer close(l.stopped)

	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case f := <-l.queue:
			l.exec(f)
		}
	}
}

// Close stops the loop. Work still queued is discarded.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until a running loop has returned.
func (l *Loop) Wait() {
	if l.running.Load() {
		<-l.stopped
	}
}

func (l *Loop) exec(f func()) {
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Error("dispatch loop task panicked", l.log.Field().String("panic", fmt.Sprint(rec)))
		}
	}()
	f()
}
