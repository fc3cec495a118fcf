package gesture

import (
	"time"

	"github.com/leandrodaf/midiroute/internal/clock"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/router"
)

// Hold fires when a press is held for a threshold without a release.
type Hold struct {
	base
	sched     clock.Scheduler
	threshold time.Duration
	handler   MessageHandler

	timer clock.Timer
}

// NewHold arms a timer on every press matching pattern. A release cancels it and a new
// press replaces it, so at most one timer is live.
func NewHold(r Subscriber, sched clock.Scheduler, pattern string, threshold time.Duration, handler MessageHandler, opts ...router.SubscribeOption) (*Hold, error) {
	if sched == nil {
		return nil, ErrNilScheduler
	}
	if handler == nil {
		return nil, router.ErrNilHandler
	}
	h := &Hold{
		base:      base{sub: r},
		sched:     sched,
		threshold: threshold,
		handler:   handler,
	}
	if err := h.attach(pattern, h.onEvent, opts); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hold) onEvent(ev router.Event) {
	e := classify(ev.Message)
	if e == edgeNone {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.cancelLocked()
	if e == edgeOff {
		return
	}

	gen := h.gen
	msg := ev.Message
	h.timer = h.sched.AfterFunc(h.threshold, func() { h.fire(gen, msg) })
}

func (h *Hold) fire(gen uint64, msg codec.Message) {
	h.mu.Lock()
	if h.closed || gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	h.gen++
	h.mu.Unlock()

	h.handler(msg)
}

// cancelLocked stops the live timer and invalidates any callback already in flight.
func (h *Hold) cancelLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.gen++
}

// Close unsubscribes and cancels a pending hold.
func (h *Hold) Close() error {
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.mu.Unlock()
	return h.base.Close()
}
