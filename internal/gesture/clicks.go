package gesture

import (
	"time"

	"github.com/leandrodaf/midiroute/internal/clock"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/router"
)

// DefaultClickTimeout is the inter-click timeout used by Press, DoubleClick and TripleClick
// when none is given.
const DefaultClickTimeout = 300 * time.Millisecond

// Clicks counts completed press/release pairs and fires when a burst of exactly count
// pairs ends.
type Clicks struct {
	base
	sched   clock.Scheduler
	count   int
	timeout time.Duration
	handler MessageHandler

	pressed bool
	clicks  int
	last    codec.Message
	timer   clock.Timer
}

// NewClicks detects bursts of count clicks on pattern. A burst ends when timeout passes
// after a release without a new press; the count always resets when a burst ends.
func NewClicks(r Subscriber, sched clock.Scheduler, pattern string, count int, timeout time.Duration, handler MessageHandler, opts ...router.SubscribeOption) (*Clicks, error) {
	if sched == nil {
		return nil, ErrNilScheduler
	}
	if handler == nil {
		return nil, router.ErrNilHandler
	}
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	if timeout <= 0 {
		timeout = DefaultClickTimeout
	}
	c := &Clicks{
		base:    base{sub: r},
		sched:   sched,
		count:   count,
		timeout: timeout,
		handler: handler,
	}
	if err := c.attach(pattern, c.onEvent, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Press fires on a single click.
func Press(r Subscriber, sched clock.Scheduler, pattern string, timeout time.Duration, handler MessageHandler, opts ...router.SubscribeOption) (*Clicks, error) {
	return NewClicks(r, sched, pattern, 1, timeout, handler, opts...)
}

// DoubleClick fires on two clicks.
func DoubleClick(r Subscriber, sched clock.Scheduler, pattern string, timeout time.Duration, handler MessageHandler, opts ...router.SubscribeOption) (*Clicks, error) {
	return NewClicks(r, sched, pattern, 2, timeout, handler, opts...)
}

// TripleClick fires on three clicks.
func TripleClick(r Subscriber, sched clock.Scheduler, pattern string, timeout time.Duration, handler MessageHandler, opts ...router.SubscribeOption) (*Clicks, error) {
	return NewClicks(r, sched, pattern, 3, timeout, handler, opts...)
}

func (c *Clicks) onEvent(ev router.Event) {
	e := classify(ev.Message)
	if e == edgeNone {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch e {
	case edgeOn:
		// The burst continues; the pending finalisation is dropped.
		c.stopLocked()
		c.pressed = true
	case edgeOff:
		if !c.pressed {
			return
		}
		c.pressed = false
		c.clicks++
		c.last = ev.Message
		c.stopLocked()
		gen := c.gen
		c.timer = c.sched.AfterFunc(c.timeout, func() { c.finalize(gen) })
	}
}

func (c *Clicks) finalize(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	matched := c.clicks == c.count
	msg := c.last
	c.clicks = 0
	c.timer = nil
	c.gen++
	c.mu.Unlock()

	if matched {
		c.handler(msg)
	}
}

func (c *Clicks) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// Close unsubscribes and drops a burst in progress.
func (c *Clicks) Close() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return c.base.Close()
}
