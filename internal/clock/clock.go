// Package clock provides the monotonic time source and the timer capability used by the
// router and gesture detectors.
package clock

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/leandrodaf/midiroute/internal/codec"
)

// Clock measures elapsed time from a boot reference captured at construction.
// Elapsed values come from the monotonic clock reading carried by time.Time, so wall clock
// adjustments never move them.
type Clock struct {
	boot time.Time

	mu        sync.Mutex
	lastTotal float64
}

// New returns a Clock whose boot reference is now.
func New() *Clock {
	return &Clock{boot: time.Now()}
}

// Boot returns the boot reference.
func (c *Clock) Boot() time.Time {
	return c.boot
}

// Now returns nanoseconds elapsed since boot.
func (c *Clock) Now() int64 {
	return int64(time.Since(c.boot))
}

// Secs returns seconds elapsed since boot.
func (c *Clock) Secs() float64 {
	return float64(c.Now()) / float64(time.Second)
}

// SecsStr formats Secs with precision decimals.
func (c *Clock) SecsStr(precision int) string {
	return strconv.FormatFloat(c.Secs(), 'f', precision, 64)
}

// WallMillis returns the wall clock in unix milliseconds. Display and logging only.
func (c *Clock) WallMillis() int64 {
	return time.Now().UnixMilli()
}

// LastTotal returns the total time of the most recently stamped message.
func (c *Clock) LastTotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTotal
}

// Stamp fills the timing fields of msg. Delta is kept when the port supplied one; a NaN
// delta (simulated messages) is replaced by the time since the previously stamped message.
// The last total accumulator never moves backwards.
func (c *Clock) Stamp(msg *codec.Message) {
	nanos := c.Now()
	total := float64(nanos) / float64(time.Second)

	c.mu.Lock()
	if math.IsNaN(msg.Timestamp.Delta) {
		msg.Timestamp.Delta = math.Max(0, total-c.lastTotal)
	}
	if total > c.lastTotal {
		c.lastTotal = total
	}
	c.mu.Unlock()

	msg.Timestamp.Nanos = nanos
	msg.Timestamp.Total = total
	msg.Timestamp.Wall = c.WallMillis()
}
