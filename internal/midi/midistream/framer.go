// Package midistream turns byte streams from ports into whole MIDI deliveries.
package midistream

import (
	"sync"
	"time"

	"github.com/leandrodaf/midiroute/internal/codec"
)

// MaxSysEx bounds the size of an assembled system exclusive message. Longer messages are
// discarded.
const MaxSysEx = 64 * 1024

// Framer splits a MIDI byte stream into complete messages.
//
// Running status is expanded so every emitted channel message carries its status byte.
// Real-time bytes (0xF8-0xFF) are emitted on their own as soon as they are seen, even in
// the middle of another message. System exclusive bytes are gathered until 0xF7. A data byte
// with no status in effect is discarded.
type Framer struct {
	emit func(raw []byte)

	running byte
	buf     []byte
	need    int
	sysex   bool
	dropped int
}

// NewFramer returns a Framer calling emit for every complete message. The slice passed to
// emit is owned by the callee.
func NewFramer(emit func(raw []byte)) *Framer {
	return &Framer{emit: emit}
}

// Write feeds p to the framer. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	for _, b := range p {
		f.feed(b)
	}
	return len(p), nil
}

// Dropped returns how many bytes were discarded.
func (f *Framer) Dropped() int {
	return f.dropped
}

// Reset forgets the running status and any partial message.
func (f *Framer) Reset() {
	f.running = 0
	f.buf = f.buf[:0]
	f.need = 0
	f.sysex = false
}

func (f *Framer) feed(b byte) {
	switch {
	case b >= 0xF8:
		f.emit([]byte{b})
	case b == codec.SysExStart:
		f.abandon()
		f.running = 0
		f.sysex = true
		f.buf = append(f.buf[:0], b)
	case b == codec.SysExEnd:
		if !f.sysex {
			f.dropped++
			return
		}
		f.buf = append(f.buf, b)
		f.flush()
		f.sysex = false
	case b >= 0x80:
		f.abandon()
		f.running = 0
		if b < 0xF0 {
			f.running = b
		}
		f.start(b)
	case f.sysex:
		if len(f.buf) >= MaxSysEx {
			f.dropped += len(f.buf) + 1
			f.buf = f.buf[:0]
			f.sysex = false
			return
		}
		f.buf = append(f.buf, b)
	default:
		if f.need == 0 {
			if f.running == 0 {
				f.dropped++
				return
			}
			f.start(f.running)
		}
		f.buf = append(f.buf, b)
		if f.need--; f.need == 0 {
			f.flush()
		}
	}
}

func (f *Framer) start(status byte) {
	f.buf = append(f.buf[:0], status)
	f.need = codec.MessageSize(codec.KindFromStatus(status), status) - 1
	if f.need == 0 {
		f.flush()
	}
}

// abandon discards a message interrupted by a new status byte.
func (f *Framer) abandon() {
	if f.need > 0 || f.sysex {
		f.dropped += len(f.buf)
	}
	f.buf = f.buf[:0]
	f.need = 0
	f.sysex = false
}

func (f *Framer) flush() {
	out := make([]byte, len(f.buf))
	copy(out, f.buf)
	f.buf = f.buf[:0]
	f.need = 0
	f.emit(out)
}

// Delta measures the seconds between consecutive deliveries of one input.
type Delta struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewDelta returns a Delta reading time.Now.
func NewDelta() *Delta {
	return &Delta{now: time.Now}
}

// Next returns the seconds since the previous call, 0 on the first call.
func (d *Delta) Next() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if d.last.IsZero() {
		d.last = now
		return 0
	}
	delta := now.Sub(d.last).Seconds()
	d.last = now
	return delta
}
