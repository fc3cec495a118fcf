package midistream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func frame(chunks ...[]byte) ([][]byte, *Framer) {
	var out [][]byte
	f := NewFramer(func(raw []byte) { out = append(out, raw) })
	for _, c := range chunks {
		_, _ = f.Write(c)
	}
	return out, f
}

func TestFramer_CompleteMessages(t *testing.T) {
	out, _ := frame([]byte{0x90, 60, 100, 0xC1, 5, 0xB0, 7, 127})
	assert.Equal(t, [][]byte{{0x90, 60, 100}, {0xC1, 5}, {0xB0, 7, 127}}, out)
}

func TestFramer_SplitAcrossWrites(t *testing.T) {
	out, _ := frame([]byte{0x90}, []byte{60}, []byte{100, 0x80}, []byte{60, 0})
	assert.Equal(t, [][]byte{{0x90, 60, 100}, {0x80, 60, 0}}, out)
}

func TestFramer_RunningStatus(t *testing.T) {
	out, _ := frame([]byte{0x90, 60, 100, 62, 100, 60, 0, 0xD0, 10, 20})
	assert.Equal(t, [][]byte{
		{0x90, 60, 100}, {0x90, 62, 100}, {0x90, 60, 0}, {0xD0, 10}, {0xD0, 20},
	}, out)
}

func TestFramer_RealtimeInterleaved(t *testing.T) {
	out, _ := frame([]byte{0x90, 60, 0xF8, 100, 0xFA})
	assert.Equal(t, [][]byte{{0xF8}, {0x90, 60, 100}, {0xFA}}, out)
}

func TestFramer_SysEx(t *testing.T) {
	out, _ := frame([]byte{0xF0, 0x7E, 0x7F}, []byte{0x06, 0x01, 0xF7, 0x90, 1, 2})
	assert.Equal(t, [][]byte{{0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7}, {0x90, 1, 2}}, out)
}

func TestFramer_SysExCancelsRunningStatus(t *testing.T) {
	out, f := frame([]byte{0x90, 60, 100, 0xF0, 1, 0xF7, 61, 100})
	assert.Equal(t, [][]byte{{0x90, 60, 100}, {0xF0, 1, 0xF7}}, out)
	assert.Equal(t, 2, f.Dropped())
}

func TestFramer_SongPosition(t *testing.T) {
	out, _ := frame([]byte{0xF2, 0x10, 0x20, 0xF6})
	assert.Equal(t, [][]byte{{0xF2, 0x10, 0x20}, {0xF6}}, out)
}

func TestFramer_DropsStrayAndInterrupted(t *testing.T) {
	out, f := frame([]byte{1, 2, 0x90, 60, 0xB0, 1, 2, 0xF7})
	assert.Equal(t, [][]byte{{0xB0, 1, 2}}, out)
	assert.Equal(t, 5, f.Dropped())
}

func TestFramer_Reset(t *testing.T) {
	out, f := frame([]byte{0x90, 60, 100})
	f.Reset()
	_, _ = f.Write([]byte{61, 100})
	assert.Len(t, out, 1)
}

func TestDelta(t *testing.T) {
	base := time.Unix(100, 0)
	now := base
	d := &Delta{now: func() time.Time { return now }}

	assert.Zero(t, d.Next())
	now = base.Add(250 * time.Millisecond)
	assert.InDelta(t, 0.25, d.Next(), 1e-9)
	now = now.Add(time.Second)
	assert.InDelta(t, 1.0, d.Next(), 1e-9)
}
