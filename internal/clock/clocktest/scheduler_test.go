package clocktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_FiresInDeadlineOrder(t *testing.T) {
	s := New()
	var got []string
	s.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	s.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	s.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })

	s.Advance(15 * time.Millisecond)
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 2, s.Pending())

	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, s.Pending())
	assert.Equal(t, 15*time.Millisecond+time.Second, s.Now())
}

func TestScheduler_Stop(t *testing.T) {
	s := New()
	fired := false
	tm := s.AfterFunc(time.Millisecond, func() { fired = true })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	s.Advance(time.Second)
	assert.False(t, fired)

	tm = s.AfterFunc(time.Millisecond, func() {})
	s.Advance(time.Second)
	assert.False(t, tm.Stop())
}

func TestScheduler_CallbackArmsTimer(t *testing.T) {
	s := New()
	var at []time.Duration
	s.AfterFunc(10*time.Millisecond, func() {
		at = append(at, s.Now())
		s.AfterFunc(10*time.Millisecond, func() { at = append(at, s.Now()) })
	})
	s.Advance(25 * time.Millisecond)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, at)
}
