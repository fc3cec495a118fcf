package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leandrodaf/midiroute/internal/clock/clocktest"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/logger"
	"github.com/leandrodaf/midiroute/internal/router"
)

func newRouter(t *testing.T) (*router.Router, *clocktest.Scheduler) {
	t.Helper()
	sched := clocktest.New()
	return router.New(logger.NewNopLogger(), router.WithScheduler(sched)), sched
}

func press(r *router.Router, note uint8) {
	r.Dispatch(codec.NoteMsg(note, 0, false, 100), nil)
}

func release(r *router.Router, note uint8) {
	r.Dispatch(codec.NoteMsg(note, 0, true, 0), nil)
}

const notePattern = "midi.noteon.0.60"

func TestHold_FiresOnce(t *testing.T) {
	r, sched := newRouter(t)
	var fired []codec.Message
	_, err := NewHold(r, sched, notePattern, time.Second, func(msg codec.Message) { fired = append(fired, msg) })
	require.NoError(t, err)

	press(r, 60)
	sched.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)
	sched.Advance(time.Millisecond)
	require.Len(t, fired, 1)
	assert.Equal(t, codec.NoteOn, fired[0].Kind)

	sched.Advance(10 * time.Second)
	assert.Len(t, fired, 1)
}

func TestHold_ReleaseCancels(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	_, err := NewHold(r, sched, notePattern, time.Second, func(codec.Message) { fired++ })
	require.NoError(t, err)

	press(r, 60)
	sched.Advance(500 * time.Millisecond)
	release(r, 60)
	sched.Advance(10 * time.Second)
	assert.Zero(t, fired)
	assert.Zero(t, sched.Pending())
}

func TestHold_NewPressReplacesTimer(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	_, err := NewHold(r, sched, notePattern, time.Second, func(codec.Message) { fired++ })
	require.NoError(t, err)

	press(r, 60)
	sched.Advance(600 * time.Millisecond)
	press(r, 60)
	assert.Equal(t, 1, sched.Pending())

	sched.Advance(600 * time.Millisecond)
	assert.Zero(t, fired)
	sched.Advance(400 * time.Millisecond)
	assert.Equal(t, 1, fired)
}

func TestHold_CloseInvalidatesTimer(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	h, err := NewHold(r, sched, notePattern, time.Second, func(codec.Message) { fired++ })
	require.NoError(t, err)

	press(r, 60)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	sched.Advance(2 * time.Second)
	press(r, 60)
	sched.Advance(2 * time.Second)
	assert.Zero(t, fired)
	assert.False(t, r.HasSubscribers("midi.note.0.60"))
}

func TestHold_ControlChange(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	_, err := NewHold(r, sched, "midi.cc.0.20", 200*time.Millisecond, func(codec.Message) { fired++ })
	require.NoError(t, err)

	r.Dispatch(codec.CC(20, 0, 127), nil)
	sched.Advance(100 * time.Millisecond)
	r.Dispatch(codec.CC(20, 0, 0), nil)
	sched.Advance(time.Second)
	assert.Zero(t, fired)

	r.Dispatch(codec.CC(20, 0, 64), nil)
	sched.Advance(time.Second)
	assert.Equal(t, 1, fired)
}

func TestHold_Errors(t *testing.T) {
	r, sched := newRouter(t)
	_, err := NewHold(r, nil, notePattern, time.Second, func(codec.Message) {})
	assert.ErrorIs(t, err, ErrNilScheduler)
	_, err = NewHold(r, sched, notePattern, time.Second, nil)
	assert.ErrorIs(t, err, router.ErrNilHandler)
	_, err = NewHold(r, sched, "", time.Second, func(codec.Message) {})
	assert.ErrorIs(t, err, router.ErrInvalidPattern)
}

func click(r *router.Router, sched *clocktest.Scheduler, gap time.Duration) {
	press(r, 60)
	release(r, 60)
	sched.Advance(gap)
}

func TestClicks_TripleFiresOnce(t *testing.T) {
	r, sched := newRouter(t)
	timeout := 300 * time.Millisecond
	fired := 0
	c, err := NewClicks(r, sched, notePattern, 3, timeout, func(codec.Message) { fired++ })
	require.NoError(t, err)

	click(r, sched, 100*time.Millisecond)
	click(r, sched, 100*time.Millisecond)
	click(r, sched, 100*time.Millisecond)
	assert.Zero(t, fired)

	sched.Advance(timeout)
	assert.Equal(t, 1, fired)

	// A fourth pair after the timeout starts a new burst at 1.
	click(r, sched, 0)
	c.mu.Lock()
	assert.Equal(t, 1, c.clicks)
	c.mu.Unlock()
	sched.Advance(timeout)
	assert.Equal(t, 1, fired)
}

func TestClicks_TooManyClicksDoNotFire(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	_, err := DoubleClick(r, sched, notePattern, 300*time.Millisecond, func(codec.Message) { fired++ })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		click(r, sched, 100*time.Millisecond)
	}
	sched.Advance(time.Second)
	assert.Zero(t, fired)

	click(r, sched, 100*time.Millisecond)
	click(r, sched, time.Second)
	assert.Equal(t, 1, fired)
}

func TestClicks_PressHandlerReceivesRelease(t *testing.T) {
	r, sched := newRouter(t)
	var got []codec.Message
	_, err := Press(r, sched, notePattern, 0, func(msg codec.Message) { got = append(got, msg) })
	require.NoError(t, err)

	click(r, sched, DefaultClickTimeout)
	require.Len(t, got, 1)
	assert.Equal(t, codec.NoteOff, got[0].Kind)
}

func TestClicks_SlowClicksAreSeparateBursts(t *testing.T) {
	r, sched := newRouter(t)
	singles, doubles := 0, 0
	_, err := Press(r, sched, notePattern, 200*time.Millisecond, func(codec.Message) { singles++ })
	require.NoError(t, err)
	_, err = DoubleClick(r, sched, notePattern, 200*time.Millisecond, func(codec.Message) { doubles++ })
	require.NoError(t, err)

	click(r, sched, 300*time.Millisecond)
	click(r, sched, 300*time.Millisecond)
	assert.Equal(t, 2, singles)
	assert.Zero(t, doubles)
}

func TestClicks_ReleaseWithoutPressIgnored(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	_, err := Press(r, sched, notePattern, 100*time.Millisecond, func(codec.Message) { fired++ })
	require.NoError(t, err)

	release(r, 60)
	sched.Advance(time.Second)
	assert.Zero(t, fired)
}

func TestClicks_CloseDropsBurst(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	c, err := Press(r, sched, notePattern, 100*time.Millisecond, func(codec.Message) { fired++ })
	require.NoError(t, err)

	click(r, sched, 0)
	require.NoError(t, c.Close())
	sched.Advance(time.Second)
	assert.Zero(t, fired)
}

func TestClicks_InvalidCount(t *testing.T) {
	r, sched := newRouter(t)
	_, err := NewClicks(r, sched, notePattern, 0, time.Second, func(codec.Message) {})
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestToggle_Cycle(t *testing.T) {
	r, _ := newRouter(t)
	var states []int
	tg, err := NewToggle(r, notePattern, 3, func(state int, msg codec.Message, n int) {
		assert.Equal(t, 3, n)
		assert.Equal(t, codec.NoteOn, msg.Kind)
		states = append(states, state)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tg.State())

	for i := 0; i < 4; i++ {
		press(r, 60)
		release(r, 60)
	}
	assert.Equal(t, []int{0, 1, 2, 0}, states)
}

func TestToggle_SingleState(t *testing.T) {
	r, _ := newRouter(t)
	var states []int
	_, err := NewToggle(r, notePattern, 1, func(state int, _ codec.Message, _ int) { states = append(states, state) })
	require.NoError(t, err)
	press(r, 60)
	press(r, 60)
	assert.Equal(t, []int{0, 0}, states)
}

func TestToggle_InvalidStates(t *testing.T) {
	r, _ := newRouter(t)
	for _, n := range []int{0, -1} {
		_, err := NewToggle(r, notePattern, n, func(int, codec.Message, int) {})
		assert.ErrorIs(t, err, ErrInvalidStates)
	}
}

func TestToggle_IgnoresOtherKinds(t *testing.T) {
	r, _ := newRouter(t)
	calls := 0
	_, err := NewToggle(r, "midi", DefaultToggleStates, func(int, codec.Message, int) { calls++ })
	require.NoError(t, err)

	r.Dispatch(codec.ProgramMsg(1, 0), nil)
	r.Dispatch(codec.CC(1, 0, 10), nil)
	r.Dispatch(codec.CC(1, 0, 100), nil)
	assert.Equal(t, 1, calls)
}

func TestDetectorsAreIndependent(t *testing.T) {
	r, _ := newRouter(t)
	var a, b []int
	_, err := NewToggle(r, "midi.noteon.0.60", 2, func(s int, _ codec.Message, _ int) { a = append(a, s) })
	require.NoError(t, err)
	_, err = NewToggle(r, "midi.noteon.0.60", 2, func(s int, _ codec.Message, _ int) { b = append(b, s) })
	require.NoError(t, err)

	press(r, 60)
	assert.Equal(t, []int{0}, a)
	assert.Equal(t, []int{0}, b)
}

func TestGroup_Close(t *testing.T) {
	r, sched := newRouter(t)
	var g Group
	tg, err := NewToggle(r, "midi.noteon.0.60", 2, func(int, codec.Message, int) {})
	require.NoError(t, err)
	h, err := NewHold(r, sched, "midi.noteon.0.61", time.Second, func(codec.Message) {})
	require.NoError(t, err)
	g.Add(tg)
	g.Add(h)
	assert.Equal(t, 2, g.Len())

	assert.True(t, r.HasSubscribers("midi.note.0.60"))
	assert.True(t, r.HasSubscribers("midi.note.0.61"))

	require.NoError(t, g.Close())
	assert.Zero(t, g.Len())
	assert.False(t, r.HasSubscribers("midi.note.0.60"))
	assert.False(t, r.HasSubscribers("midi.note.0.61"))
}

func TestEdgeTopics(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"midi.noteon.0.60", []string{"midi.note.0.60"}},
		{"midi.noteoff.*.60", []string{"midi.note.*.60"}},
		{"midi.ccon.0.21", []string{"midi.cc.0.21"}},
		{"midi.ccoff.3", []string{"midi.cc.3"}},
		{"midi.program.0.1", []string{"midi.program.0.1"}},
		{"midi.note.0.60, midi.noteon.0.60", []string{"midi.note.0.60"}},
		{"midi.noteon.0.60 midi.noteon.0", []string{"midi.note.0"}},
		{"midi.note.*.60, midi.noteoff.2.60, midi.note.2.61", []string{"midi.note.*.60", "midi.note.2.61"}},
		{"midi.note.0, midi.note.*.60", []string{"midi.note.0", "midi.note.*.60"}},
		{"midi.cc.0.21, midi", []string{"midi"}},
		{"midi, midi.sysex", []string{"midi", "midi.sysex"}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := edgeTopics(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := edgeTopics("midi.bogus")
	assert.ErrorIs(t, err, router.ErrInvalidPattern)
}

func TestHold_OnTopicTargetSeesRelease(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	_, err := NewHold(r, sched, "midi.noteon.0.60", time.Second, func(codec.Message) { fired++ })
	require.NoError(t, err)

	press(r, 60)
	sched.Advance(500 * time.Millisecond)
	release(r, 60)
	sched.Advance(10 * time.Second)
	assert.Zero(t, fired)
}

func TestPress_CCOnTarget(t *testing.T) {
	r, sched := newRouter(t)
	fired := 0
	_, err := Press(r, sched, "midi.ccon.0.21", 0, func(codec.Message) { fired++ })
	require.NoError(t, err)

	r.Dispatch(codec.CC(21, 0, 127), nil)
	r.Dispatch(codec.CC(21, 0, 0), nil)
	sched.Advance(time.Second)
	assert.Equal(t, 1, fired)
}

func TestClicks_OverlappingPatternCountsOnce(t *testing.T) {
	r, sched := newRouter(t)
	doubles := 0
	_, err := DoubleClick(r, sched, "midi.note.0.60, midi.noteon.0.60", 200*time.Millisecond, func(codec.Message) { doubles++ })
	require.NoError(t, err)
	var states []int
	_, err = NewToggle(r, "midi.note.0.60 midi.noteon.0.60 midi.noteon.0", 2, func(s int, _ codec.Message, _ int) { states = append(states, s) })
	require.NoError(t, err)

	click(r, sched, 50*time.Millisecond)
	click(r, sched, time.Second)
	assert.Equal(t, 1, doubles)
	assert.Equal(t, []int{0, 1}, states)
}
