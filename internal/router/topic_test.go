package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leandrodaf/midiroute/internal/codec"
)

func TestTopics_Note(t *testing.T) {
	got := Topics(codec.NoteMsg(60, 0, false, 100))
	assert.Equal(t, []string{
		"midi",
		"midi.note", "midi.noteon",
		"midi.note.*.60", "midi.noteon.*.60",
		"midi.note.0", "midi.noteon.0",
		"midi.note.0.60", "midi.noteon.0.60",
	}, got)

	off := Topics(codec.NoteMsg(60, 2, true, 0))
	assert.Equal(t, "midi.noteoff.2.60", off[len(off)-1])
}

func TestTopics_NarrowFamilyFollowsBroadAtEachLevel(t *testing.T) {
	index := func(topics []string, topic string) int {
		for i, tp := range topics {
			if tp == topic {
				return i
			}
		}
		t.Fatalf("topic %q missing from %v", topic, topics)
		return -1
	}
	cases := []struct {
		msg          codec.Message
		broad, sharp string
	}{
		{codec.NoteMsg(60, 0, false, 100), "midi.note.0.60", "midi.noteon.0.60"},
		{codec.NoteMsg(60, 0, true, 0), "midi.note.*.60", "midi.noteoff.*.60"},
		{codec.CC(21, 0, 127), "midi.cc.0.21", "midi.ccon.0.21"},
		{codec.CC(21, 0, 0), "midi.cc.0", "midi.ccoff.0"},
	}
	for _, tc := range cases {
		topics := Topics(tc.msg)
		assert.Less(t, index(topics, tc.broad), index(topics, tc.sharp), "%s before %s", tc.broad, tc.sharp)
	}
}

func TestTopics_ControlChange(t *testing.T) {
	on := Topics(codec.CC(21, 3, 64))
	assert.Contains(t, on, "midi.cc.3.21")
	assert.Contains(t, on, "midi.ccon.3.21")
	assert.Contains(t, on, "midi.ccon.*.21")
	assert.NotContains(t, on, "midi.ccoff")

	off := Topics(codec.CC(21, 3, 63))
	assert.Contains(t, off, "midi.ccoff.3")
	assert.NotContains(t, off, "midi.ccon")
}

func TestTopics_Program(t *testing.T) {
	assert.Equal(t, []string{
		"midi", "midi.program", "midi.program.*.5", "midi.program.1", "midi.program.1.5",
	}, Topics(codec.ProgramMsg(5, 1)))
}

func TestTopics_EveryStatusByteHasTopics(t *testing.T) {
	for status := 0x80; status <= 0xFF; status++ {
		raw := []byte{byte(status), 1, 2}
		p, err := codec.Decode(raw, 0)
		if err != nil || p.Category != codec.CategoryChannel {
			continue
		}
		topics := Topics(p.Message)
		require.NotEmpty(t, topics, "status 0x%02X", status)
		assert.Equal(t, TopicRoot, topics[0])
		assert.Contains(t, topics, "midi."+p.Message.Kind.Name())
		if p.Message.Kind == codec.Other {
			assert.Contains(t, topics, "midi.other", "status 0x%02X", status)
		}
	}
}

func TestRawTopics(t *testing.T) {
	assert.Equal(t, []string{"midi.sysex", "sysex", "rtm"}, RawTopics(codec.CategorySysEx))
	assert.Equal(t, []string{"midi.midiBeatClock", "midiBeatClock", "rtm"}, RawTopics(codec.CategoryRealtime))
	assert.Equal(t, []string{"rtm"}, RawTopics(codec.CategoryChannel))
}

func TestValidateTopic(t *testing.T) {
	valid := []string{
		"midi", "midi.noteon", "midi.cc.*.21", "midi.cc.15", "midi.cc.0.127", "midi.ccon.2.64",
		"midi.note", "midi.other", "sysex", "rtm", "midiBeatClock", "midi.sysex", "midi.midiBeatClock",
	}
	for _, topic := range valid {
		assert.NoError(t, ValidateTopic(topic), topic)
	}

	invalid := []string{
		"", "note", "midi.", "midi.foo", "midi.cc.16", "midi.cc.*", "midi.cc.0.128",
		"midi.cc.0.1.2", "midi.cc.01", "midi.cc.0.*", "midi.*",
	}
	for _, topic := range invalid {
		assert.ErrorIs(t, ValidateTopic(topic), ErrInvalidPattern, topic)
	}
}

func TestSplitPattern(t *testing.T) {
	got, err := SplitPattern(" midi.noteon.*.60, midi.noteoff.*.60\tmidi.cc.0 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"midi.noteon.*.60", "midi.noteoff.*.60", "midi.cc.0"}, got)

	_, err = SplitPattern(" , ")
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = SplitPattern("midi.noteon, midi.bogus")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestTopicBuilder(t *testing.T) {
	assert.Equal(t, "midi.cc", Topic("cc", -1, -1))
	assert.Equal(t, "midi.cc.*.21", Topic("cc", -1, 21))
	assert.Equal(t, "midi.cc.2", Topic("cc", 2, -1))
	assert.Equal(t, "midi.cc.2.21", Topic("cc", 2, 21))
}
