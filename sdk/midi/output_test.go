package midi

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leandrodaf/midiroute/internal/clock/clocktest"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/logger"
	"github.com/leandrodaf/midiroute/sdk/contracts"
	"github.com/leandrodaf/midiroute/sdk/midi/miditest"
)

func newTestOutput(t *testing.T) (*Output, *miditest.Output, *clocktest.Scheduler) {
	t.Helper()
	drv := miditest.NewDriver(nil, []string{"Synth"})
	port, err := drv.OpenOutput(contracts.Selector{})
	require.NoError(t, err)
	sched := clocktest.New()
	out := newOutput(port, sched, &contracts.ClientOptions{Logger: logger.NewNopLogger()})
	return out, drv.Output("Synth"), sched
}

func TestOutput_SendHelpers(t *testing.T) {
	out, port, _ := newTestOutput(t)

	require.NoError(t, out.SendNoteOn(1, 60, 0))
	require.NoError(t, out.SendNote(1, 60, 0))
	require.NoError(t, out.SendCC(2, 7))
	require.NoError(t, out.SendCC(2, 7, 10))
	require.NoError(t, out.SendProgram(3, 9))
	require.NoError(t, out.SendSysEx("hi"))
	require.NoError(t, out.Send(Message{Kind: codec.NoteOn, Data: 62, Value: 0}))

	assert.Equal(t, [][]byte{
		{0x91, 60, 127},
		{0x81, 60, 0},
		{0xB2, 7, 127},
		{0xB2, 7, 10},
		{0xC3, 9},
		{0xF0, 'h', 'i', 0xF7},
		{0x80, 62, 0},
	}, port.Sent())

	assert.ErrorIs(t, out.Send(Message{Data: 1}), codec.ErrUnresolvableMessage)
}

func TestOutput_HeldNotesAndSilence(t *testing.T) {
	out, port, _ := newTestOutput(t)

	require.NoError(t, out.SendNoteOn(0, 60, 100))
	require.NoError(t, out.SendNoteOn(0, 64, 100))
	require.NoError(t, out.SendNoteOn(9, 36, 90))
	require.NoError(t, out.SendNoteOff(0, 64))
	held := out.HeldNotes()
	require.Len(t, held, 2)
	assert.Equal(t, uint8(60), held[0].Data)
	assert.Equal(t, uint8(9), held[1].Channel)

	port.Reset()
	require.NoError(t, out.Silence())
	assert.Equal(t, [][]byte{{0x80, 60, 0}, {0x89, 36, 0}}, port.Sent())
	assert.Empty(t, out.HeldNotes())
}

func TestOutput_TransformAndReplay(t *testing.T) {
	out, port, _ := newTestOutput(t)
	require.NoError(t, out.SendNoteOn(0, 60, 100))
	port.Reset()

	require.NoError(t, out.TransformAndReplay(func(m Message) Message {
		m.Data += 12
		return m
	}))
	assert.Equal(t, [][]byte{{0x80, 60, 0}, {0x90, 72, 100}}, port.Sent())
	held := out.HeldNotes()
	require.Len(t, held, 1)
	assert.Equal(t, uint8(72), held[0].Data)
}

func TestOutput_PlayNote(t *testing.T) {
	out, port, sched := newTestOutput(t)

	tm, err := out.PlayNote(0, 60, 100*time.Millisecond, 80)
	require.NoError(t, err)
	require.NotNil(t, tm)
	assert.Equal(t, [][]byte{{0x90, 60, 80}}, port.Sent())

	sched.Advance(100 * time.Millisecond)
	assert.Equal(t, [][]byte{{0x90, 60, 80}, {0x80, 60, 0}}, port.Sent())

	tm, err = out.PlayNote(0, 61, 0, 80)
	require.NoError(t, err)
	assert.Nil(t, tm)
	assert.Len(t, port.Sent(), 4)
}

func TestOutput_Panic(t *testing.T) {
	out, port, _ := newTestOutput(t)
	require.NoError(t, out.SendNoteOn(0, 60, 100))
	port.Reset()

	require.NoError(t, out.Panic())
	sent := port.Sent()
	assert.Len(t, sent, 1+codec.NumChannels*(2+codec.MaxData))
	assert.Equal(t, []byte{0x80, 60, 0}, sent[0])
	assert.Equal(t, []byte{0xB0, 123, 0}, sent[1])
	assert.Equal(t, []byte{0xB0, 120, 0}, sent[2])
	assert.Equal(t, []byte{0x80, 0, 0}, sent[3])
	assert.Equal(t, []byte{0x8F, 127, 0}, sent[len(sent)-1])
}

func TestOutput_SendErrors(t *testing.T) {
	out, port, _ := newTestOutput(t)
	boom := errors.New("boom")
	port.FailWith(boom)

	assert.ErrorIs(t, out.SendNoteOn(0, 60, 1), boom)
	assert.Empty(t, out.HeldNotes())

	require.NoError(t, out.Close())
}
