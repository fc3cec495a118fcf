package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_Resolve(t *testing.T) {
	names := []string{"Midi Through Port-0", "Launchkey MK3 MIDI 1", "Launchkey MK3 MIDI 2", "FluidSynth"}

	tests := []struct {
		name string
		sel  Selector
		want int
	}{
		{"regexp case insensitive", Selector{Pattern: "launchkey"}, 1},
		{"second match", Selector{Pattern: "launchkey", Match: 1}, 2},
		{"exclusion", Selector{Pattern: "midi", Exclude: []string{"through"}}, 1},
		{"empty matches first", Selector{}, 0},
		{"anchored", Selector{Pattern: "^fluid"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sel.Resolve("input", names)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelector_ResolveNotFound(t *testing.T) {
	_, err := Selector{Pattern: "launchpad"}.Resolve("output", []string{"a", "b"})
	require.ErrorIs(t, err, ErrPortNotFound)

	var nf *PortNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "output", nf.Direction)
	assert.Equal(t, []string{"a", "b"}, nf.Available)
	assert.Contains(t, err.Error(), `"launchpad"`)

	_, err = Selector{Pattern: "midi", Match: 2}.Resolve("input", []string{"midi 1", "midi 2"})
	assert.ErrorIs(t, err, ErrPortNotFound)
}

func TestSelector_InvalidPattern(t *testing.T) {
	_, err := Selector{Pattern: "("}.Resolve("input", []string{"x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPortNotFound)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Names([]DeviceInfo{{Name: "a"}, {Name: "b"}}))
}

func TestMIDIEventFilter_Allows(t *testing.T) {
	var none *MIDIEventFilter
	assert.True(t, none.Allows(0x90))
	assert.True(t, (&MIDIEventFilter{}).Allows(0xB0))

	f := &MIDIEventFilter{Commands: []MIDICommand{NoteOn, NoteOff}}
	assert.True(t, f.Allows(0x80))
	assert.False(t, f.Allows(0xB0))
}
