package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Note letters, flats and sharps, indexed by pitch class.
var (
	NoteLetters      = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}
	NoteLettersSharp = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
)

// General MIDI drum notes.
const (
	DrumKick      uint8 = 36
	DrumSnare     uint8 = 38
	DrumHiHat     uint8 = 42
	DrumHiHatOpen uint8 = 46
)

var (
	letterToPitch = map[string]int{}
	noteNameRe    = regexp.MustCompile(`^([A-Ga-g](?:#|b)?)(\d+)?$`)
)

func init() {
	for i, l := range NoteLetters {
		letterToPitch[l] = i
	}
	for i, l := range NoteLettersSharp {
		letterToPitch[l] = i
	}
}

// RelativeNote returns the pitch class (0-11) of a note number.
func RelativeNote(note uint8) int {
	return int(note) % 12
}

// NoteName returns the flat letter of a note number's pitch class ("C", "Db", ...).
func NoteName(note uint8) string {
	return NoteLetters[RelativeNote(note)]
}

// NoteNumber parses a name such as "C", "Eb3" or "F#4" into a note number, counting
// octaves from 0 so that "C1" is 12.
func NoteNumber(name string) (uint8, error) {
	m := noteNameRe.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	letter := strings.ToUpper(m[1][:1]) + m[1][1:]
	pitch, ok := letterToPitch[letter]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	octave := 0
	if m[2] != "" {
		octave, _ = strconv.Atoi(m[2])
	}
	n := pitch + octave*12
	if n >= MaxData {
		return 0, fmt.Errorf("%w: %q out of range", ErrUnknownNote, name)
	}
	return uint8(n), nil
}
