package codec

import "fmt"

// Kind is the semantic category of a message, taken from the high nibble of its status byte.
type Kind byte

// Channel voice kinds plus Other, which covers every system status byte (0xF0-0xFF).
// The zero Kind means "not yet resolved" and is only valid as input to Clean.
const (
	NoteOff           Kind = 0x80
	NoteOn            Kind = 0x90
	KeyAfterTouch     Kind = 0xA0
	ControlChange     Kind = 0xB0
	ProgramChange     Kind = 0xC0
	ChannelAfterTouch Kind = 0xD0
	PitchBend         Kind = 0xE0
	Other             Kind = 0xF0
)

// Wire constants.
const (
	TypeMask    byte = 0xF0
	ChannelMask byte = 0x0F
	SysExStart  byte = 0xF0
	SysExEnd    byte = 0xF7

	// NumChannels is the number of MIDI channels addressable by the low nibble.
	NumChannels = 16
	// MaxData is the exclusive upper bound of a 7-bit data byte.
	MaxData = 128
	// PressThreshold is the CC value from which a controller counts as pressed.
	PressThreshold = 64
)

// kindNames maps kinds to their topic segment names.
var kindNames = map[Kind]string{
	NoteOn:            "noteon",
	NoteOff:           "noteoff",
	ControlChange:     "cc",
	ProgramChange:     "program",
	KeyAfterTouch:     "keyafter",
	ChannelAfterTouch: "channelafter",
	PitchBend:         "pitchbend",
}

// KindFromStatus returns the kind encoded in a status byte.
func KindFromStatus(status byte) Kind {
	return Kind(status & TypeMask)
}

// Name returns the topic name of the kind ("noteon", "cc", ...). Anything that is not a
// channel voice kind is named "other".
func (k Kind) Name() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "other"
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	case ControlChange:
		return "ControlChange"
	case ProgramChange:
		return "ProgramChange"
	case KeyAfterTouch:
		return "KeyAfterTouch"
	case ChannelAfterTouch:
		return "ChannelAfterTouch"
	case PitchBend:
		return "PitchBend"
	case 0:
		return "Unset"
	default:
		return fmt.Sprintf("Other(0x%02X)", byte(k))
	}
}

// IsChannelVoice reports whether k is one of the seven channel voice kinds.
func (k Kind) IsChannelVoice() bool {
	return k >= NoteOff && k <= PitchBend && byte(k)&ChannelMask == 0
}

// IsNote reports whether k is NoteOn or NoteOff.
func (k Kind) IsNote() bool {
	return k == NoteOn || k == NoteOff
}

// Timestamp carries the timing information attached to a delivered message.
type Timestamp struct {
	Delta float64 // seconds since the previous delivery as reported by the port; NaN when simulated
	Total float64 // seconds since the clock's boot reference
	Nanos int64   // monotonic nanoseconds since the clock's boot reference
	Wall  int64   // wall clock unix milliseconds, display only
}

// Origin identifies where a message came from.
type Origin struct {
	Port            string
	Simulated       bool
	OriginalChannel uint8
	OriginalData    uint8
}

// Message is the structured form of a short MIDI message.
//
// Status always equals byte(Kind) | Channel once the message went through Clean. Value is
// zero and not transmitted for two byte kinds (program change, channel after touch).
type Message struct {
	Kind      Kind
	Channel   uint8
	Data      uint8
	Value     uint8
	Status    uint8
	Timestamp Timestamp
	Origin    Origin
}

// SetChannel changes the channel and keeps Status in sync.
func (m *Message) SetChannel(channel uint8) {
	m.Channel = channel & ChannelMask
	m.Status = byte(m.Kind) | m.Channel
}

// SetKind changes the kind and keeps Status in sync.
func (m *Message) SetKind(kind Kind) {
	m.Kind = kind
	m.Status = byte(m.Kind) | m.Channel
}

// Sig returns a key identifying the (kind, channel, data) triple of the message.
func (m Message) Sig() string {
	return fmt.Sprintf("%d|%d|%d", m.Kind, m.Channel, m.Data)
}
