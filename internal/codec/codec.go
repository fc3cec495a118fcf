package codec

import "fmt"

// Category classifies a raw delivery before generic decoding.
type Category int

const (
	// CategoryChannel is any short message decoded into a Message, system bytes included.
	CategoryChannel Category = iota
	// CategorySysEx is a complete system exclusive message (0xF0 ... 0xF7).
	CategorySysEx
	// CategoryRealtime is a single byte clock message (0xF8, 0xFA, 0xFB, 0xFC).
	CategoryRealtime
)

// String implements fmt.Stringer.
func (c Category) String() string {
	switch c {
	case CategorySysEx:
		return "sysex"
	case CategoryRealtime:
		return "realtime"
	default:
		return "channel"
	}
}

// Packet is the result of decoding one raw delivery. Message is only meaningful for
// CategoryChannel.
type Packet struct {
	Category Category
	Message  Message
	Raw      []byte
}

// Intent tells Clean what a message without a Kind is meant to be.
// It is one of Controller, Program or Note.
type Intent interface {
	isIntent()
}

// Controller resolves to a control change on controller Number.
type Controller struct{ Number uint8 }

// Program resolves to a program change to program Number.
type Program struct{ Number uint8 }

// Note resolves to NoteOn, or NoteOff when Velocity is zero.
type Note struct{ Number, Velocity uint8 }

func (Controller) isIntent() {}
func (Program) isIntent()    {}
func (Note) isIntent()       {}

// IsSysEx reports whether raw is a complete system exclusive message.
func IsSysEx(raw []byte) bool {
	return len(raw) >= 2 && raw[0] == SysExStart && raw[len(raw)-1] == SysExEnd
}

// IsRealtime reports whether raw is a single byte clock message.
func IsRealtime(raw []byte) bool {
	if len(raw) != 1 {
		return false
	}
	switch raw[0] {
	case 0xF8, 0xFA, 0xFB, 0xFC:
		return true
	}
	return false
}

// Decode turns a raw delivery into a Packet. SysEx and real-time bytes are recognised first
// and returned undecoded; everything else is decoded and cleaned into a Message whose
// Timestamp.Delta is set to delta.
func Decode(raw []byte, delta float64) (Packet, error) {
	switch {
	case len(raw) == 0:
		return Packet{}, &DecodeError{Raw: raw, Reason: "empty message"}
	case IsSysEx(raw):
		return Packet{Category: CategorySysEx, Raw: raw}, nil
	case IsRealtime(raw):
		return Packet{Category: CategoryRealtime, Raw: raw}, nil
	case raw[0] < 0x80:
		return Packet{}, &DecodeError{Raw: raw, Reason: "missing status byte"}
	case raw[0] == SysExStart:
		return Packet{}, &DecodeError{Raw: raw, Reason: "unterminated system exclusive"}
	}

	status := raw[0]
	msg := Message{
		Kind:    KindFromStatus(status),
		Channel: status & ChannelMask,
		Status:  status,
	}
	size := MessageSize(msg.Kind, status)
	if msg.Kind.IsChannelVoice() && len(raw) < size {
		return Packet{}, &DecodeError{Raw: raw, Reason: fmt.Sprintf("%s needs %d bytes", msg.Kind, size)}
	}
	if len(raw) > 1 {
		msg.Data = raw[1]
	}
	if len(raw) > 2 && size == 3 {
		msg.Value = raw[2]
	}
	msg.Timestamp.Delta = delta

	clean, err := Clean(msg, nil)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Category: CategoryChannel, Message: clean, Raw: raw}, nil
}

// Clean normalises msg. It masks the channel, resolves an unset Kind from intent, rewrites
// NoteOn with velocity zero to NoteOff and recomputes Status from Kind and Channel.
// It fails with ErrUnresolvableMessage when msg has no Kind and intent is nil.
func Clean(msg Message, intent Intent) (Message, error) {
	msg.Channel &= ChannelMask

	if msg.Kind == 0 {
		switch in := intent.(type) {
		case Controller:
			msg.Kind = ControlChange
			msg.Data = in.Number
		case Program:
			msg.Kind = ProgramChange
			msg.Data = in.Number
		case Note:
			msg.Data = in.Number
			msg.Value = in.Velocity
			msg.Kind = NoteOn
			if in.Velocity == 0 {
				msg.Kind = NoteOff
			}
		default:
			return msg, fmt.Errorf("%w: %+v", ErrUnresolvableMessage, msg)
		}
	}

	if msg.Kind == NoteOn && msg.Value == 0 {
		msg.Kind = NoteOff
	}
	msg.Status = byte(msg.Kind) | msg.Channel
	return msg, nil
}

// MustClean is Clean for messages whose Kind is known to be set. It panics otherwise.
func MustClean(msg Message) Message {
	clean, err := Clean(msg, nil)
	if err != nil {
		panic(err)
	}
	return clean
}

// Encode cleans msg and returns its wire bytes, truncated to MessageSize.
func Encode(msg Message) ([]byte, error) {
	clean, err := Clean(msg, nil)
	if err != nil {
		return nil, err
	}
	full := []byte{clean.Status, clean.Data, clean.Value}
	return full[:MessageSize(clean.Kind, clean.Status)], nil
}

// MessageSize returns the wire size of a message.
//
// Program change and channel after touch are 2 bytes, the other channel voice kinds are 3.
// System messages are 1 byte, with one fixed exception: status 242 (0xF2, song position
// pointer) is 3 bytes. Other multi-byte system messages (0xF1, 0xF3) are sized 1.
func MessageSize(kind Kind, status byte) int {
	if kind.IsChannelVoice() {
		if kind == ProgramChange || kind == ChannelAfterTouch {
			return 2
		}
		return 3
	}
	if status == 242 {
		return 3
	}
	return 1
}

// SysEx frames payload between the system exclusive start and end bytes.
func SysEx(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, SysExStart)
	out = append(out, payload...)
	return append(out, SysExEnd)
}

// SysExString frames the bytes of s as a system exclusive message.
func SysExString(s string) []byte {
	return SysEx([]byte(s))
}
