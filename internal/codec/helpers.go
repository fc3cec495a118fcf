package codec

import "math"

// NoteMsg builds a cleaned note message. Off notes always carry velocity 0 and on notes
// with velocity 0 default to 127.
func NoteMsg(note, channel uint8, off bool, velocity uint8) Message {
	if off {
		return MustClean(Message{Kind: NoteOff, Data: note, Channel: channel})
	}
	if velocity == 0 {
		velocity = 127
	}
	return MustClean(Message{Kind: NoteOn, Data: note, Value: velocity, Channel: channel})
}

// CC builds a cleaned control change message.
func CC(controller, channel, value uint8) Message {
	return MustClean(Message{Kind: ControlChange, Data: controller, Value: value, Channel: channel})
}

// ProgramMsg builds a cleaned program change message.
func ProgramMsg(program, channel uint8) Message {
	return MustClean(Message{Kind: ProgramChange, Data: program, Channel: channel})
}

// IsOn reports whether msg is a press: a NoteOn or a control change at or above the
// press threshold.
func IsOn(msg Message) bool {
	return msg.Kind == NoteOn || (msg.Kind == ControlChange && msg.Value >= PressThreshold)
}

// IsOff reports whether msg is a release: a NoteOff or a control change below the press
// threshold.
func IsOff(msg Message) bool {
	return msg.Kind == NoteOff || (msg.Kind == ControlChange && msg.Value < PressThreshold)
}

// Convert maps the press state of source onto target. Note targets become NoteOn (keeping
// their velocity, default 100) or NoteOff; controller targets become 127 or 0.
func Convert(target, source Message) (Message, error) {
	on := IsOn(source)
	switch {
	case target.Kind.IsNote():
		if on {
			target.Kind = NoteOn
			if target.Value == 0 {
				target.Value = 100
			}
		} else {
			target.Kind = NoteOff
			target.Value = 0
		}
	case target.Kind == ControlChange:
		target.Value = 0
		if on {
			target.Value = 127
		}
	default:
		return target, ErrCannotConvert
	}
	return MustClean(target), nil
}

// Inverse returns msg with its value flipped between 0 and 127. Notes flip between NoteOn
// and NoteOff accordingly.
func Inverse(msg Message) Message {
	if msg.Kind == 0 {
		return msg
	}
	if msg.Value == 0 {
		msg.Value = 127
	} else {
		msg.Value = 0
	}
	if msg.Kind.IsNote() {
		msg.Kind = NoteOn
	}
	return MustClean(msg)
}

// Linear is the identity response curve.
func Linear(amt float64) float64 {
	return amt
}

// Quadratic squares amt.
func Quadratic(amt float64) float64 {
	return amt * amt
}

// Exponential is exp(1 - 1/amt²), 0 at amt 0 and 1 at amt 1.
func Exponential(amt float64) float64 {
	if amt == 0 {
		return 0
	}
	return math.Exp(1.0 - 1.0/(amt*amt))
}
