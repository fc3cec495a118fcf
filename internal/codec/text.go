package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a message from its textual form "<kind> <channel> <data> [value]", where kind
// is one of "cc", "program", "noteon" or "noteoff". Note values default to 127.
func Parse(s string) (Message, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return Message{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	nums := make([]uint8, 0, 3)
	for _, f := range fields[1:] {
		n, err := strconv.ParseUint(f, 10, 8)
		if err != nil || n >= MaxData {
			return Message{}, fmt.Errorf("%w: %q: bad number %q", ErrParse, s, f)
		}
		nums = append(nums, uint8(n))
	}
	channel, data := nums[0], nums[1]
	var value uint8
	hasValue := len(nums) > 2
	if hasValue {
		value = nums[2]
	}

	switch strings.ToLower(fields[0]) {
	case "cc":
		return CC(data, channel, value), nil
	case "program":
		return ProgramMsg(data, channel), nil
	case "noteoff":
		return NoteMsg(data, channel, true, 0), nil
	case "noteon", "note":
		if !hasValue {
			value = 127
		}
		return NoteMsg(data, channel, value == 0, value), nil
	}
	return Message{}, fmt.Errorf("%w: %q: unknown kind %q", ErrParse, s, fields[0])
}

// Desc returns "<kind> <channel> <data> <value>", the inverse of Parse.
func Desc(msg Message) string {
	return fmt.Sprintf("%s %d %d %d", msg.Kind.Name(), msg.Channel, msg.Data, msg.Value)
}

// Short returns "<kind> <channel> <data>", collapsing both note kinds into "note".
func Short(msg Message) string {
	name := msg.Kind.Name()
	if msg.Kind.IsNote() {
		name = "note"
	}
	return fmt.Sprintf("%s %d %d", name, msg.Channel, msg.Data)
}

// Text returns a human readable line, using note letters for note messages.
func Text(msg Message) string {
	data := strconv.Itoa(int(msg.Data))
	if msg.Kind.IsNote() {
		data = NoteName(msg.Data)
	}
	return fmt.Sprintf("%s %s %d", msg.Kind, data, msg.Value)
}
