package codec

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the codec.
var (
	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("malformed MIDI message")

	// ErrUnresolvableMessage is returned by Clean when no kind can be inferred.
	ErrUnresolvableMessage = errors.New("cannot resolve MIDI message kind")

	// ErrUnknownNote is returned when a note name cannot be parsed.
	ErrUnknownNote = errors.New("unknown note name")

	// ErrParse is returned when a textual message description cannot be parsed.
	ErrParse = errors.New("cannot parse MIDI message")

	// ErrCannotConvert is returned by Convert for targets that are neither notes nor controllers.
	ErrCannotConvert = errors.New("cannot convert MIDI message")
)

// DecodeError describes a raw byte sequence that could not be decoded.
type DecodeError struct {
	Raw    []byte
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s (% X)", ErrDecode.Error(), e.Reason, e.Raw)
}

// Is allows errors.Is to match DecodeError with ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
