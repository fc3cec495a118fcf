//go:build !linux || !cgo

// Package midirtm implements the MIDI port boundary on RtMidi (ALSA on Linux).
package midirtm

import (
	"errors"

	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// ErrUnavailable is returned where RtMidi is not compiled in.
var ErrUnavailable = errors.New("RtMidi is not available on this platform")

// NewDriver reports that RtMidi is unavailable.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("RtMidi driver requested on a build without it")
	return nil, ErrUnavailable
}
