//go:build !windows
// +build !windows

package midiwindows

import (
	"errors"

	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// ErrUnavailable is returned when winmm is requested off Windows.
var ErrUnavailable = errors.New("winmm MIDI is not available on this platform")

// NewDriver reports that winmm is unavailable.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("winmm driver requested on a non-Windows system")
	return nil, ErrUnavailable
}
