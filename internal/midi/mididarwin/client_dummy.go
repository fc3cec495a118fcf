//go:build !darwin
// +build !darwin

package mididarwin

import (
	"errors"

	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// ErrUnavailable is returned when CoreMIDI is requested off macOS.
var ErrUnavailable = errors.New("CoreMIDI is not available on this platform")

// NewDriver reports that CoreMIDI is unavailable.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("CoreMIDI driver requested on a non-macOS system")
	return nil, ErrUnavailable
}
