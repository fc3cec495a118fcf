package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midiroute/internal/midi/mididarwin"
	"github.com/leandrodaf/midiroute/internal/midi/midirtm"
	"github.com/leandrodaf/midiroute/internal/midi/midiserial"
	"github.com/leandrodaf/midiroute/internal/midi/midiwindows"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system has no MIDI driver.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// driverInitializers maps OS names to the platform MIDI driver.
var driverInitializers = map[string]func(*contracts.ClientOptions) (contracts.Driver, error){
	"darwin":  mididarwin.NewDriver,  // CoreMIDI
	"windows": midiwindows.NewDriver, // winmm
	"linux":   midirtm.NewDriver,     // RtMidi over ALSA
}

// NewDriver returns the driver described by opts: an injected driver, a serial line, or the
// driver of the current operating system.
func NewDriver(opts *contracts.ClientOptions) (contracts.Driver, error) {
	if opts.Driver != nil {
		return opts.Driver, nil
	}
	if opts.SerialConfig != nil {
		return midiserial.New(opts)
	}
	if initializer, exists := driverInitializers[runtime.GOOS]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}
