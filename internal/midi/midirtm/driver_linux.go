//go:build linux && cgo

// Package midirtm implements the MIDI port boundary on RtMidi (ALSA on Linux).
package midirtm

import (
	"errors"
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/multierr"

	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// ErrListen is returned when listening on an opened input fails.
var ErrListen = errors.New("error listening to MIDI input")

// Driver wraps the RtMidi driver.
type Driver struct {
	logger contracts.Logger
	drv    *rtmididrv.Driver

	mu    sync.Mutex
	ports []interface{ Close() error }
}

// NewDriver initialises RtMidi.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	options.Logger.Info("RtMidi driver created")
	return &Driver{logger: options.Logger, drv: drv}, nil
}

// ListInputs lists the RtMidi inputs.
func (d *Driver) ListInputs() ([]contracts.DeviceInfo, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = contracts.DeviceInfo{Index: in.Number(), Name: in.String(), EntityName: in.String()}
	}
	return devices, nil
}

// ListOutputs lists the RtMidi outputs.
func (d *Driver) ListOutputs() ([]contracts.DeviceInfo, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	devices := make([]contracts.DeviceInfo, len(outs))
	for i, out := range outs {
		devices[i] = contracts.DeviceInfo{Index: out.Number(), Name: out.String(), EntityName: out.String()}
	}
	return devices, nil
}

// OpenInput opens the selected input, or creates a virtual one named after the pattern.
func (d *Driver) OpenInput(sel contracts.Selector) (contracts.Input, error) {
	var port drivers.In
	if sel.Virtual {
		in, err := d.drv.OpenVirtualIn(sel.Pattern)
		if err != nil {
			return nil, fmt.Errorf("error creating virtual input %q: %w", sel.Pattern, err)
		}
		port = in
	} else {
		ins, err := d.drv.Ins()
		if err != nil {
			return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
		}
		names := make([]string, len(ins))
		for i, in := range ins {
			names[i] = in.String()
		}
		idx, err := sel.Resolve("input", names)
		if err != nil {
			return nil, err
		}
		port = ins[idx]
		if err := port.Open(); err != nil {
			return nil, fmt.Errorf("error opening MIDI input %q: %w", port.String(), err)
		}
	}

	d.logger.Info("Opened MIDI input",
		d.logger.Field().String("port", port.String()),
		d.logger.Field().Bool("virtual", sel.Virtual))
	in := &input{logger: d.logger, port: port}
	d.track(in)
	return in, nil
}

// OpenOutput opens the selected output, or creates a virtual one named after the pattern.
func (d *Driver) OpenOutput(sel contracts.Selector) (contracts.Output, error) {
	var port drivers.Out
	if sel.Virtual {
		out, err := d.drv.OpenVirtualOut(sel.Pattern)
		if err != nil {
			return nil, fmt.Errorf("error creating virtual output %q: %w", sel.Pattern, err)
		}
		port = out
	} else {
		outs, err := d.drv.Outs()
		if err != nil {
			return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
		}
		names := make([]string, len(outs))
		for i, out := range outs {
			names[i] = out.String()
		}
		idx, err := sel.Resolve("output", names)
		if err != nil {
			return nil, err
		}
		port = outs[idx]
	}

	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("error opening MIDI output %q: %w", port.String(), err)
	}
	d.logger.Info("Opened MIDI output",
		d.logger.Field().String("port", port.String()),
		d.logger.Field().Bool("virtual", sel.Virtual))
	out := &output{port: port, send: send}
	d.track(out)
	return out, nil
}

// Close closes the ports still open and the RtMidi driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	ports := d.ports
	d.ports = nil
	d.mu.Unlock()

	var err error
	for _, p := range ports {
		err = multierr.Append(err, p.Close())
	}
	return multierr.Append(err, d.drv.Close())
}

func (d *Driver) track(p interface{ Close() error }) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ports = append(d.ports, p)
}

type input struct {
	logger contracts.Logger
	port   drivers.In

	mu     sync.Mutex
	stop   func()
	closed bool
}

func (in *input) Name() string {
	return in.port.String()
}

// OnMessage starts listening. RtMidi timestamps are milliseconds since the listener
// started; they are turned into deltas between deliveries.
func (in *input) OnMessage(handler contracts.MessageHandler) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.stop != nil || in.closed {
		return
	}

	var last int32
	first := true
	stop, err := midi.ListenTo(in.port, func(msg midi.Message, ms int32) {
		delta := 0.0
		if !first {
			delta = float64(ms-last) / 1000
		}
		first = false
		last = ms
		handler(delta, msg.Bytes())
	},
		midi.UseSysEx(),
		midi.HandleError(func(err error) {
			in.logger.Warn("MIDI listener error",
				in.logger.Field().String("port", in.port.String()),
				in.logger.Field().Error("error", err))
		}))
	if err != nil {
		in.logger.Error(ErrListen.Error(),
			in.logger.Field().String("port", in.port.String()),
			in.logger.Field().Error("error", err))
		return
	}
	in.stop = stop
}

func (in *input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true
	if in.stop != nil {
		in.stop()
	}
	return in.port.Close()
}

type output struct {
	port drivers.Out
	send func(midi.Message) error

	mu     sync.Mutex
	closed bool
}

func (out *output) Name() string {
	return out.port.String()
}

func (out *output) Send(raw []byte) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return fmt.Errorf("MIDI output %q is closed", out.port.String())
	}
	return out.send(midi.Message(raw))
}

func (out *output) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return nil
	}
	out.closed = true
	return out.port.Close()
}
