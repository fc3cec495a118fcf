//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/youpy/go-coremidi"
	"go.uber.org/multierr"

	"github.com/leandrodaf/midiroute/internal/midi/midistream"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrNoMIDIDevices       = errors.New("no MIDI devices found")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrCreateOutputPort    = errors.New("error creating output port")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Driver opens CoreMIDI sources and destinations on macOS.
type Driver struct {
	logger contracts.Logger
	client coremidi.Client // CoreMIDI client shared by every port.

	mu    sync.Mutex
	ports []interface{ Close() error }
}

// NewDriver creates the CoreMIDI client named in options.CoreMIDIConfig.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("MIDI client successfully created",
		options.Logger.Field().String("client", options.CoreMIDIConfig.ClientName))

	return &Driver{logger: options.Logger, client: client}, nil
}

// ListInputs retrieves the CoreMIDI sources.
func (d *Driver) ListInputs() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		d.logger.Warn(ErrNoMIDIDevices.Error())
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		entity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			Index:        i,
			Name:         source.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return devices, nil
}

// ListOutputs retrieves the CoreMIDI destinations.
func (d *Driver) ListOutputs() ([]contracts.DeviceInfo, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}

	devices := make([]contracts.DeviceInfo, len(destinations))
	for i, dest := range destinations {
		devices[i] = contracts.DeviceInfo{Index: i, Name: dest.Name()}
	}
	return devices, nil
}

// OpenInput connects an input port to the selected source.
func (d *Driver) OpenInput(sel contracts.Selector) (contracts.Input, error) {
	if sel.Virtual {
		return nil, contracts.ErrVirtualUnsupported
	}
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	idx, err := sel.Resolve("input", names)
	if err != nil {
		return nil, err
	}
	source := sources[idx]

	in := &input{logger: d.logger, name: source.Name(), delta: midistream.NewDelta()}
	in.framer = midistream.NewFramer(in.emit)

	port, err := coremidi.NewInputPort(d.client, "Input Port", in.handleMIDIMessage)
	if err != nil {
		d.logger.Error(ErrCreateInputPort.Error())
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	in.portConn, err = port.Connect(source)
	if err != nil {
		d.logger.Error(ErrMIDIConnectionError.Error())
		return nil, fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}

	d.logger.Info("MIDI device successfully connected",
		d.logger.Field().Int("deviceID", idx),
		d.logger.Field().String("deviceName", source.Name()))
	d.track(in)
	return in, nil
}

// OpenOutput creates an output port sending to the selected destination.
func (d *Driver) OpenOutput(sel contracts.Selector) (contracts.Output, error) {
	if sel.Virtual {
		return nil, contracts.ErrVirtualUnsupported
	}
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	names := make([]string, len(destinations))
	for i, dst := range destinations {
		names[i] = dst.Name()
	}
	idx, err := sel.Resolve("output", names)
	if err != nil {
		return nil, err
	}

	port, err := coremidi.NewOutputPort(d.client, "Output Port")
	if err != nil {
		d.logger.Error(ErrCreateOutputPort.Error())
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	out := &output{name: destinations[idx].Name(), port: port, dest: destinations[idx]}
	d.logger.Info("MIDI output connected", d.logger.Field().String("deviceName", out.name))
	d.track(out)
	return out, nil
}

// Close disconnects every port opened by the driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	ports := d.ports
	d.ports = nil
	d.mu.Unlock()

	var err error
	for _, p := range ports {
		err = multierr.Append(err, p.Close())
	}
	return err
}

func (d *Driver) track(p interface{ Close() error }) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ports = append(d.ports, p)
}

// input receives CoreMIDI packets. A packet may hold several messages and real-time
// bytes, so its data goes through a framer.
type input struct {
	logger   contracts.Logger
	name     string
	handler  atomic.Value // contracts.MessageHandler
	portConn internalPortConnection
	delta    *midistream.Delta

	mu       sync.Mutex // guards framer; CoreMIDI may call back from several threads
	framer   *midistream.Framer
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool
}

func (in *input) Name() string {
	return in.name
}

func (in *input) OnMessage(handler contracts.MessageHandler) {
	if handler == nil {
		in.logger.Error("OnMessage called with nil handler")
		return
	}
	in.handler.Store(handler)
}

// handleMIDIMessage feeds one packet to the framer. Deliveries before OnMessage or after
// Close are dropped.
func (in *input) handleMIDIMessage(_ coremidi.Source, packet coremidi.Packet) {
	if in.stopped.Load() {
		return
	}
	in.wg.Add(1)
	defer in.wg.Done()

	in.mu.Lock()
	defer in.mu.Unlock()
	_, _ = in.framer.Write(packet.Data)
}

func (in *input) emit(raw []byte) {
	handler, _ := in.handler.Load().(contracts.MessageHandler)
	if handler == nil {
		return
	}
	handler(in.delta.Next(), raw)
}

// Close disconnects the source and waits for packets being handled.
func (in *input) Close() error {
	in.stopOnce.Do(func() {
		in.stopped.Store(true)
		if in.portConn != nil {
			in.portConn.Disconnect()
		}
		in.wg.Wait()
		in.logger.Info("MIDI input closed", in.logger.Field().String("deviceName", in.name))
	})
	return nil
}

type output struct {
	name string
	port coremidi.OutputPort
	dest coremidi.Destination

	mu     sync.Mutex
	closed bool
}

func (out *output) Name() string {
	return out.name
}

func (out *output) Send(raw []byte) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return fmt.Errorf("MIDI output %q is closed", out.name)
	}
	packet := coremidi.NewPacket(raw, 0)
	return packet.Send(&out.port, &out.dest)
}

func (out *output) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.closed = true
	return nil
}
