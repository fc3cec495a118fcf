// Package midiserial exposes serial lines carrying a raw MIDI byte stream (DIN adapters,
// microcontrollers) as MIDI ports.
package midiserial

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/multierr"

	"github.com/leandrodaf/midiroute/internal/midi/midistream"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// DefaultBaudRate is the MIDI DIN rate.
const DefaultBaudRate = 31250

// ErrClosed is returned by operations on a closed driver or port.
var ErrClosed = errors.New("serial MIDI port closed")

// Opener opens a serial line.
type Opener func(name string, mode *serial.Mode) (io.ReadWriteCloser, error)

// Lister lists serial lines.
type Lister func() ([]string, error)

// Driver implements contracts.Driver on serial lines. An input and an output opened on the
// same line share one file handle.
type Driver struct {
	logger contracts.Logger
	config contracts.SerialConfig
	open   Opener
	list   Lister

	mu     sync.Mutex
	lines  map[string]*line
	closed bool
}

type line struct {
	name string
	rw   io.ReadWriteCloser
	refs int
	wmu  sync.Mutex
}

// Option configures a Driver.
type Option func(*Driver)

// WithOpener replaces serial.Open.
func WithOpener(open Opener) Option {
	return func(d *Driver) {
		d.open = open
	}
}

// WithLister replaces serial.GetPortsList.
func WithLister(list Lister) Option {
	return func(d *Driver) {
		d.list = list
	}
}

// New creates a serial driver.
func New(options *contracts.ClientOptions, opts ...Option) (*Driver, error) {
	cfg := contracts.SerialConfig{}
	if options.SerialConfig != nil {
		cfg = *options.SerialConfig
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	d := &Driver{
		logger: options.Logger,
		config: cfg,
		open: func(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
			return serial.Open(name, mode)
		},
		list:  serial.GetPortsList,
		lines: make(map[string]*line),
	}
	for _, opt := range opts {
		opt(d)
	}
	options.Logger.Info("Serial MIDI driver created",
		options.Logger.Field().String("device", cfg.Device),
		options.Logger.Field().Int("baudRate", cfg.BaudRate))
	return d, nil
}

// ListInputs lists the serial lines.
func (d *Driver) ListInputs() ([]contracts.DeviceInfo, error) {
	return d.devices()
}

// ListOutputs lists the serial lines.
func (d *Driver) ListOutputs() ([]contracts.DeviceInfo, error) {
	return d.devices()
}

func (d *Driver) devices() ([]contracts.DeviceInfo, error) {
	names, err := d.names()
	if err != nil {
		return nil, err
	}
	devices := make([]contracts.DeviceInfo, len(names))
	for i, n := range names {
		devices[i] = contracts.DeviceInfo{Index: i, Name: n, Manufacturer: "serial", EntityName: n}
	}
	return devices, nil
}

// names lists the lines, putting the configured device first even when the platform does
// not enumerate it (pseudo terminals, sockets).
func (d *Driver) names() ([]string, error) {
	listed, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("error listing serial ports: %w", err)
	}
	if d.config.Device == "" {
		return listed, nil
	}
	names := []string{d.config.Device}
	for _, n := range listed {
		if n != d.config.Device {
			names = append(names, n)
		}
	}
	return names, nil
}

// OpenInput starts reading MIDI from the selected line.
func (d *Driver) OpenInput(sel contracts.Selector) (contracts.Input, error) {
	l, err := d.acquire("input", sel)
	if err != nil {
		return nil, err
	}
	return &input{driver: d, line: l, delta: midistream.NewDelta(), done: make(chan struct{})}, nil
}

// OpenOutput writes MIDI to the selected line.
func (d *Driver) OpenOutput(sel contracts.Selector) (contracts.Output, error) {
	l, err := d.acquire("output", sel)
	if err != nil {
		return nil, err
	}
	return &output{driver: d, line: l}, nil
}

// Close closes every line still open.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var err error
	for name, l := range d.lines {
		err = multierr.Append(err, l.rw.Close())
		delete(d.lines, name)
	}
	return err
}

func (d *Driver) acquire(direction string, sel contracts.Selector) (*line, error) {
	if sel.Virtual {
		return nil, contracts.ErrVirtualUnsupported
	}
	names, err := d.names()
	if err != nil {
		return nil, err
	}
	idx, err := sel.Resolve(direction, names)
	if err != nil {
		return nil, err
	}
	name := names[idx]

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if l, ok := d.lines[name]; ok {
		l.refs++
		return l, nil
	}
	rw, err := d.open(name, &serial.Mode{BaudRate: d.config.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("error opening serial port %s: %w", name, err)
	}
	l := &line{name: name, rw: rw, refs: 1}
	d.lines[name] = l
	d.logger.Info("Serial MIDI port opened",
		d.logger.Field().String("direction", direction),
		d.logger.Field().String("port", name))
	return l, nil
}

func (d *Driver) release(l *line) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l.refs--; l.refs > 0 {
		return nil
	}
	if d.lines[l.name] != l {
		return nil
	}
	delete(d.lines, l.name)
	return l.rw.Close()
}

type input struct {
	driver *Driver
	line   *line
	delta  *midistream.Delta

	once      sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func (in *input) Name() string {
	return in.line.name
}

// OnMessage starts the read loop. Only the first handler is used.
func (in *input) OnMessage(handler contracts.MessageHandler) {
	in.once.Do(func() {
		framer := midistream.NewFramer(func(raw []byte) {
			handler(in.delta.Next(), raw)
		})
		go in.read(framer)
	})
}

func (in *input) read(framer *midistream.Framer) {
	buf := make([]byte, 256)
	for {
		n, err := in.line.rw.Read(buf)
		if n > 0 {
			_, _ = framer.Write(buf[:n])
		}
		if err != nil {
			select {
			case <-in.done:
			default:
				if !errors.Is(err, io.EOF) {
					in.driver.logger.Error("Serial MIDI read failed",
						in.driver.logger.Field().String("port", in.line.name),
						in.driver.logger.Field().Error("error", err))
				}
			}
			return
		}
	}
}

func (in *input) Close() error {
	var err error
	in.closeOnce.Do(func() {
		close(in.done)
		err = in.driver.release(in.line)
	})
	return err
}

type output struct {
	driver    *Driver
	line      *line
	closeOnce sync.Once
	closed    bool
}

func (out *output) Name() string {
	return out.line.name
}

func (out *output) Send(raw []byte) error {
	out.line.wmu.Lock()
	defer out.line.wmu.Unlock()
	if out.closed {
		return ErrClosed
	}
	if _, err := out.line.rw.Write(raw); err != nil {
		return fmt.Errorf("error writing to serial port %s: %w", out.line.name, err)
	}
	return nil
}

func (out *output) Close() error {
	var err error
	out.closeOnce.Do(func() {
		out.line.wmu.Lock()
		out.closed = true
		out.line.wmu.Unlock()
		err = out.driver.release(out.line)
	})
	return err
}
