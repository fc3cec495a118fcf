// Package miditest provides an in-memory contracts.Driver for tests and examples.
package miditest

import (
	"errors"
	"sync"

	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// ErrClosed is returned by Send on a closed output.
var ErrClosed = errors.New("port closed")

// Driver serves named in-memory ports.
type Driver struct {
	mu       sync.Mutex
	inputs   map[string]*Input
	outputs  map[string]*Output
	inNames  []string
	outNames []string
	closed   bool
}

// NewDriver creates a driver with the given input and output port names.
func NewDriver(inputs, outputs []string) *Driver {
	return &Driver{
		inputs:   make(map[string]*Input),
		outputs:  make(map[string]*Output),
		inNames:  inputs,
		outNames: outputs,
	}
}

func infos(names []string) []contracts.DeviceInfo {
	out := make([]contracts.DeviceInfo, len(names))
	for i, n := range names {
		out[i] = contracts.DeviceInfo{Index: i, Name: n, Manufacturer: "miditest"}
	}
	return out
}

// ListInputs implements contracts.Driver.
func (d *Driver) ListInputs() ([]contracts.DeviceInfo, error) {
	return infos(d.inNames), nil
}

// ListOutputs implements contracts.Driver.
func (d *Driver) ListOutputs() ([]contracts.DeviceInfo, error) {
	return infos(d.outNames), nil
}

// OpenInput implements contracts.Driver. Virtual selectors create a port named after the
// pattern.
func (d *Driver) OpenInput(sel contracts.Selector) (contracts.Input, error) {
	name, err := d.resolve("input", sel, d.inNames)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	in := &Input{name: name}
	d.inputs[name] = in
	return in, nil
}

// OpenOutput implements contracts.Driver.
func (d *Driver) OpenOutput(sel contracts.Selector) (contracts.Output, error) {
	name, err := d.resolve("output", sel, d.outNames)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := &Output{name: name}
	d.outputs[name] = out
	return out, nil
}

func (d *Driver) resolve(direction string, sel contracts.Selector, names []string) (string, error) {
	if sel.Virtual {
		return sel.Pattern, nil
	}
	idx, err := sel.Resolve(direction, names)
	if err != nil {
		return "", err
	}
	return names[idx], nil
}

// Input returns the opened input called name.
func (d *Driver) Input(name string) *Input {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inputs[name]
}

// Output returns the opened output called name.
func (d *Driver) Output(name string) *Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputs[name]
}

// Close implements contracts.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Input is an in-memory input port.
type Input struct {
	name string

	mu      sync.Mutex
	handler contracts.MessageHandler
	closed  bool
}

// Name implements contracts.Input.
func (in *Input) Name() string {
	return in.name
}

// OnMessage implements contracts.Input.
func (in *Input) OnMessage(handler contracts.MessageHandler) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.handler = handler
}

// Deliver feeds raw to the registered handler as a port would. It reports false when no
// handler is registered or the port is closed.
func (in *Input) Deliver(delta float64, raw []byte) bool {
	in.mu.Lock()
	h, closed := in.handler, in.closed
	in.mu.Unlock()
	if h == nil || closed {
		return false
	}
	h(delta, raw)
	return true
}

// Close implements contracts.Input.
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	return nil
}

// Closed reports whether Close was called.
func (in *Input) Closed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

// Output records what is sent to it.
type Output struct {
	name string

	mu     sync.Mutex
	sent   [][]byte
	closed bool
	err    error
}

// Name implements contracts.Output.
func (out *Output) Name() string {
	return out.name
}

// Send implements contracts.Output.
func (out *Output) Send(raw []byte) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return ErrClosed
	}
	if out.err != nil {
		return out.err
	}
	out.sent = append(out.sent, append([]byte(nil), raw...))
	return nil
}

// FailWith makes subsequent sends return err.
func (out *Output) FailWith(err error) {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.err = err
}

// Sent returns a copy of everything sent so far.
func (out *Output) Sent() [][]byte {
	out.mu.Lock()
	defer out.mu.Unlock()
	return append([][]byte(nil), out.sent...)
}

// Reset forgets what was sent.
func (out *Output) Reset() {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.sent = nil
}

// Close implements contracts.Output.
func (out *Output) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.closed = true
	return nil
}
