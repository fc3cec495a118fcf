// Package midi is the public entry point: it opens MIDI ports and routes their messages
// to topic subscribers and gesture detectors.
package midi

import (
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/leandrodaf/midiroute/internal/clock"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/router"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// Types shared with the routing engine.
type (
	Message      = codec.Message
	Kind         = codec.Kind
	Event        = router.Event
	Handler      = router.Handler
	Subscription = router.Subscription
	Timer        = clock.Timer
)

// ErrClientClosed is returned when opening ports on a closed client.
var ErrClientClosed = errors.New("MIDI client closed")

// Client owns a driver and the ports opened through it.
type Client struct {
	options contracts.ClientOptions
	logger  contracts.Logger
	driver  contracts.Driver
	clock   *clock.Clock

	mu      sync.Mutex
	inputs  []*Input
	outputs []*Output
	closed  bool
}

// NewMIDIClient creates a new MIDI client with the specified options.
// It applies default options and picks the driver.
func NewMIDIClient(opts ...contracts.Option) (*Client, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	driver, err := NewDriver(&options)
	if err != nil {
		return nil, err
	}

	return &Client{
		options: options,
		logger:  options.Logger,
		driver:  driver,
		clock:   clock.New(),
	}, nil
}

// Clock returns the clock shared by every input of the client.
func (c *Client) Clock() *clock.Clock {
	return c.clock
}

// Logger returns the client logger.
func (c *Client) Logger() contracts.Logger {
	return c.logger
}

// ListInputs lists the input ports of the driver.
func (c *Client) ListInputs() ([]contracts.DeviceInfo, error) {
	return c.driver.ListInputs()
}

// ListOutputs lists the output ports of the driver.
func (c *Client) ListOutputs() ([]contracts.DeviceInfo, error) {
	return c.driver.ListOutputs()
}

// OpenInput opens the input chosen by sel and starts dispatching its messages.
func (c *Client) OpenInput(sel contracts.Selector) (*Input, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}

	port, err := c.driver.OpenInput(sel)
	if err != nil {
		c.logger.Error("Failed to open MIDI input",
			c.logger.Field().String("pattern", sel.Pattern),
			c.logger.Field().Error("error", err))
		return nil, err
	}
	in := newInput(port, c.clock, &c.options)
	c.inputs = append(c.inputs, in)
	return in, nil
}

// OpenOutput opens the output chosen by sel.
func (c *Client) OpenOutput(sel contracts.Selector) (*Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}

	port, err := c.driver.OpenOutput(sel)
	if err != nil {
		c.logger.Error("Failed to open MIDI output",
			c.logger.Field().String("pattern", sel.Pattern),
			c.logger.Field().Error("error", err))
		return nil, err
	}
	out := newOutput(port, clock.RealScheduler{}, &c.options)
	c.outputs = append(c.outputs, out)
	return out, nil
}

// Close closes every port, then the driver.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	inputs, outputs := c.inputs, c.outputs
	c.inputs, c.outputs = nil, nil
	c.mu.Unlock()

	var err error
	for _, in := range inputs {
		err = multierr.Append(err, in.Close())
	}
	for _, out := range outputs {
		err = multierr.Append(err, out.Close())
	}
	err = multierr.Append(err, c.driver.Close())
	c.logger.Info("MIDI client closed")
	return err
}
