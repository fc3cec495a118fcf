// Package config loads the YAML configuration of the midiroute command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/router"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Verbose   bool            `yaml:"verbose"`
	QueueSize int             `yaml:"queue_size"`
	Filter    []string        `yaml:"filter"`
	Serial    *SerialConfig   `yaml:"serial"`
	Inputs    []InputConfig   `yaml:"inputs"`
	Outputs   []OutputConfig  `yaml:"outputs"`
	Routes    []RouteConfig   `yaml:"routes"`
	Gestures  []GestureConfig `yaml:"gestures"`
	Recorder  RecorderConfig  `yaml:"recorder"`
}

// LogConfig controls log verbosity and destination.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SerialConfig selects a serial line instead of the platform driver.
type SerialConfig struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
}

// InputConfig opens one input port.
type InputConfig struct {
	Name             string             `yaml:"name"`
	Port             contracts.Selector `yaml:"port"`
	MomentaryToggles []uint8            `yaml:"momentary_toggles"`
}

// OutputConfig opens one output port.
type OutputConfig struct {
	Name string             `yaml:"name"`
	Port contracts.Selector `yaml:"port"`
}

// RouteConfig forwards messages matching Pattern on input From to output To.
type RouteConfig struct {
	From      string `yaml:"from"`
	Pattern   string `yaml:"pattern"`
	To        string `yaml:"to"`
	Channel   *uint8 `yaml:"channel"`
	Exclusive bool   `yaml:"exclusive"`
}

// Gesture types.
const (
	GestureHold   = "hold"
	GesturePress  = "press"
	GestureDouble = "double"
	GestureTriple = "triple"
	GestureClicks = "clicks"
	GestureToggle = "toggle"
)

var gestureTypes = map[string]bool{
	GestureHold: true, GesturePress: true, GestureDouble: true,
	GestureTriple: true, GestureClicks: true, GestureToggle: true,
}

// GestureConfig runs a detector on input From. When it fires, the message Send is sent
// to output To; a toggle scales the value of Send with its state. Without To the
// gesture is only logged.
type GestureConfig struct {
	Name      string        `yaml:"name"`
	From      string        `yaml:"from"`
	Type      string        `yaml:"type"`
	Pattern   string        `yaml:"pattern"`
	Threshold time.Duration `yaml:"threshold"`
	Count     int           `yaml:"count"`
	Timeout   time.Duration `yaml:"timeout"`
	States    int           `yaml:"states"`
	To        string        `yaml:"to"`
	Send      string        `yaml:"send"`
}

// RecorderConfig enables the event log.
type RecorderConfig struct {
	Path          string        `yaml:"path"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Default returns the configuration used when no file is given: the first input, no
// outputs, info logging.
func Default() *Config {
	return &Config{
		Log:       LogConfig{Level: "info"},
		QueueSize: 256,
		Inputs:    []InputConfig{{Name: "in"}},
		Recorder:  RecorderConfig{FlushInterval: 2 * time.Second},
	}
}

// Load reads and validates the file at path, on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML data, on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks names, patterns and references between sections.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		add("log.level %q is not a level", c.Log.Level)
	}
	if c.QueueSize < 0 {
		add("queue_size must not be negative")
	}
	if _, err := c.EventFilter(); err != nil {
		add("%v", err)
	}
	if c.Serial != nil && c.Serial.Device == "" {
		add("serial.device is required")
	}

	inputs := map[string]bool{}
	for i, in := range c.Inputs {
		if in.Name == "" {
			add("inputs[%d].name is required", i)
		}
		if inputs[in.Name] {
			add("inputs[%d].name %q is duplicated", i, in.Name)
		}
		inputs[in.Name] = true
		for _, cc := range in.MomentaryToggles {
			if int(cc) >= codec.MaxData {
				add("inputs[%d].momentary_toggles: controller %d out of range", i, cc)
			}
		}
	}
	outputs := map[string]bool{}
	for i, out := range c.Outputs {
		if out.Name == "" {
			add("outputs[%d].name is required", i)
		}
		if outputs[out.Name] {
			add("outputs[%d].name %q is duplicated", i, out.Name)
		}
		outputs[out.Name] = true
	}
	for i, r := range c.Routes {
		if !inputs[r.From] {
			add("routes[%d].from %q is not an input", i, r.From)
		}
		if !outputs[r.To] {
			add("routes[%d].to %q is not an output", i, r.To)
		}
		if _, err := router.SplitPattern(r.Pattern); err != nil {
			add("routes[%d].pattern: %v", i, err)
		}
		if r.Channel != nil && int(*r.Channel) >= codec.NumChannels {
			add("routes[%d].channel %d out of range", i, *r.Channel)
		}
	}

	for i, g := range c.Gestures {
		if !inputs[g.From] {
			add("gestures[%d].from %q is not an input", i, g.From)
		}
		if !gestureTypes[strings.ToLower(g.Type)] {
			add("gestures[%d].type %q is not a gesture", i, g.Type)
		}
		if _, err := router.SplitPattern(g.Pattern); err != nil {
			add("gestures[%d].pattern: %v", i, err)
		}
		switch strings.ToLower(g.Type) {
		case GestureHold:
			if g.Threshold <= 0 {
				add("gestures[%d].threshold must be positive", i)
			}
		case GestureClicks:
			if g.Count <= 0 {
				add("gestures[%d].count must be positive", i)
			}
		case GestureToggle:
			if g.States < 0 {
				add("gestures[%d].states must not be negative", i)
			}
		}
		if g.To != "" {
			if !outputs[g.To] {
				add("gestures[%d].to %q is not an output", i, g.To)
			}
			if _, err := codec.Parse(g.Send); err != nil {
				add("gestures[%d].send: %v", i, err)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// LogLevel returns the configured level.
func (c *Config) LogLevel() contracts.LogLevel {
	return contracts.ParseLogLevel(strings.ToLower(c.Log.Level))
}

var filterKinds = map[string]contracts.MIDICommand{
	"noteon":       contracts.NoteOn,
	"noteoff":      contracts.NoteOff,
	"keyafter":     contracts.KeyAfterTouch,
	"cc":           contracts.ControlChange,
	"program":      contracts.ProgramChange,
	"channelafter": contracts.ChannelAfterTouch,
	"pitchbend":    contracts.PitchBend,
}

// EventFilter converts the filter kind names to a MIDIEventFilter.
func (c *Config) EventFilter() (contracts.MIDIEventFilter, error) {
	var f contracts.MIDIEventFilter
	for _, name := range c.Filter {
		cmd, ok := filterKinds[strings.ToLower(name)]
		if !ok {
			return f, fmt.Errorf("filter: unknown kind %q", name)
		}
		f.Commands = append(f.Commands, cmd)
	}
	return f, nil
}

// ClientOptions returns the client options described by the configuration.
func (c *Config) ClientOptions() []contracts.Option {
	opts := []contracts.Option{
		contracts.WithLogLevel(c.LogLevel()),
		contracts.WithVerbose(c.Verbose),
		contracts.WithQueueSize(c.QueueSize),
	}
	if c.Log.File != "" {
		opts = append(opts, contracts.WithLogFile(c.Log.File))
	}
	if f, err := c.EventFilter(); err == nil && len(f.Commands) > 0 {
		opts = append(opts, contracts.WithMIDIEventFilter(f))
	}
	if c.Serial != nil {
		opts = append(opts, contracts.WithSerial(contracts.SerialConfig{
			Device:   c.Serial.Device,
			BaudRate: c.Serial.BaudRate,
		}))
	}
	return opts
}

// Input returns the input named name.
func (c *Config) Input(name string) (InputConfig, bool) {
	for _, in := range c.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputConfig{}, false
}
