package contracts

// MIDICommand represents the status high nibble of a channel message, used for event filtering.
type MIDICommand byte

const (
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
	// KeyAfterTouch is the MIDI command for polyphonic key pressure (0xA0).
	KeyAfterTouch MIDICommand = 0xA0
	// ControlChange is the MIDI command for a controller change (0xB0).
	ControlChange MIDICommand = 0xB0
	// ProgramChange is the MIDI command for a program change (0xC0).
	ProgramChange MIDICommand = 0xC0
	// ChannelAfterTouch is the MIDI command for channel pressure (0xD0).
	ChannelAfterTouch MIDICommand = 0xD0
	// PitchBend is the MIDI command for pitch bend (0xE0).
	PitchBend MIDICommand = 0xE0
)

// MIDIEventFilter allows users to specify which MIDI commands to capture.
// Messages whose command is not listed are dropped before dispatch.
type MIDIEventFilter struct {
	Commands []MIDICommand // List of MIDI commands to filter.
}

// Allows reports whether the filter lets command through.
func (f *MIDIEventFilter) Allows(command byte) bool {
	if f == nil || len(f.Commands) == 0 {
		return true
	}
	for _, c := range f.Commands {
		if byte(c) == command {
			return true
		}
	}
	return false
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// SerialConfig selects a serial line as the port boundary instead of the platform driver.
type SerialConfig struct {
	Device   string // Serial device, e.g. /dev/ttyACM0.
	BaudRate int    // Defaults to 31250, the MIDI DIN rate.
}

// ClientOptions defines the configuration options for the MIDI client.
type ClientOptions struct {
	Logger          Logger           // Logger for logging events and errors.
	LogLevel        LogLevel         // Level of logging to use.
	LogFilePath     string           // File path for logging if file logging is enabled.
	MIDIEventFilter *MIDIEventFilter // Optional filter for MIDI events to capture.
	CoreMIDIConfig  *CoreMIDIConfig  // Configuration specific to CoreMIDI.
	SerialConfig    *SerialConfig    // Optional serial line port boundary.
	Driver          Driver           // Optional driver overriding the platform one.
	QueueSize       int              // Capacity of each input's dispatch queue.
	Verbose         bool             // Log every dispatched message.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the MIDI client.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the MIDI client.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile sends logs to path instead of the console.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithMIDIEventFilter sets the MIDI event filter for the MIDI client.
func WithMIDIEventFilter(filter MIDIEventFilter) Option {
	return func(opts *ClientOptions) {
		opts.MIDIEventFilter = &filter
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration for the MIDI client.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *ClientOptions) {
		opts.CoreMIDIConfig = &config
	}
}

// WithSerial uses a serial line as the port boundary.
func WithSerial(config SerialConfig) Option {
	return func(opts *ClientOptions) {
		opts.SerialConfig = &config
	}
}

// WithDriver uses d instead of the platform driver.
func WithDriver(d Driver) Option {
	return func(opts *ClientOptions) {
		opts.Driver = d
	}
}

// WithQueueSize sets the capacity of each input's dispatch queue.
func WithQueueSize(n int) Option {
	return func(opts *ClientOptions) {
		opts.QueueSize = n
	}
}

// WithVerbose logs every dispatched message at info level.
func WithVerbose(verbose bool) Option {
	return func(opts *ClientOptions) {
		opts.Verbose = verbose
	}
}
