package midi

import (
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midiroute/internal/clock"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// Controllers sent by Panic.
const (
	ccAllSoundOff = 123
	ccAllNotesOff = 120
)

// Output sends messages to one port and remembers which notes it left sounding.
// Sends do not wait for delivery; transport errors are logged and returned.
type Output struct {
	name    string
	port    contracts.Output
	logger  contracts.Logger
	sched   clock.Scheduler
	verbose bool

	mu      sync.Mutex
	noteOns [codec.NumChannels][codec.MaxData]*codec.Message
}

func newOutput(port contracts.Output, sched clock.Scheduler, options *contracts.ClientOptions) *Output {
	log := options.Logger.Named("output").Named(port.Name())
	log.Info("MIDI output ready")
	return &Output{
		name:    port.Name(),
		port:    port,
		logger:  log,
		sched:   sched,
		verbose: options.Verbose,
	}
}

// Name returns the port name.
func (o *Output) Name() string {
	return o.name
}

// Send encodes and sends msg.
func (o *Output) Send(msg Message) error {
	clean, err := codec.Clean(msg, nil)
	if err != nil {
		return err
	}
	raw, err := codec.Encode(clean)
	if err != nil {
		return err
	}
	if o.verbose {
		o.logger.Info("to output: "+codec.Text(clean), o.logger.Field().Binary("raw", raw))
	}
	if err := o.SendRaw(raw); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	switch clean.Kind {
	case codec.NoteOn:
		m := clean
		o.noteOns[clean.Channel][clean.Data&0x7F] = &m
	case codec.NoteOff:
		o.noteOns[clean.Channel][clean.Data&0x7F] = nil
	}
	return nil
}

// SendRaw sends bytes as they are.
func (o *Output) SendRaw(raw []byte) error {
	if err := o.port.Send(raw); err != nil {
		o.logger.Error("Failed to send MIDI message",
			o.logger.Field().Binary("raw", raw),
			o.logger.Field().Error("error", err))
		return fmt.Errorf("send to %s: %w", o.name, err)
	}
	return nil
}

// SendSysEx frames the bytes of s as a system exclusive message and sends it.
func (o *Output) SendSysEx(s string) error {
	return o.SendRaw(codec.SysExString(s))
}

// SendNoteOn sends a note on. A zero velocity is sent as 127.
func (o *Output) SendNoteOn(channel, note, velocity uint8) error {
	return o.Send(codec.NoteMsg(note, channel, false, velocity))
}

// SendNoteOff sends a note off.
func (o *Output) SendNoteOff(channel, note uint8) error {
	return o.Send(codec.NoteMsg(note, channel, true, 0))
}

// SendNote sends a note off when velocity is zero and a note on otherwise.
func (o *Output) SendNote(channel, note, velocity uint8) error {
	if velocity == 0 {
		return o.SendNoteOff(channel, note)
	}
	return o.SendNoteOn(channel, note, velocity)
}

// SendCC sends a control change. Without a value it sends 127.
func (o *Output) SendCC(channel, controller uint8, value ...uint8) error {
	v := uint8(127)
	if len(value) > 0 {
		v = value[0]
	}
	return o.Send(codec.CC(controller, channel, v))
}

// SendProgram sends a program change.
func (o *Output) SendProgram(channel, program uint8) error {
	return o.Send(codec.ProgramMsg(program, channel))
}

// PlayNote sends a note on and, after duration, the matching note off. A zero duration
// sends the note off immediately and returns a nil Timer.
func (o *Output) PlayNote(channel, note uint8, duration time.Duration, velocity uint8) (Timer, error) {
	if err := o.SendNoteOn(channel, note, velocity); err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, o.SendNoteOff(channel, note)
	}
	return o.sched.AfterFunc(duration, func() {
		_ = o.SendNoteOff(channel, note)
	}), nil
}

// HeldNotes returns the note ons sent without a matching note off, by channel then note.
func (o *Output) HeldNotes() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var held []Message
	for ch := range o.noteOns {
		for _, m := range o.noteOns[ch] {
			if m != nil {
				held = append(held, *m)
			}
		}
	}
	return held
}

// Silence sends a note off for every held note.
func (o *Output) Silence() error {
	var err error
	for _, m := range o.HeldNotes() {
		if e := o.SendNoteOff(m.Channel, m.Data); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// TransformAndReplay releases every held note and sends transform of it in its place,
// for instance to transpose chords that are sounding.
func (o *Output) TransformAndReplay(transform func(Message) Message) error {
	var err error
	for _, m := range o.HeldNotes() {
		if e := o.SendNoteOff(m.Channel, m.Data); e != nil && err == nil {
			err = e
		}
		if e := o.Send(transform(m)); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Panic silences held notes, then sends all sound off, all notes off and a note off for
// every note on every channel.
func (o *Output) Panic() error {
	err := o.Silence()
	for ch := uint8(0); ch < codec.NumChannels; ch++ {
		for _, cc := range []uint8{ccAllSoundOff, ccAllNotesOff} {
			if e := o.SendCC(ch, cc, 0); e != nil && err == nil {
				err = e
			}
		}
		for note := 0; note < codec.MaxData; note++ {
			if e := o.SendNoteOff(ch, uint8(note)); e != nil && err == nil {
				err = e
			}
		}
	}
	o.logger.Warn("MIDI panic sent")
	return err
}

// Close closes the port. Held notes are not released.
func (o *Output) Close() error {
	err := o.port.Close()
	o.logger.Info("MIDI output closed")
	return err
}
