package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/logger"
	"github.com/leandrodaf/midiroute/sdk/contracts"
	"github.com/leandrodaf/midiroute/sdk/midi"
)

func main() {
	log := logger.NewStandardLogger()

	client, err := midi.NewMIDIClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
			Commands: []contracts.MIDICommand{contracts.NoteOn, contracts.NoteOff, contracts.ControlChange},
		}),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
		return
	}
	defer client.Close()

	devices, err := client.ListInputs()
	if err != nil || len(devices) == 0 {
		log.Error("No MIDI inputs found or error listing devices", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI inputs:", contracts.Names(devices))

	in, err := client.OpenInput(contracts.Selector{})
	if err != nil {
		log.Error("Failed to open MIDI input", log.Field().Error("error", err))
		return
	}

	// The sustain pedal latches instead of acting momentarily.
	in.MomentaryToggle(64)

	if _, err := in.On("midi.noteon, midi.noteoff", func(ev midi.Event) {
		log.Info("MIDI Event",
			log.Field().String("note", codec.NoteName(ev.Message.Data)),
			log.Field().Uint8("velocity", ev.Message.Value),
			log.Field().Float64("delta", ev.Delta),
		)
	}); err != nil {
		log.Error("Failed to subscribe", log.Field().Error("error", err))
		return
	}

	_, _ = in.Hold("midi.note.*.36", time.Second, func(msg midi.Message) {
		log.Info("C2 held for a second")
	})
	_, _ = in.DoubleClick("midi.note.*.38", func(msg midi.Message) {
		log.Info("D2 double clicked")
	})
	_, _ = in.Toggle("midi.cc.*.64", 2, func(state int, msg midi.Message, numStates int) {
		log.Info("Sustain latch", log.Field().Int("state", state))
	})

	// Play a note through the router as if it had been played on the keyboard.
	_, _ = in.Simulate(codec.NoteMsg(60, 0, false, 100), 500*time.Millisecond)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	fmt.Println("Capturing MIDI events... Press Ctrl+C to exit.")
	<-stop
}
