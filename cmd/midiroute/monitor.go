package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/config"
	"github.com/leandrodaf/midiroute/internal/recorder"
	"github.com/leandrodaf/midiroute/sdk/contracts"
	"github.com/leandrodaf/midiroute/sdk/midi"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Open the configured ports and route messages until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, log, err := newClient(cfg)
		if err != nil {
			return err
		}

		var rec *recorder.Recorder
		defer func() {
			if err := shutdown(client, rec); err != nil {
				log.Error("Failed to shut down cleanly", log.Field().Error("error", err))
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := openRoutes(client, cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := openGestures(p, cfg, log); err != nil {
			return err
		}

		if cfg.Recorder.Path != "" {
			rec, err = recorder.Open(cfg.Recorder.Path, log.Named("recorder"),
				recorder.WithClock(client.Clock()),
				recorder.WithFlushInterval(cfg.Recorder.FlushInterval))
			if err != nil {
				return err
			}
			for _, in := range p.inputs {
				in.OnRecord(rec.Record)
			}
			go func() { _ = rec.Run(ctx) }()
			log.Info("Recording events",
				log.Field().String("path", cfg.Recorder.Path),
				log.Field().String("session", rec.Session()))
		}

		log.Info("Monitoring MIDI input. Press Ctrl+C to exit.")
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// ports holds the opened ports by their configured names.
type ports struct {
	inputs  map[string]*midi.Input
	outputs map[string]*midi.Output
}

// shutdown closes the client before the recorder so that every delivery recorded
// before the ports stop reaches the log ahead of its shutdown record.
func shutdown(client *midi.Client, rec *recorder.Recorder) error {
	err := client.Close()
	if rec != nil {
		err = multierr.Append(err, rec.Close())
	}
	return err
}

// openRoutes opens the configured ports and subscribes the routes. Inputs without routes
// print what they receive to w.
func openRoutes(client *midi.Client, cfg *config.Config, w io.Writer) (*ports, error) {
	p := &ports{
		inputs:  make(map[string]*midi.Input, len(cfg.Inputs)),
		outputs: make(map[string]*midi.Output, len(cfg.Outputs)),
	}
	for _, ic := range cfg.Inputs {
		in, err := client.OpenInput(ic.Port)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", ic.Name, err)
		}
		in.MomentaryToggle(ic.MomentaryToggles...)
		p.inputs[ic.Name] = in
	}
	for _, oc := range cfg.Outputs {
		out, err := client.OpenOutput(oc.Port)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", oc.Name, err)
		}
		p.outputs[oc.Name] = out
	}

	routed := map[string]bool{}
	for _, rc := range cfg.Routes {
		in, out := p.inputs[rc.From], p.outputs[rc.To]
		subscribe := in.On
		if rc.Exclusive {
			subscribe = in.OnExclusive
		}
		if _, err := subscribe(rc.Pattern, forward(out, rc.Channel)); err != nil {
			return nil, fmt.Errorf("route %s -> %s: %w", rc.From, rc.To, err)
		}
		routed[rc.From] = true
	}

	var err error
	for name, in := range p.inputs {
		if routed[name] || cfg.Verbose {
			continue
		}
		prefix := name
		_, e := in.On("midi", func(ev midi.Event) {
			fmt.Fprintf(w, "%s\t%.3f\t%s\n", prefix, ev.Message.Timestamp.Total, codec.Text(ev.Message))
		})
		err = multierr.Append(err, e)
	}
	return p, err
}

// forward sends routed events to out, moving channel messages to channel when it is set.
func forward(out *midi.Output, channel *uint8) midi.Handler {
	return func(ev midi.Event) {
		if ev.Category != codec.CategoryChannel {
			_ = out.SendRaw(ev.Raw)
			return
		}
		msg := ev.Message
		if channel != nil && msg.Kind.IsChannelVoice() {
			msg.SetChannel(*channel)
		}
		_ = out.Send(msg)
	}
}

// openGestures starts the configured gesture detectors.
func openGestures(p *ports, cfg *config.Config, log contracts.Logger) error {
	for i, gc := range cfg.Gestures {
		in := p.inputs[gc.From]
		out := p.outputs[gc.To]
		if err := startGesture(in, out, gc, log); err != nil {
			return fmt.Errorf("gestures[%d]: %w", i, err)
		}
	}
	return nil
}

func startGesture(in *midi.Input, out *midi.Output, gc config.GestureConfig, log contracts.Logger) error {
	name := gc.Name
	if name == "" {
		name = gc.Type + " " + gc.Pattern
	}
	var send codec.Message
	if out != nil {
		var err error
		if send, err = codec.Parse(gc.Send); err != nil {
			return err
		}
	}

	// fire logs the gesture and sends its message; a negative value keeps the value of send.
	fire := func(value int) {
		log.Info("Gesture detected", log.Field().String("gesture", name))
		if out == nil {
			return
		}
		msg := send
		if value >= 0 {
			msg.Value = uint8(value)
		}
		_ = out.Send(msg)
	}
	hit := func(midi.Message) { fire(-1) }

	var err error
	switch strings.ToLower(gc.Type) {
	case config.GestureHold:
		_, err = in.Hold(gc.Pattern, gc.Threshold, hit)
	case config.GesturePress:
		_, err = in.Clicks(gc.Pattern, 1, gc.Timeout, hit)
	case config.GestureDouble:
		_, err = in.Clicks(gc.Pattern, 2, gc.Timeout, hit)
	case config.GestureTriple:
		_, err = in.Clicks(gc.Pattern, 3, gc.Timeout, hit)
	case config.GestureClicks:
		_, err = in.Clicks(gc.Pattern, gc.Count, gc.Timeout, hit)
	case config.GestureToggle:
		_, err = in.Toggle(gc.Pattern, gc.States, func(state int, _ midi.Message, numStates int) {
			fire(toggleValue(state, numStates))
		})
	default:
		err = fmt.Errorf("unknown gesture type %q", gc.Type)
	}
	return err
}

// toggleValue spreads the states of a toggle over 0..127.
func toggleValue(state, numStates int) int {
	if numStates <= 1 {
		return codec.MaxData - 1
	}
	return state * (codec.MaxData - 1) / (numStates - 1)
}
