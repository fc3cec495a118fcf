package midi

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/leandrodaf/midiroute/internal/clock"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/gesture"
	"github.com/leandrodaf/midiroute/internal/router"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// Input routes the messages of one port. Port deliveries, timer callbacks and simulated
// messages all run on the input's dispatch loop, one at a time.
type Input struct {
	name   string
	port   contracts.Input
	logger contracts.Logger
	filter *contracts.MIDIEventFilter

	loop      *router.Loop
	router    *router.Router
	sched     clock.Scheduler
	detectors gesture.Group

	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

func newInput(port contracts.Input, clk *clock.Clock, options *contracts.ClientOptions) *Input {
	log := options.Logger.Named("input").Named(port.Name())
	loop := router.NewLoop(log, options.QueueSize)
	sched := clock.LoopScheduler{Post: loop.PostFunc}

	in := &Input{
		name:   port.Name(),
		port:   port,
		logger: log,
		filter: options.MIDIEventFilter,
		loop:   loop,
		sched:  sched,
		router: router.New(log,
			router.WithClock(clk),
			router.WithScheduler(sched),
			router.WithPortName(port.Name())),
	}

	ctx, cancel := context.WithCancel(context.Background())
	in.cancel = cancel
	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Dispatch loop stopped", log.Field().Error("error", err))
		}
	}()

	if options.Verbose {
		_, _ = in.router.Subscribe(router.TopicRoot, func(ev router.Event) {
			log.Info(codec.Text(ev.Message),
				log.Field().Binary("raw", ev.Raw),
				log.Field().Float64("dt", ev.Delta))
		})
	}

	port.OnMessage(in.receive)
	log.Info("MIDI input ready")
	return in
}

// receive runs on the driver's goroutine. It must not block.
func (in *Input) receive(delta float64, raw []byte) {
	if len(raw) > 0 && raw[0] >= 0x80 && raw[0] < 0xF0 && !in.filter.Allows(raw[0]&codec.TypeMask) {
		return
	}
	in.loop.TryPost(func() { in.router.DispatchRaw(delta, raw) })
}

// Name returns the port name.
func (in *Input) Name() string {
	return in.name
}

// Scheduler returns the scheduler whose callbacks run on the dispatch loop.
func (in *Input) Scheduler() clock.Scheduler {
	return in.sched
}

// Dropped returns how many deliveries were dropped because the dispatch queue was full.
func (in *Input) Dropped() uint64 {
	return in.loop.Dropped()
}

// On subscribes handler to every topic of pattern, a comma or space separated list such as
// "midi.noteon.*.60, midi.noteoff.*.60".
func (in *Input) On(pattern string, handler Handler) (*Subscription, error) {
	return in.router.Subscribe(pattern, handler)
}

// OnExclusive subscribes handler and makes its topics exclusive: a message published on
// one of them reaches only the handlers of the most specific such topic.
func (in *Input) OnExclusive(pattern string, handler Handler) (*Subscription, error) {
	return in.router.Subscribe(pattern, handler, router.WithExclusive())
}

// Off removes a subscription.
func (in *Input) Off(sub *Subscription) error {
	return in.router.Unsubscribe(sub)
}

// MomentaryToggle makes presses of the given controllers latch on and off.
func (in *Input) MomentaryToggle(controllers ...uint8) {
	in.router.MomentaryToggle(controllers...)
}

// OnRecord registers fn for every dispatched message that was not simulated.
func (in *Input) OnRecord(fn router.RecordFunc) {
	in.router.OnRecord(fn)
}

// Hold calls handler when a press on pattern lasts threshold.
func (in *Input) Hold(pattern string, threshold time.Duration, handler func(Message)) (gesture.Detector, error) {
	return in.track(gesture.NewHold(in.router, in.sched, pattern, threshold, handler))
}

// Clicks calls handler after a burst of exactly count clicks on pattern.
func (in *Input) Clicks(pattern string, count int, timeout time.Duration, handler func(Message)) (gesture.Detector, error) {
	return in.track(gesture.NewClicks(in.router, in.sched, pattern, count, timeout, handler))
}

// Press calls handler on a single click.
func (in *Input) Press(pattern string, handler func(Message)) (gesture.Detector, error) {
	return in.track(gesture.Press(in.router, in.sched, pattern, gesture.DefaultClickTimeout, handler))
}

// DoubleClick calls handler on a double click.
func (in *Input) DoubleClick(pattern string, handler func(Message)) (gesture.Detector, error) {
	return in.track(gesture.DoubleClick(in.router, in.sched, pattern, gesture.DefaultClickTimeout, handler))
}

// TripleClick calls handler on a triple click.
func (in *Input) TripleClick(pattern string, handler func(Message)) (gesture.Detector, error) {
	return in.track(gesture.TripleClick(in.router, in.sched, pattern, gesture.DefaultClickTimeout, handler))
}

// Toggle cycles through numStates states on each press of pattern. A numStates of 0 means
// an on/off toggle.
func (in *Input) Toggle(pattern string, numStates int, handler func(state int, msg Message, numStates int)) (gesture.Detector, error) {
	if numStates == 0 {
		numStates = gesture.DefaultToggleStates
	}
	return in.track(gesture.NewToggle(in.router, pattern, numStates, handler))
}

func (in *Input) track(d gesture.Detector, err error) (gesture.Detector, error) {
	if err != nil {
		return nil, err
	}
	return in.detectors.Add(d), nil
}

// Simulate injects msg into the dispatch loop as if the port had delivered it, after
// delay. The returned Timer is nil when delay is zero.
func (in *Input) Simulate(msg Message, delay time.Duration) (Timer, error) {
	if _, err := codec.Encode(msg); err != nil {
		return nil, err
	}
	if delay > 0 {
		return in.router.Simulate(msg, delay)
	}
	in.loop.Post(func() {
		if _, err := in.router.Simulate(msg, 0); err != nil {
			in.logger.Warn("Failed to simulate message", in.logger.Field().Error("error", err))
		}
	})
	return nil, nil
}

// Do runs f on the dispatch loop and waits for it.
func (in *Input) Do(f func()) bool {
	done := make(chan struct{})
	if !in.loop.Post(func() {
		defer close(done)
		f()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-in.loop.Done():
		return false
	}
}

// Close stops the detectors, the port and the dispatch loop.
func (in *Input) Close() error {
	in.closeOnce.Do(func() {
		err := in.detectors.Close()
		err = multierr.Append(err, in.port.Close())
		in.cancel()
		in.loop.Close()
		in.loop.Wait()
		in.closeErr = err
		in.logger.Info("MIDI input closed")
	})
	return in.closeErr
}
