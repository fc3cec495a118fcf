package router

import (
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/leandrodaf/midiroute/internal/clock"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// Event is what handlers receive.
type Event struct {
	Topic    string         // topic the handler subscribed to
	Category codec.Category // channel, sysex or realtime
	Message  codec.Message  // decoded message; zero for sysex and realtime deliveries
	Delta    float64        // delta time as delivered by the port; NaN when simulated
	Raw      []byte         // raw bytes of the delivery
}

// Handler reacts to an event. Handlers run synchronously on the dispatching goroutine.
type Handler func(Event)

// RecordFunc receives every dispatched message that was not simulated.
type RecordFunc func(msg codec.Message, raw []byte)

// Router owns subscriptions and dispatches messages to them.
type Router struct {
	log   contracts.Logger
	clock *clock.Clock
	sched clock.Scheduler
	port  string

	mu        sync.RWMutex
	topics    map[string][]*Subscription
	exclusive map[string]int
	momentary map[uint8]bool
	toggled   map[string]bool
	recorders []RecordFunc
	nextID    uint64
}

// Option configures a Router.
type Option func(*Router)

// WithClock stamps dispatched messages with c.
func WithClock(c *clock.Clock) Option {
	return func(r *Router) {
		r.clock = c
	}
}

// WithScheduler arms delayed simulations on s.
func WithScheduler(s clock.Scheduler) Option {
	return func(r *Router) {
		r.sched = s
	}
}

// WithPortName records name as the origin of dispatched messages.
func WithPortName(name string) Option {
	return func(r *Router) {
		r.port = name
	}
}

// New creates a Router.
func New(log contracts.Logger, opts ...Option) *Router {
	r := &Router{
		log:       log,
		sched:     clock.RealScheduler{},
		topics:    make(map[string][]*Subscription),
		exclusive: make(map[string]int),
		momentary: make(map[uint8]bool),
		toggled:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	return r
}

// Clock returns the clock stamping messages.
func (r *Router) Clock() *clock.Clock {
	return r.clock
}

// Scheduler returns the scheduler used for delayed work.
func (r *Router) Scheduler() clock.Scheduler {
	return r.sched
}

// Subscribe registers handler on every topic of pattern.
func (r *Router) Subscribe(pattern string, handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	topics, err := SplitPattern(pattern)
	if err != nil {
		return nil, err
	}

	cfg := subscribeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub := &Subscription{
		id:        r.nextID,
		topics:    topics,
		exclusive: cfg.exclusive,
		handler:   handler,
	}
	for _, t := range topics {
		r.topics[t] = append(r.topics[t], sub)
		if sub.exclusive {
			r.exclusive[t]++
		}
	}
	return sub, nil
}

// Unsubscribe removes sub from all its topics.
func (r *Router) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, t := range sub.topics {
		subs := r.topics[t]
		for i, s := range subs {
			if s != sub {
				continue
			}
			found = true
			r.topics[t] = append(subs[:i:i], subs[i+1:]...)
			if len(r.topics[t]) == 0 {
				delete(r.topics, t)
			}
			if sub.exclusive {
				if r.exclusive[t]--; r.exclusive[t] <= 0 {
					delete(r.exclusive, t)
				}
			}
			break
		}
	}
	if !found {
		return ErrSubscriptionNotFound
	}
	return nil
}

// MomentaryToggle turns control changes on the given controller numbers into latching
// switches: each press flips a stored state per (channel, controller) and is dispatched
// with value 127 or 0, releases are not dispatched.
func (r *Router) MomentaryToggle(controllers ...uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range controllers {
		r.momentary[c] = true
	}
}

// OnRecord registers fn to receive every non-simulated dispatched message.
func (r *Router) OnRecord(fn RecordFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorders = append(r.recorders, fn)
}

// DispatchRaw decodes one port delivery and dispatches it. Malformed deliveries are
// logged and dropped. It returns the number of handlers invoked.
func (r *Router) DispatchRaw(delta float64, raw []byte) int {
	p, err := codec.Decode(raw, delta)
	if err != nil {
		r.log.Warn("dropping undecodable MIDI message",
			r.log.Field().Error("error", err),
			r.log.Field().Binary("raw", raw))
		return 0
	}
	if p.Category != codec.CategoryChannel {
		return r.deliverRaw(p.Category, delta, raw)
	}
	return r.Dispatch(p.Message, raw)
}

// Dispatch publishes a decoded message. The momentary toggle rewrite is applied first,
// then the message is stamped, delivered to the topic list (honouring exclusivity) and
// finally published raw on rtm.
func (r *Router) Dispatch(msg codec.Message, raw []byte) int {
	msg, ok := r.applyMomentary(msg)
	if !ok {
		return 0
	}
	if raw == nil {
		raw, _ = codec.Encode(msg)
	}

	delta := msg.Timestamp.Delta
	r.clock.Stamp(&msg)
	if msg.Origin.Port == "" {
		msg.Origin.Port = r.port
	}
	msg.Origin.OriginalChannel = msg.Channel
	msg.Origin.OriginalData = msg.Data

	topics := Topics(msg)
	winner := r.exclusiveWinner(topics)

	n := 0
	for _, t := range topics {
		if winner != "" && t != winner {
			continue
		}
		n += r.deliver(t, Event{Topic: t, Category: codec.CategoryChannel, Message: msg, Delta: delta, Raw: raw})
	}
	n += r.deliver(TopicRaw, Event{Topic: TopicRaw, Category: codec.CategoryChannel, Message: msg, Delta: delta, Raw: raw})

	if !msg.Origin.Simulated {
		r.record(msg, raw)
	}
	return n
}

// Simulate injects msg as if it had been received, after delay. The message is marked
// simulated so recorders skip it. A zero delay dispatches immediately and returns a nil
// Timer.
func (r *Router) Simulate(msg codec.Message, delay time.Duration) (clock.Timer, error) {
	msg, err := codec.Clean(msg, nil)
	if err != nil {
		return nil, err
	}
	raw, err := codec.Encode(msg)
	if err != nil {
		return nil, err
	}
	msg.Origin.Simulated = true
	msg.Timestamp.Delta = math.NaN()

	if delay <= 0 {
		r.Dispatch(msg, raw)
		return nil, nil
	}
	return r.sched.AfterFunc(delay, func() { r.Dispatch(msg, raw) }), nil
}

// HasSubscribers reports whether topic has at least one subscription.
func (r *Router) HasSubscribers(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic]) > 0
}

func (r *Router) applyMomentary(msg codec.Message) (codec.Message, bool) {
	if msg.Kind != codec.ControlChange {
		return msg, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.momentary[msg.Data] {
		return msg, true
	}
	if msg.Value < codec.PressThreshold {
		return msg, false
	}
	key := msg.Sig()
	state := !r.toggled[key]
	r.toggled[key] = state
	msg.Value = 0
	if state {
		msg.Value = 127
	}
	return msg, true
}

// exclusiveWinner returns the last exclusive topic in topics that has subscribers.
func (r *Router) exclusiveWinner(topics []string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	winner := ""
	for _, t := range topics {
		if r.exclusive[t] > 0 && len(r.topics[t]) > 0 {
			winner = t
		}
	}
	return winner
}

func (r *Router) deliverRaw(category codec.Category, delta float64, raw []byte) int {
	n := 0
	for _, t := range RawTopics(category) {
		n += r.deliver(t, Event{Topic: t, Category: category, Delta: delta, Raw: raw})
	}
	return n
}

func (r *Router) deliver(topic string, ev Event) int {
	r.mu.RLock()
	subs := append([]*Subscription(nil), r.topics[topic]...)
	r.mu.RUnlock()

	for _, sub := range subs {
		r.invoke(sub, ev)
	}
	return len(subs)
}

func (r *Router) invoke(sub *Subscription, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("MIDI handler panicked",
				r.log.Field().String("topic", ev.Topic),
				r.log.Field().Uint64("subscription", sub.id),
				r.log.Field().String("panic", fmt.Sprint(rec)),
				r.log.Field().String("stack", string(debug.Stack())))
		}
	}()
	sub.handler(ev)
}

func (r *Router) record(msg codec.Message, raw []byte) {
	r.mu.RLock()
	recorders := r.recorders
	r.mu.RUnlock()
	for _, fn := range recorders {
		fn(msg, raw)
	}
}
