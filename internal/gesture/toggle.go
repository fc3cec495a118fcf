package gesture

import (
	"fmt"

	"github.com/leandrodaf/midiroute/internal/router"
)

// DefaultToggleStates is the number of states of an on/off toggle.
const DefaultToggleStates = 2

// Toggle cycles through numStates states on every press.
type Toggle struct {
	base
	numStates int
	handler   ToggleHandler
	state     int
}

// NewToggle cycles state on each press matching pattern. The first press yields state 0.
func NewToggle(r Subscriber, pattern string, numStates int, handler ToggleHandler, opts ...router.SubscribeOption) (*Toggle, error) {
	if numStates <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStates, numStates)
	}
	if handler == nil {
		return nil, router.ErrNilHandler
	}
	t := &Toggle{
		base:      base{sub: r},
		numStates: numStates,
		handler:   handler,
		state:     numStates - 1,
	}
	if err := t.attach(pattern, t.onEvent, opts); err != nil {
		return nil, err
	}
	return t, nil
}

// State returns the current state.
func (t *Toggle) State() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Toggle) onEvent(ev router.Event) {
	if classify(ev.Message) != edgeOn {
		return
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.state = (t.state + 1) % t.numStates
	state := t.state
	t.mu.Unlock()

	t.handler(state, ev.Message, t.numStates)
}
