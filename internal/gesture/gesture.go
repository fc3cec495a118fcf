// Package gesture recognises hold, multi-click and toggle gestures on top of routed
// press and release events.
//
// A press ("on") is a NoteOn or a control change with value >= 64; a release ("off") is a
// NoteOff or a control change below 64. Other kinds never drive a detector.
//
// Target topics name either half of a gesture: "midi.noteon.0.60" and "midi.ccon.0.21"
// subscribe to the whole note or cc family for that channel and data, so releases are seen.
package gesture

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/router"
)

var (
	// ErrInvalidStates is returned by NewToggle when the number of states is not positive.
	ErrInvalidStates = errors.New("toggle needs at least one state")
	// ErrInvalidCount is returned by NewClicks when the click count is not positive.
	ErrInvalidCount = errors.New("click count must be positive")
	// ErrNilScheduler is returned when a timed detector is built without a scheduler.
	ErrNilScheduler = errors.New("nil scheduler")
)

// Subscriber is the part of the router detectors attach to.
type Subscriber interface {
	Subscribe(pattern string, handler router.Handler, opts ...router.SubscribeOption) (*router.Subscription, error)
	Unsubscribe(sub *router.Subscription) error
}

// Detector is a running gesture detector.
type Detector interface {
	Close() error
}

// MessageHandler receives the message that completed a hold or click gesture.
type MessageHandler func(msg codec.Message)

// ToggleHandler receives the new state of a toggle, the press that caused it and the
// number of states.
type ToggleHandler func(state int, msg codec.Message, numStates int)

type edge int

const (
	edgeNone edge = iota
	edgeOn
	edgeOff
)

func classify(msg codec.Message) edge {
	switch {
	case codec.IsOn(msg):
		return edgeOn
	case codec.IsOff(msg):
		return edgeOff
	default:
		return edgeNone
	}
}

// edgeFamily maps a topic kind to the family carrying both its presses and releases.
var edgeFamily = map[string]string{
	"noteon":         router.KindNote,
	"noteoff":        router.KindNote,
	router.KindNote:  router.KindNote,
	"cc":             "cc",
	router.KindCCOn:  "cc",
	router.KindCCOff: "cc",
}

// edgeTopics widens every topic of pattern to its press and release family, keeping
// channel and data, then drops topics another one already covers so that each message
// reaches the detector once.
func edgeTopics(pattern string) ([]string, error) {
	topics, err := router.SplitPattern(pattern)
	if err != nil {
		return nil, err
	}
	split := make([][]string, 0, len(topics))
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		segs := strings.Split(t, router.Separator)
		if len(segs) > 1 && segs[0] == router.TopicRoot {
			if family, ok := edgeFamily[segs[1]]; ok {
				segs[1] = family
			}
		}
		key := strings.Join(segs, router.Separator)
		if !seen[key] {
			seen[key] = true
			split = append(split, segs)
		}
	}

	out := make([]string, 0, len(split))
	for i, segs := range split {
		covered := false
		for j, other := range split {
			if i != j && covers(other, segs) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, strings.Join(segs, router.Separator))
		}
	}
	return out, nil
}

// covers reports whether every channel message published on topic b is also published
// on topic a. Both are distinct, validated and split on the separator.
func covers(a, b []string) bool {
	if a[0] != router.TopicRoot || b[0] != router.TopicRoot || len(b) < 2 {
		return false
	}
	if b[1] == router.TopicSysEx || b[1] == router.TopicBeatClock {
		return false
	}
	if len(a) == 1 {
		return true
	}
	if a[1] != b[1] {
		return false
	}
	switch len(a) {
	case 2:
		return len(b) > 2
	case 3:
		return len(b) == 4 && b[2] == a[2]
	case 4:
		return a[2] == router.Wildcard && len(b) == 4 && b[2] != router.Wildcard && b[3] == a[3]
	}
	return false
}

// base holds the subscription and timer generation shared by detectors.
type base struct {
	sub Subscriber

	mu     sync.Mutex
	subs   *router.Subscription
	gen    uint64
	closed bool
}

func (b *base) attach(pattern string, h router.Handler, opts []router.SubscribeOption) error {
	topics, err := edgeTopics(pattern)
	if err != nil {
		return err
	}
	s, err := b.sub.Subscribe(strings.Join(topics, " "), h, opts...)
	if err != nil {
		return err
	}
	b.subs = s
	return nil
}

// Close unsubscribes the detector. Timers armed before Close never call the handler.
func (b *base) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.gen++
	s := b.subs
	b.mu.Unlock()
	return b.sub.Unsubscribe(s)
}

// Group closes a set of detectors together.
type Group struct {
	mu        sync.Mutex
	detectors []Detector
}

// Add tracks d and returns it.
func (g *Group) Add(d Detector) Detector {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detectors = append(g.detectors, d)
	return d
}

// Len returns the number of tracked detectors.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.detectors)
}

// Close closes every tracked detector and combines their errors.
func (g *Group) Close() error {
	g.mu.Lock()
	detectors := g.detectors
	g.detectors = nil
	g.mu.Unlock()

	var err error
	for _, d := range detectors {
		err = multierr.Append(err, d.Close())
	}
	return err
}
