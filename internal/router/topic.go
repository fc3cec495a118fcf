package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leandrodaf/midiroute/internal/codec"
)

// Topic names outside the midi.<kind> families.
const (
	TopicRoot      = "midi"
	TopicSysEx     = "sysex"
	TopicRaw       = "rtm"
	TopicBeatClock = "midiBeatClock"
	Wildcard       = "*"
	Separator      = "."
)

// Kind names usable in the second segment, besides codec.Kind names.
const (
	KindCCOn  = "ccon"
	KindCCOff = "ccoff"
	KindNote  = "note"
)

var validKinds = map[string]bool{
	"noteon": true, "noteoff": true, "cc": true, "program": true, "keyafter": true,
	"channelafter": true, "pitchbend": true, "other": true,
	KindCCOn: true, KindCCOff: true, KindNote: true,
}

var patternSplit = regexp.MustCompile(`[,\s]+`)

// Topics returns the topics a channel message is published on, most general first.
// The list is never empty and always contains midi.<kind>.
func Topics(msg codec.Message) []string {
	// Within a level the broader family comes first: note covers noteon and noteoff,
	// cc covers ccon and ccoff.
	kinds := []string{msg.Kind.Name()}
	switch {
	case msg.Kind == codec.ControlChange && msg.Value >= codec.PressThreshold:
		kinds = append(kinds, KindCCOn)
	case msg.Kind == codec.ControlChange:
		kinds = append(kinds, KindCCOff)
	case msg.Kind.IsNote():
		kinds = []string{KindNote, msg.Kind.Name()}
	}

	ch := strconv.Itoa(int(msg.Channel))
	data := strconv.Itoa(int(msg.Data))

	topics := make([]string, 0, 1+4*len(kinds))
	topics = append(topics, TopicRoot)
	for _, suffix := range [][]string{{}, {Wildcard, data}, {ch}, {ch, data}} {
		for _, k := range kinds {
			topics = append(topics, join(append([]string{TopicRoot, k}, suffix...)...))
		}
	}
	return topics
}

// RawTopics returns the topics an undecoded delivery is published on.
func RawTopics(category codec.Category) []string {
	switch category {
	case codec.CategorySysEx:
		return []string{join(TopicRoot, TopicSysEx), TopicSysEx, TopicRaw}
	case codec.CategoryRealtime:
		return []string{join(TopicRoot, TopicBeatClock), TopicBeatClock, TopicRaw}
	default:
		return []string{TopicRaw}
	}
}

// SplitPattern splits a comma or whitespace separated pattern into validated topics.
func SplitPattern(pattern string) ([]string, error) {
	var topics []string
	for _, t := range patternSplit.Split(strings.TrimSpace(pattern), -1) {
		if t == "" {
			continue
		}
		if err := ValidateTopic(t); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: empty pattern %q", ErrInvalidPattern, pattern)
	}
	return topics, nil
}

// ValidateTopic checks topic against midi[.<kind>][.<channel>|.*.<data>][.<data>] and the
// bare raw topics.
func ValidateTopic(topic string) error {
	switch topic {
	case TopicSysEx, TopicRaw, TopicBeatClock, join(TopicRoot, TopicSysEx), join(TopicRoot, TopicBeatClock):
		return nil
	}

	segs := strings.Split(topic, Separator)
	bad := func(reason string) error {
		return fmt.Errorf("%w: %q: %s", ErrInvalidPattern, topic, reason)
	}
	if segs[0] != TopicRoot {
		return bad("must start with " + TopicRoot)
	}
	if len(segs) > 4 {
		return bad("too many segments")
	}
	if len(segs) > 1 && !validKinds[segs[1]] {
		return bad("unknown kind " + strconv.Quote(segs[1]))
	}
	if len(segs) > 2 {
		if segs[2] == Wildcard {
			if len(segs) != 4 {
				return bad("channel wildcard must be followed by data")
			}
		} else if !inRange(segs[2], codec.NumChannels) {
			return bad("channel out of range")
		}
	}
	if len(segs) > 3 && !inRange(segs[3], codec.MaxData) {
		return bad("data out of range")
	}
	return nil
}

// Topic builds midi.<kind>[.<channel>][.<data>]. A negative channel produces the wildcard
// form and a negative data is omitted.
func Topic(kind string, channel, data int) string {
	segs := []string{TopicRoot, kind}
	switch {
	case channel < 0 && data >= 0:
		segs = append(segs, Wildcard, strconv.Itoa(data))
	case channel >= 0:
		segs = append(segs, strconv.Itoa(channel))
		if data >= 0 {
			segs = append(segs, strconv.Itoa(data))
		}
	}
	return join(segs...)
}

func inRange(s string, limit int) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0 && n < limit && strconv.Itoa(n) == s
}

func join(segs ...string) string {
	return strings.Join(segs, Separator)
}
