// Package router dispatches decoded MIDI messages to subscribers by topic.
//
// # Topics
//
// Every channel message is published on an ordered list of dotted topics, most general
// first:
//
//	midi
//	midi.<kind>
//	midi.<kind>.*.<data>
//	midi.<kind>.<channel>
//	midi.<kind>.<channel>.<data>
//
// Control changes are also published on the ccon or ccoff family (value >= 64 or below),
// and both note kinds on the note family. Families are interleaved level by level, so the
// list stays ordered from general to specific. "*" is produced by the generator; it is not a
// glob and subscribers can only name it literally in the channel position.
//
// System exclusive and clock bytes bypass decoding and are published on sysex/midi.sysex
// and midiBeatClock/midi.midiBeatClock. Every delivery, channel messages included, is also
// published raw on rtm.
//
// # Exclusivity
//
// A topic subscribed with WithExclusive is exclusive. When the topic list of a message
// contains exclusive topics with subscribers, only the handlers of the last (most specific)
// one run.
//
// # Concurrency
//
// A Router expects one dispatching goroutine. Loop provides the single-consumer queue that
// port callbacks and timers post to.
package router
