package resilience

import (
	"github.com/voxtale/voxtale/pkg/audio"
)

// PlaybackGroup is an [audio.Playback] that fails over between output sinks.
// The primary is typically the real output device; a fallback can be a local
// text-to-speech sink or a file writer. A sink whose Play keeps failing trips
// its circuit breaker and is skipped until it recovers.
type PlaybackGroup struct {
	sinks []audio.Playback
	group *FallbackGroup[audio.Playback]
}

var _ audio.Playback = (*PlaybackGroup)(nil)

// NewPlaybackGroup wraps primary as the first sink. Add fallbacks with
// [PlaybackGroup.AddFallback].
func NewPlaybackGroup(primary audio.Playback, name string, cfg FallbackConfig) *PlaybackGroup {
	return &PlaybackGroup{
		sinks: []audio.Playback{primary},
		group: NewFallbackGroup(primary, name, cfg),
	}
}

// AddFallback appends a fallback sink, tried after the primary.
func (pg *PlaybackGroup) AddFallback(name string, sink audio.Playback) {
	pg.sinks = append(pg.sinks, sink)
	pg.group.AddFallback(name, sink)
}

// Play implements [audio.Playback]. The buffer goes to the first healthy
// sink; it is never played twice.
func (pg *PlaybackGroup) Play(pcm []byte, sampleRate int) error {
	return pg.group.Execute(func(sink audio.Playback) error {
		return sink.Play(pcm, sampleRate)
	})
}

// Stop implements [audio.Playback]. Every sink is stopped: an interrupted
// response must go silent even if it was playing on a fallback.
func (pg *PlaybackGroup) Stop() {
	for _, sink := range pg.sinks {
		sink.Stop()
	}
}
