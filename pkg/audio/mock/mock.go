// Package mock provides in-memory mock implementations of the
// [audio.FrameSource] and [audio.Playback] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and expose exported
// fields the test can set to control return values.
package mock

import (
	"context"
	"sync"

	"github.com/voxtale/voxtale/pkg/audio"
)

// ─── FrameSource ──────────────────────────────────────────────────────────────

// Source is a mock [audio.FrameSource] backed by a buffered channel. Push
// frames with [Source.Emit]; close the stream with [Source.Close].
type Source struct {
	mu sync.Mutex

	// StartError is returned by Start.
	StartError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	ch     chan audio.Frame
	closed bool
}

// NewSource creates a Source with the given channel capacity.
func NewSource(capacity int) *Source {
	return &Source{ch: make(chan audio.Frame, capacity)}
}

// Start implements [audio.FrameSource].
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	return s.StartError
}

// Frames implements [audio.FrameSource].
func (s *Source) Frames() <-chan audio.Frame { return s.ch }

// Emit pushes a frame to the stream. Returns false if the source is closed
// or the channel is full.
func (s *Source) Emit(f audio.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- f:
		return true
	default:
		return false
	}
}

// Close implements [audio.FrameSource]. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// ─── Playback ─────────────────────────────────────────────────────────────────

// PlayCall records the arguments of one Play invocation.
type PlayCall struct {
	PCM        []byte
	SampleRate int
}

// Sink is a mock [audio.Playback] that records every call.
type Sink struct {
	mu sync.Mutex

	// PlayError is returned by Play.
	PlayError error

	// PlayCalls records every Play invocation in order.
	PlayCalls []PlayCall

	// CallCountStop records how many times Stop was called.
	CallCountStop int
}

// Play implements [audio.Playback].
func (s *Sink) Play(pcm []byte, sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	s.PlayCalls = append(s.PlayCalls, PlayCall{PCM: buf, SampleRate: sampleRate})
	return s.PlayError
}

// Stop implements [audio.Playback].
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStop++
}

// StopCount returns how many times Stop was called.
func (s *Sink) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountStop
}

// Calls returns a copy of the recorded Play calls.
func (s *Sink) Calls() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayCall, len(s.PlayCalls))
	copy(out, s.PlayCalls)
	return out
}
