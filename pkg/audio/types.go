// Package audio defines the frame types and device contracts used by the
// voxtale outbound and playback paths.
//
// A Frame is the atomic unit of audio transport: a fixed-size block of mono
// 16-bit little-endian PCM captured from an input device. Frames flow from a
// [FrameSource] through the voice-activity gate and rate limiter into the
// protocol engine, which wraps ordered runs of frames into a single WAV
// envelope per wire message (see [WAVEnvelope]).
package audio

import "time"

// Frame is a single captured block of mono 16-bit PCM audio.
// Frames are immutable once produced and consumed exactly once by the
// outbound pipeline.
type Frame struct {
	// PCM is the raw little-endian int16 sample data.
	PCM []byte

	// SampleRate in Hz (16000 for the realtime endpoint).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Samples returns the number of int16 samples in the frame.
func (f Frame) Samples() int { return len(f.PCM) / 2 }

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}
