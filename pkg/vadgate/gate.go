// Package vadgate defines the Gate interface for local voice activity
// detection in client-VAD mode.
//
// A gate classifies short fixed-duration PCM frames as speech-bearing or
// silent before they are queued for transmission; frames classified as
// silence are dropped and never reach the wire. Gates fail safe: any
// classification error is treated as silence, so a broken detector can never
// flood the channel.
//
// Each gate maintains per-stream state (hysteresis counters); a single Gate
// must not be shared across goroutines. Engines are safe for concurrent use
// and may create many independent gates.
package vadgate

import "errors"

// ErrClosed is returned by ProcessFrame after the gate has been closed.
var ErrClosed = errors.New("vadgate: gate closed")

// Config holds the parameters for a gate.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame.
	SampleRate int

	// FrameSamples is the expected number of int16 samples per frame.
	// ProcessFrame returns an error for frames of any other size.
	FrameSamples int

	// SpeechThreshold is the normalised RMS level ([0,1]) at or above which a
	// frame counts toward a speech-start decision. Typical: 0.015.
	SpeechThreshold float64

	// SilenceThreshold is the normalised RMS level below which a frame counts
	// toward a speech-end decision. Must be ≤ SpeechThreshold. Typical: 0.008.
	SilenceThreshold float64

	// SpeechFrames is the number of consecutive speech-level frames required
	// to enter the speaking state. Guards against clicks. Typical: 3.
	SpeechFrames int

	// SilenceFrames is the number of consecutive silence-level frames
	// required to leave the speaking state. Typical: 10 (~640 ms at 64 ms
	// frames).
	SilenceFrames int
}

// DecisionType enumerates gate results for a single frame.
type DecisionType int

const (
	// Silence indicates no speech; the frame must not be transmitted.
	Silence DecisionType = iota

	// SpeechStart indicates speech has just begun with this frame.
	SpeechStart

	// SpeechContinue indicates ongoing speech.
	SpeechContinue

	// SpeechEnd indicates the stream just transitioned back to silence.
	// The triggering frame itself is not speech-bearing.
	SpeechEnd
)

// Decision is the classification result for one frame.
type Decision struct {
	Type DecisionType

	// Level is the normalised RMS energy of the frame ([0,1]).
	Level float64
}

// Speech reports whether the frame should be transmitted.
func (d Decision) Speech() bool {
	return d.Type == SpeechStart || d.Type == SpeechContinue
}

// Gate classifies frames for a single audio stream.
//
// ProcessFrame is synchronous by design: it returns immediately, making it
// suitable for the latency-critical send path. Callers must treat any
// returned error as a Silence decision.
type Gate interface {
	// ProcessFrame classifies a single frame of little-endian PCM16 audio.
	// Returns an error if the frame size does not match the configuration or
	// the gate is closed.
	ProcessFrame(pcm []byte) (Decision, error)

	// Reset clears accumulated hysteresis state without closing the gate.
	// Use when the stream is interrupted or restarted.
	Reset()

	// Close releases the gate. Calling Close more than once is safe.
	Close() error
}

// Engine is the factory for gates, implemented by each detector backend.
// Implementations must be safe for concurrent use.
type Engine interface {
	// NewGate creates a gate with the given configuration. Returns an error
	// if the configuration is invalid.
	NewGate(cfg Config) (Gate, error)
}
