package audio

import "context"

// FrameSource is a capture device producing a continuous sequence of
// fixed-size PCM frames. Implementations own the underlying device; the
// channel returned by Frames is closed when the source stops (device error or
// Close). Frames must be delivered in capture order.
type FrameSource interface {
	// Start begins capture. The source stops when ctx is cancelled or Close
	// is called.
	Start(ctx context.Context) error

	// Frames returns the channel on which captured frames are delivered.
	Frames() <-chan Frame

	// Close stops capture and releases the device. Idempotent.
	Close() error
}

// Playback is an output sink accepting raw PCM buffers. The engine buffers
// assistant audio deltas and hands the accumulated PCM to Play when a
// response's audio stream completes; Stop discards anything still queued
// (barge-in).
type Playback interface {
	// Play queues a PCM buffer for playback at the given sample rate.
	// Implementations must not block the caller for the duration of playback.
	Play(pcm []byte, sampleRate int) error

	// Stop immediately halts playback and discards queued audio.
	Stop()
}
