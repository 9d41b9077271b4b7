// Package ratelimit provides the outbound batching and pacing primitives for
// the realtime send path.
//
// The realtime endpoint enforces a per-connection message quota well below
// the natural frame cadence of a capture device (a 64 ms frame arrives ~15×
// per second, and smaller frames far more often), so frames must be coalesced
// into larger wire messages. [Batcher] accumulates frames until a batch-size
// threshold is reached; [Pacer] enforces the minimum interval between actual
// sends. Both are pure state machines with no goroutines of their own — the
// send worker drives them.
package ratelimit

import (
	"time"

	"github.com/voxtale/voxtale/pkg/audio"
)

// Batcher accumulates frames into ordered batches. Not safe for concurrent
// use; it belongs to the single send worker.
type Batcher struct {
	size    int
	pending []audio.Frame
}

// NewBatcher creates a Batcher that releases a batch every size frames.
// size must be ≥ 1.
func NewBatcher(size int) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{size: size, pending: make([]audio.Frame, 0, size)}
}

// Admit adds a frame to the pending batch. When the batch-size threshold is
// reached it returns the completed batch (frames in admission order) and
// resets; otherwise it returns (nil, false).
func (b *Batcher) Admit(f audio.Frame) ([]audio.Frame, bool) {
	b.pending = append(b.pending, f)
	if len(b.pending) < b.size {
		return nil, false
	}
	batch := b.pending
	b.pending = make([]audio.Frame, 0, b.size)
	return batch, true
}

// Flush returns any pending frames as a final short batch and resets.
// Used on commit so buffered-but-unsent audio reaches the wire before the
// input buffer is finalised.
func (b *Batcher) Flush() ([]audio.Frame, bool) {
	if len(b.pending) == 0 {
		return nil, false
	}
	batch := b.pending
	b.pending = make([]audio.Frame, 0, b.size)
	return batch, true
}

// Drop discards any pending frames without sending them.
func (b *Batcher) Drop() {
	b.pending = b.pending[:0]
}

// Pending returns the number of frames awaiting batch completion.
func (b *Batcher) Pending() int { return len(b.pending) }

// Pacer enforces a minimum interval between sends, capping the wire message
// rate at 1/interval per second. Not safe for concurrent use.
type Pacer struct {
	interval time.Duration
	lastSend time.Time
}

// NewPacer creates a Pacer for the given maximum sends-per-second ceiling.
// maxPerSecond must be ≥ 1.
func NewPacer(maxPerSecond int) *Pacer {
	if maxPerSecond < 1 {
		maxPerSecond = 1
	}
	return &Pacer{interval: time.Second / time.Duration(maxPerSecond)}
}

// Delay returns how long the caller must still wait before the next send is
// permitted at instant now. Zero means the send may proceed immediately.
func (p *Pacer) Delay(now time.Time) time.Duration {
	if p.lastSend.IsZero() {
		return 0
	}
	elapsed := now.Sub(p.lastSend)
	if elapsed >= p.interval {
		return 0
	}
	return p.interval - elapsed
}

// MarkSent records that a send happened at instant now.
func (p *Pacer) MarkSent(now time.Time) {
	p.lastSend = now
}

// Interval returns the configured minimum inter-send interval.
func (p *Pacer) Interval() time.Duration { return p.interval }
