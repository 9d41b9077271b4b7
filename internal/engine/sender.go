package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/voxtale/voxtale/pkg/audio"
	"github.com/voxtale/voxtale/pkg/ratelimit"
	"github.com/voxtale/voxtale/pkg/vadgate"
)

// Outbound pipeline defaults, sized for 16 kHz mono capture at 1024-sample
// frames: 16 frames is roughly one second of audio per wire message, well
// under the 20 messages/second connection quota.
const (
	DefaultSampleRate        = 16000
	DefaultBatchFrames       = 16
	DefaultMaxSendsPerSecond = 20
)

// sender is the outbound audio worker: capture frames pass the voice gate,
// accumulate into batches, and leave as paced WAV-wrapped wire messages.
// The batcher and pacer are shared with the commit path's flush, so one mutex
// guards the whole pop-pace-send sequence: a flush cannot overtake a batch
// already popped by the send worker, and the commit that follows a flush only
// goes out once every earlier batch is on the wire.
type sender struct {
	e *Engine

	mu      sync.Mutex
	batcher *ratelimit.Batcher
	pacer   *ratelimit.Pacer
}

func newSender(e *Engine) *sender {
	batch := e.cfg.BatchFrames
	if batch <= 0 {
		batch = DefaultBatchFrames
	}
	maxSends := e.cfg.MaxSendsPerSecond
	if maxSends <= 0 {
		maxSends = DefaultMaxSendsPerSecond
	}
	if e.cfg.SampleRate <= 0 {
		e.cfg.SampleRate = DefaultSampleRate
	}
	return &sender{
		e:       e,
		batcher: ratelimit.NewBatcher(batch),
		pacer:   ratelimit.NewPacer(maxSends),
	}
}

// run consumes capture frames until the source closes or ctx is cancelled.
// No audio leaves before the session configuration is acknowledged.
func (s *sender) run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.e.ready:
	}

	if s.e.source == nil {
		// Receive-only session.
		<-ctx.Done()
		return ctx.Err()
	}

	if err := s.e.source.Start(ctx); err != nil {
		return fmt.Errorf("engine: start frame source: %w", err)
	}
	defer s.e.source.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-s.e.source.Frames():
			if !ok {
				s.e.logger.Info("frame source closed")
				return nil
			}
			if err := s.handleFrame(ctx, frame); err != nil {
				return err
			}
		}
	}
}

// handleFrame applies the turn-detection mode and admits the frame to the
// batcher when it should reach the wire.
func (s *sender) handleFrame(ctx context.Context, frame audio.Frame) error {
	switch s.e.cfg.Mode {
	case ModeClientVAD:
		return s.handleGated(ctx, frame)

	case ModeNone:
		if s.e.sctx.State() == StateIdle {
			if err := s.e.dispatch(ctx, SpeechStarted{}); err != nil {
				return err
			}
		}
		return s.admit(ctx, frame)

	default: // server VAD: the server decides, everything goes out.
		return s.admit(ctx, frame)
	}
}

// handleGated routes a frame through the local voice gate. Classification
// errors fail safe: the frame is treated as silence and dropped rather than
// flooding the channel.
func (s *sender) handleGated(ctx context.Context, frame audio.Frame) error {
	if s.e.gate == nil {
		return s.admit(ctx, frame)
	}
	decision, err := s.e.gate.ProcessFrame(frame.PCM)
	if err != nil {
		s.e.logger.Debug("voice gate error, dropping frame", "error", err)
		return nil
	}

	switch decision.Type {
	case vadgate.SpeechStart:
		if err := s.e.dispatch(ctx, SpeechStarted{}); err != nil {
			return err
		}
		return s.admit(ctx, frame)
	case vadgate.SpeechContinue:
		return s.admit(ctx, frame)
	case vadgate.SpeechEnd:
		// The commit path flushes whatever is still batched.
		return s.e.dispatch(ctx, SpeechStopped{})
	default:
		return nil
	}
}

// admit feeds one frame to the batcher and sends the batch it releases, if
// any.
func (s *sender) admit(ctx context.Context, frame audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batcher.Admit(frame)
	if !ok {
		return nil
	}
	return s.sendLocked(ctx, batch)
}

// flush sends any partially filled batch. Called by the commit path so no
// tail audio is lost when a turn ends mid-batch. Blocks until any batch the
// send worker already popped is on the wire, at most one pacer interval.
func (s *sender) flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batcher.Flush()
	if !ok {
		return nil
	}
	return s.sendLocked(ctx, batch)
}

// sendLocked wraps the frames in one WAV envelope and sends it, honouring the
// minimum inter-send interval. s.mu must be held; it stays held across the
// pacing sleep and the send itself so concurrent callers never pace off the
// same last-send instant or reorder batches on the wire.
func (s *sender) sendLocked(ctx context.Context, batch []audio.Frame) error {
	if delay := s.pacer.Delay(time.Now()); delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	payload := audio.WAVEnvelope(batch, s.e.cfg.SampleRate)
	if err := s.e.transport.AppendAudio(ctx, base64.StdEncoding.EncodeToString(payload)); err != nil {
		return fmt.Errorf("engine: append audio: %w", err)
	}

	s.pacer.MarkSent(time.Now())
	s.e.metrics.AudioSends.Add(ctx, 1)
	return nil
}
