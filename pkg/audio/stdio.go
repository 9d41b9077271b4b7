package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ReaderSource is a [FrameSource] that slices a PCM16 byte stream into
// fixed-size frames. Point it at os.Stdin to pipe audio in from an external
// capture tool (arecord, sox, ffmpeg).
type ReaderSource struct {
	r            io.Reader
	sampleRate   int
	frameSamples int

	frames chan Frame
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

var _ FrameSource = (*ReaderSource)(nil)

// NewReaderSource wraps r as a frame source producing frameSamples-sample
// frames at the given rate.
func NewReaderSource(r io.Reader, sampleRate, frameSamples int) (*ReaderSource, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	if frameSamples <= 0 {
		return nil, fmt.Errorf("audio: invalid frame size %d", frameSamples)
	}
	return &ReaderSource{
		r:            r,
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
		frames:       make(chan Frame, 8),
	}, nil
}

// Start implements [FrameSource]. The read loop ends at EOF, on a read
// error, when ctx is cancelled, or on Close; the frame channel is closed in
// every case. A trailing partial frame is discarded.
func (s *ReaderSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("audio: source closed")
	}
	if s.started {
		return errors.New("audio: source already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.readLoop(ctx)
	return nil
}

func (s *ReaderSource) readLoop(ctx context.Context) {
	defer close(s.frames)

	frameBytes := s.frameSamples * 2
	start := time.Now()
	for {
		buf := make([]byte, frameBytes)
		if _, err := io.ReadFull(s.r, buf); err != nil {
			return
		}
		frame := Frame{
			PCM:        buf,
			SampleRate: s.sampleRate,
			Timestamp:  time.Since(start),
		}
		select {
		case s.frames <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// Frames implements [FrameSource].
func (s *ReaderSource) Frames() <-chan Frame { return s.frames }

// Close implements [FrameSource]. The underlying reader is not closed; a
// blocked read ends at the next EOF or when the process exits.
func (s *ReaderSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// WriterPlayback is a [Playback] that copies assistant PCM to an io.Writer,
// typically os.Stdout piped into an external playback tool. Buffers play in
// the order queued; Stop discards whatever has not been written yet.
type WriterPlayback struct {
	mu    sync.Mutex
	w     io.Writer
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

var _ Playback = (*WriterPlayback)(nil)

// NewWriterPlayback wraps w as a playback sink.
func NewWriterPlayback(w io.Writer) *WriterPlayback {
	p := &WriterPlayback{
		w:     w,
		queue: make(chan []byte, 16),
		done:  make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

func (p *WriterPlayback) writeLoop() {
	for {
		select {
		case pcm := <-p.queue:
			p.mu.Lock()
			p.w.Write(pcm)
			p.mu.Unlock()
		case <-p.done:
			return
		}
	}
}

// Play implements [Playback]. The sample rate is fixed by the stream set up
// out of band, so it is accepted and ignored here.
func (p *WriterPlayback) Play(pcm []byte, sampleRate int) error {
	select {
	case <-p.done:
		return errors.New("audio: playback closed")
	default:
	}
	select {
	case p.queue <- pcm:
		return nil
	default:
		return errors.New("audio: playback queue full")
	}
}

// Stop implements [Playback]. Queued buffers are dropped; the write in
// flight, if any, completes.
func (p *WriterPlayback) Stop() {
	for {
		select {
		case <-p.queue:
		default:
			return
		}
	}
}

// Close ends the write loop. Safe to call more than once.
func (p *WriterPlayback) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
