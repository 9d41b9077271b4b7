package audio

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestReaderSource_SlicesFrames(t *testing.T) {
	// Three full 4-sample frames plus a trailing partial that must be dropped.
	var buf bytes.Buffer
	for i := byte(1); i <= 3; i++ {
		buf.Write(bytes.Repeat([]byte{i, 0}, 4))
	}
	buf.Write([]byte{9, 0})

	src, err := NewReaderSource(&buf, 16000, 4)
	if err != nil {
		t.Fatalf("NewReaderSource: %v", err)
	}
	defer src.Close()
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []Frame
	for f := range src.Frames() {
		got = append(got, f)
	}
	if len(got) != 3 {
		t.Fatalf("frames = %d, want 3", len(got))
	}
	for i, f := range got {
		if f.Samples() != 4 {
			t.Errorf("frame %d has %d samples, want 4", i, f.Samples())
		}
		if f.PCM[0] != byte(i+1) {
			t.Errorf("frame %d starts with %d, want %d", i, f.PCM[0], i+1)
		}
		if f.SampleRate != 16000 {
			t.Errorf("frame %d sample rate = %d", i, f.SampleRate)
		}
	}
}

func TestReaderSource_DoubleStartFails(t *testing.T) {
	src, err := NewReaderSource(bytes.NewReader(nil), 16000, 4)
	if err != nil {
		t.Fatalf("NewReaderSource: %v", err)
	}
	defer src.Close()
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}
}

func TestNewReaderSource_RejectsBadConfig(t *testing.T) {
	if _, err := NewReaderSource(bytes.NewReader(nil), 0, 4); err == nil {
		t.Error("accepted zero sample rate")
	}
	if _, err := NewReaderSource(bytes.NewReader(nil), 16000, 0); err == nil {
		t.Error("accepted zero frame size")
	}
}

func TestWriterPlayback_WritesInOrder(t *testing.T) {
	var buf bytes.Buffer
	p := NewWriterPlayback(&buf)
	defer p.Close()

	if err := p.Play([]byte{1, 2}, 16000); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.Play([]byte{3, 4}, 16000); err != nil {
		t.Fatalf("Play: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		n := buf.Len()
		p.mu.Unlock()
		if n == 4 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if got := buf.Bytes(); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("written = %v, want [1 2 3 4]", got)
	}
}

func TestWriterPlayback_StopDiscardsQueued(t *testing.T) {
	// Constructed without the write loop so queued buffers stay queued.
	var buf bytes.Buffer
	p := &WriterPlayback{
		w:     &buf,
		queue: make(chan []byte, 16),
		done:  make(chan struct{}),
	}

	p.queue <- []byte{1}
	p.queue <- []byte{2}
	p.Stop()
	if len(p.queue) != 0 {
		t.Errorf("queue length = %d after Stop, want 0", len(p.queue))
	}

	p.Close()
	if err := p.Play([]byte{3}, 16000); err == nil {
		t.Error("Play succeeded after Close")
	}
}
