package ratelimit

import (
	"testing"
	"time"

	"github.com/voxtale/voxtale/pkg/audio"
)

func frameN(n byte) audio.Frame {
	return audio.Frame{PCM: []byte{n, 0}, SampleRate: 16000}
}

func TestBatcher_ReleasesAtThreshold(t *testing.T) {
	b := NewBatcher(3)

	for i := byte(0); i < 2; i++ {
		if batch, ok := b.Admit(frameN(i)); ok {
			t.Fatalf("premature batch of %d frames", len(batch))
		}
	}
	batch, ok := b.Admit(frameN(2))
	if !ok {
		t.Fatal("expected batch at threshold")
	}
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}
	if b.Pending() != 0 {
		t.Errorf("pending = %d after release, want 0", b.Pending())
	}
}

func TestBatcher_PreservesAdmissionOrder(t *testing.T) {
	b := NewBatcher(4)
	var released []audio.Frame

	// Two full batches plus a flushed remainder reproduce admission order.
	for i := byte(0); i < 10; i++ {
		if batch, ok := b.Admit(frameN(i)); ok {
			released = append(released, batch...)
		}
	}
	if batch, ok := b.Flush(); ok {
		released = append(released, batch...)
	}

	if len(released) != 10 {
		t.Fatalf("released %d frames, want 10", len(released))
	}
	for i, f := range released {
		if f.PCM[0] != byte(i) {
			t.Fatalf("frame %d out of order: got marker %d", i, f.PCM[0])
		}
	}
}

func TestBatcher_FlushAndDrop(t *testing.T) {
	b := NewBatcher(8)
	b.Admit(frameN(1))
	b.Admit(frameN(2))

	batch, ok := b.Flush()
	if !ok || len(batch) != 2 {
		t.Fatalf("flush: got ok=%v len=%d, want 2 frames", ok, len(batch))
	}
	if _, ok := b.Flush(); ok {
		t.Error("second flush should report nothing pending")
	}

	b.Admit(frameN(3))
	b.Drop()
	if b.Pending() != 0 {
		t.Errorf("pending = %d after drop, want 0", b.Pending())
	}
}

func TestPacer_EnforcesFloor(t *testing.T) {
	p := NewPacer(20) // 50 ms floor
	start := time.Now()

	if d := p.Delay(start); d != 0 {
		t.Errorf("first send delay = %v, want 0", d)
	}
	p.MarkSent(start)

	if d := p.Delay(start.Add(10 * time.Millisecond)); d != 40*time.Millisecond {
		t.Errorf("delay after 10ms = %v, want 40ms", d)
	}
	if d := p.Delay(start.Add(50 * time.Millisecond)); d != 0 {
		t.Errorf("delay after full interval = %v, want 0", d)
	}
}

func TestPacer_CeilingOverWindow(t *testing.T) {
	// Simulate a driven clock: sends only happen when Delay reports zero.
	// Over one second no more than maxPerSecond sends may be admitted.
	const maxPerSecond = 20
	p := NewPacer(maxPerSecond)

	now := time.Now()
	sends := 0
	for tick := 0; tick < 1000; tick++ { // 1 ms resolution over 1 s
		at := now.Add(time.Duration(tick) * time.Millisecond)
		if p.Delay(at) == 0 {
			p.MarkSent(at)
			sends++
		}
	}
	if sends > maxPerSecond {
		t.Errorf("admitted %d sends in 1s window, ceiling is %d", sends, maxPerSecond)
	}
}
