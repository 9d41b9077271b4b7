package recorder

import (
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/voxtale/voxtale/internal/turnlog"
)

type captureSink struct {
	mu      sync.Mutex
	entries []turnlog.Entry
	full    bool
}

func (s *captureSink) Enqueue(e turnlog.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.entries = append(s.entries, e)
	return true
}

func newTestRecorder(t *testing.T) (*TurnRecorder, *turnlog.Log, *captureSink) {
	t.Helper()
	log, err := turnlog.Open(filepath.Join(t.TempDir(), "turns.jsonl"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sink := &captureSink{}
	return New(log, sink, slog.Default()), log, sink
}

func TestTurnRecorder_CompleteTurn(t *testing.T) {
	rec, log, sink := newTestRecorder(t)

	rec.OnUserTranscript("hello")
	rec.OnAssistantDelta("hi")
	rec.OnAssistantDelta("hi")

	if !rec.Finalize() {
		t.Fatal("expected turn to persist")
	}
	if rec.Open() {
		t.Error("turn still open after finalize")
	}

	if len(sink.entries) != 1 {
		t.Fatalf("got %d enqueued entries, want 1", len(sink.entries))
	}
	got := sink.entries[0].Record
	if got.Messages[0].Content != "hello" || got.Messages[1].Content != "hihi" {
		t.Errorf("messages = %q / %q, want hello / hihi",
			got.Messages[0].Content, got.Messages[1].Content)
	}
	if got.Synced || got.RetryCount != 0 {
		t.Errorf("new record synced=%v retries=%d, want pending with 0 retries",
			got.Synced, got.RetryCount)
	}

	entries, err := log.Unsynced()
	if err != nil {
		t.Fatalf("unsynced: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d durable records, want 1", len(entries))
	}
}

func TestTurnRecorder_FinalizeWithoutUserTranscript(t *testing.T) {
	rec, log, sink := newTestRecorder(t)

	rec.OnAssistantDelta("orphan")
	if rec.Finalize() {
		t.Error("expected no record without user transcript")
	}
	if len(sink.entries) != 0 {
		t.Errorf("got %d enqueued entries, want 0", len(sink.entries))
	}
	if entries, _ := log.Unsynced(); len(entries) != 0 {
		t.Errorf("got %d durable records, want 0", len(entries))
	}
}

func TestTurnRecorder_FinalizeWithoutAssistantText(t *testing.T) {
	rec, _, sink := newTestRecorder(t)

	rec.OnUserTranscript("book a flight")
	if rec.Finalize() {
		t.Error("expected no record for function-call-only turn")
	}
	if len(sink.entries) != 0 {
		t.Errorf("got %d enqueued entries, want 0", len(sink.entries))
	}
}

func TestTurnRecorder_DoubleOpenDiscardsPrevious(t *testing.T) {
	rec, _, sink := newTestRecorder(t)

	rec.OnUserTranscript("first")
	rec.OnAssistantDelta("partial")
	rec.OnUserTranscript("second")
	rec.OnAssistantDelta("answer")

	if !rec.Finalize() {
		t.Fatal("expected second turn to persist")
	}
	if len(sink.entries) != 1 {
		t.Fatalf("got %d persisted turns, want 1", len(sink.entries))
	}
	got := sink.entries[0].Record
	if got.Messages[0].Content != "second" || got.Messages[1].Content != "answer" {
		t.Errorf("persisted turn = %q / %q, want second / answer",
			got.Messages[0].Content, got.Messages[1].Content)
	}
}

func TestTurnRecorder_Discard(t *testing.T) {
	rec, _, sink := newTestRecorder(t)

	rec.OnUserTranscript("interrupted")
	rec.OnAssistantDelta("half an ans")
	rec.Discard()

	if rec.Open() {
		t.Error("turn still open after discard")
	}
	if rec.Finalize() {
		t.Error("finalize after discard persisted a record")
	}
	if len(sink.entries) != 0 {
		t.Errorf("got %d enqueued entries, want 0", len(sink.entries))
	}
}

func TestTurnRecorder_QueueFullLeavesDurableRecord(t *testing.T) {
	rec, log, sink := newTestRecorder(t)
	sink.full = true

	rec.OnUserTranscript("hello")
	rec.OnAssistantDelta("hi")
	if !rec.Finalize() {
		t.Fatal("expected turn to persist despite full queue")
	}

	entries, err := log.Unsynced()
	if err != nil {
		t.Fatalf("unsynced: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d durable records, want 1 for the sweep to pick up", len(entries))
	}
}
