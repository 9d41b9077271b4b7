// Package recorder accumulates one conversation turn at a time from the
// transcript stream and persists completed turns.
//
// A turn opens when the user's transcript arrives, collects assistant text
// deltas while the response streams, and finalizes on response completion. At
// most one turn is open at any moment; a finalized turn is persisted only
// when both sides of the exchange carry text, so function-call-only turns
// and transcription-only turns leave no record.
package recorder

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/voxtale/voxtale/internal/turnlog"
)

// Sink receives persisted turn entries for asynchronous delivery. Enqueue
// must not block; it reports whether the entry was accepted.
type Sink interface {
	Enqueue(entry turnlog.Entry) bool
}

// TurnRecorder builds TurnRecords from transcript callbacks. Safe for
// concurrent use; callbacks may arrive from the receive worker while
// Discard is called from the lifecycle path.
type TurnRecorder struct {
	mu sync.Mutex

	log    *turnlog.Log
	sink   Sink
	logger *slog.Logger

	open          bool
	userText      string
	assistantText strings.Builder
}

// New creates a TurnRecorder persisting to log and handing completed
// entries to sink. A nil sink means persist-only (the reconciliation sweep
// will pick the records up).
func New(log *turnlog.Log, sink Sink, logger *slog.Logger) *TurnRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnRecorder{log: log, sink: sink, logger: logger}
}

// OnUserTranscript opens a new turn with the user's transcribed text. If a
// turn is already open it is finalized-and-discarded first; this indicates a
// missed response-complete event and is logged as an anomaly.
func (r *TurnRecorder) OnUserTranscript(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open {
		r.logger.Warn("turn still open on new user transcript, discarding",
			"user_len", len(r.userText),
			"assistant_len", r.assistantText.Len())
		r.resetLocked()
	}
	r.open = true
	r.userText = text
}

// OnAssistantDelta appends a streamed assistant text fragment to the open
// turn. A delta with no open turn is dropped and logged as an anomaly.
func (r *TurnRecorder) OnAssistantDelta(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		r.logger.Warn("assistant delta with no open turn, dropping", "delta_len", len(text))
		return
	}
	r.assistantText.WriteString(text)
}

// Finalize completes the open turn. The turn is persisted and enqueued for
// sync only when both user and assistant text are non-empty; otherwise it is
// dropped without a record. Returns true when a record was persisted.
func (r *TurnRecorder) Finalize() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return false
	}
	user := r.userText
	assistant := r.assistantText.String()
	r.resetLocked()

	if user == "" || assistant == "" {
		r.logger.Debug("turn incomplete at finalize, dropping",
			"user_len", len(user), "assistant_len", len(assistant))
		return false
	}

	rec := turnlog.NewRecord(user, assistant)
	line, err := r.log.Append(rec)
	if err != nil {
		r.logger.Error("persist turn failed", "error", err)
		return false
	}
	r.logger.Info("turn persisted", "line", line, "turn_id", rec.ID)

	if r.sink != nil {
		if !r.sink.Enqueue(turnlog.Entry{Line: line, Record: rec}) {
			r.logger.Warn("sync queue full, turn left for reconciliation sweep",
				"line", line, "turn_id", rec.ID)
		}
	}
	return true
}

// Discard drops any open turn without persisting it. Called when the
// transport closes mid-turn.
func (r *TurnRecorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open {
		r.logger.Debug("discarding open turn",
			"user_len", len(r.userText), "assistant_len", r.assistantText.Len())
	}
	r.resetLocked()
}

// AssistantText returns the assistant text accumulated so far in the open
// turn, or "" when no turn is open.
func (r *TurnRecorder) AssistantText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return ""
	}
	return r.assistantText.String()
}

// Open reports whether a turn is currently accumulating.
func (r *TurnRecorder) Open() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

func (r *TurnRecorder) resetLocked() {
	r.open = false
	r.userText = ""
	r.assistantText.Reset()
}
