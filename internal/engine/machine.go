package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Machine is the session transition function. Handle consumes one event,
// mutates the [SessionContext], and returns the side-effect commands the
// caller must execute, in order. Handle performs no I/O, so tests can script
// event sequences and assert on the command stream.
//
// Handle serialises transitions with its own mutex: events arrive from both
// the receive worker and the send worker (local VAD edges), and a transition
// must be atomic across its read-check-write.
type Machine struct {
	mu     sync.Mutex
	sctx   *SessionContext
	logger *slog.Logger
	now    func() time.Time
}

// NewMachine creates a Machine over sctx.
func NewMachine(sctx *SessionContext, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{sctx: sctx, logger: logger, now: time.Now}
}

// Handle applies one event to the session and returns the commands to run.
// Events that do not apply in the current state are dropped, with a log line
// where the drop is an anomaly rather than normal raciness.
func (m *Machine) Handle(ev Event) []Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.sctx.State()
	if state == StateClosed {
		return nil
	}

	switch e := ev.(type) {
	case Connected:
		if state != StateConnecting {
			return nil
		}
		m.sctx.SetState(StateConfiguring)
		return []Command{SendConfig{}}

	case SessionCreated:
		m.sctx.SetSessionID(e.ID)
		return nil

	case SessionUpdated:
		if state != StateConfiguring {
			return nil
		}
		m.sctx.SetState(StateIdle)
		return []Command{SignalReady{}}

	case SpeechStarted:
		switch state {
		case StateIdle:
			m.sctx.SetState(StateUserSpeaking)
			m.sctx.MarkTurnStart(m.now())
			return nil
		case StateAssistantResponding:
			// Barge-in via VAD: stop the assistant and listen.
			m.sctx.SetState(StateUserSpeaking)
			m.sctx.SetResponding(false)
			m.sctx.MarkTurnStart(m.now())
			return []Command{StopPlayback{}, ClearPlayback{}, CancelResponse{}, NoteInterruption{}}
		default:
			return nil
		}

	case SpeechStopped, ManualCommit:
		if state != StateUserSpeaking {
			return nil
		}
		m.sctx.SetState(StateCommitted)
		return []Command{FlushAudio{}, CommitInput{}, CreateResponse{}}

	case InputCommitted:
		if state == StateUserSpeaking {
			m.sctx.SetState(StateCommitted)
		}
		return nil

	case TranscriptionCompleted:
		return []Command{OpenTurn{Text: e.Text}}

	case ResponseCreated:
		return nil

	case AudioDelta:
		switch state {
		case StateCommitted:
			m.sctx.SetState(StateAssistantResponding)
			m.sctx.SetResponding(true)
			m.sctx.EnqueuePlayback(e.PCM)
			return nil
		case StateAssistantResponding:
			m.sctx.EnqueuePlayback(e.PCM)
			return nil
		default:
			// Stale delta from a cancelled response.
			return nil
		}

	case TranscriptDelta:
		switch state {
		case StateCommitted:
			m.sctx.SetState(StateAssistantResponding)
			m.sctx.SetResponding(true)
			return []Command{AppendAssistantText{Text: e.Text}}
		case StateAssistantResponding:
			return []Command{AppendAssistantText{Text: e.Text}}
		default:
			return nil
		}

	case TranscriptDone, OutputItemDone:
		// The accumulated deltas already carry this text.
		return nil

	case AudioDone:
		if state != StateAssistantResponding {
			return nil
		}
		return []Command{PlayBuffered{}}

	case FunctionCallDone:
		return []Command{CallFunction{CallID: e.CallID, Name: e.Name, Arguments: e.Arguments}}

	case ResponseDone:
		switch state {
		case StateAssistantResponding, StateCommitted:
			m.sctx.SetState(StateIdle)
			m.sctx.SetResponding(false)
			return []Command{FinalizeTurn{}}
		default:
			return nil
		}

	case UserInterrupt:
		if state != StateAssistantResponding {
			m.logger.Debug("interrupt ignored outside assistant response", "state", state.String())
			return nil
		}
		m.sctx.SetState(StateIdle)
		m.sctx.SetResponding(false)
		return []Command{StopPlayback{}, ClearPlayback{}, CancelResponse{}, ClearInput{}, NoteInterruption{}}

	case ServerError:
		if e.RateLimited {
			return []Command{NoteRateLimit{}}
		}
		m.logger.Warn("server error event", "code", e.Code, "message", e.Message)
		return nil

	case Unknown:
		m.logger.Debug("dropping unrecognised server event", "type", e.Type)
		return nil

	default:
		return nil
	}
}
