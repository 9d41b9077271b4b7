package engine

import (
	"encoding/base64"
	"fmt"

	"github.com/voxtale/voxtale/pkg/realtime"
)

// Event is a decoded inbound or local occurrence fed to the state machine.
// Wire events come from [DecodeEvent]; local events (interrupt, manual
// commit, client-side VAD edges) are constructed directly.
type Event interface{ isEvent() }

// Connected is the local event fired once the transport is open.
type Connected struct{}

// SessionCreated carries the server-assigned session id.
type SessionCreated struct{ ID string }

// SessionUpdated acknowledges the configuration sent by the engine.
type SessionUpdated struct{}

// SpeechStarted marks the onset of user speech, from the server VAD or the
// local gate.
type SpeechStarted struct{}

// SpeechStopped marks the end of user speech, from the server VAD or the
// local gate.
type SpeechStopped struct{}

// InputCommitted acknowledges a committed input buffer.
type InputCommitted struct{}

// TranscriptionCompleted carries the final transcript of the user's input
// audio.
type TranscriptionCompleted struct{ Text string }

// ResponseCreated marks the server accepting a response request.
type ResponseCreated struct{}

// AudioDelta carries one decoded chunk of assistant audio.
type AudioDelta struct{ PCM []byte }

// AudioDone marks the end of the assistant audio stream for this response.
type AudioDone struct{}

// TranscriptDelta carries a fragment of the assistant's spoken text.
type TranscriptDelta struct{ Text string }

// TranscriptDone carries the full assistant transcript. Informational: the
// accumulated deltas already hold this text.
type TranscriptDone struct{ Text string }

// FunctionCallDone carries a completed function call's arguments.
type FunctionCallDone struct{ CallID, Name, Arguments string }

// OutputItemDone marks a completed response output item.
type OutputItemDone struct{}

// ResponseDone marks the completion of the assistant response.
type ResponseDone struct{}

// ServerError carries an error event from the server.
type ServerError struct {
	Code        string
	Message     string
	RateLimited bool
}

// UserInterrupt is the local barge-in trigger.
type UserInterrupt struct{}

// ManualCommit is the local "done speaking" trigger, already debounced.
type ManualCommit struct{}

// Unknown preserves an unrecognised wire event type for logging.
type Unknown struct{ Type string }

func (Connected) isEvent()              {}
func (SessionCreated) isEvent()         {}
func (SessionUpdated) isEvent()         {}
func (SpeechStarted) isEvent()          {}
func (SpeechStopped) isEvent()          {}
func (InputCommitted) isEvent()         {}
func (TranscriptionCompleted) isEvent() {}
func (ResponseCreated) isEvent()        {}
func (AudioDelta) isEvent()             {}
func (AudioDone) isEvent()              {}
func (TranscriptDelta) isEvent()        {}
func (TranscriptDone) isEvent()         {}
func (FunctionCallDone) isEvent()       {}
func (OutputItemDone) isEvent()         {}
func (ResponseDone) isEvent()           {}
func (ServerError) isEvent()            {}
func (UserInterrupt) isEvent()          {}
func (ManualCommit) isEvent()           {}
func (Unknown) isEvent()                {}

// DecodeEvent maps a wire event to its tagged variant. Unrecognised types
// decode to [Unknown] rather than an error; a malformed audio delta is the
// only decode failure.
func DecodeEvent(evt *realtime.ServerEvent) (Event, error) {
	switch evt.Type {
	case "session.created":
		var id string
		if evt.Session != nil {
			id = evt.Session.ID
		}
		return SessionCreated{ID: id}, nil
	case "session.updated":
		return SessionUpdated{}, nil
	case "input_audio_buffer.speech_started":
		return SpeechStarted{}, nil
	case "input_audio_buffer.speech_stopped":
		return SpeechStopped{}, nil
	case "input_audio_buffer.committed":
		return InputCommitted{}, nil
	case "conversation.item.input_audio_transcription.completed":
		return TranscriptionCompleted{Text: evt.Transcript}, nil
	case "response.created":
		return ResponseCreated{}, nil
	case "response.audio.delta":
		pcm, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil {
			return nil, fmt.Errorf("engine: decode audio delta: %w", err)
		}
		return AudioDelta{PCM: pcm}, nil
	case "response.audio.done":
		return AudioDone{}, nil
	case "response.audio_transcript.delta":
		return TranscriptDelta{Text: evt.Delta}, nil
	case "response.audio_transcript.done":
		return TranscriptDone{Text: evt.Transcript}, nil
	case "response.text.delta":
		return TranscriptDelta{Text: evt.Text}, nil
	case "response.function_call_arguments.done":
		return FunctionCallDone{CallID: evt.CallID, Name: evt.Name, Arguments: evt.Arguments}, nil
	case "response.output_item.done":
		return OutputItemDone{}, nil
	case "response.done":
		return ResponseDone{}, nil
	case "error", "session.error":
		e := ServerError{RateLimited: evt.IsRateLimit()}
		if evt.Error != nil {
			e.Code = evt.Error.Code
			e.Message = evt.Error.Message
		}
		return e, nil
	default:
		return Unknown{Type: evt.Type}, nil
	}
}
