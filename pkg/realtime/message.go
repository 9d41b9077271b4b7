// Package realtime implements the client side of the bidirectional,
// event-streamed realtime voice WebSocket protocol.
//
// The connection exchanges JSON text frames: the client sends session
// configuration, base64 WAV-wrapped audio, buffer-commit/clear signals, and
// response control messages; the server streams back session lifecycle
// events, voice-activity detections, transcripts, audio deltas, and function
// call requests. [Client] owns the socket and serialises writes; event
// interpretation and turn-state tracking belong to the protocol engine, not
// to this package.
package realtime

// ── Client → server messages ──────────────────────────────────────────────────

// TurnDetection configures how the server decides when an utterance ends.
type TurnDetection struct {
	// Type selects the detection mode: "server_vad" (the server watches the
	// audio stream), "client_vad" (the client commits explicitly), or "none".
	Type string `json:"type"`

	// Threshold is the server-VAD activation threshold ([0,1]).
	Threshold float64 `json:"threshold,omitempty"`

	// PrefixPaddingMs is audio retained before detected speech start.
	PrefixPaddingMs int `json:"prefix_padding_ms,omitempty"`

	// SilenceDurationMs is the silence run that ends an utterance.
	SilenceDurationMs int `json:"silence_duration_ms,omitempty"`
}

// Transcription toggles server-side transcription of input audio.
type Transcription struct {
	Enabled bool `json:"enabled"`
}

// BetaFields carries endpoint-specific extensions of the session payload.
type BetaFields struct {
	ChatMode   string `json:"chat_mode,omitempty"`
	TTSSource  string `json:"tts_source,omitempty"`
	AutoSearch bool   `json:"auto_search"`
	Voice      string `json:"voice,omitempty"`
}

// Tool describes one function the model may call during the session.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// SessionParams is the configuration payload of a session.update message.
// Immutable once sent; re-sent only via an explicit update.
type SessionParams struct {
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitempty"`
	Transcription     *Transcription `json:"input_audio_transcription,omitempty"`
	Temperature       float64        `json:"temperature,omitempty"`
	Modalities        []string       `json:"modalities,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Tools             []Tool         `json:"tools,omitempty"`
	Beta              *BetaFields    `json:"beta_fields,omitempty"`
}

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session SessionParams `json:"session"`
}

type appendAudioMessage struct {
	Type string `json:"type"`
	// Audio is a base64-encoded WAV envelope of PCM16 frames.
	Audio string `json:"audio"`
}

type typeOnlyMessage struct {
	Type string `json:"type"`
}

type createItemMessage struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// ── Server → client events ────────────────────────────────────────────────────

// ServerErrorDetail is the nested error object of an error event.
type ServerErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// SessionInfo is the session object carried by session.created/updated.
type SessionInfo struct {
	ID string `json:"id"`
}

// OutputItem is the item object of response.output_item.done. Its content
// parts may carry the transcript of synthesised audio.
type OutputItem struct {
	Type    string        `json:"type,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ContentPart is one content element of an output item.
type ContentPart struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript,omitempty"`
	Text       string `json:"text,omitempty"`
}

// ServerEvent is the decoded form of one inbound wire message. Only the
// fields relevant to the event's Type are populated; unknown event types are
// preserved with their Type so callers can log and drop them.
type ServerEvent struct {
	Type string `json:"type"`

	// response.audio.delta / response.audio_transcript.delta
	Delta string `json:"delta,omitempty"`

	// response.text.delta
	Text string `json:"text,omitempty"`

	// conversation.item.input_audio_transcription.completed
	Transcript string `json:"transcript,omitempty"`

	// response.function_call_arguments.done
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`

	// session.created / session.updated
	Session *SessionInfo `json:"session,omitempty"`

	// response.output_item.done
	Item *OutputItem `json:"item,omitempty"`

	// error / session.error
	Error *ServerErrorDetail `json:"error,omitempty"`
}

// IsRateLimit reports whether the event is a server rate-limit rejection.
func (e *ServerEvent) IsRateLimit() bool {
	return (e.Type == "error" || e.Type == "session.error") &&
		e.Error != nil && e.Error.Code == "rate_limit_error"
}
