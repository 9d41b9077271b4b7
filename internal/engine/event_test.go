package engine

import (
	"encoding/base64"
	"testing"

	"github.com/voxtale/voxtale/pkg/realtime"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		in   *realtime.ServerEvent
		want Event
	}{
		{"session created", &realtime.ServerEvent{Type: "session.created", Session: &realtime.SessionInfo{ID: "s1"}}, SessionCreated{ID: "s1"}},
		{"session created without body", &realtime.ServerEvent{Type: "session.created"}, SessionCreated{}},
		{"speech started", &realtime.ServerEvent{Type: "input_audio_buffer.speech_started"}, SpeechStarted{}},
		{"transcription", &realtime.ServerEvent{Type: "conversation.item.input_audio_transcription.completed", Transcript: "hi"}, TranscriptionCompleted{Text: "hi"}},
		{"transcript delta", &realtime.ServerEvent{Type: "response.audio_transcript.delta", Delta: "he"}, TranscriptDelta{Text: "he"}},
		{"text delta", &realtime.ServerEvent{Type: "response.text.delta", Text: "llo"}, TranscriptDelta{Text: "llo"}},
		{"function call", &realtime.ServerEvent{Type: "response.function_call_arguments.done", CallID: "c", Name: "f", Arguments: "{}"}, FunctionCallDone{CallID: "c", Name: "f", Arguments: "{}"}},
		{"rate limit", &realtime.ServerEvent{Type: "error", Error: &realtime.ServerErrorDetail{Code: "rate_limit_error", Message: "slow down"}}, ServerError{Code: "rate_limit_error", Message: "slow down", RateLimited: true}},
		{"unknown", &realtime.ServerEvent{Type: "response.exotic"}, Unknown{Type: "response.exotic"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeEvent(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("decoded %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestDecodeEvent_AudioDelta(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	ev, err := DecodeEvent(&realtime.ServerEvent{
		Type:  "response.audio.delta",
		Delta: base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	delta, ok := ev.(AudioDelta)
	if !ok {
		t.Fatalf("decoded %T, want AudioDelta", ev)
	}
	if string(delta.PCM) != string(pcm) {
		t.Errorf("pcm = %v, want %v", delta.PCM, pcm)
	}

	if _, err := DecodeEvent(&realtime.ServerEvent{Type: "response.audio.delta", Delta: "!!"}); err == nil {
		t.Error("expected error for invalid base64 delta")
	}
}
