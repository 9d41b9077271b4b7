// Package mock provides a scripted mock implementation of the
// [realtime.Transport] interface for unit tests.
//
// Queue inbound events with [Transport.PushEvent]; every outbound call is
// recorded in order on the Sent slice as a short operation descriptor, so
// tests can assert on both the set and the ordering of wire messages.
package mock

import (
	"context"
	"sync"

	"github.com/voxtale/voxtale/pkg/realtime"
)

// SentMessage records one outbound call on the mock transport.
type SentMessage struct {
	// Op is the operation name: "session.update",
	// "input_audio_buffer.append", "input_audio_buffer.commit",
	// "input_audio_buffer.clear", "response.create", "response.cancel",
	// or "conversation.item.create".
	Op string

	// AudioB64 is set for append operations.
	AudioB64 string

	// Params is set for session.update operations.
	Params realtime.SessionParams

	// CallID and Output are set for conversation.item.create operations.
	CallID string
	Output string
}

// Transport is a mock [realtime.Transport].
type Transport struct {
	mu sync.Mutex

	// SendError, when non-nil, is returned by every outbound call.
	SendError error

	// ReadError, when non-nil, is returned by ReadEvent once the scripted
	// events are exhausted. When nil, ReadEvent blocks until another event
	// is pushed or ctx is cancelled.
	ReadError error

	// Sent records every outbound call in order.
	Sent []SentMessage

	events chan *realtime.ServerEvent
	closed bool
}

var _ realtime.Transport = (*Transport)(nil)

// New creates a mock transport with room for capacity queued events.
func New(capacity int) *Transport {
	return &Transport{events: make(chan *realtime.ServerEvent, capacity)}
}

// PushEvent queues an inbound event for ReadEvent to return.
func (t *Transport) PushEvent(evt *realtime.ServerEvent) {
	t.events <- evt
}

// CloseEvents marks the inbound stream as finished: once drained, ReadEvent
// returns ReadError (or [realtime.ErrClosed] if none is set).
func (t *Transport) CloseEvents() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
}

// ReadEvent implements [realtime.Transport].
func (t *Transport) ReadEvent(ctx context.Context) (*realtime.ServerEvent, error) {
	select {
	case evt, ok := <-t.events:
		if !ok {
			t.mu.Lock()
			err := t.ReadError
			t.mu.Unlock()
			if err == nil {
				err = realtime.ErrClosed
			}
			return nil, err
		}
		return evt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Transport) record(msg SentMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SendError != nil {
		return t.SendError
	}
	t.Sent = append(t.Sent, msg)
	return nil
}

// SendSessionUpdate implements [realtime.Transport].
func (t *Transport) SendSessionUpdate(ctx context.Context, params realtime.SessionParams) error {
	return t.record(SentMessage{Op: "session.update", Params: params})
}

// AppendAudio implements [realtime.Transport].
func (t *Transport) AppendAudio(ctx context.Context, audioB64 string) error {
	return t.record(SentMessage{Op: "input_audio_buffer.append", AudioB64: audioB64})
}

// CommitInput implements [realtime.Transport].
func (t *Transport) CommitInput(ctx context.Context) error {
	return t.record(SentMessage{Op: "input_audio_buffer.commit"})
}

// ClearInput implements [realtime.Transport].
func (t *Transport) ClearInput(ctx context.Context) error {
	return t.record(SentMessage{Op: "input_audio_buffer.clear"})
}

// CreateResponse implements [realtime.Transport].
func (t *Transport) CreateResponse(ctx context.Context) error {
	return t.record(SentMessage{Op: "response.create"})
}

// CancelResponse implements [realtime.Transport].
func (t *Transport) CancelResponse(ctx context.Context) error {
	return t.record(SentMessage{Op: "response.cancel"})
}

// CreateFunctionOutput implements [realtime.Transport].
func (t *Transport) CreateFunctionOutput(ctx context.Context, callID, output string) error {
	return t.record(SentMessage{Op: "conversation.item.create", CallID: callID, Output: output})
}

// Close implements [realtime.Transport].
func (t *Transport) Close() error {
	t.CloseEvents()
	return nil
}

// SentOps returns just the operation names, in send order.
func (t *Transport) SentOps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ops := make([]string, len(t.Sent))
	for i, m := range t.Sent {
		ops[i] = m.Op
	}
	return ops
}
