package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// ErrClosed is returned by all Transport methods after Close.
var ErrClosed = errors.New("realtime: connection closed")

// Transport is the wire-level contract the protocol engine depends on. It is
// an interface so that tests can drive the engine with a scripted mock
// instead of a live endpoint.
//
// Writes are serialised internally; ReadEvent must only be called from a
// single goroutine (the engine's receive worker).
type Transport interface {
	// ReadEvent blocks until the next inbound event arrives. A transport
	// close or read error is fatal to the session and is returned as-is.
	ReadEvent(ctx context.Context) (*ServerEvent, error)

	// SendSessionUpdate transmits the session configuration payload.
	SendSessionUpdate(ctx context.Context, params SessionParams) error

	// AppendAudio transmits one base64 WAV-enveloped audio payload.
	AppendAudio(ctx context.Context, audioB64 string) error

	// CommitInput signals that no more audio follows for this utterance.
	CommitInput(ctx context.Context) error

	// ClearInput discards the server-side input audio buffer.
	ClearInput(ctx context.Context) error

	// CreateResponse asks the model to generate the assistant turn.
	CreateResponse(ctx context.Context) error

	// CancelResponse aborts an in-progress assistant response.
	CancelResponse(ctx context.Context) error

	// CreateFunctionOutput returns a function-call result to the model.
	CreateFunctionOutput(ctx context.Context, callID, output string) error

	// Close tears the connection down. Idempotent.
	Close() error
}

// Compile-time check that Client satisfies Transport.
var _ Transport = (*Client)(nil)

// ── Options ──────────────────────────────────────────────────────────────────

// Option is a functional option for [Dial].
type Option func(*dialConfig)

type dialConfig struct {
	header http.Header
}

// WithHeader adds an HTTP header to the WebSocket handshake request.
func WithHeader(key, value string) Option {
	return func(c *dialConfig) { c.header.Set(key, value) }
}

// ── Client ───────────────────────────────────────────────────────────────────

// Client is the production [Transport] over a coder/websocket connection.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Dial connects to the realtime endpoint at url, authenticating with the
// given bearer token. The caller owns the returned Client and must call
// Close. Connection failure is fatal to the session attempt — the transport
// never retries internally.
func Dial(ctx context.Context, url, token string, opts ...Option) (*Client, error) {
	cfg := dialConfig{header: http.Header{}}
	cfg.header.Set("Authorization", "Bearer "+token)
	for _, o := range opts {
		o(&cfg)
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: cfg.header,
	})
	if err != nil {
		return nil, fmt.Errorf("realtime: dial %s: %w", url, err)
	}
	// Audio batches are large; lift the default read limit.
	conn.SetReadLimit(1 << 22)

	return &Client{conn: conn}, nil
}

// ReadEvent implements [Transport].
func (c *Client) ReadEvent(ctx context.Context) (*ServerEvent, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		if c.isClosed() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("realtime: read: %w", err)
	}

	var evt ServerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		// Malformed frames are a protocol error, not a transport error;
		// surface them distinctly so the engine can log and continue.
		return nil, &MalformedEventError{Data: data, Err: err}
	}
	return &evt, nil
}

// MalformedEventError reports an inbound frame that was not valid JSON.
// It is recoverable: the engine logs and drops the frame.
type MalformedEventError struct {
	Data []byte
	Err  error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("realtime: malformed event: %v", e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// SendSessionUpdate implements [Transport].
func (c *Client) SendSessionUpdate(ctx context.Context, params SessionParams) error {
	return c.writeJSON(ctx, sessionUpdateMessage{Type: "session.update", Session: params})
}

// AppendAudio implements [Transport].
func (c *Client) AppendAudio(ctx context.Context, audioB64 string) error {
	return c.writeJSON(ctx, appendAudioMessage{Type: "input_audio_buffer.append", Audio: audioB64})
}

// CommitInput implements [Transport].
func (c *Client) CommitInput(ctx context.Context) error {
	return c.writeJSON(ctx, typeOnlyMessage{Type: "input_audio_buffer.commit"})
}

// ClearInput implements [Transport].
func (c *Client) ClearInput(ctx context.Context) error {
	return c.writeJSON(ctx, typeOnlyMessage{Type: "input_audio_buffer.clear"})
}

// CreateResponse implements [Transport].
func (c *Client) CreateResponse(ctx context.Context) error {
	return c.writeJSON(ctx, typeOnlyMessage{Type: "response.create"})
}

// CancelResponse implements [Transport].
func (c *Client) CancelResponse(ctx context.Context) error {
	return c.writeJSON(ctx, typeOnlyMessage{Type: "response.cancel"})
}

// CreateFunctionOutput implements [Transport].
func (c *Client) CreateFunctionOutput(ctx context.Context, callID, output string) error {
	return c.writeJSON(ctx, createItemMessage{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	})
}

// Close implements [Transport]. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.conn.Close(websocket.StatusNormalClosure, "session closed")
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// writeJSON marshals v and writes it as one text frame. Writes from the send
// worker, the receive worker (function-call output), and the interrupt path
// are serialised here.
func (c *Client) writeJSON(ctx context.Context, v any) error {
	if c.isClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("realtime: write: %w", err)
	}
	return nil
}
