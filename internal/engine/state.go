// Package engine implements the realtime session protocol: the turn state
// machine driving one WebSocket conversation with the speech model, the
// outbound audio pipeline (gate, batching, pacing), and the interruption
// path.
//
// The design splits three concerns. [SessionContext] owns every piece of
// mutable per-session state behind one mutex — there are no package-level
// variables. [Machine] is the pure transition function: it consumes decoded
// events, mutates the session context, and returns an explicit list of
// side-effect [Command]s without performing any I/O itself. [Engine] owns the
// transport and devices, runs the receive and send workers, and executes the
// commands the machine hands back. Tests drive the machine directly with
// scripted events and assert on the returned commands.
package engine

import (
	"sync"
	"time"
)

// TurnState is the conversation-turn phase of a session.
type TurnState int

const (
	// StateConnecting: transport dial in progress or just completed.
	StateConnecting TurnState = iota

	// StateConfiguring: session.update sent, waiting for the server ack.
	StateConfiguring

	// StateIdle: configured, no user speech in flight.
	StateIdle

	// StateUserSpeaking: user audio is streaming to the server.
	StateUserSpeaking

	// StateCommitted: input buffer committed, response requested, first
	// assistant delta not yet seen.
	StateCommitted

	// StateAssistantResponding: assistant deltas are streaming in.
	StateAssistantResponding

	// StateClosed: transport gone; terminal.
	StateClosed
)

func (s TurnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateIdle:
		return "idle"
	case StateUserSpeaking:
		return "user_speaking"
	case StateCommitted:
		return "committed"
	case StateAssistantResponding:
		return "assistant_responding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionContext owns all mutable state of one session: turn state, the
// responding flag, the assistant playback buffer, and trigger timestamps.
// Every access goes through a method holding the mutex; workers never share
// raw fields.
type SessionContext struct {
	mu sync.Mutex

	sessionID  string
	state      TurnState
	responding bool

	// playback accumulates assistant audio deltas until response.audio.done
	// hands them to the output device, or an interrupt discards them.
	playback [][]byte

	turnStart         time.Time
	lastManualTrigger time.Time
}

// NewSessionContext creates a context in [StateConnecting].
func NewSessionContext() *SessionContext {
	return &SessionContext{state: StateConnecting}
}

// State returns the current turn state.
func (c *SessionContext) State() TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState moves the session to s.
func (c *SessionContext) SetState(s TurnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// SessionID returns the server-assigned session id, if known yet.
func (c *SessionContext) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID records the server-assigned session id.
func (c *SessionContext) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// Responding reports whether an assistant response is in flight.
func (c *SessionContext) Responding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responding
}

// SetResponding sets the responding flag.
func (c *SessionContext) SetResponding(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responding = v
}

// EnqueuePlayback appends one assistant audio chunk to the playback buffer.
func (c *SessionContext) EnqueuePlayback(pcm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playback = append(c.playback, pcm)
}

// DrainPlayback returns the buffered chunks concatenated in arrival order
// and empties the buffer.
func (c *SessionContext) DrainPlayback() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, chunk := range c.playback {
		n += len(chunk)
	}
	out := make([]byte, 0, n)
	for _, chunk := range c.playback {
		out = append(out, chunk...)
	}
	c.playback = nil
	return out
}

// ClearPlayback discards all buffered assistant audio.
func (c *SessionContext) ClearPlayback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playback = nil
}

// PlaybackLen returns the number of buffered assistant audio chunks.
func (c *SessionContext) PlaybackLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.playback)
}

// MarkTurnStart stamps the beginning of the current user turn.
func (c *SessionContext) MarkTurnStart(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turnStart = t
}

// TurnStart returns the start time of the current turn (zero if none).
func (c *SessionContext) TurnStart() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnStart
}

// TryManualTrigger arms the manual turn-completion trigger. It returns false
// while the debounce window since the previous accepted trigger has not yet
// elapsed.
func (c *SessionContext) TryManualTrigger(now time.Time, debounce time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastManualTrigger.IsZero() && now.Sub(c.lastManualTrigger) < debounce {
		return false
	}
	c.lastManualTrigger = now
	return true
}
