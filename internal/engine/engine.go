package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxtale/voxtale/internal/observe"
	"github.com/voxtale/voxtale/internal/recorder"
	"github.com/voxtale/voxtale/pkg/audio"
	"github.com/voxtale/voxtale/pkg/realtime"
	"github.com/voxtale/voxtale/pkg/vadgate"
)

// Turn detection modes.
const (
	ModeServerVAD = "server_vad"
	ModeClientVAD = "client_vad"
	ModeNone      = "none"
)

const (
	// DefaultSetupTimeout bounds the wait for the server to acknowledge the
	// session configuration.
	DefaultSetupTimeout = 10 * time.Second

	// DefaultManualTriggerDebounce is the re-arm window of the manual
	// turn-completion trigger.
	DefaultManualTriggerDebounce = time.Second

	// rateLimitLogEvery controls how often rate-limit rejections surface in
	// the log; counting every occurrence individually would storm the log
	// under sustained pressure.
	rateLimitLogEvery = 10
)

// ErrSetupTimeout is returned by Run when the server never acknowledges the
// session configuration.
var ErrSetupTimeout = errors.New("engine: session setup timed out")

// FunctionHandler executes one completed function call and feeds the result
// back to the model. Implemented by the bridge package.
type FunctionHandler interface {
	HandleFunctionCall(ctx context.Context, callID, name, arguments string) error
}

// Config carries the per-session protocol parameters.
type Config struct {
	// Session is the configuration sent in the session.update handshake.
	Session realtime.SessionParams

	// Mode selects turn detection: [ModeServerVAD], [ModeClientVAD], or
	// [ModeNone].
	Mode string

	// SampleRate of captured audio in Hz.
	SampleRate int

	// BatchFrames is the number of frames batched into one wire message.
	BatchFrames int

	// MaxSendsPerSecond caps outbound wire messages.
	MaxSendsPerSecond int

	// SetupTimeout bounds the configuration handshake. Default
	// [DefaultSetupTimeout].
	SetupTimeout time.Duration

	// ManualTriggerDebounce is the re-arm window of [Engine.CompleteTurn].
	// Default [DefaultManualTriggerDebounce].
	ManualTriggerDebounce time.Duration
}

func (c *Config) applyDefaults() {
	if c.SetupTimeout <= 0 {
		c.SetupTimeout = DefaultSetupTimeout
	}
	if c.ManualTriggerDebounce <= 0 {
		c.ManualTriggerDebounce = DefaultManualTriggerDebounce
	}
	if c.Mode == "" {
		c.Mode = ModeServerVAD
	}
}

// Option is a functional option for [New].
type Option func(*Engine)

// WithFrameSource attaches the capture device feeding the send worker.
// Without a source the engine is receive-only (tests, replay).
func WithFrameSource(src audio.FrameSource) Option {
	return func(e *Engine) { e.source = src }
}

// WithPlayback attaches the output device for assistant audio.
func WithPlayback(p audio.Playback) Option {
	return func(e *Engine) { e.playback = p }
}

// WithGate attaches the local voice-activity gate, used in client-VAD mode.
func WithGate(g vadgate.Gate) Option {
	return func(e *Engine) { e.gate = g }
}

// WithRecorder attaches the turn recorder.
func WithRecorder(r *recorder.TurnRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithFunctionHandler attaches the function-call bridge.
func WithFunctionHandler(h FunctionHandler) Option {
	return func(e *Engine) { e.functions = h }
}

// WithFallbackSpeaker attaches a hook invoked with the assistant's text when
// a response completes without producing any audio, so a local
// text-to-speech sink can voice the reply instead.
func WithFallbackSpeaker(fn func(text string)) Option {
	return func(e *Engine) { e.fallbackSpeak = fn }
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine drives one realtime session: it owns the transport, executes the
// state machine's commands, and runs the receive and send workers.
type Engine struct {
	transport realtime.Transport
	cfg       Config

	source        audio.FrameSource
	playback      audio.Playback
	gate          vadgate.Gate
	recorder      *recorder.TurnRecorder
	functions     FunctionHandler
	fallbackSpeak func(text string)
	metrics       *observe.Metrics
	logger        *slog.Logger

	sctx    *SessionContext
	machine *Machine
	sender  *sender

	ready     chan struct{}
	readyOnce sync.Once

	rateLimitHits atomic.Uint64
	audioPlayed   atomic.Bool
}

// New creates an Engine over transport with the given protocol config.
func New(transport realtime.Transport, cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		transport: transport,
		cfg:       cfg,
		logger:    slog.Default(),
		ready:     make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	e.sctx = NewSessionContext()
	e.machine = NewMachine(e.sctx, e.logger)
	e.sender = newSender(e)
	return e
}

// Context returns the session context. Exposed for wiring and tests; all
// accessors are mutex-guarded.
func (e *Engine) Context() *SessionContext { return e.sctx }

// Run drives the session until the transport closes, setup times out, or ctx
// is cancelled. The configuration handshake happens first; outbound audio is
// held until the server acknowledges it.
func (e *Engine) Run(ctx context.Context) error {
	e.metrics.ActiveSessions.Add(ctx, 1)
	defer e.metrics.ActiveSessions.Add(ctx, -1)

	if err := e.dispatch(ctx, Connected{}); err != nil {
		return fmt.Errorf("engine: send configuration: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.receiveLoop(ctx) })
	g.Go(func() error { return e.sender.run(ctx) })
	g.Go(func() error { return e.awaitSetup(ctx) })

	err := g.Wait()
	e.sctx.SetState(StateClosed)
	if e.recorder != nil {
		e.recorder.Discard()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Interrupt is the barge-in path: it stops playback, discards buffered
// assistant audio, cancels the in-flight response, and clears the input
// buffer, in that order. No-op unless an assistant response is in flight.
func (e *Engine) Interrupt(ctx context.Context) error {
	return e.dispatch(ctx, UserInterrupt{})
}

// CompleteTurn is the manual "done speaking" trigger. It is debounced:
// triggers inside the re-arm window are dropped, so a bouncing control
// cannot double-commit one turn. The debounce arms only while the user is
// speaking; a stray trigger outside a turn cannot swallow the real one.
func (e *Engine) CompleteTurn(ctx context.Context) error {
	if e.sctx.State() != StateUserSpeaking {
		e.logger.Debug("manual trigger ignored, no open user turn")
		return nil
	}
	if !e.sctx.TryManualTrigger(time.Now(), e.cfg.ManualTriggerDebounce) {
		e.logger.Debug("manual trigger dropped by debounce")
		return nil
	}
	return e.dispatch(ctx, ManualCommit{})
}

// Ready returns a channel closed once the server acknowledges the session
// configuration.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// awaitSetup fails the session when the configuration ack never arrives.
func (e *Engine) awaitSetup(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.SetupTimeout):
		return ErrSetupTimeout
	}
}

// receiveLoop reads, decodes, and dispatches inbound events until the
// transport closes. Malformed events are logged and dropped, never fatal.
func (e *Engine) receiveLoop(ctx context.Context) error {
	for {
		evt, err := e.transport.ReadEvent(ctx)
		if err != nil {
			var malformed *realtime.MalformedEventError
			if errors.As(err, &malformed) {
				e.logger.Warn("dropping malformed server event", "error", malformed)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, realtime.ErrClosed) {
				e.logger.Info("transport closed")
				return fmt.Errorf("engine: transport closed: %w", err)
			}
			return fmt.Errorf("engine: read event: %w", err)
		}

		ev, err := DecodeEvent(evt)
		if err != nil {
			e.logger.Warn("dropping undecodable server event", "type", evt.Type, "error", err)
			continue
		}
		if err := e.dispatch(ctx, ev); err != nil {
			return err
		}
	}
}

// dispatch runs one event through the machine and executes the resulting
// commands.
func (e *Engine) dispatch(ctx context.Context, ev Event) error {
	for _, cmd := range e.machine.Handle(ev) {
		if err := e.execute(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case SendConfig:
		e.logger.Info("sending session configuration",
			"mode", e.cfg.Mode, "sample_rate", e.cfg.SampleRate)
		return e.transport.SendSessionUpdate(ctx, e.cfg.Session)

	case SignalReady:
		e.readyOnce.Do(func() {
			e.logger.Info("session configured", "session_id", e.sctx.SessionID())
			close(e.ready)
		})
		return nil

	case FlushAudio:
		return e.sender.flush(ctx)

	case CommitInput:
		return e.transport.CommitInput(ctx)

	case CreateResponse:
		return e.transport.CreateResponse(ctx)

	case CancelResponse:
		return e.transport.CancelResponse(ctx)

	case ClearInput:
		return e.transport.ClearInput(ctx)

	case StopPlayback:
		if e.playback != nil {
			e.playback.Stop()
		}
		return nil

	case ClearPlayback:
		e.sctx.ClearPlayback()
		return nil

	case PlayBuffered:
		pcm := e.sctx.DrainPlayback()
		if len(pcm) == 0 {
			e.logger.Debug("response completed with no audio")
			return nil
		}
		e.audioPlayed.Store(true)
		if e.playback == nil {
			return nil
		}
		if err := e.playback.Play(pcm, e.cfg.SampleRate); err != nil {
			e.logger.Warn("playback failed", "error", err)
		}
		return nil

	case OpenTurn:
		if e.recorder != nil {
			e.recorder.OnUserTranscript(c.Text)
		}
		return nil

	case AppendAssistantText:
		if e.recorder != nil {
			e.recorder.OnAssistantDelta(c.Text)
		}
		return nil

	case FinalizeTurn:
		if !e.audioPlayed.Load() && e.fallbackSpeak != nil && e.recorder != nil {
			if text := e.recorder.AssistantText(); text != "" {
				e.logger.Info("voicing silent response through fallback speaker",
					"text_len", len(text))
				e.fallbackSpeak(text)
			}
		}
		e.audioPlayed.Store(false)
		if e.recorder != nil {
			e.recorder.Finalize()
		}
		if start := e.sctx.TurnStart(); !start.IsZero() {
			e.metrics.RecordTurn(ctx, time.Since(start))
		}
		return nil

	case CallFunction:
		if e.functions == nil {
			e.logger.Warn("function call with no handler", "name", c.Name)
			return nil
		}
		// Executed off the receive loop so a slow executor never stalls
		// event handling.
		go func() {
			if err := e.functions.HandleFunctionCall(ctx, c.CallID, c.Name, c.Arguments); err != nil {
				e.logger.Error("function call bridge failed", "name", c.Name, "error", err)
			}
		}()
		return nil

	case NoteRateLimit:
		e.metrics.RateLimitRejections.Add(ctx, 1)
		if n := e.rateLimitHits.Add(1); n%rateLimitLogEvery == 1 {
			e.logger.Warn("server rate limit hit", "total", n)
		}
		return nil

	case NoteInterruption:
		e.metrics.Interruptions.Add(ctx, 1)
		e.logger.Info("assistant response interrupted")
		return nil

	default:
		return fmt.Errorf("engine: unhandled command %T", cmd)
	}
}
