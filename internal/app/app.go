// Package app wires all Voxtale subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// memory store, durable turn log, recorder, sync pipeline, and session
// engine; Run executes everything under one errgroup; Shutdown tears the
// pieces down in order.
//
// For testing, inject mock implementations via functional options
// (WithTransport, WithStore, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxtale/voxtale/internal/bridge"
	"github.com/voxtale/voxtale/internal/config"
	"github.com/voxtale/voxtale/internal/dispatch"
	"github.com/voxtale/voxtale/internal/engine"
	"github.com/voxtale/voxtale/internal/health"
	"github.com/voxtale/voxtale/internal/observe"
	"github.com/voxtale/voxtale/internal/recorder"
	"github.com/voxtale/voxtale/internal/resilience"
	"github.com/voxtale/voxtale/internal/turnlog"
	"github.com/voxtale/voxtale/pkg/audio"
	"github.com/voxtale/voxtale/pkg/memstore"
	pgstore "github.com/voxtale/voxtale/pkg/memstore/postgres"
	"github.com/voxtale/voxtale/pkg/realtime"
	"github.com/voxtale/voxtale/pkg/vadgate"
)

// App owns all subsystem lifetimes of one voice session process.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observe.Metrics

	transport realtime.Transport
	source    audio.FrameSource
	playback  audio.Playback
	executor  bridge.Executor
	store     memstore.Store

	log        *turnlog.Log
	rec        *recorder.TurnRecorder
	dispatcher *dispatch.Dispatcher
	sweep      *dispatch.Sweep
	engine     *engine.Engine

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for [New]. Use these to inject test doubles
// or real devices.
type Option func(*App)

// WithTransport injects a realtime transport instead of dialing from config.
func WithTransport(t realtime.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithStore injects a memory store instead of creating one from config.
func WithStore(s memstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithFrameSource attaches the audio capture device.
func WithFrameSource(src audio.FrameSource) Option {
	return func(a *App) { a.source = src }
}

// WithPlayback attaches the audio output device.
func WithPlayback(p audio.Playback) Option {
	return func(a *App) { a.playback = p }
}

// WithExecutor attaches the function-call executor.
func WithExecutor(e bridge.Executor) Option {
	return func(a *App) { a.executor = e }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New wires the application from cfg. An unreachable memory store is a
// warning, not a failure: the conversation runs and the durable log plus
// sweep guarantee eventual delivery. An unreachable model endpoint is fatal.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	log, err := turnlog.Open(cfg.TurnLog.Path)
	if err != nil {
		return nil, fmt.Errorf("app: open turn log: %w", err)
	}
	a.log = log

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if a.store != nil {
		a.bootstrapStore(ctx)
		a.dispatcher = dispatch.New(a.store, a.log, cfg.Memory.UserID, dispatch.Options{
			QueueSize:  cfg.Sync.QueueSize,
			MaxRetries: cfg.Sync.MaxRetries,
			RetryDelay: cfg.Sync.RetryDelay,
			Metrics:    a.metrics,
			Logger:     a.logger,
		})
		a.sweep = dispatch.NewSweep(a.store, a.log, cfg.Memory.UserID, dispatch.SweepOptions{
			Interval:   cfg.Sync.SweepInterval,
			MaxRetries: cfg.Sync.SweepMaxRetries,
			Metrics:    a.metrics,
			Logger:     a.logger,
		})
	}

	var sink recorder.Sink
	if a.dispatcher != nil {
		sink = a.dispatcher
	}
	a.rec = recorder.New(a.log, sink, a.logger)

	if a.transport == nil {
		token, err := realtime.MintToken(cfg.Realtime.APIKey, realtime.DefaultTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("app: mint endpoint token: %w", err)
		}
		client, err := realtime.Dial(ctx, cfg.Realtime.URL, token)
		if err != nil {
			return nil, fmt.Errorf("app: connect model endpoint: %w", err)
		}
		a.transport = client
		a.closers = append(a.closers, client.Close)
	}

	engineOpts := []engine.Option{
		engine.WithRecorder(a.rec),
		engine.WithMetrics(a.metrics),
		engine.WithLogger(a.logger),
	}
	if a.source != nil {
		engineOpts = append(engineOpts, engine.WithFrameSource(a.source))
	}
	if a.playback != nil {
		// Repeated device failures trip the breaker instead of stalling every
		// response on a broken sink.
		group := resilience.NewPlaybackGroup(a.playback, "playback", resilience.FallbackConfig{})
		engineOpts = append(engineOpts, engine.WithPlayback(group))
	}
	if a.executor != nil {
		b := bridge.New(a.transport, a.executor, bridge.WithLogger(a.logger))
		engineOpts = append(engineOpts, engine.WithFunctionHandler(b))
	}
	if cfg.Realtime.TurnDetection.Mode == config.DetectClient {
		gate, err := buildGate(cfg)
		if err != nil {
			return nil, fmt.Errorf("app: build voice gate: %w", err)
		}
		engineOpts = append(engineOpts, engine.WithGate(gate))
		a.closers = append(a.closers, gate.Close)
	}

	a.engine = engine.New(a.transport, engine.Config{
		Session:               buildSessionParams(cfg),
		Mode:                  string(cfg.Realtime.TurnDetection.Mode),
		SampleRate:            cfg.Audio.SampleRate,
		BatchFrames:           cfg.Audio.BatchFrames,
		MaxSendsPerSecond:     cfg.Audio.MaxSendsPerSecond,
		SetupTimeout:          cfg.Realtime.SetupTimeout,
		ManualTriggerDebounce: cfg.Realtime.ManualTriggerDebounce,
	}, engineOpts...)

	return a, nil
}

// Engine exposes the session engine for external triggers (interrupt,
// manual turn completion).
func (a *App) Engine() *engine.Engine { return a.engine }

// Run executes the session engine, the sync pipeline, and the metrics
// endpoint until one of them fails or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.engine.Run(ctx) })
	if a.dispatcher != nil {
		g.Go(func() error {
			err := a.dispatcher.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if a.sweep != nil {
		g.Go(func() error {
			err := a.sweep.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		g.Go(func() error { return a.serveMetrics(ctx, addr) })
	}

	return g.Wait()
}

// Shutdown runs a final reconciliation pass and releases all resources.
// Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if a.sweep != nil {
			a.sweep.Once(ctx)
		}
		if a.dispatcher != nil {
			stats := a.dispatcher.Stats()
			a.logger.Info("sync pipeline final stats",
				"enqueued", stats.Enqueued,
				"synced", stats.Synced,
				"failed", stats.Failed,
				"dropped", stats.Dropped)
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// initStore builds the memory store selected by config, unless one was
// injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	switch a.cfg.Memory.Backend {
	case config.BackendMemobase:
		store, err := memstore.NewHTTPStore(a.cfg.Memory.URL, a.cfg.Memory.APIKey)
		if err != nil {
			return fmt.Errorf("app: create memory store: %w", err)
		}
		a.store = store
	case config.BackendPostgres:
		store, err := pgstore.NewStore(ctx, a.cfg.Memory.PostgresDSN)
		if err != nil {
			// Degrade: the turn log still captures everything, and a later
			// restart can sweep it into the store.
			a.logger.Warn("postgres memory store unavailable, continuing without sync",
				"error", err)
			return nil
		}
		a.store = store
		a.closers = append(a.closers, func() error { store.Close(); return nil })
	case config.BackendNone:
		a.logger.Info("long-term memory disabled")
	}
	return nil
}

// bootstrapStore pings the store and ensures the configured user exists.
// Failures degrade to warnings: the dispatcher retries per record and the
// sweep recovers the rest.
func (a *App) bootstrapStore(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.store.Ping(pingCtx); err != nil {
		a.logger.Warn("memory store unreachable, sync will retry", "error", err)
		return
	}
	if err := a.store.GetOrCreateUser(pingCtx, a.cfg.Memory.UserID); err != nil {
		a.logger.Warn("memory store user bootstrap failed", "error", err)
		return
	}
	a.logger.Info("memory store ready", "user_id", a.cfg.Memory.UserID)
}

// serveMetrics exposes the Prometheus and health endpoints until ctx is
// cancelled.
func (a *App) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	var checkers []health.Checker
	if a.store != nil {
		checkers = append(checkers, health.StoreChecker(a.store))
	}
	checkers = append(checkers, health.Checker{
		Name: "session",
		Check: func(context.Context) error {
			if a.engine.Context().State() == engine.StateClosed {
				return errors.New("session closed")
			}
			return nil
		},
	})
	health.New(checkers...).Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: metrics server: %w", err)
	}
	return nil
}

// buildGate creates the client-VAD energy gate sized to the configured
// frame geometry.
func buildGate(cfg *config.Config) (vadgate.Gate, error) {
	frameMs := cfg.Audio.FrameSamples * 1000 / cfg.Audio.SampleRate
	silenceFrames := 1
	if frameMs > 0 {
		if n := cfg.Realtime.TurnDetection.SilenceDurationMs / frameMs; n > 1 {
			silenceFrames = n
		}
	}
	eng := vadgate.NewEnergyEngine()
	return eng.NewGate(vadgate.Config{
		SampleRate:    cfg.Audio.SampleRate,
		FrameSamples:  cfg.Audio.FrameSamples,
		SilenceFrames: silenceFrames,
	})
}

// buildSessionParams maps config onto the session.update payload. Input
// travels as WAV envelopes, output arrives as raw PCM.
func buildSessionParams(cfg *config.Config) realtime.SessionParams {
	params := realtime.SessionParams{
		InputAudioFormat:  "wav",
		OutputAudioFormat: "pcm",
		Transcription:     &realtime.Transcription{Enabled: true},
		Temperature:       cfg.Realtime.Temperature,
		Modalities:        []string{"text", "audio"},
		Voice:             cfg.Realtime.Voice,
		Instructions:      cfg.Realtime.Instructions,
		Beta: &realtime.BetaFields{
			ChatMode:  "audio",
			TTSSource: "e2e",
		},
	}
	if cfg.Realtime.TurnDetection.Mode == config.DetectServer {
		params.TurnDetection = &realtime.TurnDetection{
			Type:              "server_vad",
			Threshold:         cfg.Realtime.TurnDetection.Threshold,
			PrefixPaddingMs:   cfg.Realtime.TurnDetection.PrefixPaddingMs,
			SilenceDurationMs: cfg.Realtime.TurnDetection.SilenceDurationMs,
		}
	}
	return params
}
