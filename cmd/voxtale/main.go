// Command voxtale runs a realtime voice conversation session against the
// GLM realtime endpoint, piping PCM16 audio in on stdin and assistant audio
// out on stdout.
//
//	arecord -f S16_LE -r 16000 -c 1 | voxtale -config voxtale.yaml | aplay -f S16_LE -r 16000 -c 1
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxtale/voxtale/internal/app"
	"github.com/voxtale/voxtale/internal/config"
	"github.com/voxtale/voxtale/internal/observe"
	"github.com/voxtale/voxtale/pkg/audio"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "voxtale.yaml", "path to the YAML configuration file")
	noAudio := flag.Bool("no-audio", false, "run without stdin capture and stdout playback")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxtale: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxtale: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxtale starting",
		"config", *configPath,
		"endpoint", cfg.Realtime.URL,
		"detection_mode", cfg.Realtime.TurnDetection.Mode,
		"memory_backend", cfg.Memory.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics provider shutdown error", "err", err)
		}
	}()

	// ── Audio devices ─────────────────────────────────────────────────────────
	var opts []app.Option
	if !*noAudio {
		source, err := audio.NewReaderSource(os.Stdin, cfg.Audio.SampleRate, cfg.Audio.FrameSamples)
		if err != nil {
			slog.Error("failed to create capture source", "err", err)
			return 1
		}
		playback := audio.NewWriterPlayback(os.Stdout)
		defer playback.Close()
		opts = append(opts, app.WithFrameSource(source), app.WithPlayback(playback))
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("session ready — press Ctrl+C to shut down")

	runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║          Voxtale — startup summary    ║")
	fmt.Fprintln(os.Stderr, "╠═══════════════════════════════════════╣")
	printRow("Endpoint", trimValue(cfg.Realtime.URL))
	printRow("Voice", cfg.Realtime.Voice)
	printRow("Detection", string(cfg.Realtime.TurnDetection.Mode))
	printRow("Audio", fmt.Sprintf("%d Hz / %d smp", cfg.Audio.SampleRate, cfg.Audio.FrameSamples))
	printRow("Memory", string(cfg.Memory.Backend))
	printRow("Turn log", trimValue(cfg.TurnLog.Path))
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics", cfg.Server.MetricsAddr)
	}
	fmt.Fprintln(os.Stderr, "╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	if value == "" {
		value = "(not configured)"
	}
	fmt.Fprintf(os.Stderr, "║  %-10s : %-22s ║\n", key, value)
}

func trimValue(v string) string {
	if len(v) > 22 {
		return v[:19] + "…"
	}
	return v
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
