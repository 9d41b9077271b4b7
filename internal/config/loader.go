package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when the corresponding field is zero. The
// audio values describe 16 kHz mono PCM16 capture in 64 ms frames, batched
// to roughly one second of audio per wire message.
const (
	DefaultSampleRate        = 16000
	DefaultFrameSamples      = 1024
	DefaultBatchFrames       = 16
	DefaultMaxSendsPerSecond = 20

	DefaultVADThreshold      = 0.5
	DefaultPrefixPaddingMs   = 300
	DefaultSilenceDurationMs = 700

	DefaultTemperature = 0.8
	DefaultTurnLogPath = "voxtale_turns.jsonl"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults, and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills defaults and checks that cfg contains a coherent set of
// values. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Realtime endpoint
	if cfg.Realtime.URL == "" {
		errs = append(errs, errors.New("realtime.url is required"))
	}
	if cfg.Realtime.APIKey == "" {
		errs = append(errs, errors.New("realtime.api_key is required"))
	} else if !strings.Contains(cfg.Realtime.APIKey, ".") {
		errs = append(errs, errors.New(`realtime.api_key must be in "key-id.secret" form`))
	}
	if cfg.Realtime.Temperature == 0 {
		cfg.Realtime.Temperature = DefaultTemperature
	}
	if cfg.Realtime.Temperature < 0 || cfg.Realtime.Temperature > 2 {
		errs = append(errs, fmt.Errorf("realtime.temperature %.2f is out of range [0, 2]", cfg.Realtime.Temperature))
	}

	// Turn detection
	td := &cfg.Realtime.TurnDetection
	if td.Mode == "" {
		td.Mode = DetectServer
	}
	if !td.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("realtime.turn_detection.mode %q is invalid; valid values: server_vad, client_vad, none", td.Mode))
	}
	if td.Threshold == 0 {
		td.Threshold = DefaultVADThreshold
	}
	if td.Threshold < 0 || td.Threshold > 1 {
		errs = append(errs, fmt.Errorf("realtime.turn_detection.threshold %.2f is out of range [0, 1]", td.Threshold))
	}
	if td.PrefixPaddingMs == 0 {
		td.PrefixPaddingMs = DefaultPrefixPaddingMs
	}
	if td.SilenceDurationMs == 0 {
		td.SilenceDurationMs = DefaultSilenceDurationMs
	}

	// Audio pipeline
	a := &cfg.Audio
	if a.SampleRate == 0 {
		a.SampleRate = DefaultSampleRate
	}
	if a.FrameSamples == 0 {
		a.FrameSamples = DefaultFrameSamples
	}
	if a.BatchFrames == 0 {
		a.BatchFrames = DefaultBatchFrames
	}
	if a.MaxSendsPerSecond == 0 {
		a.MaxSendsPerSecond = DefaultMaxSendsPerSecond
	}
	if a.SampleRate < 0 || a.FrameSamples < 0 || a.BatchFrames < 0 || a.MaxSendsPerSecond < 0 {
		errs = append(errs, errors.New("audio settings must be positive"))
	}

	// Memory store
	m := &cfg.Memory
	if m.Backend == "" {
		m.Backend = BackendNone
	}
	if !m.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("memory.backend %q is invalid; valid values: memobase, postgres, none", m.Backend))
	}
	switch m.Backend {
	case BackendMemobase:
		if m.URL == "" {
			errs = append(errs, errors.New("memory.url is required for the memobase backend"))
		}
		if m.UserID == "" {
			errs = append(errs, errors.New("memory.user_id is required for the memobase backend"))
		}
	case BackendPostgres:
		if m.PostgresDSN == "" {
			errs = append(errs, errors.New("memory.postgres_dsn is required for the postgres backend"))
		}
		if m.UserID == "" {
			errs = append(errs, errors.New("memory.user_id is required for the postgres backend"))
		}
	case BackendNone:
		slog.Warn("memory.backend is none; turns will only reach the local turn log")
	}

	// Sync settings are all optional; negatives are the only invalid values.
	s := cfg.Sync
	if s.QueueSize < 0 || s.MaxRetries < 0 || s.RetryDelay < 0 ||
		s.SweepInterval < 0 || s.SweepMaxRetries < 0 {
		errs = append(errs, errors.New("sync settings must not be negative"))
	}

	if cfg.TurnLog.Path == "" {
		cfg.TurnLog.Path = DefaultTurnLogPath
	}

	return errors.Join(errs...)
}
