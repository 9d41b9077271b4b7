// Package config provides the configuration schema and loader for the
// Voxtale voice session service.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DetectionMode selects how the end of a user turn is detected.
type DetectionMode string

const (
	// DetectServer lets the model endpoint's VAD segment turns.
	DetectServer DetectionMode = "server_vad"

	// DetectClient runs the local energy gate and commits on silence.
	DetectClient DetectionMode = "client_vad"

	// DetectNone streams continuously; turns end only on the manual trigger.
	DetectNone DetectionMode = "none"
)

// IsValid reports whether m is a recognised detection mode.
func (m DetectionMode) IsValid() bool {
	switch m {
	case DetectServer, DetectClient, DetectNone:
		return true
	}
	return false
}

// MemoryBackend selects the long-term memory store implementation.
type MemoryBackend string

const (
	// BackendMemobase uses the HTTP memory service.
	BackendMemobase MemoryBackend = "memobase"

	// BackendPostgres writes turns directly to PostgreSQL.
	BackendPostgres MemoryBackend = "postgres"

	// BackendNone disables long-term memory; turns still reach the durable
	// log.
	BackendNone MemoryBackend = "none"
)

// IsValid reports whether b is a recognised memory backend.
func (b MemoryBackend) IsValid() bool {
	switch b {
	case BackendMemobase, BackendPostgres, BackendNone:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a YAML
// file with [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Audio    AudioConfig    `yaml:"audio"`
	Memory   MemoryConfig   `yaml:"memory"`
	Sync     SyncConfig     `yaml:"sync"`
	TurnLog  TurnLogConfig  `yaml:"turn_log"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving the Prometheus /metrics
	// endpoint (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// TurnDetectionConfig tunes how user turns are segmented.
type TurnDetectionConfig struct {
	// Mode selects the detection strategy.
	Mode DetectionMode `yaml:"mode"`

	// Threshold is the server VAD activation threshold in [0, 1].
	Threshold float64 `yaml:"threshold"`

	// PrefixPaddingMs is audio retained before the detected speech onset.
	PrefixPaddingMs int `yaml:"prefix_padding_ms"`

	// SilenceDurationMs is the trailing silence that ends a turn.
	SilenceDurationMs int `yaml:"silence_duration_ms"`
}

// RealtimeConfig holds the model endpoint connection and session settings.
type RealtimeConfig struct {
	// URL is the WebSocket endpoint of the realtime speech model.
	URL string `yaml:"url"`

	// APIKey authenticates against the endpoint, in "key-id.secret" form.
	APIKey string `yaml:"api_key"`

	// Voice selects the synthesis voice.
	Voice string `yaml:"voice"`

	// Instructions is the system prompt for the session.
	Instructions string `yaml:"instructions"`

	// Temperature is the sampling temperature in [0, 2].
	Temperature float64 `yaml:"temperature"`

	// TurnDetection tunes turn segmentation.
	TurnDetection TurnDetectionConfig `yaml:"turn_detection"`

	// SetupTimeout bounds the configuration handshake.
	SetupTimeout time.Duration `yaml:"setup_timeout"`

	// ManualTriggerDebounce is the re-arm window of the manual
	// turn-completion trigger.
	ManualTriggerDebounce time.Duration `yaml:"manual_trigger_debounce"`
}

// AudioConfig holds the capture and outbound pipeline parameters.
type AudioConfig struct {
	// SampleRate of captured audio in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameSamples is the number of samples per capture frame.
	FrameSamples int `yaml:"frame_samples"`

	// BatchFrames is the number of frames batched per wire message.
	BatchFrames int `yaml:"batch_frames"`

	// MaxSendsPerSecond caps outbound wire messages per connection.
	MaxSendsPerSecond int `yaml:"max_sends_per_second"`
}

// MemoryConfig selects and configures the long-term memory store.
type MemoryConfig struct {
	// Backend selects the store implementation.
	Backend MemoryBackend `yaml:"backend"`

	// URL is the memory service base URL (memobase backend).
	URL string `yaml:"url"`

	// APIKey is the memory service bearer token (memobase backend).
	APIKey string `yaml:"api_key"`

	// UserID identifies the conversation owner in the store.
	UserID string `yaml:"user_id"`

	// PostgresDSN is the database connection string (postgres backend).
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SyncConfig tunes the sync dispatcher and the reconciliation sweep.
type SyncConfig struct {
	// QueueSize bounds the dispatcher's in-memory queue.
	QueueSize int `yaml:"queue_size"`

	// MaxRetries is the dispatcher's per-record attempt count.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the fixed pause between failed attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// SweepInterval is the reconciliation scan period.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// SweepMaxRetries is the lifetime retry ceiling per record.
	SweepMaxRetries int `yaml:"sweep_max_retries"`
}

// TurnLogConfig locates the durable turn log.
type TurnLogConfig struct {
	// Path of the JSON-lines log file.
	Path string `yaml:"path"`
}
