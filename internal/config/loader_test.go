package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  log_level: info
  metrics_addr: ":9090"
realtime:
  url: wss://example.com/realtime
  api_key: key-id.secret
  voice: tongtong
  instructions: You are a helpful travel agent.
  temperature: 0.8
  turn_detection:
    mode: server_vad
    threshold: 0.5
    prefix_padding_ms: 300
    silence_duration_ms: 700
  setup_timeout: 10s
  manual_trigger_debounce: 1s
audio:
  sample_rate: 16000
  frame_samples: 1024
  batch_frames: 16
  max_sends_per_second: 20
memory:
  backend: memobase
  url: http://localhost:8019
  api_key: secret
  user_id: traveller-1
sync:
  queue_size: 1000
  max_retries: 3
  retry_delay: 2s
  sweep_interval: 5m
  sweep_max_retries: 5
turn_log:
  path: /var/lib/voxtale/turns.jsonl
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Realtime.URL != "wss://example.com/realtime" {
		t.Errorf("realtime url = %q", cfg.Realtime.URL)
	}
	if cfg.Realtime.TurnDetection.Mode != DetectServer {
		t.Errorf("detection mode = %q", cfg.Realtime.TurnDetection.Mode)
	}
	if cfg.Sync.SweepInterval != 5*time.Minute {
		t.Errorf("sweep interval = %v", cfg.Sync.SweepInterval)
	}
	if cfg.Memory.Backend != BackendMemobase {
		t.Errorf("memory backend = %q", cfg.Memory.Backend)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	minimal := `
realtime:
  url: wss://example.com/realtime
  api_key: key-id.secret
`
	cfg, err := LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if cfg.Audio.BatchFrames != DefaultBatchFrames {
		t.Errorf("batch frames = %d, want %d", cfg.Audio.BatchFrames, DefaultBatchFrames)
	}
	if cfg.Realtime.TurnDetection.Mode != DetectServer {
		t.Errorf("detection mode = %q, want server_vad", cfg.Realtime.TurnDetection.Mode)
	}
	if cfg.Realtime.TurnDetection.Threshold != DefaultVADThreshold {
		t.Errorf("threshold = %v", cfg.Realtime.TurnDetection.Threshold)
	}
	if cfg.Realtime.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v", cfg.Realtime.Temperature)
	}
	if cfg.Memory.Backend != BackendNone {
		t.Errorf("memory backend = %q, want none", cfg.Memory.Backend)
	}
	if cfg.TurnLog.Path != DefaultTurnLogPath {
		t.Errorf("turn log path = %q", cfg.TurnLog.Path)
	}
}

func TestLoadFromReader_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing url",
			"realtime:\n  api_key: a.b\n",
			"realtime.url is required",
		},
		{
			"missing api key",
			"realtime:\n  url: wss://x\n",
			"realtime.api_key is required",
		},
		{
			"malformed api key",
			"realtime:\n  url: wss://x\n  api_key: nodot\n",
			"key-id.secret",
		},
		{
			"bad detection mode",
			"realtime:\n  url: wss://x\n  api_key: a.b\n  turn_detection:\n    mode: psychic\n",
			"turn_detection.mode",
		},
		{
			"bad log level",
			"server:\n  log_level: loud\nrealtime:\n  url: wss://x\n  api_key: a.b\n",
			"log_level",
		},
		{
			"memobase without url",
			"realtime:\n  url: wss://x\n  api_key: a.b\nmemory:\n  backend: memobase\n  user_id: u\n",
			"memory.url is required",
		},
		{
			"postgres without dsn",
			"realtime:\n  url: wss://x\n  api_key: a.b\nmemory:\n  backend: postgres\n  user_id: u\n",
			"memory.postgres_dsn is required",
		},
		{
			"unknown field",
			"realtime:\n  url: wss://x\n  api_key: a.b\n  flux_capacitor: true\n",
			"flux_capacitor",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/voxtale.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
