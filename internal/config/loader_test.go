package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  stt:
    name: openai
    api_key: sk-test
    model: whisper-1
  translate:
    name: anthropic
    api_key: sk-ant-test
    model: claude-sonnet-4-5
  tts:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini-tts
  audio:
    name: malgo
languages:
  spoken: en
  target: de
voice:
  id: alloy
  speed: 1.0
session:
  tick_interval: 100ms
  chunk_interval: 1s
  grace_period: 1500ms
  min_session_duration: 800ms
  flush_delay: 100ms
vad:
  sample_rate: 48000
  silence_rms: 0.005
  voice_ratio: 1.5
  window_size: 5
  sustain_count: 3
queue:
  max_concurrency: 3
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.STT.Name != "openai" || cfg.Providers.STT.Model != "whisper-1" {
		t.Errorf("stt provider = %+v", cfg.Providers.STT)
	}
	if cfg.Languages.Spoken != "en" || cfg.Languages.Target != "de" {
		t.Errorf("languages = %+v", cfg.Languages)
	}
	if cfg.Session.ChunkInterval != time.Second {
		t.Errorf("chunk_interval = %s, want 1s", cfg.Session.ChunkInterval)
	}
	if cfg.Session.GracePeriod != 1500*time.Millisecond {
		t.Errorf("grace_period = %s, want 1.5s", cfg.Session.GracePeriod)
	}
	if cfg.VAD.SilenceRMS != 0.005 {
		t.Errorf("silence_rms = %v", cfg.VAD.SilenceRMS)
	}
	if cfg.Queue.MaxConcurrency != 3 {
		t.Errorf("max_concurrency = %d", cfg.Queue.MaxConcurrency)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
server:
  listen_addr: ":8080"
  lsiten_addr_typo: ":9090"
languages:
  spoken: en
  target: de
`))
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxlate.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Voice.ID != "alloy" {
		t.Errorf("voice id = %q", cfg.Voice.ID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFromReader(strings.NewReader(validYAML))
		if err != nil {
			t.Fatalf("base config invalid: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config passes",
			mutate: func(*Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "missing spoken language",
			mutate:  func(c *Config) { c.Languages.Spoken = "" },
			wantErr: "languages.spoken",
		},
		{
			name:    "missing target language",
			mutate:  func(c *Config) { c.Languages.Target = "" },
			wantErr: "languages.target",
		},
		{
			name:    "voice speed out of range",
			mutate:  func(c *Config) { c.Voice.Speed = 5.0 },
			wantErr: "voice.speed",
		},
		{
			name:    "negative grace period",
			mutate:  func(c *Config) { c.Session.GracePeriod = -time.Second },
			wantErr: "grace_period",
		},
		{
			name: "tick slower than chunk cadence",
			mutate: func(c *Config) {
				c.Session.TickInterval = 2 * time.Second
				c.Session.ChunkInterval = time.Second
			},
			wantErr: "tick_interval",
		},
		{
			name:    "silence rms out of range",
			mutate:  func(c *Config) { c.VAD.SilenceRMS = 1.5 },
			wantErr: "silence_rms",
		},
		{
			name:    "voice ratio below one",
			mutate:  func(c *Config) { c.VAD.VoiceRatio = 0.5 },
			wantErr: "voice_ratio",
		},
		{
			name: "sustain count exceeds window",
			mutate: func(c *Config) {
				c.VAD.WindowSize = 3
				c.VAD.SustainCount = 5
			},
			wantErr: "sustain_count",
		},
		{
			name:    "negative queue concurrency",
			mutate:  func(c *Config) { c.Queue.MaxConcurrency = -1 },
			wantErr: "max_concurrency",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate returned %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate returned nil, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateJoinsAllFailures(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "verbose"
	cfg.Voice.Speed = 9

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate returned nil")
	}
	for _, want := range []string{"log_level", "languages.spoken", "languages.target", "voice.speed"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %q", err, want)
		}
	}
}
