package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":       {"openai", "whisper", "whisper-native"},
	"translate": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":       {"openai"},
	"audio":     {"malgo"},
}

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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
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

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation, warning only for unknown names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)

	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; sessions will record but nothing will be transcribed")
	}
	if cfg.Providers.Translate.Name == "" {
		slog.Warn("no translate provider configured; transcriptions will not be translated")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; translations will not be spoken")
	}

	// Languages
	if cfg.Languages.Spoken == "" {
		errs = append(errs, errors.New("languages.spoken is required"))
	}
	if cfg.Languages.Target == "" {
		errs = append(errs, errors.New("languages.target is required"))
	}
	if cfg.Languages.Spoken != "" && cfg.Languages.Spoken == cfg.Languages.Target {
		slog.Warn("languages.spoken equals languages.target; output will repeat the input",
			"language", cfg.Languages.Spoken,
		)
	}

	// Voice
	if cfg.Voice.Speed != 0 && (cfg.Voice.Speed < 0.25 || cfg.Voice.Speed > 4.0) {
		errs = append(errs, fmt.Errorf("voice.speed %.2f is out of range [0.25, 4.0]", cfg.Voice.Speed))
	}

	// Session timing
	errs = append(errs, validateDuration("session.tick_interval", cfg.Session.TickInterval)...)
	errs = append(errs, validateDuration("session.chunk_interval", cfg.Session.ChunkInterval)...)
	errs = append(errs, validateDuration("session.grace_period", cfg.Session.GracePeriod)...)
	errs = append(errs, validateDuration("session.min_session_duration", cfg.Session.MinSessionDuration)...)
	errs = append(errs, validateDuration("session.flush_delay", cfg.Session.FlushDelay)...)
	if cfg.Session.TickInterval > 0 && cfg.Session.ChunkInterval > 0 && cfg.Session.TickInterval > cfg.Session.ChunkInterval {
		errs = append(errs, fmt.Errorf("session.tick_interval (%s) must not exceed session.chunk_interval (%s)",
			cfg.Session.TickInterval, cfg.Session.ChunkInterval))
	}

	// VAD
	if cfg.VAD.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("vad.sample_rate %d must not be negative", cfg.VAD.SampleRate))
	}
	if cfg.VAD.SilenceRMS < 0 || cfg.VAD.SilenceRMS >= 1 {
		errs = append(errs, fmt.Errorf("vad.silence_rms %.4f is out of range [0, 1)", cfg.VAD.SilenceRMS))
	}
	if cfg.VAD.VoiceRatio != 0 && cfg.VAD.VoiceRatio < 1 {
		errs = append(errs, fmt.Errorf("vad.voice_ratio %.2f must be at least 1", cfg.VAD.VoiceRatio))
	}
	if cfg.VAD.WindowSize < 0 {
		errs = append(errs, fmt.Errorf("vad.window_size %d must not be negative", cfg.VAD.WindowSize))
	}
	if cfg.VAD.SustainCount < 0 {
		errs = append(errs, fmt.Errorf("vad.sustain_count %d must not be negative", cfg.VAD.SustainCount))
	}
	if cfg.VAD.WindowSize > 0 && cfg.VAD.SustainCount > cfg.VAD.WindowSize {
		errs = append(errs, fmt.Errorf("vad.sustain_count %d exceeds vad.window_size %d",
			cfg.VAD.SustainCount, cfg.VAD.WindowSize))
	}

	// Queue
	if cfg.Queue.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("queue.max_concurrency %d must not be negative", cfg.Queue.MaxConcurrency))
	}

	return errors.Join(errs...)
}

// validateDuration rejects negative durations. Zero means "use the default"
// and is always fine.
func validateDuration(field string, d time.Duration) []error {
	if d < 0 {
		return []error{fmt.Errorf("%s (%s) must not be negative", field, d)}
	}
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
