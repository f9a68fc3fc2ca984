// Package config provides the configuration schema, loader, and provider
// registry for the voxlate speech translation service.
package config

import "time"

// LogLevel controls log verbosity for the voxlate server.
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

// Config is the root configuration structure for voxlate.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Languages LanguagesConfig `yaml:"languages"`
	Voice     VoiceConfig     `yaml:"voice"`
	Session   SessionConfig   `yaml:"session"`
	VAD       VADConfig       `yaml:"vad"`
	Queue     QueueConfig     `yaml:"queue"`
}

// ServerConfig holds network and logging settings for the control server.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP control server listens on
	// (e.g., ":8080"). Serves the WebSocket control channel, health probes,
	// and the /metrics endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT       ProviderEntry `yaml:"stt"`
	Translate ProviderEntry `yaml:"translate"`
	TTS       ProviderEntry `yaml:"tts"`
	Audio     ProviderEntry `yaml:"audio"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "whisper", "anthropic").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "whisper-1", "gpt-4o-mini", "gpt-4o-mini-tts").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// LanguagesConfig declares the translation direction.
type LanguagesConfig struct {
	// Spoken is the language the user talks in (e.g., "en"). Transcriptions
	// detected as another language are treated as background audio.
	Spoken string `yaml:"spoken"`

	// Target is the language translations are rendered into (e.g., "de").
	Target string `yaml:"target"`
}

// VoiceConfig selects the synthesis voice.
type VoiceConfig struct {
	// ID is the provider-specific voice identifier (e.g., "alloy").
	ID string `yaml:"id"`

	// Name is an optional display name for the voice.
	Name string `yaml:"name"`

	// Speed adjusts speaking rate in the range [0.25, 4.0]. 0 means the
	// provider default.
	Speed float64 `yaml:"speed"`
}

// SessionConfig holds the recording session timing knobs. Zero values fall
// back to the session package defaults.
type SessionConfig struct {
	// TickInterval is how often voice activity is evaluated.
	TickInterval time.Duration `yaml:"tick_interval"`

	// ChunkInterval is the cadence at which the recording is cut into chunks.
	ChunkInterval time.Duration `yaml:"chunk_interval"`

	// GracePeriod keeps dispatching chunks for this long after the last
	// detected speech, so trailing words are not cut off.
	GracePeriod time.Duration `yaml:"grace_period"`

	// MinSessionDuration discards sessions shorter than this as accidental
	// key presses.
	MinSessionDuration time.Duration `yaml:"min_session_duration"`

	// FlushDelay is the pause before finalizing a chunk, letting in-flight
	// device buffers drain.
	FlushDelay time.Duration `yaml:"flush_delay"`
}

// VADConfig holds the voice activity detection knobs. Zero values fall back
// to the vad package defaults.
type VADConfig struct {
	// SampleRate of the analysis tap in Hz.
	SampleRate int `yaml:"sample_rate"`

	// SilenceRMS is the RMS level below which a tick is silent.
	SilenceRMS float64 `yaml:"silence_rms"`

	// VoiceRatio is the minimum speech-band to non-speech-band energy ratio
	// for a tick to count as voice.
	VoiceRatio float64 `yaml:"voice_ratio"`

	// WindowSize is the number of recent ticks considered for hysteresis.
	WindowSize int `yaml:"window_size"`

	// SustainCount is how many of the window's ticks must be voice before
	// speech is considered sustained.
	SustainCount int `yaml:"sustain_count"`
}

// QueueConfig holds the synthesis queue knobs.
type QueueConfig struct {
	// MaxConcurrency bounds simultaneous synthesis calls. 0 means the
	// queue default.
	MaxConcurrency int `yaml:"max_concurrency"`
}
