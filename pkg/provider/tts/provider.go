// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider wraps a speech synthesis service (the OpenAI speech API, or any
// service producing raw PCM) behind a single batch call: one translated chunk
// of text in, one complete PCM utterance out. The TTS processor runs several
// Synthesize calls concurrently, so implementations must be safe for
// concurrent use.
package tts

import "context"

// VoiceProfile identifies a synthesis voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g., "alloy").
	ID string

	// Name is a human-readable label for logs and UI.
	Name string

	// Language is an optional language hint for providers that need one.
	Language string
}

// Request describes one synthesis.
type Request struct {
	// Text is the text to speak. Must be non-empty.
	Text string

	// Voice selects the synthesis voice. A zero value uses the provider's
	// default.
	Voice VoiceProfile

	// Model optionally overrides the provider's configured model.
	Model string

	// Speed scales speaking rate; 0 means the provider default (1.0).
	Speed float64
}

// Format describes the PCM a provider emits.
type Format struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count.
	Channels int
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req.Text as raw 16-bit signed little-endian PCM in
	// the provider's Format. A non-nil error means the service failed and the
	// job should be skipped; callers must never play a partial result.
	Synthesize(ctx context.Context, req Request) ([]byte, error)

	// Format reports the PCM format Synthesize produces, so the playback
	// sink can be configured to match.
	Format() Format
}
