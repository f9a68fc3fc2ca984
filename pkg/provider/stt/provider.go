// Package stt defines the Provider interface for speech-to-text backends.
//
// A provider wraps a transcription service (the OpenAI audio API, a local
// whisper.cpp model, or a whisper-server instance) behind a single batch
// call: one finalized recording chunk in, one transcription result out.
// Chunks are short (about a second of audio), so there is no streaming
// session to manage — the pipeline simply issues one Transcribe call per
// chunk, potentially many concurrently.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Config carries the audio format and recognition hints for a Transcribe
// call. All fields describe the PCM payload; see each provider for supported
// ranges.
type Config struct {
	// SampleRate is the audio sample rate in Hz (e.g., 16000, 48000).
	SampleRate int

	// Channels is the number of audio channels. Providers may downmix
	// multi-channel input internally.
	Channels int

	// ExpectedLanguage is the ISO 639-1 code the speaker is expected to use
	// (e.g., "en"). Providers echo it into the Result so the language gate
	// can compare without replumbing configuration. Empty means unknown.
	ExpectedLanguage string
}

// Result is the outcome of transcribing one chunk.
type Result struct {
	// Text is the recognised speech. Empty when Skipped is true or when the
	// audio contained no recognisable speech.
	Text string

	// Language is the ISO 639-1 code of the detected language, when the
	// provider reports one. Empty means the provider could not tell.
	Language string

	// ExpectedLanguage mirrors Config.ExpectedLanguage.
	ExpectedLanguage string

	// Skipped indicates the provider filtered the chunk upstream (e.g., its
	// own silence detector rejected it). Skipped results carry no text and
	// are not an error.
	Skipped bool

	// Reason is a short human-readable note set when Skipped is true.
	Reason string
}

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts one chunk of raw 16-bit little-endian PCM audio
	// to text. The pcm payload must match cfg.SampleRate and cfg.Channels.
	//
	// A Skipped result (nil error) means the provider deliberately ignored
	// the chunk; a non-nil error means the service could not be reached or
	// rejected the request. Callers treat errors as transient and abandon
	// only the affected chunk.
	Transcribe(ctx context.Context, pcm []byte, cfg Config) (Result, error)
}
