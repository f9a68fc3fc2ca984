// Package translate defines the Provider interface for text translation
// backends. The pipeline translates one transcribed chunk at a time; chunks
// are independent, so implementations need no session state and must be safe
// for concurrent use.
package translate

import "context"

// Request describes one translation.
type Request struct {
	// Text is the source text to translate. Must be non-empty.
	Text string

	// SourceLanguage is the language of Text (ISO 639-1 code or full name,
	// e.g., "en" or "english"). Empty means the backend should infer it.
	SourceLanguage string

	// TargetLanguage is the language to translate into. Must be non-empty.
	TargetLanguage string
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate returns req.Text rendered in req.TargetLanguage.
	//
	// A non-nil error means the translation service failed and the chunk
	// should be abandoned; callers must never treat an error as an empty
	// translation.
	Translate(ctx context.Context, req Request) (string, error)
}
