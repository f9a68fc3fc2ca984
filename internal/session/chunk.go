package session

import "time"

// Chunk is one finalized recording segment: the audio bytes captured between
// two restart boundaries, plus the provenance the pipeline needs to decide
// what to do with it. A chunk is immutable once finalized and is consumed
// exactly once by the transcription stage.
type Chunk struct {
	// ID uniquely identifies this chunk.
	ID string

	// SessionID is the push-to-talk session that produced the chunk.
	SessionID string

	// Data is the raw 16-bit signed little-endian PCM captured for this
	// chunk, in capture order.
	Data []byte

	// SampleRate and Channels describe Data's format.
	SampleRate int
	Channels   int

	// HadSpeech is the snapshot of the per-chunk sustained-speech flag at
	// finalize time.
	HadSpeech bool

	// Start and End bound the capture interval.
	Start time.Time
	End   time.Time
}

// Duration returns the chunk's capture interval length.
func (c Chunk) Duration() time.Duration {
	return c.End.Sub(c.Start)
}
