// Package audio defines the capture, playback, and routing abstractions the
// translation pipeline is built on.
//
// The core never talks to a sound card directly. It consumes a [Platform] to
// open capture streams, a [PlaybackSink] to emit synthesised speech, and an
// [OutputRouter] to pause/resume the host's live passthrough graph while a
// push-to-talk session is active. Each abstraction has a real implementation
// in the malgo subpackage and a scripted test double in the mock subpackage.
package audio

import "context"

// CaptureStream is an open microphone capture session.
//
// Frames returns the raw PCM stream that the chunk recorder buffers; the
// same data is observable per-tick through Tap for voice activity analysis.
// Callers must call Close when the stream is no longer needed; failing to do
// so leaks the underlying device handle.
type CaptureStream interface {
	// Frames returns a read-only channel of captured audio frames. The
	// channel is closed when the stream ends or Close is called.
	Frames() <-chan Frame

	// Tap returns the most recent analysis window of float32 mono samples,
	// or nil when no audio has been captured yet. Implementations keep the
	// window small (one VAD tick's worth); the caller must not retain or
	// mutate the returned slice across ticks.
	Tap() []float32

	// Active reports whether the underlying device is still delivering
	// audio. The session controller uses this to restart capture
	// defensively when a device drops out mid-session.
	Active() bool

	// Close stops the device and releases its resources. Calling Close more
	// than once is safe and returns nil.
	Close() error
}

// Platform is the factory for capture streams. It is the abstraction over
// the host audio backend (miniaudio in production, a scripted fake in tests).
//
// Implementations must be safe for concurrent use, though the session
// controller enforces that at most one capture stream is open at a time.
type Platform interface {
	// OpenCapture starts capturing from the default (or configured) input
	// device with the given format. The returned stream is live immediately.
	//
	// Returns an error if no capture device is available or ctx is already
	// cancelled. The caller owns the stream and must call Close.
	OpenCapture(ctx context.Context, cfg CaptureConfig) (CaptureStream, error)
}

// PlaybackSink plays a complete synthesised utterance. Play blocks until the
// audio has been handed to the output device (or ctx is cancelled), which is
// what lets the TTS processor serialise playback in enqueue order.
type PlaybackSink interface {
	Play(ctx context.Context, pcm []byte) error
}

// OutputRouter controls the host's live audio passthrough graph. The session
// controller stops passthrough when a push-to-talk session starts (so the
// speaker's raw voice is not forwarded) and restarts it when the session
// ends. Device-graph management beyond these two signals is the host's
// concern.
type OutputRouter interface {
	StopLivePassthrough() error
	RestartLivePassthrough() error
}
