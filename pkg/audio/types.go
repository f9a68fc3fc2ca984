package audio

import "time"

// Frame represents one block of captured audio flowing through the pipeline.
// Frames are the atomic unit of transport — delivered by the capture device,
// tapped by the voice activity detector, and buffered into recording chunks.
type Frame struct {
	// Data is raw PCM audio, 16-bit signed little-endian.
	Data []byte

	// SampleRate in Hz (e.g., 48000 for a default capture graph, 16000 for
	// STT-optimised capture).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo. The analysis tap downmixes to mono.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// CaptureConfig describes the audio format requested from a capture device.
type CaptureConfig struct {
	// SampleRate is the requested sample rate in Hz.
	SampleRate int

	// Channels is the requested channel count. 1 is strongly recommended;
	// the STT providers expect mono input.
	Channels int
}

// Samples converts the frame's PCM data to float32 mono samples normalised
// to [-1.0, 1.0], averaging channels when the frame is multi-channel. This is
// the form the voice activity detector consumes.
func (f Frame) Samples() []float32 {
	if f.Channels <= 1 {
		return PCMToFloat32(f.Data)
	}
	return PCMToFloat32Mono(f.Data, f.Channels)
}
