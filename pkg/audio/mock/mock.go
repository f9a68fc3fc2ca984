// Package mock provides test doubles for the audio package interfaces.
//
// Use Platform to script capture streams, Sink to record playback calls, and
// Router to record passthrough transitions, all without touching a real
// audio device.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/voxlate/voxlate/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Platform      = (*Platform)(nil)
	_ audio.CaptureStream = (*CaptureStream)(nil)
	_ audio.PlaybackSink  = (*Sink)(nil)
	_ audio.OutputRouter  = (*Router)(nil)
)

// OpenCaptureCall records a single invocation of OpenCapture.
type OpenCaptureCall struct {
	// Ctx is the context passed to OpenCapture.
	Ctx context.Context
	// Config is the capture configuration passed to OpenCapture.
	Config audio.CaptureConfig
}

// Platform is a mock implementation of audio.Platform.
type Platform struct {
	mu sync.Mutex

	// Stream is returned by OpenCapture. When nil, a fresh empty
	// CaptureStream is created per call.
	Stream *CaptureStream

	// OpenErr, if non-nil, is returned by OpenCapture instead of a stream.
	OpenErr error

	// OpenCaptureCalls records every call to OpenCapture in order.
	OpenCaptureCalls []OpenCaptureCall
}

// OpenCapture records the call and returns Stream (or a fresh stream), OpenErr.
func (p *Platform) OpenCapture(ctx context.Context, cfg audio.CaptureConfig) (audio.CaptureStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenCaptureCalls = append(p.OpenCaptureCalls, OpenCaptureCall{Ctx: ctx, Config: cfg})
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	if p.Stream != nil {
		return p.Stream, nil
	}
	return NewCaptureStream(), nil
}

// CaptureStream is a scripted implementation of audio.CaptureStream. Tests
// push frames with PushFrame and set the analysis tap with SetTap.
type CaptureStream struct {
	mu     sync.Mutex
	frames chan audio.Frame
	tap    []float32
	active bool
	closed bool
}

// NewCaptureStream creates an active stream with room for 64 scripted frames.
func NewCaptureStream() *CaptureStream {
	return &CaptureStream{
		frames: make(chan audio.Frame, 64),
		active: true,
	}
}

// PushFrame delivers a frame to the stream's consumer. Returns an error if
// the stream is closed or the buffer is full.
func (s *CaptureStream) PushFrame(f audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: capture stream closed")
	}
	select {
	case s.frames <- f:
		return nil
	default:
		return errors.New("mock: frame buffer full")
	}
}

// SetTap replaces the samples returned by Tap.
func (s *CaptureStream) SetTap(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tap = samples
}

// SetActive overrides the Active flag, simulating a device dropout.
func (s *CaptureStream) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *CaptureStream) Frames() <-chan audio.Frame { return s.frames }

func (s *CaptureStream) Tap() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tap
}

func (s *CaptureStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && !s.closed
}

// Close marks the stream closed and closes the frame channel. Idempotent.
func (s *CaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.active = false
	close(s.frames)
	return nil
}

// PlayCall records a single invocation of Play.
type PlayCall struct {
	// Ctx is the context passed to Play.
	Ctx context.Context
	// PCM is a copy of the audio passed to Play.
	PCM []byte
}

// Sink is a mock implementation of audio.PlaybackSink.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// BlockCh, when non-nil, makes Play block until the channel is closed
	// (or ctx is cancelled). Used to simulate slow playback.
	BlockCh chan struct{}

	// PlayCalls records every call to Play in order.
	PlayCalls []PlayCall
}

// Play records the call and returns PlayErr after optionally blocking.
func (s *Sink) Play(ctx context.Context, pcm []byte) error {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.mu.Lock()
	s.PlayCalls = append(s.PlayCalls, PlayCall{Ctx: ctx, PCM: cp})
	block := s.BlockCh
	err := s.PlayErr
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Calls returns a snapshot of recorded Play calls.
func (s *Sink) Calls() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayCall, len(s.PlayCalls))
	copy(out, s.PlayCalls)
	return out
}

// Router is a mock implementation of audio.OutputRouter that records the
// sequence of passthrough transitions.
type Router struct {
	mu sync.Mutex

	// StopErr and RestartErr, if non-nil, are returned by the respective calls.
	StopErr    error
	RestartErr error

	// Transitions records "stop" and "restart" strings in call order.
	Transitions []string
}

func (r *Router) StopLivePassthrough() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Transitions = append(r.Transitions, "stop")
	return r.StopErr
}

func (r *Router) RestartLivePassthrough() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Transitions = append(r.Transitions, "restart")
	return r.RestartErr
}
