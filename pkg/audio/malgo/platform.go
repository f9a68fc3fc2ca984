// Package malgo implements the audio.Platform, audio.PlaybackSink, and
// audio.OutputRouter interfaces on top of the miniaudio bindings
// (github.com/gen2brain/malgo). One shared malgo context backs all devices.
package malgo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/voxlate/voxlate/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Platform     = (*Platform)(nil)
	_ audio.PlaybackSink = (*Sink)(nil)
	_ audio.OutputRouter = (*Router)(nil)
)

const (
	// frameChanDepth is the buffer depth of the capture frame channel. At
	// 100ms frames this absorbs several seconds of consumer stall before
	// frames are dropped.
	frameChanDepth = 64

	// defaultSampleRate is used when the capture config leaves it zero.
	defaultSampleRate = 48000
)

// Platform opens capture streams backed by the default miniaudio capture
// device. It also provides the playback sink and output router so the whole
// device surface shares one context.
type Platform struct {
	ctx *malgo.AllocatedContext
}

// New initialises the miniaudio context. Call Close when the platform is no
// longer needed.
func New() (*Platform, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("miniaudio", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("malgo: init context: %w", err)
	}
	return &Platform{ctx: mctx}, nil
}

// Close tears down the miniaudio context. All streams opened from this
// platform must be closed first.
func (p *Platform) Close() error {
	if p.ctx == nil {
		return nil
	}
	if err := p.ctx.Uninit(); err != nil {
		return fmt.Errorf("malgo: uninit context: %w", err)
	}
	p.ctx.Free()
	p.ctx = nil
	return nil
}

// OpenCapture starts capturing 16-bit PCM from the default input device.
func (p *Platform) OpenCapture(ctx context.Context, cfg audio.CaptureConfig) (audio.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("malgo: context already cancelled: %w", err)
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	s := &captureStream{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     make(chan audio.Frame, frameChanDepth),
		started:    time.Now(),
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(channels)
	devCfg.SampleRate = uint32(sampleRate)
	devCfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(p.ctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			s.onData(in)
		},
		Stop: func() {
			s.active.Store(false)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("malgo: init capture device: %w", err)
	}
	s.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("malgo: start capture device: %w", err)
	}
	s.active.Store(true)
	return s, nil
}

// captureStream implements audio.CaptureStream over a running malgo capture
// device. The device data callback is the only writer of tap and frames.
type captureStream struct {
	dev        *malgo.Device
	sampleRate int
	channels   int
	started    time.Time

	frames chan audio.Frame
	active atomic.Bool

	mu  sync.Mutex
	tap []float32 // most recent callback's worth of mono samples

	closeOnce sync.Once
}

// onData copies the device buffer into a frame and refreshes the analysis
// tap. Runs on the miniaudio callback thread; it must never block, so a full
// frame channel drops the frame rather than stalling the device.
func (s *captureStream) onData(in []byte) {
	if len(in) == 0 {
		return
	}
	data := make([]byte, len(in))
	copy(data, in)

	f := audio.Frame{
		Data:       data,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		Timestamp:  time.Since(s.started),
	}

	s.mu.Lock()
	s.tap = f.Samples()
	s.mu.Unlock()

	select {
	case s.frames <- f:
	default:
		slog.Warn("capture frame dropped: consumer stalled", "bytes", len(in))
	}
}

func (s *captureStream) Frames() <-chan audio.Frame { return s.frames }

func (s *captureStream) Tap() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tap
}

func (s *captureStream) Active() bool { return s.active.Load() }

func (s *captureStream) Close() error {
	s.closeOnce.Do(func() {
		s.active.Store(false)
		_ = s.dev.Stop()
		s.dev.Uninit()
		close(s.frames)
	})
	return nil
}

// ─── Playback sink ────────────────────────────────────────────────────────────

// Sink plays synthesised PCM through the default output device. Each Play
// call opens a short-lived playback device, feeds it the buffer, and blocks
// until the buffer drains or ctx is cancelled.
type Sink struct {
	platform   *Platform
	sampleRate int
	channels   int
}

// NewSink creates a playback sink for 16-bit PCM at the given format.
func NewSink(p *Platform, sampleRate, channels int) *Sink {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	return &Sink{platform: p, sampleRate: sampleRate, channels: channels}
}

// Play blocks until pcm has been fully delivered to the output device or ctx
// is cancelled. An empty buffer is a no-op.
func (s *Sink) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	var pos int
	done := make(chan struct{})
	var once sync.Once

	devCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	devCfg.Playback.Format = malgo.FormatS16
	devCfg.Playback.Channels = uint32(s.channels)
	devCfg.SampleRate = uint32(s.sampleRate)
	devCfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(s.platform.ctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			n := copy(out, pcm[pos:])
			pos += n
			if pos >= len(pcm) {
				once.Do(func() { close(done) })
			}
		},
	})
	if err != nil {
		return fmt.Errorf("malgo: init playback device: %w", err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("malgo: start playback device: %w", err)
	}

	select {
	case <-done:
		// Let the device drain its internal buffer before uninit.
		time.Sleep(50 * time.Millisecond)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Output router ────────────────────────────────────────────────────────────

// Router implements audio.OutputRouter with a duplex passthrough device that
// copies capture input straight to the output device. StopLivePassthrough
// tears the device down; RestartLivePassthrough rebuilds it.
type Router struct {
	platform   *Platform
	sampleRate int

	mu  sync.Mutex
	dev *malgo.Device
}

// NewRouter creates an output router. The passthrough graph is not started
// until the first RestartLivePassthrough call.
func NewRouter(p *Platform, sampleRate int) *Router {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	return &Router{platform: p, sampleRate: sampleRate}
}

// StopLivePassthrough stops forwarding microphone audio to the output
// device. Safe to call when passthrough is already stopped.
func (r *Router) StopLivePassthrough() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil {
		return nil
	}
	_ = r.dev.Stop()
	r.dev.Uninit()
	r.dev = nil
	return nil
}

// RestartLivePassthrough (re)builds the duplex passthrough device. Safe to
// call when passthrough is already running.
func (r *Router) RestartLivePassthrough() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev != nil {
		return nil
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Duplex)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Playback.Format = malgo.FormatS16
	devCfg.Playback.Channels = 1
	devCfg.SampleRate = uint32(r.sampleRate)
	devCfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(r.platform.ctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(out, in []byte, _ uint32) {
			copy(out, in)
		},
	})
	if err != nil {
		return fmt.Errorf("malgo: init passthrough device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("malgo: start passthrough device: %w", err)
	}
	r.dev = dev
	return nil
}

// Close stops passthrough if running.
func (r *Router) Close() error {
	return r.StopLivePassthrough()
}
