// Package mock provides a scriptable tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxlate/voxlate/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider is a mock implementation of tts.Provider. By default it returns
// the request text as bytes, which lets tests assert on playback content
// without fabricating PCM.
type Provider struct {
	mu sync.Mutex

	// PCM, when non-nil, is returned by every Synthesize call.
	PCM []byte

	// Err, if non-nil, is returned by Synthesize.
	Err error

	// SynthesizeFunc, when set, fully replaces the default behaviour. Tests
	// use it to stall individual jobs and exercise out-of-order completion.
	SynthesizeFunc func(ctx context.Context, req tts.Request) ([]byte, error)

	// OutputFormat is returned by Format. Zero value reports 24kHz mono.
	OutputFormat tts.Format

	// SynthesizeCalls records every request in order.
	SynthesizeCalls []tts.Request
}

// Synthesize records the call and returns the scripted audio.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, req)
	fn := p.SynthesizeFunc
	pcm := p.PCM
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if pcm != nil {
		return pcm, nil
	}
	return []byte(req.Text), nil
}

// Format returns OutputFormat, defaulting to 24kHz mono.
func (p *Provider) Format() tts.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OutputFormat.SampleRate == 0 {
		return tts.Format{SampleRate: 24000, Channels: 1}
	}
	return p.OutputFormat
}

// Calls returns a snapshot of recorded requests.
func (p *Provider) Calls() []tts.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tts.Request, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}
