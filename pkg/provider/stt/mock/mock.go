// Package mock provides a scriptable stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxlate/voxlate/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the audio passed to Transcribe.
	PCM []byte
	// Config is the configuration passed to Transcribe.
	Config stt.Config
}

// Provider is a mock implementation of stt.Provider. Script results either
// with the static Result/Err fields or with a TranscribeFunc for per-call
// behaviour.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when TranscribeFunc is nil.
	Result stt.Result

	// Err, if non-nil, is returned by Transcribe when TranscribeFunc is nil.
	Err error

	// TranscribeFunc, when set, fully replaces the default behaviour.
	TranscribeFunc func(ctx context.Context, pcm []byte, cfg stt.Config) (stt.Result, error)

	// TranscribeCalls records every call in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (stt.Result, error) {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)

	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{PCM: cp, Config: cfg})
	fn := p.TranscribeFunc
	res := p.Result
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, pcm, cfg)
	}
	if res.ExpectedLanguage == "" {
		res.ExpectedLanguage = cfg.ExpectedLanguage
	}
	return res, err
}

// Calls returns a snapshot of recorded Transcribe calls.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}
