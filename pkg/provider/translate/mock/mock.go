// Package mock provides a scriptable translate.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxlate/voxlate/pkg/provider/translate"
)

// Compile-time assertion that Provider implements translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Provider is a mock implementation of translate.Provider. By default it
// echoes the source text prefixed with the target language, which keeps test
// assertions readable.
type Provider struct {
	mu sync.Mutex

	// Result, when non-empty, is returned by every Translate call.
	Result string

	// Err, if non-nil, is returned by Translate.
	Err error

	// TranslateFunc, when set, fully replaces the default behaviour.
	TranslateFunc func(ctx context.Context, req translate.Request) (string, error)

	// TranslateCalls records every request in order.
	TranslateCalls []translate.Request
}

// Translate records the call and returns the scripted result, or
// "<target>: <text>" when nothing is scripted.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	p.mu.Lock()
	p.TranslateCalls = append(p.TranslateCalls, req)
	fn := p.TranslateFunc
	res := p.Result
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return "", err
	}
	if res != "" {
		return res, nil
	}
	return req.TargetLanguage + ": " + req.Text, nil
}

// Calls returns a snapshot of recorded requests.
func (p *Provider) Calls() []translate.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]translate.Request, len(p.TranslateCalls))
	copy(out, p.TranslateCalls)
	return out
}
