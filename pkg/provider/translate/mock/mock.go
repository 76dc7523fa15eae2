// Package mock provides a test double for the translate package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lectern/pkg/provider/translate"
)

// TranslateCall records a single invocation of Provider.Translate.
type TranslateCall struct {
	// Ctx is the context passed to Translate.
	Ctx context.Context
	// Text is the source text passed to Translate.
	Text string
	// From and To are the language codes passed to Translate.
	From, To string
}

// Provider is a mock implementation of translate.Provider.
type Provider struct {
	mu sync.Mutex

	// Results are returned from successive Translate calls in order. Once
	// exhausted, the last element keeps being returned. If empty, Translate
	// echoes the source text back as the translation.
	Results []translate.Result

	// TranslateErr, if non-nil, is returned as the error from Translate.
	TranslateErr error

	// TranslateCalls records every call to Translate.
	TranslateCalls []TranslateCall
}

// Translate records the call and returns the next configured Result.
func (p *Provider) Translate(ctx context.Context, text, from, to string) (translate.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranslateCalls = append(p.TranslateCalls, TranslateCall{Ctx: ctx, Text: text, From: from, To: to})
	if p.TranslateErr != nil {
		return translate.Result{}, p.TranslateErr
	}
	if len(p.Results) == 0 {
		return translate.Result{Text: text}, nil
	}
	i := len(p.TranslateCalls) - 1
	if i >= len(p.Results) {
		i = len(p.Results) - 1
	}
	return p.Results[i], nil
}

// Calls returns a copy of all recorded Translate calls. Thread-safe.
func (p *Provider) Calls() []TranslateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranslateCall, len(p.TranslateCalls))
	copy(out, p.TranslateCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranslateCalls = nil
}

// Ensure Provider implements translate.Provider at compile time.
var _ translate.Provider = (*Provider)(nil)
