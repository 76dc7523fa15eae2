// Package mock provides a test double for the asr package interfaces.
//
// Use Provider to feed controlled Result values into a pipeline and inspect
// which PCM frames were delivered.
//
// Example:
//
//	p := &mock.Provider{
//	    Results: []asr.Result{{Text: "hello"}},
//	}
//	result, _ := p.Transcribe(ctx, pcm)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lectern/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// PCM is a copy of the audio bytes that were passed to Transcribe.
	PCM []byte
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Results are returned from successive Transcribe calls in order. Once
	// exhausted, the last element keeps being returned. If empty, Transcribe
	// returns the zero Result (silence).
	Results []asr.Result

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next configured Result.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (asr.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, PCM: chunk})
	if p.TranscribeErr != nil {
		return asr.Result{}, p.TranscribeErr
	}
	if len(p.Results) == 0 {
		return asr.Result{}, nil
	}
	i := len(p.TranscribeCalls) - 1
	if i >= len(p.Results) {
		i = len(p.Results) - 1
	}
	return p.Results[i], nil
}

// Calls returns a copy of all recorded Transcribe calls. Thread-safe.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements asr.Provider at compile time.
var _ asr.Provider = (*Provider)(nil)
