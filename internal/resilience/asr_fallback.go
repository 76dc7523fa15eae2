package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/lectern/pkg/provider/asr"
)

// ASRFallback implements [asr.Provider] with automatic failover across
// multiple speech-recognition backends. Each backend has its own circuit
// breaker.
//
// Soft failures (Result.Failed with a nil error) trigger failover; silence
// results do not, since a quiet frame is quiet on every backend.
type ASRFallback struct {
	group *FallbackGroup[asr.Provider]
}

// Compile-time interface assertion.
var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred
// backend.
func NewASRFallback(primary asr.Provider, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional ASR provider as a fallback.
func (f *ASRFallback) AddFallback(name string, provider asr.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the frame against the first healthy backend.
func (f *ASRFallback) Transcribe(ctx context.Context, pcm []byte) (asr.Result, error) {
	result, err := ExecuteWithResult(f.group, func(p asr.Provider) (asr.Result, error) {
		r, err := p.Transcribe(ctx, pcm)
		if err != nil {
			return asr.Result{}, err
		}
		if r.Failed() {
			return asr.Result{}, fmt.Errorf("backend failure %d: %s", r.Code, r.Message)
		}
		return r, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return asr.Result{}, ctx.Err()
		}
		if errors.Is(err, ErrAllFailed) {
			return asr.Result{
				Code:    asr.CodeFailed,
				Message: err.Error(),
			}, nil
		}
		return asr.Result{}, err
	}
	return result, nil
}
