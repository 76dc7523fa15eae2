package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/lectern/pkg/provider/translate"
)

// TranslateFallback implements [translate.Provider] with automatic failover
// across multiple translation backends. Each backend has its own circuit
// breaker.
//
// A backend reporting a soft failure (Result.Failed with a nil error) counts
// as a failure for failover and circuit-breaker purposes. Only when every
// backend has failed does TranslateFallback surface a soft failure itself, so
// the subtitle pipeline keeps its empty-translation behavior.
type TranslateFallback struct {
	group *FallbackGroup[translate.Provider]
}

// Compile-time interface assertion.
var _ translate.Provider = (*TranslateFallback)(nil)

// NewTranslateFallback creates a [TranslateFallback] with primary as the
// preferred backend.
func NewTranslateFallback(primary translate.Provider, primaryName string, cfg FallbackConfig) *TranslateFallback {
	return &TranslateFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional translation provider as a fallback.
func (f *TranslateFallback) AddFallback(name string, provider translate.Provider) {
	f.group.AddFallback(name, provider)
}

// Translate runs the request against the first healthy backend.
func (f *TranslateFallback) Translate(ctx context.Context, text, from, to string) (translate.Result, error) {
	result, err := ExecuteWithResult(f.group, func(p translate.Provider) (translate.Result, error) {
		r, err := p.Translate(ctx, text, from, to)
		if err != nil {
			return translate.Result{}, err
		}
		if r.Failed() {
			return translate.Result{}, fmt.Errorf("backend failure %d: %s", r.Code, r.Message)
		}
		return r, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return translate.Result{}, ctx.Err()
		}
		if errors.Is(err, ErrAllFailed) {
			return translate.Result{
				Code:    translate.CodeFailed,
				Message: err.Error(),
			}, nil
		}
		return translate.Result{}, err
	}
	return result, nil
}
