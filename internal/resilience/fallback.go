package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] failed or
// had an open circuit breaker.
var ErrAllFailed = errors.New("all backends failed")

// FallbackConfig configures the circuit breaker minted for each backend added
// to a [FallbackGroup]. The breaker Name is always overridden with the
// backend's registered name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type backend[T any] struct {
	name    string
	impl    T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered chain of interchangeable backends, each
// behind its own [CircuitBreaker]. Calls go to the first backend whose
// breaker admits them and that succeeds; later backends are only consulted
// after earlier ones fail.
//
// Backends must all be registered before the first call; the chain itself is
// append-only and the breakers handle their own locking.
type FallbackGroup[T any] struct {
	backends []backend[T]
	cfg      FallbackConfig
}

// NewFallbackGroup starts a chain with primary at the front.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends another backend to the end of the chain.
func (fg *FallbackGroup[T]) AddFallback(name string, impl T) {
	fg.add(name, impl)
}

func (fg *FallbackGroup[T]) add(name string, impl T) {
	bcfg := fg.cfg.CircuitBreaker
	bcfg.Name = name
	fg.backends = append(fg.backends, backend[T]{
		name:    name,
		impl:    impl,
		breaker: NewCircuitBreaker(bcfg),
	})
}

// ExecuteWithResult walks the chain until fn succeeds against some backend,
// returning that backend's result. When every backend fails the zero result
// is returned with [ErrAllFailed] wrapping the last failure.
//
// A package-level function rather than a method because Go methods cannot
// introduce the result type parameter.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.backends {
		b := &fg.backends[i]
		var out R
		err := b.breaker.Execute(func() error {
			var callErr error
			out, callErr = fn(b.impl)
			return callErr
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		switch {
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("backend skipped, circuit open", "backend", b.name)
		default:
			slog.Warn("backend failed, trying next in chain",
				"backend", b.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
