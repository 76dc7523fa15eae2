package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lectern/pkg/provider/asr"
	asrmock "github.com/MrWong99/lectern/pkg/provider/asr/mock"
)

func TestASRFallback_PrimarySuccess(t *testing.T) {
	primary := &asrmock.Provider{
		Results: []asr.Result{{Text: "hello"}},
	}
	secondary := &asrmock.Provider{}

	fb := NewASRFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	result, err := fb.Transcribe(context.Background(), []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello" {
		t.Fatalf("Text = %q, want %q", result.Text, "hello")
	}
	if len(secondary.TranscribeCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.TranscribeCalls))
	}
}

func TestASRFallback_SilenceDoesNotFailover(t *testing.T) {
	primary := &asrmock.Provider{} // zero Result: silence
	secondary := &asrmock.Provider{
		Results: []asr.Result{{Text: "should never be used"}},
	}

	fb := NewASRFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	result, err := fb.Transcribe(context.Background(), []byte{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Silence() {
		t.Fatalf("result = %+v, want silence", result)
	}
	if len(secondary.TranscribeCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.TranscribeCalls))
	}
}

func TestASRFallback_Failover(t *testing.T) {
	primary := &asrmock.Provider{TranscribeErr: errors.New("primary down")}
	secondary := &asrmock.Provider{
		Results: []asr.Result{{Text: "fallback heard you"}},
	}

	fb := NewASRFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	result, err := fb.Transcribe(context.Background(), []byte{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "fallback heard you" {
		t.Fatalf("Text = %q, want fallback text", result.Text)
	}
}

func TestASRFallback_AllFailIsSoft(t *testing.T) {
	primary := &asrmock.Provider{TranscribeErr: errors.New("primary down")}
	secondary := &asrmock.Provider{
		Results: []asr.Result{{Code: asr.CodeFailed, Message: "model crashed"}},
	}

	fb := NewASRFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	result, err := fb.Transcribe(context.Background(), []byte{1, 2})
	if err != nil {
		t.Fatalf("exhausted fallbacks must surface a soft failure, got error: %v", err)
	}
	if result.Code != asr.CodeFailed {
		t.Fatalf("Code = %d, want %d", result.Code, asr.CodeFailed)
	}
}
