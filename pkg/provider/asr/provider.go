// Package asr defines the Provider interface for speech recognition backends.
//
// Unlike a streaming STT service, the Lectern pipeline works frame-at-a-time:
// each inbound audio frame is transcribed as one batch request and the result
// becomes at most one subtitle event. A provider wraps a recognition service
// (e.g., a local whisper-server) behind this single-call contract.
//
// Implementations must be safe for concurrent use.
package asr

import "context"

// CodeFailed is the error code attached to recoverable ASR failures
// (timeouts, backend errors, unavailable model). The pipeline surfaces it to
// the originating connection without closing it.
const CodeFailed = 2001

// Result is the outcome of transcribing one audio frame.
//
// The three states are:
//   - speech:  Text non-empty, Code zero
//   - silence: Text empty, Code zero — not a failure, produces no event
//   - failure: Code non-zero — recoverable, skip the frame
type Result struct {
	// Text is the transcribed source-language text. Empty for silence.
	Text string

	// Code is non-zero when transcription failed ([CodeFailed]).
	Code int

	// Message describes the failure for logging and the error frame sent to
	// the originating connection. Empty on success and silence.
	Message string
}

// Failed reports whether the result carries a recoverable failure.
func (r Result) Failed() bool { return r.Code != 0 }

// Silence reports whether the frame contained no recognisable speech.
func (r Result) Silence() bool { return r.Text == "" && r.Code == 0 }

// Provider is the abstraction over any speech recognition backend.
type Provider interface {
	// Transcribe recognises one frame of raw 16 kHz mono 16-bit
	// little-endian PCM audio. Recoverable backend failures are reported in
	// the Result, not as an error; a non-nil error means the provider itself
	// is unusable (e.g., ctx cancelled).
	Transcribe(ctx context.Context, pcm []byte) (Result, error)
}
