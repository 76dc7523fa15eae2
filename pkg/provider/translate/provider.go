// Package translate defines the machine-translation provider interface used
// by the subtitle pipeline.
//
// A translator converts a transcript segment from the lecture's source
// language into the audience's target language. Translation failures are
// deliberately soft: a Result carrying CodeFailed means the subtitle event
// still goes out with an empty target text, and the pipeline may backfill the
// translation later.
package translate

import "context"

// CodeFailed is the recoverable error code reported when a translation
// backend rejects or times out on a request. Subtitle events produced from a
// failed translation carry an empty target text.
const CodeFailed = 3001

// Result is the outcome of a single translation request.
type Result struct {
	// Text is the translated text. Empty when the translation failed.
	Text string

	// Code is a provider error code, or 0 on success. CodeFailed indicates a
	// recoverable backend failure.
	Code int

	// Message is a short human-readable description of the failure. Empty on
	// success.
	Message string
}

// Failed reports whether the translation did not produce usable text.
func (r Result) Failed() bool {
	return r.Code != 0
}

// Provider translates text between languages.
//
// Implementations must be safe for concurrent use: the pipeline may translate
// segments from several lectures at once.
type Provider interface {
	// Translate converts text from the source language to the target language
	// (ISO 639-1 codes, e.g. "en" → "zh"). Backend failures are reported in
	// the Result with CodeFailed rather than as an error; the error return is
	// reserved for programming mistakes and cancelled contexts.
	Translate(ctx context.Context, text, from, to string) (Result, error)
}
