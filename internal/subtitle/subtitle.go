// Package subtitle defines the immutable subtitle event produced by the
// ingest pipeline and consumed by the broadcast engine and the persistence
// queue, together with the audio timing constants shared across the system.
package subtitle

// Stream distinguishes the origin of a persisted subtitle event. Events from
// the live pipeline carry [StreamRealtime]; a future offline reprocessing run
// over the recorded audio would write [StreamReprocess] events for the same
// lecture without colliding with the live sequence space.
type Stream string

const (
	StreamRealtime  Stream = "realtime"
	StreamReprocess Stream = "reprocess"
)

// IsValid reports whether s is a recognised stream tag.
func (s Stream) IsValid() bool {
	return s == StreamRealtime || s == StreamReprocess
}

// PCMBytesPerMillisecond is the byte rate of the only audio format the
// pipeline accepts: 16 kHz mono signed 16-bit little-endian PCM
// (16000 samples/s × 2 bytes = 32 bytes/ms). Frame durations are derived
// from this constant, not from decoding the samples, so a client sending a
// different format produces wrong timestamps rather than an error.
const PCMBytesPerMillisecond = 32

// FrameDurationMS returns the duration in milliseconds of a raw PCM frame,
// assuming the fixed format described by [PCMBytesPerMillisecond].
func FrameDurationMS(frame []byte) int64 {
	return int64(len(frame)) / PCMBytesPerMillisecond
}

// Event is one sequenced, timestamped bilingual subtitle unit. Events are
// immutable once constructed; a later translation correction is an update
// against the persisted store, never a mutation of an in-flight Event.
type Event struct {
	// LectureID identifies the lecture this event belongs to.
	LectureID int64

	// Seq is the per-lecture monotonic sequence number, assigned by the
	// ledger. Unique within (LectureID, Stream).
	Seq uint64

	// StartMS and EndMS are the frame's offsets in milliseconds from the
	// start of the producing connection's audio, non-decreasing within a
	// lecture. The end of one frame is the start of the next.
	StartMS int64
	EndMS   int64

	// TextSource is the transcribed source-language text. Never empty: a
	// silent frame produces no Event at all.
	TextSource string

	// TextTarget is the translated text. Empty when translation failed;
	// the event is still broadcast and persisted.
	TextTarget string

	// Stream tags the origin of this event.
	Stream Stream
}
