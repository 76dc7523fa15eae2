// Package ingest implements the per-frame subtitle pipeline: speech
// recognition, translation, sequencing, timing, room fan-out, and the
// hand-off to asynchronous persistence.
//
// One [Conn] exists per producing connection. Its frames are processed
// strictly in arrival order by a single caller, so the cumulative time
// offset and the sequence counter advance deterministically; the shared
// ledger serializes sequencing across connections of the same lecture.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrWong99/lectern/internal/ledger"
	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/room"
	"github.com/MrWong99/lectern/internal/subtitle"
	"github.com/MrWong99/lectern/internal/tasks"
	"github.com/MrWong99/lectern/pkg/provider/asr"
	"github.com/MrWong99/lectern/pkg/provider/translate"
)

// Config assembles the collaborators of a [Pipeline].
type Config struct {
	ASR         asr.Provider
	Translator  translate.Provider
	Ledger      *ledger.Ledger
	Broadcaster *room.Broadcaster
	Queue       *tasks.Queue
	Metrics     *observe.Metrics

	// SourceLang and TargetLang are ISO 639-1 codes. Defaults: "en" → "zh".
	SourceLang string
	TargetLang string

	// RetryTranslation enables one deferred background retry when the
	// primary translation of a frame fails. A successful retry broadcasts a
	// corrected subtitle frame with the same sequence number and submits a
	// translation-update task.
	RetryTranslation bool

	// RetryTimeout bounds the deferred retry. Default: 10s.
	RetryTimeout time.Duration
}

// Pipeline turns raw audio frames into broadcast and persisted subtitle
// events. Safe for concurrent use across connections; each [Conn] must be
// driven by a single goroutine.
type Pipeline struct {
	asr         asr.Provider
	translator  translate.Provider
	ledger      *ledger.Ledger
	broadcaster *room.Broadcaster
	queue       *tasks.Queue
	metrics     *observe.Metrics

	sourceLang string
	targetLang string

	retryTranslation bool
	retryTimeout     time.Duration
}

// New creates a Pipeline from cfg. ASR, Ledger, Broadcaster and Queue are
// required; a nil Translator disables translation (events carry source text
// only).
func New(cfg Config) (*Pipeline, error) {
	if cfg.ASR == nil {
		return nil, errors.New("ingest: ASR provider is required")
	}
	if cfg.Ledger == nil || cfg.Broadcaster == nil || cfg.Queue == nil {
		return nil, errors.New("ingest: ledger, broadcaster and queue are required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = "en"
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "zh"
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 10 * time.Second
	}
	return &Pipeline{
		asr:              cfg.ASR,
		translator:       cfg.Translator,
		ledger:           cfg.Ledger,
		broadcaster:      cfg.Broadcaster,
		queue:            cfg.Queue,
		metrics:          cfg.Metrics,
		sourceLang:       cfg.SourceLang,
		targetLang:       cfg.TargetLang,
		retryTranslation: cfg.RetryTranslation,
		retryTimeout:     cfg.RetryTimeout,
	}, nil
}

// Conn is the per-connection ingest state. The time offset accumulates
// across frames: the end of one frame is the start of the next.
type Conn struct {
	LectureID int64
	Stream    subtitle.Stream

	// Origin receives error frames for failures that concern only this
	// connection. May be nil (errors are then only logged).
	Origin room.Handle

	offsetMS int64
}

// NewConn creates the ingest state for one producing connection, starting at
// time offset startMS (the end of the lecture's last persisted event, or 0).
func NewConn(lectureID int64, stream subtitle.Stream, origin room.Handle, startMS int64) *Conn {
	return &Conn{
		LectureID: lectureID,
		Stream:    stream,
		Origin:    origin,
		offsetMS:  startMS,
	}
}

// OffsetMS returns the cumulative audio time consumed so far.
func (c *Conn) OffsetMS() int64 {
	return c.offsetMS
}

// ProcessFrame runs one audio frame through the pipeline. The returned event
// is valid only when emitted is true; silent frames and recoverable ASR
// failures emit nothing. A non-nil error means the connection is broken
// (cancelled context or a lifecycle invariant violation) and should close.
//
// The time offset advances by the frame's duration regardless of whether an
// event is emitted: silence still consumes lecture time.
func (p *Pipeline) ProcessFrame(ctx context.Context, conn *Conn, frame []byte) (ev subtitle.Event, emitted bool, err error) {
	startMS := conn.offsetMS
	conn.offsetMS += subtitle.FrameDurationMS(frame)
	endMS := conn.offsetMS

	log := observe.Logger(ctx).With(
		slog.Int64("lecture_id", conn.LectureID),
		slog.String("stream", string(conn.Stream)),
	)

	// Transcribing.
	asrStart := time.Now()
	result, err := p.asr.Transcribe(ctx, frame)
	p.metrics.ASRDuration.Record(ctx, time.Since(asrStart).Seconds())
	if err != nil {
		return subtitle.Event{}, false, err
	}
	if result.Failed() {
		log.Warn("transcription failed", "code", result.Code, "message", result.Message)
		p.metrics.RecordProviderError(ctx, "asr", "transcribe")
		p.sendError(ctx, conn, result.Code, result.Message)
		return subtitle.Event{}, false, nil
	}
	if result.Silence() {
		return subtitle.Event{}, false, nil
	}

	// Translating.
	translated, trFailed := p.translate(ctx, log, result.Text)
	if ctx.Err() != nil {
		return subtitle.Event{}, false, ctx.Err()
	}

	// Sequencing. The room's last member can depart between this
	// connection's counter seeding and its first frame, firing the
	// empty-room hook that drops the counter. Reseed from the store and
	// retry once instead of tearing the fresh connection down.
	seq, err := p.ledger.Next(conn.LectureID)
	if errors.Is(err, ledger.ErrNotInitialized) {
		if err = p.ledger.Initialize(ctx, conn.LectureID); err == nil {
			seq, err = p.ledger.Next(conn.LectureID)
		}
	}
	if err != nil {
		return subtitle.Event{}, false, err
	}

	ev = subtitle.Event{
		LectureID:  conn.LectureID,
		Seq:        seq,
		StartMS:    startMS,
		EndMS:      endMS,
		TextSource: result.Text,
		TextTarget: translated,
		Stream:     conn.Stream,
	}

	// Broadcasting.
	bcStart := time.Now()
	delivered := p.broadcaster.Broadcast(ctx, conn.LectureID, NewSubtitleFrame(ev), nil)
	p.metrics.BroadcastDuration.Record(ctx, time.Since(bcStart).Seconds())

	status := "ok"
	if trFailed {
		status = "translate_failed"
	}
	p.metrics.RecordSubtitleEvent(ctx, string(conn.Stream), status)
	log.Debug("subtitle event emitted",
		"seq", seq, "start_ms", startMS, "end_ms", endMS, "delivered", delivered)

	// Persisting.
	if err := p.queue.Submit(tasks.AppendUtterance(ev)); err != nil {
		log.Error("failed to enqueue utterance", "seq", seq, "error", err)
	}

	if trFailed && p.retryTranslation {
		go p.retryTranslate(ev)
	}

	return ev, true, nil
}

// translate runs the translation step. Failures never block the frame: the
// event proceeds with an empty target text and the failure is logged.
func (p *Pipeline) translate(ctx context.Context, log *slog.Logger, text string) (translated string, failed bool) {
	if p.translator == nil {
		return "", false
	}
	start := time.Now()
	result, err := p.translator.Translate(ctx, text, p.sourceLang, p.targetLang)
	p.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("translation failed", "error", err)
			p.metrics.RecordProviderError(ctx, "translate", "translate")
		}
		return "", true
	}
	if result.Failed() {
		log.Warn("translation failed", "code", result.Code, "message", result.Message)
		p.metrics.RecordProviderError(ctx, "translate", "translate")
		return "", true
	}
	return result.Text, false
}

// retryTranslate makes one deferred attempt to backfill a missing
// translation. On success the corrected frame is re-broadcast under the same
// sequence number and the stored utterance is updated.
func (p *Pipeline) retryTranslate(ev subtitle.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.retryTimeout)
	defer cancel()

	result, err := p.translator.Translate(ctx, ev.TextSource, p.sourceLang, p.targetLang)
	if err != nil || result.Failed() || result.Text == "" {
		return
	}

	ev.TextTarget = result.Text
	p.broadcaster.Broadcast(ctx, ev.LectureID, NewSubtitleFrame(ev), nil)

	if err := p.queue.Submit(tasks.UpdateTranslation(tasks.TranslationUpdate{
		LectureID:  ev.LectureID,
		Seq:        ev.Seq,
		Stream:     ev.Stream,
		TextTarget: result.Text,
	})); err != nil {
		slog.Error("failed to enqueue translation update",
			"lecture_id", ev.LectureID, "seq", ev.Seq, "error", err)
	}
}

// sendError pushes an error frame to the originating connection only.
func (p *Pipeline) sendError(ctx context.Context, conn *Conn, code int, message string) {
	if conn.Origin == nil {
		return
	}
	if err := conn.Origin.Send(ctx, NewErrorFrame(code, message)); err != nil {
		observe.Logger(ctx).Debug("failed to deliver error frame",
			"lecture_id", conn.LectureID, "error", err)
	}
}
