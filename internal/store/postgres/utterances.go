package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lectern/internal/subtitle"
)

// UtteranceStoreImpl is the append-only subtitle event log backed by the
// utterances table.
//
// Obtain one via [Store.Utterances] rather than constructing directly.
// All methods are safe for concurrent use.
type UtteranceStoreImpl struct {
	pool *pgxpool.Pool
}

// Append implements [store.UtteranceStore]. A duplicate (lecture_id, seq,
// source) key is silently ignored so repeated persistence attempts for the
// same event cannot corrupt history.
func (s *UtteranceStoreImpl) Append(ctx context.Context, ev subtitle.Event) error {
	const q = `
		INSERT INTO utterances
		    (lecture_id, seq, start_ms, end_ms, text_source, text_target, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lecture_id, seq, source) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		ev.LectureID,
		int64(ev.Seq),
		ev.StartMS,
		ev.EndMS,
		ev.TextSource,
		ev.TextTarget,
		string(ev.Stream),
	)
	if err != nil {
		return fmt.Errorf("utterance store: append: %w", err)
	}
	return nil
}

// MaxSeq implements [store.UtteranceStore]. It returns 0 when the lecture
// has no persisted events for the stream.
func (s *UtteranceStoreImpl) MaxSeq(ctx context.Context, lectureID int64, stream subtitle.Stream) (uint64, error) {
	const q = `
		SELECT COALESCE(MAX(seq), 0)
		FROM   utterances
		WHERE  lecture_id = $1 AND source = $2`

	var max int64
	if err := s.pool.QueryRow(ctx, q, lectureID, string(stream)).Scan(&max); err != nil {
		return 0, fmt.Errorf("utterance store: max seq: %w", err)
	}
	return uint64(max), nil
}

// List implements [store.UtteranceStore]. Events are returned ordered by
// sequence ascending.
func (s *UtteranceStoreImpl) List(ctx context.Context, lectureID int64, stream subtitle.Stream, limit, offset int) ([]subtitle.Event, error) {
	const q = `
		SELECT lecture_id, seq, start_ms, end_ms, text_source, text_target, source
		FROM   utterances
		WHERE  lecture_id = $1 AND source = $2
		ORDER  BY seq ASC
		LIMIT  $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, q, lectureID, string(stream), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("utterance store: list: %w", err)
	}
	return collectEvents(rows)
}

// UpdateTranslation implements [store.UtteranceStore]. Updating a row that
// does not exist is a no-op.
func (s *UtteranceStoreImpl) UpdateTranslation(ctx context.Context, lectureID int64, seq uint64, stream subtitle.Stream, textTarget string) error {
	const q = `
		UPDATE utterances
		SET    text_target = $1
		WHERE  lecture_id = $2 AND seq = $3 AND source = $4`

	_, err := s.pool.Exec(ctx, q, textTarget, lectureID, int64(seq), string(stream))
	if err != nil {
		return fmt.Errorf("utterance store: update translation: %w", err)
	}
	return nil
}

// LastEndMS implements [store.UtteranceStore]. It returns 0 when the
// lecture has no persisted events for the stream.
func (s *UtteranceStoreImpl) LastEndMS(ctx context.Context, lectureID int64, stream subtitle.Stream) (int64, error) {
	const q = `
		SELECT COALESCE(
		    (SELECT end_ms
		     FROM   utterances
		     WHERE  lecture_id = $1 AND source = $2
		     ORDER  BY seq DESC
		     LIMIT  1),
		    0)`

	var endMS int64
	if err := s.pool.QueryRow(ctx, q, lectureID, string(stream)).Scan(&endMS); err != nil {
		return 0, fmt.Errorf("utterance store: last end offset: %w", err)
	}
	return endMS, nil
}

// collectEvents scans pgx rows into a slice of subtitle events.
func collectEvents(rows pgx.Rows) ([]subtitle.Event, error) {
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (subtitle.Event, error) {
		var (
			ev     subtitle.Event
			seq    int64
			stream string
		)
		if err := row.Scan(
			&ev.LectureID,
			&seq,
			&ev.StartMS,
			&ev.EndMS,
			&ev.TextSource,
			&ev.TextTarget,
			&stream,
		); err != nil {
			return subtitle.Event{}, err
		}
		ev.Seq = uint64(seq)
		ev.Stream = subtitle.Stream(stream)
		return ev, nil
	})
	if err != nil {
		return nil, fmt.Errorf("utterance store: scan rows: %w", err)
	}
	if events == nil {
		events = []subtitle.Event{}
	}
	return events, nil
}
