package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lectern/internal/store"
)

// LectureStoreImpl manages lecture records in the lectures table.
//
// Obtain one via [Store.Lectures] rather than constructing directly.
// All methods are safe for concurrent use. Soft-deleted rows (deleted_at set)
// are invisible through every method.
type LectureStoreImpl struct {
	pool *pgxpool.Pool
}

const lectureColumns = "id, title, creator_id, status, created_at, ended_at"

// Create implements [store.LectureStore].
func (s *LectureStoreImpl) Create(ctx context.Context, title string, creatorID int64) (store.Lecture, error) {
	const q = `
		INSERT INTO lectures (title, creator_id, status)
		VALUES ($1, $2, 'init')
		RETURNING ` + lectureColumns

	lec, err := scanLecture(s.pool.QueryRow(ctx, q, title, creatorID))
	if err != nil {
		return store.Lecture{}, fmt.Errorf("lecture store: create: %w", err)
	}
	return lec, nil
}

// Get implements [store.LectureStore].
func (s *LectureStoreImpl) Get(ctx context.Context, id int64) (store.Lecture, error) {
	const q = `
		SELECT ` + lectureColumns + `
		FROM   lectures
		WHERE  id = $1 AND deleted_at IS NULL`

	lec, err := scanLecture(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Lecture{}, store.ErrNotFound
	}
	if err != nil {
		return store.Lecture{}, fmt.Errorf("lecture store: get: %w", err)
	}
	return lec, nil
}

// List implements [store.LectureStore]. Lectures are returned newest first.
func (s *LectureStoreImpl) List(ctx context.Context, creatorID int64, limit, offset int) ([]store.Lecture, error) {
	const q = `
		SELECT ` + lectureColumns + `
		FROM   lectures
		WHERE  creator_id = $1 AND deleted_at IS NULL
		ORDER  BY created_at DESC
		LIMIT  $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, q, creatorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("lecture store: list: %w", err)
	}
	lectures, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Lecture, error) {
		return scanLecture(row)
	})
	if err != nil {
		return nil, fmt.Errorf("lecture store: scan rows: %w", err)
	}
	if lectures == nil {
		lectures = []store.Lecture{}
	}
	return lectures, nil
}

// UpdateStatus implements [store.LectureStore].
func (s *LectureStoreImpl) UpdateStatus(ctx context.Context, id int64, status store.LectureStatus) error {
	const q = `
		UPDATE lectures
		SET    status = $1
		WHERE  id = $2 AND deleted_at IS NULL`

	tag, err := s.pool.Exec(ctx, q, string(status), id)
	if err != nil {
		return fmt.Errorf("lecture store: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// End implements [store.LectureStore].
func (s *LectureStoreImpl) End(ctx context.Context, id int64) error {
	const q = `
		UPDATE lectures
		SET    status = 'summarizing', ended_at = now()
		WHERE  id = $1 AND deleted_at IS NULL`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("lecture store: end: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// scanLecture scans one lectures row in lectureColumns order.
func scanLecture(row pgx.Row) (store.Lecture, error) {
	var (
		lec    store.Lecture
		status string
	)
	if err := row.Scan(&lec.ID, &lec.Title, &lec.CreatorID, &status, &lec.CreatedAt, &lec.EndedAt); err != nil {
		return store.Lecture{}, err
	}
	lec.Status = store.LectureStatus(status)
	return lec, nil
}
