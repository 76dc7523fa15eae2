// Package postgres provides the PostgreSQL-backed implementation of the
// Lectern store contracts. All implementations share one [pgxpool.Pool].
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	seq, _ := st.Utterances().MaxSeq(ctx, lectureID, subtitle.StreamRealtime)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lectern/internal/store"
)

// Compile-time interface checks.
var (
	_ store.UtteranceStore = (*UtteranceStoreImpl)(nil)
	_ store.LectureStore   = (*LectureStoreImpl)(nil)
	_ store.UserStore      = (*UserStoreImpl)(nil)
)

// Store is the central PostgreSQL-backed store for Lectern. It holds a single
// [pgxpool.Pool] and exposes the three storage contracts:
//
//   - [Store.Utterances] returns a [store.UtteranceStore]
//   - [Store.Lectures] returns a [store.LectureStore]
//   - [Store.Users] returns a [store.UserStore]
//
// All operations are safe for concurrent use.
type Store struct {
	pool       *pgxpool.Pool
	utterances *UtteranceStoreImpl
	lectures   *LectureStoreImpl
	users      *UserStoreImpl
}

// New creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, and runs [Migrate] to ensure all required tables exist.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:       pool,
		utterances: &UtteranceStoreImpl{pool: pool},
		lectures:   &LectureStoreImpl{pool: pool},
		users:      &UserStoreImpl{pool: pool},
	}, nil
}

// Utterances returns the utterance log implementation.
func (s *Store) Utterances() *UtteranceStoreImpl { return s.utterances }

// Lectures returns the lecture record implementation.
func (s *Store) Lectures() *LectureStoreImpl { return s.lectures }

// Users returns the user account implementation.
func (s *Store) Users() *UserStoreImpl { return s.users }

// Ping checks connectivity to the database. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
