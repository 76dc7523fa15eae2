package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lectern/internal/store"
)

// UserStoreImpl manages user accounts and login tokens in the users table.
//
// Obtain one via [Store.Users] rather than constructing directly.
// All methods are safe for concurrent use.
type UserStoreImpl struct {
	pool *pgxpool.Pool
}

// Credentials implements [store.UserStore].
func (s *UserStoreImpl) Credentials(ctx context.Context, username string) (store.User, string, bool, error) {
	const q = `
		SELECT id, username, password_hash, role, disabled_at IS NOT NULL
		FROM   users
		WHERE  username = $1`

	var (
		u        store.User
		hash     string
		disabled bool
	)
	err := s.pool.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &hash, &u.Role, &disabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, "", false, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, "", false, fmt.Errorf("user store: credentials: %w", err)
	}
	return u, hash, disabled, nil
}

// SetToken implements [store.UserStore].
func (s *UserStoreImpl) SetToken(ctx context.Context, userID int64, token string) error {
	const q = `UPDATE users SET token = $1 WHERE id = $2`

	tag, err := s.pool.Exec(ctx, q, token, userID)
	if err != nil {
		return fmt.Errorf("user store: set token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UserByToken implements [store.UserStore].
func (s *UserStoreImpl) UserByToken(ctx context.Context, token string) (store.User, error) {
	const q = `
		SELECT id, username, role
		FROM   users
		WHERE  token = $1 AND disabled_at IS NULL`

	var u store.User
	err := s.pool.QueryRow(ctx, q, token).Scan(&u.ID, &u.Username, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("user store: user by token: %w", err)
	}
	return u, nil
}

// ClearToken implements [store.UserStore].
func (s *UserStoreImpl) ClearToken(ctx context.Context, token string) error {
	const q = `UPDATE users SET token = NULL WHERE token = $1`

	tag, err := s.pool.Exec(ctx, q, token)
	if err != nil {
		return fmt.Errorf("user store: clear token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
