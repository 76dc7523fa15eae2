// Package auth implements token-based authentication for the HTTP API and
// the lecturer WebSocket endpoint.
//
// Login exchanges a username and password for an opaque bearer token stored
// on the user record. A user holds at most one live token: a fresh login
// invalidates previous sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrWong99/lectern/internal/store"
)

// ErrInvalidCredentials is returned by Login for a bad username or password
// and for disabled accounts. Callers must not distinguish the cases.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInvalidToken is returned when a token matches no active session.
var ErrInvalidToken = errors.New("auth: invalid token")

// fakeHash is a valid bcrypt hash of an unguessable string. Login verifies
// against it when the username is unknown so that response timing does not
// reveal which usernames exist.
const fakeHash = "$2b$12$LQv3c1yqBWVHxkd0LHAkCOYz6TtxMQJqhN8/LewY5sDovXxP0CuKa"

// Session is the result of a successful login.
type Session struct {
	User  store.User
	Token string
}

// Service implements login, logout and token verification on top of a
// [store.UserStore].
type Service struct {
	users store.UserStore
}

// NewService creates an authentication Service backed by users.
func NewService(users store.UserStore) *Service {
	return &Service{users: users}
}

// Login verifies the password and issues a fresh token. The bcrypt check
// runs even when the username is unknown, keeping the failure path
// constant-time.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, hash, disabled, err := s.users.Credentials(ctx, username)
	known := true
	switch {
	case errors.Is(err, store.ErrNotFound):
		known = false
		hash = fakeHash
	case err != nil:
		return Session{}, fmt.Errorf("auth: load credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !known || disabled {
		return Session{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	if err := s.users.SetToken(ctx, user.ID, token); err != nil {
		return Session{}, fmt.Errorf("auth: store token: %w", err)
	}
	return Session{User: user, Token: token}, nil
}

// Verify resolves a token to its user. Returns [ErrInvalidToken] for unknown
// tokens and disabled accounts.
func (s *Service) Verify(ctx context.Context, token string) (store.User, error) {
	if token == "" {
		return store.User{}, ErrInvalidToken
	}
	user, err := s.users.UserByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidToken
	}
	if err != nil {
		return store.User{}, fmt.Errorf("auth: verify token: %w", err)
	}
	return user, nil
}

// Logout invalidates the token. Unknown tokens return [ErrInvalidToken].
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.users.ClearToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("auth: clear token: %w", err)
	}
	return nil
}

// newToken returns 32 random bytes hex-encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
