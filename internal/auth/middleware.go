package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrWong99/lectern/internal/store"
)

type contextKey struct{}

// UserFromContext returns the authenticated user stored by [Middleware].
func UserFromContext(ctx context.Context) (store.User, bool) {
	user, ok := ctx.Value(contextKey{}).(store.User)
	return user, ok
}

// ContextWithUser returns a context carrying user. Exposed for handler tests.
func ContextWithUser(ctx context.Context, user store.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// Middleware authenticates requests with an "Authorization: Bearer <token>"
// header and injects the resolved user into the request context. Requests to
// an exempt path (exact match) pass through unauthenticated.
func Middleware(svc *Service, exempt ...string) func(http.Handler) http.Handler {
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		exemptSet[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			user, err := svc.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
