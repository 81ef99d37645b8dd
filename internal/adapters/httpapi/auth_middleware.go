package httpapi

import (
	"net/http"
	"strings"
)

// TokenVerifier checks a bearer token and returns the username it was
// issued to.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// NewAuthMiddleware enforces Authorization: Bearer <token> on the ride
// endpoints. On success it stores the authenticated username in request
// context.
func NewAuthMiddleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}

			username, err := v.Verify(raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It accepts an explicit username via X-Debug-User and stores it in request
// context, falling back to defaultUsername when the header is absent. Do NOT
// use this in production deployments.
func NewDevAuthMiddleware(defaultUsername string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := strings.TrimSpace(r.Header.Get("X-Debug-User"))
			if username == "" {
				username = strings.TrimSpace(defaultUsername)
			}
			if username == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing username (set X-Debug-User)", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}
