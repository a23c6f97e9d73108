package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type profileKey struct{}

// ProfileResolver resolves a profile ID from a bearer token.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, token string) (string, error)
}

// ProfileFromContext returns the profile ID from context, if present.
func ProfileFromContext(ctx context.Context) (string, bool) {
	profileID, ok := ctx.Value(profileKey{}).(string)
	return profileID, ok
}

// WithProfile returns a copy of ctx carrying profileID.
func WithProfile(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, profileKey{}, profileID)
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver ProfileResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			profileID, err := resolver.ResolveProfile(r.Context(), token)
			if err != nil || profileID == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), profileID)))
		})
	}
}

// LocalProfileMiddleware assigns every request to one profile. Used when
// auth is disabled.
func LocalProfileMiddleware(profileID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), profileID)))
		})
	}
}
