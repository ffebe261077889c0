// Package auth implements the shared-secret authentication this service
// uses in place of an identity provider: a single API key checked against
// an x-api-key header or an apiKey query parameter.
package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// Config configures the shared-secret middleware.
type Config struct {
	APIKey    string
	SkipPaths []string // paths that don't require auth (e.g., /health)
}

// Middleware checks every request against a single configured secret.
// When APIKey is empty, auth is disabled entirely and a warning is logged
// once at construction time, never silently.
type Middleware struct {
	config Config
}

func NewMiddleware(config Config) *Middleware {
	if config.APIKey == "" {
		slog.Warn("auth middleware constructed with no api key; all requests will be accepted unauthenticated")
	}
	return &Middleware{config: config}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.config.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		for _, path := range m.config.SkipPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		key := r.Header.Get("x-api-key")
		if key == "" {
			key = r.URL.Query().Get("apiKey")
		}
		if key != m.config.APIKey {
			http.Error(w, "invalid or missing api key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
