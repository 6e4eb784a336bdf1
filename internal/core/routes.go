package core

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"atbat/internal/types"
)

const (
	defaultRequestTimeout = 15 * time.Second

	requestIDHeader    = "X-Request-Id"
	maxRequestIDLength = 128
)

// Header values masked in access logs.
var redactedHeaders = []string{"Authorization", "Cookie", "X-Api-Key"}

// MountRoutes installs the middleware chain, the JSON fallbacks for unknown
// routes and methods, the /v1 API and /health. It must be called once, after
// every registrar and probe has been attached.
func (s *Server) MountRoutes() {
	mw := []func(http.Handler) http.Handler{
		s.Recoverer,
		ContextTimeoutMiddleware(s.requestTimeout()),
		RequestIDMiddleware,
		s.SecurityHeadersMiddleware,
		RequestLogger(s.Logger, redactedHeaders),
		NewCORSMiddleware(s.allowedOrigins()),
		s.MetricsMiddleware,
	}
	s.router.Use(mw...)

	// Set before Route so the /v1 subrouter inherits them.
	s.router.NotFound(routeNotFound)
	s.router.MethodNotAllowed(methodNotAllowed)

	s.router.Route("/v1", func(r chi.Router) {
		for _, register := range s.V1RouteRegistrars {
			register(r)
		}
	})
	s.router.Get("/health", s.HandleHealth)
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundRoute,
		"no such endpoint", nil, map[string]any{"path": r.URL.Path}))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeMethodNotAllowed,
		"method not allowed on this endpoint", nil, map[string]any{"method": r.Method}))
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) allowedOrigins() []string {
	if s.Config == nil || len(s.Config.Security.CorsAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.Config.Security.CorsAllowedOrigins
}

// ContextTimeoutMiddleware bounds every request context by d. Remote scoring
// and session store calls observe the deadline.
func ContextTimeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses a well-formed client X-Request-Id or mints a
// new one, stores it on the context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
	})
}

// newRequestID returns a random UUID as 32 hex characters.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// validRequestID accepts short tokens of letters, digits, '-', '_' and '.'.
// Anything else would end up verbatim in logs and the results feed.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
