// Package httpapi serves notes over HTTP. Every request runs its own session
// for the user named by the bearer token, so the filters of one client never
// leak into another.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aretw0/introspection"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/jotter/pkg/auth"
	"github.com/aretw0/jotter/pkg/core"
)

// Config holds the dependencies of the HTTP API.
type Config struct {
	Store  core.Store
	Tokens *auth.Tokens
	Logger *slog.Logger

	MaxTagValues int
	EventBuffer  int
	// Timeout bounds how long a request waits for its first ready view. Defaults to 10s.
	Timeout time.Duration
}

// Server routes HTTP requests to per-request sessions.
type Server struct {
	store   core.Store
	tokens  *auth.Tokens
	logger  *slog.Logger
	svcCfg  core.ServiceConfig
	timeout time.Duration

	sessions atomic.Int64
	streams  atomic.Int64
	requests atomic.Int64
}

// New creates a server. Store and Tokens are required.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("httpapi: store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("httpapi: token verifier is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Server{
		store:  cfg.Store,
		tokens: cfg.Tokens,
		logger: cfg.Logger,
		svcCfg: core.ServiceConfig{
			Logger:       cfg.Logger,
			MaxTagValues: cfg.MaxTagValues,
			EventBuffer:  cfg.EventBuffer,
		},
		timeout: cfg.Timeout,
	}, nil
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.count)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/debug/state", s.debugState)

	r.Route("/notes", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Get("/stream", s.stream)

		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", s.update)
			r.Delete("/", s.delete)
			r.Post("/favorite", s.toggleFavorite)
			r.Post("/archive", s.toggleArchive)
		})
	})
	return r
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

// authenticate verifies the bearer token and stores the identity in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func identity(r *http.Request) core.Identity {
	user, _ := r.Context().Value(ctxKey{}).(core.Identity)
	return user
}

// session opens a service for the request user with f applied.
// The caller must Close it.
func (s *Server) session(ctx context.Context, userID string, f core.NoteFilters) (*core.Service, error) {
	svc := core.NewService(s.store, s.svcCfg)
	if err := svc.SetFilters(ctx, f); err != nil {
		_ = svc.Close()
		return nil, err
	}
	if err := svc.SetUser(ctx, userID); err != nil {
		_ = svc.Close()
		return nil, err
	}
	s.sessions.Add(1)
	return svc, nil
}

func (s *Server) closeSession(svc *core.Service) {
	_ = svc.Close()
	s.sessions.Add(-1)
}

// DebugState is served by GET /debug/state.
type DebugState struct {
	StoreType      string `json:"store_type"`
	Store          any    `json:"store,omitempty"`
	ActiveSessions int64  `json:"active_sessions"`
	ActiveStreams  int64  `json:"active_streams"`
	Requests       int64  `json:"requests"`
}

// State implements introspection.Introspectable.
func (s *Server) State() any {
	state := DebugState{
		StoreType:      "store",
		ActiveSessions: s.sessions.Load(),
		ActiveStreams:  s.streams.Load(),
		Requests:       s.requests.Load(),
	}
	if comp, ok := s.store.(introspection.Component); ok {
		state.StoreType = comp.ComponentType()
	}
	if in, ok := s.store.(introspection.Introspectable); ok {
		state.Store = in.State()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Server) ComponentType() string {
	return "http-api"
}

func (s *Server) debugState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrQueryConstraint):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrReadOnly):
		return http.StatusConflict
	case errors.Is(err, core.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeError(w, status, err.Error())
}

var _ introspection.Introspectable = (*Server)(nil)
var _ introspection.Component = (*Server)(nil)
