// Package server exposes a backend over HTTP with the same protocol the remote
// service speaks, so a local engine can stand in for it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/conduit-lang/pim/pkg/backend"
	"github.com/conduit-lang/pim/pkg/local"
	"github.com/conduit-lang/pim/pkg/query"
	"github.com/conduit-lang/pim/pkg/remote"
	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Config holds server configuration
type Config struct {
	// Address is the listen address, e.g. ":8080"
	Address string

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// MaxBodyBytes bounds POST and DELETE bodies
	MaxBodyBytes int64

	// Limiter, when set, rate limits the endpoint routes per client IP
	Limiter Limiter

	Logger *zap.Logger
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Address:           ":8080",
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		MaxBodyBytes:      1 << 20,
		Logger:            zap.NewNop(),
	}
}

// Server serves a backend over HTTP
type Server struct {
	backend backend.Backend
	config  Config
	logger  *zap.Logger
	router  chi.Router
	http    *http.Server
}

// New creates a server for a backend
func New(b backend.Backend, config Config) (*Server, error) {
	if b == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}

	s := &Server{backend: b, config: config, logger: config.Logger}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              config.Address,
		Handler:           s.router,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(s.logger))
	r.Use(Recovery(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, json.RawMessage(`{"status":"ok"}`))
	})
	r.Group(func(r chi.Router) {
		if s.config.Limiter != nil {
			r.Use(RateLimit(s.config.Limiter, s.logger))
		}
		r.Get("/{endpoint}", s.handleGet)
		r.Post("/{endpoint}", s.handleWrite(backend.MethodPost))
		r.Delete("/{endpoint}", s.handleWrite(backend.MethodDelete))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var data any
	if q := r.URL.Query().Get(remote.QueryParam); q != "" {
		if !json.Valid([]byte(q)) {
			writeError(w, http.StatusBadRequest, "query parameter q is not valid JSON")
			return
		}
		data = json.RawMessage(q)
	}
	s.serve(w, r, backend.MethodGet, data)
}

func (s *Server) handleWrite(method backend.Method) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		var data any
		if len(body) > 0 {
			if !json.Valid(body) {
				writeError(w, http.StatusBadRequest, "request body is not valid JSON")
				return
			}
			data = json.RawMessage(body)
		}
		s.serve(w, r, method, data)
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, method backend.Method, data any) {
	endpoint := chi.URLParam(r, "endpoint")
	out, err := s.backend.Request(r.Context(), method, endpoint, data)
	if err != nil {
		status := StatusFor(err)
		if status >= 500 {
			s.logger.Error("backend request failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
		}
		writeError(w, status, err.Error())
		return
	}
	writeData(w, http.StatusOK, out)
}

// StatusFor maps a backend error to an HTTP status
func StatusFor(err error) int {
	var se *remote.StatusError
	switch {
	case errors.As(err, &se):
		return se.StatusCode
	case errors.Is(err, schema.ErrResourceNotFound),
		errors.Is(err, schema.ErrFieldNotFound),
		errors.Is(err, local.ErrThingNotFound):
		return http.StatusNotFound
	case errors.Is(err, local.ErrUnsupportedRequest),
		errors.Is(err, local.ErrInvalidRequest),
		errors.Is(err, query.ErrUnsupportedOperator),
		errors.Is(err, query.ErrUnsupportedReturn),
		errors.Is(err, query.ErrInvalidClause),
		errors.Is(err, schema.ErrMissingRelationTarget):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeData(w http.ResponseWriter, status int, data json.RawMessage) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	writeJSON(w, status, remote.Envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, remote.Envelope{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run listens on the configured address until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("address", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down server", zap.Duration("timeout", timeout))
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return <-errCh
}
