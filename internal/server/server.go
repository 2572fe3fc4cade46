package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"spacegun/internal/api"
	"spacegun/internal/metrics"
	"spacegun/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// RequestIDHeader carries the ID of each request in responses.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 64 << 20
)

// Server exposes a dispatch registry over HTTP.
type Server struct {
	registry *api.Registry
	metrics  *metrics.Metrics
	router   *mux.Router

	mu         sync.Mutex
	httpServer *http.Server
}

// New builds the routes for registry. m may be nil, in which case /metrics
// is not served.
func New(registry *api.Registry, m *metrics.Metrics) *Server {
	s := &Server{registry: registry, metrics: m, router: mux.NewRouter()}

	s.router.Use(requestIDMiddleware, loggingMiddleware)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api", s.handleProcedures).Methods(http.MethodGet)
	s.router.HandleFunc("/api/{module}/{procedure}", s.handleCall).Methods(http.MethodPost)
	if m != nil {
		s.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logging.Info("Server", "Listening on %s", l.Addr())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcedures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Procedures())
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	module, procedure := vars["module"], vars["procedure"]

	h, err := s.registry.Lookup(module, procedure)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", api.ErrBadRequest, err))
		return
	}

	result, err := h(r.Context(), body)
	if err != nil {
		logging.Warn("Server", "%s/%s failed: %v", module, procedure, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, fmt.Errorf("failed to encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	remote := api.ToRemoteError(err)
	data, _ := json.Marshal(remote)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(remote.StatusCode)
	_, _ = w.Write(data)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Debug("Server", "%s %s %d %s [%s]", r.Method, r.URL.Path, rec.status, time.Since(start), w.Header().Get(RequestIDHeader))
	})
}
