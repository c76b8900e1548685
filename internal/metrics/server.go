package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server exposes /metrics and /healthz while a command runs.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
	bound  string
}

// NewRouter builds the metrics routes.
func NewRouter(logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", Handler())
	return r
}

// NewServer creates a metrics server bound to addr.
func NewServer(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	Init()
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", s.srv.Addr, err)
	}
	s.bound = ln.Addr().String()
	s.logger.Info("Starting metrics server", zap.String("addr", s.bound))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr reports the listening address once started.
func (s *Server) Addr() string {
	return s.bound
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
