// Package server exposes the download queue over HTTP: submissions,
// status queries, manual retry, health, and a WebSocket feed of job
// updates.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vidsaver/vidsaver/gate"
	"github.com/vidsaver/vidsaver/queue"
)

// Config holds the HTTP server's own settings.
type Config struct {
	Port int
	// GlobalRatePerSecond throttles all request handling server-wide.
	// 0 disables the throttle.
	GlobalRatePerSecond int
	// AllowedDomains whitelists submission URL hosts; empty allows all.
	AllowedDomains []string
}

// Server wires the store, worker pool and admission gate behind an HTTP API.
type Server struct {
	store   *queue.Store
	pool    *queue.WorkerPool
	gate    *gate.Gate
	config  Config
	limiter *rate.Limiter // nil when the global throttle is disabled
	logger  *zap.SugaredLogger

	httpServer *http.Server
	startedAt  time.Time
}

// New creates a server around the given queue components.
func New(store *queue.Store, pool *queue.WorkerPool, admission *gate.Gate, cfg Config, logger *zap.SugaredLogger) *Server {
	s := &Server{
		store:  store,
		pool:   pool,
		gate:   admission,
		config: cfg,
		logger: logger.Named("server"),
	}
	if cfg.GlobalRatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.GlobalRatePerSecond), cfg.GlobalRatePerSecond)
	}
	return s
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/downloads", s.handleDownloads)
	mux.HandleFunc("/api/v1/downloads/", s.handleDownload)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws/downloads", s.handleDownloadsFeed)

	return s.throttle(mux)
}

// throttle applies the server-wide request rate limit. This is load
// shedding for the process as a whole; per-owner fairness lives in the
// admission gate, not here.
func (s *Server) throttle(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "Server overloaded, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.startedAt = time.Now()
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Infow("HTTP server listening", "addr", addr)
	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Infow("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
