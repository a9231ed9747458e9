// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/net/netutil"
)

const (
	DefaultListenAddress   = ":8080"
	DefaultRateLimit       = 5.0
	DefaultRateBurst       = 10
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxConnections  = 1024
)

// ServerConfig holds the REST API server settings
type ServerConfig struct {
	ListenAddress string
	// Requests per second allowed per client IP on mutating routes. A
	// negative value disables rate limiting
	RateLimit       float64
	RateBurst       int
	ShutdownTimeout time.Duration
	// Concurrent connection cap. A negative value disables it
	MaxConnections int
	OracleEnabled  bool
	PromRegistry   prometheus.Registerer
}

// Server is the zkTender REST API server
type Server struct {
	config     ServerConfig
	logger     *slog.Logger
	engine     TenderEngine
	limiter    *clientLimiter
	metrics    serverMetrics
	handler    http.Handler
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new API server instance
func New(
	cfg ServerConfig,
	engine TenderEngine,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	s := &Server{
		config: cfg,
		logger: logger,
		engine: engine,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.metrics.init(cfg.PromRegistry)
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "GET /", s.handleRoot, false)
	s.handle(mux, "GET /health", s.handleHealth, false)
	s.handle(mux, "GET /api/v1/instances", s.handleInstances, false)
	s.handle(mux, "GET /api/v1/instances/{id}", s.handleInstance, false)
	s.handle(mux, "GET /api/v1/instances/{id}/state", s.handleState, false)
	s.handle(mux, "GET /api/v1/instances/{id}/phases", s.handlePhaseHistory, false)
	s.handle(mux, "POST /api/v1/instances/{id}/phase", s.handleAdvancePhase, true)
	s.handle(mux, "POST /api/v1/instances/{id}/proposals", s.handleCommit, true)
	s.handle(mux, "POST /api/v1/instances/{id}/proposals/{sid}/reveal", s.handleReveal, true)
	s.handle(mux, "GET /api/v1/instances/{id}/proposals/{sid}/payload", s.handlePayload, false)
	s.handle(mux, "POST /api/v1/instances/{id}/proposals/{sid}/votes", s.handleVote, true)
	s.handle(mux, "POST /api/v1/instances/{id}/proposals/{sid}/comments", s.handleComment, true)
	s.handle(mux, "GET /api/v1/instances/{id}/proposals/{sid}/comments", s.handleComments, false)
	s.handle(mux, "GET /api/v1/instances/{id}/stats", s.handleStats, false)
	s.handle(mux, "POST /api/v1/instances/{id}/proposals/{sid}/evaluation", s.handleEvaluate, true)
	s.handle(mux, "POST /api/v1/instances/{id}/proposals/{sid}/final-evaluation", s.handleFinalEvaluate, true)
	s.handle(mux, "GET /api/v1/instances/{id}/evaluations", s.handleEvaluations, false)
	s.handle(mux, "GET /api/v1/instances/{id}/final-evaluations", s.handleFinalEvaluations, false)
	return s.withRequestID(mux)
}

// handle registers a route. Mutating routes are subject to the per-client
// rate limit
func (s *Server) handle(
	mux *http.ServeMux,
	pattern string,
	handlerFunc http.HandlerFunc,
	mutating bool,
) {
	var h http.Handler = handlerFunc
	if mutating {
		h = s.withRateLimit(h)
	}
	mux.Handle(pattern, s.withMetrics(pattern, h))
}

// Start starts the HTTP server in a background goroutine
func (s *Server) Start(
	ctx context.Context,
) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	// Use h2c so we can serve HTTP/2 without TLS
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           h2c.NewHandler(s.handler, &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	// Bind first so port conflicts are reported to the caller
	if err := s.startServer(server); err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return err
	}

	s.logger.Info(
		"API listener started on " + s.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		srv := s.httpServer
		s.httpServer = nil
		s.mu.Unlock()

		if srv != nil {
			s.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				s.config.ShutdownTimeout,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(
	ctx context.Context,
) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv != nil {
		s.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown API server: %w", err)
		}
	}
	return nil
}

// Addr returns the bound listener address while the server is running
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

func (s *Server) startServer(
	server *http.Server,
) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}
	// Report the resolved address when listening on port 0
	s.mu.Lock()
	server.Addr = ln.Addr().String()
	s.mu.Unlock()
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}
