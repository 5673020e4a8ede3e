// Package api exposes the fraud network view over HTTP: the current frame
// as JSON or SVG, a server-sent event stream of frames, and the hover,
// select, refresh and relaxation controls.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/api/middleware"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
)

// NewServer builds the handler tree. It does not listen; see ListenAndServe.
func NewServer(eng GraphEngine, cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{
		engine:   eng,
		cfg:      cfg,
		logger:   logging.NopLogger{},
		clientID: middleware.ClientIP(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.Component("api"))
	s.handler = s.buildHandler()
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	limited := middleware.RateLimit(s.limiter, s.clientID)

	mux.HandleFunc("GET /graph/frame", s.handleFrame)
	mux.HandleFunc("GET /graph/frame.svg", s.handleFrameSVG)
	mux.HandleFunc("GET /graph/stream", s.handleStream)
	mux.HandleFunc("GET /graph/status", s.handleStatus)
	mux.Handle("POST /graph/refresh", limited(http.HandlerFunc(s.handleRefresh)))

	mux.HandleFunc("PUT /graph/hover/{id...}", s.handleHover)
	mux.HandleFunc("DELETE /graph/hover/{id...}", s.handleUnhover)
	mux.HandleFunc("DELETE /graph/hover", s.handleUnhover)

	mux.Handle("POST /graph/select/{id...}", limited(http.HandlerFunc(s.handleSelect)))
	mux.HandleFunc("DELETE /graph/select", s.handleClearSelection)
	mux.HandleFunc("GET /graph/selection", s.handleSelection)

	mux.HandleFunc("GET /graph/relax", s.handleGetRelax)
	mux.HandleFunc("PUT /graph/relax", s.handleSetRelax)

	if s.health != nil {
		mux.HandleFunc("GET /health", s.health.HTTPHandler())
		mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler())
		mux.HandleFunc("GET /health/live", s.health.LivenessHandler())
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// buildHandler wraps the mux. Metrics sits innermost so it sees the
// matched route pattern.
func (s *Server) buildHandler() http.Handler {
	var recorder middleware.MetricsRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	return middleware.Chain(s.routes(),
		middleware.PanicRecovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.SecurityHeaders(s.hsts),
		middleware.CORS(middleware.CORSFromOrigins(s.cfg.CORSOrigins)),
		middleware.BodySizeLimit(s.cfg.MaxBodyBytes),
		middleware.Metrics(recorder),
	)
}

// Handler returns the complete handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx ends, then shuts down gracefully. Request
// contexts derive from ctx, so open event streams close on shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		TLSConfig:         s.cfg.TLS,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening",
			logging.String("addr", ln.Addr().String()),
			logging.Bool("tls", s.cfg.TLS != nil))
		if s.cfg.TLS != nil {
			errCh <- srv.ServeTLS(ln, "", "")
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
