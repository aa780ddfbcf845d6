// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/claimlens/internal/cache"
	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/observability"
	"github.com/ppiankov/claimlens/internal/store"
	"github.com/ppiankov/claimlens/internal/worker"
	"golang.org/x/net/netutil"
)

// Analyzer is the pipeline as seen by the API
type Analyzer interface {
	worker.Analyzer
	CacheStats() (cache.Stats, bool)
	AdvisorName() string
}

// Deps are the collaborators a Server needs. Store and Metrics may be nil.
type Deps struct {
	Analyzer Analyzer
	Store    *store.Store
	Metrics  *observability.Metrics
	Version  string
}

// Server is the claimlens HTTP API
type Server struct {
	cfg      model.ServerConfig
	workers  int
	timeout  time.Duration
	analyzer Analyzer
	history  *store.Store
	metrics  *observability.Metrics
	version  string
	auth     *authenticator
	engine   *gin.Engine
}

// New builds the server and its routes
func New(cfg *model.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg.Server,
		workers:  cfg.Concurrency.Workers,
		timeout:  cfg.Concurrency.Timeout,
		analyzer: deps.Analyzer,
		history:  deps.Store,
		metrics:  deps.Metrics,
		version:  deps.Version,
		auth:     newAuthenticator(cfg.Auth),
	}
	if s.cfg.MaxUploadMB <= 0 {
		s.cfg.MaxUploadMB = 10
	}
	registerValidators()
	s.engine = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.maxUploadBytes()
	r.Use(requestID(), s.observe(), gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := r.Group("/v1", s.auth.middleware())
	v1.POST("/claims/analyze", s.auth.require(model.PermAnalyzeClaim), s.handleAnalyzeClaim)
	v1.POST("/claims/batch", s.auth.require(model.PermBatchProcess), s.handleBatchClaims)
	v1.POST("/documents/validate", s.auth.require(model.PermProcessDocument), s.handleValidateDocument)
	v1.POST("/images/analyze", s.auth.require(model.PermAnalyzeImage), s.handleAnalyzeImage)
	v1.GET("/analyses", s.auth.require(model.PermAdmin), s.handleListAnalyses)
	v1.GET("/analyses/:id", s.handleGetAnalysis)
	v1.GET("/stats", s.auth.require(model.PermAdmin), s.handleStats)

	return r
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.cfg.MaxUploadMB) << 20
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln, capped at the configured number of connections
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("claimlens API listening", "addr", ln.Addr().String(), "auth", s.auth.enabled(), "max_connections", s.cfg.MaxConnections)
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

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	slog.Info("shutting down API", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
