// Package server exposes contract generation over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/config"
	"github.com/georgepadayatti/contractpdf/records"
	"github.com/georgepadayatti/contractpdf/service"
)

// Generator generates and looks up stored contracts. *service.Generator
// implements it.
type Generator interface {
	Generate(ctx context.Context, req service.Request) (*service.Outcome, error)
	Record(ctx context.Context, entityID string) (*records.Contract, error)
}

// ShutdownTimeout bounds the graceful shutdown of Run.
const ShutdownTimeout = 10 * time.Second

// Server is the HTTP surface.
type Server struct {
	generator Generator
	composer  service.Composer
	cfg       config.ServerConfig
	router    *gin.Engine
}

// New creates a server. Gin's mode is global and left to the caller.
func New(generator Generator, composer service.Composer, cfg config.ServerConfig) *Server {
	cfg.SetDefaults()
	s := &Server{generator: generator, composer: composer, cfg: cfg}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", s.health)

	api := r.Group("/api/v1")
	if cfg.JWTSecret != "" {
		api.Use(BearerAuth([]byte(cfg.JWTSecret)))
	} else {
		klog.InfoS("Bearer authentication disabled", "severity", "warning")
	}
	api.POST("/contracts/:entityID/generate", s.generate)
	api.GET("/contracts/:entityID", s.record)
	api.POST("/compose", s.compose)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.InfoS("Listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	klog.InfoS("Shutting down", "timeout", ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		klog.V(2).InfoS("Request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
