// Package server exposes the sweep results over HTTP: a health check, the
// latest report, the present hosts and Prometheus metrics.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tkjaer/esweep/internal/shared"
)

const shutdownTimeout = 5 * time.Second

// HostLister returns the hosts currently present
type HostLister interface {
	Hosts() []shared.PresentHost
}

type Server struct {
	engine *gin.Engine
	store  *Store
	hosts  HostLister
}

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func New(store *Store, hosts HostLister, gatherer prometheus.Gatherer) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{engine: engine, store: store, hosts: hosts}

	engine.GET("/health", s.health)
	api := engine.Group("/api/v1")
	api.GET("/scan", s.latestScan)
	api.GET("/hosts", s.presentHosts)
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Serving status API", "address", ln.Addr().String())
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down status API: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (s *Server) latestScan(c *gin.Context) {
	report := s.store.Latest()
	if report == nil {
		c.JSON(http.StatusNotFound, errorResponse{
			Error:     "no_scan",
			Message:   "no sweep has completed yet",
			Timestamp: time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) presentHosts(c *gin.Context) {
	hosts := []shared.PresentHost{}
	if s.hosts != nil {
		hosts = append(hosts, s.hosts.Hosts()...)
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(hosts),
		"hosts": hosts,
	})
}

// requestLogger logs each request at debug level
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
