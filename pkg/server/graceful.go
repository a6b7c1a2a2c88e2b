package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/redka/pkg/logging"
	"github.com/dd0wney/redka/pkg/metrics"
)

// GracefulServer wraps an HTTP server with SIGINT/SIGTERM-triggered shutdown.
// The wire protocol itself never speaks HTTP (§6); this exists solely to
// serve reg's Prometheus handler on cfg.MetricsAddr alongside the raw-TCP
// listener, without blocking the ioruntime executor.
type GracefulServer struct {
	server       *http.Server
	logger       logging.Logger
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewMetricsServer builds a GracefulServer exposing reg on /metrics.
func NewMetricsServer(addr string, reg *metrics.Registry, logger logging.Logger) *GracefulServer {
	return NewGracefulServer(addr, promhttp.HandlerFor(reg.PrometheusRegistry(), promhttp.HandlerOpts{}), logger)
}

// NewGracefulServer creates a graceful HTTP server around handler.
func NewGracefulServer(addr string, handler http.Handler, logger logging.Logger) *GracefulServer {
	return &GracefulServer{
		server: &http.Server{
			Addr:           addr,
			Handler:        handler,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}
}

// Start runs the server until Shutdown is called or SIGINT/SIGTERM arrives.
func (gs *GracefulServer) Start() error {
	go gs.handleSignals()

	gs.logger.Info("starting metrics server", logging.Field{Key: "addr", Value: gs.server.Addr})
	if err := gs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.logger.Info("shutting down metrics server", logging.Field{Key: "timeout", Value: timeout.String()})
		if shutdownErr := gs.server.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
			gs.logger.Error("metrics server shutdown error", logging.Field{Key: "error", Value: shutdownErr.Error()})
		}
	})
	return err
}

// handleSignals shuts the server down on SIGINT or SIGTERM.
func (gs *GracefulServer) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	gs.logger.Info("received shutdown signal", logging.Field{Key: "signal", Value: sig.String()})
	if err := gs.Shutdown(10 * time.Second); err != nil {
		gs.logger.Error("shutdown failed", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
}

// IsShuttingDown reports whether Shutdown has been initiated.
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}
