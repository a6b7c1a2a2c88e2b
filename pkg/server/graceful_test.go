package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/dd0wney/redka/pkg/logging"
	"github.com/dd0wney/redka/pkg/metrics"
)

func TestGracefulServerStartAndShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	gs := NewGracefulServer("127.0.0.1:0", handler, logging.NewDefaultLogger())

	done := make(chan error, 1)
	go func() { done <- gs.Start() }()

	time.Sleep(50 * time.Millisecond)
	if gs.IsShuttingDown() {
		t.Fatalf("expected server not shutting down before Shutdown is called")
	}

	if err := gs.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !gs.IsShuttingDown() {
		t.Fatalf("expected IsShuttingDown to be true after Shutdown")
	}

	if err := <-done; err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
}

func TestNewMetricsServerReturnsServer(t *testing.T) {
	reg := metrics.NewRegistry()
	gs := NewMetricsServer("127.0.0.1:0", reg, logging.NewDefaultLogger())
	if gs == nil {
		t.Fatalf("expected non-nil metrics server")
	}
}
