// Command redka-server binds 0.0.0.0:8080 and serves the redka wire
// protocol. No command-line flags are recognized (§6): the listen address,
// data directory, and WAL/LSM constants are fixed at build time.
package main

import (
	"fmt"
	"os"

	"github.com/dd0wney/redka/pkg/config"
	"github.com/dd0wney/redka/pkg/engine"
	"github.com/dd0wney/redka/pkg/ioruntime"
	"github.com/dd0wney/redka/pkg/logging"
	"github.com/dd0wney/redka/pkg/metrics"
	"github.com/dd0wney/redka/pkg/server"
)

func main() {
	logger := logging.NewDefaultLogger()

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	reg := metrics.NewRegistry()

	eng, err := engine.Open(cfg, logger, reg)
	if err != nil {
		logger.Error("failed to open engine", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	defer eng.Close()

	if cfg.MetricsAddr != "" {
		metricsServer := server.NewMetricsServer(cfg.MetricsAddr, reg, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server exited", logging.Field{Key: "error", Value: err.Error()})
			}
		}()
	}

	acceptor, err := ioruntime.ListenOn(cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", logging.Field{Key: "addr", Value: cfg.ListenAddr}, logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	defer acceptor.Close()

	executor := ioruntime.NewExecutor(acceptor)

	var acceptLoop func()
	acceptLoop = func() {
		acceptor.Accept(func(sock *ioruntime.TcpSocket, err error) {
			if err != nil {
				logger.Warn("accept failed", logging.Field{Key: "error", Value: err.Error()})
				acceptLoop()
				return
			}
			server.HandleConnection(sock, eng, logger, reg)
			acceptLoop()
		})
	}
	acceptLoop()

	fmt.Println("Server listening on port 8080")
	logger.Info("redka server started", logging.Field{Key: "addr", Value: cfg.ListenAddr}, logging.Field{Key: "data_dir", Value: cfg.DataDir})

	if err := executor.Run(); err != nil {
		logger.Error("executor stopped", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
}
