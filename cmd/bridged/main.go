// Command bridged runs the bridge daemon: it serves resolver-emitted
// bundle artifacts, exposes Prometheus metrics, and accepts runtime
// attach connections over WebSocket.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hybridui/dombridge/internal/infrastructure/config"
	"github.com/hybridui/dombridge/internal/infrastructure/logging"
	"github.com/hybridui/dombridge/internal/infrastructure/monitoring"
	"github.com/hybridui/dombridge/internal/server"
)

func main() {
	port := flag.String("port", "", "override listen port")
	assets := flag.String("assets", "", "override artifact directory")
	dev := flag.Bool("dev", false, "development mode (console logs, debug level)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *assets != "" {
		cfg.Assets.Dir = *assets
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.New()
	srv := server.New(cfg, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("bridge daemon starting",
		zap.String("port", cfg.Server.Port),
		zap.String("assets", cfg.Assets.Dir))

	if err := srv.Run(ctx); err != nil {
		logger.Error("daemon exited", zap.Error(err))
		os.Exit(1)
	}
}
