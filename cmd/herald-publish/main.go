// Command herald-publish is a thin example binary wiring the herald
// library to the ambient stack (config, logging, metrics), grounded on
// the teacher's cmd/odin-ws/main.go wiring shape. It is not part of the
// core transport (SPEC_FULL.md §1/§6).
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"herald"
	"herald/internal/config"
	"herald/internal/logging"
	"herald/internal/metrics"
)

func main() {
	cfg, err := config.LoadPublisher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	registry := metrics.NewRegistry()

	pub := herald.NewPublisher(
		cfg.Port,
		cfg.BufferSize,
		herald.WithPublisherLogger(logger),
		herald.WithPublisherMetrics(registry),
	)

	if err := pub.Init(); err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer pub.Destroy()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go runMetricsServer(ctx, cfg.Metrics.ListenAddr, registry, logger)
	}

	logger.Info("publisher ready", zap.Int("port", cfg.Port), zap.Int("buffer_size", cfg.BufferSize))

	go publishStdinLines(ctx, pub, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received")
}

// publishStdinLines publishes each line read from stdin, one message per
// line, until ctx is cancelled or stdin is closed.
func publishStdinLines(ctx context.Context, pub *herald.Publisher, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := pub.Publish(scanner.Bytes()); err != nil {
			logger.Warn("publish failed", zap.Error(err))
		}
	}
}

func runMetricsServer(ctx context.Context, addr string, registry *metrics.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics http server starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics http server error", zap.Error(err))
	}
}
