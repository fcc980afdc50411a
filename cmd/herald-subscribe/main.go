// Command herald-subscribe is a thin example binary wiring the herald
// library to the ambient stack (config, logging), grounded on the
// teacher's cmd/odin-ws/main.go wiring shape. It is not part of the core
// transport (SPEC_FULL.md §1/§6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"herald"
	"herald/internal/config"
	"herald/internal/logging"
)

func main() {
	cfg, err := config.LoadSubscriber()
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

	sub := herald.NewSubscriber(
		cfg.Port,
		func(data []byte) {
			fmt.Println(string(data))
		},
		herald.WithSubscriberLogger(logger),
	)

	if err := sub.Init(); err != nil {
		logger.Fatal("subscriber init failed", zap.Error(err))
	}
	defer sub.Destroy()

	logger.Info("subscriber attached", zap.Int("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutdown signal received")
}
