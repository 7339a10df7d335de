package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"propreg/internal/platform/config"
	"propreg/internal/platform/logger"
)

// main loads configuration and runs the server until SIGINT/SIGTERM.
// Wiring lives in app.go.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
