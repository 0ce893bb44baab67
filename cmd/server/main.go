package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"casedocs/internal/app"
	"casedocs/internal/platform/config"
	"casedocs/internal/platform/httpserver"
	"casedocs/internal/platform/logger"
)

// main wires dependencies, serves the API and drains on SIGINT/SIGTERM.
// Business logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Environment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	defer a.Close(context.Background())

	log.Info("starting casedocs api",
		"addr", cfg.Server.Addr,
		"environment", cfg.Environment(),
		"storage", cfg.Storage.Backend,
		"postgres", a.DB != nil,
		"redis", a.Redis != nil,
		"kafka", a.Producer != nil,
	)
	srv := httpserver.New(cfg.Server.Addr, a.Router())
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}
