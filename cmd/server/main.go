package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"commissionflow/internal/app/server"
	"commissionflow/internal/platform/config"
	"commissionflow/internal/platform/logging"
)

// Version is set at build time.
var Version = "dev"

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "commissionflow",
		Version:     Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		app.Close()
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
