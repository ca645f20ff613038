// Package main is the entry point for the cloak paste server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration from the environment
//  2. Create the logger
//  3. Build and start the server
//
// All actual logic lives in internal/ packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/anuragaming1/anura-kun/internal/config"
	"github.com/anuragaming1/anura-kun/internal/server"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// LOG_FORMAT picks text (default), json or tint; LOG_LEVEL the threshold.
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
