package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marker-sweep/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := logging.New()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warn().Str("signal", sig.String()).Msg("received signal, stopping after the current path")
		cancel()
	}()

	code := Execute(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}
